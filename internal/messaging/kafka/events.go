package kafka

import (
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/order-aggregator/internal/domain"
)

// TopicOrderEvents — топик по умолчанию для событий жизненного цикла заказа.
const TopicOrderEvents = "oms.order.events"

// HeaderEventType дублирует тип события в заголовке, чтобы подписчики могли фильтровать без разбора тела.
const HeaderEventType = "x-event-type"

// OrderEventMessage — JSON-представление события заказа в Kafka.
type OrderEventMessage struct {
	EventID     string        `json:"event_id"`
	EventType   string        `json:"event_type"`
	OrderID     int64         `json:"order_id"`
	CustomerKey int64         `json:"customer_key"`
	Items       []domain.Item `json:"items"`
	Timestamp   time.Time     `json:"timestamp"`
}

// NewOrderEventMessage строит сообщение с новым event_id.
func NewOrderEventMessage(event domain.OrderEvent) OrderEventMessage {
	occurred := event.Occurred
	if occurred.IsZero() {
		occurred = time.Now()
	}
	items := event.Order.Items
	if items == nil {
		items = []domain.Item{}
	}
	return OrderEventMessage{
		EventID:     uuid.NewString(),
		EventType:   string(event.Type),
		OrderID:     event.Order.ID,
		CustomerKey: event.Order.CustomerKey,
		Items:       items,
		Timestamp:   occurred.UTC(),
	}
}
