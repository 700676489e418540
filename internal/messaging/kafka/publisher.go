package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/vladislavdragonenkov/order-aggregator/internal/domain"
)

// OrderEventPublisher публикует события заказов в Kafka. Ключом сообщения служит ID заказа,
// поэтому события одного заказа попадают в одну партицию.
type OrderEventPublisher struct {
	producer *Producer
	topic    string
}

// NewOrderEventPublisher создаёт паблишер; пустой topic заменяется на TopicOrderEvents.
func NewOrderEventPublisher(producer *Producer, topic string) *OrderEventPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	return &OrderEventPublisher{producer: producer, topic: topic}
}

// Publish сериализует событие и синхронно отправляет его.
func (p *OrderEventPublisher) Publish(event domain.OrderEvent) error {
	if p == nil || p.producer == nil {
		return errors.New("kafka order publisher is not initialized")
	}

	msg := NewOrderEventMessage(event)
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	return p.producer.Send(
		p.topic,
		strconv.FormatInt(msg.OrderID, 10),
		payload,
		map[string]string{HeaderEventType: msg.EventType},
	)
}

var _ domain.OrderEventPublisher = (*OrderEventPublisher)(nil)
