package orders

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/order-aggregator/internal/domain"
	"github.com/vladislavdragonenkov/order-aggregator/internal/metrics"
)

const (
	opList   = "list"
	opCreate = "create"
	opGet    = "get"
	opUpdate = "update"
	opDelete = "delete"
)

// DetailResolver — проверка ссылок и сборка детального представления (реализуется detail.Assembler).
type DetailResolver interface {
	ResolveCustomer(ctx context.Context, key int64) (domain.CustomerDetail, error)
	ResolveProduct(ctx context.Context, key int64) (domain.ProductDetail, error)
	Assemble(ctx context.Context, order domain.Order) (domain.OrderDetail, error)
}

// Service — оркестратор операций над заказами. Ошибки хранилища и внешних сервисов
// возвращаются без изменений; их перевод в статусы выполняется на транспортном уровне.
type Service struct {
	store     domain.OrderStore
	details   DetailResolver
	publisher domain.OrderEventPublisher
	metrics   *metrics.OrderMetrics
	logger    *log.Entry
	now       func() time.Time
}

// Option настраивает Service.
type Option func(*Service)

// WithPublisher подключает публикацию событий об изменениях заказов.
func WithPublisher(publisher domain.OrderEventPublisher) Option {
	return func(s *Service) {
		if publisher != nil {
			s.publisher = publisher
		}
	}
}

// WithMetrics включает учёт операций в Prometheus.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger задаёт логгер сервиса.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService создаёт сервис заказов. Без WithPublisher события никуда не отправляются.
func NewService(store domain.OrderStore, details DetailResolver, opts ...Option) *Service {
	s := &Service{
		store:     store,
		details:   details,
		publisher: nopPublisher{},
		logger:    log.WithField("component", "order-service"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List собирает детальное представление каждого заказа. Любая ошибка сборки
// прерывает всю операцию: частичный список не возвращается.
func (s *Service) List(ctx context.Context) (result []domain.OrderDetail, err error) {
	defer func() { s.metrics.RecordOperation(opList, err) }()

	orders, err := s.store.List()
	if err != nil {
		return nil, err
	}

	result = make([]domain.OrderDetail, 0, len(orders))
	for _, order := range orders {
		detail, err := s.details.Assemble(ctx, order)
		if err != nil {
			s.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to assemble order in list")
			return nil, err
		}
		result = append(result, detail)
	}
	return result, nil
}

// Create проверяет вход и ссылки, затем выделяет ID и сохраняет заказ.
// Хранилище не трогается, пока все ссылки не подтверждены.
func (s *Service) Create(ctx context.Context, input domain.OrderInput) (order domain.Order, err error) {
	defer func() { s.metrics.RecordOperation(opCreate, err) }()

	if err := s.validate(ctx, input); err != nil {
		return domain.Order{}, err
	}

	id, err := s.store.AllocateID()
	if err != nil {
		return domain.Order{}, err
	}
	order = input.ToOrder(id)
	if err := s.store.Append(order); err != nil {
		return domain.Order{}, err
	}

	s.logger.WithFields(log.Fields{
		"order_id":     order.ID,
		"customer_key": order.CustomerKey,
		"items":        len(order.Items),
	}).Info("order created")
	s.publish(domain.OrderEventCreated, order)
	return order, nil
}

// Get возвращает детальное представление заказа или ErrOrderNotFound.
func (s *Service) Get(ctx context.Context, id int64) (detail domain.OrderDetail, err error) {
	defer func() { s.metrics.RecordOperation(opGet, err) }()

	order, err := s.store.Get(id)
	if err != nil {
		return domain.OrderDetail{}, err
	}
	return s.details.Assemble(ctx, order)
}

// Update полностью заменяет заказ, сохраняя его ID. Ссылки проверяются до проверки
// существования заказа, поэтому ошибка ссылки имеет приоритет над ErrOrderNotFound.
func (s *Service) Update(ctx context.Context, id int64, input domain.OrderInput) (order domain.Order, err error) {
	defer func() { s.metrics.RecordOperation(opUpdate, err) }()

	if err := s.validate(ctx, input); err != nil {
		return domain.Order{}, err
	}

	order = input.ToOrder(id)
	if err := s.store.ReplaceAt(id, order); err != nil {
		return domain.Order{}, err
	}

	s.logger.WithFields(log.Fields{
		"order_id":     order.ID,
		"customer_key": order.CustomerKey,
	}).Info("order updated")
	s.publish(domain.OrderEventUpdated, order)
	return order, nil
}

// Delete удаляет заказ и возвращает удалённое значение.
func (s *Service) Delete(_ context.Context, id int64) (order domain.Order, err error) {
	defer func() { s.metrics.RecordOperation(opDelete, err) }()

	order, err = s.store.Remove(id)
	if err != nil {
		return domain.Order{}, err
	}

	s.logger.WithField("order_id", order.ID).Info("order deleted")
	s.publish(domain.OrderEventDeleted, order)
	return order, nil
}

// validate выполняет общий шаг проверки для create и update: локальные ограничения,
// затем клиент, затем товары в порядке позиций. Первая ошибка возвращается как есть.
func (s *Service) validate(ctx context.Context, input domain.OrderInput) error {
	if err := input.Validate(); err != nil {
		return err
	}
	if _, err := s.details.ResolveCustomer(ctx, input.CustomerKey); err != nil {
		return err
	}

	checked := make(map[int64]struct{}, len(input.Items))
	for _, item := range input.Items {
		if _, ok := checked[item.ProductKey]; ok {
			continue
		}
		if _, err := s.details.ResolveProduct(ctx, item.ProductKey); err != nil {
			return err
		}
		checked[item.ProductKey] = struct{}{}
	}
	return nil
}

// publish отправляет событие после изменения хранилища. Ошибка публикации
// логируется и учитывается в метриках, но не отменяет операцию.
func (s *Service) publish(eventType domain.OrderEventType, order domain.Order) {
	if _, disabled := s.publisher.(nopPublisher); disabled {
		return
	}
	err := s.publisher.Publish(domain.OrderEvent{
		Type:     eventType,
		Order:    order.Clone(),
		Occurred: s.now(),
	})
	s.metrics.RecordEventPublished(string(eventType), err)
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id":   order.ID,
			"event_type": eventType,
		}).Warn("failed to publish order event")
	}
}

type nopPublisher struct{}

func (nopPublisher) Publish(domain.OrderEvent) error { return nil }
