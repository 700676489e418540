package memory

import (
	"sync"

	"github.com/vladislavdragonenkov/order-aggregator/internal/domain"
)

// orderStoreInMemory хранит заказы в памяти. Порядок добавления сохраняется.
type orderStoreInMemory struct {
	mu     sync.RWMutex
	orders []domain.Order
	nextID int64
}

// DemoOrder — заказ, с которым стартует сервис при включённом засеве.
func DemoOrder() domain.Order {
	return domain.Order{
		ID:          1,
		CustomerKey: 1,
		Items:       []domain.Item{{ProductKey: 1, Quantity: 1}},
	}
}

// NewOrderStore возвращает in-memory хранилище с начальными заказами.
// Следующий идентификатор равен максимальному ID засева плюс один.
func NewOrderStore(seed ...domain.Order) domain.OrderStore {
	s := &orderStoreInMemory{
		orders: make([]domain.Order, 0, len(seed)),
		nextID: 1,
	}
	for _, order := range seed {
		s.orders = append(s.orders, order.Clone())
		if order.ID >= s.nextID {
			s.nextID = order.ID + 1
		}
	}
	return s
}

// List возвращает копию всех заказов в порядке добавления.
func (s *orderStoreInMemory) List() ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Order, 0, len(s.orders))
	for _, order := range s.orders {
		result = append(result, order.Clone())
	}
	return result, nil
}

// Get возвращает копию заказа или ErrOrderNotFound.
func (s *orderStoreInMemory) Get(id int64) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return s.orders[idx].Clone(), nil
}

// Append добавляет заказ в конец; для занятого ID возвращает ErrOrderExists.
func (s *orderStoreInMemory) Append(order domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(order.ID) >= 0 {
		return domain.ErrOrderExists
	}
	s.orders = append(s.orders, order.Clone())
	if order.ID >= s.nextID {
		s.nextID = order.ID + 1
	}
	return nil
}

// ReplaceAt заменяет заказ на месте, позиция в списке не меняется.
func (s *orderStoreInMemory) ReplaceAt(id int64, order domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return domain.ErrOrderNotFound
	}
	order = order.Clone()
	order.ID = id
	s.orders[idx] = order
	return nil
}

// Remove удаляет заказ и возвращает удалённое значение.
func (s *orderStoreInMemory) Remove(id int64) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	removed := s.orders[idx]
	s.orders = append(s.orders[:idx], s.orders[idx+1:]...)
	return removed, nil
}

// AllocateID выдаёт следующий идентификатор; удалённые ID повторно не выдаются.
func (s *orderStoreInMemory) AllocateID() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	return id, nil
}

// indexOf вызывается под блокировкой.
func (s *orderStoreInMemory) indexOf(id int64) int {
	for idx := range s.orders {
		if s.orders[idx].ID == id {
			return idx
		}
	}
	return -1
}

var _ domain.OrderStore = (*orderStoreInMemory)(nil)
