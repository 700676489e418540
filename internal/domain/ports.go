package domain

import "time"

// OrderStore описывает требования к хранилищу заказов.
// Все операции атомарны относительно друг друга.
type OrderStore interface {
	// List возвращает снимок всех заказов в порядке добавления.
	List() ([]Order, error)
	// Get возвращает заказ по идентификатору или ErrOrderNotFound.
	Get(id int64) (Order, error)
	// Append добавляет заказ; ErrOrderExists, если ID уже занят.
	Append(order Order) error
	// ReplaceAt заменяет заказ целиком; ErrOrderNotFound, если его нет.
	ReplaceAt(id int64, order Order) error
	// Remove удаляет заказ и возвращает его; ErrOrderNotFound, если его нет.
	Remove(id int64) (Order, error)
	// AllocateID выдаёт следующий идентификатор. Идентификаторы не переиспользуются.
	AllocateID() (int64, error)
}

// OrderEventType — тип события жизненного цикла заказа.
type OrderEventType string

const (
	OrderEventCreated OrderEventType = "order.created"
	OrderEventUpdated OrderEventType = "order.updated"
	OrderEventDeleted OrderEventType = "order.deleted"
)

// OrderEvent фиксирует изменение заказа для внешних подписчиков.
type OrderEvent struct {
	Type     OrderEventType
	Order    Order
	Occurred time.Time
}

// OrderEventPublisher публикует события об изменениях заказов.
type OrderEventPublisher interface {
	Publish(event OrderEvent) error
}
