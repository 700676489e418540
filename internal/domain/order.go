package domain

// Item представляет одну позицию заказа: ссылку на товар и количество.
type Item struct {
	// ProductKey: внешний ключ товара в сервисе каталога, проверяется только удалённо.
	ProductKey int64 `json:"product_key"`
	// Quantity всегда > 0.
	Quantity int `json:"quantity"`
}

// Order — заказ в локальном хранилище.
type Order struct {
	ID          int64  `json:"id"`
	CustomerKey int64  `json:"customer_key"`
	Items       []Item `json:"items"`
}

// OrderInput — тело запроса на создание или полную замену заказа.
type OrderInput struct {
	CustomerKey int64  `json:"customer_key"`
	Items       []Item `json:"items"`
}

// Validate проверяет локальные инварианты входных данных (без обращения к внешним сервисам).
// Возвращает первую найденную ошибку валидации.
func (in OrderInput) Validate() error {
	if in.CustomerKey <= 0 {
		return NewValidationError("customer_key", "must be greater than zero")
	}
	if len(in.Items) == 0 {
		return NewValidationError("items", "order must contain at least one item")
	}
	for idx, item := range in.Items {
		if item.ProductKey <= 0 {
			return NewValidationError(itemField(idx, "product_key"), "must be greater than zero")
		}
		if item.Quantity <= 0 {
			return NewValidationError(itemField(idx, "quantity"), "must be greater than zero")
		}
	}
	return nil
}

// ToOrder строит заказ с заданным идентификатором. Позиции копируются,
// чтобы сохранённый заказ не зависел от слайса вызывающей стороны.
func (in OrderInput) ToOrder(id int64) Order {
	return Order{
		ID:          id,
		CustomerKey: in.CustomerKey,
		Items:       cloneItems(in.Items),
	}
}

// Clone возвращает глубокую копию заказа.
func (o Order) Clone() Order {
	o.Items = cloneItems(o.Items)
	return o
}

func cloneItems(items []Item) []Item {
	if items == nil {
		return nil
	}
	result := make([]Item, len(items))
	copy(result, items)
	return result
}
