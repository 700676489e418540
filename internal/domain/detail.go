package domain

import (
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	customerNameMaxLen = 747
	productNameMaxLen  = 100
	// pricePlaces — количество знаков после запятой в цене товара.
	pricePlaces = 2
	// пределы цены: не больше 15 цифр в целой части и 32 знаков после запятой
	maxPriceIntegerDigits = 15
	maxPriceScale         = 32
)

// CustomerDetail — снимок клиента, полученный из сервиса клиентов.
type CustomerDetail struct {
	Name string
}

// NewCustomerDetail проверяет имя клиента и создаёт снимок.
func NewCustomerDetail(name string) (CustomerDetail, error) {
	if err := validateName("customer.name", name, customerNameMaxLen); err != nil {
		return CustomerDetail{}, err
	}
	return CustomerDetail{Name: name}, nil
}

// ProductDetail — снимок товара из каталога. Цена точная (decimal) и уже
// усечена до двух знаков после запятой.
type ProductDetail struct {
	Name  string
	Price decimal.Decimal
}

// NewProductDetail усекает цену до двух знаков (в сторону нуля, без округления)
// и проверяет, что результат строго положительный.
func NewProductDetail(name string, price decimal.Decimal) (ProductDetail, error) {
	if err := validateName("product.name", name, productNameMaxLen); err != nil {
		return ProductDetail{}, err
	}
	// диапазон проверяется до Truncate: экспонента вроде 1e5000000 иначе раздувает число
	if exp := int(price.Exponent()); exp < -maxPriceScale || exp+price.NumDigits() > maxPriceIntegerDigits {
		return ProductDetail{}, NewValidationError("product.price", "is out of range")
	}
	truncated := price.Truncate(pricePlaces)
	if !truncated.IsPositive() {
		return ProductDetail{}, NewValidationError("product.price", "must be greater than zero")
	}
	return ProductDetail{Name: name, Price: truncated}, nil
}

// ItemDetail — позиция заказа с разрешённым товаром.
type ItemDetail struct {
	Product  ProductDetail
	Quantity int
}

// OrderDetail — агрегированное представление заказа. Позиции идут в том же
// порядке, что и в исходном заказе.
type OrderDetail struct {
	ID       int64
	Customer CustomerDetail
	Items    []ItemDetail
}

func validateName(field, name string, maxLen int) error {
	n := utf8.RuneCountInString(name)
	if n == 0 {
		return NewValidationError(field, "must not be empty")
	}
	if n > maxLen {
		return NewValidationError(field, "is too long")
	}
	return nil
}
