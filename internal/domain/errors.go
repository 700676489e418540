package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation — базовая ошибка некорректных входных данных.
	ErrValidation = errors.New("validation failed")
	// ErrOrderNotFound возвращается, если заказа нет в локальном хранилище.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderExists сигнализирует о попытке добавить заказ с уже занятым ID.
	ErrOrderExists = errors.New("order already exists")
	// ErrReferenceNotFound — внешний сервис подтвердил отсутствие клиента или товара.
	ErrReferenceNotFound = errors.New("reference does not exist")
	// ErrDownstreamUnavailable — внешний сервис недоступен или ответил некорректно.
	ErrDownstreamUnavailable = errors.New("downstream service unavailable")
)

// ValidationError описывает нарушение ограничения конкретного поля.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError создаёт ошибку валидации поля.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is позволяет сравнивать через errors.Is(err, ErrValidation).
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ReferenceKind — тип внешней сущности, на которую ссылается заказ.
type ReferenceKind string

const (
	ReferenceCustomer ReferenceKind = "customer"
	ReferenceProduct  ReferenceKind = "product"
)

// ReferenceNotFoundError — клиент или товар отсутствует в сервисе-владельце.
type ReferenceNotFoundError struct {
	Kind ReferenceKind
	Key  int64
}

func (e *ReferenceNotFoundError) Error() string {
	switch e.Kind {
	case ReferenceCustomer:
		return "Customer does not exist"
	case ReferenceProduct:
		return "Product does not exist"
	default:
		return fmt.Sprintf("%s %d does not exist", e.Kind, e.Key)
	}
}

func (e *ReferenceNotFoundError) Is(target error) bool {
	return target == ErrReferenceNotFound
}

// DownstreamUnavailableError — сбой транспорта, таймаут, неожиданный статус или
// нечитаемый ответ внешнего сервиса. Повторять запрос может только вызывающая сторона.
type DownstreamUnavailableError struct {
	Service string
	Cause   error
}

func (e *DownstreamUnavailableError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("Error fetching data from %s service", e.Service)
	}
	return fmt.Sprintf("Error fetching data from %s service: %v", e.Service, e.Cause)
}

func (e *DownstreamUnavailableError) Is(target error) bool {
	return target == ErrDownstreamUnavailable
}

func (e *DownstreamUnavailableError) Unwrap() error {
	return e.Cause
}

func itemField(idx int, name string) string {
	return fmt.Sprintf("items[%d].%s", idx, name)
}
