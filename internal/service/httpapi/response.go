package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vladislavdragonenkov/order-aggregator/internal/domain"
)

const (
	detailOrderNotFound = "Order not found"
	detailOrderExists   = "Order already exists"
	detailInternal      = "internal error"
	detailBadID         = "id: must be a positive integer"
)

type errorResponse struct {
	Detail string `json:"detail"`
}

type customerResponse struct {
	Name string `json:"name"`
}

type productResponse struct {
	Name string `json:"name"`
	// Price передаётся строкой с ровно двумя знаками после запятой, чтобы не терять точность.
	Price string `json:"price"`
}

type itemDetailResponse struct {
	Product  productResponse `json:"product"`
	Quantity int             `json:"quantity"`
}

type orderDetailResponse struct {
	ID       int64                `json:"id"`
	Customer customerResponse     `json:"customer"`
	Items    []itemDetailResponse `json:"items"`
}

func mapOrderDetail(detail domain.OrderDetail) orderDetailResponse {
	items := make([]itemDetailResponse, 0, len(detail.Items))
	for _, item := range detail.Items {
		items = append(items, itemDetailResponse{
			Product: productResponse{
				Name:  item.Product.Name,
				Price: item.Product.Price.StringFixed(2),
			},
			Quantity: item.Quantity,
		})
	}
	return orderDetailResponse{
		ID:       detail.ID,
		Customer: customerResponse{Name: detail.Customer.Name},
		Items:    items,
	}
}

// statusFor переводит доменную ошибку в HTTP-статус и текст detail.
// DownstreamUnavailable проверяется первым: его причина может быть ошибкой валидации ответа.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrDownstreamUnavailable):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, domain.ErrReferenceNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound, detailOrderNotFound
	case errors.Is(err, domain.ErrOrderExists):
		return http.StatusConflict, detailOrderExists
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity, err.Error()
	default:
		return http.StatusInternalServerError, detailInternal
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
