package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/order-aggregator/internal/domain"
)

const maxRequestBody = 1 << 20

// OrderService — операции, которые HTTP-слой вызывает у оркестратора.
type OrderService interface {
	List(ctx context.Context) ([]domain.OrderDetail, error)
	Create(ctx context.Context, input domain.OrderInput) (domain.Order, error)
	Get(ctx context.Context, id int64) (domain.OrderDetail, error)
	Update(ctx context.Context, id int64, input domain.OrderInput) (domain.Order, error)
	Delete(ctx context.Context, id int64) (domain.Order, error)
}

// Handler обслуживает ресурс /orders.
type Handler struct {
	orders OrderService
	logger *log.Entry
}

// NewHandler создаёт обработчики поверх сервиса заказов.
func NewHandler(orders OrderService, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.WithField("component", "http-api")
	}
	return &Handler{orders: orders, logger: logger}
}

// ListOrders — GET /orders.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	details, err := h.orders.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := make([]orderDetailResponse, 0, len(details))
	for _, detail := range details {
		resp = append(resp, mapOrderDetail(detail))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateOrder — POST /orders.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	input, err := decodeOrderInput(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	order, err := h.orders.Create(r.Context(), input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// GetOrder — GET /orders/{id}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	detail, err := h.orders.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrderDetail(detail))
}

// UpdateOrder — PUT /orders/{id}, полная замена.
func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	input, err := decodeOrderInput(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	order, err := h.orders.Update(r.Context(), id, input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// DeleteOrder — DELETE /orders/{id}.
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	order, err := h.orders.Delete(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).WithFields(log.Fields{
			"status":     status,
			"path":       r.URL.Path,
			"request_id": middleware.GetReqID(r.Context()),
		}).Error("request failed")
	}
	writeError(w, status, detail)
}

func orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusUnprocessableEntity, detailBadID)
		return 0, false
	}
	return id, true
}

// decodeOrderInput разбирает тело строго: лишние поля и хвост после объекта запрещены.
// Ошибки разбора возвращаются как ValidationError (422).
func decodeOrderInput(w http.ResponseWriter, r *http.Request) (domain.OrderInput, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()

	var input domain.OrderInput
	if err := dec.Decode(&input); err != nil {
		return domain.OrderInput{}, domain.NewValidationError("body", describeDecodeError(err))
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return domain.OrderInput{}, domain.NewValidationError("body", "must contain a single JSON object")
	}
	return input, nil
}

func describeDecodeError(err error) string {
	var typeErr *json.UnmarshalTypeError
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &typeErr):
		return fmt.Sprintf("field %s must be %s", typeErr.Field, typeErr.Type)
	case errors.As(err, &maxErr):
		return "request body is too large"
	case errors.Is(err, io.EOF):
		return "request body is empty"
	default:
		return err.Error()
	}
}
