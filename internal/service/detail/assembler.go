package detail

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/order-aggregator/internal/domain"
	"github.com/vladislavdragonenkov/order-aggregator/internal/lookup"
)

const (
	customerService = "customer"
	productService  = "product"

	customerPathFormat = "/customers/%d"
	productPathFormat  = "/products/%d"
)

// Fetcher — обращение к внешнему сервису (реализуется lookup.Client).
type Fetcher interface {
	Fetch(ctx context.Context, baseURL, resourcePath string) lookup.Result
}

// Config задаёт базовые адреса сервисов клиентов и товаров.
type Config struct {
	CustomerServiceURL string
	ProductServiceURL  string
}

// Assembler разрешает ссылки заказа через внешние сервисы и собирает OrderDetail.
type Assembler struct {
	fetcher Fetcher
	cfg     Config
	logger  *log.Entry
}

// NewAssembler создаёт сборщик детального представления заказа.
func NewAssembler(fetcher Fetcher, cfg Config, logger *log.Entry) *Assembler {
	if logger == nil {
		logger = log.WithField("component", "detail-assembler")
	}
	return &Assembler{fetcher: fetcher, cfg: cfg, logger: logger}
}

type customerPayload struct {
	Name *string `json:"name"`
}

type productPayload struct {
	Name  *string          `json:"name"`
	Price *decimal.Decimal `json:"price"`
}

// ResolveCustomer получает клиента по ключу.
func (a *Assembler) ResolveCustomer(ctx context.Context, key int64) (domain.CustomerDetail, error) {
	payload, err := a.fetch(ctx, a.cfg.CustomerServiceURL, customerPathFormat, customerService, domain.ReferenceCustomer, key)
	if err != nil {
		return domain.CustomerDetail{}, err
	}

	var raw customerPayload
	if err := json.Unmarshal(payload, &raw); err != nil {
		return domain.CustomerDetail{}, a.malformed(customerService, key, fmt.Errorf("decode customer: %w", err))
	}
	if raw.Name == nil {
		return domain.CustomerDetail{}, a.malformed(customerService, key, domain.NewValidationError("customer.name", "is required"))
	}

	customer, err := domain.NewCustomerDetail(*raw.Name)
	if err != nil {
		return domain.CustomerDetail{}, a.malformed(customerService, key, err)
	}
	return customer, nil
}

// ResolveProduct получает товар по ключу. Цена разбирается как точное десятичное
// число (без float) и усекается до двух знаков.
func (a *Assembler) ResolveProduct(ctx context.Context, key int64) (domain.ProductDetail, error) {
	payload, err := a.fetch(ctx, a.cfg.ProductServiceURL, productPathFormat, productService, domain.ReferenceProduct, key)
	if err != nil {
		return domain.ProductDetail{}, err
	}

	var raw productPayload
	if err := json.Unmarshal(payload, &raw); err != nil {
		return domain.ProductDetail{}, a.malformed(productService, key, fmt.Errorf("decode product: %w", err))
	}
	if raw.Name == nil || raw.Price == nil {
		return domain.ProductDetail{}, a.malformed(productService, key, domain.NewValidationError("product", "name and price are required"))
	}

	product, err := domain.NewProductDetail(*raw.Name, *raw.Price)
	if err != nil {
		return domain.ProductDetail{}, a.malformed(productService, key, err)
	}
	return product, nil
}

// Assemble разрешает клиента, затем товары строго по порядку позиций.
// Первая ошибка прерывает сборку; частичный результат не возвращается.
func (a *Assembler) Assemble(ctx context.Context, order domain.Order) (domain.OrderDetail, error) {
	customer, err := a.ResolveCustomer(ctx, order.CustomerKey)
	if err != nil {
		return domain.OrderDetail{}, err
	}

	items := make([]domain.ItemDetail, 0, len(order.Items))
	for _, item := range order.Items {
		product, err := a.ResolveProduct(ctx, item.ProductKey)
		if err != nil {
			return domain.OrderDetail{}, err
		}
		items = append(items, domain.ItemDetail{Product: product, Quantity: item.Quantity})
	}

	return domain.OrderDetail{
		ID:       order.ID,
		Customer: customer,
		Items:    items,
	}, nil
}

func (a *Assembler) fetch(
	ctx context.Context,
	baseURL, pathFormat, service string,
	kind domain.ReferenceKind,
	key int64,
) (json.RawMessage, error) {
	res := a.fetcher.Fetch(ctx, baseURL, fmt.Sprintf(pathFormat, key))

	switch res.Outcome {
	case lookup.OutcomeFound:
		return res.Payload, nil
	case lookup.OutcomeNotFound:
		return nil, &domain.ReferenceNotFoundError{Kind: kind, Key: key}
	default:
		cause := res.Err
		if cause == nil {
			cause = fmt.Errorf("unexpected lookup outcome %s", res.Outcome)
		}
		return nil, &domain.DownstreamUnavailableError{Service: service, Cause: cause}
	}
}

// malformed: сервис ответил 2xx, но тело нарушает контракт. Это сбой зависимости,
// а не ошибка клиента API.
func (a *Assembler) malformed(service string, key int64, cause error) error {
	a.logger.WithError(cause).WithFields(log.Fields{
		"service": service,
		"key":     key,
	}).Warn("downstream returned malformed payload")
	return &domain.DownstreamUnavailableError{Service: service, Cause: cause}
}
