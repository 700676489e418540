package orders_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/order-aggregator/internal/domain"
	"github.com/vladislavdragonenkov/order-aggregator/internal/metrics"
	"github.com/vladislavdragonenkov/order-aggregator/internal/service/orders"
	"github.com/vladislavdragonenkov/order-aggregator/internal/storage/memory"
)

// fakeResolver отвечает по заранее заданным справочникам и считает обращения.
type fakeResolver struct {
	mu            sync.Mutex
	customers     map[int64]string
	products      map[int64]decimal.Decimal
	unavailable   map[string]bool
	customerCalls []int64
	productCalls  []int64
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		customers:   map[int64]string{1: "Ada", 2: "Grace"},
		products:    map[int64]decimal.Decimal{1: decimal.RequireFromString("3391.78"), 2: decimal.RequireFromString("10.50")},
		unavailable: map[string]bool{},
	}
}

func (f *fakeResolver) ResolveCustomer(_ context.Context, key int64) (domain.CustomerDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.customerCalls = append(f.customerCalls, key)

	if f.unavailable["customer"] {
		return domain.CustomerDetail{}, &domain.DownstreamUnavailableError{Service: "customer", Cause: context.DeadlineExceeded}
	}
	name, ok := f.customers[key]
	if !ok {
		return domain.CustomerDetail{}, &domain.ReferenceNotFoundError{Kind: domain.ReferenceCustomer, Key: key}
	}
	return domain.CustomerDetail{Name: name}, nil
}

func (f *fakeResolver) ResolveProduct(_ context.Context, key int64) (domain.ProductDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.productCalls = append(f.productCalls, key)

	if f.unavailable["product"] {
		return domain.ProductDetail{}, &domain.DownstreamUnavailableError{Service: "product", Cause: context.DeadlineExceeded}
	}
	price, ok := f.products[key]
	if !ok {
		return domain.ProductDetail{}, &domain.ReferenceNotFoundError{Kind: domain.ReferenceProduct, Key: key}
	}
	return domain.ProductDetail{Name: "product", Price: price}, nil
}

func (f *fakeResolver) Assemble(ctx context.Context, order domain.Order) (domain.OrderDetail, error) {
	customer, err := f.ResolveCustomer(ctx, order.CustomerKey)
	if err != nil {
		return domain.OrderDetail{}, err
	}
	detail := domain.OrderDetail{ID: order.ID, Customer: customer}
	for _, item := range order.Items {
		product, err := f.ResolveProduct(ctx, item.ProductKey)
		if err != nil {
			return domain.OrderDetail{}, err
		}
		detail.Items = append(detail.Items, domain.ItemDetail{Product: product, Quantity: item.Quantity})
	}
	return detail, nil
}

func (f *fakeResolver) calls() (customers, products int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.customerCalls), len(f.productCalls)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.OrderEvent
	err    error
}

func (p *recordingPublisher) Publish(event domain.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []domain.OrderEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.OrderEventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	store     domain.OrderStore
	resolver  *fakeResolver
	publisher *recordingPublisher
	registry  *prometheus.Registry
	service   *orders.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	f := &fixture{
		store:     memory.NewOrderStore(memory.DemoOrder()),
		resolver:  newFakeResolver(),
		publisher: &recordingPublisher{},
		registry:  prometheus.NewRegistry(),
	}
	f.service = orders.NewService(f.store, f.resolver,
		orders.WithPublisher(f.publisher),
		orders.WithMetrics(metrics.NewOrderMetricsWithRegisterer(f.registry)),
		orders.WithLogger(logger.WithField("component", "test")),
	)
	return f
}

func (f *fixture) storeSize(t *testing.T) int {
	t.Helper()
	list, err := f.store.List()
	require.NoError(t, err)
	return len(list)
}

func input(customer int64, items ...domain.Item) domain.OrderInput {
	return domain.OrderInput{CustomerKey: customer, Items: items}
}

func item(product int64, quantity int) domain.Item {
	return domain.Item{ProductKey: product, Quantity: quantity}
}

func TestCreate_AssignsIncreasingIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.service.Create(ctx, input(1, item(1, 1)))
	require.NoError(t, err)
	assert.Equal(t, int64(2), first.ID)

	_, err = f.service.Delete(ctx, first.ID)
	require.NoError(t, err)

	second, err := f.service.Create(ctx, input(2, item(2, 3)))
	require.NoError(t, err)
	assert.Greater(t, second.ID, first.ID, "ids must not be reused after delete")

	assert.Equal(t, []domain.OrderEventType{
		domain.OrderEventCreated,
		domain.OrderEventDeleted,
		domain.OrderEventCreated,
	}, f.publisher.types())
}

func TestCreateThenGet_PreservesItemOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.service.Create(ctx, input(1, item(2, 5), item(1, 1), item(2, 7)))
	require.NoError(t, err)
	require.Len(t, created.Items, 3)

	detail, err := f.service.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, detail.Items, len(created.Items))
	for i, it := range detail.Items {
		assert.Equal(t, created.Items[i].Quantity, it.Quantity)
	}
	assert.True(t, detail.Items[1].Product.Price.Equal(decimal.RequireFromString("3391.78")))
}

func TestCreate_EmptyItemsIsValidationError(t *testing.T) {
	f := newFixture(t)

	for _, customer := range []int64{1, 99, -1} {
		_, err := f.service.Create(context.Background(), input(customer))
		var validationErr *domain.ValidationError
		require.ErrorAs(t, err, &validationErr, "customer %d", customer)
	}

	customers, products := f.resolver.calls()
	assert.Zero(t, customers, "validation must happen before any lookup")
	assert.Zero(t, products)
	assert.Equal(t, 1, f.storeSize(t))
}

func TestCreate_FieldConstraints(t *testing.T) {
	f := newFixture(t)

	cases := map[string]domain.OrderInput{
		"zero quantity":     input(1, item(1, 0)),
		"negative quantity": input(1, item(1, -2)),
		"zero product key":  input(1, item(0, 1)),
		"zero customer key": input(0, item(1, 1)),
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.service.Create(context.Background(), in)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
	assert.Equal(t, 1, f.storeSize(t))
}

func TestCreate_CustomerNotFoundLeavesStoreUnchanged(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Create(context.Background(), input(99, item(1, 1)))

	var refErr *domain.ReferenceNotFoundError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, domain.ReferenceCustomer, refErr.Kind)
	assert.Equal(t, int64(99), refErr.Key)
	assert.Equal(t, 1, f.storeSize(t))
	assert.Empty(t, f.publisher.types())

	_, products := f.resolver.calls()
	assert.Zero(t, products, "products must not be resolved after customer failure")
}

func TestCreate_ProductNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Create(context.Background(), input(1, item(1, 1), item(42, 1)))

	var refErr *domain.ReferenceNotFoundError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, domain.ReferenceProduct, refErr.Kind)
	assert.Equal(t, int64(42), refErr.Key)
	assert.Equal(t, 1, f.storeSize(t))
}

func TestCreate_DownstreamUnavailable(t *testing.T) {
	f := newFixture(t)
	f.resolver.unavailable["product"] = true

	_, err := f.service.Create(context.Background(), input(1, item(1, 1)))

	assert.ErrorIs(t, err, domain.ErrDownstreamUnavailable)
	assert.Equal(t, 1, f.storeSize(t))
}

func TestCreate_ResolvesRepeatedProductOnce(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Create(context.Background(), input(1, item(1, 1), item(1, 2), item(2, 1)))
	require.NoError(t, err)

	_, products := f.resolver.calls()
	assert.Equal(t, 2, products)
}

func TestUpdate_PreservesIDAndSize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	updated, err := f.service.Update(ctx, 1, input(2, item(2, 4), item(1, 1)))
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.ID)
	assert.Equal(t, 1, f.storeSize(t))

	stored, err := f.store.Get(1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.CustomerKey)
	assert.Equal(t, []domain.Item{item(2, 4), item(1, 1)}, stored.Items)
	assert.Equal(t, []domain.OrderEventType{domain.OrderEventUpdated}, f.publisher.types())
}

func TestUpdate_ValidatesReferencesBeforeExistence(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Update(context.Background(), 404, input(99, item(1, 1)))
	assert.ErrorIs(t, err, domain.ErrReferenceNotFound)

	_, err = f.service.Update(context.Background(), 404, input(1, item(1, 1)))
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	_, err = f.service.Update(context.Background(), 404, input(1))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestDelete_ThenEverythingIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	removed, err := f.service.Delete(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, memory.DemoOrder(), removed)

	_, err = f.service.Get(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	_, err = f.service.Update(ctx, 1, input(1, item(1, 1)))
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	_, err = f.service.Delete(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestGet_SeededOrderShowsTruncatedPrice(t *testing.T) {
	f := newFixture(t)

	detail, err := f.service.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Ada", detail.Customer.Name)
	require.Len(t, detail.Items, 1)
	assert.Equal(t, "3391.78", detail.Items[0].Product.Price.StringFixed(2))
}

func TestGet_DownstreamFailureLeavesStoreUnchanged(t *testing.T) {
	f := newFixture(t)
	f.resolver.unavailable["customer"] = true

	_, err := f.service.Get(context.Background(), 1)

	var downErr *domain.DownstreamUnavailableError
	require.ErrorAs(t, err, &downErr)
	stored, err := f.store.Get(1)
	require.NoError(t, err)
	assert.Equal(t, memory.DemoOrder(), stored)
}

func TestList_FailsWhole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Create(ctx, input(2, item(2, 1)))
	require.NoError(t, err)

	list, err := f.service.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(1), list[0].ID)

	delete(f.resolver.products, 2)
	list, err = f.service.List(ctx)
	assert.ErrorIs(t, err, domain.ErrReferenceNotFound)
	assert.Nil(t, list, "no partial list on failure")

	f.resolver.unavailable["customer"] = true
	_, err = f.service.List(ctx)
	assert.ErrorIs(t, err, domain.ErrDownstreamUnavailable)
}

func TestList_EmptyStore(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Delete(context.Background(), 1)
	require.NoError(t, err)

	list, err := f.service.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("kafka down")

	created, err := f.service.Create(context.Background(), input(1, item(1, 1)))
	require.NoError(t, err)
	assert.Equal(t, int64(2), created.ID)
	assert.Equal(t, 2, f.storeSize(t))
}

func TestNewService_WithoutPublisher(t *testing.T) {
	service := orders.NewService(memory.NewOrderStore(), newFakeResolver())

	created, err := service.Create(context.Background(), input(1, item(1, 1)))
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)
}

func TestConcurrentCreatesGetUniqueIDs(t *testing.T) {
	f := newFixture(t)

	const workers = 32
	var wg sync.WaitGroup
	ids := make(chan int64, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			order, err := f.service.Create(context.Background(), input(1, item(1, 1)))
			if err != nil {
				t.Errorf("create failed: %v", err)
				return
			}
			ids <- order.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[int64]bool{}
	for id := range ids {
		require.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, workers)
	assert.Equal(t, workers+1, f.storeSize(t))
}

func TestOperationsAreCounted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _ = f.service.Get(ctx, 1)
	_, _ = f.service.Get(ctx, 500)
	_, _ = f.service.Create(ctx, input(1, item(1, 1)))

	// get/ok, get/error, create/ok
	count, err := testutil.GatherAndCount(f.registry, "orders_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	events, err := testutil.GatherAndCount(f.registry, "orders_events_published_total")
	require.NoError(t, err)
	assert.Equal(t, 1, events)
}
