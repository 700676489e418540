package app

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/order-aggregator/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/order-aggregator/internal/health"
	"github.com/vladislavdragonenkov/order-aggregator/internal/lookup"
	"github.com/vladislavdragonenkov/order-aggregator/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/order-aggregator/internal/metrics"
	"github.com/vladislavdragonenkov/order-aggregator/internal/service/detail"
	"github.com/vladislavdragonenkov/order-aggregator/internal/service/orders"
	"github.com/vladislavdragonenkov/order-aggregator/internal/storage/memory"
	"github.com/vladislavdragonenkov/order-aggregator/internal/storage/postgres"
)

// runtimeDependencies — собранный граф зависимостей для Run.
type runtimeDependencies struct {
	store    domain.OrderStore
	orders   *orders.Service
	health   *healthcheck.Handler
	producer *kafka.Producer
	closeFn  func() error
}

// initRuntimeDependencies собирает хранилище, клиентов внешних сервисов и сервис заказов.
// closeFn освобождает ресурсы хранилища; producer закрывается отдельно при остановке.
func initRuntimeDependencies(ctx context.Context, cfg Config, healthVersion string, logger *log.Entry) (*runtimeDependencies, error) {
	healthHandler := healthcheck.NewHandler(healthVersion)

	store, closeFn, err := initOrderStore(ctx, cfg, healthHandler, logger)
	if err != nil {
		return nil, err
	}

	orderMetrics := metrics.NewOrderMetrics()
	client := lookup.NewClient(cfg.LookupTimeout, orderMetrics, logger.WithField("component", "lookup-client"))
	assembler := detail.NewAssembler(client, detail.Config{
		CustomerServiceURL: cfg.CustomerServiceURL,
		ProductServiceURL:  cfg.ProductServiceURL,
	}, logger.WithField("component", "detail-assembler"))

	healthHandler.RegisterChecker("customer_service", healthcheck.NewDependencyChecker(
		"customer_service", healthcheck.DialCheck(cfg.CustomerServiceURL)))
	healthHandler.RegisterChecker("product_service", healthcheck.NewDependencyChecker(
		"product_service", healthcheck.DialCheck(cfg.ProductServiceURL)))

	publisher, producer := initEventPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)

	service := orders.NewService(store, assembler,
		orders.WithPublisher(publisher),
		orders.WithMetrics(orderMetrics),
		orders.WithLogger(logger.WithField("component", "order-service")),
	)

	return &runtimeDependencies{
		store:    store,
		orders:   service,
		health:   healthHandler,
		producer: producer,
		closeFn:  closeFn,
	}, nil
}

func initOrderStore(ctx context.Context, cfg Config, healthHandler *healthcheck.Handler, logger *log.Entry) (domain.OrderStore, func() error, error) {
	switch cfg.StorageDriver {
	case StorageDriverMemory, "":
		var seed []domain.Order
		if cfg.SeedDemoOrder {
			seed = append(seed, memory.DemoOrder())
		}
		logger.WithField("seeded", len(seed)).Info("используем in-memory хранилище заказов")
		return memory.NewOrderStore(seed...), func() error { return nil }, nil

	case StorageDriverPostgres:
		pg, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("init postgres storage: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := pg.MigrateUp(ctx, 0); err != nil {
				return nil, nil, errors.Join(fmt.Errorf("apply postgres migrations: %w", err), pg.Close())
			}
		}
		if cfg.SeedDemoOrder {
			logger.Warn("демо-заказ не создаётся для postgres хранилища")
		}
		healthHandler.RegisterChecker("postgres", healthcheck.NewCriticalChecker("postgres", pg.Ping))
		logger.Info("используем postgres хранилище заказов")
		return postgres.NewOrderStore(pg), pg.Close, nil

	default:
		return nil, nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}
