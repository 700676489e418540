package app

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/order-aggregator/internal/lookup"
)

const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска приложения.
type Config struct {
	HTTPAddr    string
	GRPCAddr    string // пустой адрес отключает gRPC health сервер
	MetricsAddr string

	CustomerServiceURL string
	ProductServiceURL  string
	LookupTimeout      time.Duration

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool
	SeedDemoOrder       bool

	KafkaBrokers []string // без брокеров события не публикуются
	KafkaTopic   string

	LogLevel string
}

// DefaultConfig возвращает настройки для локального запуска рядом с сервисами клиентов и товаров.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:            ":8000",
		GRPCAddr:            ":50051",
		MetricsAddr:         ":9090",
		CustomerServiceURL:  "http://customer_service:3002",
		ProductServiceURL:   "http://product_service:3001",
		LookupTimeout:       lookup.DefaultTimeout,
		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		SeedDemoOrder:       true,
		KafkaTopic:          "oms.order.events",
		LogLevel:            log.InfoLevel.String(),
	}
}

// Validate проверяет согласованность настроек до старта серверов.
func (c Config) Validate() error {
	var errs []error

	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http address is required"))
	}
	if c.MetricsAddr == "" {
		errs = append(errs, errors.New("metrics address is required"))
	}
	for name, raw := range map[string]string{
		"customer service url": c.CustomerServiceURL,
		"product service url":  c.ProductServiceURL,
	} {
		if err := validateServiceURL(raw); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if c.LookupTimeout <= 0 {
		errs = append(errs, fmt.Errorf("lookup timeout must be positive, got %s", c.LookupTimeout))
	}

	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("postgres dsn is required for postgres storage driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}

	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		errs = append(errs, errors.New("kafka topic is required when brokers are set"))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func validateServiceURL(raw string) error {
	if raw == "" {
		return errors.New("is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("host is required")
	}
	return nil
}
