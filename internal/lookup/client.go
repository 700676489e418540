package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/order-aggregator/internal/metrics"
)

const (
	// DefaultTimeout — верхняя граница одного обращения к внешнему сервису.
	DefaultTimeout = 5 * time.Second

	maxBodySize     = 1 << 20
	requestIDHeader = "X-Request-Id"
)

// Outcome — результат обращения к внешнему сервису.
type Outcome int

const (
	// OutcomeFound — ресурс найден, Payload содержит валидный JSON.
	OutcomeFound Outcome = iota + 1
	// OutcomeNotFound — сервис ответил 404.
	OutcomeNotFound
	// OutcomeUnavailable — транспортная ошибка, таймаут, неожиданный статус или нечитаемое тело.
	OutcomeUnavailable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFound:
		return metrics.OutcomeFound
	case OutcomeNotFound:
		return metrics.OutcomeNotFound
	case OutcomeUnavailable:
		return metrics.OutcomeUnavailable
	default:
		return "unknown"
	}
}

// Result описывает исход Fetch. Err заполнен только для OutcomeUnavailable.
type Result struct {
	Outcome Outcome
	Payload json.RawMessage
	Err     error
}

// Client выполняет одиночные GET-запросы к внешним сервисам без повторов.
// Безопасен для конкурентного использования.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	metrics    *metrics.OrderMetrics
	logger     *log.Entry
}

// NewClient создаёт клиента с фиксированным таймаутом. timeout <= 0 заменяется на DefaultTimeout.
func NewClient(timeout time.Duration, m *metrics.OrderMetrics, logger *log.Entry) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = log.WithField("component", "lookup-client")
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
		metrics:    m,
		logger:     logger,
	}
}

// Fetch запрашивает baseURL+resourcePath.
// Отмена ctx вызывающей стороной не прерывает запрос: используются только значения
// контекста (request id), а время ограничено таймаутом клиента.
func (c *Client) Fetch(ctx context.Context, baseURL, resourcePath string) Result {
	target := targetOf(resourcePath)
	url := strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(resourcePath, "/")

	start := time.Now()
	result := c.do(ctx, url)
	duration := time.Since(start)

	c.metrics.RecordLookup(target, result.Outcome.String(), duration)

	entry := c.logger.WithFields(log.Fields{
		"target":      target,
		"url":         url,
		"outcome":     result.Outcome.String(),
		"duration_ms": duration.Milliseconds(),
	})
	if result.Outcome == OutcomeUnavailable {
		entry.WithError(result.Err).Warn("downstream lookup failed")
	} else {
		entry.Debug("downstream lookup done")
	}

	return result
}

func (c *Client) do(ctx context.Context, url string) Result {
	if ctx == nil {
		ctx = context.Background()
	}
	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return unavailable(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		req.Header.Set(requestIDHeader, reqID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return unavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return Result{Outcome: OutcomeNotFound}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return unavailable(fmt.Errorf("unexpected status code %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return unavailable(fmt.Errorf("read response body: %w", err))
	}
	if !json.Valid(body) {
		return unavailable(errors.New("response body is not valid JSON"))
	}

	return Result{Outcome: OutcomeFound, Payload: json.RawMessage(body)}
}

func unavailable(err error) Result {
	return Result{Outcome: OutcomeUnavailable, Err: err}
}

// targetOf возвращает первый сегмент пути ("customers", "products") для меток метрик.
func targetOf(resourcePath string) string {
	trimmed := strings.TrimLeft(resourcePath, "/")
	if idx := strings.IndexByte(trimmed, '/'); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
