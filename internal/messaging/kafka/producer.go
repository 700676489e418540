package kafka

import (
	"fmt"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// Producer — синхронный Kafka producer с подтверждением от всех in-sync реплик.
type Producer struct {
	producer sarama.SyncProducer
	logger   *log.Entry
}

const (
	// публикация идёт синхронно внутри запроса на запись, поэтому таймауты короткие
	netTimeout     = 2 * time.Second
	produceTimeout = 2 * time.Second
	maxRetries     = 2
	retryBackoff   = 100 * time.Millisecond
)

func newProducerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.ClientID = "order-aggregator"
	config.Net.DialTimeout = netTimeout
	config.Net.ReadTimeout = netTimeout
	config.Net.WriteTimeout = netTimeout
	config.Net.MaxOpenRequests = 1 // требование idempotent producer
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Timeout = produceTimeout
	config.Producer.Retry.Max = maxRetries
	config.Producer.Retry.Backoff = retryBackoff
	config.Producer.Return.Successes = true
	config.Producer.Idempotent = true
	config.Metadata.Retry.Max = maxRetries
	config.Metadata.Retry.Backoff = retryBackoff
	return config
}

// NewProducer подключается к брокерам и создаёт idempotent producer.
func NewProducer(brokers []string, logger *log.Entry) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are not configured")
	}

	producer, err := sarama.NewSyncProducer(brokers, newProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewProducerFromClient(producer, logger), nil
}

// NewProducerFromClient оборачивает готовый sarama.SyncProducer (в тестах mocks.SyncProducer).
func NewProducerFromClient(producer sarama.SyncProducer, logger *log.Entry) *Producer {
	if logger == nil {
		logger = log.WithField("component", "kafka-producer")
	}
	return &Producer{producer: producer, logger: logger}
}

// Send отправляет сообщение и ждёт подтверждения брокера.
func (p *Producer) Send(topic, key string, value []byte, headers map[string]string) error {
	msg := &sarama.ProducerMessage{
		Topic:     topic,
		Key:       sarama.StringEncoder(key),
		Value:     sarama.ByteEncoder(value),
		Timestamp: time.Now().UTC(),
	}
	for name, v := range headers {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte(name), Value: []byte(v)})
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.WithError(err).WithFields(log.Fields{
			"topic": topic,
			"key":   key,
		}).Error("failed to send message to kafka")
		return fmt.Errorf("send message to %s: %w", topic, err)
	}

	p.logger.WithFields(log.Fields{
		"topic":     topic,
		"key":       key,
		"partition": partition,
		"offset":    offset,
	}).Debug("message sent to kafka")
	return nil
}

// Close закрывает producer, дожидаясь отправки буфера.
func (p *Producer) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}
