package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/order-aggregator/internal/domain"
	"github.com/vladislavdragonenkov/order-aggregator/internal/messaging/kafka"
)

// initEventPublisher создаёт Kafka publisher, если брокеры заданы.
// Недоступная Kafka не мешает старту: сервис продолжит работу без событий.
func initEventPublisher(brokers []string, topic string, logger *log.Entry) (domain.OrderEventPublisher, *kafka.Producer) {
	if len(brokers) == 0 {
		logger.Info("kafka brokers не заданы, события заказов не публикуются")
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokers, logger.WithField("component", "kafka-producer"))
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil, nil
	}

	logger.WithFields(log.Fields{"brokers": brokers, "topic": topic}).Info("kafka producer initialized")
	return kafka.NewOrderEventPublisher(producer, topic), producer
}

// closeKafkaProducer закрывает producer, если он был создан.
func closeKafkaProducer(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
		return
	}
	logger.Info("kafka producer closed")
}
