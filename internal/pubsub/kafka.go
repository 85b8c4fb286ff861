package pubsub

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shopify/sarama"

	"github.com/spec-kit/community-bot/internal/config"
)

const sendTimeout = 5 * time.Second

type kafkaPublisher struct {
	producer sarama.SyncProducer
}

// NewKafkaPublisher connects a synchronous producer to the configured brokers.
func NewKafkaPublisher(cfg config.KafkaConfig) (Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	saramaCfg := sarama.NewConfig()
	saramaCfg.ClientID = cfg.ClientID
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.RequiredAcks = sarama.WaitForLocal
	saramaCfg.Producer.Timeout = sendTimeout
	saramaCfg.Producer.Retry.Max = 2
	saramaCfg.Net.DialTimeout = sendTimeout
	saramaCfg.Net.ReadTimeout = sendTimeout
	saramaCfg.Net.WriteTimeout = sendTimeout

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("sarama.NewSyncProducer: %w", err)
	}
	return newKafkaPublisher(producer), nil
}

func newKafkaPublisher(producer sarama.SyncProducer) *kafkaPublisher {
	return &kafkaPublisher{producer: producer}
}

func (p *kafkaPublisher) Publish(ctx context.Context, topic string, pack *Pack) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(pack.Msg),
	}
	if len(pack.Key) > 0 {
		msg.Key = sarama.ByteEncoder(pack.Key)
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("p.producer.SendMessage: %w", err)
	}
	return nil
}

func (p *kafkaPublisher) Close() error {
	return p.producer.Close()
}
