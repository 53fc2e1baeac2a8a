package output

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"github.com/chrisdamba/messforecast/internal/logging"
	"github.com/chrisdamba/messforecast/internal/models"
)

// NewSaramaProducer creates a synchronous producer for a comma separated broker list.
func NewSaramaProducer(brokerList string) (sarama.SyncProducer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 5
	saramaConfig.Producer.Retry.Backoff = 100 * time.Millisecond
	saramaConfig.Producer.Return.Successes = true // required by SyncProducer
	saramaConfig.Net.DialTimeout = 30 * time.Second
	saramaConfig.Net.ReadTimeout = 30 * time.Second
	saramaConfig.Net.WriteTimeout = 30 * time.Second

	brokers := strings.Split(brokerList, ",")
	for i := range brokers {
		brokers[i] = strings.TrimSpace(brokers[i])
	}

	producer, err := sarama.NewSyncProducer(brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Sarama producer: %w", err)
	}
	logging.Info().Strs("brokers", brokers).Msg("sarama producer created")
	return producer, nil
}

// KafkaSink publishes each snapshot as one message keyed by snapshot ID.
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaSink(producer sarama.SyncProducer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

func (k *KafkaSink) Name() string {
	return models.SinkKafka
}

func (k *KafkaSink) Append(ctx context.Context, snapshot models.ForecastSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if k.producer == nil {
		return fmt.Errorf("sarama producer is not initialized")
	}
	msg, err := encodeSnapshot(snapshot)
	if err != nil {
		return fmt.Errorf("error encoding snapshot: %w", err)
	}
	partition, offset, err := k.producer.SendMessage(&sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(snapshot.ID),
		Value: sarama.ByteEncoder(msg),
	})
	if err != nil {
		return fmt.Errorf("failed to send snapshot to topic %s: %w", k.topic, err)
	}
	logging.Debug().Str("topic", k.topic).Int32("partition", partition).Int64("offset", offset).Msg("snapshot published")
	return nil
}

func (k *KafkaSink) Close() error {
	if k.producer != nil {
		return k.producer.Close()
	}
	return nil
}
