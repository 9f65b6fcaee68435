package mq

import (
	"unirun/internal/config"

	"github.com/IBM/sarama"
	"github.com/pkg/errors"
)

// Producer 消息投递
type Producer interface {
	SendMessage(topic, key, value string) error
	Close() error
}

// KafkaProducer 基于 sarama 同步生产者
type KafkaProducer struct {
	producer sarama.SyncProducer
}

// NewKafkaProducer 创建 Kafka 生产者
func NewKafkaProducer(cfg *config.KafkaConfig) (*KafkaProducer, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, NewSaramaConfig())
	if err != nil {
		return nil, errors.Wrap(err, "创建 Kafka 生产者失败")
	}
	return NewKafkaProducerWith(producer), nil
}

// NewKafkaProducerWith 包装已有的 SyncProducer，测试中传入 mocks.SyncProducer
func NewKafkaProducerWith(producer sarama.SyncProducer) *KafkaProducer {
	return &KafkaProducer{producer: producer}
}

func NewSaramaConfig() *sarama.Config {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll // 等待所有副本确认
	kafkaConfig.Producer.Retry.Max = 3
	kafkaConfig.Producer.Return.Successes = true // SyncProducer 必须开启
	return kafkaConfig
}

// SendMessage 发送消息到 Kafka，同一订单的事件使用订单号作为 key 落在同一分区
func (p *KafkaProducer) SendMessage(topic, key, value string) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.StringEncoder(value),
	}

	_, _, err := p.producer.SendMessage(msg)
	return err
}

func (p *KafkaProducer) Close() error {
	if p.producer == nil {
		return nil
	}
	return p.producer.Close()
}
