package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Redis      RedisConfig      `yaml:"redis"`
	StreetEats StreetEatsConfig `yaml:"streeteats"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                    string `yaml:"host"`
	Port                    int    `yaml:"port"`
	OrderUpdatedTopicName   string `yaml:"order_updated_topic_name"`
	PaymentUpdatedTopicName string `yaml:"payment_updated_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type StreetEatsConfig struct {
	HTTPAddr                string `yaml:"http_addr"`
	KafkaConsumerGroup      string `yaml:"kafka_consumer_group"`
	OrderSnapshotTTLSeconds int    `yaml:"order_snapshot_ttl_seconds"`

	// Налог в сотых долях процента (800 = 8%).
	TaxRateBps int `yaml:"tax_rate_bps"`

	SurpriseDailyLimit    int    `yaml:"surprise_daily_limit"`
	SurpriseGuestLifetime int    `yaml:"surprise_guest_lifetime"`
	QuotaTimezone         string `yaml:"quota_timezone"`

	NotifierHTTPAddr           string `yaml:"notifier_http_addr"`
	NotifierKafkaConsumerGroup string `yaml:"notifier_kafka_consumer_group"`
	NotifierFanoutConcurrency  int    `yaml:"notifier_fanout_concurrency"`

	StreamBufferSize int `yaml:"stream_buffer_size"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
