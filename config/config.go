package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Logger   LoggerConfig   `yaml:"logger"`
	Dispatch DispatchConfig `yaml:"dispatch"`
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
	DeliveryEventsTopicName string `yaml:"delivery_events_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" | "text"
	File   string `yaml:"file"`
}

type DispatchConfig struct {
	HTTPAddr           string   `yaml:"http_addr"`
	JWTSecret          string   `yaml:"jwt_secret"`
	AllowedOrigins     []string `yaml:"allowed_origins"`
	KafkaConsumerGroup string   `yaml:"kafka_consumer_group"`

	RecipientLinkBaseURL string `yaml:"recipient_link_base_url"`
	SessionLinkBaseURL   string `yaml:"session_link_base_url"`

	SlugTTLHours           int `yaml:"slug_ttl_hours"`
	OTPTTLMinutes          int `yaml:"otp_ttl_minutes"`
	OTPRequestsPerWindow   int `yaml:"otp_requests_per_window"`
	OTPWindowSeconds       int `yaml:"otp_window_seconds"`
	SessionCacheTTLSeconds int `yaml:"session_cache_ttl_seconds"`

	NotifyWorkers   int `yaml:"notify_workers"`
	NotifyQueueSize int `yaml:"notify_queue_size"`

	// Provider kind per channel: "log" | "webhook" | "noop".
	EmailProvider     string `yaml:"email_provider"`
	EmailWebhookURL   string `yaml:"email_webhook_url"`
	EmailWebhookToken string `yaml:"email_webhook_token"`
	SMSProvider       string `yaml:"sms_provider"`
	SMSWebhookURL     string `yaml:"sms_webhook_url"`
	SMSWebhookToken   string `yaml:"sms_webhook_token"`

	WorkerSweepIntervalSeconds int    `yaml:"worker_sweep_interval_seconds"`
	WorkerHTTPAddr             string `yaml:"worker_http_addr"`
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
