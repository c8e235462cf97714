package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

type PostgresConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
}

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	MaxRetries  int
	DialTimeout int
	Timeout     int
	Prefix      string
}

type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
	Prefix          string
}

type GatewayConfig struct {
	BaseURL     string
	APIKey      string
	CallbackURL string
	Currency    string
	Timeout     time.Duration
}

type WebhookConfig struct {
	Secret           string
	RequireSignature bool
	// TimestampTolerance bounds how stale a webhook timestamp may be.
	TimestampTolerance time.Duration
}

type AppConfig struct {
	Port     string
	Postgres PostgresConfig
	Redis    RedisConfig
	S3       S3Config
	Gateway  GatewayConfig
	Webhook  WebhookConfig

	StorageDriver     string // "local" or "s3"
	ExportDir         string
	FilesPublicPrefix string
	ExternalURL       string
	ExportPrefix      string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func mustAtoi(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int value %q: %v", s, err)
	}
	return i
}

func mustBool(s string) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		log.Fatalf("invalid bool value %q: %v", s, err)
	}
	return b
}

func Load() AppConfig {
	return AppConfig{
		Port: getenv("APP_PORT", "8020"),
		Postgres: PostgresConfig{
			Host:         getenv("PG_HOST", "127.0.0.1"),
			Port:         mustAtoi(getenv("PG_PORT", "5432")),
			User:         getenv("PG_USER", "root"),
			Password:     getenv("PG_PASSWORD", "hello-world"),
			DBName:       getenv("PG_DB", "eduflow"),
			SSLMode:      getenv("PG_SSLMODE", "disable"),
			MaxOpenConns: mustAtoi(getenv("PG_MAX_OPEN_CONNS", "20")),
		},
		Redis: RedisConfig{
			Addr:        getenv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:    getenv("REDIS_PASSWORD", ""),
			DB:          mustAtoi(getenv("REDIS_DB", "0")),
			MaxRetries:  mustAtoi(getenv("REDIS_MAX_RETRIES", "5")),
			DialTimeout: mustAtoi(getenv("REDIS_DIAL_TIMEOUT", "10")),
			Timeout:     mustAtoi(getenv("REDIS_TIMEOUT", "5")),
			Prefix:      getenv("REDIS_PREFIX", "eduflow_cache_"),
		},
		S3: S3Config{
			Endpoint:        getenv("S3_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getenv("S3_ACCESS_KEY", "minio"),
			SecretAccessKey: getenv("S3_SECRET_KEY", "minio123"),
			Bucket:          getenv("S3_BUCKET", "exports"),
			Region:          getenv("S3_REGION", "us-east-1"),
			UseSSL:          mustBool(getenv("S3_USE_SSL", "false")),
			Prefix:          getenv("S3_PREFIX", ""),
		},
		Gateway: GatewayConfig{
			BaseURL:     getenv("GATEWAY_BASE_URL", ""),
			APIKey:      getenv("GATEWAY_API_KEY", ""),
			CallbackURL: getenv("GATEWAY_CALLBACK_URL", ""),
			Currency:    getenv("GATEWAY_CURRENCY", "ZMW"),
			Timeout:     time.Duration(mustAtoi(getenv("GATEWAY_TIMEOUT", "15"))) * time.Second,
		},
		Webhook: WebhookConfig{
			Secret:             getenv("WEBHOOK_SECRET", ""),
			RequireSignature:   mustBool(getenv("WEBHOOK_REQUIRE_SIGNATURE", "false")),
			TimestampTolerance: time.Duration(mustAtoi(getenv("WEBHOOK_TIMESTAMP_TOLERANCE", "300"))) * time.Second,
		},
		StorageDriver:     getenv("STORAGE_DRIVER", "local"),
		ExportDir:         getenv("EXPORT_DIR", "./exports"),
		FilesPublicPrefix: getenv("FILES_PUBLIC_PREFIX", "/files"),
		ExternalURL:       getenv("EXTERNAL_URL", ""),
		ExportPrefix:      getenv("EXPORT_CACHE_PREFIX", "export"),
	}
}
