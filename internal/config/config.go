package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN          string `env:"DATABASE_DSN,required=true"`
	RedisURL             string `env:"REDIS_URL,required=true"`
	AMQPURL              string `env:"AMQP_URL"`
	S3Endpoint           string `env:"S3_ENDPOINT,required=true"`
	S3AccessKey          string `env:"S3_ACCESS_KEY,required=true"`
	S3SecretKey          string `env:"S3_SECRET_KEY,required=true"`
	S3Bucket             string `env:"S3_BUCKET,default=site-batches"`
	S3Region             string `env:"S3_REGION,default=us-east-1"`
	S3UseSSL             bool   `env:"S3_USE_SSL,default=false"`
	BatchTTLMinutes      int    `env:"BATCH_TTL_MINUTES,default=30"`
	SweepIntervalSeconds int    `env:"SWEEP_INTERVAL_SECONDS,default=60"`
	SweepLimit           int    `env:"SWEEP_LIMIT,default=100"`
	UploadRatePerSec     int    `env:"UPLOAD_RATE_PER_SEC,default=50"`
	MaxUploadSizeMB      int    `env:"MAX_UPLOAD_SIZE_MB,default=100"`
	APIPort              int    `env:"API_PORT,default=8080"`
	LogLevel             string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) BatchTTL() time.Duration {
	return time.Duration(c.BatchTTLMinutes) * time.Minute
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

func (c *Config) MaxUploadSizeBytes() int64 {
	return int64(c.MaxUploadSizeMB) << 20
}
