package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/vladislavdragonenkov/dms/internal/domain"
)

// Config собирает настройки сервиса из окружения (префикс DMS_) с fallback
// на .env файл.
type Config struct {
	HTTPAddr    string `mapstructure:"HTTP_ADDR"`
	MetricsAddr string `mapstructure:"METRICS_ADDR"`

	PostgresDSN  string `mapstructure:"POSTGRES_DSN"`
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	RedisURL     string `mapstructure:"REDIS_URL"`

	SweepIntervalSeconds   int `mapstructure:"SWEEP_INTERVAL_SECONDS"`
	SweepBatchSize         int `mapstructure:"SWEEP_BATCH_SIZE"`
	OutboxPollIntervalMs   int `mapstructure:"OUTBOX_POLL_INTERVAL_MS"`
	OutboxBatchSize        int `mapstructure:"OUTBOX_BATCH_SIZE"`
	OutboxPublishAttempts  int `mapstructure:"OUTBOX_PUBLISH_ATTEMPTS"`
	SagaMaxAttempts        int `mapstructure:"SAGA_MAX_ATTEMPTS"`
	SagaInitialBackoffMs   int `mapstructure:"SAGA_INITIAL_BACKOFF_MS"`
	RegistrarTimeoutSec    int `mapstructure:"REGISTRAR_TIMEOUT_SECONDS"`
	EmailTimeoutSec        int `mapstructure:"EMAIL_TIMEOUT_SECONDS"`
	DNSTimeoutSec          int `mapstructure:"DNS_TIMEOUT_SECONDS"`
	PaymentTimeoutSec      int `mapstructure:"PAYMENT_TIMEOUT_SECONDS"`

	// Таблица политики жизненного цикла.
	GraceDays                int    `mapstructure:"GRACE_DAYS"`
	RedemptionDays           int    `mapstructure:"REDEMPTION_DAYS"`
	RegistryHoldDays         int    `mapstructure:"REGISTRY_HOLD_DAYS"`
	AuctionDays              int    `mapstructure:"AUCTION_DAYS"`
	RenewalDays              int    `mapstructure:"RENEWAL_DAYS"`
	RecoveryFeeBaseMinor     int64  `mapstructure:"RECOVERY_FEE_BASE_MINOR"`
	RecoveryFeeElevatedMinor int64  `mapstructure:"RECOVERY_FEE_ELEVATED_MINOR"`
	AuctionSurchargeMinor    int64  `mapstructure:"AUCTION_SURCHARGE_MINOR"`
	MonthlyFeeMinor          int64  `mapstructure:"MONTHLY_FEE_MINOR"`
	Currency                 string `mapstructure:"CURRENCY"`
}

// Load читает конфигурацию из окружения и .env.
func Load() (*Config, error) {
	viper.SetDefault("HTTP_ADDR", ":8080")
	viper.SetDefault("METRICS_ADDR", ":9090")
	viper.SetDefault("SWEEP_INTERVAL_SECONDS", 60)
	viper.SetDefault("SWEEP_BATCH_SIZE", 200)
	viper.SetDefault("OUTBOX_POLL_INTERVAL_MS", 1000)
	viper.SetDefault("OUTBOX_BATCH_SIZE", 100)
	viper.SetDefault("OUTBOX_PUBLISH_ATTEMPTS", 3)
	viper.SetDefault("SAGA_MAX_ATTEMPTS", 3)
	viper.SetDefault("SAGA_INITIAL_BACKOFF_MS", 100)
	viper.SetDefault("REGISTRAR_TIMEOUT_SECONDS", 30)
	viper.SetDefault("EMAIL_TIMEOUT_SECONDS", 20)
	viper.SetDefault("DNS_TIMEOUT_SECONDS", 15)
	viper.SetDefault("PAYMENT_TIMEOUT_SECONDS", 15)
	viper.SetDefault("GRACE_DAYS", domain.DefaultGraceDays)
	viper.SetDefault("REDEMPTION_DAYS", domain.DefaultRedemptionDays)
	viper.SetDefault("REGISTRY_HOLD_DAYS", domain.DefaultRegistryHoldDays)
	viper.SetDefault("AUCTION_DAYS", domain.DefaultAuctionDays)
	viper.SetDefault("RENEWAL_DAYS", domain.DefaultRenewalDays)
	viper.SetDefault("RECOVERY_FEE_BASE_MINOR", domain.DefaultRecoveryFeeBaseMinor)
	viper.SetDefault("RECOVERY_FEE_ELEVATED_MINOR", domain.DefaultRecoveryFeeElevatedMinor)
	viper.SetDefault("AUCTION_SURCHARGE_MINOR", domain.DefaultAuctionSurchargeMinor)
	viper.SetDefault("MONTHLY_FEE_MINOR", domain.DefaultMonthlyFeeMinor)
	viper.SetDefault("CURRENCY", domain.DefaultCurrency)

	viper.SetEnvPrefix("DMS")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// .env опционален, отсутствие файла не ошибка.
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Brokers возвращает список Kafka-брокеров из comma-separated строки.
func (c *Config) Brokers() []string {
	if c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	brokers := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	return brokers
}

// Policy собирает таблицу политики жизненного цикла из конфигурации.
func (c *Config) Policy() domain.LifecyclePolicy {
	return domain.LifecyclePolicy{
		GraceDays:                c.GraceDays,
		RedemptionDays:           c.RedemptionDays,
		RegistryHoldDays:         c.RegistryHoldDays,
		AuctionDays:              c.AuctionDays,
		RenewalDays:              c.RenewalDays,
		RecoveryFeeBaseMinor:     c.RecoveryFeeBaseMinor,
		RecoveryFeeElevatedMinor: c.RecoveryFeeElevatedMinor,
		AuctionSurchargeMinor:    c.AuctionSurchargeMinor,
		MonthlyFeeMinor:          c.MonthlyFeeMinor,
		Currency:                 c.Currency,
	}.Normalize()
}

// SweepInterval возвращает интервал между sweep-циклами.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// OutboxPollInterval возвращает интервал опроса outbox.
func (c *Config) OutboxPollInterval() time.Duration {
	return time.Duration(c.OutboxPollIntervalMs) * time.Millisecond
}
