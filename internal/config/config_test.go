package config

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/dms/internal/domain"
)

func TestConfig_Brokers(t *testing.T) {
	cases := []struct {
		raw  string
		want int
	}{
		{raw: "", want: 0},
		{raw: "localhost:9092", want: 1},
		{raw: "broker-1:9092, broker-2:9092", want: 2},
		{raw: " , ", want: 0},
	}
	for _, tc := range cases {
		cfg := Config{KafkaBrokers: tc.raw}
		if got := len(cfg.Brokers()); got != tc.want {
			t.Fatalf("brokers(%q) = %d, want %d", tc.raw, got, tc.want)
		}
	}
}

func TestConfig_PolicyNormalizesZeroValues(t *testing.T) {
	cfg := Config{Currency: "EUR", GraceDays: 10}

	policy := cfg.Policy()
	if policy.GraceDays != 10 {
		t.Fatalf("grace_days = %d, want 10", policy.GraceDays)
	}
	if policy.Currency != "EUR" {
		t.Fatalf("currency = %s, want EUR", policy.Currency)
	}
	// Незаданные значения подменяются дефолтами политики.
	if policy.RedemptionDays != domain.DefaultRedemptionDays {
		t.Fatalf("redemption_days = %d, want default %d", policy.RedemptionDays, domain.DefaultRedemptionDays)
	}
	if policy.MonthlyFeeMinor != domain.DefaultMonthlyFeeMinor {
		t.Fatalf("monthly_fee = %d, want default %d", policy.MonthlyFeeMinor, domain.DefaultMonthlyFeeMinor)
	}
}

func TestConfig_Intervals(t *testing.T) {
	cfg := Config{SweepIntervalSeconds: 30, OutboxPollIntervalMs: 250}

	if got := cfg.SweepInterval(); got != 30*time.Second {
		t.Fatalf("sweep interval = %s, want 30s", got)
	}
	if got := cfg.OutboxPollInterval(); got != 250*time.Millisecond {
		t.Fatalf("outbox poll interval = %s, want 250ms", got)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr == "" || cfg.MetricsAddr == "" {
		t.Fatalf("addresses are empty: %+v", cfg)
	}
	if cfg.SweepBatchSize <= 0 {
		t.Fatalf("sweep batch size = %d, want > 0", cfg.SweepBatchSize)
	}
}
