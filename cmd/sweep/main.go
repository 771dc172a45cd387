package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/dms/internal/config"
	"github.com/vladislavdragonenkov/dms/internal/metrics"
	"github.com/vladislavdragonenkov/dms/internal/service/lifecycle"
	"github.com/vladislavdragonenkov/dms/internal/storage/postgres"
)

const defaultTimeout = 5 * time.Minute

// Одноразовый прогон lifecycle sweep'а: для cron или ручного запуска при
// отставании планировщика.
func main() {
	var batchSize int
	flag.IntVar(&batchSize, "batch", 0, "domains per batch (0=config default)")
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	logger := log.WithField("component", "sweep-cli")

	cfg, err := config.Load()
	if err != nil {
		fail("load config: %v", err)
	}
	if cfg.PostgresDSN == "" {
		fail("DMS_POSTGRES_DSN is required")
	}
	if batchSize <= 0 {
		batchSize = cfg.SweepBatchSize
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	store, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		fail("open postgres store: %v", err)
	}
	defer store.Close()

	domains := postgres.NewDomainRepository(store)
	service := lifecycle.NewService(
		domains,
		postgres.NewOutboxRepository(store),
		postgres.NewTimelineRepository(store),
		lifecycle.NewMachine(cfg.Policy()),
		logger,
		metrics.NewProvisioningMetrics(),
	)
	scheduler := lifecycle.NewScheduler(domains, service,
		lifecycle.WithLogger(logger),
		lifecycle.WithBatchSize(batchSize),
	)

	advanced, err := scheduler.SweepOnce(ctx, time.Now().UTC())
	if err != nil {
		fail("sweep failed after advancing %d domains: %v", advanced, err)
	}
	fmt.Printf("sweep ok: advanced=%d\n", advanced)
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
