package app

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/dms/internal/config"
	healthcheck "github.com/vladislavdragonenkov/dms/internal/health"
	httptransport "github.com/vladislavdragonenkov/dms/internal/transport/http"
	"github.com/vladislavdragonenkov/dms/internal/version"
)

// Run собирает зависимости и запускает API-сервер, metrics-сервер и фоновые
// воркеры. Блокируется до отмены ctx или фатальной ошибки сервера.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := log.WithField("component", "app")
	logger.Info(version.String())

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		deps.Scheduler.Run(workerCtx)
	}()
	if deps.OutboxWorker != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			deps.OutboxWorker.Run(workerCtx)
		}()
	}

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, deps.Health)

	handler := httptransport.NewHandler(
		deps.Orders,
		deps.Runs,
		deps.Domains,
		deps.Timeline,
		deps.Orchestrator,
		deps.Lifecycle,
		deps.Calculator,
		logger.WithField("component", "http"),
	)
	apiSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httptransport.NewRouter(handler),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("API сервер слушает %s", cfg.HTTPAddr)
		errCh <- apiSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем сервер")
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(metricsSrv, logger)
		cancelWorkers()
		wg.Wait()
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		cancelWorkers()
		wg.Wait()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
