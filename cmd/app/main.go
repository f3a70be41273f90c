package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nurbekd/poscore/internal/application/register"
	"github.com/nurbekd/poscore/internal/config"
	"github.com/nurbekd/poscore/internal/events"
	"github.com/nurbekd/poscore/internal/httpapi"
	"github.com/nurbekd/poscore/internal/observability"
	"github.com/nurbekd/poscore/internal/pkg/breaker"
	"github.com/nurbekd/poscore/internal/pkg/retry"
	"github.com/nurbekd/poscore/internal/storage"
)

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gateway := buildGateway(ctx, cfg, logger)

	var publisher events.Publisher = events.Noop{}
	if cfg.Kafka.Enabled() {
		kp := events.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic, breaker.New(cfg.Breaker), logger)
		defer kp.Close()
		publisher = kp
		logger.Info("settlement event feed enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	}

	metrics := observability.NewInmem(1024)

	reg := register.New(gateway, publisher, metrics, logger, register.Options{
		Retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		CacheCap:  cfg.CacheCap,
	})
	defer reg.Close()

	// No operation is accepted until the last snapshots are read back.
	if err := retry.Do(ctx, cfg.Retry, func() error { return reg.Load(ctx) }); err != nil {
		logger.Fatal("initial load failed", zap.Error(err))
	}

	server := httpapi.New(reg, logger, metrics)
	logger.Info("listening", zap.String("addr", cfg.HTTPAddr))
	if err := server.ListenAndServe(ctx, cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("server stopped")
}

func buildGateway(ctx context.Context, cfg config.Config, logger *zap.Logger) storage.Gateway {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		logger.Warn("using in-memory storage, state will not survive a restart")
		return storage.NewMemory()

	case config.DriverPostgres:
		var gw *storage.Postgres
		err := retry.Do(ctx, cfg.Retry, func() error {
			pool, err := storage.Connect(ctx, cfg.DSN())
			if err != nil {
				logger.Warn("postgres connect failed", zap.Error(err))
				return err
			}
			gw = storage.NewPostgres(pool)
			return gw.Migrate(ctx)
		})
		if err != nil {
			logger.Fatal("postgres gateway unavailable", zap.Error(err))
		}
		return gw

	default:
		gw, err := storage.NewFile(cfg.DataDir)
		if err != nil {
			logger.Fatal("file gateway unavailable",
				zap.String("dir", cfg.DataDir),
				zap.Error(err),
			)
		}
		return gw
	}
}
