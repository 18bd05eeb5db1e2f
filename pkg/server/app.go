package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"FinCapture/internal/usecase"
	"FinCapture/pkg/config"
	xhttp "FinCapture/pkg/http"
	pkgkafka "FinCapture/pkg/kafka"
	"FinCapture/pkg/logger"
	"FinCapture/pkg/queue"
)

// Deps are the components an App runs. Consumer, Ingest and Queue are nil
// unless their backend is configured.
type Deps struct {
	Config    *config.Config
	Logger    *logger.Logger
	Collector *usecase.CaptureCollector
	Consumer  *pkgkafka.Consumer
	Ingest    *usecase.KafkaCaptureHandler
	Queue     *queue.RedisQueue
	HTTP      *xhttp.Server
}

// App encapsulates the entire application lifecycle.
type App struct {
	Deps
}

func New(d Deps) *App {
	return &App{Deps: d}
}

// Start launches every configured component without blocking.
func (a *App) Start(ctx context.Context) error {
	if a.Consumer != nil && a.Ingest != nil {
		a.Consumer.RegisterHandler(a.Ingest)
		if err := a.Consumer.Start(); err != nil {
			return err
		}
		a.Logger.Info("kafka consumer started", logger.String("topic", a.Ingest.Topic()))
	}

	if a.Queue != nil {
		if err := a.Queue.Start(); err != nil {
			return err
		}
		a.Logger.Info("merge queue started")
	}

	if err := a.Collector.Start(ctx); err != nil {
		return err
	}
	a.Logger.Info("capture scheduler started",
		logger.String("backend", a.Collector.Processor().Backend()),
		logger.Int("categories", len(a.Collector.Scheduler().Loops())),
	)

	if a.Config.Server.Enabled && a.HTTP != nil {
		if err := a.HTTP.Start(); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown stops intake first, then drains consumers and workers.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error

	if a.Config.Server.Enabled && a.HTTP != nil {
		if err := a.HTTP.Stop(ctx); err != nil {
			a.Logger.Error("http shutdown error", logger.Error(err))
			errs = append(errs, err)
		}
	}

	if err := a.Collector.Shutdown(ctx); err != nil {
		a.Logger.Warn("collector stop error", logger.Error(err))
		errs = append(errs, err)
	}

	if a.Queue != nil {
		if err := a.Queue.Stop(ctx); err != nil {
			a.Logger.Warn("merge queue stop error", logger.Error(err))
			errs = append(errs, err)
		}
	}

	if a.Consumer != nil {
		if err := a.Consumer.Stop(ctx); err != nil {
			a.Logger.Warn("kafka consumer stop error", logger.Error(err))
			errs = append(errs, err)
		}
	}

	a.Logger.Info("shutdown complete")
	return errors.Join(errs...)
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
		defer cancel()
		_ = a.Shutdown(shutdownCtx)
		return err
	}

	<-ctx.Done()
	a.Logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()
	return a.Shutdown(shutdownCtx)
}

func (a *App) shutdownTimeout() time.Duration {
	if t := a.Config.Server.ShutdownTimeout; t > 0 {
		return t
	}
	return 10 * time.Second
}
