package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	xhttp "github.com/saltymaverick/Chloe-alpha-sub002/pkg/http"
	pkgkafka "github.com/saltymaverick/Chloe-alpha-sub002/pkg/kafka"
	applogger "github.com/saltymaverick/Chloe-alpha-sub002/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	log        *applogger.Logger
	httpServer *xhttp.Server
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
}

// New creates a new App. consumer may be nil when Kafka ingestion is disabled.
func New(
	l *applogger.Logger,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
) *App {
	return &App{
		log:        l,
		httpServer: httpServer,
		consumer:   consumer,
		kh:         kh,
	}
}

// Run starts the consumer and the HTTP server and blocks until ctx is done or
// the process is interrupted.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(); err != nil {
			return err
		}
		a.log.Info("kafka ingestion enabled", applogger.String("topic", a.kh.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown stops intake first, then the HTTP server. Publishers and stores are
// closed by the injector cleanup.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.httpServer.ShutdownTimeout())
	defer cancel()

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
		return err
	}

	a.log.Info("shutdown complete")
	return nil
}
