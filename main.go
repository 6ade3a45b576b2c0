package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cbsinteractive/fragment-window/config"
	"github.com/cbsinteractive/fragment-window/event"
	"github.com/cbsinteractive/fragment-window/service"
	"github.com/cbsinteractive/fragment-window/service/exceptions"
	"github.com/gorilla/handlers"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := cfg.Log.Logger()
	if err != nil {
		log.Fatal(err)
	}

	reporter, err := exceptions.New(cfg.SentryDSN, cfg.Env, logger)
	if err != nil {
		logger.Fatalf("creating exception reporter: %v", err)
	}

	bus, closeBus, err := newBus(cfg, logger)
	if err != nil {
		logger.Fatalf("creating event bus: %v", err)
	}
	defer closeBus()
	logEvents(bus, logger)

	svc := service.NewServer(bus, logger, reporter)
	defer svc.Sessions.Close()

	var h http.Handler = svc
	h = handlers.CombinedLoggingHandler(logger.WriterLevel(logrus.DebugLevel), h)
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(logger), handlers.PrintRecoveryStack(true))(h)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: h}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.WithError(err).Error("shutting down")
		}
	}()

	logger.WithFields(logrus.Fields{"addr": cfg.HTTPAddr, "bus": cfg.Bus}).Info("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server encountered a fatal error: ", err)
	}
}

func newBus(cfg *config.Config, logger *logrus.Logger) (event.Bus, func(), error) {
	if strings.ToLower(cfg.Bus) != config.BusRedis {
		return event.NewLocal(), func() {}, nil
	}
	b, err := event.NewRedis(&event.RedisOptions{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		Password: cfg.Redis.Password,
		Prefix:   cfg.Redis.ChannelPrefix,
		Logger:   logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return b, func() { b.Close() }, nil
}

// logEvents writes every published event to the debug log.
func logEvents(bus event.Bus, logger logrus.FieldLogger) {
	for _, k := range event.Kinds {
		bus.Subscribe(k, func(e event.Event) {
			logger.WithFields(logrus.Fields{
				"kind":     e.Kind,
				"session":  e.Session,
				"window":   e.Window,
				"position": e.Position,
			}).Debug("event")
		})
	}
}
