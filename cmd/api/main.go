package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/cafe-pos/internal/config"
	"github.com/ariefcatur/cafe-pos/internal/httpx"
	kafkax "github.com/ariefcatur/cafe-pos/internal/kafka"
	"github.com/ariefcatur/cafe-pos/internal/notify"
	"github.com/ariefcatur/cafe-pos/internal/orders"
	"github.com/ariefcatur/cafe-pos/internal/postgres"
	"github.com/ariefcatur/cafe-pos/internal/redisx"
	"github.com/ariefcatur/cafe-pos/internal/sqlite"
)

type store interface {
	orders.Store
	orders.SettingsSource
	Close() error
}

func openStore(ctx context.Context, cfg config.Config, defaults orders.TaxPolicy) (store, error) {
	if cfg.StoreDriver == "sqlite" {
		return sqlite.Open(ctx, cfg.SQLitePath, defaults)
	}
	return postgres.Open(ctx, cfg.PostgresDSN, defaults)
}

func main() {
	_ = godotenv.Load()
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	if err := run(log); err != nil {
		log.Error("api exited", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	decimal.MarshalJSONWithoutQuotes = true

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	log = log.With("service", cfg.ServiceName)
	rate, _ := cfg.TaxRate()
	loc, _ := cfg.Location()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	st, err := openStore(ctx, cfg, orders.TaxPolicy{Rate: rate, IncludedInPrice: cfg.DefaultTaxIncluded})
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	defer st.Close()

	// Notifier
	var notifier orders.Notifier = notify.Nop{}
	switch cfg.NotifyBroker {
	case "kafka":
		prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderEvents, 1024, log)
		prod.Start()
		defer func() {
			prod.Close() // flush & close writer
			prod.WaitClosed()
		}()
		notifier = &notify.Kafka{Producer: prod, Service: cfg.ServiceName, Log: log}
	case "amqp":
		mq, err := notify.DialAMQP(cfg.AMQPURL, cfg.ServiceName, log)
		if err != nil {
			return err
		}
		defer mq.Close()
		notifier = mq
	}

	svc := orders.NewService(st, st, notifier, log, orders.WithLocation(loc))
	h := &httpx.OrdersHandler{Service: svc, Log: log, Location: loc}

	// Redis is optional
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		if err := redisx.Ping(ctx, rdb); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		h.Cache = redisx.NewCache(rdb)
	}

	router := httpx.NewRouter(cfg.CORSOrigins)
	h.Register(router, httpx.Authenticate(cfg.JWTSecret))

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP listening", "addr", cfg.HTTPAddr, "store", cfg.StoreDriver, "notify", cfg.NotifyBroker)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	}
	log.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	return srv.Shutdown(ctx2)
}
