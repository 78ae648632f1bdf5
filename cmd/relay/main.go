package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/cafe-pos/internal/config"
	kafkax "github.com/ariefcatur/cafe-pos/internal/kafka"
	"github.com/ariefcatur/cafe-pos/internal/notify"
	"github.com/ariefcatur/cafe-pos/internal/orders"
	"github.com/ariefcatur/cafe-pos/internal/redisx"
	"github.com/ariefcatur/cafe-pos/internal/relay"
)

const retryDelay = 5 * time.Second

func main() {
	_ = godotenv.Load()
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("config", "error", err)
		os.Exit(1)
	}
	log = log.With("service", cfg.ServiceName+"-relay")
	if cfg.RedisAddr == "" {
		log.Error("relay needs REDIS_ADDR")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		log.Error("redis", "error", err)
		os.Exit(1)
	}

	svc := &relay.Service{
		Dedup: redisx.NewDedup(rdb, "relay"),
		Rooms: redisx.NewRooms(rdb),
		Log:   log,
	}

	switch cfg.NotifyBroker {
	case "kafka":
		cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.RelayGroup, orders.TopicOrderEvents, cfg.RelayWorkers, log)
		log.Info("relay consumer started", "group", cfg.RelayGroup, "topic", orders.TopicOrderEvents, "workers", cfg.RelayWorkers)
		err = cons.Start(ctx, func(ctx context.Context, m kafkago.Message) error {
			return svc.Handle(ctx, m.Value)
		})
	case "amqp":
		err = consumeAMQP(ctx, cfg, svc, log)
	default:
		log.Info("NOTIFY_BROKER has no events to relay", "broker", cfg.NotifyBroker)
		return
	}
	if err != nil {
		log.Error("consumer exit", "error", err)
		os.Exit(1)
	}
	log.Info("relay stopped")
}

// consumeAMQP reconnects until ctx ends.
func consumeAMQP(ctx context.Context, cfg config.Config, svc *relay.Service, log *slog.Logger) error {
	for {
		mq, err := notify.DialAMQP(cfg.AMQPURL, cfg.ServiceName+"-relay", log)
		if err == nil {
			log.Info("relay consumer started", "exchange", notify.Exchange, "queue", cfg.RelayGroup)
			err = mq.Consume(ctx, cfg.RelayGroup, svc.Handle)
			_ = mq.Close()
		}
		if ctx.Err() != nil {
			return nil
		}
		log.Warn("amqp consumer stopped, retrying", "error", err, "in", retryDelay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(retryDelay):
		}
	}
}
