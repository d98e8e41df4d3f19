package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/suPer8Hu/folio/internal/config"
	applog "github.com/suPer8Hu/folio/internal/log"
	"github.com/suPer8Hu/folio/internal/store/rabbitmq"
	"github.com/suPer8Hu/folio/internal/store/redisstore"
)

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

// The worker mirrors committed admin activity from the queue into a capped
// redis list, for dashboards that should not query the content database.
func main() {
	cfg := config.Load()
	applog.Init(cfg.Env)
	if cfg.RabbitURL == "" || cfg.RedisAddr == "" {
		log.Fatal().Msg("worker needs RABBIT_URL and REDIS_ADDR")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := redisstore.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connect")
	}
	defer rdb.Close()
	feed := redisstore.NewActivityFeed(rdb, cfg.ActivityFeedKey, redisstore.DefaultFeedSize)

	concurrency := workerConcurrency()
	consumer, err := rabbitmq.NewConsumer(cfg.RabbitURL, cfg.RabbitQueue, concurrency)
	if err != nil {
		log.Fatal().Err(err).Msg("rabbitmq consumer")
	}
	defer consumer.Close()

	log.Info().Str("queue", cfg.RabbitQueue).Int("concurrency", concurrency).Msg("worker started")
	err = consumer.Run(ctx, func(ctx context.Context, m rabbitmq.ActivityMessage) error {
		body, err := json.Marshal(m)
		if err != nil {
			return err
		}
		fresh, err := feed.Push(ctx, m.EventID, body)
		if err != nil {
			return err
		}
		if !fresh {
			log.Debug().Str("event_id", m.EventID).Msg("duplicate activity skipped")
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("worker stopped")
		return
	}
	log.Info().Msg("worker shutting down")
}
