package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/suPer8Hu/folio/internal/ai"
	"github.com/suPer8Hu/folio/internal/auth"
	"github.com/suPer8Hu/folio/internal/blog"
	"github.com/suPer8Hu/folio/internal/config"
	"github.com/suPer8Hu/folio/internal/contact"
	"github.com/suPer8Hu/folio/internal/content"
	"github.com/suPer8Hu/folio/internal/db"
	"github.com/suPer8Hu/folio/internal/gateway"
	"github.com/suPer8Hu/folio/internal/httpapi"
	"github.com/suPer8Hu/folio/internal/httpapi/handlers"
	"github.com/suPer8Hu/folio/internal/httpapi/middleware"
	applog "github.com/suPer8Hu/folio/internal/log"
	"github.com/suPer8Hu/folio/internal/metrics"
	"github.com/suPer8Hu/folio/internal/ratelimit"
	"github.com/suPer8Hu/folio/internal/store/rabbitmq"
	"github.com/suPer8Hu/folio/internal/store/redisstore"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

func main() {
	cfg := config.Load()
	applog.Init(cfg.Env)
	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	models := append(content.Models(), &ratelimit.Entry{}, &contact.Submission{})
	models = append(models, blog.Models()...)
	if err := db.Migrate(gdb, models...); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	tokens := auth.NewService(auth.Options{
		Username: cfg.AdminUsername,
		Password: cfg.AdminPassword,
		Secret:   cfg.JWTSecret,
		TTL:      cfg.TokenTTL,
	})

	var pub content.EventPublisher
	if cfg.RabbitURL != "" {
		p, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			log.Fatal().Err(err).Msg("rabbitmq publisher")
		}
		defer p.Close()
		pub = p
		log.Info().Str("queue", cfg.RabbitQueue).Msg("publishing admin activity")
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb, err = redisstore.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatal().Err(err).Msg("redis connect")
		}
		defer rdb.Close()
	}

	repo := content.NewRepo(gdb)
	mutator := content.NewMutator(repo, pub)
	h := &handlers.Handler{
		Contacts: contact.NewService(gdb),
		Blog:     blog.NewService(gdb, pub),
		Content:  repo,
		Mutator:  mutator,
		Tokens:   tokens,
		Metrics:  m,
	}
	if rdb != nil {
		h.Feed = redisstore.NewActivityFeed(rdb, cfg.ActivityFeedKey, redisstore.DefaultFeedSize)
	}

	gw := gateway.New(gateway.Deps{
		Limiter:      newLimiter(ctx, cfg, gdb, rdb),
		Tokens:       tokens,
		Completer:    ai.NewAdapter(newRegistry(cfg), ai.RetryPolicy{MaxAttempts: cfg.ProviderMaxAttempts, Delay: cfg.ProviderRetryDelay}, cfg.ProviderTimeout),
		Mutator:      mutator,
		Metrics:      m,
		SystemPrompt: cfg.SystemPrompt,
		Mode:         cfg.CommandMode,
	})
	h.Gateway = gw

	// token issuance: one per 6s per IP, bursts of 5
	throttle := middleware.NewThrottle(rate.Every(6*time.Second), 5, 10*time.Minute)
	go throttle.Run(ctx)
	// anonymous comments: one per 30s per IP, bursts of 3
	comments := middleware.NewThrottle(rate.Every(30*time.Second), 3, 10*time.Minute)
	go comments.Run(ctx)

	r := httpapi.NewRouter(httpapi.Deps{
		Cfg:             cfg,
		Handler:         h,
		Tokens:          tokens,
		Metrics:         m,
		Throttle:        throttle,
		CommentThrottle: comments,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Str("mode", cfg.CommandMode).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}

func newRegistry(cfg config.Config) *ai.Registry {
	reg := ai.NewRegistry()
	must := func(err error) {
		if err != nil {
			log.Fatal().Err(err).Msg("register provider")
		}
	}

	for _, model := range []string{ai.ModelGPT35, ai.ModelGPT4} {
		p := ai.NewOpenAIProvider("openai", cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, model)
		must(reg.Register(model, p, ai.DefaultPricing[model]))
	}

	ds := ai.NewOpenAIProvider("deepseek", cfg.DeepSeekBaseURL, cfg.DeepSeekAPIKey, cfg.DeepSeekModel)
	must(reg.Register(ai.ModelDeepSeek, ds, ai.DefaultPricing[ai.ModelDeepSeek]))

	if cfg.OllamaBaseURL != "" {
		ol := ai.NewOllamaProvider(cfg.OllamaBaseURL, cfg.OllamaModel)
		must(reg.Register(ai.ModelOllama, ol, ai.DefaultPricing[ai.ModelOllama]))
	}

	log.Info().Strs("models", reg.Models()).Msg("model registry ready")
	return reg
}

// newLimiter prefers redis when connected and falls back to the SQL table,
// which is swept of stale windows in the background.
func newLimiter(ctx context.Context, cfg config.Config, gdb *gorm.DB, rdb *redis.Client) ratelimit.Limiter {
	opts := ratelimit.Options{Max: cfg.RateLimitMax, Window: cfg.RateLimitWindow}

	if rdb != nil {
		log.Info().Str("addr", cfg.RedisAddr).Msg("rate limiting via redis")
		return ratelimit.NewRedisLimiter(rdb, "", opts)
	}

	l := ratelimit.NewStoreLimiter(gdb, opts)
	go func() {
		t := time.NewTicker(cfg.RateLimitWindow)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				n, err := l.Sweep(ctx)
				if err != nil {
					log.Warn().Err(err).Msg("rate limit sweep failed")
				} else if n > 0 {
					log.Debug().Int64("rows", n).Msg("rate limit sweep")
				}
			}
		}
	}()
	return l
}
