package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"furniture-order-service/internal/config"
	httpapi "furniture-order-service/internal/controllers/http"
	"furniture-order-service/internal/infra"
	"furniture-order-service/internal/infra/broadcast"
	"furniture-order-service/internal/infra/cache"
	"furniture-order-service/internal/infra/database"
	"furniture-order-service/internal/infra/events"
	"furniture-order-service/internal/infra/kafka"
	"furniture-order-service/internal/infra/rabbitmq"
	"furniture-order-service/internal/infra/telr"
	"furniture-order-service/internal/logging"
	"furniture-order-service/internal/metrics"
	"furniture-order-service/internal/repository"
	"furniture-order-service/internal/repository/gormrepo"
	"furniture-order-service/internal/repository/memory"
	"furniture-order-service/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	logging.Setup(cfg.LogLevel)

	store, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("storage: connect")
	}

	hub := broadcast.NewHub(originChecker(cfg.CORSOrigins))
	defer hub.Close()

	publishers := events.Fanout{hub}
	switch cfg.Events.Broker {
	case "rabbitmq":
		pub, err := rabbitmq.NewPublisher(cfg.Events.RabbitURL, cfg.Events.RabbitExchange)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init rabbitmq publisher")
		}
		defer pub.Close()
		publishers = append(publishers, pub)
	case "kafka":
		pub, err := kafka.NewPublisher(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init kafka publisher")
		}
		defer pub.Close()
		publishers = append(publishers, pub)
	}

	m := metrics.New()
	orders := services.NewOrderService(store, services.NewPricer(services.PricingRules{
		TaxRate:               cfg.Pricing.TaxRate,
		DeliveryFee:           cfg.Pricing.DeliveryFee,
		InstallationFee:       cfg.Pricing.InstallationFee,
		FreeDeliveryThreshold: cfg.Pricing.FreeDeliveryThreshold,
	}), publishers)
	orders.SetMetrics(m)

	opts := httpapi.Options{
		JWTSecret:       cfg.JWTSecret,
		WebhookSecret:   cfg.Telr.WebhookSecret,
		SkipWebhookSig:  cfg.Telr.TestMode(),
		VerifyRateLimit: cfg.Payment.VerifyRateLimit,
		Feed:            hub,
		Metrics:         m,
	}
	if cfg.Redis.Host != "" {
		rdb := cache.NewRedisClient(cfg.Redis.Host, cfg.Redis.PoolSize)
		defer rdb.Close()
		orders.SetHistoryCache(cache.NewOrderHistory(rdb))
		opts.Idempotency = cache.NewIdempotency(rdb)
	} else {
		log.Warn().Msg("REDIS_HOST not set: order history cache and idempotency keys disabled")
	}

	var gateway infra.PaymentGateway = telr.NewClient(cfg.Telr)
	payments := services.NewPaymentService(orders, gateway, services.RetryPolicy{
		Attempts:  cfg.Payment.VerifyAttempts,
		BaseDelay: cfg.Payment.VerifyBaseDelay,
		MaxDelay:  cfg.Payment.VerifyMaxDelay,
	})
	handler := httpapi.NewHandler(
		services.NewCartService(store),
		orders,
		services.NewQuoteService(orders, cfg.Quote.Validity),
		payments,
		opts,
	)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	r.GET("/metrics", gin.WrapH(m.Handler()))
	handler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("port", cfg.Port).Str("storage", cfg.Storage).Str("broker", cfg.Events.Broker).
			Msg("starting furniture order service")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped")
		return
	}
	log.Info().Msg("server stopped")
}

func openStore(cfg *config.Config) (repository.Store, error) {
	if cfg.Storage == "memory" {
		log.Warn().Msg("using in-memory storage; data is lost on restart")
		return memory.NewStore(), nil
	}
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	return gormrepo.NewStore(db), nil
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key"},
		ExposeHeaders: []string{"Content-Disposition", "Idempotent-Replayed"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
		c.AllowCredentials = true
	}
	return c
}

func originChecker(origins []string) func(*http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
}
