package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubham-shewale/market-beat/cmd/simulator/internal/api"
	"github.com/shubham-shewale/market-beat/cmd/simulator/internal/control"
	"github.com/shubham-shewale/market-beat/cmd/simulator/internal/feed"
	"github.com/shubham-shewale/market-beat/cmd/simulator/internal/generator"
	"github.com/shubham-shewale/market-beat/cmd/simulator/internal/notify"
	"github.com/shubham-shewale/market-beat/cmd/simulator/internal/scheduler"
	"github.com/shubham-shewale/market-beat/cmd/simulator/internal/store"
	"github.com/shubham-shewale/market-beat/pkg/config"
	"github.com/shubham-shewale/market-beat/pkg/models"
)

func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// 2. Initialize Zap Logger
	logger, err := config.NewLogger(cfg.Logger)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	// 3. Setup Shutdown Hook
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := generator.RealClock{}
	rnd := generator.NewRealRand(time.Now().UnixNano())

	// 4. Market state, empty until the seed is published below
	market, err := store.New(clock, nil)
	if err != nil {
		logger.Fatal("Failed to create market state", zap.Error(err))
	}

	// 5. Feed publisher (Kafka)
	var writer feed.KafkaWriter
	if cfg.Kafka.Enabled {
		creator := feed.NewTopicCreator(logger, &feed.RealKafkaDialer{Dialer: kafka.DefaultDialer}, clock)
		if err := creator.Ensure(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Partitions); err != nil {
			logger.Warn("Topic provisioning failed, relying on broker auto-create", zap.Error(err))
		}
		writer = feed.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	}
	publisher := feed.NewPublisher(ctx, logger, writer, clock.Now().UnixMicro())
	market.Subscribe(publisher.OnChange)

	seed, err := models.SeedAssets(clock.Now().UnixMilli())
	if err != nil {
		logger.Fatal("Invalid seed assets", zap.Error(err))
	}
	if err := market.ReplaceAll(seed); err != nil {
		logger.Fatal("Failed to load seed assets", zap.Error(err))
	}

	// 6. Notifications + remote control (Redis, optional)
	notifier := notify.Multi{notify.NewLogNotifier(logger)}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	redisUp := rdb.Ping(ctx).Err() == nil
	if redisUp {
		notifier = append(notifier, notify.NewRedisNotifier(rdb))
	} else {
		logger.Warn("Redis unreachable, notifications stay local and remote control is off", zap.String("addr", cfg.Redis.Addr))
	}

	// 7. Generator + Scheduler
	gen, err := generator.NewGenerator(market, generator.Params{
		PriceVolatility:  cfg.Simulator.PriceVolatility,
		VolumeVolatility: cfg.Simulator.VolumeVolatility,
	}, rnd)
	if err != nil {
		logger.Fatal("Invalid generator parameters", zap.Error(err))
	}
	sched := scheduler.New(logger, market, gen, notifier, rnd, clock, scheduler.Options{
		Interval: cfg.Simulator.TickInterval,
		Cooldown: cfg.Simulator.Cooldown,
	})

	if redisUp {
		listener := control.NewListener(rdb, sched, logger)
		go func() {
			if err := listener.Run(ctx); err != nil {
				logger.Error("Control listener stopped", zap.Error(err))
			}
		}()
	}

	// 8. HTTP API
	handler := api.NewHandler(ctx, market, sched, logger)
	srv := &http.Server{Addr: cfg.App.Port, Handler: handler.Routes()}
	go func() {
		logger.Info("Server Started", zap.String("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP Error", zap.Error(err))
		}
	}()

	if cfg.Simulator.AutoStart {
		sched.Start(ctx)
	}

	// 9. Wait for Shutdown Signal
	<-ctx.Done()
	logger.Info("Shutdown signal received")

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}

	// Flush Kafka Buffer
	if err := publisher.Close(); err != nil {
		logger.Error("Error closing Kafka writer", zap.Error(err))
	} else {
		logger.Info("Kafka writer closed cleanly")
	}
	rdb.Close()
	logger.Info("Simulator exited cleanly")
}
