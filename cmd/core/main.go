package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"marketcore/config"
	"marketcore/internal/candlestore"
	"marketcore/internal/httpapi"
	"marketcore/internal/logger"
	"marketcore/internal/manager"
	"marketcore/internal/metrics"
	"marketcore/internal/model"
	"marketcore/internal/sink"
)

func main() {
	// Exits 1 on any configuration error (missing/invalid env).
	cfg := config.Load()
	log := logger.Init("marketcore", parseLevel(cfg.LogLevel))

	prom := metrics.NewMetrics()

	// ---- Pub/sub sink: Redis when reachable, in-process table otherwise ----
	var publishSink model.PublishSink
	var redisClient *goredis.Client
	{
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := client.Ping(ctx).Err()
		cancel()
		if err != nil {
			log.Warn("redis unreachable, publishing to in-process table only", "addr", cfg.RedisAddr, "error", err)
			client.Close()
			publishSink = sink.NewMemTable()
		} else {
			redisClient = client
			publishSink = sink.NewRedisSink(client)
			log.Info("redis sink connected", "addr", cfg.RedisAddr)
		}
	}

	metricsSrv := metrics.NewServer(cfg.MetricsAddr, metrics.NewHealthStatus(redisClient))
	metricsSrv.Start()

	store := candlestore.NewStore()
	mgr := manager.New(cfg, store, publishSink, prom, log)

	// ---- Startup subscriptions from env (MARKETS × INTERVALS × periods) ----
	// A failure here is an unrecoverable startup fault: exit 2.
	for _, market := range cfg.Markets {
		if _, err := mgr.Subscribe(model.Subscription{
			Exchange: cfg.Exchange,
			Market:   market,
			DataType: model.DataTypeTrades,
			Extras:   model.Extras{},
		}); err != nil {
			log.Error("startup trades subscribe failed", "market", string(market), "error", err)
			os.Exit(2)
		}
		for _, iv := range cfg.Intervals {
			if _, err := mgr.Subscribe(model.Subscription{
				Exchange: cfg.Exchange,
				Market:   market,
				DataType: model.DataTypeCandle,
				Extras:   model.Extras{"timeframe": string(iv)},
			}); err != nil {
				log.Error("startup candle subscribe failed", "market", string(market), "interval", string(iv), "error", err)
				os.Exit(2)
			}
			for _, period := range cfg.IndicatorPeriods {
				if _, err := mgr.Subscribe(model.Subscription{
					Exchange: cfg.Exchange,
					Market:   market,
					DataType: model.DataTypeRSI,
					Extras:   model.Extras{"period": period, "timeframe": string(iv)},
				}); err != nil {
					log.Error("startup rsi subscribe failed", "market", string(market), "interval", string(iv), "period", period, "error", err)
					os.Exit(2)
				}
			}
		}
	}

	mgr.StartWatcher()

	api := httpapi.NewServer(cfg.HTTPAddr, mgr, log)
	api.Start()

	log.Info("marketcore running",
		"exchange", string(cfg.Exchange),
		"markets", len(cfg.Markets),
		"intervals", len(cfg.Intervals),
		"http", cfg.HTTPAddr,
		"metrics", cfg.MetricsAddr,
	)

	// ---- Graceful shutdown on SIGINT/SIGTERM ----
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutting down", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	api.Stop(shutdownCtx)
	mgr.Stop()
	metricsSrv.Stop(shutdownCtx)
	if redisClient != nil {
		redisClient.Close()
	}
	log.Info("shutdown complete")
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
