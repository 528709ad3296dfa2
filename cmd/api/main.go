package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"shop/internal/config"
	"shop/internal/domain/model"
	"shop/internal/handler"
	"shop/internal/infra/cache"
	"shop/internal/infra/db"
	"shop/internal/infra/event"
	"shop/internal/infra/metrics"
	infraRepo "shop/internal/infra/repository"
	"shop/internal/logger"
	"shop/internal/scheduler"
	"shop/internal/server"
	"shop/internal/usecase"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()
	log = log.With(zap.String("app", cfg.App.Name), zap.String("env", cfg.App.Env))

	//DB接続
	gormDB, err := db.Connect(cfg.Database, log, cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	if err := db.Migrate(gormDB); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	//metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	//イベント発行先
	var publisher event.Publisher = event.Nop{}
	if cfg.Kafka.Enabled {
		kp := event.NewKafkaPublisher(event.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic), m, log)
		defer func() {
			if err := kp.Close(); err != nil {
				log.Warn("close kafka writer", zap.Error(err))
			}
		}()
		publisher = kp
	}

	//決済コールバックの重複排除
	clock := usecase.SystemClock{}
	var dedup cache.DedupStore = cache.NewMemoryDedup(clock.Now)
	if cfg.Redis.Enabled {
		rdb := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		dedup = cache.NewRedisDedup(rdb, "shop:")
	}

	threshold, err := cfg.Pricing.Threshold()
	if err != nil {
		return err
	}
	fee, err := cfg.Pricing.Fee()
	if err != nil {
		return err
	}
	shipping := model.ShippingPolicy{FreeThreshold: threshold, Fee: fee}

	//Repository / Usecase
	txm := infraRepo.NewTxManagerGorm(gormDB)

	ledger := usecase.NewStockLedger(txm, clock, publisher, m, log)
	cartUC := usecase.NewCartUsecase(txm, ledger, clock, cfg.Reservation.CartTTL, publisher, log)
	orderUC := usecase.NewOrderUsecase(txm, ledger, clock, shipping, cfg.Reservation.CheckoutTTL, publisher, m, log)
	couponUC := usecase.NewCouponUsecase(txm, clock, log)
	paymentUC := usecase.NewPaymentUsecase(txm, orderUC, dedup, clock, publisher, log)
	addressUC := usecase.NewAddressUsecase(infraRepo.NewAddressGormRepository(gormDB))

	//Handler
	e := server.New(server.Options{
		JWTSecret:      cfg.JWT.Secret,
		CallbackSecret: cfg.Payment.CallbackSecret,
		Metrics:        m,
		Gatherer:       reg,
		Logger:         log,
	}, server.Handlers{
		Stock:      handler.NewStockHandler(ledger),
		Cart:       handler.NewCartHandler(cartUC),
		Order:      handler.NewOrderHandler(orderUC),
		AdminOrder: handler.NewAdminOrderHandler(orderUC),
		Coupon:     handler.NewCouponHandler(couponUC),
		Payment:    handler.NewPaymentHandler(paymentUC),
		Address:    handler.NewAddressHandler(addressUC),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	addr := cfg.App.Port
	if !strings.HasPrefix(addr, ":") {
		addr = ":" + addr
	}
	g.Go(func() error {
		log.Info("server started", zap.String("addr", addr))
		return server.Start(gctx, e, addr)
	})

	if cfg.Reservation.SweepEnabled {
		sweeper := scheduler.NewReservationSweeper(ledger, clock, cfg.Reservation.SweepInterval, m, log)
		g.Go(func() error {
			return sweeper.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("shutdown complete")
	return nil
}
