package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-marketplace-saga.git/internal/bus"
	"github.com/ariefcatur/go-marketplace-saga.git/internal/catalog"
	"github.com/ariefcatur/go-marketplace-saga.git/internal/config"
	"github.com/ariefcatur/go-marketplace-saga.git/internal/events"
	"github.com/ariefcatur/go-marketplace-saga.git/internal/httpx"
	"github.com/ariefcatur/go-marketplace-saga.git/internal/logx"
	"github.com/ariefcatur/go-marketplace-saga.git/internal/postgres"
	"github.com/ariefcatur/go-marketplace-saga.git/internal/redisx"
	"github.com/ariefcatur/go-marketplace-saga.git/internal/seller"
)

// Seller service: splitter (consumer seller_queue) + API seller order.
func main() {
	_ = godotenv.Load()

	cfg := config.Load("seller")
	log := logx.New(cfg.ServiceName)
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN, int32(cfg.PGMaxConns))
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prod := bus.NewProducer(cfg.KafkaBrokers, cfg.ServiceName, 1024, log)
	prod.Start(ctx)

	repo := &seller.Repo{DB: db}
	svc := &seller.Service{
		Repo:    repo,
		Catalog: catalog.New(cfg.CatalogBaseURL),
		Pub:     prod,
		Dedup:   redisx.NewDeduper(rdb, cfg.ServiceName),
		Log:     log,
	}

	disp := bus.NewDispatcher(events.QueueSeller, log)
	svc.Register(disp)
	cons := bus.NewConsumer(cfg.KafkaBrokers, cfg.ConsumerGroup, disp, prod, cfg.Workers, cfg.MaxAttempts, log)
	go func() {
		if err := cons.Start(ctx); err != nil {
			log.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	router := httpx.NewRouter()
	h := &seller.Handler{Repo: repo, Log: log}
	h.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = srv.Shutdown(shutdownCtx)
	cancel()
	prod.Close()
	prod.WaitClosed()
}
