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
	"github.com/ariefcatur/go-marketplace-saga.git/internal/config"
	"github.com/ariefcatur/go-marketplace-saga.git/internal/fulfillment"
	"github.com/ariefcatur/go-marketplace-saga.git/internal/httpx"
	"github.com/ariefcatur/go-marketplace-saga.git/internal/logx"
	"github.com/ariefcatur/go-marketplace-saga.git/internal/orderclient"
	"github.com/ariefcatur/go-marketplace-saga.git/internal/postgres"
)

// Fulfillment service: shipment + return API. Mutasi masuk via HTTP dari
// kurir/seller dashboard, event keluar ke saga lewat producer.
func main() {
	_ = godotenv.Load()

	cfg := config.Load("fulfillment")
	log := logx.New(cfg.ServiceName)
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN, int32(cfg.PGMaxConns))
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	prod := bus.NewProducer(cfg.KafkaBrokers, cfg.ServiceName, 1024, log)
	prod.Start(ctx)

	repo := &fulfillment.Repo{DB: db}
	svc := &fulfillment.Service{
		Repo:   repo,
		Orders: orderclient.New(cfg.OrderBaseURL),
		Pub:    prod,
		Log:    log,
	}

	router := httpx.NewRouter()
	h := &fulfillment.Handler{Svc: svc, Repo: repo, Log: log}
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
