package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nazeru/phoneshop-go/internal/account"
	"github.com/nazeru/phoneshop-go/internal/catalog"
	"github.com/nazeru/phoneshop-go/internal/config"
	"github.com/nazeru/phoneshop-go/internal/customer"
	"github.com/nazeru/phoneshop-go/internal/httpapi"
	"github.com/nazeru/phoneshop-go/internal/order/tx"
	"github.com/nazeru/phoneshop-go/internal/order/workflow"
	"github.com/nazeru/phoneshop-go/internal/reporting"
	"github.com/nazeru/phoneshop-go/internal/store/backend"
	"github.com/nazeru/phoneshop-go/pkg/kafka"
	"github.com/nazeru/phoneshop-go/pkg/logging"
	"github.com/nazeru/phoneshop-go/pkg/metrics"
	"github.com/nazeru/phoneshop-go/pkg/outbox"
	"github.com/nazeru/phoneshop-go/pkg/tx/common"
)

const service = "order-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logging.Init(service, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	st, err := backend.Open(connectCtx, cfg)
	cancel()
	if err != nil {
		log.Fatalf("store error: %v", err)
	}
	defer func() { _ = st.Close(context.Background()) }()

	wm := metrics.NewWorkflowMetrics(nil)
	exec, err := tx.New(cfg.TxMode, st, func(step common.StepName) {
		wm.Compensations.WithLabelValues(string(step)).Inc()
	})
	if err != nil {
		log.Fatalf("executor error: %v", err)
	}

	hasher := account.NewHasher(cfg.BcryptCost)
	orders := workflow.New(st, exec, hasher, workflow.Options{
		Policy:   cfg.StatusPolicy,
		Metrics:  wm,
		Location: cfg.Location,
		Topic:    cfg.KafkaTopic,
	})

	router := httpapi.NewRouter(httpapi.Deps{
		Orders:    orders,
		Catalog:   catalog.NewService(st),
		Customers: customer.NewService(st),
		Accounts:  account.NewService(st, hasher),
		Reports:   reporting.NewService(st, cfg.Location),
		Health:    st,
		Metrics:   metrics.NewServerMetrics("order_service", nil),
		Timeout:   cfg.RequestTimeout,
	})

	kafkaClient := kafka.NewClient(cfg.KafkaBrokers)
	if pub, err := kafkaClient.NewPublisher(); err == nil {
		defer pub.Close()
		relay := &outbox.Relay{
			Store:       st.Outbox(),
			Publisher:   pub,
			Batch:       cfg.OutboxBatch,
			Interval:    cfg.OutboxInterval,
			OnPublished: func(n int) { wm.OutboxPublished.Add(float64(n)) },
		}
		go relay.Run(ctx)
	} else {
		logging.Warn(logging.Fields{Service: service, Message: "KAFKA_BROKERS not set, outbox records stay pending"})
	}

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logging.Log(logging.Fields{
		Service: service,
		Message: "listening",
		Extra: map[string]any{
			"port":          cfg.Port,
			"store":         cfg.Store,
			"tx_mode":       string(cfg.TxMode),
			"status_policy": cfg.StatusPolicy.Name(),
		},
	})
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("http server error: %v", err)
	}
}
