package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nazeru/phoneshop-go/internal/config"
	"github.com/nazeru/phoneshop-go/internal/notify"
	"github.com/nazeru/phoneshop-go/internal/store/postgres"
	"github.com/nazeru/phoneshop-go/pkg/kafka"
	"github.com/nazeru/phoneshop-go/pkg/logging"
	"github.com/nazeru/phoneshop-go/pkg/metrics"
)

const service = "notification-service"

type lister interface {
	Recent(ctx context.Context, limit int) ([]notify.Notification, error)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logging.Init(service, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		sink   notify.Sink
		recent lister
		ping   = func(context.Context) error { return nil }
	)
	if cfg.Store == config.StorePostgres {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pg, err := postgres.New(connectCtx, cfg.DatabaseURL)
		if err == nil {
			err = pg.Migrate(connectCtx)
		}
		cancel()
		if err != nil {
			log.Fatalf("db error: %v", err)
		}
		defer pg.Close(context.Background())
		s := &notify.PGSink{Pool: pg.Pool()}
		sink, recent, ping = s, s, pg.Ping
	} else {
		s := notify.NewMemorySink()
		sink, recent = s, s
	}

	srvMetrics := metrics.NewServerMetrics("notification_service", nil)
	handled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "phoneshop", Subsystem: "notifications", Name: "stored_total",
		Help: "Notifications stored, by event type.",
	}, []string{"type"})
	prometheus.MustRegister(handled)

	kafkaClient := kafka.NewClient(cfg.KafkaBrokers)
	if kafkaClient.Enabled() {
		reader := kafkaClient.NewReader(cfg.KafkaTopic, cfg.KafkaGroupID)
		defer reader.Close()
		consumer := &notify.Consumer{
			Reader: reader,
			Handler: &notify.Handler{
				Sink:    sink,
				OnSaved: func(n notify.Notification) { handled.WithLabelValues(n.Type).Inc() },
			},
		}
		go consumer.Run(ctx)
	} else {
		logging.Warn(logging.Fields{Service: service, Message: "KAFKA_BROKERS not set, consumer disabled"})
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if err := ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "db_error"})
			srvMetrics.Observe("health", http.StatusServiceUnavailable, start)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
		srvMetrics.Observe("health", http.StatusOK, start)
	}).Methods(http.MethodGet)
	r.HandleFunc("/notifications", func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 || limit > 500 {
			limit = 50
		}
		items, err := recent.Recent(r.Context(), limit)
		if err != nil {
			logging.Error(logging.Fields{Service: service, Message: "list notifications failed"}, err)
			writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false})
			srvMetrics.Observe("notifications", http.StatusInternalServerError, start)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": items})
		srvMetrics.Observe("notifications", http.StatusOK, start)
	}).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logging.Log(logging.Fields{Service: service, Message: "listening", Extra: map[string]any{"port": cfg.Port, "topic": cfg.KafkaTopic}})
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("http server error: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
