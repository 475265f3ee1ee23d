package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/nazeru/phoneshop-go/internal/catalog"
	"github.com/nazeru/phoneshop-go/internal/config"
	"github.com/nazeru/phoneshop-go/internal/store/backend"
	"github.com/nazeru/phoneshop-go/pkg/logging"
)

func main() {
	timeout := flag.Duration("timeout", 5*time.Minute, "overall timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logging.Init("backfill-images", cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	st, err := backend.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("store error: %v", err)
	}
	defer st.Close(context.Background())

	start := time.Now()
	n, err := catalog.NewService(st).BackfillOrderImages(ctx)
	if err != nil {
		logging.Error(logging.Fields{Service: "backfill-images", Message: "backfill stopped", Extra: map[string]any{"updated": n}}, err)
		log.Fatalf("backfill error: %v", err)
	}
	logging.Log(logging.Fields{
		Service:    "backfill-images",
		Status:     "done",
		DurationMS: time.Since(start).Milliseconds(),
		Message:    "order images backfilled",
		Extra:      map[string]any{"updated": n},
	})
}
