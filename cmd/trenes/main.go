package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/jbt95/trenes/internal/api"
	"github.com/jbt95/trenes/internal/config"
	"github.com/jbt95/trenes/internal/feed"
	"github.com/jbt95/trenes/internal/history"
	"github.com/jbt95/trenes/internal/insights"
	"github.com/jbt95/trenes/internal/notify"
	"github.com/jbt95/trenes/internal/scheduler"
	"github.com/jbt95/trenes/internal/store"
)

func main() {
	log.Println("Starting trenes insights service...")

	// .env.local overrides .env for local development
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Config loaded: storage=%s, capture_interval=%v, retention=%dd, timezone=%s",
		cfg.StorageDriver, cfg.CaptureInterval(), cfg.RetentionDays, cfg.Timezone)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	historyStore, err := store.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open history store: %v", err)
	}
	defer historyStore.Close()

	feeds := feed.NewClient(feed.Options{
		VehiclePositionsURL:  cfg.VehiclePositionsURL,
		AlertsURL:            cfg.AlertsURL,
		Timeout:              cfg.FeedTimeout(),
		DeriveRouteFromLabel: cfg.DeriveRouteFromLabel,
	})
	assembler := insights.NewAssembler(feeds, cfg.Location())

	opts := history.Options{SummarySampleSize: cfg.SummarySampleSize}
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := notify.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Fatalf("Failed to create Kafka publisher: %v", err)
		}
		defer publisher.Close()
		opts.Notifier = publisher
	}
	historyService := history.NewService(historyStore, feeds, assembler, opts)

	if cfg.SchedulerEnabled {
		runner := scheduler.NewRunner(historyService, cfg.CaptureInterval(), cfg.RetentionDays)
		go runner.Run(ctx)
	} else {
		log.Println("Scheduler disabled; captures only via POST /history/capture")
	}

	handler := api.NewHandler(feeds, assembler, historyService, cfg.Location())
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           api.NewRouter(handler, historyStore, cfg.CORSAllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("API server starting on %s", server.Addr)
		log.Println("  GET  /vehicle-positions")
		log.Println("  GET  /alerts")
		log.Println("  GET  /insights")
		log.Println("  GET  /history/summary")
		log.Println("  GET  /history/snapshots?from=&to=")
		log.Println("  GET  /history/snapshots/{id}")
		log.Println("  POST /history/capture")
		log.Println("  GET  /health")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Goodbye!")
}
