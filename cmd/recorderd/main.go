package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/technosupport/ts-recorder/internal/config"
	"github.com/technosupport/ts-recorder/internal/data"
	"github.com/technosupport/ts-recorder/internal/notify"
	"github.com/technosupport/ts-recorder/internal/recorder"
	"github.com/technosupport/ts-recorder/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	// Root context: cancelled on SIGINT/SIGTERM. This is the bound on the
	// blocking aggregate/finalize retry loops.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Record store
	db, err := sql.Open("postgres", cfg.DB.ConnString())
	if err != nil {
		log.Fatalf("DB open error: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("DB ping error: %v", err)
	}
	store := data.NewStore(db)

	// Lifecycle notifications (optional: the recorder runs without NATS)
	var notifier recorder.LifecycleNotifier
	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL)
		if err != nil {
			log.Printf("[ERROR] NATS connect failed, notifications disabled: %v", err)
		} else {
			defer nc.Close()
			dedup := notify.NewDedup(4096, 30*time.Second)
			notifier = notify.NewPublisher(nc, cfg.NATS.Subject, cfg.NATS.MaxRetries, dedup)
		}
	}

	// Live aggregate mirror
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
	defer rdb.Close()
	mirror := telemetry.NewService(rdb)

	// Capture options with hot reload
	cfgMgr := config.NewManager(*configPath, cfg)
	if *configPath != "" {
		cfgMgr.StartWatcher(ctx)
	}

	// Shared recorder wiring for the capture pipelines hosted in this
	// process. Every event opened through it sees the current capture
	// options and the same notifier/mirror.
	rec := &recorder.Recorder{
		Store:    store,
		Notifier: notifier,
		Mirror:   mirror,
		Options:  cfgMgr.CaptureOptions,
	}

	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(); err != nil {
			http.Error(w, "db unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	router.Get("/api/v1/events/{id}/live", liveAggregatesHandler(rdb))
	router.Get("/api/v1/recorder/options", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rec.Options())
	})

	srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: router}
	go func() {
		log.Printf("Recorder listening on %s", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[ERROR] HTTP server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Println("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[ERROR] HTTP shutdown: %v", err)
	}
	os.Exit(0)
}

// liveAggregatesHandler serves the Redis mirror of an in-progress event's
// counters, the cheap read path for UI polling.
func liveAggregatesHandler(rdb *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		vals, err := rdb.HGetAll(r.Context(), "event_live:"+id).Result()
		if err != nil {
			http.Error(w, "lookup failed", http.StatusInternalServerError)
			return
		}
		if len(vals) == 0 {
			http.Error(w, "no live event", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(vals)
	}
}
