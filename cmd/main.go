// retrievr-monitor-service
//
// Monitoring loop for stolen-item recovery. Every cycle:
//   - loads the active search profiles
//   - scrapes the configured marketplaces through a bounded worker pool
//   - admits unseen listings (canonical-URL dedup)
//   - scores new listings against profiles with an LLM
//   - alerts owners by email/SMS and mirrors alerts to Telegram
//
// Publishes cycle summaries and alerts to Redis for downstream consumers,
// and exposes a small HTTP admin API (status, manual run, pause/resume,
// analytics).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"retrievr/monitor-service/internal/api"
	"retrievr/monitor-service/internal/config"
	"retrievr/monitor-service/internal/db"
	"retrievr/monitor-service/internal/events"
	"retrievr/monitor-service/internal/matcher"
	"retrievr/monitor-service/internal/notify"
	"retrievr/monitor-service/internal/orchestrator"
	"retrievr/monitor-service/internal/scheduler"
	"retrievr/monitor-service/internal/scraper"
	"retrievr/monitor-service/internal/store"
)

const (
	version = "1.0.0"

	// matcherConcurrency caps parallel listings in the scoring phase.
	matcherConcurrency = 4
)

func main() {
	_ = godotenv.Load()

	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[monitor-service] Config error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── PostgreSQL ───────────────────────────────────────────────────────────
	log.Println("[monitor-service] Connecting to PostgreSQL…")
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[monitor-service] PostgreSQL: %v", err)
	}
	defer pool.Close()
	log.Println("[monitor-service] PostgreSQL connected ✓")

	if err := store.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("[monitor-service] Schema: %v", err)
	}

	// ── Redis ────────────────────────────────────────────────────────────────
	log.Println("[monitor-service] Connecting to Redis…")
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("[monitor-service] Redis: %v", err)
	}
	defer rdb.Close()
	log.Println("[monitor-service] Redis connected ✓")

	publisher := events.NewPublisher(rdb)

	// ── Stores ───────────────────────────────────────────────────────────────
	profiles := store.NewProfileStore(pool)
	listings := store.NewListingStore(pool)
	analyses := store.NewAnalysisStore(pool)

	// ── Scrapers ─────────────────────────────────────────────────────────────
	registry := scraper.NewRegistry()
	for _, marketplace := range cfg.Marketplaces {
		switch marketplace {
		case "ebay":
			registry.Register(scraper.NewEbayScraper(cfg.EbayAppToken, scraper.NewPacer(cfg.RequestDelay)))
		case "craigslist":
			registry.Register(scraper.NewCraigslistScraper(cfg.CraigslistSite, scraper.NewPacer(cfg.RequestDelay)))
		default:
			log.Printf("[monitor-service] Unknown marketplace %q in MARKETPLACES, skipping", marketplace)
		}
	}
	log.Printf("[monitor-service] Marketplaces: %v", registry.Available())

	scrapePool := scraper.NewPool(registry, cfg.MaxConcurrentScrapers)

	// ── Matching ─────────────────────────────────────────────────────────────
	oracle := matcher.NewOpenAIOracle(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	pipeline := matcher.NewPipeline(oracle, analyses, listings,
		cfg.MatchThreshold, cfg.HighPriorityThreshold, matcherConcurrency)

	// ── Notification channels ────────────────────────────────────────────────
	var channels []notify.Channel
	if cfg.SendGridAPIKey != "" {
		channels = append(channels, notify.NewEmailChannel(cfg.SendGridAPIKey, cfg.AlertFromEmail))
	} else {
		log.Println("[monitor-service] SENDGRID_API_KEY not set, email alerts disabled")
	}
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" && cfg.TwilioFromNumber != "" {
		channels = append(channels, notify.NewSMSChannel(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber))
	} else {
		log.Println("[monitor-service] Twilio credentials not set, SMS alerts disabled")
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != 0 {
		tg, err := notify.NewTelegramChannel(cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			log.Printf("[monitor-service] Telegram channel unavailable: %v", err)
		} else {
			channels = append(channels, tg)
		}
	}
	if len(channels) == 0 {
		log.Println("[monitor-service] WARNING: no notification channels configured")
	}

	dispatcher := notify.NewDispatcher(analyses, channels,
		notify.Policy{SMSThreshold: cfg.HighPriorityThreshold}, publisher)

	// ── Orchestrator + scheduler ─────────────────────────────────────────────
	orch := orchestrator.New(profiles, listings, scrapePool, pipeline, dispatcher,
		cfg.Marketplaces, publisher)

	sched := scheduler.New(orch, analyses, publisher, cfg.CycleIntervalMinutes)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("[monitor-service] Scheduler: %v", err)
	}

	// ── HTTP server ──────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)

	h := api.NewHandler(orch, sched, analyses)
	h.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[monitor-service] v%s listening on :%s", version, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[monitor-service] HTTP server error: %v", err)
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[monitor-service] Shutting down…")
	cancel()
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[monitor-service] Shutdown error: %v", err)
	}
	log.Println("[monitor-service] Stopped.")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": "monitor-service",
		"version": version,
	})
}
