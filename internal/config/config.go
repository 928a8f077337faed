// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing or a numeric value is
// malformed, the process exits.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration for the monitor service.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string

	OpenAIAPIKey string
	OpenAIModel  string

	Marketplaces   []string // registry names, e.g. ["ebay", "craigslist"]
	EbayAppToken   string   // empty → eBay adapter skips scraping
	CraigslistSite string   // craigslist subdomain, e.g. "sfbay"

	SendGridAPIKey   string
	AlertFromEmail   string
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	TelegramBotToken string
	TelegramChatID   int64

	CycleIntervalMinutes  int
	MaxConcurrentScrapers int
	RequestDelay          time.Duration
	MatchThreshold        float64
	HighPriorityThreshold float64
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	openAIKey := os.Getenv("OPENAI_API_KEY")
	if openAIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}

	interval, err := envInt("CYCLE_INTERVAL_MINUTES", 15)
	if err != nil {
		return nil, err
	}

	maxScrapers, err := envInt("MAX_CONCURRENT_SCRAPERS", 3)
	if err != nil {
		return nil, err
	}

	delaySeconds, err := envFloat("REQUEST_DELAY_SECONDS", 1.0)
	if err != nil {
		return nil, err
	}

	matchThreshold, err := envFloat("MATCH_THRESHOLD", 7.0)
	if err != nil {
		return nil, err
	}

	highThreshold, err := envFloat("HIGH_PRIORITY_THRESHOLD", 8.0)
	if err != nil {
		return nil, err
	}
	if matchThreshold < 0 || matchThreshold > 10 || highThreshold < 0 || highThreshold > 10 {
		return nil, fmt.Errorf("thresholds must be on the 0-10 score scale, got match=%.1f high=%.1f",
			matchThreshold, highThreshold)
	}

	var telegramChatID int64
	if s := os.Getenv("TELEGRAM_CHAT_ID"); s != "" {
		telegramChatID, err = strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TELEGRAM_CHAT_ID must be an integer, got %q", s)
		}
	}

	marketplaces := splitList(os.Getenv("MARKETPLACES"))
	if len(marketplaces) == 0 {
		marketplaces = []string{"ebay", "craigslist"}
	}

	site := os.Getenv("CRAIGSLIST_SITE")
	if site == "" {
		site = "sfbay"
	}

	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}

	port := os.Getenv("MONITOR_PORT")
	if port == "" {
		port = "8080"
	}

	return &Config{
		Port:                  port,
		DatabaseURL:           dbURL,
		RedisURL:              redisURL,
		OpenAIAPIKey:          openAIKey,
		OpenAIModel:           model,
		Marketplaces:          marketplaces,
		EbayAppToken:          os.Getenv("EBAY_APP_TOKEN"),
		CraigslistSite:        site,
		SendGridAPIKey:        os.Getenv("SENDGRID_API_KEY"),
		AlertFromEmail:        os.Getenv("ALERT_FROM_EMAIL"),
		TwilioAccountSID:      os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:       os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber:      os.Getenv("TWILIO_FROM_NUMBER"),
		TelegramBotToken:      os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:        telegramChatID,
		CycleIntervalMinutes:  interval,
		MaxConcurrentScrapers: maxScrapers,
		RequestDelay:          time.Duration(delaySeconds * float64(time.Second)),
		MatchThreshold:        matchThreshold,
		HighPriorityThreshold: highThreshold,
	}, nil
}

func envInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, s)
	}
	return v, nil
}

func envFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s must be a non-negative number, got %q", key, s)
	}
	return v, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
