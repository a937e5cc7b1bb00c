package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./castradar.db" description:"Path to the SQLite database file"`

	// Application configuration
	SourcesDir        string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing ingestion source definition files"`
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"2" description:"Number of background workers for pipeline processing"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"300" description:"Ingestor sweep interval in seconds"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for reviewer endpoints (optional)"`

	// Extraction service configuration
	ExtractionURL         string  `long:"extraction-url" env:"EXTRACTION_URL" default:"https://api.groq.com/openai/v1/chat/completions" description:"Extraction service endpoint"`
	ExtractionAPIKey      string  `long:"extraction-api-key" env:"EXTRACTION_API_KEY" description:"Extraction service API key (required)" required:"true"`
	ExtractionModel       string  `long:"extraction-model" env:"EXTRACTION_MODEL" default:"llama-3.3-70b-versatile" description:"Extraction model identifier"`
	ExtractionMaxAttempts int     `long:"extraction-max-attempts" env:"EXTRACTION_MAX_ATTEMPTS" default:"3" description:"Maximum extraction attempts per job before dead-lettering"`
	ExtractionRateLimit   float64 `long:"extraction-rate-limit" env:"EXTRACTION_RATE_LIMIT" default:"10" description:"Extraction jobs per second ceiling"`
	ExtractionTimeout     int     `long:"extraction-timeout" env:"EXTRACTION_TIMEOUT" default:"60" description:"Extraction call timeout in seconds"`

	// Chat history API configuration
	ChatAPIURL string `long:"chat-api-url" env:"CHAT_API_URL" description:"Chat history API base URL"`
	ChatAPIKey string `long:"chat-api-key" env:"CHAT_API_KEY" description:"Chat history API key"`

	// Search index configuration
	SearchIndexURL  string `long:"search-index-url" env:"SEARCH_INDEX_URL" description:"Search index base URL"`
	SearchIndexKey  string `long:"search-index-key" env:"SEARCH_INDEX_KEY" description:"Search index API key"`
	SearchIndexName string `long:"search-index-name" env:"SEARCH_INDEX_NAME" default:"casting_calls" description:"Search index name for published candidates"`

	// Webhook configuration
	WebhookSecret         string `long:"webhook-secret" env:"WEBHOOK_SECRET" description:"Shared secret for webhook signature verification"`
	WebhookFreshnessHours int    `long:"webhook-freshness-hours" env:"WEBHOOK_FRESHNESS_HOURS" default:"24" description:"Maximum webhook event age in hours"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"CastRadar/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, Asia/Riyadh)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:                raw.DBPath,
		SourcesDir:            raw.SourcesDir,
		Port:                  raw.Port,
		WorkerCount:           raw.WorkerCount,
		SchedulerInterval:     raw.SchedulerInterval,
		APIAccessKey:          raw.APIAccessKey,
		ExtractionURL:         raw.ExtractionURL,
		ExtractionAPIKey:      raw.ExtractionAPIKey,
		ExtractionModel:       raw.ExtractionModel,
		ExtractionMaxAttempts: raw.ExtractionMaxAttempts,
		ExtractionRateLimit:   raw.ExtractionRateLimit,
		ExtractionTimeout:     raw.ExtractionTimeout,
		ChatAPIURL:            raw.ChatAPIURL,
		ChatAPIKey:            raw.ChatAPIKey,
		SearchIndexURL:        raw.SearchIndexURL,
		SearchIndexKey:        raw.SearchIndexKey,
		SearchIndexName:       raw.SearchIndexName,
		WebhookSecret:         raw.WebhookSecret,
		WebhookFreshnessHours: raw.WebhookFreshnessHours,
		UserAgent:             raw.UserAgent,
		Timezone:              raw.Timezone,
		Debug:                 raw.Debug,
		Version:               GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
