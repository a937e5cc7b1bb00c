package cfg

type Cfg struct {
	// Database configuration
	DBPath string

	// Application configuration
	SourcesDir        string
	Port              string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string

	// Extraction service configuration
	ExtractionURL         string
	ExtractionAPIKey      string
	ExtractionModel       string
	ExtractionMaxAttempts int
	ExtractionRateLimit   float64
	ExtractionTimeout     int

	// Chat history API configuration
	ChatAPIURL string
	ChatAPIKey string

	// Search index configuration
	SearchIndexURL  string
	SearchIndexKey  string
	SearchIndexName string

	// Webhook configuration
	WebhookSecret         string
	WebhookFreshnessHours int

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
