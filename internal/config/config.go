package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// ----------------------------
	// SMTP
	// ----------------------------
	SMTPHost     string `envconfig:"SMTP_HOST" default:"localhost"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"1025"`
	SMTPUser     string `envconfig:"SMTP_USER" default:""`
	SMTPPassword string `envconfig:"SMTP_PASSWORD" default:""`
	SMTPFrom     string `envconfig:"SMTP_FROM" default:"outreach@leadflow.local"`

	RetryAttempts int `envconfig:"RETRY_ATTEMPTS" default:"0"`

	// ----------------------------
	// Place search
	// ----------------------------
	PlacesAPIKey   string `envconfig:"PLACES_API_KEY" default:""`
	PlacesBaseURL  string `envconfig:"PLACES_BASE_URL" default:"https://places.googleapis.com"`
	PlacesLanguage string `envconfig:"PLACES_LANGUAGE" default:"es"`
	PlacesRegion   string `envconfig:"PLACES_REGION" default:"ES"`

	// ----------------------------
	// LLM
	// ----------------------------
	GeminiAPIKey string `envconfig:"GEMINI_API_KEY" default:""`
	GeminiModel  string `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`

	// ----------------------------
	// Browser
	// ----------------------------
	BrowserHeadless    bool          `envconfig:"BROWSER_HEADLESS" default:"true"`
	BrowserPageTimeout time.Duration `envconfig:"BROWSER_PAGE_TIMEOUT" default:"15s"`
	ExtractLeadDelay   time.Duration `envconfig:"EXTRACT_LEAD_DELAY" default:"500ms"`
	ChromePath         string        `envconfig:"CHROME_PATH" default:""`

	// ----------------------------
	// Sending defaults
	// ----------------------------
	SendDelaySeconds int `envconfig:"SEND_DELAY_SECONDS" default:"30"`
	SendDailyLimit   int `envconfig:"SEND_DAILY_LIMIT" default:"50"`

	// ----------------------------
	// HTTP API
	// ----------------------------
	APIPort     string   `envconfig:"API_PORT" default:"8080"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"http://localhost:3000"`

	// ----------------------------
	// Metrics
	// ----------------------------
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`

	// ----------------------------
	// Database
	// ----------------------------
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
}

// Load reads a .env file when present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	err := envconfig.Process("", &cfg)
	return &cfg, err
}
