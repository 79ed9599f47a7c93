package cfg

import (
	"cmp"
	"fmt"
	"strings"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage configuration
	DBPath     string `long:"db-path" env:"DB_PATH" default:"./newsdigest.db" description:"Path to the SQLite database file"`
	SourcesDir string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing source configuration files"`

	// Pipeline configuration
	ScheduleInterval int `long:"schedule-interval" env:"SCHEDULE_INTERVAL" default:"3600" description:"Interval between digest cycles in seconds"`
	WorkerCount      int `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Maximum number of sources fetched concurrently"`
	MaxFetchRetries  int `long:"max-fetch-retries" env:"MAX_FETCH_RETRIES" default:"3" description:"Retries per source after a failed fetch attempt"`
	FetchTimeout     int `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30" description:"Timeout per fetch attempt in seconds"`
	LookbackHours    int `long:"lookback-hours" env:"LOOKBACK_HOURS" default:"24" description:"Lookback window for sources without a checkpoint, in hours"`

	// Delivery configuration
	SMTPHost           string `long:"smtp-host" env:"SMTP_HOST" description:"SMTP server host (required for delivery)"`
	SMTPPort           string `long:"smtp-port" env:"SMTP_PORT" default:"587" description:"SMTP server port"`
	SMTPUser           string `long:"smtp-user" env:"SMTP_USER" description:"SMTP username"`
	SMTPPassword       string `long:"smtp-password" env:"SMTP_PASSWORD" description:"SMTP password"`
	SMTPFrom           string `long:"smtp-from" env:"SMTP_FROM" description:"Envelope sender address"`
	SMTPFromName       string `long:"smtp-from-name" env:"SMTP_FROM_NAME" default:"News Digest" description:"Display name for the From header"`
	Recipients         string `long:"recipients" env:"RECIPIENTS" description:"Comma-separated digest recipient addresses"`
	MaxDeliveryRetries int    `long:"max-delivery-retries" env:"MAX_DELIVERY_RETRIES" default:"3" description:"Retries per digest after a failed delivery attempt"`
	DeliveryTimeout    int    `long:"delivery-timeout" env:"DELIVERY_TIMEOUT" default:"30" description:"Timeout per delivery attempt in seconds"`

	// Summarization configuration
	CohereAPIKey string `long:"cohere-api-key" env:"COHERE_API_KEY" description:"Cohere API key for item summarization (optional)"`
	CohereModel  string `long:"cohere-model" env:"COHERE_MODEL" default:"command-r" description:"Cohere model used for summarization"`

	// HTTP API configuration
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"NewsDigest/1.0" description:"User agent string for HTTP requests"`
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
		DBPath:             raw.DBPath,
		SourcesDir:         raw.SourcesDir,
		ScheduleInterval:   raw.ScheduleInterval,
		WorkerCount:        raw.WorkerCount,
		MaxFetchRetries:    raw.MaxFetchRetries,
		FetchTimeout:       raw.FetchTimeout,
		LookbackHours:      raw.LookbackHours,
		SMTPHost:           raw.SMTPHost,
		SMTPPort:           raw.SMTPPort,
		SMTPUser:           raw.SMTPUser,
		SMTPPassword:       raw.SMTPPassword,
		SMTPFrom:           raw.SMTPFrom,
		SMTPFromName:       raw.SMTPFromName,
		Recipients:         splitRecipients(raw.Recipients),
		MaxDeliveryRetries: raw.MaxDeliveryRetries,
		DeliveryTimeout:    raw.DeliveryTimeout,
		CohereAPIKey:       raw.CohereAPIKey,
		CohereModel:        raw.CohereModel,
		Port:               raw.Port,
		APIAccessKey:       raw.APIAccessKey,
		UserAgent:          raw.UserAgent,
		Debug:              raw.Debug,
		Version:            GetVersion(),
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

func splitRecipients(s string) []string {
	var recipients []string
	for _, part := range strings.Split(s, ",") {
		if addr := strings.TrimSpace(part); addr != "" {
			recipients = append(recipients, addr)
		}
	}
	return recipients
}
