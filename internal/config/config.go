package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// SchedulerConfig controls the periodic pipeline tasks.
type SchedulerConfig struct {
	Enabled  bool
	Timezone string
	Timeout  time.Duration
	LockTTL  time.Duration
	Specs    map[string]string
}

// NeedsHelpConfig holds the at-risk thresholds.
type NeedsHelpConfig struct {
	MinRate        float64
	MinAnswers     int
	MinAssignments int
}

// RetentionConfig bounds how long pipeline history is kept.
type RetentionConfig struct {
	MetricsDays   int
	SnapshotsDays int
}

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	EventsChannel          string
	JWTSecret              string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryReportFolder string
	DashboardCacheTTL      time.Duration
	OpenAIAPIKey           string
	OpenAIModel            string
	OpenAIBaseURL          string
	AnswerRateLimit        int
	Scheduler              SchedulerConfig
	NeedsHelp              NeedsHelpConfig
	Retention              RetentionConfig
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Location resolves the scheduler time zone.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Scheduler.Timezone)
}

// DefaultTaskSpecs are the cron specs used when no override is configured.
var DefaultTaskSpecs = map[string]string{
	"assignment-publication": "@every 1m",
	"statistics":             "@hourly",
	"needs-help":             "@hourly",
	"snapshot-daily":         "5 0 * * *",
	"snapshot-weekly":        "10 0 * * 1",
	"snapshot-monthly":       "15 0 1 * *",
	"parent-reports":         "0 7 * * 1",
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GEMA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	v.SetDefault("app.name", "GEMA LMS API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("events.channel", "gema:lms")
	v.SetDefault("cloudinary.folder", "gema/parent-reports")
	v.SetDefault("dashboard.cache_ttl", "5m")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("answers.rate_limit", 30)
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.timezone", "UTC")
	v.SetDefault("scheduler.timeout", "10m")
	v.SetDefault("scheduler.lock_ttl", "")
	v.SetDefault("needs_help.min_rate", 50.0)
	v.SetDefault("needs_help.min_answers", 3)
	v.SetDefault("needs_help.min_assignments", 3)
	v.SetDefault("retention.metrics_days", 90)
	v.SetDefault("retention.snapshots_days", 365)
	for name, spec := range DefaultTaskSpecs {
		v.SetDefault("scheduler.spec."+name, spec)
	}

	ttl, err := parseDuration(v.GetString("dashboard.cache_ttl"), 5*time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid dashboard cache ttl: %w", err)
	}

	timeout, err := parseDuration(v.GetString("scheduler.timeout"), 10*time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid scheduler timeout: %w", err)
	}

	lockTTL, err := parseDuration(v.GetString("scheduler.lock_ttl"), timeout+time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid scheduler lock ttl: %w", err)
	}

	specs := make(map[string]string, len(DefaultTaskSpecs))
	for name := range DefaultTaskSpecs {
		specs[name] = v.GetString("scheduler.spec." + name)
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		EventsChannel:          v.GetString("events.channel"),
		JWTSecret:              v.GetString("jwt.secret"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryReportFolder: v.GetString("cloudinary.folder"),
		DashboardCacheTTL:      ttl,
		OpenAIAPIKey:           v.GetString("openai_api_key"),
		OpenAIModel:            v.GetString("openai.model"),
		OpenAIBaseURL:          v.GetString("openai.base_url"),
		AnswerRateLimit:        v.GetInt("answers.rate_limit"),
		Scheduler: SchedulerConfig{
			Enabled:  v.GetBool("scheduler.enabled"),
			Timezone: v.GetString("scheduler.timezone"),
			Timeout:  timeout,
			LockTTL:  lockTTL,
			Specs:    specs,
		},
		NeedsHelp: NeedsHelpConfig{
			MinRate:        v.GetFloat64("needs_help.min_rate"),
			MinAnswers:     v.GetInt("needs_help.min_answers"),
			MinAssignments: v.GetInt("needs_help.min_assignments"),
		},
		Retention: RetentionConfig{
			MetricsDays:   v.GetInt("retention.metrics_days"),
			SnapshotsDays: v.GetInt("retention.snapshots_days"),
		},
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if _, err := cfg.Location(); err != nil {
		return Config{}, fmt.Errorf("invalid scheduler timezone: %w", err)
	}

	if cfg.Retention.MetricsDays <= 0 {
		cfg.Retention.MetricsDays = 90
	}

	if cfg.Retention.SnapshotsDays <= 0 {
		cfg.Retention.SnapshotsDays = 365
	}

	if cfg.AnswerRateLimit <= 0 {
		cfg.AnswerRateLimit = 30
	}

	return cfg, nil
}

func parseDuration(value string, fallback time.Duration) (time.Duration, error) {
	if strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	return time.ParseDuration(value)
}
