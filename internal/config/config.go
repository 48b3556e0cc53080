package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"lautcoach/internal/validation"
)

// Config holds application configuration
type Config struct {
	ServerPort     string
	DatabaseType   string
	DatabasePath   string
	DatabaseURL    string
	MigrationsPath string

	LogLevel  string
	LogFormat string

	OpenAIAPIKey       string
	TranscriptionModel string
	FeedbackModel      string
	SpeechVoice        string
	SpeechProvider     string
	FeedbackTimeout    time.Duration

	S3Bucket        string
	S3Region        string
	S3Endpoint      string
	S3PublicBaseURL string
	AudioDir        string
	AudioBaseURL    string

	SESFromAddress string

	AuthMode          string
	FirebaseProjectID string
	DevToken          string
	DevUserID         string
	DevUserEmail      string

	AnalyzeRatePerMinute int
	UploadMaxSize        int64
}

// Load reads configuration from environment variables with sensible defaults
func Load() *Config {
	return &Config{
		ServerPort:     getEnv("PORT", "8080"),
		DatabaseType:   getEnv("DATABASE_TYPE", "sqlite"),
		DatabasePath:   getEnv("DB_PATH", "./lautcoach.db"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		MigrationsPath: getEnv("MIGRATIONS_PATH", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		TranscriptionModel: getEnv("OPENAI_TRANSCRIPTION_MODEL", "whisper-1"),
		FeedbackModel:      getEnv("OPENAI_FEEDBACK_MODEL", "gpt-4o-mini"),
		SpeechVoice:        getEnv("OPENAI_SPEECH_VOICE", "alloy"),
		SpeechProvider:     getEnv("SPEECH_PROVIDER", "openai"),
		FeedbackTimeout:    getEnvDuration("FEEDBACK_TIMEOUT", 30*time.Second),

		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Region:        getEnv("AWS_REGION", "eu-central-1"),
		S3Endpoint:      getEnv("S3_ENDPOINT", ""),
		S3PublicBaseURL: getEnv("S3_PUBLIC_BASE_URL", ""),
		AudioDir:        getEnv("AUDIO_DIR", "./data/audio"),
		AudioBaseURL:    getEnv("AUDIO_BASE_URL", "/audio"),

		SESFromAddress: getEnv("SES_FROM_ADDRESS", ""),

		AuthMode:          getEnv("AUTH_MODE", "firebase"),
		FirebaseProjectID: getEnv("FIREBASE_PROJECT_ID", ""),
		DevToken:          getEnv("DEV_TOKEN", ""),
		DevUserID:         getEnv("DEV_USER_ID", "dev-user"),
		DevUserEmail:      getEnv("DEV_USER_EMAIL", ""),

		AnalyzeRatePerMinute: getEnvInt("ANALYZE_RATE_PER_MINUTE", 20),
		UploadMaxSize:        int64(getEnvInt("UPLOAD_MAX_BYTES", 10<<20)),
	}
}

// UsesS3 reports whether audio objects go to S3 rather than the local directory.
func (c *Config) UsesS3() bool {
	return c.S3Bucket != ""
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.ServerPort == "" {
		errs = append(errs, errors.New("server port must not be empty"))
	}
	switch strings.ToLower(c.DatabaseType) {
	case "sqlite", "sqlite3", "sqlite-pure", "modernc", "":
		if c.DatabasePath == "" {
			errs = append(errs, errors.New("DB_PATH is required for sqlite"))
		}
	case "postgres", "postgresql", "mysql":
		if c.DatabaseURL == "" {
			errs = append(errs, fmt.Errorf("DATABASE_URL is required for %s", c.DatabaseType))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported database type %q", c.DatabaseType))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log level %q", c.LogLevel))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log format %q", c.LogFormat))
	}
	switch c.AuthMode {
	case "firebase":
		if c.FirebaseProjectID == "" {
			errs = append(errs, errors.New("FIREBASE_PROJECT_ID is required when AUTH_MODE=firebase"))
		}
	case "dev":
		if c.DevToken == "" {
			errs = append(errs, errors.New("DEV_TOKEN is required when AUTH_MODE=dev"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid auth mode %q", c.AuthMode))
	}
	switch c.SpeechProvider {
	case "openai", "translate", "none":
	default:
		errs = append(errs, fmt.Errorf("invalid speech provider %q", c.SpeechProvider))
	}
	if c.SESFromAddress != "" {
		if err := validation.ValidateEmail(c.SESFromAddress); err != nil {
			errs = append(errs, fmt.Errorf("SES_FROM_ADDRESS: %w", err))
		}
	}
	if c.FeedbackTimeout <= 0 {
		errs = append(errs, errors.New("feedback timeout must be positive"))
	}
	if c.AnalyzeRatePerMinute <= 0 {
		errs = append(errs, errors.New("analyze rate must be positive"))
	}
	if c.UploadMaxSize <= 0 {
		errs = append(errs, errors.New("upload max size must be positive"))
	}

	return errors.Join(errs...)
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
