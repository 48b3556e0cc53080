package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the keys that may be set in a config file. Pointer
// fields distinguish "unset" from the zero value.
type fileConfig struct {
	Server *struct {
		Port *string `yaml:"port" toml:"port"`
	} `yaml:"server" toml:"server"`

	Database *struct {
		Type       *string `yaml:"type" toml:"type"`
		Path       *string `yaml:"path" toml:"path"`
		URL        *string `yaml:"url" toml:"url"`
		Migrations *string `yaml:"migrations" toml:"migrations"`
	} `yaml:"database" toml:"database"`

	Log *struct {
		Level  *string `yaml:"level" toml:"level"`
		Format *string `yaml:"format" toml:"format"`
	} `yaml:"log" toml:"log"`

	OpenAI *struct {
		TranscriptionModel *string `yaml:"transcription_model" toml:"transcription_model"`
		FeedbackModel      *string `yaml:"feedback_model" toml:"feedback_model"`
		Voice              *string `yaml:"voice" toml:"voice"`
		SpeechProvider     *string `yaml:"speech_provider" toml:"speech_provider"`
		FeedbackTimeout    *string `yaml:"feedback_timeout" toml:"feedback_timeout"`
	} `yaml:"openai" toml:"openai"`

	Storage *struct {
		S3Bucket        *string `yaml:"s3_bucket" toml:"s3_bucket"`
		S3Region        *string `yaml:"s3_region" toml:"s3_region"`
		S3Endpoint      *string `yaml:"s3_endpoint" toml:"s3_endpoint"`
		S3PublicBaseURL *string `yaml:"s3_public_base_url" toml:"s3_public_base_url"`
		AudioDir        *string `yaml:"audio_dir" toml:"audio_dir"`
		AudioBaseURL    *string `yaml:"audio_base_url" toml:"audio_base_url"`
	} `yaml:"storage" toml:"storage"`

	Email *struct {
		From *string `yaml:"from" toml:"from"`
	} `yaml:"email" toml:"email"`

	Auth *struct {
		Mode              *string `yaml:"mode" toml:"mode"`
		FirebaseProjectID *string `yaml:"firebase_project_id" toml:"firebase_project_id"`
		DevUserID         *string `yaml:"dev_user_id" toml:"dev_user_id"`
		DevUserEmail      *string `yaml:"dev_user_email" toml:"dev_user_email"`
	} `yaml:"auth" toml:"auth"`

	Limits *struct {
		AnalyzePerMinute *int   `yaml:"analyze_per_minute" toml:"analyze_per_minute"`
		UploadMaxBytes   *int64 `yaml:"upload_max_bytes" toml:"upload_max_bytes"`
	} `yaml:"limits" toml:"limits"`
}

// LoadFile overlays the values set in the file at path onto c. The format is
// chosen by extension: .yaml, .yml or .toml. Secrets (API keys, dev token)
// are only read from the environment.
func (c *Config) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return c.LoadYAML(f)
	case ".toml":
		return c.LoadTOML(f)
	default:
		return fmt.Errorf("unsupported config file extension %q", ext)
	}
}

// LoadYAML overlays YAML config from r. Unknown keys are rejected.
func (c *Config) LoadYAML(r io.Reader) error {
	var fc fileConfig
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && err != io.EOF {
		return fmt.Errorf("decoding yaml config: %w", err)
	}
	return c.apply(&fc)
}

// LoadTOML overlays TOML config from r. Unknown keys are rejected.
func (c *Config) LoadTOML(r io.Reader) error {
	var fc fileConfig
	md, err := toml.NewDecoder(r).Decode(&fc)
	if err != nil {
		return fmt.Errorf("decoding toml config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown toml config keys: %v", undecoded)
	}
	return c.apply(&fc)
}

func (c *Config) apply(fc *fileConfig) error {
	if s := fc.Server; s != nil {
		set(&c.ServerPort, s.Port)
	}
	if d := fc.Database; d != nil {
		set(&c.DatabaseType, d.Type)
		set(&c.DatabasePath, d.Path)
		set(&c.DatabaseURL, d.URL)
		set(&c.MigrationsPath, d.Migrations)
	}
	if l := fc.Log; l != nil {
		set(&c.LogLevel, l.Level)
		set(&c.LogFormat, l.Format)
	}
	if o := fc.OpenAI; o != nil {
		set(&c.TranscriptionModel, o.TranscriptionModel)
		set(&c.FeedbackModel, o.FeedbackModel)
		set(&c.SpeechVoice, o.Voice)
		set(&c.SpeechProvider, o.SpeechProvider)
		if o.FeedbackTimeout != nil {
			d, err := time.ParseDuration(*o.FeedbackTimeout)
			if err != nil {
				return fmt.Errorf("openai.feedback_timeout: %w", err)
			}
			c.FeedbackTimeout = d
		}
	}
	if s := fc.Storage; s != nil {
		set(&c.S3Bucket, s.S3Bucket)
		set(&c.S3Region, s.S3Region)
		set(&c.S3Endpoint, s.S3Endpoint)
		set(&c.S3PublicBaseURL, s.S3PublicBaseURL)
		set(&c.AudioDir, s.AudioDir)
		set(&c.AudioBaseURL, s.AudioBaseURL)
	}
	if e := fc.Email; e != nil {
		set(&c.SESFromAddress, e.From)
	}
	if a := fc.Auth; a != nil {
		set(&c.AuthMode, a.Mode)
		set(&c.FirebaseProjectID, a.FirebaseProjectID)
		set(&c.DevUserID, a.DevUserID)
		set(&c.DevUserEmail, a.DevUserEmail)
	}
	if l := fc.Limits; l != nil {
		set(&c.AnalyzeRatePerMinute, l.AnalyzePerMinute)
		set(&c.UploadMaxSize, l.UploadMaxBytes)
	}
	return nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
