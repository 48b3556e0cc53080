package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lautcoach/internal/audio"
	"lautcoach/internal/auth"
	"lautcoach/internal/config"
	"lautcoach/internal/database"
	"lautcoach/internal/feedback"
	"lautcoach/internal/handlers"
	"lautcoach/internal/health"
	"lautcoach/internal/models"
	"lautcoach/internal/observe"
	"lautcoach/internal/repository"
	"lautcoach/internal/resilience"
	"lautcoach/internal/security"
	"lautcoach/internal/service"
	"lautcoach/internal/storage"
	"lautcoach/migrations"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := config.Load()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.OpenAIAPIKey == "" {
		return errors.New("OPENAI_API_KEY is required for transcription")
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(ctx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	db, err := database.InitializeWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()
	logger.Info("database connection established", "type", cfg.DatabaseType)

	if cfg.MigrationsPath != "" {
		err = db.RunMigrations(ctx, cfg.MigrationsPath)
	} else {
		err = db.RunMigrationsFS(ctx, migrations.FS)
	}
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	if err := service.SeedIfEmpty(ctx, repository.NewModuleRepository(db), logger); err != nil {
		return fmt.Errorf("seeding modules: %w", err)
	}

	mux := http.NewServeMux()

	store, err := newStore(ctx, cfg, mux)
	if err != nil {
		return err
	}

	transcriber, err := audio.NewOpenAITranscriber(cfg.OpenAIAPIKey, cfg.TranscriptionModel)
	if err != nil {
		return err
	}
	synthesizer, err := newSynthesizer(cfg)
	if err != nil {
		return err
	}
	generator, err := feedback.NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.FeedbackModel, feedback.WithTimeout(cfg.FeedbackTimeout))
	if err != nil {
		return err
	}

	guards := service.Guards{
		STT:     newGuard("stt", 60*time.Second, metrics),
		TTS:     newGuard("tts", 30*time.Second, metrics),
		Storage: newGuard("storage", 30*time.Second, metrics),
		Email:   newGuard("email", 10*time.Second, metrics),
	}
	llmGuard := newGuard("llm", cfg.FeedbackTimeout, metrics)

	emailService, err := service.NewEmailService(ctx, cfg.S3Region, cfg.SESFromAddress, logger)
	if err != nil {
		return err
	}

	svc, err := service.NewPronunciationService(service.Dependencies{
		DB:          db,
		Transcriber: transcriber,
		Synthesizer: synthesizer,
		Store:       store,
		Feedback:    feedback.Guarded(generator, llmGuard),
		Notifier:    emailService,
		Metrics:     metrics,
		Logger:      logger,
		Guards:      guards,
	})
	if err != nil {
		return err
	}

	verifier, err := newVerifier(cfg)
	if err != nil {
		return err
	}
	limiter := security.NewRateLimiter(cfg.AnalyzeRatePerMinute, time.Minute)
	defer limiter.Close()

	handlers.Register(mux,
		handlers.NewPronunciationHandler(svc, cfg.UploadMaxSize),
		handlers.NewMiddleware(verifier, limiter, metrics),
	)
	health.New(health.Checker{Name: "database", Check: db.PingContext}).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
		// Analyze waits on transcription and feedback.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", server.Addr, "version", version)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(cfg.LogLevel))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// newStore picks S3 when a bucket is configured. Otherwise recordings are
// written to AudioDir and served from AudioBaseURL by this server.
func newStore(ctx context.Context, cfg *config.Config, mux *http.ServeMux) (storage.ObjectStore, error) {
	if cfg.UsesS3() {
		return storage.NewS3Store(ctx, storage.S3Config{
			Bucket:        cfg.S3Bucket,
			Region:        cfg.S3Region,
			Endpoint:      cfg.S3Endpoint,
			PublicBaseURL: cfg.S3PublicBaseURL,
		})
	}

	local, err := storage.NewLocalStore(cfg.AudioDir, cfg.AudioBaseURL)
	if err != nil {
		return nil, err
	}
	if prefix := strings.TrimRight(cfg.AudioBaseURL, "/"); strings.HasPrefix(prefix, "/") {
		mux.Handle("GET "+prefix+"/", http.StripPrefix(prefix+"/", http.FileServer(http.Dir(local.Dir()))))
	}
	return local, nil
}

// newSynthesizer returns nil for "none", which leaves benchmark audio unset.
func newSynthesizer(cfg *config.Config) (audio.Synthesizer, error) {
	switch cfg.SpeechProvider {
	case "translate":
		return audio.NewTranslateSynthesizer(""), nil
	case "none":
		return nil, nil
	default:
		return audio.NewOpenAISynthesizer(cfg.OpenAIAPIKey, cfg.SpeechVoice)
	}
}

func newGuard(name string, timeout time.Duration, metrics *observe.Metrics) *resilience.Guard {
	breaker := resilience.NewBreaker(resilience.BreakerConfig{Name: name})
	breaker.OnStateChange(func(_, to resilience.State) {
		metrics.RecordBreakerTransition(context.Background(), name, to.String())
	})
	return &resilience.Guard{Breaker: breaker, Timeout: timeout}
}

func newVerifier(cfg *config.Config) (auth.Verifier, error) {
	if cfg.AuthMode == "dev" {
		slog.Warn("dev authentication enabled, do not use in production")
		return &auth.DevVerifier{
			Token: cfg.DevToken,
			User:  models.User{ID: cfg.DevUserID, Email: cfg.DevUserEmail, Name: "Developer"},
		}, nil
	}
	return auth.NewFirebaseVerifier(cfg.FirebaseProjectID)
}
