package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"lautcoach/internal/database"
	"lautcoach/internal/models"
	"lautcoach/internal/repository"
	"lautcoach/internal/validation"
)

// BackupVersion is the format version written by Export.
const BackupVersion = "1.0"

// BackupData represents the complete database backup structure
type BackupData struct {
	Version    string                        `json:"version"`
	ExportedAt time.Time                     `json:"exported_at"`
	Modules    []models.SoundModule          `json:"modules"`
	Sessions   []models.PronunciationSession `json:"sessions"`
	Mastery    []models.MasteryRecord        `json:"mastery"`
}

// ImportSummary counts what an import wrote.
type ImportSummary struct {
	Modules         int
	Sessions        int
	SessionsSkipped int
	Mastery         int
}

// BackupService handles database backup and restore operations
type BackupService struct {
	db     *database.DB
	logger *slog.Logger
}

// NewBackupService creates a new backup service
func NewBackupService(db *database.DB, logger *slog.Logger) *BackupService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BackupService{db: db, logger: logger}
}

// Export creates a complete backup of the database to a file
func (s *BackupService) Export(ctx context.Context, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if err := s.ExportToWriter(ctx, file); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "database exported", "path", outputPath)
	return file.Close()
}

// ExportToWriter writes the backup as indented JSON to w
func (s *BackupService) ExportToWriter(ctx context.Context, w io.Writer) error {
	backup, err := s.snapshot(ctx)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return fmt.Errorf("failed to encode backup: %w", err)
	}

	s.logger.InfoContext(ctx, "backup written",
		"modules", len(backup.Modules),
		"sessions", len(backup.Sessions),
		"mastery_records", len(backup.Mastery))
	return nil
}

func (s *BackupService) snapshot(ctx context.Context) (*BackupData, error) {
	backup := &BackupData{
		Version:    BackupVersion,
		ExportedAt: time.Now().UTC(),
	}

	var err error
	if backup.Modules, err = repository.NewModuleRepository(s.db).List(ctx, ""); err != nil {
		return nil, fmt.Errorf("failed to export modules: %w", err)
	}
	if backup.Modules == nil {
		backup.Modules = []models.SoundModule{}
	}
	if backup.Sessions, err = repository.NewSessionRepository(s.db).All(ctx); err != nil {
		return nil, fmt.Errorf("failed to export sessions: %w", err)
	}
	if backup.Mastery, err = repository.NewProgressRepository(s.db).All(ctx); err != nil {
		return nil, fmt.Errorf("failed to export mastery records: %w", err)
	}
	return backup, nil
}

// Import restores a database from a backup file
func (s *BackupService) Import(ctx context.Context, inputPath string) (ImportSummary, error) {
	file, err := os.Open(inputPath)
	if err != nil {
		return ImportSummary{}, fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()

	return s.ImportFromReader(ctx, file)
}

// ImportFromReader restores a backup read from reader. Modules are
// upserted, sessions already present are skipped and mastery records are
// replaced.
func (s *BackupService) ImportFromReader(ctx context.Context, reader io.Reader) (ImportSummary, error) {
	var backup BackupData
	if err := json.NewDecoder(reader).Decode(&backup); err != nil {
		return ImportSummary{}, fmt.Errorf("failed to decode backup: %w", err)
	}
	if backup.Version != BackupVersion {
		return ImportSummary{}, fmt.Errorf("unsupported backup version %q", backup.Version)
	}
	s.logger.InfoContext(ctx, "importing backup", "version", backup.Version, "exported_at", backup.ExportedAt)

	for _, m := range backup.Modules {
		if err := validation.ValidateSoundID(m.SoundID); err != nil {
			return ImportSummary{}, fmt.Errorf("invalid module %q: %w", m.Name, err)
		}
	}

	var summary ImportSummary
	modules := repository.NewModuleRepository(s.db)
	for i := range backup.Modules {
		if err := modules.Upsert(ctx, &backup.Modules[i]); err != nil {
			return summary, fmt.Errorf("failed to import module %s: %w", backup.Modules[i].SoundID, err)
		}
		summary.Modules++
	}

	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		sessions := repository.NewSessionRepository(tx)
		for i := range backup.Sessions {
			inserted, err := sessions.Restore(ctx, &backup.Sessions[i])
			if err != nil {
				return fmt.Errorf("failed to import session %s: %w", backup.Sessions[i].ID, err)
			}
			if inserted {
				summary.Sessions++
			} else {
				summary.SessionsSkipped++
			}
		}

		progress := repository.NewProgressRepository(tx)
		for i := range backup.Mastery {
			rec := &backup.Mastery[i]
			if err := rec.Validate(); err != nil {
				return fmt.Errorf("invalid mastery record %s/%s: %w", rec.UserID, rec.SoundID, err)
			}
			if err := progress.Restore(ctx, rec); err != nil {
				return err
			}
			summary.Mastery++
		}
		return nil
	})
	if err != nil {
		return summary, err
	}

	s.logger.InfoContext(ctx, "database import completed",
		"modules", summary.Modules,
		"sessions", summary.Sessions,
		"sessions_skipped", summary.SessionsSkipped,
		"mastery_records", summary.Mastery)
	return summary, nil
}
