package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"lautcoach/internal/database"
	"lautcoach/internal/models"
)

var progressColumns = []string{
	"user_id", "sound_id", "total_attempts", "average_score", "best_score",
	"last_practiced", "mastery_level", "version",
}

const selectProgress = `
	SELECT user_id, sound_id, total_attempts, average_score, best_score,
	       last_practiced, mastery_level, version
	FROM mastery_records`

// ProgressRepository handles mastery record database operations
type ProgressRepository struct {
	db database.DBTX
}

// NewProgressRepository creates a new progress repository
func NewProgressRepository(db database.DBTX) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// Get returns the user's record for a sound, or nil when none exists yet
func (r *ProgressRepository) Get(ctx context.Context, userID, soundID string) (*models.MasteryRecord, error) {
	rec, err := scanProgress(r.db.QueryRowContext(ctx, selectProgress+` WHERE user_id = ? AND sound_id = ?`, userID, soundID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting progress %s/%s: %w", userID, soundID, err)
	}
	return rec, nil
}

// ListByUser returns every record of a user keyed by sound id
func (r *ProgressRepository) ListByUser(ctx context.Context, userID string) (map[string]*models.MasteryRecord, error) {
	rows, err := r.db.QueryContext(ctx, selectProgress+` WHERE user_id = ? ORDER BY sound_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing progress of %s: %w", userID, err)
	}
	defer rows.Close()

	records := make(map[string]*models.MasteryRecord)
	for rows.Next() {
		rec, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		records[rec.SoundID] = rec
	}
	return records, rows.Err()
}

// All returns every record, for backups
func (r *ProgressRepository) All(ctx context.Context) ([]models.MasteryRecord, error) {
	rows, err := r.db.QueryContext(ctx, selectProgress+` ORDER BY user_id, sound_id`)
	if err != nil {
		return nil, fmt.Errorf("listing progress: %w", err)
	}
	defer rows.Close()

	records := []models.MasteryRecord{}
	for rows.Next() {
		rec, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// Save writes rec if nobody else changed the row since it was read. A record
// with Version 0 is inserted and must not exist yet; otherwise the stored
// version must still equal rec.Version. On success rec.Version is advanced.
// A lost race returns ErrConflict and the caller should re-read and retry.
func (r *ProgressRepository) Save(ctx context.Context, rec *models.MasteryRecord) error {
	lastPracticed := nullTime(rec.LastPracticed)

	if rec.Version == 0 {
		query := r.db.GetDialect().InsertIgnoreQuery("mastery_records", progressColumns)
		result, err := r.db.ExecContext(ctx, query,
			rec.UserID, rec.SoundID, rec.TotalAttempts, rec.AverageScore, rec.BestScore,
			lastPracticed, string(rec.MasteryLevel), 1)
		if err != nil {
			return fmt.Errorf("inserting progress %s/%s: %w", rec.UserID, rec.SoundID, err)
		}
		if err := expectOneRow(result); err != nil {
			return err
		}
		rec.Version = 1
		return nil
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE mastery_records
		SET total_attempts = ?, average_score = ?, best_score = ?, last_practiced = ?,
		    mastery_level = ?, version = version + 1
		WHERE user_id = ? AND sound_id = ? AND version = ?`,
		rec.TotalAttempts, rec.AverageScore, rec.BestScore, lastPracticed,
		string(rec.MasteryLevel), rec.UserID, rec.SoundID, rec.Version)
	if err != nil {
		return fmt.Errorf("updating progress %s/%s: %w", rec.UserID, rec.SoundID, err)
	}
	if err := expectOneRow(result); err != nil {
		return err
	}
	rec.Version++
	return nil
}

// Restore writes a record from a backup, replacing any existing row
func (r *ProgressRepository) Restore(ctx context.Context, rec *models.MasteryRecord) error {
	version := rec.Version
	if version < 1 {
		version = 1
	}
	query := r.db.GetDialect().UpsertQuery("mastery_records",
		[]string{"user_id", "sound_id"},
		[]string{"total_attempts", "average_score", "best_score", "last_practiced", "mastery_level", "version"})
	_, err := r.db.ExecContext(ctx, query,
		rec.UserID, rec.SoundID, rec.TotalAttempts, rec.AverageScore, rec.BestScore,
		nullTime(rec.LastPracticed), string(rec.MasteryLevel), version)
	if err != nil {
		return fmt.Errorf("restoring progress %s/%s: %w", rec.UserID, rec.SoundID, err)
	}
	return nil
}

func expectOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func scanProgress(row rowScanner) (*models.MasteryRecord, error) {
	var rec models.MasteryRecord
	var level string
	var lastPracticed sql.NullTime
	err := row.Scan(&rec.UserID, &rec.SoundID, &rec.TotalAttempts, &rec.AverageScore, &rec.BestScore,
		&lastPracticed, &level, &rec.Version)
	if err != nil {
		return nil, err
	}
	rec.MasteryLevel = models.MasteryLevel(level)
	if lastPracticed.Valid {
		rec.LastPracticed = &lastPracticed.Time
	}
	return &rec, nil
}
