package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"lautcoach/internal/database"
	"lautcoach/internal/models"
)

var sessionColumns = []string{
	"id", "user_id", "sound_id", "sound_name", "exercise_index", "word", "sentence",
	"transcription", "score", "target_ipa", "user_ipa", "errors_json", "feedback_text",
	"tips_json", "benchmark_audio_url", "user_audio_url", "created_at",
}

const selectSession = `
	SELECT id, user_id, sound_id, sound_name, exercise_index, word, sentence,
	       transcription, score, target_ipa, user_ipa, errors_json, feedback_text,
	       tips_json, benchmark_audio_url, user_audio_url, created_at
	FROM pronunciation_sessions`

// SessionRepository handles pronunciation session database operations
type SessionRepository struct {
	db database.DBTX
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db database.DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create stores an analyzed attempt, assigning an id and timestamp when unset
func (r *SessionRepository) Create(ctx context.Context, s *models.PronunciationSession) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	s.CreatedAt = s.CreatedAt.UTC()

	args, err := sessionArgs(s)
	if err != nil {
		return err
	}
	query := `INSERT INTO pronunciation_sessions (` + joinColumns(sessionColumns) + `) VALUES (` + marks(len(sessionColumns)) + `)`
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	return nil
}

// Restore inserts a session from a backup, skipping ids that already exist.
// It reports whether the row was inserted.
func (r *SessionRepository) Restore(ctx context.Context, s *models.PronunciationSession) (bool, error) {
	s.CreatedAt = s.CreatedAt.UTC()
	args, err := sessionArgs(s)
	if err != nil {
		return false, err
	}
	result, err := r.db.ExecContext(ctx, r.db.GetDialect().InsertIgnoreQuery("pronunciation_sessions", sessionColumns), args...)
	if err != nil {
		return false, fmt.Errorf("restoring session %s: %w", s.ID, err)
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// Get retrieves a session by id
func (r *SessionRepository) Get(ctx context.Context, id string) (*models.PronunciationSession, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx, selectSession+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// History returns a user's sessions newest first, optionally restricted to
// one sound.
func (r *SessionRepository) History(ctx context.Context, userID, soundID string, skip, limit int) ([]models.HistoryItem, error) {
	query := `
		SELECT id, created_at, sound_id, sound_name, word, score, errors_json
		FROM pronunciation_sessions
		WHERE user_id = ?`
	args := []any{userID}
	if soundID != "" {
		query += ` AND sound_id = ?`
		args = append(args, soundID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, skip)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	defer rows.Close()

	items := []models.HistoryItem{}
	for rows.Next() {
		var item models.HistoryItem
		var errorsJSON string
		if err := rows.Scan(&item.ID, &item.CreatedAt, &item.SoundID, &item.SoundName, &item.Word, &item.Score, &errorsJSON); err != nil {
			return nil, err
		}
		var errs []models.PhonemeError
		if err := json.Unmarshal([]byte(errorsJSON), &errs); err != nil {
			return nil, fmt.Errorf("decoding errors of session %s: %w", item.ID, err)
		}
		item.PhonemeErrorsCount = len(errs)
		items = append(items, item)
	}
	return items, rows.Err()
}

// All returns every session, oldest first
func (r *SessionRepository) All(ctx context.Context) ([]models.PronunciationSession, error) {
	rows, err := r.db.QueryContext(ctx, selectSession+` ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	sessions := []models.PronunciationSession{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// Aggregate summarizes every session of a user.
type Aggregate struct {
	Count          int
	AverageScore   float64
	DistinctSounds int
}

// Aggregate computes the session count, mean score and number of distinct
// sounds practiced by a user.
func (r *SessionRepository) Aggregate(ctx context.Context, userID string) (Aggregate, error) {
	var agg Aggregate
	var avg sql.NullFloat64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), AVG(score), COUNT(DISTINCT sound_id)
		FROM pronunciation_sessions
		WHERE user_id = ?`, userID).Scan(&agg.Count, &avg, &agg.DistinctSounds)
	if err != nil {
		return Aggregate{}, fmt.Errorf("aggregating sessions: %w", err)
	}
	agg.AverageScore = avg.Float64
	return agg, nil
}

// BestScore returns the user's highest score on an exercise, or nil when the
// exercise was never attempted.
func (r *SessionRepository) BestScore(ctx context.Context, userID, soundID string, index int) (*float64, error) {
	var best sql.NullFloat64
	err := r.db.QueryRowContext(ctx, `
		SELECT MAX(score)
		FROM pronunciation_sessions
		WHERE user_id = ? AND sound_id = ? AND exercise_index = ?`, userID, soundID, index).Scan(&best)
	if err != nil {
		return nil, fmt.Errorf("best score: %w", err)
	}
	if !best.Valid {
		return nil, nil
	}
	return &best.Float64, nil
}

func sessionArgs(s *models.PronunciationSession) ([]any, error) {
	errs := s.Analysis.Errors
	if errs == nil {
		errs = []models.PhonemeError{}
	}
	tips := s.Analysis.Tips
	if tips == nil {
		tips = []string{}
	}
	errorsJSON, err := json.Marshal(errs)
	if err != nil {
		return nil, err
	}
	tipsJSON, err := json.Marshal(tips)
	if err != nil {
		return nil, err
	}
	return []any{
		s.ID, s.UserID, s.SoundID, s.SoundName, s.ExerciseIndex, s.Word, s.Sentence,
		s.Transcription, s.Analysis.Score, s.Analysis.TargetIPA, s.Analysis.UserIPA,
		string(errorsJSON), s.Analysis.FeedbackText, string(tipsJSON),
		s.BenchmarkAudioURL, s.UserAudioURL, s.CreatedAt,
	}, nil
}

func scanSession(row rowScanner) (*models.PronunciationSession, error) {
	var s models.PronunciationSession
	var errorsJSON, tipsJSON string
	err := row.Scan(
		&s.ID, &s.UserID, &s.SoundID, &s.SoundName, &s.ExerciseIndex, &s.Word, &s.Sentence,
		&s.Transcription, &s.Analysis.Score, &s.Analysis.TargetIPA, &s.Analysis.UserIPA,
		&errorsJSON, &s.Analysis.FeedbackText, &tipsJSON,
		&s.BenchmarkAudioURL, &s.UserAudioURL, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(errorsJSON), &s.Analysis.Errors); err != nil {
		return nil, fmt.Errorf("decoding errors of session %s: %w", s.ID, err)
	}
	if err := json.Unmarshal([]byte(tipsJSON), &s.Analysis.Tips); err != nil {
		return nil, fmt.Errorf("decoding tips of session %s: %w", s.ID, err)
	}
	return &s, nil
}
