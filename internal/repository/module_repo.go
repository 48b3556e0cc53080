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

// difficultyOrder sorts modules from beginner to advanced in SQL.
const difficultyOrder = `CASE difficulty_level
		WHEN 'beginner' THEN 0
		WHEN 'intermediate' THEN 1
		WHEN 'advanced' THEN 2
		ELSE 3 END`

// ModuleRepository handles sound module and exercise database operations
type ModuleRepository struct {
	db *database.DB
}

// NewModuleRepository creates a new module repository
func NewModuleRepository(db *database.DB) *ModuleRepository {
	return &ModuleRepository{db: db}
}

// List returns the modules with their exercises, easiest first and then by
// name. An empty difficulty returns every module.
func (r *ModuleRepository) List(ctx context.Context, difficulty models.DifficultyLevel) ([]models.SoundModule, error) {
	query := `
		SELECT sound_id, phoneme_ipa, name, description, articulatory_tip, difficulty_level, created_at
		FROM sound_modules`
	var args []any
	if difficulty != "" {
		query += ` WHERE difficulty_level = ?`
		args = append(args, string(difficulty))
	}
	query += ` ORDER BY ` + difficultyOrder + `, name`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing modules: %w", err)
	}
	var modules []models.SoundModule
	index := make(map[string]int)
	for rows.Next() {
		m, err := scanModule(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		index[m.SoundID] = len(modules)
		modules = append(modules, *m)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(modules) == 0 {
		return []models.SoundModule{}, nil
	}

	exRows, err := r.db.QueryContext(ctx, `
		SELECT sound_id, word, ipa, sentence, benchmark_audio_url
		FROM exercises
		ORDER BY sound_id, exercise_index`)
	if err != nil {
		return nil, fmt.Errorf("listing exercises: %w", err)
	}
	defer exRows.Close()

	for exRows.Next() {
		var soundID string
		var ex models.Exercise
		if err := exRows.Scan(&soundID, &ex.Word, &ex.IPA, &ex.Sentence, &ex.BenchmarkAudioURL); err != nil {
			return nil, err
		}
		if i, ok := index[soundID]; ok {
			modules[i].Exercises = append(modules[i].Exercises, ex)
		}
	}
	return modules, exRows.Err()
}

// Get retrieves a module with its exercises by sound id
func (r *ModuleRepository) Get(ctx context.Context, soundID string) (*models.SoundModule, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT sound_id, phoneme_ipa, name, description, articulatory_tip, difficulty_level, created_at
		FROM sound_modules
		WHERE sound_id = ?`, soundID)
	m, err := scanModule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting module %s: %w", soundID, err)
	}

	m.Exercises, err = r.Exercises(ctx, soundID)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Exercises returns the exercises of a module in index order
func (r *ModuleRepository) Exercises(ctx context.Context, soundID string) ([]models.Exercise, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT word, ipa, sentence, benchmark_audio_url
		FROM exercises
		WHERE sound_id = ?
		ORDER BY exercise_index`, soundID)
	if err != nil {
		return nil, fmt.Errorf("listing exercises of %s: %w", soundID, err)
	}
	defer rows.Close()

	exercises := []models.Exercise{}
	for rows.Next() {
		var ex models.Exercise
		if err := rows.Scan(&ex.Word, &ex.IPA, &ex.Sentence, &ex.BenchmarkAudioURL); err != nil {
			return nil, err
		}
		exercises = append(exercises, ex)
	}
	return exercises, rows.Err()
}

// Exercise retrieves a single exercise by module and index
func (r *ModuleRepository) Exercise(ctx context.Context, soundID string, index int) (*models.Exercise, error) {
	var ex models.Exercise
	err := r.db.QueryRowContext(ctx, `
		SELECT word, ipa, sentence, benchmark_audio_url
		FROM exercises
		WHERE sound_id = ? AND exercise_index = ?`, soundID, index).
		Scan(&ex.Word, &ex.IPA, &ex.Sentence, &ex.BenchmarkAudioURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting exercise %s/%d: %w", soundID, index, err)
	}
	return &ex, nil
}

// Upsert inserts or updates a module and its exercises. Cached benchmark
// audio is kept for exercises whose word is unchanged.
func (r *ModuleRepository) Upsert(ctx context.Context, m *models.SoundModule) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	dialect := r.db.Dialect
	moduleQuery := dialect.UpsertQuery("sound_modules",
		[]string{"sound_id"},
		[]string{"phoneme_ipa", "name", "description", "articulatory_tip", "difficulty_level"})
	// created_at is only written on insert
	insertModule := dialect.InsertIgnoreQuery("sound_modules",
		[]string{"sound_id", "phoneme_ipa", "name", "description", "articulatory_tip", "difficulty_level", "created_at"})

	return r.db.WithTx(ctx, func(tx *database.Tx) error {
		if _, err := tx.ExecContext(ctx, insertModule,
			m.SoundID, m.PhonemeIPA, m.Name, m.Description, m.ArticulatoryTip, string(m.DifficultyLevel), m.CreatedAt); err != nil {
			return fmt.Errorf("inserting module %s: %w", m.SoundID, err)
		}
		if _, err := tx.ExecContext(ctx, moduleQuery,
			m.SoundID, m.PhonemeIPA, m.Name, m.Description, m.ArticulatoryTip, string(m.DifficultyLevel)); err != nil {
			return fmt.Errorf("updating module %s: %w", m.SoundID, err)
		}

		for i, ex := range m.Exercises {
			if _, err := tx.ExecContext(ctx, `
				UPDATE exercises SET benchmark_audio_url = ''
				WHERE sound_id = ? AND exercise_index = ? AND word <> ?`, m.SoundID, i, ex.Word); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, insertExercise(dialect),
				m.SoundID, i, ex.Word, ex.IPA, ex.Sentence, ex.BenchmarkAudioURL); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE exercises SET word = ?, ipa = ?, sentence = ?
				WHERE sound_id = ? AND exercise_index = ?`, ex.Word, ex.IPA, ex.Sentence, m.SoundID, i); err != nil {
				return fmt.Errorf("updating exercise %s/%d: %w", m.SoundID, i, err)
			}
			if ex.BenchmarkAudioURL != "" {
				if _, err := tx.ExecContext(ctx, `
					UPDATE exercises SET benchmark_audio_url = ?
					WHERE sound_id = ? AND exercise_index = ?`, ex.BenchmarkAudioURL, m.SoundID, i); err != nil {
					return err
				}
			}
		}

		_, err := tx.ExecContext(ctx, `DELETE FROM exercises WHERE sound_id = ? AND exercise_index >= ?`,
			m.SoundID, len(m.Exercises))
		return err
	})
}

func insertExercise(d database.Dialect) string {
	return d.InsertIgnoreQuery("exercises",
		[]string{"sound_id", "exercise_index", "word", "ipa", "sentence", "benchmark_audio_url"})
}

// SetBenchmarkURL records the cached benchmark audio of an exercise
func (r *ModuleRepository) SetBenchmarkURL(ctx context.Context, soundID string, index int, url string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE exercises SET benchmark_audio_url = ?
		WHERE sound_id = ? AND exercise_index = ?`, url, soundID, index)
	if err != nil {
		return fmt.Errorf("setting benchmark audio for %s/%d: %w", soundID, index, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of modules
func (r *ModuleRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sound_modules`).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanModule(row rowScanner) (*models.SoundModule, error) {
	var m models.SoundModule
	var level string
	if err := row.Scan(&m.SoundID, &m.PhonemeIPA, &m.Name, &m.Description, &m.ArticulatoryTip, &level, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.DifficultyLevel = models.DifficultyLevel(level)
	m.Exercises = []models.Exercise{}
	return &m, nil
}
