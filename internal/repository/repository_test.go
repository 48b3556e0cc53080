package repository

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"lautcoach/internal/database/dbtest"
	"lautcoach/internal/models"
)

func seedModule(t *testing.T, repo *ModuleRepository, id string, level models.DifficultyLevel, name string, words ...string) *models.SoundModule {
	t.Helper()
	m := &models.SoundModule{
		SoundID:         id,
		PhonemeIPA:      "ç",
		Name:            name,
		Description:     "desc",
		ArticulatoryTip: "tip",
		DifficultyLevel: level,
	}
	for _, w := range words {
		m.Exercises = append(m.Exercises, models.Exercise{Word: w, IPA: w, Sentence: w + "."})
	}
	if err := repo.Upsert(context.Background(), m); err != nil {
		t.Fatalf("Upsert(%s): %v", id, err)
	}
	return m
}

func TestModuleRepository(t *testing.T) {
	db := dbtest.New(t)
	repo := NewModuleRepository(db)
	ctx := context.Background()

	seedModule(t, repo, "r_sound", models.DifficultyAdvanced, "R", "rot")
	seedModule(t, repo, "ich_laut", models.DifficultyIntermediate, "Ich-Laut", "ich", "nicht")
	seedModule(t, repo, "ach_laut", models.DifficultyIntermediate, "Ach-Laut", "Bach")
	seedModule(t, repo, "st_cluster", models.DifficultyBeginner, "St", "Stadt")

	t.Run("list ordered by difficulty then name", func(t *testing.T) {
		modules, err := repo.List(ctx, "")
		if err != nil {
			t.Fatal(err)
		}
		var ids []string
		for _, m := range modules {
			ids = append(ids, m.SoundID)
		}
		want := []string{"st_cluster", "ach_laut", "ich_laut", "r_sound"}
		if !reflect.DeepEqual(ids, want) {
			t.Errorf("List() order = %v, want %v", ids, want)
		}
		if len(modules[2].Exercises) != 2 || modules[2].Exercises[1].Word != "nicht" {
			t.Errorf("ich_laut exercises = %+v", modules[2].Exercises)
		}
	})

	t.Run("list filtered", func(t *testing.T) {
		modules, err := repo.List(ctx, models.DifficultyIntermediate)
		if err != nil {
			t.Fatal(err)
		}
		if len(modules) != 2 {
			t.Errorf("List(intermediate) returned %d modules, want 2", len(modules))
		}
		none, err := repo.List(ctx, "expert")
		if err != nil {
			t.Fatal(err)
		}
		if none == nil || len(none) != 0 {
			t.Errorf("List(expert) = %v, want empty slice", none)
		}
	})

	t.Run("get and exercise", func(t *testing.T) {
		m, err := repo.Get(ctx, "ich_laut")
		if err != nil {
			t.Fatal(err)
		}
		if m.Name != "Ich-Laut" || m.DifficultyLevel != models.DifficultyIntermediate || len(m.Exercises) != 2 {
			t.Errorf("Get() = %+v", m)
		}
		ex, err := repo.Exercise(ctx, "ich_laut", 1)
		if err != nil {
			t.Fatal(err)
		}
		if ex.Word != "nicht" {
			t.Errorf("Exercise(1).Word = %q, want nicht", ex.Word)
		}
		if _, err := repo.Exercise(ctx, "ich_laut", 2); !errors.Is(err, ErrNotFound) {
			t.Errorf("Exercise(2) error = %v, want ErrNotFound", err)
		}
		if _, err := repo.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get(nope) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("benchmark url survives reseed of same word", func(t *testing.T) {
		if err := repo.SetBenchmarkURL(ctx, "ich_laut", 0, "https://cdn/ich.mp3"); err != nil {
			t.Fatal(err)
		}
		seedModule(t, repo, "ich_laut", models.DifficultyIntermediate, "Ich-Laut", "ich", "Licht")

		ex0, _ := repo.Exercise(ctx, "ich_laut", 0)
		if ex0.BenchmarkAudioURL != "https://cdn/ich.mp3" {
			t.Errorf("benchmark url = %q, want kept", ex0.BenchmarkAudioURL)
		}
		ex1, _ := repo.Exercise(ctx, "ich_laut", 1)
		if ex1.Word != "Licht" {
			t.Errorf("exercise 1 word = %q, want Licht", ex1.Word)
		}
	})

	t.Run("reseed with fewer exercises trims", func(t *testing.T) {
		seedModule(t, repo, "ich_laut", models.DifficultyIntermediate, "Ich-Laut", "ich")
		exercises, err := repo.Exercises(ctx, "ich_laut")
		if err != nil {
			t.Fatal(err)
		}
		if len(exercises) != 1 {
			t.Errorf("Exercises() = %d, want 1", len(exercises))
		}
	})

	t.Run("set benchmark on missing exercise", func(t *testing.T) {
		if err := repo.SetBenchmarkURL(ctx, "ich_laut", 9, "x"); !errors.Is(err, ErrNotFound) {
			t.Errorf("SetBenchmarkURL error = %v, want ErrNotFound", err)
		}
	})

	t.Run("count", func(t *testing.T) {
		n, err := repo.Count(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if n != 4 {
			t.Errorf("Count() = %d, want 4", n)
		}
	})
}

func TestSessionRepository(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	seedModule(t, NewModuleRepository(db), "ich_laut", models.DifficultyIntermediate, "Ich-Laut", "ich", "nicht")
	seedModule(t, NewModuleRepository(db), "r_sound", models.DifficultyAdvanced, "R", "rot")
	repo := NewSessionRepository(db)

	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	mk := func(user, sound string, index int, score float64, offset time.Duration, errs int) *models.PronunciationSession {
		s := &models.PronunciationSession{
			UserID:        user,
			SoundID:       sound,
			SoundName:     sound,
			ExerciseIndex: index,
			Word:          "ich",
			Analysis: models.AttemptResult{
				Score:     score,
				TargetIPA: "ɪç",
				UserIPA:   "ɪk",
				Errors:    make([]models.PhonemeError, errs),
				Tips:      []string{"tip"},
			},
			CreatedAt: base.Add(offset),
		}
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("Create: %v", err)
		}
		return s
	}

	first := mk("u1", "ich_laut", 0, 40, 0, 2)
	mk("u1", "ich_laut", 0, 90, time.Minute, 0)
	mk("u1", "r_sound", 0, 50.5, 2*time.Minute, 1)
	mk("u2", "ich_laut", 0, 100, 3*time.Minute, 0)

	t.Run("create assigns id", func(t *testing.T) {
		if first.ID == "" {
			t.Fatal("ID not assigned")
		}
		got, err := repo.Get(ctx, first.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Analysis.Score != 40 || len(got.Analysis.Errors) != 2 || !got.CreatedAt.Equal(base) {
			t.Errorf("Get() = %+v", got)
		}
	})

	t.Run("history newest first", func(t *testing.T) {
		items, err := repo.History(ctx, "u1", "", 0, 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(items) != 3 {
			t.Fatalf("History() = %d items, want 3", len(items))
		}
		if items[0].SoundID != "r_sound" || items[2].ID != first.ID {
			t.Errorf("History() order = %+v", items)
		}
		if items[2].PhonemeErrorsCount != 2 {
			t.Errorf("PhonemeErrorsCount = %d, want 2", items[2].PhonemeErrorsCount)
		}
	})

	t.Run("history filtered and paged", func(t *testing.T) {
		items, err := repo.History(ctx, "u1", "ich_laut", 1, 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(items) != 1 || items[0].ID != first.ID {
			t.Errorf("History(skip=1) = %+v", items)
		}
	})

	t.Run("aggregate", func(t *testing.T) {
		agg, err := repo.Aggregate(ctx, "u1")
		if err != nil {
			t.Fatal(err)
		}
		if agg.Count != 3 || agg.DistinctSounds != 2 {
			t.Errorf("Aggregate() = %+v", agg)
		}
		if agg.AverageScore < 60.16 || agg.AverageScore > 60.17 {
			t.Errorf("AverageScore = %v, want about 60.17", agg.AverageScore)
		}

		empty, err := repo.Aggregate(ctx, "nobody")
		if err != nil {
			t.Fatal(err)
		}
		if empty != (Aggregate{}) {
			t.Errorf("Aggregate(nobody) = %+v, want zero", empty)
		}
	})

	t.Run("best score", func(t *testing.T) {
		best, err := repo.BestScore(ctx, "u1", "ich_laut", 0)
		if err != nil {
			t.Fatal(err)
		}
		if best == nil || *best != 90 {
			t.Errorf("BestScore() = %v, want 90", best)
		}
		none, err := repo.BestScore(ctx, "u1", "ich_laut", 1)
		if err != nil {
			t.Fatal(err)
		}
		if none != nil {
			t.Errorf("BestScore(unplayed) = %v, want nil", *none)
		}
	})

	t.Run("restore skips duplicates", func(t *testing.T) {
		dup := *first
		inserted, err := repo.Restore(ctx, &dup)
		if err != nil {
			t.Fatal(err)
		}
		if inserted {
			t.Error("Restore() inserted a duplicate id")
		}
		all, err := repo.All(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 4 {
			t.Errorf("All() = %d, want 4", len(all))
		}
	})
}

func TestProgressRepository(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	seedModule(t, NewModuleRepository(db), "ich_laut", models.DifficultyIntermediate, "Ich-Laut", "ich")
	repo := NewProgressRepository(db)

	got, err := repo.Get(ctx, "u1", "ich_laut")
	if err != nil || got != nil {
		t.Fatalf("Get() on empty = %v, %v; want nil, nil", got, err)
	}

	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	rec := &models.MasteryRecord{
		UserID: "u1", SoundID: "ich_laut", TotalAttempts: 1, AverageScore: 80, BestScore: 80,
		LastPracticed: &now, MasteryLevel: models.MasteryPracticing,
	}
	if err := repo.Save(ctx, rec); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if rec.Version != 1 {
		t.Errorf("Version after insert = %d, want 1", rec.Version)
	}

	t.Run("second insert conflicts", func(t *testing.T) {
		dup := *rec
		dup.Version = 0
		if err := repo.Save(ctx, &dup); !errors.Is(err, ErrConflict) {
			t.Errorf("Save() error = %v, want ErrConflict", err)
		}
	})

	t.Run("compare and swap", func(t *testing.T) {
		stale, _ := repo.Get(ctx, "u1", "ich_laut")
		fresh, _ := repo.Get(ctx, "u1", "ich_laut")

		fresh.TotalAttempts = 2
		if err := repo.Save(ctx, fresh); err != nil {
			t.Fatalf("Save(fresh): %v", err)
		}
		stale.TotalAttempts = 99
		if err := repo.Save(ctx, stale); !errors.Is(err, ErrConflict) {
			t.Errorf("Save(stale) error = %v, want ErrConflict", err)
		}

		stored, _ := repo.Get(ctx, "u1", "ich_laut")
		if stored.TotalAttempts != 2 || stored.Version != 2 {
			t.Errorf("stored = %+v", stored)
		}
		if stored.LastPracticed == nil || !stored.LastPracticed.Equal(now) {
			t.Errorf("LastPracticed = %v, want %v", stored.LastPracticed, now)
		}
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		const writers = 8
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					cur, err := repo.Get(ctx, "u1", "ich_laut")
					if err != nil {
						t.Error(err)
						return
					}
					cur.TotalAttempts++
					err = repo.Save(ctx, cur)
					if errors.Is(err, ErrConflict) {
						continue
					}
					if err != nil {
						t.Error(err)
					}
					return
				}
			}()
		}
		wg.Wait()

		stored, _ := repo.Get(ctx, "u1", "ich_laut")
		if stored.TotalAttempts != 2+writers {
			t.Errorf("TotalAttempts = %d, want %d", stored.TotalAttempts, 2+writers)
		}
	})

	t.Run("list and restore", func(t *testing.T) {
		byUser, err := repo.ListByUser(ctx, "u1")
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := byUser["ich_laut"]; !ok || len(byUser) != 1 {
			t.Errorf("ListByUser() = %v", byUser)
		}

		restored := models.MasteryRecord{UserID: "u2", SoundID: "ich_laut", TotalAttempts: 5, AverageScore: 90, BestScore: 95, MasteryLevel: models.MasteryMastered}
		if err := repo.Restore(ctx, &restored); err != nil {
			t.Fatal(err)
		}
		all, err := repo.All(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 2 || all[1].UserID != "u2" || all[1].LastPracticed != nil {
			t.Errorf("All() = %+v", all)
		}
	})
}
