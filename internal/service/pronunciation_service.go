package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"lautcoach/internal/audio"
	"lautcoach/internal/database"
	"lautcoach/internal/mastery"
	"lautcoach/internal/models"
	"lautcoach/internal/observe"
	"lautcoach/internal/phonetics"
	"lautcoach/internal/repository"
	"lautcoach/internal/resilience"
	"lautcoach/internal/scoring"
	"lautcoach/internal/storage"
)

var (
	ErrModuleNotFound      = errors.New("module not found")
	ErrExerciseNotFound    = errors.New("exercise not found")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrTranscriptionFailed = errors.New("transcription failed")
	ErrStorageFailed       = errors.New("audio upload failed")
)

const (
	defaultHistoryLimit   = 20
	maxHistoryLimit       = 100
	defaultRecommendLimit = 3
	maxRecommendLimit     = 10
	statsListCap          = 5

	// maxSaveAttempts bounds the re-read and re-apply loop on mastery
	// record conflicts.
	maxSaveAttempts = 5
)

// Guards holds the resilience policy of each external collaborator. A nil
// guard calls the collaborator directly.
type Guards struct {
	STT     *resilience.Guard
	TTS     *resilience.Guard
	Storage *resilience.Guard
	Email   *resilience.Guard
}

// Dependencies are the collaborators of a PronunciationService. DB,
// Transcriber and Store are required; the rest may be nil.
type Dependencies struct {
	DB          *database.DB
	Transcriber audio.Transcriber
	Synthesizer audio.Synthesizer
	Store       storage.ObjectStore
	Feedback    scoring.FeedbackGenerator
	Notifier    MasteryNotifier
	Metrics     *observe.Metrics
	Logger      *slog.Logger
	Guards      Guards
}

// PronunciationService scores recorded attempts and tracks per-sound mastery.
type PronunciationService struct {
	deps     Dependencies
	modules  *repository.ModuleRepository
	sessions *repository.SessionRepository
	progress *repository.ProgressRepository
	scorer   *scoring.Scorer
	logger   *slog.Logger
	metrics  *observe.Metrics

	benchmarks singleflight.Group
	now        func() time.Time
}

// NewPronunciationService creates a pronunciation service.
func NewPronunciationService(deps Dependencies) (*PronunciationService, error) {
	if deps.DB == nil {
		return nil, errors.New("pronunciation service: database is required")
	}
	if deps.Transcriber == nil {
		return nil, errors.New("pronunciation service: transcriber is required")
	}
	if deps.Store == nil {
		return nil, errors.New("pronunciation service: object store is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}

	var fb scoring.FeedbackGenerator
	if deps.Feedback != nil {
		fb = timedFeedback{next: deps.Feedback, metrics: metrics}
	}

	return &PronunciationService{
		deps:     deps,
		modules:  repository.NewModuleRepository(deps.DB),
		sessions: repository.NewSessionRepository(deps.DB),
		progress: repository.NewProgressRepository(deps.DB),
		scorer:   scoring.NewScorer(fb, logger),
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}, nil
}

// DifficultyLevels returns the difficulty levels used by at least one
// module, easiest first.
func (s *PronunciationService) DifficultyLevels(ctx context.Context) ([]models.DifficultyLevel, error) {
	modules, err := s.modules.List(ctx, "")
	if err != nil {
		return nil, err
	}
	levels := []models.DifficultyLevel{}
	for _, level := range models.DifficultyLevels {
		if slices.ContainsFunc(modules, func(m models.SoundModule) bool { return m.DifficultyLevel == level }) {
			levels = append(levels, level)
		}
	}
	return levels, nil
}

// ListModules returns the modules easiest first, filtered by difficulty
// when one is given. With a user each summary carries their progress.
func (s *PronunciationService) ListModules(ctx context.Context, user *models.User, difficulty models.DifficultyLevel) ([]models.ModuleSummary, error) {
	if difficulty != "" && !difficulty.Valid() {
		return nil, fmt.Errorf("%w: unknown difficulty %q", ErrInvalidArgument, difficulty)
	}
	modules, err := s.modules.List(ctx, difficulty)
	if err != nil {
		return nil, err
	}
	progress, err := s.progressOf(ctx, user)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.ModuleSummary, 0, len(modules))
	for i := range modules {
		summaries = append(summaries, modules[i].Summary(progress[modules[i].SoundID]))
	}
	return summaries, nil
}

// GetModule returns a module with its exercises.
func (s *PronunciationService) GetModule(ctx context.Context, user *models.User, soundID string) (*models.ModuleDetail, error) {
	m, err := s.module(ctx, soundID)
	if err != nil {
		return nil, err
	}
	detail := &models.ModuleDetail{SoundModule: *m, ExercisesCount: len(m.Exercises)}
	if user != nil {
		detail.UserProgress, err = s.progress.Get(ctx, user.ID, soundID)
		if err != nil {
			return nil, err
		}
	}
	return detail, nil
}

// GetExercise returns one exercise. Benchmark audio is generated and cached
// on first request; a generation failure leaves the URL empty.
func (s *PronunciationService) GetExercise(ctx context.Context, user *models.User, soundID string, index int) (*models.ExerciseDetail, error) {
	m, err := s.module(ctx, soundID)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(m.Exercises) {
		return nil, ErrExerciseNotFound
	}
	ex := m.Exercises[index]

	detail := &models.ExerciseDetail{
		SoundID:         soundID,
		ExerciseIndex:   index,
		Word:            ex.Word,
		IPA:             ex.IPA,
		Sentence:        ex.Sentence,
		PhonemeIPA:      m.PhonemeIPA,
		ArticulatoryTip: m.ArticulatoryTip,
	}
	if url := s.benchmarkURL(ctx, soundID, index, ex); url != "" {
		detail.BenchmarkAudioURL = &url
	}
	if user != nil {
		detail.UserBestScore, err = s.sessions.BestScore(ctx, user.ID, soundID, index)
		if err != nil {
			return nil, err
		}
	}
	return detail, nil
}

// AnalyzeRequest is one recorded attempt at an exercise.
type AnalyzeRequest struct {
	User          models.User
	SoundID       string
	ExerciseIndex int
	Audio         []byte
	Filename      string
}

// AnalyzeResult is the stored session with the learner's updated record.
type AnalyzeResult struct {
	models.PronunciationSession
	Progress      models.MasteryRecord `json:"progress"`
	NewlyMastered bool                 `json:"newly_mastered"`
}

// Analyze validates, stores, transcribes and scores an attempt, then
// records the session and folds the score into the learner's mastery
// record. Feedback, benchmark audio and the mastery email are best effort.
func (s *PronunciationService) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResult, error) {
	if req.User.ID == "" {
		return nil, fmt.Errorf("%w: user is required", ErrInvalidArgument)
	}
	if req.SoundID == "" {
		return nil, fmt.Errorf("%w: sound_id is required", ErrInvalidArgument)
	}
	m, err := s.module(ctx, req.SoundID)
	if err != nil {
		return nil, err
	}
	if req.ExerciseIndex < 0 || req.ExerciseIndex >= len(m.Exercises) {
		return nil, ErrExerciseNotFound
	}
	ex := m.Exercises[req.ExerciseIndex]

	if _, err := audio.Validate(req.Audio); err != nil {
		return nil, err
	}

	userAudioURL, transcription, err := s.uploadAndTranscribe(ctx, req)
	if err != nil {
		return nil, err
	}

	benchmark := s.benchmarkURL(ctx, req.SoundID, req.ExerciseIndex, ex)

	outcome := s.scorer.Analyze(ctx, scoring.Attempt{
		Word:          ex.Word,
		TargetIPA:     ex.IPA,
		Observed:      transcription,
		ModuleTip:     m.ArticulatoryTip,
		ModulePhoneme: m.PhonemeIPA,
	})
	s.metrics.RecordAttempt(ctx, string(outcome.Path), outcome.Result.Score)

	session := models.PronunciationSession{
		UserID:            req.User.ID,
		SoundID:           m.SoundID,
		SoundName:         m.Name,
		ExerciseIndex:     req.ExerciseIndex,
		Word:              ex.Word,
		Sentence:          ex.Sentence,
		Transcription:     transcription,
		Analysis:          outcome.Result,
		BenchmarkAudioURL: benchmark,
		UserAudioURL:      userAudioURL,
		CreatedAt:         s.now().UTC(),
	}

	before, after, err := s.record(ctx, &session)
	if err != nil {
		return nil, err
	}

	from := models.MasteryNew
	if before != nil {
		from = before.MasteryLevel
	}
	s.metrics.RecordMasteryTransition(ctx, string(from), string(after.MasteryLevel))

	newlyMastered := mastery.BecameMastered(before, after)
	if newlyMastered {
		s.notifyMastered(ctx, req.User, m, after)
	}

	s.logger.InfoContext(ctx, "attempt scored",
		"user_id", req.User.ID,
		"sound_id", m.SoundID,
		"exercise", req.ExerciseIndex,
		"path", outcome.Path,
		"score", outcome.Result.Score,
		"mastery", after.MasteryLevel,
	)

	return &AnalyzeResult{
		PronunciationSession: session,
		Progress:             after,
		NewlyMastered:        newlyMastered,
	}, nil
}

// uploadAndTranscribe stores the recording and transcribes it concurrently.
// Silence transcribes to the empty string.
func (s *PronunciationService) uploadAndTranscribe(ctx context.Context, req AnalyzeRequest) (url, transcription string, err error) {
	contentType := audio.ContentType(req.Audio, req.Filename)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		start := time.Now()
		err := run(gctx, s.deps.Guards.Storage, func(ctx context.Context) error {
			var err error
			url, err = s.deps.Store.Put(ctx, storage.UserAudioKey(audio.Extension(contentType)), req.Audio, contentType)
			return err
		})
		s.metrics.RecordCollaborator(gctx, observe.CollaboratorStorage, start, err)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrStorageFailed, err)
		}
		return nil
	})

	g.Go(func() error {
		start := time.Now()
		err := run(gctx, s.deps.Guards.STT, func(ctx context.Context) error {
			text, err := s.deps.Transcriber.Transcribe(ctx, req.Audio, req.Filename)
			if errors.Is(err, audio.ErrNoSpeech) {
				transcription = ""
				return nil
			}
			if err != nil {
				return err
			}
			transcription = text
			return nil
		})
		s.metrics.RecordCollaborator(gctx, observe.CollaboratorSTT, start, err)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrTranscriptionFailed, err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return "", "", err
	}
	return url, transcription, nil
}

// record stores the session and applies its score to the mastery record in
// one transaction. A lost race re-reads the record and tries again.
func (s *PronunciationService) record(ctx context.Context, session *models.PronunciationSession) (*models.MasteryRecord, models.MasteryRecord, error) {
	var (
		before *models.MasteryRecord
		after  models.MasteryRecord
	)
	for attempt := 1; ; attempt++ {
		err := s.deps.DB.WithTx(ctx, func(tx *database.Tx) error {
			if err := repository.NewSessionRepository(tx).Create(ctx, session); err != nil {
				return err
			}
			progress := repository.NewProgressRepository(tx)
			var err error
			before, err = progress.Get(ctx, session.UserID, session.SoundID)
			if err != nil {
				return err
			}
			after = mastery.Update(before, session.Analysis.Score, session.CreatedAt)
			after.UserID = session.UserID
			after.SoundID = session.SoundID
			return progress.Save(ctx, &after)
		})
		if err == nil {
			return before, after, nil
		}
		if !errors.Is(err, repository.ErrConflict) || attempt >= maxSaveAttempts {
			return nil, models.MasteryRecord{}, fmt.Errorf("recording attempt: %w", err)
		}
		s.metrics.MasteryConflicts.Add(ctx, 1)
		s.logger.DebugContext(ctx, "mastery record changed concurrently, retrying",
			"user_id", session.UserID, "sound_id", session.SoundID, "attempt", attempt)
	}
}

func (s *PronunciationService) notifyMastered(ctx context.Context, user models.User, m *models.SoundModule, rec models.MasteryRecord) {
	if s.deps.Notifier == nil {
		return
	}
	start := time.Now()
	err := run(ctx, s.deps.Guards.Email, func(ctx context.Context) error {
		return s.deps.Notifier.NotifyMastered(ctx, user, m, rec)
	})
	s.metrics.RecordCollaborator(ctx, observe.CollaboratorEmail, start, err)
	if err != nil {
		s.logger.WarnContext(ctx, "mastery email failed", "user_id", user.ID, "sound_id", m.SoundID, "error", err)
	}
}

// benchmarkURL returns the cached benchmark audio of an exercise, generating
// it when missing. Concurrent requests for the same exercise share one
// generation.
func (s *PronunciationService) benchmarkURL(ctx context.Context, soundID string, index int, ex models.Exercise) string {
	if ex.BenchmarkAudioURL != "" {
		return ex.BenchmarkAudioURL
	}
	if s.deps.Synthesizer == nil {
		return ""
	}

	key := soundID + "/" + strconv.Itoa(index)
	v, err, _ := s.benchmarks.Do(key, func() (any, error) {
		// Callers share the result, so one caller going away must not
		// cancel it for the others.
		ctx := context.WithoutCancel(ctx)

		var speech []byte
		start := time.Now()
		err := run(ctx, s.deps.Guards.TTS, func(ctx context.Context) error {
			var err error
			speech, err = s.deps.Synthesizer.Synthesize(ctx, ex.Word)
			return err
		})
		s.metrics.RecordCollaborator(ctx, observe.CollaboratorTTS, start, err)
		if err != nil {
			return "", fmt.Errorf("synthesizing %q: %w", ex.Word, err)
		}

		var url string
		start = time.Now()
		err = run(ctx, s.deps.Guards.Storage, func(ctx context.Context) error {
			var err error
			url, err = s.deps.Store.Put(ctx, storage.BenchmarkKey(), speech, "audio/mpeg")
			return err
		})
		s.metrics.RecordCollaborator(ctx, observe.CollaboratorStorage, start, err)
		if err != nil {
			return "", fmt.Errorf("storing benchmark: %w", err)
		}

		if err := s.modules.SetBenchmarkURL(ctx, soundID, index, url); err != nil {
			s.logger.WarnContext(ctx, "caching benchmark url failed", "sound_id", soundID, "exercise", index, "error", err)
		}
		return url, nil
	})
	if err != nil {
		s.logger.WarnContext(ctx, "benchmark audio unavailable", "sound_id", soundID, "exercise", index, "error", err)
		return ""
	}
	return v.(string)
}

// History returns the learner's attempts newest first. A zero limit means
// the default page size.
func (s *PronunciationService) History(ctx context.Context, user models.User, soundID string, skip, limit int) ([]models.HistoryItem, error) {
	if limit == 0 {
		limit = defaultHistoryLimit
	}
	if limit < 1 || limit > maxHistoryLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidArgument, maxHistoryLimit)
	}
	if skip < 0 {
		return nil, fmt.Errorf("%w: skip must not be negative", ErrInvalidArgument)
	}
	return s.sessions.History(ctx, user.ID, soundID, skip, limit)
}

// Stats summarizes the learner's practice. Weak and strong sounds are
// listed by sound id, at most five each.
func (s *PronunciationService) Stats(ctx context.Context, user models.User) (*models.Stats, error) {
	stats := &models.Stats{WeakSounds: []string{}, StrongSounds: []string{}}

	agg, err := s.sessions.Aggregate(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if agg.Count == 0 {
		return stats, nil
	}
	stats.TotalSessions = agg.Count
	stats.AverageScore = phonetics.Round1(agg.AverageScore)
	stats.TotalModulesPracticed = agg.DistinctSounds

	records, err := s.progress.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		rec := records[id]
		mastered := rec.MasteryLevel == models.MasteryMastered
		if mastered {
			stats.ModulesMastered++
			if len(stats.StrongSounds) < statsListCap {
				stats.StrongSounds = append(stats.StrongSounds, id)
			}
		} else if rec.AverageScore < mastery.WeakThreshold && len(stats.WeakSounds) < statsListCap {
			stats.WeakSounds = append(stats.WeakSounds, id)
		}
	}
	return stats, nil
}

// Recommend returns the modules the learner should practice next: unseen
// first, then weak, then in progress, then mastered.
func (s *PronunciationService) Recommend(ctx context.Context, user models.User, limit int) ([]models.ModuleSummary, error) {
	if limit == 0 {
		limit = defaultRecommendLimit
	}
	if limit < 1 || limit > maxRecommendLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidArgument, maxRecommendLimit)
	}

	modules, err := s.modules.List(ctx, "")
	if err != nil {
		return nil, err
	}
	progress, err := s.progressOf(ctx, &user)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*models.SoundModule, len(modules))
	candidates := make([]mastery.Candidate, 0, len(modules))
	for i := range modules {
		byID[modules[i].SoundID] = &modules[i]
		candidates = append(candidates, mastery.Candidate{
			SoundID: modules[i].SoundID,
			Record:  progress[modules[i].SoundID],
		})
	}

	ranked := mastery.Rank(candidates)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]models.ModuleSummary, 0, len(ranked))
	for _, id := range ranked {
		out = append(out, byID[id].Summary(progress[id]))
	}
	return out, nil
}

func (s *PronunciationService) module(ctx context.Context, soundID string) (*models.SoundModule, error) {
	m, err := s.modules.Get(ctx, soundID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrModuleNotFound
	}
	return m, err
}

func (s *PronunciationService) progressOf(ctx context.Context, user *models.User) (map[string]*models.MasteryRecord, error) {
	if user == nil {
		return map[string]*models.MasteryRecord{}, nil
	}
	return s.progress.ListByUser(ctx, user.ID)
}

func run(ctx context.Context, g *resilience.Guard, fn func(ctx context.Context) error) error {
	if g == nil {
		return fn(ctx)
	}
	return g.Run(ctx, fn)
}

// timedFeedback records the latency of every feedback call.
type timedFeedback struct {
	next    scoring.FeedbackGenerator
	metrics *observe.Metrics
}

func (t timedFeedback) GenerateFeedback(ctx context.Context, req scoring.FeedbackRequest) (*scoring.Feedback, error) {
	start := time.Now()
	fb, err := t.next.GenerateFeedback(ctx, req)
	t.metrics.RecordCollaborator(ctx, observe.CollaboratorLLM, start, err)
	return fb, err
}
