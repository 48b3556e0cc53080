package models

import (
	"fmt"
	"time"
)

// PhonemeError locates one difference between the target and the attempt.
type PhonemeError struct {
	Target   string `json:"target"`
	Produced string `json:"produced"`
	Position int    `json:"position"`
}

// AttemptResult is the scored diagnosis of one attempt.
type AttemptResult struct {
	Score        float64        `json:"score"`
	TargetIPA    string         `json:"target_ipa"`
	UserIPA      string         `json:"user_ipa"`
	Errors       []PhonemeError `json:"errors"`
	FeedbackText string         `json:"feedback_text"`
	Tips         []string       `json:"tips"`
}

// Validate checks the score bounds and the error cap.
func (r *AttemptResult) Validate() error {
	if r.Score < 0 || r.Score > 100 {
		return fmt.Errorf("score %.1f out of range", r.Score)
	}
	if len(r.Errors) > 5 {
		return fmt.Errorf("%d errors exceed the cap of 5", len(r.Errors))
	}
	for _, e := range r.Errors {
		if e.Position < 0 {
			return fmt.Errorf("error position %d is negative", e.Position)
		}
	}
	return nil
}

// PronunciationSession is a persisted analyzed attempt.
type PronunciationSession struct {
	ID                string        `json:"id"`
	UserID            string        `json:"user_id"`
	SoundID           string        `json:"sound_id"`
	SoundName         string        `json:"sound_name"`
	ExerciseIndex     int           `json:"exercise_index"`
	Word              string        `json:"word"`
	Sentence          string        `json:"sentence"`
	Transcription     string        `json:"transcription"`
	Analysis          AttemptResult `json:"analysis"`
	BenchmarkAudioURL string        `json:"benchmark_audio_url"`
	UserAudioURL      string        `json:"user_audio_url"`
	CreatedAt         time.Time     `json:"created_at"`
}

// HistoryItem is a compact view of a session for history listings.
type HistoryItem struct {
	ID                 string    `json:"id"`
	CreatedAt          time.Time `json:"created_at"`
	SoundID            string    `json:"sound_id"`
	SoundName          string    `json:"sound_name"`
	Word               string    `json:"word"`
	Score              float64   `json:"score"`
	PhonemeErrorsCount int       `json:"phoneme_errors_count"`
}

// Stats summarizes a learner's practice across all sounds.
type Stats struct {
	TotalSessions         int      `json:"total_sessions"`
	AverageScore          float64  `json:"average_score"`
	TotalModulesPracticed int      `json:"total_modules_practiced"`
	ModulesMastered       int      `json:"modules_mastered"`
	WeakSounds            []string `json:"weak_sounds"`
	StrongSounds          []string `json:"strong_sounds"`
}
