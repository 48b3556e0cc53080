package models

import (
	"fmt"
	"time"
)

// MasteryLevel is the coarse proficiency state of a learner for one sound.
type MasteryLevel string

const (
	MasteryNew        MasteryLevel = "new"
	MasteryPracticing MasteryLevel = "practicing"
	MasteryMastered   MasteryLevel = "mastered"
)

// MasteryRecord aggregates every attempt of one user at one sound. There is
// exactly one record per (UserID, SoundID).
type MasteryRecord struct {
	UserID        string       `json:"user_id,omitempty"`
	SoundID       string       `json:"sound_id,omitempty"`
	TotalAttempts int          `json:"total_attempts"`
	AverageScore  float64      `json:"average_score"`
	BestScore     float64      `json:"best_score"`
	LastPracticed *time.Time   `json:"last_practiced"`
	MasteryLevel  MasteryLevel `json:"mastery_level"`

	// Version is the optimistic concurrency token of the stored row.
	Version int64 `json:"-"`
}

// Validate checks the bounds of the aggregate.
func (m *MasteryRecord) Validate() error {
	if m.TotalAttempts < 0 {
		return fmt.Errorf("total_attempts %d is negative", m.TotalAttempts)
	}
	if m.AverageScore < 0 || m.AverageScore > 100 {
		return fmt.Errorf("average_score %.1f out of range", m.AverageScore)
	}
	if m.BestScore < 0 || m.BestScore > 100 {
		return fmt.Errorf("best_score %.1f out of range", m.BestScore)
	}
	if m.BestScore < m.AverageScore {
		return fmt.Errorf("best_score %.1f below average_score %.1f", m.BestScore, m.AverageScore)
	}
	switch m.MasteryLevel {
	case MasteryNew, MasteryPracticing, MasteryMastered:
	default:
		return fmt.Errorf("unknown mastery level %q", m.MasteryLevel)
	}
	return nil
}
