// Package mastery folds scored attempts into per-sound mastery records and
// ranks sounds by how urgently they need practice.
package mastery

import (
	"time"

	"lautcoach/internal/models"
	"lautcoach/internal/phonetics"
)

const (
	// MasteryThreshold is the average score required for MASTERED.
	MasteryThreshold = 85.0
	// MinAttemptsForMastery is the number of attempts required for MASTERED.
	MinAttemptsForMastery = 5
	// WeakThreshold is the average below which a practiced sound is weak.
	WeakThreshold = 60.0
)

// Update folds score into existing and returns the new record. existing may
// be nil for the first attempt. Update is pure, so a caller that loses a
// write race can re-fetch and apply it again.
func Update(existing *models.MasteryRecord, score float64, now time.Time) models.MasteryRecord {
	practiced := now
	if existing == nil {
		rounded := phonetics.Round1(score)
		return models.MasteryRecord{
			TotalAttempts: 1,
			AverageScore:  rounded,
			BestScore:     rounded,
			LastPracticed: &practiced,
			MasteryLevel:  models.MasteryPracticing,
		}
	}

	next := *existing
	total := existing.TotalAttempts + 1
	avg := (existing.AverageScore*float64(total-1) + score) / float64(total)

	next.TotalAttempts = total
	next.AverageScore = phonetics.Round1(avg)
	next.BestScore = phonetics.Round1(max(existing.BestScore, score))
	next.LastPracticed = &practiced
	next.MasteryLevel = levelFor(existing.MasteryLevel, avg, total)
	return next
}

// levelFor never demotes a mastered record and never returns to NEW once an
// attempt exists.
func levelFor(current models.MasteryLevel, avg float64, total int) models.MasteryLevel {
	if current == models.MasteryMastered {
		return models.MasteryMastered
	}
	if avg >= MasteryThreshold && total >= MinAttemptsForMastery {
		return models.MasteryMastered
	}
	return models.MasteryPracticing
}

// BecameMastered reports whether the transition from before to after reached
// MASTERED for the first time.
func BecameMastered(before *models.MasteryRecord, after models.MasteryRecord) bool {
	if after.MasteryLevel != models.MasteryMastered {
		return false
	}
	return before == nil || before.MasteryLevel != models.MasteryMastered
}
