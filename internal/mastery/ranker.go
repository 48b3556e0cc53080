package mastery

import (
	"sort"

	"lautcoach/internal/models"
)

// Priority buckets, lowest is recommended first.
const (
	PriorityUnseen     = 0
	PriorityWeak       = 1
	PriorityInProgress = 2
	PriorityMastered   = 3
)

// Candidate is a sound together with the learner's record for it, if any.
type Candidate struct {
	SoundID string
	Record  *models.MasteryRecord
}

// Priority returns the practice bucket of a record.
func Priority(record *models.MasteryRecord) int {
	switch {
	case record == nil:
		return PriorityUnseen
	case record.AverageScore < WeakThreshold:
		return PriorityWeak
	case record.MasteryLevel != models.MasteryMastered:
		return PriorityInProgress
	default:
		return PriorityMastered
	}
}

// Rank orders candidates by priority. Candidates in the same bucket keep the
// order they were supplied in.
func Rank(candidates []Candidate) []string {
	ordered := make([]Candidate, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		return Priority(ordered[i].Record) < Priority(ordered[j].Record)
	})

	ids := make([]string, len(ordered))
	for i, c := range ordered {
		ids[i] = c.SoundID
	}
	return ids
}
