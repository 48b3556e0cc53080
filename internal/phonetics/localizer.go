package phonetics

import (
	"strings"

	"lautcoach/internal/models"
)

// MaxErrors caps the number of errors reported for one attempt.
const MaxErrors = 5

// Markers used in place of a phoneme when the sequences differ in length.
const (
	MissingSoundsLabel = "(missing sounds)"
	EndOfWordLabel     = "(end of word)"
	ExtraSoundsSuffix  = " (extra sounds)"
)

// Localize compares target and user position by position and returns at most
// MaxErrors errors. A length difference is reported once as a summary of the
// missing or extra tail.
func Localize(target, user Sequence) []models.PhonemeError {
	errs := []models.PhonemeError{}
	if target.Equal(user) {
		return errs
	}

	shared := min(len(target), len(user))
	for i := 0; i < shared && len(errs) < MaxErrors; i++ {
		if target[i] != user[i] {
			errs = append(errs, models.PhonemeError{
				Target:   target[i],
				Produced: user[i],
				Position: i,
			})
		}
	}

	if len(errs) >= MaxErrors {
		return errs
	}

	switch {
	case len(target) > len(user):
		errs = append(errs, models.PhonemeError{
			Target:   strings.Join(target[shared:], ""),
			Produced: MissingSoundsLabel,
			Position: shared,
		})
	case len(user) > len(target):
		errs = append(errs, models.PhonemeError{
			Target:   EndOfWordLabel,
			Produced: strings.Join(user[shared:], "") + ExtraSoundsSuffix,
			Position: shared,
		})
	}
	return errs
}
