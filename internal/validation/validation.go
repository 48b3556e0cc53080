// Package validation checks identifiers and addresses that enter the system
// from configuration, the module catalogue and identity tokens.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	emailRegex   = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	soundIDRegex = regexp.MustCompile(`^sound_[a-z0-9]+(_[a-z0-9]+)*$`)
)

// MaxSoundIDLength matches the sound_id column width.
const MaxSoundIDLength = 64

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateEmail checks if an email address is valid
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ValidationError{Field: "email", Message: "email is required"}
	}
	if !emailRegex.MatchString(email) {
		return ValidationError{Field: "email", Message: "invalid email format"}
	}
	return nil
}

// ValidateSoundID checks a module key such as "sound_ch_ich".
func ValidateSoundID(id string) error {
	if id == "" {
		return ValidationError{Field: "sound_id", Message: "sound_id is required"}
	}
	if len(id) > MaxSoundIDLength {
		return ValidationError{Field: "sound_id", Message: fmt.Sprintf("sound_id exceeds %d characters", MaxSoundIDLength)}
	}
	if !soundIDRegex.MatchString(id) {
		return ValidationError{Field: "sound_id", Message: "sound_id must look like sound_<name>"}
	}
	return nil
}
