// Package scoring turns a pronunciation attempt into a 0-100 score with
// localized errors, and attaches coaching feedback from a text generator.
package scoring

import (
	"context"
	"log/slog"

	"lautcoach/internal/models"
	"lautcoach/internal/phonetics"
)

// Path names the branch that produced a score.
type Path string

const (
	PathIPA      Path = "ipa"
	PathExact    Path = "exact"
	PathClose    Path = "close"
	PathMismatch Path = "mismatch"
)

// Attempt is the input of one scoring run. Observed is either an IPA string
// or a free-form transcription, depending on ObservedIsIPA.
type Attempt struct {
	Word          string
	TargetIPA     string
	Observed      string
	ObservedIsIPA bool
	ModuleTip     string
	ModulePhoneme string
}

// Outcome is a scored attempt together with the branch that scored it.
type Outcome struct {
	Result models.AttemptResult
	Path   Path
}

// ScoreAttempt scores a without feedback. It never fails: malformed IPA
// degrades to character tokens and empty input scores 0.
func ScoreAttempt(a Attempt) models.AttemptResult {
	return Classify(a).Result
}

// Classify scores a and reports which branch was taken.
func Classify(a Attempt) Outcome {
	if a.ObservedIsIPA {
		return Outcome{Result: scoreIPA(a.TargetIPA, a.Observed), Path: PathIPA}
	}
	return scoreText(a)
}

func scoreIPA(targetIPA, observedIPA string) models.AttemptResult {
	target := phonetics.Tokenize(targetIPA)
	user := phonetics.Tokenize(observedIPA)

	result := newResult(targetIPA)
	result.UserIPA = observedIPA
	result.Score = phonetics.Score(phonetics.Similarity(target, user))
	if len(target) == 0 {
		return result
	}
	result.Errors = phonetics.Localize(target, user)
	return result
}

func scoreText(a Attempt) Outcome {
	target := Normalize(a.Word)
	heard := Normalize(a.Observed)

	result := newResult(a.TargetIPA)
	if containsWord(heard, target) {
		result.Score = 100
		result.UserIPA = a.TargetIPA
		return Outcome{Result: result, Path: PathExact}
	}

	best := bestWordSimilarity(heard, target)
	result.UserIPA = heard
	if target != "" {
		result.Errors = append(result.Errors, models.PhonemeError{
			Target:   target,
			Produced: heard,
			Position: 0,
		})
	}

	if best >= closeMatchThreshold {
		result.Score = phonetics.Round1(best * 100)
		return Outcome{Result: result, Path: PathClose}
	}
	// unrelated utterances never score above 50
	result.Score = phonetics.Round1(best * 50)
	return Outcome{Result: result, Path: PathMismatch}
}

func newResult(targetIPA string) models.AttemptResult {
	return models.AttemptResult{
		TargetIPA: targetIPA,
		Errors:    []models.PhonemeError{},
		Tips:      []string{},
	}
}

// FeedbackRequest is what the feedback generator sees of an attempt.
type FeedbackRequest struct {
	Word          string
	TargetIPA     string
	ObservedText  string
	Score         float64
	Errors        []models.PhonemeError
	ModuleTip     string
	ModulePhoneme string
}

// Feedback is coaching text plus a list of concrete tips.
type Feedback struct {
	Text string
	Tips []string
}

// FeedbackGenerator produces coaching feedback for a scored attempt.
type FeedbackGenerator interface {
	GenerateFeedback(ctx context.Context, req FeedbackRequest) (*Feedback, error)
}

// Scorer scores attempts and asks an optional FeedbackGenerator for coaching
// text.
type Scorer struct {
	feedback FeedbackGenerator
	logger   *slog.Logger
}

// NewScorer creates a Scorer. fb may be nil, in which case results carry no
// feedback.
func NewScorer(fb FeedbackGenerator, logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{feedback: fb, logger: logger}
}

// Analyze scores a and attaches feedback. A failing or absent generator
// leaves the feedback empty; the score is always returned.
func (s *Scorer) Analyze(ctx context.Context, a Attempt) Outcome {
	out := Classify(a)
	if s.feedback == nil {
		return out
	}

	errs := out.Result.Errors
	if len(errs) > phonetics.MaxErrors {
		errs = errs[:phonetics.MaxErrors]
	}
	fb, err := s.feedback.GenerateFeedback(ctx, FeedbackRequest{
		Word:          a.Word,
		TargetIPA:     a.TargetIPA,
		ObservedText:  a.Observed,
		Score:         out.Result.Score,
		Errors:        errs,
		ModuleTip:     a.ModuleTip,
		ModulePhoneme: a.ModulePhoneme,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "feedback generation failed", "word", a.Word, "error", err)
		return out
	}
	out.Result = WithFeedback(out.Result, fb)
	return out
}

// WithFeedback returns r with the feedback text and tips of fb. A nil fb
// leaves the feedback empty.
func WithFeedback(r models.AttemptResult, fb *Feedback) models.AttemptResult {
	r.FeedbackText = ""
	r.Tips = []string{}
	if fb == nil {
		return r
	}
	r.FeedbackText = fb.Text
	if len(fb.Tips) > 0 {
		r.Tips = append([]string(nil), fb.Tips...)
	}
	return r
}
