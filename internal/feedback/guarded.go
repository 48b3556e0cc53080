package feedback

import (
	"context"

	"lautcoach/internal/resilience"
	"lautcoach/internal/scoring"
)

type guarded struct {
	next  scoring.FeedbackGenerator
	guard *resilience.Guard
}

// Guarded runs next under guard.
func Guarded(next scoring.FeedbackGenerator, guard *resilience.Guard) scoring.FeedbackGenerator {
	return &guarded{next: next, guard: guard}
}

func (g *guarded) GenerateFeedback(ctx context.Context, req scoring.FeedbackRequest) (*scoring.Feedback, error) {
	var fb *scoring.Feedback
	err := g.guard.Run(ctx, func(ctx context.Context) error {
		var err error
		fb, err = g.next.GenerateFeedback(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return fb, nil
}
