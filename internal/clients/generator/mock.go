package generator

import (
	"context"
	"fmt"

	"noble-ngs-quiz/internal/engine/coordinator"
	"noble-ngs-quiz/internal/models"
)

// Mock is a deterministic, in-process stand-in for the remote generator,
// used when MOCK_GENERATOR is set (local runs, tests). It fabricates a
// structurally valid batch of distinct candidates for the requested key
// without calling out over the network.
type Mock struct{}

func NewMock() *Mock {
	return &Mock{}
}

// Generate implements coordinator.Generator. Each candidate's stem embeds
// a running index so that batches fingerprint as distinct questions.
func (m *Mock) Generate(_ context.Context, gctx coordinator.GenerationContext) ([]models.Candidate, error) {
	count := gctx.RequestedCount
	if count <= 0 {
		count = 1
	}

	out := make([]models.Candidate, 0, count)
	for i := 0; i < count; i++ {
		stem := fmt.Sprintf("[%s/%s/%s #%d] Which option is correct?", gctx.Subject, gctx.Topic, gctx.Subtopic, i)
		out = append(out, models.Candidate{
			Subject:       gctx.Subject,
			Topic:         gctx.Topic,
			Subtopic:      gctx.Subtopic,
			Grade:         gctx.Grade,
			Difficulty:    gctx.Difficulty,
			Stem:          stem,
			Options:       []string{"Option A", "Option B", "Option C", "Option D"},
			CorrectAnswer: "Option A",
			Rationale:     "Generated by the mock generator for local development and tests.",
			StandardRef:   "",
		})
	}
	return out, nil
}
