package generator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noble-ngs-quiz/internal/engine/coordinator"
	"noble-ngs-quiz/internal/models"
)

func TestMock_GeneratesRequestedCountWithDistinctStems(t *testing.T) {
	m := NewMock()
	gctx := coordinator.GenerationContext{
		Subject: "math", Topic: "algebra", Subtopic: "linear", Grade: 5,
		Difficulty: models.DifficultyEasy, RequestedCount: 3,
	}

	candidates, err := m.Generate(context.Background(), gctx)
	require.NoError(t, err)
	require.Len(t, candidates, 3)

	stems := make(map[string]bool)
	for _, c := range candidates {
		assert.Equal(t, "math", c.Subject)
		assert.Equal(t, models.DifficultyEasy, c.Difficulty)
		assert.Len(t, c.Options, 4)
		assert.Contains(t, c.Options, c.CorrectAnswer)
		assert.False(t, stems[c.Stem], "stems within one batch must be distinct")
		stems[c.Stem] = true
	}
}

func TestMock_DefaultsToOneWhenRequestedCountIsNotPositive(t *testing.T) {
	m := NewMock()
	gctx := coordinator.GenerationContext{Subject: "math", Topic: "algebra", Subtopic: "linear", Grade: 5, RequestedCount: 0}

	candidates, err := m.Generate(context.Background(), gctx)
	require.NoError(t, err)
	assert.Len(t, candidates, 1)
}
