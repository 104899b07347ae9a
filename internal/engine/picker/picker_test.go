package picker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noble-ngs-quiz/internal/engine/coordinator"
	"noble-ngs-quiz/internal/engine/store"
	"noble-ngs-quiz/internal/models"
)

type stubCatalog struct {
	topic string
	err   error
}

func (s stubCatalog) FirstTopic(ctx context.Context, subject string, grade int) (string, error) {
	return s.topic, s.err
}

type stubGenerator struct {
	fn func(ctx context.Context, gctx coordinator.GenerationContext) ([]models.Candidate, error)
}

func (g stubGenerator) Generate(ctx context.Context, gctx coordinator.GenerationContext) ([]models.Candidate, error) {
	return g.fn(ctx, gctx)
}

func seedQuestions(t *testing.T, st store.Store, n int, subject, topic, subtopic string, d models.Difficulty) {
	t.Helper()
	var qs []models.Question
	for i := 0; i < n; i++ {
		qs = append(qs, models.Question{
			Subject: subject, Topic: topic, Subtopic: subtopic, Grade: 5, Difficulty: d,
			Stem: "stem", Options: []string{"a", "b", "c", "d"}, CorrectAnswer: "a",
			Fingerprint: subject + topic + subtopic + string(d) + string(rune('a'+i)),
		})
	}
	_, err := st.AdmitQuestions(context.Background(), qs)
	require.NoError(t, err)
}

func TestFetch_ResolvesTopicAndSubtopicWhenOmitted(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore(store.SystemClock{})
	require.NoError(t, st.SeedSubtopic(ctx, models.Subtopic{Subject: "math", Grade: 5, Topic: "algebra", Name: "linear", SequenceOrder: 1}))
	seedQuestions(t, st, 3, "math", "algebra", "linear", models.DifficultyEasy)

	p := New(st, stubCatalog{topic: "algebra"}, nil, 5, 0)
	result, err := p.Fetch(ctx, uuid.New(), 5, "Math", "", "", 10)
	require.NoError(t, err)

	assert.Equal(t, "linear", result.ResolvedSubtopic)
	assert.Len(t, result.Batch, 3)
}

func TestFetch_OrdersBatchByDifficultyPreference(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore(store.SystemClock{})
	seedQuestions(t, st, 2, "math", "algebra", "linear", models.DifficultyEasy)
	seedQuestions(t, st, 2, "math", "algebra", "linear", models.DifficultyMedium)

	p := New(st, nil, nil, 0, 0)
	result, err := p.Fetch(ctx, uuid.New(), 5, "math", "algebra", "linear", 10)
	require.NoError(t, err)

	require.Len(t, result.Batch, 4)
	for i := 0; i < 2; i++ {
		assert.Equal(t, models.DifficultyEasy, result.Batch[i].Difficulty, "easy tier must be exhausted before medium, per the no-attempts-yet preference")
	}
	for i := 2; i < 4; i++ {
		assert.Equal(t, models.DifficultyMedium, result.Batch[i].Difficulty)
	}
}

func TestFetch_ExcludesSeenQuestions(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore(store.SystemClock{})
	seedQuestions(t, st, 2, "math", "algebra", "linear", models.DifficultyEasy)

	learner := uuid.New()
	var firstID uuid.UUID
	grade := 5
	batch, err := st.ListQuestions(ctx, store.ListQuestionsParams{Subject: "math", Grade: &grade, Topic: "algebra", Subtopic: "linear", Difficulties: []models.Difficulty{models.DifficultyEasy}, Limit: 1})
	require.NoError(t, err)
	require.Len(t, batch, 1)
	firstID = batch[0].ID
	require.NoError(t, st.RecordAttempt(ctx, models.Attempt{LearnerID: learner, QuestionID: firstID, Selected: "a", Correct: true}, true))

	p := New(st, nil, nil, 0, 0)
	result, err := p.Fetch(ctx, learner, 5, "math", "algebra", "linear", 10)
	require.NoError(t, err)

	require.Len(t, result.Batch, 1)
	assert.NotEqual(t, firstID, result.Batch[0].ID)
}

func TestFetch_DeficitTriggersGeneration(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore(store.SystemClock{})
	seedQuestions(t, st, 1, "math", "algebra", "linear", models.DifficultyEasy)

	gen := stubGenerator{fn: func(ctx context.Context, gctx coordinator.GenerationContext) ([]models.Candidate, error) {
		return []models.Candidate{{
			Subject: gctx.Subject, Topic: gctx.Topic, Subtopic: gctx.Subtopic, Grade: gctx.Grade,
			Difficulty: gctx.Difficulty, Stem: "generated", Options: []string{"a", "b", "c", "d"}, CorrectAnswer: "a",
		}}, nil
	}}
	coord := coordinator.New(coordinator.Config{Workers: 1, MaxAttempts: 1, BackoffBase: time.Millisecond, Deadline: time.Second}, st, gen)
	coord.Start()
	defer coord.Shutdown()

	p := New(st, nil, coord, 5, 200*time.Millisecond)
	result, err := p.Fetch(ctx, uuid.New(), 5, "math", "algebra", "linear", 10)
	require.NoError(t, err)

	assert.Equal(t, 4, result.Deficit, "minStock 5 minus existing stock 1")
}

func TestFetch_SyncWaitReturnsFreshlyGeneratedBatchWhenStockIsEmpty(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore(store.SystemClock{})

	gen := stubGenerator{fn: func(ctx context.Context, gctx coordinator.GenerationContext) ([]models.Candidate, error) {
		return []models.Candidate{{
			Subject: gctx.Subject, Topic: gctx.Topic, Subtopic: gctx.Subtopic, Grade: gctx.Grade,
			Difficulty: gctx.Difficulty, Stem: "generated", Options: []string{"a", "b", "c", "d"}, CorrectAnswer: "a",
		}}, nil
	}}
	coord := coordinator.New(coordinator.Config{Workers: 1, MaxAttempts: 1, BackoffBase: time.Millisecond, Deadline: time.Second}, st, gen)
	coord.Start()
	defer coord.Shutdown()

	p := New(st, nil, coord, 3, time.Second)
	result, err := p.Fetch(ctx, uuid.New(), 5, "math", "algebra", "linear", 10)
	require.NoError(t, err)

	assert.NotEmpty(t, result.Batch, "a synchronous wait on empty stock should surface the freshly generated batch")
}
