package session

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noble-ngs-quiz/internal/engine/store"
	"noble-ngs-quiz/internal/models"
)

func TestEnsureSession_OpensThenReusesSameSession(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore(store.SystemClock{})
	tracker := New(st)
	learner := uuid.New()

	s1, err := tracker.EnsureSession(ctx, learner, models.SessionContext{Subject: "math"})
	require.NoError(t, err)
	assert.True(t, s1.Active())

	s2, err := tracker.EnsureSession(ctx, learner, models.SessionContext{Subject: "science"})
	require.NoError(t, err)
	assert.Equal(t, s1.ID, s2.ID, "a second fetch under a different subject must not rotate the active session")
}

func TestEndSession_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore(store.SystemClock{})
	tracker := New(st)
	learner := uuid.New()

	s1, err := tracker.EnsureSession(ctx, learner, models.SessionContext{})
	require.NoError(t, err)

	ended1, err := tracker.EndSession(ctx, s1.ID)
	require.NoError(t, err)
	require.False(t, ended1.Active())

	ended2, err := tracker.EndSession(ctx, s1.ID)
	require.NoError(t, err)
	assert.Equal(t, ended1.EndedAt, ended2.EndedAt)
}

func TestSummary_AggregatesAttemptsOverTheSessionWindow(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore(store.SystemClock{})
	tracker := New(st)
	learner := uuid.New()

	_, err := st.AdmitQuestions(ctx, []models.Question{
		{Subject: "math", Topic: "algebra", Subtopic: "linear", Grade: 5, Difficulty: models.DifficultyEasy,
			Stem: "s1", Options: []string{"a", "b", "c", "d"}, CorrectAnswer: "a", Fingerprint: "fp1"},
		{Subject: "science", Topic: "biology", Subtopic: "cells", Grade: 5, Difficulty: models.DifficultyEasy,
			Stem: "s2", Options: []string{"a", "b", "c", "d"}, CorrectAnswer: "a", Fingerprint: "fp2"},
	})
	require.NoError(t, err)

	grade := 5
	mathQ, err := st.ListQuestions(ctx, store.ListQuestionsParams{Subject: "math", Grade: &grade, Topic: "algebra", Subtopic: "linear", Limit: 1})
	require.NoError(t, err)
	sciQ, err := st.ListQuestions(ctx, store.ListQuestionsParams{Subject: "science", Grade: &grade, Topic: "biology", Subtopic: "cells", Limit: 1})
	require.NoError(t, err)

	sess, err := tracker.EnsureSession(ctx, learner, models.SessionContext{})
	require.NoError(t, err)

	require.NoError(t, st.RecordAttempt(ctx, models.Attempt{LearnerID: learner, QuestionID: mathQ[0].ID, Subject: "math", Selected: "a", Correct: true, ElapsedMS: 1000}, true))
	require.NoError(t, st.RecordAttempt(ctx, models.Attempt{LearnerID: learner, QuestionID: sciQ[0].ID, Subject: "science", Selected: "b", Correct: false, ElapsedMS: 2000}, true))

	summary, err := tracker.Summary(ctx, sess.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.QuestionsAttempted)
	assert.Equal(t, 1, summary.QuestionsCorrect)
	assert.Equal(t, 3000, summary.TotalElapsedMS)
	assert.Equal(t, 1500, summary.AvgElapsedMS)
	assert.Equal(t, 50, summary.AccuracyPct)
	assert.ElementsMatch(t, []string{"math", "science"}, summary.SubjectsPracticed)
}
