package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noble-ngs-quiz/internal/apperr"
	"noble-ngs-quiz/internal/engine/session"
	"noble-ngs-quiz/internal/engine/store"
	"noble-ngs-quiz/internal/models"
)

func seedOneQuestion(t *testing.T, st store.Store) uuid.UUID {
	t.Helper()
	_, err := st.AdmitQuestions(context.Background(), []models.Question{
		{Subject: "math", Topic: "algebra", Subtopic: "linear", Grade: 5, Difficulty: models.DifficultyEasy,
			Stem: "2+2?", Options: []string{"3", "4", "5", "6"}, CorrectAnswer: "4", Fingerprint: "fp1"},
	})
	require.NoError(t, err)
	grade := 5
	items, err := st.ListQuestions(context.Background(), store.ListQuestionsParams{Subject: "math", Grade: &grade, Topic: "algebra", Subtopic: "linear", Limit: 1})
	require.NoError(t, err)
	require.Len(t, items, 1)
	return items[0].ID
}

func TestSubmitAttempt_GradesCorrectly(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore(store.SystemClock{})
	qID := seedOneQuestion(t, st)
	learner := uuid.New()

	l := New(st, session.New(st))

	resp, err := l.SubmitAttempt(ctx, learner, qID, "4", 1200)
	require.NoError(t, err)
	assert.True(t, resp.Correct)
	assert.Equal(t, "4", resp.ExpectedAnswer)
	assert.NotEqual(t, uuid.Nil, resp.SessionID)
}

func TestSubmitAttempt_GradesIncorrectAnswer(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore(store.SystemClock{})
	qID := seedOneQuestion(t, st)
	learner := uuid.New()

	l := New(st, session.New(st))

	resp, err := l.SubmitAttempt(ctx, learner, qID, "3", 500)
	require.NoError(t, err)
	assert.False(t, resp.Correct)
	assert.Equal(t, "4", resp.ExpectedAnswer)
}

func TestSubmitAttempt_UnknownQuestionPropagatesError(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore(store.SystemClock{})
	l := New(st, session.New(st))

	_, err := l.SubmitAttempt(ctx, uuid.New(), uuid.New(), "anything", 0)
	require.Error(t, err)

	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperr.KindUnknownQuestion, appErr.Kind, "C9 must fail with UnknownQuestion specifically, not the store's raw NotFound")
}

func TestSubmitAttempt_RecordsSubjectForSessionSummary(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore(store.SystemClock{})
	qID := seedOneQuestion(t, st)
	learner := uuid.New()

	tracker := session.New(st)
	l := New(st, tracker)

	// The session is open before the answer arrives (a fetch opens it), so
	// the attempt falls inside the session's window.
	sess, err := tracker.EnsureSession(ctx, learner, models.SessionContext{Subject: "math"})
	require.NoError(t, err)

	resp, err := l.SubmitAttempt(ctx, learner, qID, "4", 0)
	require.NoError(t, err)
	require.Equal(t, sess.ID, resp.SessionID)

	summary, err := tracker.Summary(ctx, resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.QuestionsAttempted)
	require.Len(t, summary.SubjectsPracticed, 1)
	assert.Equal(t, "math", summary.SubjectsPracticed[0])
}

func TestProgress_ReturnsLearnerAggregate(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore(store.SystemClock{})
	qID := seedOneQuestion(t, st)
	learner := uuid.New()

	l := New(st, session.New(st))
	_, err := l.SubmitAttempt(ctx, learner, qID, "4", 0)
	require.NoError(t, err)

	progress, err := l.Progress(ctx, learner)
	require.NoError(t, err)
	assert.Equal(t, 1, progress.Attempted)
	assert.Equal(t, 1, progress.Correct)
}
