// Package ledger implements the Attempt Ledger (C9): grades answers,
// records them, and produces progress aggregates and streaks.
package ledger

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"

	"noble-ngs-quiz/internal/apperr"
	"noble-ngs-quiz/internal/engine/store"
	"noble-ngs-quiz/internal/metrics"
	"noble-ngs-quiz/internal/models"
)

// SessionEnsurer is the narrow Session Tracker dependency C9 needs: bind
// the attempt to an open session without owning session lifecycle itself.
type SessionEnsurer interface {
	EnsureSession(ctx context.Context, learnerID uuid.UUID, sctx models.SessionContext) (*models.Session, error)
}

// Ledger is C9.
type Ledger struct {
	store    store.Store
	sessions SessionEnsurer
}

func New(st store.Store, sessions SessionEnsurer) *Ledger {
	return &Ledger{store: st, sessions: sessions}
}

// SubmitAttempt grades selected against the stored question, records the
// attempt, marks seen on correct answers, and ensures a session is open.
func (l *Ledger) SubmitAttempt(ctx context.Context, learnerID, questionID uuid.UUID, selected string, elapsedMS int) (models.SubmitAttemptResponse, error) {
	question, err := l.store.GetQuestion(ctx, questionID)
	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) && appErr.Kind == apperr.KindNotFound {
			return models.SubmitAttemptResponse{}, apperr.Wrap(apperr.KindUnknownQuestion, err, "question not found")
		}
		return models.SubmitAttemptResponse{}, err
	}

	correct := selected == question.CorrectAnswer

	attempt := models.Attempt{
		LearnerID:  learnerID,
		QuestionID: questionID,
		Subject:    question.Subject,
		Selected:   selected,
		Correct:    correct,
		ElapsedMS:  elapsedMS,
	}
	if err := l.store.RecordAttempt(ctx, attempt, true); err != nil {
		return models.SubmitAttemptResponse{}, err
	}
	metrics.AttemptsRecordedTotal.WithLabelValues(strconv.FormatBool(correct)).Inc()

	session, err := l.sessions.EnsureSession(ctx, learnerID, models.SessionContext{Subject: question.Subject})
	if err != nil {
		return models.SubmitAttemptResponse{}, err
	}

	return models.SubmitAttemptResponse{
		Correct:        correct,
		ExpectedAnswer: question.CorrectAnswer,
		SessionID:      session.ID,
	}, nil
}

// Progress returns the learner's aggregate accuracy, streak and
// per-subject breakdown.
func (l *Ledger) Progress(ctx context.Context, learnerID uuid.UUID) (*models.ProgressResponse, error) {
	return l.store.LearnerProgress(ctx, learnerID)
}
