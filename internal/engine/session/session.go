// Package session implements the Session Tracker (C10): opens/closes
// sessions per learner and produces summary statistics.
package session

import (
	"context"

	"github.com/google/uuid"

	"noble-ngs-quiz/internal/engine/store"
	"noble-ngs-quiz/internal/models"
)

// Tracker is C10.
type Tracker struct {
	store store.Store
}

func New(st store.Store) *Tracker {
	return &Tracker{store: st}
}

// EnsureSession returns the learner's active session, opening one if none
// exists. Sessions are learner-scoped: a later fetch under a different
// curricular context does not rotate the session.
func (t *Tracker) EnsureSession(ctx context.Context, learnerID uuid.UUID, sctx models.SessionContext) (*models.Session, error) {
	return t.store.OpenSession(ctx, learnerID, sctx)
}

// EndSession idempotently closes a session and returns the final record.
func (t *Tracker) EndSession(ctx context.Context, sessionID uuid.UUID) (*models.Session, error) {
	return t.store.EndSession(ctx, sessionID)
}

// Summary computes a session's statistics over its attempt window.
func (t *Tracker) Summary(ctx context.Context, sessionID uuid.UUID) (*models.SessionSummary, error) {
	sess, err := t.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	attempts, err := t.store.SessionAttempts(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	summary := &models.SessionSummary{Session: *sess}
	subjects := make(map[string]bool)
	totalElapsed := 0

	for _, a := range attempts {
		summary.QuestionsAttempted++
		if a.Correct {
			summary.QuestionsCorrect++
		}
		totalElapsed += a.ElapsedMS
		subjects[a.Subject] = true
	}

	summary.TotalElapsedMS = totalElapsed
	denom := summary.QuestionsAttempted
	if denom < 1 {
		denom = 1
	}
	summary.AvgElapsedMS = totalElapsed / denom

	if summary.QuestionsAttempted > 0 {
		summary.AccuracyPct = (summary.QuestionsCorrect*100 + summary.QuestionsAttempted/2) / summary.QuestionsAttempted
	}

	for s := range subjects {
		summary.SubjectsPracticed = append(summary.SubjectsPracticed, s)
	}

	return summary, nil
}
