// Package store defines the Inventory Store contract (C4): the sole
// durable authority for questions, the subtopic catalog, learner seen
// sets, attempts and sessions. All other components reach persisted
// state only through this interface.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"noble-ngs-quiz/internal/models"
)

// ListQuestionsParams scopes a list_questions call. Grade is a pointer so
// grade 0 (a valid, spec-defined grade) can be filtered on like any other
// grade; nil means "no grade filter", not "grade zero".
type ListQuestionsParams struct {
	Subject             string
	Grade               *int
	Topic               string
	Subtopic            string
	Difficulties        []models.Difficulty
	ExcludeFingerprints map[string]bool
	Limit               int
}

// CountQuestionsParams scopes a count_questions call. Grade follows the
// same nil-means-unfiltered convention as ListQuestionsParams.Grade.
type CountQuestionsParams struct {
	Subject  string
	Grade    *int
	Topic    string
	Subtopic string
}

// Store is the Inventory Store's operation set. Implementations must make
// admit_questions, record_attempt and open_session serializable with
// respect to the invariants they protect (P1, P2/P3, P5); reads may be
// read-committed.
type Store interface {
	// ListQuestions returns questions matching params, ordered so that
	// earlier-preferred difficulties precede later ones; within a tier the
	// order is implementation-defined (may be shuffled).
	ListQuestions(ctx context.Context, params ListQuestionsParams) ([]models.Question, error)

	// CountQuestions returns the current stock for the given scope.
	CountQuestions(ctx context.Context, params CountQuestionsParams) (int, error)

	// ListSubtopics returns catalog entries for (subject, grade, topic) in
	// (sequence_order asc, subtopic asc) order.
	ListSubtopics(ctx context.Context, subject string, grade int, topic string) ([]models.Subtopic, error)

	// AdmitQuestions bulk-inserts candidates that have already passed C2/C3
	// and been fingerprinted. Idempotent on fingerprint collision.
	AdmitQuestions(ctx context.Context, questions []models.Question) (models.AdmitResult, error)

	// GetLearnerSeen returns the set of fingerprints the learner has seen.
	GetLearnerSeen(ctx context.Context, learnerID uuid.UUID) (map[string]bool, error)

	// GetLearnerSeenCount returns how many fingerprints within a subtopic
	// scope the learner has already seen, used by the Subtopic Selector.
	GetLearnerSeenCount(ctx context.Context, learnerID uuid.UUID, params CountQuestionsParams) (int, error)

	// RecordAttempt appends the attempt and, if correct and not already
	// seen, inserts a SeenRecord, atomically.
	RecordAttempt(ctx context.Context, attempt models.Attempt, markSeenIfCorrect bool) error

	// GetQuestion loads a single question by id.
	GetQuestion(ctx context.Context, id uuid.UUID) (*models.Question, error)

	// LearnerAttemptSummary returns the learner's lifetime attempt totals
	// across all subjects, feeding the Difficulty Policy.
	LearnerAttemptSummary(ctx context.Context, learnerID uuid.UUID) (totalAttempts, totalCorrect int, err error)

	// LearnerProgress returns the learner's full progress aggregate.
	LearnerProgress(ctx context.Context, learnerID uuid.UUID) (*models.ProgressResponse, error)

	// OpenSession returns the learner's existing active session, or opens
	// a new one under ctx if none exists. Concurrent racers receive the
	// same winning session.
	OpenSession(ctx context.Context, learnerID uuid.UUID, sctx models.SessionContext) (*models.Session, error)

	// EndSession sets ended_at if the session is still active; idempotent.
	EndSession(ctx context.Context, sessionID uuid.UUID) (*models.Session, error)

	// GetSession loads a session by id.
	GetSession(ctx context.Context, sessionID uuid.UUID) (*models.Session, error)

	// SessionAttempts returns attempts within the session's window.
	SessionAttempts(ctx context.Context, sessionID uuid.UUID) ([]models.Attempt, error)

	// SeedSubtopic idempotently inserts a catalog entry if it does not
	// already exist, for curriculum/subtopic seed loading.
	SeedSubtopic(ctx context.Context, s models.Subtopic) error
}

// Clock abstracts time.Now for deterministic tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the default, real-time Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
