// Package models defines the entities and wire DTOs of the adaptive
// question dispatch engine.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Difficulty is one of the three tiers a question can be tagged with.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ValidDifficulty reports whether d is one of the allowed tiers.
func ValidDifficulty(d Difficulty) bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	default:
		return false
	}
}

// Question is an admitted, immutable practice item. Subject, topic and
// subtopic are always normalized-lowercase; stem, options, correct answer
// and rationale preserve their original case.
type Question struct {
	ID            uuid.UUID  `json:"id"`
	Subject       string     `json:"subject"`
	Topic         string     `json:"topic"`
	Subtopic      string     `json:"subtopic"`
	Grade         int        `json:"grade"`
	Difficulty    Difficulty `json:"difficulty"`
	Stem          string     `json:"stem"`
	Options       []string   `json:"options"`
	CorrectAnswer string     `json:"correct_answer"`
	Rationale     string     `json:"rationale,omitempty"`
	StandardRef   string     `json:"standard_ref,omitempty"`
	Fingerprint   string     `json:"fingerprint"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Candidate is a not-yet-admitted question payload, as produced by the
// external generator or submitted for seed loading, before C1/C2/C3 run.
type Candidate struct {
	Subject       string     `json:"subject"`
	Topic         string     `json:"topic"`
	Subtopic      string     `json:"subtopic"`
	Grade         int        `json:"grade"`
	Difficulty    Difficulty `json:"difficulty"`
	Stem          string     `json:"stem"`
	Options       []string   `json:"options"`
	CorrectAnswer string     `json:"correct_answer"`
	Rationale     string     `json:"rationale,omitempty"`
	StandardRef   string     `json:"standard_ref,omitempty"`
}

// Subtopic is a read-only catalog entry, unique per
// (subject, grade, topic, subtopic).
type Subtopic struct {
	Subject       string `json:"subject"`
	Grade         int    `json:"grade"`
	Topic         string `json:"topic"`
	Name          string `json:"subtopic"`
	SequenceOrder int    `json:"sequence_order"`
	Description   string `json:"description,omitempty"`
}

// SeenRecord marks that a learner has answered a question (by fingerprint)
// correctly at least once.
type SeenRecord struct {
	LearnerID   uuid.UUID `json:"learner_id"`
	Fingerprint string    `json:"fingerprint"`
	FirstSeenAt time.Time `json:"first_seen_at"`
}

// Attempt is an append-only record of a learner's answer to a question.
type Attempt struct {
	ID         uuid.UUID `json:"id"`
	LearnerID  uuid.UUID `json:"learner_id"`
	QuestionID uuid.UUID `json:"question_id"`
	Subject    string    `json:"subject"`
	Selected   string    `json:"selected"`
	Correct    bool      `json:"correct"`
	ElapsedMS  int       `json:"elapsed_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Session binds a run of attempts for one learner. At most one session per
// learner may be active (EndedAt == nil) at a time.
type Session struct {
	ID        uuid.UUID  `json:"id"`
	LearnerID uuid.UUID  `json:"learner_id"`
	Subject   string     `json:"subject,omitempty"`
	Topic     string     `json:"topic,omitempty"`
	Subtopic  string     `json:"subtopic,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Active reports whether the session has not yet ended.
func (s *Session) Active() bool {
	return s.EndedAt == nil
}

// SessionContext carries the optional curricular scope recorded when a
// session is opened.
type SessionContext struct {
	Subject  string `json:"subject,omitempty"`
	Topic    string `json:"topic,omitempty"`
	Subtopic string `json:"subtopic,omitempty"`
}

// Request/Response DTOs

// FetchBatchRequest is the input to the Batch Picker's public operation.
type FetchBatchRequest struct {
	LearnerID uuid.UUID `json:"learner_id"`
	Grade     int       `json:"grade"`
	Subject   string    `json:"subject"`
	Topic     string    `json:"topic,omitempty"`
	Subtopic  string    `json:"subtopic,omitempty"`
	Limit     int       `json:"limit"`
}

// FetchBatchResponse is returned to callers of fetch batch.
type FetchBatchResponse struct {
	Questions        []Question `json:"questions"`
	ResolvedSubtopic string     `json:"resolved_subtopic,omitempty"`
	SessionID        uuid.UUID  `json:"session_id"`
	Deficit          int        `json:"deficit"`
}

// SubmitAttemptRequest is the request body for submitting an answer.
type SubmitAttemptRequest struct {
	LearnerID  uuid.UUID `json:"learner_id"`
	QuestionID uuid.UUID `json:"question_id"`
	Selected   string    `json:"selected"`
	ElapsedMS  int       `json:"elapsed_ms"`
}

// SubmitAttemptResponse discloses the grading outcome.
type SubmitAttemptResponse struct {
	Correct        bool      `json:"correct"`
	ExpectedAnswer string    `json:"expected_answer"`
	SessionID      uuid.UUID `json:"session_id"`
}

// SubjectProgress is the per-subject slice of a progress report.
type SubjectProgress struct {
	Attempted   int `json:"attempted"`
	Correct     int `json:"correct"`
	AccuracyPct int `json:"accuracy_pct"`
}

// ProgressResponse is the learner-facing progress aggregate.
type ProgressResponse struct {
	Attempted      int                        `json:"attempted"`
	Correct        int                        `json:"correct"`
	AccuracyPct    int                         `json:"accuracy_pct"`
	CurrentStreak  int                        `json:"current_streak"`
	BySubject      map[string]SubjectProgress `json:"by_subject"`
}

// SessionSummary is the learner-facing session report.
type SessionSummary struct {
	Session            Session  `json:"session"`
	QuestionsAttempted int      `json:"questions_attempted"`
	QuestionsCorrect   int      `json:"questions_correct"`
	AccuracyPct        int      `json:"accuracy_pct"`
	TotalElapsedMS     int      `json:"total_elapsed_ms"`
	AvgElapsedMS       int      `json:"avg_elapsed_ms"`
	SubjectsPracticed  []string `json:"subjects_practiced"`
}

// AdmitResult reports the outcome of a bulk admission call.
type AdmitResult struct {
	Accepted int `json:"accepted"`
	Skipped  int `json:"skipped"`
}

// JSONB is a custom type for PostgreSQL JSONB columns, kept available for
// any future metadata extension on the persisted entities above.
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface.
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface.
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return json.Unmarshal(value.([]byte), j)
	}
	return json.Unmarshal(bytes, j)
}
