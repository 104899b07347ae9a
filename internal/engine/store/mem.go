package store

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"noble-ngs-quiz/internal/apperr"
	"noble-ngs-quiz/internal/models"
)

// MemStore is a mutex-protected in-memory Store, used for tests and for
// deterministic local runs alongside MOCK_GENERATOR. It implements the
// same serializability guarantees the Postgres-backed store provides by
// holding a single process-wide lock across compound operations.
type MemStore struct {
	mu sync.Mutex

	questions   map[uuid.UUID]models.Question
	byFP        map[string]uuid.UUID
	subtopics   map[subtopicKey]models.Subtopic
	seen        map[uuid.UUID]map[string]time.Time
	attempts    []models.Attempt
	sessions    map[uuid.UUID]*models.Session
	activeBy    map[uuid.UUID]uuid.UUID // learner -> session id
	clock       Clock
	rng         *rand.Rand
}

type subtopicKey struct {
	subject, topic, subtopic string
	grade                    int
}

// NewMemStore builds an empty MemStore.
func NewMemStore(clock Clock) *MemStore {
	if clock == nil {
		clock = SystemClock{}
	}
	return &MemStore{
		questions: make(map[uuid.UUID]models.Question),
		byFP:      make(map[string]uuid.UUID),
		subtopics: make(map[subtopicKey]models.Subtopic),
		seen:      make(map[uuid.UUID]map[string]time.Time),
		sessions:  make(map[uuid.UUID]*models.Session),
		activeBy:  make(map[uuid.UUID]uuid.UUID),
		clock:     clock,
		rng:       rand.New(rand.NewSource(1)),
	}
}

func (m *MemStore) ListQuestions(ctx context.Context, params ListQuestionsParams) ([]models.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byDifficulty := make(map[models.Difficulty][]models.Question)
	for _, q := range m.questions {
		if !matchesScope(q, params.Subject, params.Grade, params.Topic, params.Subtopic) {
			continue
		}
		if params.ExcludeFingerprints != nil && params.ExcludeFingerprints[q.Fingerprint] {
			continue
		}
		byDifficulty[q.Difficulty] = append(byDifficulty[q.Difficulty], q)
	}

	order := params.Difficulties
	if len(order) == 0 {
		order = []models.Difficulty{models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard}
	}

	var out []models.Question
	for _, d := range order {
		tier := byDifficulty[d]
		sort.Slice(tier, func(i, j int) bool { return tier[i].ID.String() < tier[j].ID.String() })
		m.rng.Shuffle(len(tier), func(i, j int) { tier[i], tier[j] = tier[j], tier[i] })
		for _, q := range tier {
			if params.Limit > 0 && len(out) >= params.Limit {
				return out, nil
			}
			out = append(out, q)
		}
	}
	return out, nil
}

func (m *MemStore) CountQuestions(ctx context.Context, params CountQuestionsParams) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, q := range m.questions {
		if matchesScope(q, params.Subject, params.Grade, params.Topic, params.Subtopic) {
			count++
		}
	}
	return count, nil
}

func (m *MemStore) ListSubtopics(ctx context.Context, subject string, grade int, topic string) ([]models.Subtopic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Subtopic
	for _, s := range m.subtopics {
		if s.Subject == subject && s.Grade == grade && (topic == "" || s.Topic == topic) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SequenceOrder != out[j].SequenceOrder {
			return out[i].SequenceOrder < out[j].SequenceOrder
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *MemStore) AdmitQuestions(ctx context.Context, questions []models.Question) (models.AdmitResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result models.AdmitResult
	for _, q := range questions {
		if _, exists := m.byFP[q.Fingerprint]; exists {
			result.Skipped++
			continue
		}
		if q.ID == uuid.Nil {
			q.ID = uuid.New()
		}
		if q.CreatedAt.IsZero() {
			q.CreatedAt = m.clock.Now()
		}
		m.questions[q.ID] = q
		m.byFP[q.Fingerprint] = q.ID
		result.Accepted++
	}
	return result, nil
}

func (m *MemStore) GetLearnerSeen(ctx context.Context, learnerID uuid.UUID) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]bool, len(m.seen[learnerID]))
	for fp := range m.seen[learnerID] {
		out[fp] = true
	}
	return out, nil
}

func (m *MemStore) GetLearnerSeenCount(ctx context.Context, learnerID uuid.UUID, params CountQuestionsParams) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := m.seen[learnerID]
	if len(seen) == 0 {
		return 0, nil
	}
	count := 0
	for _, q := range m.questions {
		if matchesScope(q, params.Subject, params.Grade, params.Topic, params.Subtopic) {
			if _, ok := seen[q.Fingerprint]; ok {
				count++
			}
		}
	}
	return count, nil
}

func (m *MemStore) RecordAttempt(ctx context.Context, attempt models.Attempt, markSeenIfCorrect bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.questions[attempt.QuestionID]
	if !ok {
		return apperr.New(apperr.KindUnknownQuestion, "question not found")
	}

	if attempt.ID == uuid.Nil {
		attempt.ID = uuid.New()
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = m.clock.Now()
	}
	attempt.Subject = q.Subject
	m.attempts = append(m.attempts, attempt)

	if markSeenIfCorrect && attempt.Correct {
		if m.seen[attempt.LearnerID] == nil {
			m.seen[attempt.LearnerID] = make(map[string]time.Time)
		}
		if _, already := m.seen[attempt.LearnerID][q.Fingerprint]; !already {
			m.seen[attempt.LearnerID][q.Fingerprint] = attempt.CreatedAt
		}
	}
	return nil
}

func (m *MemStore) GetQuestion(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.questions[id]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "question not found")
	}
	return &q, nil
}

func (m *MemStore) LearnerAttemptSummary(ctx context.Context, learnerID uuid.UUID) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	total, correct := 0, 0
	for _, a := range m.attempts {
		if a.LearnerID != learnerID {
			continue
		}
		total++
		if a.Correct {
			correct++
		}
	}
	return total, correct, nil
}

func (m *MemStore) LearnerProgress(ctx context.Context, learnerID uuid.UUID) (*models.ProgressResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ordered []models.Attempt
	for _, a := range m.attempts {
		if a.LearnerID == learnerID {
			ordered = append(ordered, a)
		}
	}

	resp := &models.ProgressResponse{BySubject: make(map[string]models.SubjectProgress)}
	bySubject := make(map[string]*models.SubjectProgress)

	for _, a := range ordered {
		resp.Attempted++
		if a.Correct {
			resp.Correct++
		}
		sp := bySubject[a.Subject]
		if sp == nil {
			sp = &models.SubjectProgress{}
			bySubject[a.Subject] = sp
		}
		sp.Attempted++
		if a.Correct {
			sp.Correct++
		}
	}

	if resp.Attempted > 0 {
		resp.AccuracyPct = roundPct(resp.Correct, resp.Attempted)
	}
	for subj, sp := range bySubject {
		sp.AccuracyPct = roundPct(sp.Correct, sp.Attempted)
		resp.BySubject[subj] = *sp
	}

	streak := 0
	for i := len(ordered) - 1; i >= 0; i-- {
		if ordered[i].Correct {
			streak++
		} else {
			break
		}
	}
	resp.CurrentStreak = streak

	return resp, nil
}

func (m *MemStore) OpenSession(ctx context.Context, learnerID uuid.UUID, sctx models.SessionContext) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existingID, ok := m.activeBy[learnerID]; ok {
		if s, ok := m.sessions[existingID]; ok && s.Active() {
			cp := *s
			return &cp, nil
		}
	}

	s := &models.Session{
		ID:        uuid.New(),
		LearnerID: learnerID,
		Subject:   sctx.Subject,
		Topic:     sctx.Topic,
		Subtopic:  sctx.Subtopic,
		StartedAt: m.clock.Now(),
	}
	m.sessions[s.ID] = s
	m.activeBy[learnerID] = s.ID

	cp := *s
	return &cp, nil
}

func (m *MemStore) EndSession(ctx context.Context, sessionID uuid.UUID) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "session not found")
	}
	if s.Active() {
		now := m.clock.Now()
		s.EndedAt = &now
		delete(m.activeBy, s.LearnerID)
	}
	cp := *s
	return &cp, nil
}

func (m *MemStore) GetSession(ctx context.Context, sessionID uuid.UUID) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "session not found")
	}
	cp := *s
	return &cp, nil
}

func (m *MemStore) SessionAttempts(ctx context.Context, sessionID uuid.UUID) ([]models.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "session not found")
	}

	end := m.clock.Now()
	if s.EndedAt != nil {
		end = *s.EndedAt
	}

	var out []models.Attempt
	for _, a := range m.attempts {
		if a.LearnerID != s.LearnerID {
			continue
		}
		if a.CreatedAt.Before(s.StartedAt) || a.CreatedAt.After(end) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *MemStore) SeedSubtopic(ctx context.Context, s models.Subtopic) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := subtopicKey{subject: s.Subject, topic: s.Topic, subtopic: s.Name, grade: s.Grade}
	if _, exists := m.subtopics[key]; exists {
		return nil
	}
	m.subtopics[key] = s
	return nil
}

func matchesScope(q models.Question, subject string, grade *int, topic, subtopic string) bool {
	if subject != "" && q.Subject != subject {
		return false
	}
	if grade != nil && q.Grade != *grade {
		return false
	}
	if topic != "" && q.Topic != topic {
		return false
	}
	if subtopic != "" && q.Subtopic != subtopic {
		return false
	}
	return true
}

func roundPct(numerator, denominator int) int {
	if denominator == 0 {
		return 0
	}
	return int(float64(numerator)/float64(denominator)*100 + 0.5)
}
