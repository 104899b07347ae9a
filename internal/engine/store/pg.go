package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"noble-ngs-quiz/internal/apperr"
	"noble-ngs-quiz/internal/database"
	"noble-ngs-quiz/internal/models"
)

// PGStore is a Postgres-backed Store, adapted from the transactional
// begin/defer-rollback/commit idiom used throughout the progress and
// lesson services: admit_questions, record_attempt and open_session run
// inside explicit transactions to satisfy the serializability
// requirement on those compound operations.
type PGStore struct {
	db *database.DB
}

func NewPGStore(db *database.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) ListQuestions(ctx context.Context, params ListQuestionsParams) ([]models.Question, error) {
	order := params.Difficulties
	if len(order) == 0 {
		order = []models.Difficulty{models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard}
	}

	var out []models.Question
	remaining := params.Limit

	for _, d := range order {
		if params.Limit > 0 && remaining <= 0 {
			break
		}

		query := `
			SELECT id, subject, topic, subtopic, grade, difficulty, stem, options,
			       correct_answer, rationale, standard_ref, fingerprint, created_at
			FROM questions
			WHERE subject = $1 AND difficulty = $2
		`
		args := []interface{}{params.Subject, d}
		idx := 3

		if params.Grade != nil {
			query += fmt.Sprintf(" AND grade = $%d", idx)
			args = append(args, *params.Grade)
			idx++
		}
		if params.Topic != "" {
			query += fmt.Sprintf(" AND topic = $%d", idx)
			args = append(args, params.Topic)
			idx++
		}
		if params.Subtopic != "" {
			query += fmt.Sprintf(" AND subtopic = $%d", idx)
			args = append(args, params.Subtopic)
			idx++
		}
		if len(params.ExcludeFingerprints) > 0 {
			excluded := make([]string, 0, len(params.ExcludeFingerprints))
			for fp := range params.ExcludeFingerprints {
				excluded = append(excluded, fp)
			}
			query += fmt.Sprintf(" AND NOT (fingerprint = ANY($%d))", idx)
			args = append(args, pq.Array(excluded))
			idx++
		}

		query += " ORDER BY random()"
		if params.Limit > 0 {
			query += fmt.Sprintf(" LIMIT $%d", idx)
			args = append(args, remaining)
		}

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindStoreUnavailable, err, "failed to list questions")
		}

		for rows.Next() {
			var q models.Question
			if err := rows.Scan(
				&q.ID, &q.Subject, &q.Topic, &q.Subtopic, &q.Grade, &q.Difficulty,
				&q.Stem, pq.Array(&q.Options), &q.CorrectAnswer, &q.Rationale,
				&q.StandardRef, &q.Fingerprint, &q.CreatedAt,
			); err != nil {
				rows.Close()
				return nil, apperr.Wrap(apperr.KindStoreUnavailable, err, "failed to scan question")
			}
			out = append(out, q)
			remaining--
		}
		rows.Close()
	}

	return out, nil
}

func (s *PGStore) CountQuestions(ctx context.Context, params CountQuestionsParams) (int, error) {
	query := "SELECT COUNT(*) FROM questions WHERE subject = $1"
	args := []interface{}{params.Subject}
	idx := 2

	if params.Grade != nil {
		query += fmt.Sprintf(" AND grade = $%d", idx)
		args = append(args, *params.Grade)
		idx++
	}
	if params.Topic != "" {
		query += fmt.Sprintf(" AND topic = $%d", idx)
		args = append(args, params.Topic)
		idx++
	}
	if params.Subtopic != "" {
		query += fmt.Sprintf(" AND subtopic = $%d", idx)
		args = append(args, params.Subtopic)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, apperr.Wrap(apperr.KindStoreUnavailable, err, "failed to count questions")
	}
	return count, nil
}

func (s *PGStore) ListSubtopics(ctx context.Context, subject string, grade int, topic string) ([]models.Subtopic, error) {
	query := `
		SELECT subject, grade, topic, subtopic, sequence_order, COALESCE(description, '')
		FROM subtopic_catalog
		WHERE subject = $1 AND grade = $2
	`
	args := []interface{}{subject, grade}
	if topic != "" {
		query += " AND topic = $3"
		args = append(args, topic)
	}
	query += " ORDER BY sequence_order ASC, subtopic ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, err, "failed to list subtopics")
	}
	defer rows.Close()

	var out []models.Subtopic
	for rows.Next() {
		var st models.Subtopic
		if err := rows.Scan(&st.Subject, &st.Grade, &st.Topic, &st.Name, &st.SequenceOrder, &st.Description); err != nil {
			return nil, apperr.Wrap(apperr.KindStoreUnavailable, err, "failed to scan subtopic")
		}
		out = append(out, st)
	}
	return out, nil
}

func (s *PGStore) AdmitQuestions(ctx context.Context, questions []models.Question) (models.AdmitResult, error) {
	var result models.AdmitResult

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, apperr.Wrap(apperr.KindStoreUnavailable, err, "failed to begin transaction")
	}
	defer tx.Rollback()

	for _, q := range questions {
		if q.ID == uuid.Nil {
			q.ID = uuid.New()
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO questions (id, subject, topic, subtopic, grade, difficulty, stem, options,
			                        correct_answer, rationale, standard_ref, fingerprint, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
			ON CONFLICT (fingerprint) DO NOTHING
		`, q.ID, q.Subject, q.Topic, q.Subtopic, q.Grade, q.Difficulty, q.Stem,
			pq.Array(q.Options), q.CorrectAnswer, q.Rationale, q.StandardRef, q.Fingerprint)
		if err != nil {
			return result, apperr.Wrap(apperr.KindStoreUnavailable, err, "failed to admit question")
		}
		n, _ := res.RowsAffected()
		if n > 0 {
			result.Accepted++
		} else {
			result.Skipped++
		}
	}

	if err := tx.Commit(); err != nil {
		return result, apperr.Wrap(apperr.KindStoreUnavailable, err, "failed to commit admission")
	}
	return result, nil
}

func (s *PGStore) GetLearnerSeen(ctx context.Context, learnerID uuid.UUID) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT fingerprint FROM seen_records WHERE learner_id = $1`, learnerID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, err, "failed to query seen records")
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, apperr.Wrap(apperr.KindStoreUnavailable, err, "failed to scan seen record")
		}
		out[fp] = true
	}
	return out, nil
}

func (s *PGStore) GetLearnerSeenCount(ctx context.Context, learnerID uuid.UUID, params CountQuestionsParams) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM seen_records sr
		JOIN questions q ON q.fingerprint = sr.fingerprint
		WHERE sr.learner_id = $1 AND q.subject = $2
	`
	args := []interface{}{learnerID, params.Subject}
	idx := 3

	if params.Grade != nil {
		query += fmt.Sprintf(" AND q.grade = $%d", idx)
		args = append(args, *params.Grade)
		idx++
	}
	if params.Topic != "" {
		query += fmt.Sprintf(" AND q.topic = $%d", idx)
		args = append(args, params.Topic)
		idx++
	}
	if params.Subtopic != "" {
		query += fmt.Sprintf(" AND q.subtopic = $%d", idx)
		args = append(args, params.Subtopic)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, apperr.Wrap(apperr.KindStoreUnavailable, err, "failed to count seen")
	}
	return count, nil
}

func (s *PGStore) RecordAttempt(ctx context.Context, attempt models.Attempt, markSeenIfCorrect bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.KindStoreUnavailable, err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var fingerprint, subject string
	err = tx.QueryRowContext(ctx, `SELECT fingerprint, subject FROM questions WHERE id = $1`, attempt.QuestionID).
		Scan(&fingerprint, &subject)
	if err == sql.ErrNoRows {
		return apperr.New(apperr.KindUnknownQuestion, "question not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.KindStoreUnavailable, err, "failed to load question")
	}

	if attempt.ID == uuid.Nil {
		attempt.ID = uuid.New()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO attempts (id, learner_id, question_id, subject, selected, correct, elapsed_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`, attempt.ID, attempt.LearnerID, attempt.QuestionID, subject, attempt.Selected, attempt.Correct, attempt.ElapsedMS)
	if err != nil {
		return apperr.Wrap(apperr.KindStoreUnavailable, err, "failed to insert attempt")
	}

	if markSeenIfCorrect && attempt.Correct {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO seen_records (learner_id, fingerprint, first_seen_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (learner_id, fingerprint) DO NOTHING
		`, attempt.LearnerID, fingerprint)
		if err != nil {
			return apperr.Wrap(apperr.KindStoreUnavailable, err, "failed to record seen")
		}
	}

	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.KindStoreUnavailable, err, "failed to commit attempt")
	}
	return nil
}

func (s *PGStore) GetQuestion(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	var q models.Question
	err := s.db.QueryRowContext(ctx, `
		SELECT id, subject, topic, subtopic, grade, difficulty, stem, options,
		       correct_answer, rationale, standard_ref, fingerprint, created_at
		FROM questions WHERE id = $1
	`, id).Scan(
		&q.ID, &q.Subject, &q.Topic, &q.Subtopic, &q.Grade, &q.Difficulty,
		&q.Stem, pq.Array(&q.Options), &q.CorrectAnswer, &q.Rationale,
		&q.StandardRef, &q.Fingerprint, &q.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.KindNotFound, "question not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, err, "failed to get question")
	}
	return &q, nil
}

func (s *PGStore) LearnerAttemptSummary(ctx context.Context, learnerID uuid.UUID) (int, int, error) {
	var total, correct int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN correct THEN 1 ELSE 0 END), 0)
		FROM attempts WHERE learner_id = $1
	`, learnerID).Scan(&total, &correct)
	if err != nil {
		return 0, 0, apperr.Wrap(apperr.KindStoreUnavailable, err, "failed to summarize attempts")
	}
	return total, correct, nil
}

func (s *PGStore) LearnerProgress(ctx context.Context, learnerID uuid.UUID) (*models.ProgressResponse, error) {
	resp := &models.ProgressResponse{BySubject: make(map[string]models.SubjectProgress)}

	rows, err := s.db.QueryContext(ctx, `
		SELECT subject, COUNT(*), SUM(CASE WHEN correct THEN 1 ELSE 0 END)
		FROM attempts WHERE learner_id = $1
		GROUP BY subject
	`, learnerID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, err, "failed to query progress by subject")
	}
	for rows.Next() {
		var subject string
		var attempted, correct int
		if err := rows.Scan(&subject, &attempted, &correct); err != nil {
			rows.Close()
			return nil, apperr.Wrap(apperr.KindStoreUnavailable, err, "failed to scan progress row")
		}
		resp.Attempted += attempted
		resp.Correct += correct
		resp.BySubject[subject] = models.SubjectProgress{
			Attempted:   attempted,
			Correct:     correct,
			AccuracyPct: roundPct(correct, attempted),
		}
	}
	rows.Close()

	if resp.Attempted > 0 {
		resp.AccuracyPct = roundPct(resp.Correct, resp.Attempted)
	}

	var corrects []bool
	streakRows, err := s.db.QueryContext(ctx, `
		SELECT correct FROM attempts WHERE learner_id = $1 ORDER BY created_at DESC
	`, learnerID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, err, "failed to query streak")
	}
	defer streakRows.Close()
	for streakRows.Next() {
		var c bool
		if err := streakRows.Scan(&c); err != nil {
			return nil, apperr.Wrap(apperr.KindStoreUnavailable, err, "failed to scan streak row")
		}
		corrects = append(corrects, c)
	}

	streak := 0
	for _, c := range corrects {
		if c {
			streak++
		} else {
			break
		}
	}
	resp.CurrentStreak = streak

	return resp, nil
}

func (s *PGStore) OpenSession(ctx context.Context, learnerID uuid.UUID, sctx models.SessionContext) (*models.Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var existing models.Session
	err = tx.QueryRowContext(ctx, `
		SELECT id, learner_id, COALESCE(subject, ''), COALESCE(topic, ''), COALESCE(subtopic, ''), started_at, ended_at
		FROM sessions WHERE learner_id = $1 AND ended_at IS NULL
		FOR UPDATE
	`, learnerID).Scan(&existing.ID, &existing.LearnerID, &existing.Subject, &existing.Topic,
		&existing.Subtopic, &existing.StartedAt, &existing.EndedAt)
	if err == nil {
		tx.Commit()
		return &existing, nil
	}
	if err != sql.ErrNoRows {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, err, "failed to check active session")
	}

	s2 := &models.Session{ID: uuid.New(), LearnerID: learnerID, Subject: sctx.Subject, Topic: sctx.Topic, Subtopic: sctx.Subtopic}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO sessions (id, learner_id, subject, topic, subtopic, started_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (learner_id) WHERE ended_at IS NULL DO NOTHING
		RETURNING started_at
	`, s2.ID, s2.LearnerID, s2.Subject, s2.Topic, s2.Subtopic).Scan(&s2.StartedAt)

	if err == sql.ErrNoRows {
		// A concurrent opener won the race; fetch the winner.
		err = tx.QueryRowContext(ctx, `
			SELECT id, learner_id, COALESCE(subject, ''), COALESCE(topic, ''), COALESCE(subtopic, ''), started_at, ended_at
			FROM sessions WHERE learner_id = $1 AND ended_at IS NULL
		`, learnerID).Scan(&existing.ID, &existing.LearnerID, &existing.Subject, &existing.Topic,
			&existing.Subtopic, &existing.StartedAt, &existing.EndedAt)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindStoreUnavailable, err, "failed to fetch winning session")
		}
		tx.Commit()
		return &existing, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, err, "failed to open session")
	}

	if err := tx.Commit(); err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, err, "failed to commit session open")
	}
	return s2, nil
}

func (s *PGStore) EndSession(ctx context.Context, sessionID uuid.UUID) (*models.Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, err, "failed to begin transaction")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE sessions SET ended_at = NOW() WHERE id = $1 AND ended_at IS NULL
	`, sessionID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, err, "failed to end session")
	}

	var sess models.Session
	err = tx.QueryRowContext(ctx, `
		SELECT id, learner_id, COALESCE(subject, ''), COALESCE(topic, ''), COALESCE(subtopic, ''), started_at, ended_at
		FROM sessions WHERE id = $1
	`, sessionID).Scan(&sess.ID, &sess.LearnerID, &sess.Subject, &sess.Topic, &sess.Subtopic, &sess.StartedAt, &sess.EndedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.KindNotFound, "session not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, err, "failed to load session")
	}

	if err := tx.Commit(); err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, err, "failed to commit session end")
	}
	return &sess, nil
}

func (s *PGStore) GetSession(ctx context.Context, sessionID uuid.UUID) (*models.Session, error) {
	var sess models.Session
	err := s.db.QueryRowContext(ctx, `
		SELECT id, learner_id, COALESCE(subject, ''), COALESCE(topic, ''), COALESCE(subtopic, ''), started_at, ended_at
		FROM sessions WHERE id = $1
	`, sessionID).Scan(&sess.ID, &sess.LearnerID, &sess.Subject, &sess.Topic, &sess.Subtopic, &sess.StartedAt, &sess.EndedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.KindNotFound, "session not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, err, "failed to get session")
	}
	return &sess, nil
}

func (s *PGStore) SessionAttempts(ctx context.Context, sessionID uuid.UUID) ([]models.Attempt, error) {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, learner_id, question_id, subject, selected, correct, elapsed_ms, created_at
		FROM attempts
		WHERE learner_id = $1 AND created_at >= $2
	`
	args := []interface{}{sess.LearnerID, sess.StartedAt}
	if sess.EndedAt != nil {
		query += " AND created_at <= $3"
		args = append(args, *sess.EndedAt)
	}
	query += " ORDER BY created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, err, "failed to query session attempts")
	}
	defer rows.Close()

	var out []models.Attempt
	for rows.Next() {
		var a models.Attempt
		if err := rows.Scan(&a.ID, &a.LearnerID, &a.QuestionID, &a.Subject, &a.Selected, &a.Correct, &a.ElapsedMS, &a.CreatedAt); err != nil {
			return nil, apperr.Wrap(apperr.KindStoreUnavailable, err, "failed to scan attempt")
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *PGStore) SeedSubtopic(ctx context.Context, sub models.Subtopic) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subtopic_catalog (subject, grade, topic, subtopic, sequence_order, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (subject, grade, topic, subtopic) DO NOTHING
	`, sub.Subject, sub.Grade, sub.Topic, sub.Name, sub.SequenceOrder, sub.Description)
	if err != nil {
		return apperr.Wrap(apperr.KindStoreUnavailable, err, "failed to seed subtopic")
	}
	return nil
}
