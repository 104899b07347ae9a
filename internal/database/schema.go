package database

// schema is applied idempotently on startup via CREATE TABLE/INDEX IF NOT
// EXISTS, rather than through a migration tool: this service owns a small,
// stable set of tables and has no need for versioned migrations yet.
const schema = `
CREATE TABLE IF NOT EXISTS questions (
	id              UUID PRIMARY KEY,
	subject         TEXT NOT NULL,
	topic           TEXT NOT NULL,
	subtopic        TEXT NOT NULL,
	grade           INTEGER NOT NULL,
	difficulty      TEXT NOT NULL,
	stem            TEXT NOT NULL,
	options         TEXT[] NOT NULL,
	correct_answer  TEXT NOT NULL,
	rationale       TEXT NOT NULL DEFAULT '',
	standard_ref    TEXT NOT NULL DEFAULT '',
	fingerprint     TEXT NOT NULL UNIQUE,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_questions_scope ON questions (subject, grade, topic, subtopic);

CREATE TABLE IF NOT EXISTS subtopic_catalog (
	subject        TEXT NOT NULL,
	grade          INTEGER NOT NULL,
	topic          TEXT NOT NULL,
	subtopic       TEXT NOT NULL,
	sequence_order INTEGER NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (subject, grade, topic, subtopic)
);

CREATE TABLE IF NOT EXISTS seen_records (
	learner_id    UUID NOT NULL,
	fingerprint   TEXT NOT NULL,
	first_seen_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (learner_id, fingerprint)
);

CREATE TABLE IF NOT EXISTS attempts (
	id          UUID PRIMARY KEY,
	learner_id  UUID NOT NULL,
	question_id UUID NOT NULL REFERENCES questions(id),
	subject     TEXT NOT NULL,
	selected    TEXT NOT NULL,
	correct     BOOLEAN NOT NULL,
	elapsed_ms  INTEGER NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_attempts_learner_created ON attempts (learner_id, created_at DESC);

CREATE TABLE IF NOT EXISTS sessions (
	id         UUID PRIMARY KEY,
	learner_id UUID NOT NULL,
	subject    TEXT NOT NULL DEFAULT '',
	topic      TEXT NOT NULL DEFAULT '',
	subtopic   TEXT NOT NULL DEFAULT '',
	started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	ended_at   TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_one_active_per_learner
	ON sessions (learner_id) WHERE ended_at IS NULL;
`

// EnsureSchema applies the schema to db. Safe to call on every startup.
func (db *DB) EnsureSchema() error {
	_, err := db.Exec(schema)
	return err
}
