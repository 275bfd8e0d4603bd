package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// LoadSchema applies the idempotent schema statement by statement.
func LoadSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, query := range strings.Split(schema, "---") {
		query = strings.TrimSpace(query)
		if query == "" {
			continue
		}
		if _, err := pool.Exec(ctx, query); err != nil {
			return &SchemaError{Query: query, Err: err}
		}
	}
	return nil
}

// SchemaError reports the statement that failed to apply.
type SchemaError struct {
	Query string
	Err   error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error: %s", e.Err.Error())
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            BIGSERIAL PRIMARY KEY,
    username      VARCHAR(50) NOT NULL UNIQUE,
    email         VARCHAR(255) NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    reputation    INTEGER NOT NULL DEFAULT 0,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

---

CREATE TABLE IF NOT EXISTS sessions (
    id         BIGSERIAL PRIMARY KEY,
    user_id    BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    token      TEXT NOT NULL UNIQUE,
    expires_at TIMESTAMPTZ NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    revoked    BOOLEAN NOT NULL DEFAULT FALSE
);

---

CREATE INDEX IF NOT EXISTS sessions_user_id_idx ON sessions (user_id);

---

CREATE TABLE IF NOT EXISTS questions (
    id            BIGSERIAL PRIMARY KEY,
    user_id       BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    title         VARCHAR(255) NOT NULL,
    body          TEXT NOT NULL,
    views         INTEGER NOT NULL DEFAULT 0,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    search_vector TSVECTOR GENERATED ALWAYS AS (
        setweight(to_tsvector('english', coalesce(title, '')), 'A') ||
        setweight(to_tsvector('english', coalesce(body, '')), 'B')
    ) STORED
);

---

CREATE INDEX IF NOT EXISTS questions_search_idx ON questions USING GIN (search_vector);

---

CREATE TABLE IF NOT EXISTS tags (
    id   BIGSERIAL PRIMARY KEY,
    name VARCHAR(30) NOT NULL UNIQUE
);

---

CREATE TABLE IF NOT EXISTS question_tags (
    question_id BIGINT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
    tag_id      BIGINT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
    PRIMARY KEY (question_id, tag_id)
);

---

CREATE TABLE IF NOT EXISTS answers (
    id          BIGSERIAL PRIMARY KEY,
    question_id BIGINT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
    user_id     BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    body        TEXT NOT NULL,
    is_accepted BOOLEAN NOT NULL DEFAULT FALSE,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

---

CREATE TABLE IF NOT EXISTS comments (
    id               BIGSERIAL PRIMARY KEY,
    user_id          BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    commentable_type VARCHAR(10) NOT NULL CHECK (commentable_type IN ('question', 'answer')),
    commentable_id   BIGINT NOT NULL,
    body             TEXT NOT NULL,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

---

CREATE INDEX IF NOT EXISTS comments_commentable_idx ON comments (commentable_type, commentable_id);

---

CREATE TABLE IF NOT EXISTS votes (
    id           BIGSERIAL PRIMARY KEY,
    user_id      BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    votable_type VARCHAR(10) NOT NULL CHECK (votable_type IN ('question', 'answer')),
    votable_id   BIGINT NOT NULL,
    vote_type    VARCHAR(10) NOT NULL CHECK (vote_type IN ('upvote', 'downvote')),
    author_id    BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (user_id, votable_type, votable_id)
);

---

CREATE INDEX IF NOT EXISTS votes_votable_idx ON votes (votable_type, votable_id);

---

CREATE INDEX IF NOT EXISTS users_reputation_idx ON users (reputation DESC);

---

CREATE INDEX IF NOT EXISTS answers_question_id_idx ON answers (question_id);
`
