// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package session

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	// SQL drivers: the same three dialects the core supports for storage,
	// selected at construction time via the dialect string.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SQLStore persists sessions to a SQL database across sqlite/postgres/mysql,
// picking placeholder style per dialect.
type SQLStore struct {
	db      *sql.DB
	dialect string
}

const createSessionsTableSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id VARCHAR(255) PRIMARY KEY,
    agent_id VARCHAR(255) NOT NULL,
    customer_id VARCHAR(255) NOT NULL,
    title VARCHAR(255),
    mode VARCHAR(16) NOT NULL,
    created_at TIMESTAMP NOT NULL
)`

const createSessionsAgentIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_sessions_agent ON sessions(agent_id, customer_id)`

// NewSQLStore opens a session Store over db using dialect ("postgres",
// "mysql", "sqlite"/"sqlite3"), creating the schema if it doesn't exist yet.
func NewSQLStore(db *sql.DB, dialect string) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("session: database connection is required")
	}
	switch dialect {
	case "postgres", "mysql", "sqlite":
	case "sqlite3":
		dialect = "sqlite"
	default:
		return nil, fmt.Errorf("session: unsupported dialect: %s", dialect)
	}

	s := &SQLStore{db: db, dialect: dialect}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, stmt := range []string{createSessionsTableSQL, createSessionsAgentIndexSQL} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("session: init schema: %w", err)
		}
	}
	return s, nil
}

func (s *SQLStore) placeholders(query string) string {
	if s.dialect != "postgres" {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 20)
	n := 1
	for _, c := range query {
		if c == '?' {
			fmt.Fprintf(&b, "$%d", n)
			n++
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func (s *SQLStore) CreateSession(ctx context.Context, sess Session) (Session, error) {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.Mode == "" {
		sess.Mode = ModeAuto
	}
	if sess.CreationTime.IsZero() {
		sess.CreationTime = time.Now()
	}

	query := s.placeholders(`INSERT INTO sessions (id, agent_id, customer_id, title, mode, created_at) VALUES (?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query, sess.ID, sess.AgentID, sess.CustomerID, sess.Title, string(sess.Mode), sess.CreationTime)
	if err != nil {
		return Session{}, fmt.Errorf("session: create: %w", err)
	}
	return sess, nil
}

func (s *SQLStore) ReadSession(ctx context.Context, id string) (Session, error) {
	query := s.placeholders(`SELECT id, agent_id, customer_id, title, mode, created_at FROM sessions WHERE id = ?`)
	row := s.db.QueryRowContext(ctx, query, id)

	var sess Session
	var mode string
	if err := row.Scan(&sess.ID, &sess.AgentID, &sess.CustomerID, &sess.Title, &mode, &sess.CreationTime); err != nil {
		if err == sql.ErrNoRows {
			return Session{}, &ErrSessionNotFound{ID: id}
		}
		return Session{}, fmt.Errorf("session: read %q: %w", id, err)
	}
	sess.Mode = Mode(mode)
	return sess, nil
}

func (s *SQLStore) ListSessions(ctx context.Context, agentID, customerID string) ([]Session, error) {
	query := `SELECT id, agent_id, customer_id, title, mode, created_at FROM sessions WHERE 1=1`
	var args []any
	if agentID != "" {
		query += " AND agent_id = ?"
		args = append(args, agentID)
	}
	if customerID != "" {
		query += " AND customer_id = ?"
		args = append(args, customerID)
	}
	query = s.placeholders(query)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("session: list: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		var mode string
		if err := rows.Scan(&sess.ID, &sess.AgentID, &sess.CustomerID, &sess.Title, &mode, &sess.CreationTime); err != nil {
			return nil, fmt.Errorf("session: scan: %w", err)
		}
		sess.Mode = Mode(mode)
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpdateMode(ctx context.Context, id string, mode Mode) error {
	query := s.placeholders(`UPDATE sessions SET mode = ? WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query, string(mode), id)
	if err != nil {
		return fmt.Errorf("session: update mode: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &ErrSessionNotFound{ID: id}
	}
	return nil
}

func (s *SQLStore) UpdateTitle(ctx context.Context, id, title string) error {
	query := s.placeholders(`UPDATE sessions SET title = ? WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query, title, id)
	if err != nil {
		return fmt.Errorf("session: update title: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &ErrSessionNotFound{ID: id}
	}
	return nil
}

func (s *SQLStore) DeleteSession(ctx context.Context, id string) error {
	query := s.placeholders(`DELETE FROM sessions WHERE id = ?`)
	_, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}
	return nil
}

var _ Store = (*SQLStore)(nil)
