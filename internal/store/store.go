package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// Session is an issued bearer token.
type Session struct {
	Token     string
	UserID    string
	Username  string
	Role      string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Document is an uploaded file. The content itself lives in the blob column
// and is only loaded by GetDocumentContent.
type Document struct {
	ID          string
	Name        string
	ContentType string
	Size        int64
	Checksum    string
	Status      string
	Owner       string
	CreatedAt   time.Time
}

// Conversation is a chat thread.
type Conversation struct {
	ID           string
	Title        string
	Owner        string
	MessageCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Message is one turn of a conversation.
type Message struct {
	ID             string
	ConversationID string
	Role           string
	Content        string
	CreatedAt      time.Time
}

// Store wraps the SQL database used for persistence.
type Store struct {
	db     *sql.DB
	driver string
}

// Open initializes the datastore using the supplied DSN/file path and driver
// (sqlite or postgres).
func Open(dsn string, driver string) (*Store, error) {
	if driver == "" {
		driver = "sqlite"
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("datastore DSN is required")
	}
	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case "sqlite":
		if dsn != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, errors.Wrap(err, "create datastore directory")
			}
		}
		db, err = sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", dsn))
		if err == nil {
			// one writer avoids SQLITE_BUSY under concurrent uploads
			db.SetMaxOpenConns(1)
		}
	case "postgres":
		db, err = sql.Open("pgx", dsn)
	default:
		return nil, errors.Errorf("unsupported datastore driver: %s", driver)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open %s datastore", driver)
	}
	s := &Store{db: db, driver: driver}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	blob := "BLOB"
	if s.driver == "postgres" {
		blob = "BYTEA"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			username TEXT NOT NULL,
			role TEXT,
			created_at TIMESTAMP NOT NULL,
			expires_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			content_type TEXT,
			size BIGINT NOT NULL,
			checksum TEXT,
			status TEXT NOT NULL,
			owner TEXT NOT NULL,
			content ` + blob + `,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_created ON documents(created_at)`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			owner TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			seq BIGINT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, seq)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return errors.Wrap(err, "schema apply failed")
		}
	}
	return nil
}

// Close shuts down the datastore.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// rebind rewrites ? placeholders into $n for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(query), args...)
}

func limitClause(limit int) string {
	if limit <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", limit)
}

func notFound(err error, what, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Wrapf(ErrNotFound, "%s %s", what, id)
	}
	return errors.Wrapf(err, "load %s %s", what, id)
}

func affected(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "delete %s %s", what, id)
	}
	if n == 0 {
		return errors.Wrapf(ErrNotFound, "%s %s", what, id)
	}
	return nil
}
