package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
)

type DB struct {
	*sql.DB
	driver string
	clock  *Clock
}

// Open connects to the store and applies the schema. For sqlite, dsn is a
// file path; for postgres it is a connection URL.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	var (
		sqldb *sql.DB
		err   error
	)
	switch driver {
	case DriverSQLite:
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		sqldb, err = sql.Open("sqlite", dsn+sep+
			"_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		// One writer. Transactions hold the only connection.
		sqldb.SetMaxOpenConns(1)
	case DriverPostgres:
		sqldb, err = sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		sqldb.SetConnMaxIdleTime(5 * time.Minute)
		sqldb.SetConnMaxLifetime(30 * time.Minute)
		sqldb.SetMaxIdleConns(10)
		sqldb.SetMaxOpenConns(20)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	if err := sqldb.PingContext(ctx); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	d := &DB{DB: sqldb, driver: driver, clock: NewClock(time.Now)}
	if err := d.migrate(ctx); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return d, nil
}

// SetClock replaces the timestamp source. Tests use it to pin time.
func (d *DB) SetClock(c *Clock) {
	d.clock = c
}

func (d *DB) Driver() string {
	return d.driver
}

const schema = `
CREATE TABLE IF NOT EXISTS members (
	id         TEXT PRIMARY KEY,
	name       VARCHAR(50) UNIQUE NOT NULL,
	pin_hash   TEXT NOT NULL,
	color      VARCHAR(20) NOT NULL DEFAULT '#E8D5C4',
	is_leader  BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS topics (
	id           TEXT PRIMARY KEY,
	title        VARCHAR(200) NOT NULL,
	bible_ref    VARCHAR(100) NOT NULL,
	bible_text   TEXT NOT NULL,
	question     TEXT,
	worship_date VARCHAR(10) NOT NULL,
	created_by   TEXT REFERENCES members(id) ON DELETE SET NULL,
	created_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id          TEXT PRIMARY KEY,
	topic_id    TEXT NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
	member_id   TEXT NOT NULL REFERENCES members(id) ON DELETE CASCADE,
	content     TEXT NOT NULL,
	reply_to_id TEXT REFERENCES messages(id) ON DELETE SET NULL,
	created_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS reactions (
	id         TEXT PRIMARY KEY,
	message_id TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
	member_id  TEXT NOT NULL REFERENCES members(id) ON DELETE CASCADE,
	type       VARCHAR(10) NOT NULL CHECK (type IN ('heart', 'amen', 'pray')),
	created_at TIMESTAMPTZ NOT NULL,
	UNIQUE (message_id, member_id, type)
);

CREATE TABLE IF NOT EXISTS read_status (
	topic_id     TEXT NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
	member_id    TEXT NOT NULL REFERENCES members(id) ON DELETE CASCADE,
	last_read_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (topic_id, member_id)
);

CREATE INDEX IF NOT EXISTS idx_topics_worship_date ON topics(worship_date);
CREATE INDEX IF NOT EXISTS idx_messages_topic ON messages(topic_id, created_at);
CREATE INDEX IF NOT EXISTS idx_messages_member ON messages(member_id);
CREATE INDEX IF NOT EXISTS idx_messages_reply_to ON messages(reply_to_id);
CREATE INDEX IF NOT EXISTS idx_reactions_message ON reactions(message_id);
CREATE INDEX IF NOT EXISTS idx_reactions_member ON reactions(member_id);
CREATE INDEX IF NOT EXISTS idx_read_status_member ON read_status(member_id);
`

func (d *DB) migrate(ctx context.Context) error {
	ddl := schema
	if d.driver == DriverSQLite {
		// Fixed-width UTC text keeps lexical order equal to time order.
		ddl = strings.ReplaceAll(ddl, "TIMESTAMPTZ", "TEXT")
	}
	_, err := d.ExecContext(ctx, ddl)
	return err
}

// --- Helpers ---

func NewID() string {
	return uuid.NewString()
}

// rebind rewrites ? placeholders to $n for postgres.
func (d *DB) rebind(query string) string {
	if d.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ts converts a timestamp into the driver's storage representation.
func (d *DB) ts(t time.Time) any {
	t = t.UTC()
	if d.driver == DriverSQLite {
		return t.Format(tsLayout)
	}
	return t
}

// timeScanner accepts both native timestamps (postgres) and text (sqlite).
type timeScanner struct {
	dst *time.Time
}

func scanTime(dst *time.Time) sql.Scanner {
	return timeScanner{dst: dst}
}

func (s timeScanner) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*s.dst = v.UTC()
	case string:
		return s.parse(v)
	case []byte:
		return s.parse(string(v))
	case nil:
		*s.dst = time.Time{}
	default:
		return fmt.Errorf("scan timestamp: unsupported type %T", src)
	}
	return nil
}

func (s timeScanner) parse(v string) error {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return fmt.Errorf("scan timestamp: %w", err)
	}
	*s.dst = t.UTC()
	return nil
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// translate maps driver errors onto ErrNotFound and ErrDuplicate.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case isUniqueViolation(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	case isForeignKeyViolation(err):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}

func (d *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", translate(err))
	}
	return nil
}

// Clock hands out strictly increasing UTC timestamps at microsecond
// precision, the finest both drivers store.
type Clock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

func NewClock(now func() time.Time) *Clock {
	return &Clock{now: now}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now().UTC().Truncate(time.Microsecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}
