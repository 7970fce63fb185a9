package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLite opens a SQLite database at dsn in WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS rulesets (
	id         TEXT PRIMARY KEY,
	version    TEXT NOT NULL,
	checksum   TEXT NOT NULL UNIQUE,
	source     TEXT NOT NULL DEFAULT '',
	document   BLOB NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rulesets_version ON rulesets(version);
CREATE INDEX IF NOT EXISTS idx_rulesets_created_at ON rulesets(created_at);
`

// Migrate creates the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteColumns = `id, version, checksum, source, document, created_at`

func (s *SQLiteStore) SaveRuleset(ctx context.Context, rec RulesetRecord) (*RulesetRecord, error) {
	rec, err := prepare(rec, uuid.New().String(), time.Now())
	if err != nil {
		return nil, err
	}

	existing, err := s.one(ctx, `SELECT `+sqliteColumns+` FROM rulesets WHERE checksum = ?`, rec.Checksum)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO rulesets (`+sqliteColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Version, rec.Checksum, rec.Source, rec.Document, rec.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert ruleset")
	}
	return &rec, nil
}

func (s *SQLiteStore) LatestRuleset(ctx context.Context) (*RulesetRecord, error) {
	return s.one(ctx, `SELECT `+sqliteColumns+` FROM rulesets ORDER BY created_at DESC, rowid DESC LIMIT 1`)
}

func (s *SQLiteStore) GetRuleset(ctx context.Context, idOrVersion string) (*RulesetRecord, error) {
	return s.one(ctx,
		`SELECT `+sqliteColumns+` FROM rulesets WHERE id = ? OR version = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		idOrVersion, idOrVersion,
	)
}

func (s *SQLiteStore) ListRulesets(ctx context.Context, limit int) ([]RulesetRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, version, checksum, source, created_at FROM rulesets ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		clampLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list rulesets")
	}
	defer rows.Close() //nolint:errcheck

	var out []RulesetRecord
	for rows.Next() {
		var r RulesetRecord
		if err := rows.Scan(&r.ID, &r.Version, &r.Checksum, &r.Source, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan ruleset")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate rulesets")
}

func (s *SQLiteStore) one(ctx context.Context, query string, args ...any) (*RulesetRecord, error) {
	var r RulesetRecord
	err := s.db.QueryRowContext(ctx, query, args...).
		Scan(&r.ID, &r.Version, &r.Checksum, &r.Source, &r.Document, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get ruleset")
	}
	return &r, nil
}
