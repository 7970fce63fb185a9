package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/vetref/electrolyte-cli/internal/db"
)

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

var _ Store = (*PostgresStore)(nil)

// NewPostgres connects to connString.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, db.PoolConfig{})
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS rulesets (
	id         TEXT PRIMARY KEY,
	version    TEXT NOT NULL,
	checksum   TEXT NOT NULL UNIQUE,
	source     TEXT NOT NULL DEFAULT '',
	document   BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_rulesets_version ON rulesets(version);
CREATE INDEX IF NOT EXISTS idx_rulesets_created_at ON rulesets(created_at DESC);
`

// Migrate creates the schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const postgresColumns = `id, version, checksum, source, document, created_at`

func (s *PostgresStore) SaveRuleset(ctx context.Context, rec RulesetRecord) (*RulesetRecord, error) {
	rec, err := prepare(rec, uuid.New().String(), time.Now())
	if err != nil {
		return nil, err
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO rulesets (`+postgresColumns+`) VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (checksum) DO NOTHING`,
		rec.ID, rec.Version, rec.Checksum, rec.Source, rec.Document, rec.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert ruleset")
	}
	if tag.RowsAffected() == 0 {
		return s.one(ctx, `SELECT `+postgresColumns+` FROM rulesets WHERE checksum = $1`, rec.Checksum)
	}
	return &rec, nil
}

func (s *PostgresStore) LatestRuleset(ctx context.Context) (*RulesetRecord, error) {
	return s.one(ctx, `SELECT `+postgresColumns+` FROM rulesets ORDER BY created_at DESC LIMIT 1`)
}

func (s *PostgresStore) GetRuleset(ctx context.Context, idOrVersion string) (*RulesetRecord, error) {
	return s.one(ctx,
		`SELECT `+postgresColumns+` FROM rulesets WHERE id = $1 OR version = $1 ORDER BY created_at DESC LIMIT 1`,
		idOrVersion,
	)
}

func (s *PostgresStore) ListRulesets(ctx context.Context, limit int) ([]RulesetRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, version, checksum, source, created_at FROM rulesets ORDER BY created_at DESC LIMIT $1`,
		clampLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list rulesets")
	}
	defer rows.Close()

	var out []RulesetRecord
	for rows.Next() {
		var r RulesetRecord
		if err := rows.Scan(&r.ID, &r.Version, &r.Checksum, &r.Source, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan ruleset")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate rulesets")
}

func (s *PostgresStore) one(ctx context.Context, query string, args ...any) (*RulesetRecord, error) {
	var r RulesetRecord
	err := s.pool.QueryRow(ctx, query, args...).
		Scan(&r.ID, &r.Version, &r.Checksum, &r.Source, &r.Document, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get ruleset")
	}
	return &r, nil
}
