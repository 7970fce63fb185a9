// Package store persists versions of the consensus ruleset document.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// ErrNotFound is returned when no ruleset matches.
var ErrNotFound = eris.New("store: not found")

// RulesetRecord is one stored ruleset document.
type RulesetRecord struct {
	ID        string    `json:"id"`
	Version   string    `json:"version"`
	Checksum  string    `json:"checksum"`
	Source    string    `json:"source"`
	Document  []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Store keeps ruleset versions. Documents are validated by the caller
// before they are saved.
type Store interface {
	// SaveRuleset stores rec, assigning ID, Checksum and CreatedAt. Saving a
	// document whose checksum is already stored returns the existing record.
	SaveRuleset(ctx context.Context, rec RulesetRecord) (*RulesetRecord, error)
	LatestRuleset(ctx context.Context) (*RulesetRecord, error)
	// GetRuleset looks a record up by ID or version label.
	GetRuleset(ctx context.Context, idOrVersion string) (*RulesetRecord, error)
	// ListRulesets returns summaries, newest first, without documents.
	ListRulesets(ctx context.Context, limit int) ([]RulesetRecord, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Checksum is the SHA-256 of the trimmed document.
func Checksum(doc []byte) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(string(doc))))
	return hex.EncodeToString(sum[:])
}

// Open returns a Store for driver "sqlite" or "postgres".
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch strings.ToLower(driver) {
	case "", "sqlite", "sqlite3":
		return NewSQLite(dsn)
	case "postgres", "postgresql", "pgx":
		return NewPostgres(ctx, dsn)
	}
	return nil, eris.Errorf("store: unknown driver %q", driver)
}

func prepare(rec RulesetRecord, id string, now time.Time) (RulesetRecord, error) {
	if len(strings.TrimSpace(string(rec.Document))) == 0 {
		return rec, eris.New("store: empty ruleset document")
	}
	rec.ID = id
	rec.Checksum = Checksum(rec.Document)
	rec.CreatedAt = now.UTC()
	return rec, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 50
	}
	return limit
}
