// Package corpus stores perceptual hashes of known-generated reference images
// in a local SQLite database and answers nearest-similarity queries against it.
package corpus

import (
	"context"
	"database/sql"
	"math/bits"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// hashBits is the width of a dHash value.
const hashBits = 64

// Entry is one reference image in the corpus.
type Entry struct {
	Hash    uint64
	Source  string // where the reference came from (tool name, dataset, path)
	Label   string // optional free-form note
	AddedAt time.Time
}

// Store is a SQLite-backed reference corpus.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the corpus database at path and configures WAL mode.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "corpus: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "corpus: exec %s", pragma)
		}
	}
	return &Store{db: db}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS reference_hashes (
	hash     INTEGER NOT NULL,
	source   TEXT NOT NULL DEFAULT '',
	label    TEXT NOT NULL DEFAULT '',
	added_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (hash, source)
);
`

// Migrate creates the schema if needed.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "corpus: migrate")
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add inserts a reference hash. Re-adding the same (hash, source) pair is a no-op.
func (s *Store) Add(ctx context.Context, hash uint64, source, label string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reference_hashes (hash, source, label, added_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (hash, source) DO NOTHING`,
		int64(hash), source, label, time.Now().UTC(),
	)
	return eris.Wrap(err, "corpus: insert hash")
}

// Count returns the number of reference hashes.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reference_hashes`).Scan(&n)
	return n, eris.Wrap(err, "corpus: count")
}

// Nearest scans the corpus for the reference hash closest to h in Hamming
// distance and returns the similarity (1 - distance/64) of the best match.
// An empty corpus yields similarity 0.
func (s *Store) Nearest(ctx context.Context, h uint64) (float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT hash FROM reference_hashes`)
	if err != nil {
		return 0, eris.Wrap(err, "corpus: query hashes")
	}
	defer rows.Close()

	best := hashBits + 1
	for rows.Next() {
		var stored int64
		if err := rows.Scan(&stored); err != nil {
			return 0, eris.Wrap(err, "corpus: scan hash")
		}
		if dist := bits.OnesCount64(h ^ uint64(stored)); dist < best {
			best = dist
			if best == 0 {
				break
			}
		}
	}
	if err := rows.Err(); err != nil {
		return 0, eris.Wrap(err, "corpus: iterate hashes")
	}

	if best > hashBits {
		return 0, nil // empty corpus
	}
	return 1 - float64(best)/hashBits, nil
}
