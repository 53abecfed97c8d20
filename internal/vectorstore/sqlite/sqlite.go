package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver

	"kbrag/internal/domain"
	"kbrag/internal/vectorstore"
)

const schema = `
CREATE TABLE IF NOT EXISTS passages (
    id INTEGER PRIMARY KEY,
    text TEXT NOT NULL,
    source TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS index_blob (
    slot INTEGER PRIMARY KEY CHECK (slot = 1),
    data BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS summaries (
    source TEXT PRIMARY KEY,
    summary TEXT NOT NULL
);
`

// Store keeps passages, the index blob and document summaries in one SQLite
// database. A publish is a single transaction.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Publish(ctx context.Context, idx *vectorstore.Index, passages []domain.Passage) error {
	if err := vectorstore.Validate(idx, passages); err != nil {
		return err
	}
	blob, err := idx.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM passages`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO passages(id, text, source) VALUES(?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, p := range passages {
		if _, err := stmt.ExecContext(ctx, p.ID, p.Text, p.Source); err != nil {
			return fmt.Errorf("insert passage %d: %w", p.ID, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO index_blob(slot, data) VALUES(1, ?)`, blob); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Load(ctx context.Context) (*vectorstore.Index, []domain.Passage, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var blob []byte
	err = tx.QueryRowContext(ctx, `SELECT data FROM index_blob WHERE slot = 1`).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, domain.ErrStoreNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read index: %w", err)
	}
	idx := &vectorstore.Index{}
	if err := idx.UnmarshalBinary(blob); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrStoreCorrupt, err)
	}

	rows, err := tx.QueryContext(ctx, `SELECT id, text, source FROM passages ORDER BY id`)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	var passages []domain.Passage
	for rows.Next() {
		var p domain.Passage
		if err := rows.Scan(&p.ID, &p.Text, &p.Source); err != nil {
			return nil, nil, err
		}
		passages = append(passages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	if err := vectorstore.Validate(idx, passages); err != nil {
		return nil, nil, err
	}
	return idx, passages, nil
}

// SummaryCache exposes the summaries table as a summary cache.
func (s *Store) SummaryCache() *SummaryCache { return &SummaryCache{db: s.db} }

// SummaryCache stores one summary per source key. Every Put is committed immediately.
type SummaryCache struct {
	db *sql.DB
}

func (c *SummaryCache) Get(ctx context.Context, key string) (string, bool, error) {
	var summary string
	err := c.db.QueryRowContext(ctx, `SELECT summary FROM summaries WHERE source = ?`, key).Scan(&summary)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return summary, true, nil
}

func (c *SummaryCache) Put(ctx context.Context, key, summary string) error {
	_, err := c.db.ExecContext(ctx, `INSERT OR REPLACE INTO summaries(source, summary) VALUES(?, ?)`, key, summary)
	return err
}

var _ vectorstore.Storage = (*Store)(nil)
