package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/elonfeng/realitycheck/pkg/source"
)

// Query is one stored source response.
type Query struct {
	Key       string
	Source    source.SourceType
	Records   []source.Record
	Hits      int
	FetchedAt time.Time
}

type queryRow struct {
	Key         string    `db:"cache_key"`
	Source      string    `db:"source"`
	RecordsJSON string    `db:"records"`
	Hits        int       `db:"hits"`
	FetchedAt   time.Time `db:"fetched_at"`
}

// Store is the persistence interface for cached source responses.
type Store interface {
	GetQuery(ctx context.Context, key string, since time.Time) (*Query, error)
	PutQuery(ctx context.Context, key string, st source.SourceType, records []source.Record) error
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
	CountBySource(ctx context.Context) (map[source.SourceType]int, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetQuery returns the response stored under key if it was fetched at or
// after since, or nil when there is none.
func (s *SQLiteStore) GetQuery(ctx context.Context, key string, since time.Time) (*Query, error) {
	var row queryRow
	err := s.db.GetContext(ctx, &row,
		"SELECT * FROM query_cache WHERE cache_key = ? AND fetched_at >= ?", key, since.UTC())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get query %s: %w", key, err)
	}

	q := &Query{
		Key:       row.Key,
		Source:    source.SourceType(row.Source),
		Hits:      row.Hits + 1,
		FetchedAt: row.FetchedAt,
	}
	if err := json.Unmarshal([]byte(row.RecordsJSON), &q.Records); err != nil {
		return nil, fmt.Errorf("decode query %s: %w", key, err)
	}

	if _, err := s.db.ExecContext(ctx, "UPDATE query_cache SET hits = hits + 1 WHERE cache_key = ?", key); err != nil {
		return nil, fmt.Errorf("count hit %s: %w", key, err)
	}
	return q, nil
}

func (s *SQLiteStore) PutQuery(ctx context.Context, key string, st source.SourceType, records []source.Record) error {
	if records == nil {
		records = []source.Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode query %s: %w", key, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO query_cache (cache_key, source, records, hits, fetched_at)
		VALUES (?, ?, ?, 0, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			records = excluded.records,
			hits = 0,
			fetched_at = excluded.fetched_at
	`, key, string(st), string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert query %s: %w", key, err)
	}
	return nil
}

// PurgeBefore deletes entries fetched before cutoff.
func (s *SQLiteStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM query_cache WHERE fetched_at < ?", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge queries: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) CountBySource(ctx context.Context) (map[source.SourceType]int, error) {
	rows, err := s.db.QueryxContext(ctx, "SELECT source, COUNT(*) as cnt FROM query_cache GROUP BY source")
	if err != nil {
		return nil, fmt.Errorf("count queries by source: %w", err)
	}
	defer rows.Close()

	counts := make(map[source.SourceType]int)
	for rows.Next() {
		var src string
		var cnt int
		if err := rows.Scan(&src, &cnt); err != nil {
			return nil, err
		}
		counts[source.SourceType(src)] = cnt
	}
	return counts, rows.Err()
}
