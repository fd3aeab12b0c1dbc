// Package sqlite implements the storage interfaces on an embedded SQLite
// database. Two handles are opened over the same file: a single-connection
// write handle owned by the storage worker, and a single-connection read
// handle serving the UI-facing fast-path queries. WAL journal mode lets the
// reader proceed without blocking on writer commits.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver.

	"github.com/pulsemeter-lab/pulsemeter/internal/core/event"
	"github.com/pulsemeter-lab/pulsemeter/internal/core/rollup"
	"github.com/pulsemeter-lab/pulsemeter/internal/core/storage"
	"github.com/pulsemeter-lab/pulsemeter/internal/migrations"
)

const defaultBusyTimeout = 5 * time.Second

// Store implements storage.EventStore, storage.AggregateStore and
// storage.TimerStore over SQLite.
type Store struct {
	rdb *sql.DB // read-mostly handle, UI-facing queries
	wdb *sql.DB // write handle, worker-owned

	stmtCountsGrouped *sql.Stmt
	stmtCountsSummed  *sql.Stmt
	stmtTotalCounts   *sql.Stmt
}

var _ storage.EventStore = (*Store)(nil)
var _ storage.AggregateStore = (*Store)(nil)
var _ storage.TimerStore = (*Store)(nil)

// Open opens (or creates) the database at path, applies migrations on the
// write handle and prepares the read fast-path statements.
func Open(path string, busyTimeout time.Duration) (*Store, error) {
	if busyTimeout <= 0 {
		busyTimeout = defaultBusyTimeout
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	wdb, err := openHandle(path, busyTimeout)
	if err != nil {
		return nil, fmt.Errorf("open write handle: %w", err)
	}

	if err := migrations.Run(wdb); err != nil {
		wdb.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	rdb, err := openHandle(path, busyTimeout)
	if err != nil {
		wdb.Close()
		return nil, fmt.Errorf("open read handle: %w", err)
	}

	s, err := New(rdb, wdb)
	if err != nil {
		rdb.Close()
		wdb.Close()
		return nil, err
	}

	slog.Info("[SQLite] Store opened", "path", path, "busy_timeout", busyTimeout)
	return s, nil
}

// New builds a Store over already-opened handles. Exposed so tests can
// inject sqlmock or in-memory databases.
func New(rdb, wdb *sql.DB) (*Store, error) {
	s := &Store{rdb: rdb, wdb: wdb}

	var err error
	if s.stmtCountsGrouped, err = rdb.Prepare(queryCountsSinceGrouped); err != nil {
		return nil, fmt.Errorf("prepare grouped counts: %w", err)
	}
	if s.stmtCountsSummed, err = rdb.Prepare(queryCountsSinceSummed); err != nil {
		return nil, fmt.Errorf("prepare summed counts: %w", err)
	}
	if s.stmtTotalCounts, err = rdb.Prepare(queryTotalCounts); err != nil {
		return nil, fmt.Errorf("prepare total counts: %w", err)
	}

	return s, nil
}

// openHandle opens one single-connection handle with the pragmas applied via
// DSN so they survive connection recycling.
func openHandle(path string, busyTimeout time.Duration) (*sql.DB, error) {
	dsn := "file:" + path + "?" + url.Values{
		"_pragma": []string{
			"journal_mode(WAL)",
			"synchronous(NORMAL)",
			fmt.Sprintf("busy_timeout(%d)", busyTimeout.Milliseconds()),
		},
	}.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// One connection per role: the writer is single-writer by
	// construction, the reader mirrors the original main-thread handle.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, nil
}

// InsertEvents persists the batch in one transaction on the write handle.
func (s *Store) InsertEvents(ctx context.Context, batch []event.Pending) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := s.wdb.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert events: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, queryInsertEvent)
	if err != nil {
		return fmt.Errorf("insert events: prepare: %w", err)
	}
	defer stmt.Close()

	for _, ev := range batch {
		if _, err := stmt.ExecContext(ctx, string(ev.Type), ev.Timestamp, ev.Details); err != nil {
			return fmt.Errorf("insert events: exec: %w", err)
		}
	}

	return tx.Commit()
}

// CountsSinceGrouped serves the recent-window fast path.
func (s *Store) CountsSinceGrouped(ctx context.Context, ts int64) (event.Counts, error) {
	rows, err := s.stmtCountsGrouped.QueryContext(ctx, ts)
	if err != nil {
		return event.Counts{}, fmt.Errorf("grouped counts: %w", err)
	}
	defer rows.Close()

	var counts event.Counts
	for rows.Next() {
		var typ string
		var n int64
		if err := rows.Scan(&typ, &n); err != nil {
			return event.Counts{}, fmt.Errorf("grouped counts: scan: %w", err)
		}
		switch event.Type(typ) {
		case event.Keyboard:
			counts.Keyboard = n
		case event.Mouse:
			counts.Mouse = n
		}
	}
	if err := rows.Err(); err != nil {
		return event.Counts{}, fmt.Errorf("grouped counts: %w", err)
	}
	return counts, nil
}

// CountsSinceSummed serves the historical-window path.
func (s *Store) CountsSinceSummed(ctx context.Context, ts int64) (event.Counts, error) {
	var counts event.Counts
	if err := s.stmtCountsSummed.QueryRowContext(ctx, ts).Scan(&counts.Keyboard, &counts.Mouse); err != nil {
		return event.Counts{}, fmt.Errorf("summed counts: %w", err)
	}
	return counts, nil
}

// TotalCounts counts all stored events.
func (s *Store) TotalCounts(ctx context.Context) (event.Counts, error) {
	var counts event.Counts
	if err := s.stmtTotalCounts.QueryRowContext(ctx).Scan(&counts.Keyboard, &counts.Mouse); err != nil {
		return event.Counts{}, fmt.Errorf("total counts: %w", err)
	}
	return counts, nil
}

// EventsSince streams raw events for the aggregation engine. It runs on the
// write handle: the engine executes inside the storage worker, and keeping
// it there avoids contending with the UI read path.
func (s *Store) EventsSince(ctx context.Context, ts int64) ([]event.RawEvent, error) {
	rows, err := s.wdb.QueryContext(ctx, queryEventsSince, ts)
	if err != nil {
		return nil, fmt.Errorf("events since: %w", err)
	}
	defer rows.Close()

	var events []event.RawEvent
	for rows.Next() {
		var ev event.RawEvent
		var typ string
		if err := rows.Scan(&ev.ID, &ev.Timestamp, &typ, &ev.Details); err != nil {
			return nil, fmt.Errorf("events since: scan: %w", err)
		}
		ev.Type = event.Type(typ)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("events since: %w", err)
	}
	return events, nil
}

// PruneEvents deletes raw events older than olderThan.
func (s *Store) PruneEvents(ctx context.Context, olderThan int64) (int64, error) {
	res, err := s.wdb.ExecContext(ctx, queryPruneEvents, olderThan)
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	return res.RowsAffected()
}

// Vacuum reclaims file space. Run after a prune, outside any transaction.
func (s *Store) Vacuum(ctx context.Context) error {
	if _, err := s.wdb.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	return nil
}

// ReplaceBuckets deletes every bucket of g at or after horizonKey and
// upserts the recomputed rows, all in one transaction. An error aborts the
// whole granularity: no partial commit.
func (s *Store) ReplaceBuckets(ctx context.Context, g rollup.Granularity, horizonKey string, buckets []rollup.Bucket) error {
	tx, err := s.wdb.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace buckets: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, queryDeleteBucketsInHorizon, g.Prefix(), horizonKey); err != nil {
		return fmt.Errorf("replace buckets: delete horizon: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, queryUpsertBucket)
	if err != nil {
		return fmt.Errorf("replace buckets: prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, b := range buckets {
		if _, err := stmt.ExecContext(ctx, b.Period, b.Keyboard, b.Mouse, b.Score); err != nil {
			return fmt.Errorf("replace buckets: upsert %s: %w", b.Period, err)
		}
	}

	return tx.Commit()
}

// QueryBuckets returns up to limit buckets of g, newest first.
func (s *Store) QueryBuckets(ctx context.Context, g rollup.Granularity, limit int) ([]rollup.Bucket, error) {
	return s.scanBuckets(ctx, queryBucketsNewestFirst, g.Prefix(), limit)
}

// BucketsForDate returns up to limit buckets of g on the given local
// calendar date, oldest first.
func (s *Store) BucketsForDate(ctx context.Context, g rollup.Granularity, date time.Time, limit int) ([]rollup.Bucket, error) {
	return s.scanBuckets(ctx, queryBucketsOldestFirst, g.DatePrefix(date), limit)
}

func (s *Store) scanBuckets(ctx context.Context, query, prefix string, limit int) ([]rollup.Bucket, error) {
	rows, err := s.rdb.QueryContext(ctx, query, prefix, limit)
	if err != nil {
		return nil, fmt.Errorf("query buckets: %w", err)
	}
	defer rows.Close()

	buckets := []rollup.Bucket{}
	for rows.Next() {
		var b rollup.Bucket
		if err := rows.Scan(&b.Period, &b.Keyboard, &b.Mouse, &b.Score); err != nil {
			return nil, fmt.Errorf("query buckets: scan: %w", err)
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query buckets: %w", err)
	}
	return buckets, nil
}

// AddTimer stores a countdown duration and returns its row ID.
func (s *Store) AddTimer(ctx context.Context, minutes int) (int64, error) {
	res, err := s.wdb.ExecContext(ctx, queryAddTimer, minutes, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("add timer: %w", err)
	}
	return res.LastInsertId()
}

// ListTimers returns all timers, newest first.
func (s *Store) ListTimers(ctx context.Context) ([]storage.Timer, error) {
	rows, err := s.rdb.QueryContext(ctx, queryListTimers)
	if err != nil {
		return nil, fmt.Errorf("list timers: %w", err)
	}
	defer rows.Close()

	timers := []storage.Timer{}
	for rows.Next() {
		var t storage.Timer
		if err := rows.Scan(&t.ID, &t.Minutes, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("list timers: scan: %w", err)
		}
		timers = append(timers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list timers: %w", err)
	}
	return timers, nil
}

// DeleteTimer removes a timer by ID.
func (s *Store) DeleteTimer(ctx context.Context, id int64) error {
	res, err := s.wdb.ExecContext(ctx, queryDeleteTimer, id)
	if err != nil {
		return fmt.Errorf("delete timer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("delete timer %d: %w", id, storage.ErrNotFound)
	}
	return nil
}

// Close releases prepared statements and both handles.
func (s *Store) Close() error {
	var firstErr error

	for _, stmt := range []*sql.Stmt{s.stmtCountsGrouped, s.stmtCountsSummed, s.stmtTotalCounts} {
		if stmt == nil {
			continue
		}
		if err := stmt.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close statement: %w", err)
		}
	}

	if err := s.rdb.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close read handle: %w", err)
	}
	if err := s.wdb.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close write handle: %w", err)
	}

	if firstErr != nil {
		return firstErr
	}
	slog.Info("[SQLite] Store closed")
	return nil
}
