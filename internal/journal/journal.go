// Package journal mirrors the store's activity log into SQLite so it can be
// filtered and paged. Entries are only ever inserted.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"workplace/internal/db"
	"workplace/internal/domain"
	"workplace/internal/migrate"
	"workplace/internal/store"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

var ErrInvalidCursor = errors.New("invalid cursor")

type Journal struct {
	DB  *sql.DB
	log *zap.Logger

	mu      sync.Mutex
	version uint64
	synced  bool
	head    string
}

// Open connects to dsn and applies the schema.
func Open(dsn string, log *zap.Logger) (*Journal, error) {
	conn, err := db.Open(dsn)
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Journal{DB: conn, log: log}, nil
}

func (j *Journal) Close() error { return j.DB.Close() }

// Attach records the store's current activity and keeps recording entries
// as they are logged. The returned func stops recording.
func (j *Journal) Attach(s *store.Store) (detach func(), err error) {
	unsubscribe := s.Subscribe(func(snap store.Snapshot, _ store.Slice) {
		if err := j.sync(context.Background(), snap); err != nil {
			j.log.Error("journal sync failed", zap.Uint64("version", snap.Version), zap.Error(err))
		}
	}, store.SliceActivity)
	if err := j.sync(context.Background(), s.Snapshot()); err != nil {
		unsubscribe()
		return nil, err
	}
	return unsubscribe, nil
}

// sync records the entries of snap newer than the last recorded head.
// Snapshots older than the last one synced are ignored; their entries are
// contained in the newer snapshot.
func (j *Journal) sync(ctx context.Context, snap store.Snapshot) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.synced && snap.Version <= j.version {
		return nil
	}
	fresh := snap.Activity
	if j.synced {
		for i, e := range snap.Activity {
			if e.ID == j.head {
				fresh = snap.Activity[:i]
				break
			}
		}
	}
	if err := j.Record(ctx, fresh); err != nil {
		return err
	}
	j.synced, j.version = true, snap.Version
	if len(snap.Activity) > 0 {
		j.head = snap.Activity[0].ID
	}
	return nil
}

// Record inserts entries given most-recent-first. Entries whose id is already
// recorded are skipped.
func (j *Journal) Record(ctx context.Context, entries []domain.ActivityEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := j.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO activity(id,ts,actor,message,channel,task_id) VALUES (?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	inserted := 0
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		res, err := stmt.ExecContext(ctx, e.ID, e.Timestamp.UTC().UnixNano(), e.Actor, e.Message, string(e.Channel), e.TaskID)
		if err != nil {
			return fmt.Errorf("insert activity %s: %w", e.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	j.log.Debug("journal recorded", zap.Int("entries", inserted))
	return nil
}

type Filter struct {
	Channel domain.Channel
	TaskID  string
	Actor   string
	Limit   int
	Cursor  string
}

type Page struct {
	Entries    []domain.ActivityEntry `json:"entries"`
	NextCursor string                 `json:"next_cursor,omitempty"`
}

// Query returns recorded entries most recent first.
func (j *Journal) Query(ctx context.Context, f Filter) (Page, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	var clauses []string
	var args []any
	if f.Channel != "" {
		clauses = append(clauses, "channel=?")
		args = append(args, string(f.Channel))
	}
	if f.TaskID != "" {
		clauses = append(clauses, "task_id=?")
		args = append(args, f.TaskID)
	}
	if f.Actor != "" {
		clauses = append(clauses, "actor=?")
		args = append(args, f.Actor)
	}
	if f.Cursor != "" {
		ts, seq, err := ParseCursor(f.Cursor)
		if err != nil {
			return Page{}, err
		}
		clauses = append(clauses, "(ts < ? OR (ts = ? AND seq < ?))")
		args = append(args, ts, ts, seq)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT seq,id,ts,actor,message,channel,task_id FROM activity ` + where + ` ORDER BY ts DESC, seq DESC LIMIT ?`
	args = append(args, limit+1)

	rows, err := j.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return Page{}, err
	}
	defer rows.Close()
	type row struct {
		seq int64
		ts  int64
	}
	var (
		entries []domain.ActivityEntry
		keys    []row
	)
	for rows.Next() {
		var (
			e       domain.ActivityEntry
			k       row
			channel string
		)
		if err := rows.Scan(&k.seq, &e.ID, &k.ts, &e.Actor, &e.Message, &channel, &e.TaskID); err != nil {
			return Page{}, err
		}
		e.Timestamp = time.Unix(0, k.ts).UTC()
		e.Channel = domain.Channel(channel)
		entries = append(entries, e)
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return Page{}, err
	}
	page := Page{Entries: entries}
	if len(entries) > limit {
		page.Entries = entries[:limit]
		last := keys[limit-1]
		page.NextCursor = composeCursor(last.ts, last.seq)
	}
	if page.Entries == nil {
		page.Entries = []domain.ActivityEntry{}
	}
	return page, nil
}

// Count returns the number of recorded entries.
func (j *Journal) Count(ctx context.Context) (int, error) {
	var n int
	err := j.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM activity`).Scan(&n)
	return n, err
}

func composeCursor(ts, seq int64) string {
	return strconv.FormatInt(ts, 10) + "|" + strconv.FormatInt(seq, 10)
}

// ParseCursor splits a "ts|seq" cursor.
func ParseCursor(cursor string) (int64, int64, error) {
	parts := strings.SplitN(cursor, "|", 2)
	if len(parts) != 2 {
		return 0, 0, ErrInvalidCursor
	}
	ts, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, ErrInvalidCursor
	}
	seq, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || seq <= 0 {
		return 0, 0, ErrInvalidCursor
	}
	return ts, seq, nil
}
