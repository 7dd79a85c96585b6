// Package sqlite implements the store.Driver interface on a single SQLite
// file using modernc.org/sqlite (pure Go, no cgo).
//
// Layout: a memories table plus an external-content FTS5 table kept in sync
// by insert/update/delete triggers, so a row and its index entries always
// share one statement's transaction. WAL mode plus a busy timeout give
// cross-process safety; the ingest path opens with a short timeout so lock
// contention surfaces quickly as store.ErrLocked instead of stalling the
// capture hook.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	sqlite "modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"

	"github.com/loamhq/loam/pkg/memory"
	"github.com/loamhq/loam/pkg/store"
)

// DefaultBusyTimeout is the lock-wait bound for interactive callers. The
// ingest path overrides it with something much shorter.
const DefaultBusyTimeout = 5 * time.Second

// Driver implements store.Driver backed by a SQLite file.
type Driver struct {
	db   *sql.DB
	path string
}

type options struct {
	busyTimeout time.Duration
}

// Option configures a Driver created with New.
type Option func(*options)

// WithBusyTimeout bounds how long a write waits on a held lock before the
// driver reports store.ErrLocked.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) {
		o.busyTimeout = d
	}
}

// New opens (creating if necessary) the store file at path. Use ":memory:"
// for an ephemeral store.
func New(path string, opts ...Option) (*Driver, error) {
	o := &options{busyTimeout: DefaultBusyTimeout}
	for _, opt := range opts {
		opt(o)
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	dsn := fmt.Sprintf(
		"%s?_pragma=journal_mode(wal)&_pragma=busy_timeout(%d)&_pragma=foreign_keys(on)&_pragma=synchronous(normal)",
		path, o.busyTimeout.Milliseconds(),
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	// A single connection serializes writes in-process; WAL still lets other
	// processes read concurrently.
	db.SetMaxOpenConns(1)

	d := &Driver{db: db, path: path}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating store: %w", err)
	}

	return d, nil
}

func (d *Driver) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		kind        TEXT NOT NULL,
		text        TEXT NOT NULL,
		scope       TEXT NOT NULL,
		importance  INTEGER NOT NULL DEFAULT 3,
		source_turn TEXT NOT NULL DEFAULT '',
		merge_count INTEGER NOT NULL DEFAULT 0,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_memories_scope_kind ON memories(scope, kind, updated_at DESC);
	CREATE INDEX IF NOT EXISTS idx_memories_updated ON memories(updated_at DESC);

	CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
		text,
		content='memories',
		content_rowid='id'
	);

	CREATE TRIGGER IF NOT EXISTS memories_ai AFTER INSERT ON memories BEGIN
		INSERT INTO memories_fts(rowid, text) VALUES (new.id, new.text);
	END;

	CREATE TRIGGER IF NOT EXISTS memories_ad AFTER DELETE ON memories BEGIN
		INSERT INTO memories_fts(memories_fts, rowid, text) VALUES ('delete', old.id, old.text);
	END;

	CREATE TRIGGER IF NOT EXISTS memories_au AFTER UPDATE ON memories BEGIN
		INSERT INTO memories_fts(memories_fts, rowid, text) VALUES ('delete', old.id, old.text);
		INSERT INTO memories_fts(rowid, text) VALUES (new.id, new.text);
	END;
	`

	_, err := d.db.Exec(schema)
	return err
}

// Insert stores a new memory. Triggers index the text in the same implicit
// transaction, so the row and its FTS entry commit together.
func (d *Driver) Insert(ctx context.Context, m *memory.Memory) (int64, error) {
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = now
	}

	if m.ID != 0 {
		_, err := d.db.ExecContext(ctx,
			`INSERT INTO memories (id, kind, text, scope, importance, source_turn, merge_count, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.Kind, m.Text, m.Scope, m.Importance, m.SourceTurn, m.MergeCount,
			formatTime(m.CreatedAt), formatTime(m.UpdatedAt),
		)
		if err != nil {
			if isConstraint(err) {
				return 0, store.ErrConflict{ID: m.ID}
			}
			return 0, mapErr("inserting memory", err)
		}
		return m.ID, nil
	}

	res, err := d.db.ExecContext(ctx,
		`INSERT INTO memories (kind, text, scope, importance, source_turn, merge_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.Kind, m.Text, m.Scope, m.Importance, m.SourceTurn, m.MergeCount,
		formatTime(m.CreatedAt), formatTime(m.UpdatedAt),
	)
	if err != nil {
		return 0, mapErr("inserting memory", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading inserted id: %w", err)
	}
	m.ID = id

	return id, nil
}

// Get retrieves a memory by ID.
func (d *Driver) Get(ctx context.Context, id int64) (*memory.Memory, error) {
	row := d.db.QueryRowContext(ctx, selectColumns+` FROM memories m WHERE m.id = ?`, id)

	m, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound{ID: id}
	}
	if err != nil {
		return nil, mapErr("getting memory", err)
	}

	return m, nil
}

// Update applies a partial field patch and refreshes the update timestamp.
func (d *Driver) Update(ctx context.Context, id int64, patch memory.Patch) error {
	sets := []string{"updated_at = ?"}
	args := []any{formatTime(time.Now().UTC())}

	if patch.Kind != nil {
		sets = append(sets, "kind = ?")
		args = append(args, *patch.Kind)
	}
	if patch.Text != nil {
		sets = append(sets, "text = ?")
		args = append(args, *patch.Text)
	}
	if patch.Importance != nil {
		sets = append(sets, "importance = ?")
		args = append(args, memory.ClampImportance(*patch.Importance))
	}
	args = append(args, id)

	res, err := d.db.ExecContext(ctx,
		"UPDATE memories SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return mapErr("updating memory", err)
	}

	return requireRow(res, id)
}

// Absorb folds a duplicate into an existing memory inside one transaction:
// merge count +1, importance keeps the max, text widens unless the new text
// is already contained, and the update timestamp refreshes.
func (d *Driver) Absorb(ctx context.Context, id int64, text string, importance int) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr("beginning absorb", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var existing string
	var imp int
	err = tx.QueryRowContext(ctx, `SELECT text, importance FROM memories WHERE id = ?`, id).
		Scan(&existing, &imp)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound{ID: id}
	}
	if err != nil {
		return mapErr("reading memory for absorb", err)
	}

	merged := store.WidenText(existing, text)
	if importance > imp {
		imp = importance
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE memories SET text = ?, importance = ?, merge_count = merge_count + 1, updated_at = ? WHERE id = ?`,
		merged, memory.ClampImportance(imp), formatTime(time.Now().UTC()), id,
	)
	if err != nil {
		return mapErr("absorbing memory", err)
	}

	if err := tx.Commit(); err != nil {
		return mapErr("committing absorb", err)
	}

	return nil
}

// Forget removes a memory; its index entries go with it via the delete
// trigger. An absent ID reports ErrNotFound so double-forgets are visible.
func (d *Driver) Forget(ctx context.Context, id int64) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return mapErr("forgetting memory", err)
	}

	return requireRow(res, id)
}

// Search runs a bm25-ranked full-text query. An empty or "*" query degrades
// to the Recall ordering.
func (d *Driver) Search(ctx context.Context, query, scope string, f memory.Filters, limit int) ([]*memory.Memory, error) {
	match := ftsQuery(query)
	if match == "" {
		return d.Recall(ctx, scope, f, limit)
	}

	where, args := filterClauses(scope, f)
	where = append([]string{"memories_fts MATCH ?"}, where...)
	args = append([]any{match}, args...)
	args = append(args, limit)

	rows, err := d.db.QueryContext(ctx,
		selectColumns+`, bm25(memories_fts) AS rank
		 FROM memories m JOIN memories_fts ON memories_fts.rowid = m.id
		 WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY rank ASC, m.updated_at DESC, m.id DESC
		 LIMIT ?`, args...)
	if err != nil {
		return nil, mapErr("searching memories", err)
	}
	defer rows.Close()

	return scanMemories(rows, true)
}

// Recall returns a scope's most relevant memories without a text query:
// importance first, recency second.
func (d *Driver) Recall(ctx context.Context, scope string, f memory.Filters, limit int) ([]*memory.Memory, error) {
	where, args := filterClauses(scope, f)
	clause := "1=1"
	if len(where) > 0 {
		clause = strings.Join(where, " AND ")
	}
	args = append(args, limit)

	rows, err := d.db.QueryContext(ctx,
		selectColumns+` FROM memories m
		 WHERE `+clause+`
		 ORDER BY m.importance DESC, m.updated_at DESC, m.id DESC
		 LIMIT ?`, args...)
	if err != nil {
		return nil, mapErr("recalling memories", err)
	}
	defer rows.Close()

	return scanMemories(rows, false)
}

// RecentByKind returns the dedup/merge comparison window: the most recently
// updated memories of one kind in one scope.
func (d *Driver) RecentByKind(ctx context.Context, scope string, kind memory.Kind, limit int) ([]*memory.Memory, error) {
	rows, err := d.db.QueryContext(ctx,
		selectColumns+` FROM memories m
		 WHERE m.scope = ? AND m.kind = ?
		 ORDER BY m.updated_at DESC, m.id DESC
		 LIMIT ?`, scope, kind, limit)
	if err != nil {
		return nil, mapErr("listing recent memories", err)
	}
	defer rows.Close()

	return scanMemories(rows, false)
}

// Stats reports counts by kind plus the store file size. An empty scope
// covers the whole store.
func (d *Driver) Stats(ctx context.Context, scope string) (*memory.Stats, error) {
	stats := &memory.Stats{
		Scope:  scope,
		ByKind: make(map[memory.Kind]int64),
	}

	query := `SELECT kind, COUNT(*) FROM memories GROUP BY kind`
	args := []any{}
	if scope != "" {
		query = `SELECT kind, COUNT(*) FROM memories WHERE scope = ? GROUP BY kind`
		args = append(args, scope)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr("counting memories", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind memory.Kind
		var count int64
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("scanning stats row: %w", err)
		}
		stats.ByKind[kind] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stats rows: %w", err)
	}

	var pageCount, pageSize int64
	if err := d.db.QueryRowContext(ctx, `PRAGMA page_count`).Scan(&pageCount); err == nil {
		if err := d.db.QueryRowContext(ctx, `PRAGMA page_size`).Scan(&pageSize); err == nil {
			stats.SizeBytes = pageCount * pageSize
		}
	}

	return stats, nil
}

// Quick runs an integrity check, used by doctor.
func (d *Driver) Quick(ctx context.Context) error {
	var result string
	if err := d.db.QueryRowContext(ctx, `PRAGMA quick_check`).Scan(&result); err != nil {
		return mapErr("integrity check", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check: %s", result)
	}

	var indexed int64
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories_fts`).Scan(&indexed); err != nil {
		return mapErr("counting index entries", err)
	}
	var rowsCount int64
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&rowsCount); err != nil {
		return mapErr("counting memories", err)
	}
	if indexed != rowsCount {
		return fmt.Errorf("index out of sync: %d rows, %d index entries", rowsCount, indexed)
	}

	return nil
}

// Close closes the underlying database.
func (d *Driver) Close() error {
	return d.db.Close()
}

const selectColumns = `SELECT m.id, m.kind, m.text, m.scope, m.importance, m.source_turn, m.merge_count, m.created_at, m.updated_at`

type scannable interface {
	Scan(dest ...any) error
}

func scanMemory(row scannable, extra ...any) (*memory.Memory, error) {
	var m memory.Memory
	var created, updated string

	dest := []any{&m.ID, &m.Kind, &m.Text, &m.Scope, &m.Importance, &m.SourceTurn, &m.MergeCount, &created, &updated}
	dest = append(dest, extra...)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	m.CreatedAt = parseTime(created)
	m.UpdatedAt = parseTime(updated)

	return &m, nil
}

func scanMemories(rows *sql.Rows, ranked bool) ([]*memory.Memory, error) {
	var out []*memory.Memory
	for rows.Next() {
		var extra []any
		if ranked {
			var rank float64
			extra = append(extra, &rank)
		}
		m, err := scanMemory(rows, extra...)
		if err != nil {
			return nil, fmt.Errorf("scanning memory row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating memory rows: %w", err)
	}

	return out, nil
}

// filterClauses builds the shared WHERE fragments for scope and filters.
func filterClauses(scope string, f memory.Filters) ([]string, []any) {
	var where []string
	var args []any

	if scope != "" {
		where = append(where, "m.scope = ?")
		args = append(args, scope)
	}
	if f.Kind != "" {
		where = append(where, "m.kind = ?")
		args = append(args, f.Kind)
	}
	if f.MinImportance > 0 {
		where = append(where, "m.importance >= ?")
		args = append(args, f.MinImportance)
	}
	if !f.Since.IsZero() {
		where = append(where, "m.updated_at >= ?")
		args = append(args, formatTime(f.Since))
	}
	if !f.Until.IsZero() {
		where = append(where, "m.updated_at <= ?")
		args = append(args, formatTime(f.Until))
	}

	return where, args
}

var ftsToken = regexp.MustCompile(`[A-Za-z0-9_]+`)

// ftsQuery sanitizes user text into an FTS5 match expression: each token
// quoted, joined by implicit AND. Returns "" for empty or wildcard queries.
func ftsQuery(query string) string {
	cleaned := strings.TrimSpace(query)
	if cleaned == "" || cleaned == "*" {
		return ""
	}

	tokens := ftsToken.FindAllString(cleaned, -1)
	if len(tokens) == 0 {
		return ""
	}

	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = `"` + tok + `"`
	}
	return strings.Join(quoted, " ")
}

func requireRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound{ID: id}
	}
	return nil
}

// timeLayout is fixed width, keeping trailing fractional-second zeros that
// RFC3339Nano would drop, so SQLite's TEXT comparison on timestamp columns
// stays chronological for the ORDER BY and range-filter clauses above.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// mapErr wraps driver errors, translating SQLite busy/locked codes into the
// typed store.ErrLocked the ingest path branches on.
func mapErr(op string, err error) error {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		switch serr.Code() & 0xff {
		case sqlitelib.SQLITE_BUSY, sqlitelib.SQLITE_LOCKED:
			return fmt.Errorf("%s: %w", op, store.ErrLocked)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isConstraint(err error) bool {
	var serr *sqlite.Error
	return errors.As(err, &serr) && serr.Code()&0xff == sqlitelib.SQLITE_CONSTRAINT
}

var _ store.Driver = (*Driver)(nil)
