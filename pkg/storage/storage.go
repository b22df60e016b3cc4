// Package storage implements Mechaway's project-scoped storage manager
// (PSM): one SQLite database per project, opened lazily on first use and
// kept open in a slug-keyed pool. TableWriter/TableReader/TableQuery node
// executors read and write rows through ProjectStore; workflow definitions
// are persisted separately by pkg/registry using the same pooling pattern.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/insanalamin/mechaway/pkg/errs"
	"github.com/insanalamin/mechaway/pkg/types"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]{0,63}$`)

// Manager lazily opens and pools one SQLite database per project slug.
type Manager struct {
	dataDir string
	mu      sync.Mutex
	stores  map[string]*ProjectStore
}

// NewManager creates a Manager rooted at dataDir. dataDir must already
// exist; each project gets a "<slug>.db" file inside it.
func NewManager(dataDir string) *Manager {
	return &Manager{
		dataDir: dataDir,
		stores:  make(map[string]*ProjectStore),
	}
}

// ForProject returns the ProjectStore for slug, opening its database file
// on first access.
func (m *Manager) ForProject(slug string) (*ProjectStore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ps, ok := m.stores[slug]; ok {
		return ps, nil
	}

	path := filepath.Join(m.dataDir, slug+".db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errs.Wrap(errs.StorageUnavailable, "failed to open project database", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers per connection; avoid lock contention

	ps := &ProjectStore{db: db, slug: slug}
	m.stores[slug] = ps
	return ps, nil
}

// Close closes every pooled project database.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for slug, ps := range m.stores {
		if err := ps.db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing project %s: %w", slug, err)
		}
	}
	return firstErr
}

// ProjectStore is one project's table storage: every table is a generic
// (id, data) schema where data is a JSON blob, materialized lazily the
// first time any read or write targets it.
type ProjectStore struct {
	db   *sql.DB
	slug string

	mu       sync.Mutex
	ensured  map[string]bool
}

func (p *ProjectStore) ensureTable(ctx context.Context, table string) error {
	if !validTableName.MatchString(table) {
		return errs.Newf(errs.InvalidGraph, "invalid table name %q", table)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ensured == nil {
		p.ensured = make(map[string]bool)
	}
	if p.ensured[table] {
		return nil
	}

	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		data TEXT NOT NULL
	)`, table)
	if _, err := p.db.ExecContext(ctx, stmt); err != nil {
		return errs.Wrap(errs.StorageUnavailable, "failed to materialize table", err)
	}
	p.ensured[table] = true
	return nil
}

// WriteRows inserts rows into table, creating it on first use.
func (p *ProjectStore) WriteRows(ctx context.Context, table string, rows []map[string]types.Value) error {
	if err := p.ensureTable(ctx, table); err != nil {
		return err
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(errs.StorageUnavailable, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (data) VALUES (?)", table))
	if err != nil {
		return errs.Wrap(errs.StorageUnavailable, "failed to prepare insert", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		blob, err := json.Marshal(row)
		if err != nil {
			return errs.Wrap(errs.Internal, "failed to marshal row", err)
		}
		if _, err := stmt.ExecContext(ctx, string(blob)); err != nil {
			return errs.Wrap(errs.StorageUnavailable, "failed to insert row", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.StorageUnavailable, "failed to commit transaction", err)
	}
	return nil
}

// WriteRow inserts a single row into table, creating it on first use, and
// reports its autoincrement id, used by TableWriter to answer
// {_inserted_id, _rows_affected}.
func (p *ProjectStore) WriteRow(ctx context.Context, table string, row map[string]types.Value) (int64, error) {
	if err := p.ensureTable(ctx, table); err != nil {
		return 0, err
	}

	blob, err := json.Marshal(row)
	if err != nil {
		return 0, errs.Wrap(errs.Internal, "failed to marshal row", err)
	}

	res, err := p.db.ExecContext(ctx, fmt.Sprintf("INSERT INTO %s (data) VALUES (?)", table), string(blob))
	if err != nil {
		return 0, errs.Wrap(errs.StorageUnavailable, "failed to insert row", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errs.Wrap(errs.StorageUnavailable, "failed to read inserted row id", err)
	}
	return id, nil
}

// ReplaceTable atomically replaces every row in table with rows, used by
// callers that maintain a small table as a whole (pkg/secrets' per-project
// secret set) rather than append-only.
func (p *ProjectStore) ReplaceTable(ctx context.Context, table string, rows []map[string]types.Value) error {
	if err := p.ensureTable(ctx, table); err != nil {
		return err
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(errs.StorageUnavailable, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", table)); err != nil {
		return errs.Wrap(errs.StorageUnavailable, "failed to clear table", err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (data) VALUES (?)", table))
	if err != nil {
		return errs.Wrap(errs.StorageUnavailable, "failed to prepare insert", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		blob, err := json.Marshal(row)
		if err != nil {
			return errs.Wrap(errs.Internal, "failed to marshal row", err)
		}
		if _, err := stmt.ExecContext(ctx, string(blob)); err != nil {
			return errs.Wrap(errs.StorageUnavailable, "failed to insert row", err)
		}
	}

	return tx.Commit()
}

// ReadRows returns up to limit rows from table, with offset skipped,
// ordered by orderBy ("" defaults to insertion order).
func (p *ProjectStore) ReadRows(ctx context.Context, table string, limit, offset int, orderBy string) ([]map[string]types.Value, error) {
	if err := p.ensureTable(ctx, table); err != nil {
		return nil, err
	}

	orderClause, err := buildOrderClause(orderBy)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidGraph, "invalid order_by", err)
	}

	q := fmt.Sprintf("SELECT data FROM %s ORDER BY %s LIMIT ? OFFSET ?", table, orderClause)
	rows, err := p.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, errs.Wrap(errs.StorageUnavailable, "failed to read rows", err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// QueryRows runs a parameterized SELECT against table restricted to a
// caller-supplied WHERE clause. where must use "?" placeholders; args are
// bound positionally, so the clause itself cannot be used to inject values.
// orderBy ("" defaults to insertion order) is validated against
// validColumnName, never interpolated from caller-controlled free text.
func (p *ProjectStore) QueryRows(ctx context.Context, table string, where string, args []types.Value, limit int, orderBy string) ([]map[string]types.Value, error) {
	if err := p.ensureTable(ctx, table); err != nil {
		return nil, err
	}

	orderClause, err := buildOrderClause(orderBy)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidGraph, "invalid order_by", err)
	}

	q := fmt.Sprintf("SELECT data FROM %s", table)
	if where != "" {
		q += " WHERE " + where
	}
	q += " ORDER BY " + orderClause + " LIMIT ?"
	queryArgs := make([]interface{}, 0, len(args)+1)
	for _, a := range args {
		queryArgs = append(queryArgs, a)
	}
	queryArgs = append(queryArgs, limit)

	rows, err := p.db.QueryContext(ctx, q, queryArgs...)
	if err != nil {
		return nil, errs.Wrap(errs.StorageUnavailable, "failed to query rows", err)
	}
	defer rows.Close()

	return scanRows(rows)
}

var validColumnName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]{0,63}$`)

// buildOrderClause turns a caller-supplied "column" or "column asc|desc"
// order_by request into a safe SQL ORDER BY clause. "" orders by id
// (insertion order). Non-id columns are stored inside the JSON data blob,
// so they're compared via json_extract rather than as a real column.
func buildOrderClause(orderBy string) (string, error) {
	if orderBy == "" {
		return "id", nil
	}

	fields := strings.Fields(orderBy)
	col := fields[0]
	dir := "ASC"
	switch len(fields) {
	case 1:
	case 2:
		switch strings.ToUpper(fields[1]) {
		case "ASC", "DESC":
			dir = strings.ToUpper(fields[1])
		default:
			return "", fmt.Errorf("invalid order direction %q", fields[1])
		}
	default:
		return "", fmt.Errorf("invalid order_by %q", orderBy)
	}
	if !validColumnName.MatchString(col) {
		return "", fmt.Errorf("invalid order_by column %q", col)
	}
	if col == "id" {
		return "id " + dir, nil
	}
	return fmt.Sprintf("json_extract(data, '$.%s') %s", col, dir), nil
}

func scanRows(rows *sql.Rows) ([]map[string]types.Value, error) {
	var out []map[string]types.Value
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, errs.Wrap(errs.StorageUnavailable, "failed to scan row", err)
		}
		var decoded map[string]types.Value
		if err := json.Unmarshal([]byte(blob), &decoded); err != nil {
			return nil, errs.Wrap(errs.Internal, "failed to unmarshal stored row", err)
		}
		out = append(out, decoded)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.StorageUnavailable, "row iteration failed", err)
	}
	return out, nil
}
