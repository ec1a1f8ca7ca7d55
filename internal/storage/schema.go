package storage

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"yarukoto/internal/config"
)

const sqliteDDL = `
CREATE TABLE IF NOT EXISTS todos (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'pending',
	priority TEXT NOT NULL DEFAULT 'medium',
	due_date TEXT DEFAULT NULL,
	reminder_date TEXT DEFAULT NULL,
	tags TEXT DEFAULT NULL,
	created_at TEXT NOT NULL
);`

const postgresDDL = `
CREATE TABLE IF NOT EXISTS todos (
	id BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'pending',
	priority TEXT NOT NULL DEFAULT 'medium',
	due_date TEXT DEFAULT NULL,
	reminder_date TEXT DEFAULT NULL,
	tags TEXT DEFAULT NULL,
	created_at TEXT NOT NULL
);`

const indexDDL = `CREATE INDEX IF NOT EXISTS idx_todos_created_at ON todos (created_at);`

// addedColumns are columns older tables may predate.
var addedColumns = []struct {
	name  string
	alter string
}{
	{"priority", "ALTER TABLE todos ADD COLUMN priority TEXT NOT NULL DEFAULT 'medium'"},
	{"due_date", "ALTER TABLE todos ADD COLUMN due_date TEXT DEFAULT NULL"},
	{"tags", "ALTER TABLE todos ADD COLUMN tags TEXT DEFAULT NULL"},
	{"reminder_date", "ALTER TABLE todos ADD COLUMN reminder_date TEXT DEFAULT NULL"},
}

func (s *Store) ensureSchema(ctx context.Context) error {
	ddl := sqliteDDL
	if s.driver == config.DriverPostgres {
		ddl = postgresDDL
	}
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return err
	}
	if err := s.ensureColumns(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, indexDDL)
	return err
}

func (s *Store) ensureColumns(ctx context.Context) error {
	existing, err := s.existingColumns(ctx)
	if err != nil {
		return err
	}
	for _, col := range addedColumns {
		if _, ok := existing[col.name]; ok {
			continue
		}
		if _, err := s.db.ExecContext(ctx, col.alter); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) existingColumns(ctx context.Context) (map[string]struct{}, error) {
	existing := map[string]struct{}{}
	if s.driver == config.DriverPostgres {
		rows, err := s.db.QueryContext(ctx,
			`SELECT column_name FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = 'todos'`)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				return nil, err
			}
			existing[name] = struct{}{}
		}
		return existing, rows.Err()
	}

	rows, err := s.db.QueryContext(ctx, `PRAGMA table_info(todos);`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		existing[name] = struct{}{}
	}
	return existing, rows.Err()
}

// rebind turns ? placeholders into $n for PostgreSQL. Statements here never
// carry a literal question mark.
func (s *Store) rebind(q string) string {
	if s.driver != config.DriverPostgres {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

func sqliteDSN(path string) (string, error) {
	if path == "" {
		return "", errors.New("db path is empty")
	}
	if strings.HasPrefix(path, "file:") {
		return path, nil
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil && !errors.Is(err, os.ErrExist) {
		return "", err
	}
	u := url.URL{
		Scheme: "file",
		Path:   path,
	}
	q := u.Query()
	q.Set("mode", "rwc")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	u.RawQuery = q.Encode()
	return u.String(), nil
}
