package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"yarukoto/internal/config"
	"yarukoto/internal/query"
	"yarukoto/internal/todo"
)

const (
	table   = "todos"
	columns = "id, title, description, status, priority, due_date, reminder_date, tags, created_at"
)

// updatable lists the columns an Assignment may target.
var updatable = map[string]struct{}{
	"title":         {},
	"description":   {},
	"status":        {},
	"priority":      {},
	"due_date":      {},
	"reminder_date": {},
	"tags":          {},
}

type Store struct {
	db     *sql.DB
	driver string
}

func Open(cfg config.Database) (*Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite, "":
		return OpenSQLite(cfg.Path)
	case config.DriverPostgres:
		return openPostgres(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}
}

func OpenSQLite(dbPath string) (*Store, error) {
	dsn, err := sqliteDSN(dbPath)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return initStore(db, config.DriverSQLite)
}

func openPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("pg open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pg ping: %w", err)
	}
	return initStore(db, config.DriverPostgres)
}

func initStore(db *sql.DB, driver string) (*Store, error) {
	s := &Store{db: db, driver: driver}
	if err := s.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Insert(ctx context.Context, it todo.Item) (int64, error) {
	q := s.rebind(`INSERT INTO todos (title, description, status, priority, due_date, reminder_date, tags, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	var id int64
	err := s.db.QueryRowContext(ctx, q,
		it.Title,
		it.Description,
		string(it.Status),
		string(it.Priority),
		nullTime(it.DueDate),
		nullTime(it.ReminderDate),
		nullString(it.Tags),
		todo.FormatStorage(it.CreatedAt),
	).Scan(&id)
	return id, err
}

func (s *Store) Get(ctx context.Context, id int64) (todo.Item, error) {
	q := s.rebind(`SELECT ` + columns + ` FROM todos WHERE id = ?`)
	it, err := scanItem(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return todo.Item{}, todo.ErrNotFound
	}
	return it, err
}

func (s *Store) Status(ctx context.Context, id int64) (todo.Status, error) {
	var status string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT status FROM todos WHERE id = ?`), id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", todo.ErrNotFound
	}
	return todo.Status(status), err
}

func (s *Store) SetStatus(ctx context.Context, id int64, status todo.Status) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE todos SET status = ? WHERE id = ?`), string(status), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Assignment is one "column = value" pair of a partial update.
type Assignment struct {
	Column string
	Value  any
}

func Assign(column string, v any) Assignment {
	return Assignment{Column: column, Value: v}
}

// Update writes only the given columns in a single statement.
func (s *Store) Update(ctx context.Context, id int64, set []Assignment) error {
	if len(set) == 0 {
		return errors.New("update without assignments")
	}
	parts := make([]string, 0, len(set))
	args := make([]any, 0, len(set)+1)
	for _, a := range set {
		if _, ok := updatable[a.Column]; !ok {
			return fmt.Errorf("column %q is not updatable", a.Column)
		}
		parts = append(parts, a.Column+" = ?")
		args = append(args, encode(a.Value))
	}
	args = append(args, id)

	q := s.rebind(`UPDATE todos SET ` + strings.Join(parts, ", ") + ` WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Delete removes the row. A missing id is not an error.
func (s *Store) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM todos WHERE id = ?`), id)
	return err
}

func (s *Store) List(ctx context.Context, spec query.Spec) ([]todo.Item, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(spec.SQL(columns, table)), spec.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]todo.Item, 0)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (todo.Item, error) {
	var it todo.Item
	var status, priority, created string
	var desc, due, reminder, tags sql.NullString
	if err := row.Scan(&it.ID, &it.Title, &desc, &status, &priority, &due, &reminder, &tags, &created); err != nil {
		return todo.Item{}, err
	}
	it.Description = desc.String
	it.Status = todo.Status(status)
	it.Priority = todo.ParsePriority(priority)
	it.Tags = tags.String
	it.DueDate = parseNullTime(due)
	it.ReminderDate = parseNullTime(reminder)
	if t, err := todo.ParseStorage(created); err == nil {
		it.CreatedAt = t
	}
	return it, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return todo.ErrNotFound
	}
	return nil
}

func encode(v any) any {
	switch x := v.(type) {
	case time.Time:
		return todo.FormatStorage(x)
	case *time.Time:
		return nullTime(x)
	case *string:
		if x == nil {
			return nil
		}
		return *x
	case todo.Status:
		return string(x)
	case todo.Priority:
		return string(x)
	default:
		return v
	}
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return todo.FormatStorage(*t)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func parseNullTime(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t, err := todo.ParseStorage(v.String)
	if err != nil {
		return nil
	}
	return &t
}
