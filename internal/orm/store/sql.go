package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "github.com/lib/pq"              // registers the "postgres" driver
	_ "github.com/mattn/go-sqlite3"    // registers the "sqlite3" driver
	_ "modernc.org/sqlite"             // registers the "sqlite" driver
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// dialect holds the statements of one SQL flavour
type dialect struct {
	createTable string
	get         string
	upsert      string
	delete      string
	exists      string
	list        string
}

func newDialect(driver, table string) dialect {
	bind := func(n int) string { return "?" }
	blob := "BLOB"
	if driver == DriverPostgres || driver == DriverPgx {
		bind = func(n int) string { return fmt.Sprintf("$%d", n) }
		blob = "BYTEA"
	}

	return dialect{
		createTable: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	class TEXT NOT NULL,
	id TEXT NOT NULL,
	body %s NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (class, id)
)`, table, blob),
		get: fmt.Sprintf("SELECT body FROM %s WHERE class = %s AND id = %s", table, bind(1), bind(2)),
		upsert: fmt.Sprintf(
			"INSERT INTO %s (class, id, body, updated_at) VALUES (%s, %s, %s, %s) "+
				"ON CONFLICT (class, id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at",
			table, bind(1), bind(2), bind(3), bind(4)),
		delete: fmt.Sprintf("DELETE FROM %s WHERE class = %s AND id = %s", table, bind(1), bind(2)),
		exists: fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE class = %s AND id = %s", table, bind(1), bind(2)),
		list:   fmt.Sprintf("SELECT id FROM %s WHERE class = %s ORDER BY id", table, bind(1)),
	}
}

// SQLStore implements a document store on a database/sql connection
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

// OpenSQLStore opens a database with one of the registered drivers and creates the
// document table if needed.
func OpenSQLStore(ctx context.Context, driver, dsn, table string) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", driver, err)
	}

	s, err := NewSQLStore(db, driver, table)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an open database. driver selects the SQL dialect.
func NewSQLStore(db *sql.DB, driver, table string) (*SQLStore, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	switch driver {
	case DriverSQLite, DriverSQLite3, DriverPostgres, DriverPgx:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}

	return &SQLStore{
		db:      db,
		dialect: newDialect(driver, table),
	}, nil
}

// Migrate creates the document table
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.createTable); err != nil {
		return fmt.Errorf("creating document table: %w", ConvertDBError(err))
	}
	return nil
}

// Get retrieves a document
func (s *SQLStore) Get(ctx context.Context, class, id string) ([]byte, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, s.dialect.get, class, id).Scan(&body)
	if err != nil {
		if err = ConvertDBError(err); IsNotFound(err) {
			return nil, NotFound(class, id)
		}
		return nil, err
	}
	return body, nil
}

// Put creates or replaces a document
func (s *SQLStore) Put(ctx context.Context, class, id string, doc []byte) error {
	_, err := s.db.ExecContext(ctx, s.dialect.upsert, class, id, doc, time.Now().UTC())
	return ConvertDBError(err)
}

// Delete removes a document
func (s *SQLStore) Delete(ctx context.Context, class, id string) error {
	_, err := s.db.ExecContext(ctx, s.dialect.delete, class, id)
	return ConvertDBError(err)
}

// Exists checks if a document is stored
func (s *SQLStore) Exists(ctx context.Context, class, id string) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, s.dialect.exists, class, id).Scan(&count); err != nil {
		return false, ConvertDBError(err)
	}
	return count > 0, nil
}

// List returns the identifiers stored for class
func (s *SQLStore) List(ctx context.Context, class string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.list, class)
	if err != nil {
		return nil, ConvertDBError(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database
func (s *SQLStore) Close() error {
	return s.db.Close()
}
