package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const userClass = "example.com/app/model.User"

// exerciseStore runs the behaviour every backend shares
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, userClass, "/users/alice")
	assert.ErrorIs(t, err, ErrNotFound)

	exists, err := s.Exists(ctx, userClass, "/users/alice")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.Put(ctx, userClass, "/users/alice", []byte(`{"Username":"alice"}`)))
	require.NoError(t, s.Put(ctx, userClass, "/users/bob", []byte(`{"Username":"bob"}`)))
	require.NoError(t, s.Put(ctx, "example.com/app/model.Group", "/groups/a", []byte(`{}`)))

	doc, err := s.Get(ctx, userClass, "/users/alice")
	require.NoError(t, err)
	assert.JSONEq(t, `{"Username":"alice"}`, string(doc))

	require.NoError(t, s.Put(ctx, userClass, "/users/alice", []byte(`{"Username":"alicia"}`)))
	doc, err = s.Get(ctx, userClass, "/users/alice")
	require.NoError(t, err)
	assert.JSONEq(t, `{"Username":"alicia"}`, string(doc))

	exists, err = s.Exists(ctx, userClass, "/users/alice")
	require.NoError(t, err)
	assert.True(t, exists)

	ids, err := s.List(ctx, userClass)
	require.NoError(t, err)
	assert.Equal(t, []string{"/users/alice", "/users/bob"}, ids)

	require.NoError(t, s.Delete(ctx, userClass, "/users/alice"))
	require.NoError(t, s.Delete(ctx, userClass, "/users/alice"))
	_, err = s.Get(ctx, userClass, "/users/alice")
	assert.True(t, IsNotFound(err))
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	exerciseStore(t, s)
}

func TestMemoryStore_CopiesDocuments(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	doc := []byte(`{"a":1}`)
	require.NoError(t, s.Put(ctx, userClass, "x", doc))
	doc[0] = 'X'

	stored, err := s.Get(ctx, userClass, "x")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(stored))
}

func TestMemoryStore_ContextCancelled(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Get(ctx, userClass, "x")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, s.Put(ctx, userClass, "x", nil), context.Canceled)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStoreWithClient(client, "test:")
	defer s.Close()

	exerciseStore(t, s)
	assert.True(t, mr.Exists("test:"+userClass+":/users/bob"))
}

func TestNewRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)

	s, err := NewRedisStore(context.Background(), RedisConfig{Addr: mr.Addr(), Prefix: "p:"})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put(context.Background(), userClass, "x", []byte("{}")))
	assert.True(t, mr.Exists("p:"+userClass+":x"))

	mr.Close()
	_, err = NewRedisStore(context.Background(), RedisConfig{Addr: mr.Addr()})
	assert.Error(t, err)
}

func TestSQLStore_SQLite(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "docs.db")

	s, err := OpenSQLStore(context.Background(), DriverSQLite, dsn, "documents")
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s)
	require.NoError(t, s.Migrate(context.Background()), "migration is idempotent")
}

func TestSQLStore_PostgresDialect(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s, err := NewSQLStore(db, DriverPostgres, "refproxy_documents")
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT body FROM refproxy_documents WHERE class = \$1 AND id = \$2`).
		WithArgs(userClass, "/users/alice").
		WillReturnRows(sqlmock.NewRows([]string{"body"}).AddRow([]byte(`{"Username":"alice"}`)))

	doc, err := s.Get(context.Background(), userClass, "/users/alice")
	require.NoError(t, err)
	assert.JSONEq(t, `{"Username":"alice"}`, string(doc))

	mock.ExpectExec(`INSERT INTO refproxy_documents \(class, id, body, updated_at\) VALUES \(\$1, \$2, \$3, \$4\) ON CONFLICT`).
		WithArgs(userClass, "/users/bob", []byte(`{}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Put(context.Background(), userClass, "/users/bob", []byte(`{}`)))

	mock.ExpectQuery(`SELECT body FROM refproxy_documents`).
		WithArgs(userClass, "/users/carol").
		WillReturnRows(sqlmock.NewRows([]string{"body"}))

	_, err = s.Get(context.Background(), userClass, "/users/carol")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "/users/carol")

	mock.ExpectExec(`INSERT INTO refproxy_documents`).
		WillReturnError(&pgconn.PgError{Code: "23505", Detail: "duplicate"})

	err = s.Put(context.Background(), userClass, "/users/dave", []byte(`{}`))
	assert.ErrorIs(t, err, ErrConflict)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewSQLStore_Validation(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewSQLStore(db, DriverSQLite, "documents; DROP TABLE x")
	assert.Error(t, err)

	_, err = NewSQLStore(db, "oracle", "documents")
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func TestConvertDBError(t *testing.T) {
	assert.NoError(t, ConvertDBError(nil))

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"pgx unique", &pgconn.PgError{Code: "23505", Detail: "Key (id) exists"}, ErrConflict},
		{"pq unique", &pq.Error{Code: "23505", Detail: "Key (id) exists"}, ErrConflict},
		{"sqlite unique", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, ConvertDBError(tt.err), tt.want)
		})
	}

	generic := errors.New("generic error")
	assert.Equal(t, generic, ConvertDBError(generic))
	assert.NotErrorIs(t, ConvertDBError(&pgconn.PgError{Code: "99999"}), ErrConflict)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, DefaultConfig())
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = Open(ctx, Config{Driver: "mongo"})
	assert.ErrorIs(t, err, ErrUnknownDriver)

	_, err = Open(ctx, Config{Driver: DriverPostgres})
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	s, err = Open(ctx, Config{Driver: DriverRedis, Prefix: "app", Redis: RedisConfig{Addr: mr.Addr()}})
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Put(ctx, userClass, "x", []byte("{}")))
	assert.True(t, mr.Exists("app:"+userClass+":x"))

	dsn := "file:" + filepath.Join(t.TempDir(), "open.db")
	s, err = Open(ctx, Config{Driver: DriverSQLite, DSN: dsn, Prefix: "app"})
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Put(ctx, userClass, "x", []byte("{}")))
}
