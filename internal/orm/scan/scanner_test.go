package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/conduit-lang/refproxy/internal/orm/schema"
)

const userSource = `package model

import (
	"fmt"
	"time"

	ext "example.com/other/lib/v2"
)

// Timestamps holds audit fields.
//
// odm:mapped-superclass
type Timestamps struct {
	CreatedAt time.Time ` + "`odm:\"field\"`" + `
}

// Touch updates the creation time.
func (t *Timestamps) Touch() { t.CreatedAt = time.Now() }

// User is a stored account.
//
// odm:document
type User struct {
	Timestamps

	ID       string            ` + "`odm:\"id\"`" + `
	Username string            ` + "`odm:\"field\"`" + `
	Tags     []string          ` + "`odm:\"field\"`" + `
	Groups   []*Group          ` + "`odm:\"reference\"`" + `
	Parent   *Folder           ` + "`odm:\"child\"`" + `
	Extra    ext.Value         ` + "`odm:\"field\"`" + `
	cache    map[string]string
	Skipped  string            ` + "`odm:\"-\"`" + `
}

// NewUser creates a user.
func NewUser(name string) *User { return &User{Username: name} }

// Greet says hello.
func (u *User) Greet(prefix string, names ...string) (string, error) {
	return fmt.Sprint(prefix, u.Username, names), nil
}

// Rename is final.
//
// odm:final
func (u *User) Rename(name string) { u.Username = name }

func (u User) secret() string { return u.cache["x"] }

// Group is stored as well.
//
// odm:document
type Group struct {
	Name string ` + "`odm:\"field\"`" + `
}

// Folder is not mapped.
type Folder struct{}
`

func writeModule(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/app\n\ngo 1.23\n"), 0o644))

	dir := filepath.Join(root, "model")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "user.go"), []byte(userSource), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "user_test.go"), []byte("package model\n\n// odm:document\ntype Fixture struct{}\n"), 0o644))

	return root
}

func TestScanner_ScanDir(t *testing.T) {
	root := writeModule(t)

	s, err := New(root, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "example.com/app", s.ModulePath())

	descs, err := s.ScanDir(filepath.Join(root, "model"))
	require.NoError(t, err)
	require.Len(t, descs, 3)

	names := []string{descs[0].TypeName, descs[1].TypeName, descs[2].TypeName}
	assert.Equal(t, []string{"Group", "Timestamps", "User"}, names)
	assert.True(t, descs[1].MappedSuperclass)
	assert.False(t, descs[2].MappedSuperclass)

	user := descs[2]
	assert.Equal(t, "example.com/app/model.User", user.Name)
	assert.Equal(t, "model", user.PackageName)
	require.NotNil(t, user.Identifier)
	assert.Equal(t, "ID", user.Identifier.Name)

	var fields []string
	for _, f := range user.Fields {
		fields = append(fields, f.Name)
	}
	assert.Equal(t, []string{"CreatedAt", "Username", "Tags", "Extra"}, fields)

	extra := user.Fields[3].Type
	assert.Equal(t, "example.com/other/lib/v2", extra.Package)
	assert.Equal(t, "lib", extra.PackageName)
	assert.Equal(t, "time.Time", user.Fields[0].Type.String())

	require.Len(t, user.Relations, 2)
	assert.Equal(t, schema.RelationReference, user.Relations[0].Kind)
	assert.Equal(t, "example.com/app/model.Group", user.Relations[0].Target)
	assert.Equal(t, "[]*model.Group", user.Relations[0].Type.String())
	assert.Equal(t, schema.RelationChild, user.Relations[1].Kind)
}

func TestScanner_Methods(t *testing.T) {
	root := writeModule(t)

	s, err := New(root, zaptest.NewLogger(t))
	require.NoError(t, err)

	descs, err := s.ScanDir(filepath.Join(root, "model"))
	require.NoError(t, err)
	user := descs[2]

	greet, ok := user.Method("Greet")
	require.True(t, ok)
	assert.True(t, greet.Public)
	assert.True(t, greet.PointerReceiver)
	require.Len(t, greet.Params, 2)
	assert.Equal(t, "prefix", greet.Params[0].Name)
	assert.True(t, greet.Params[1].Variadic)
	assert.Equal(t, "[]string", greet.Params[1].Type.String())
	require.Len(t, greet.Results, 2)
	assert.True(t, greet.Results[1].IsError())

	rename, ok := user.Method("Rename")
	require.True(t, ok)
	assert.True(t, rename.Final)

	secret, ok := user.Method("secret")
	require.True(t, ok)
	assert.False(t, secret.Public)
	assert.False(t, secret.PointerReceiver)

	ctor, ok := user.Method("NewUser")
	require.True(t, ok)
	assert.True(t, ctor.Constructor)
	assert.True(t, ctor.ReturnsReference)

	touch, ok := user.Method("Touch")
	require.True(t, ok, "methods of embedded mapped structs are inherited")
	assert.True(t, touch.PointerReceiver)
}

func TestScanner_ScanDirs(t *testing.T) {
	root := writeModule(t)

	other := filepath.Join(root, "billing")
	require.NoError(t, os.MkdirAll(other, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(other, "invoice.go"), []byte(`package billing

// odm:document
type Invoice struct {
	Number string `+"`odm:\"id\"`"+`
}
`), 0o644))

	s, err := NewFromDir(other, nil)
	require.NoError(t, err)

	model := filepath.Join(root, "model")
	descs, err := s.ScanDirs(context.Background(), []string{model, other, model})
	require.NoError(t, err)
	require.Len(t, descs, 4)
	assert.Equal(t, "example.com/app/billing.Invoice", descs[0].Name)
	assert.Equal(t, "Number", descs[0].IdentifierName())
}

func TestScanner_Errors(t *testing.T) {
	_, err := New(t.TempDir(), nil)
	assert.ErrorIs(t, err, ErrNoModule)

	root := writeModule(t)
	s, err := New(root, nil)
	require.NoError(t, err)

	_, err = s.ImportPath(filepath.Dir(root))
	assert.Error(t, err)

	bad := filepath.Join(root, "broken")
	require.NoError(t, os.MkdirAll(bad, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(bad, "x.go"), []byte("package broken\nfunc {"), 0o644))
	_, err = s.ScanDir(bad)
	assert.Error(t, err)
}

func TestGuessPackageName(t *testing.T) {
	tests := map[string]string{
		"time":                        "time",
		"example.com/other/lib/v2":    "lib",
		"github.com/mattn/go-sqlite3": "sqlite3",
		"gopkg.in/yaml.v3":            "yaml",
		"github.com/google/uuid":      "uuid",
	}
	for in, want := range tests {
		assert.Equal(t, want, guessPackageName(in), in)
	}
}
