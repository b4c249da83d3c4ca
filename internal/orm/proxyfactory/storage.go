package proxyfactory

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	strutil "github.com/conduit-lang/refproxy/internal/util/strings"
)

// Storage keeps one Go file per proxy definition in a directory
type Storage struct {
	fs  afero.Fs
	dir string
}

// NewStorage creates a storage rooted at dir on fs
func NewStorage(fs afero.Fs, dir string) *Storage {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Storage{fs: fs, dir: dir}
}

// Dir returns the storage directory
func (s *Storage) Dir() string {
	return s.dir
}

// Fs returns the underlying file system
func (s *Storage) Fs() afero.Fs {
	return s.fs
}

// WithDir returns a storage on the same file system rooted at dir
func (s *Storage) WithDir(dir string) *Storage {
	return &Storage{fs: s.fs, dir: dir}
}

// Path returns the file path of the definition named mangled
func (s *Storage) Path(mangled string) string {
	return filepath.Join(s.dir, strutil.ToSnakeCase(mangled)+".go")
}

// Exists reports whether the definition file is present
func (s *Storage) Exists(mangled string) (bool, error) {
	return afero.Exists(s.fs, s.Path(mangled))
}

// Read returns the stored definition
func (s *Storage) Read(mangled string) ([]byte, error) {
	return afero.ReadFile(s.fs, s.Path(mangled))
}

// Create writes a new definition and fails with an error matching os.ErrExist if the
// file is already present.
func (s *Storage) Create(mangled string, code []byte) error {
	path := s.Path(mangled)

	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return &WriteError{Path: path, Err: err}
	}

	f, err := s.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}

	_, werr := f.Write(code)
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = s.fs.Remove(path)
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

// Overwrite replaces the definition atomically through a temporary file and a rename
func (s *Storage) Overwrite(mangled string, code []byte) error {
	path := s.Path(mangled)

	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return &WriteError{Path: path, Err: err}
	}

	tmp, err := afero.TempFile(s.fs, s.dir, ".refproxy-*.tmp")
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	tmpPath := tmp.Name()

	_, werr := tmp.Write(code)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = s.fs.Remove(tmpPath)
		return &WriteError{Path: path, Err: err}
	}

	if err := s.fs.Chmod(tmpPath, 0o644); err != nil {
		_ = s.fs.Remove(tmpPath)
		return &WriteError{Path: path, Err: err}
	}

	if err := s.fs.Rename(tmpPath, path); err != nil {
		_ = s.fs.Remove(tmpPath)
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

// Remove deletes the definition file if present
func (s *Storage) Remove(mangled string) error {
	err := s.fs.Remove(s.Path(mangled))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
