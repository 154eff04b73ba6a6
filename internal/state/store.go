package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// SpecSystemDir is the per-project directory holding workflow state.
	SpecSystemDir = ".spec_system"
	// StateFileName is the state document's filename inside SpecSystemDir.
	StateFileName = "state.json"
)

// SpecSystemPath returns the absolute path to <projectRoot>/.spec_system.
func SpecSystemPath(projectRoot string) string {
	return filepath.Join(projectRoot, SpecSystemDir)
}

// Path returns the absolute path to the project's state.json.
func Path(projectRoot string) string {
	return filepath.Join(SpecSystemPath(projectRoot), StateFileName)
}

// ReadError reports that the state document could not be read or decoded.
// Nothing has been merged or written when it is returned.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	if errors.Is(e.Err, os.ErrNotExist) {
		return fmt.Sprintf("state file not found at %s", e.Path)
	}
	return fmt.Sprintf("reading %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// WriteError reports that a merged document could not be persisted.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("writing %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Store defines the persistence interface for the state document.
// Abstracted for testability.
type Store interface {
	ReadRaw(projectRoot string) ([]byte, error)
	Read(projectRoot string) (*Document, error)
	Write(projectRoot string, doc *Document) error
}

// FileStore implements Store on the local filesystem.
type FileStore struct{}

// NewFileStore creates a filesystem-backed state store.
func NewFileStore() *FileStore {
	return &FileStore{}
}

// ReadRaw returns the state file's bytes exactly as stored, after checking
// that they hold a valid JSON object. It never creates the file.
func (fs *FileStore) ReadRaw(projectRoot string) ([]byte, error) {
	path := Path(projectRoot)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	if _, err := Parse(data); err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	return data, nil
}

// Read loads and decodes the state document.
func (fs *FileStore) Read(projectRoot string) (*Document, error) {
	path := Path(projectRoot)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	return doc, nil
}

// Write replaces the state file with doc. The new content is written to a
// temporary file in the same directory and renamed over the old one, so a
// crash mid-write leaves the previous document intact.
func (fs *FileStore) Write(projectRoot string, doc *Document) error {
	path := Path(projectRoot)
	data, err := doc.Marshal()
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if err := writeFileAtomic(path, data); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	perm := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, "."+StateFileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}
