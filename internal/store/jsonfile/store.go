// Package jsonfile provides a JSON file-based record store.
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/hay-kot/formrelay/internal/core/record"
	"github.com/hay-kot/formrelay/internal/core/submission"
)

// Store implements record.Store on a single JSON document. Every Append
// reads the whole file, merges one entry and rewrites the whole file.
type Store struct {
	path    string
	inPlace bool
	mu      sync.RWMutex
}

// New creates a new JSON file store at the given path. The file and its
// parent directory are created on first Append.
func New(path string) *Store {
	return &Store{path: path}
}

// WithInPlaceWrites makes the store truncate and rewrite the document
// directly instead of writing a temp file and renaming it over the
// document. An interrupted in-place write can leave a truncated document.
func (s *Store) WithInPlaceWrites(inPlace bool) *Store {
	s.inPlace = inPlace
	return s
}

// Path returns the document path.
func (s *Store) Path() string {
	return s.path
}

// lockPath returns the path to the lock file.
func (s *Store) lockPath() string {
	return s.path + ".lock"
}

// withFileLock acquires a file lock, executes fn, then releases the lock.
// Exclusive locks create the storage directory and lock file as needed.
func (s *Store) withFileLock(lockType int, fn func() error) error {
	if lockType == syscall.LOCK_EX {
		if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
			return fmt.Errorf("create storage directory: %w", err)
		}
	}

	f, err := s.openLockFile(lockType)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	if f == nil {
		// No lock file means no writer has run yet; read without locking.
		return fn()
	}
	defer f.Close() //nolint:errcheck

	if err := syscall.Flock(int(f.Fd()), lockType); err != nil {
		return fmt.Errorf("acquire file lock: %w", err)
	}
	defer syscall.Flock(int(f.Fd()), syscall.LOCK_UN) //nolint:errcheck

	return fn()
}

// openLockFile opens the lock file for lockType. Shared locks never create
// it and return a nil file when it is missing or cannot be opened.
func (s *Store) openLockFile(lockType int) (*os.File, error) {
	if lockType == syscall.LOCK_EX {
		return os.OpenFile(s.lockPath(), os.O_CREATE|os.O_RDWR, 0o644)
	}

	f, err := os.Open(s.lockPath())
	if err != nil {
		return nil, nil
	}
	return f, nil
}

// Append inserts or overwrites the record at key.
func (s *Store) Append(ctx context.Context, key string, sub submission.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withFileLock(syscall.LOCK_EX, func() error {
		doc, err := s.load()
		if err != nil {
			return err
		}

		doc[key] = sub
		return s.save(doc)
	})
}

// Document returns the full persisted document. It never writes to disk: a
// missing document is returned as empty without touching its directory.
func (s *Store) Document(ctx context.Context) (record.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		return record.Document{}, nil
	}

	var doc record.Document
	err := s.withFileLock(syscall.LOCK_SH, func() error {
		var err error
		doc, err = s.load()
		return err
	})
	if err != nil {
		return nil, err
	}

	return doc, nil
}

// load reads the document from disk.
// Returns an empty document if the file doesn't exist or is empty.
func (s *Store) load() (record.Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return record.Document{}, nil
		}
		return nil, fmt.Errorf("read document: %w", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return record.Document{}, nil
	}

	var doc record.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}

	if doc == nil {
		doc = record.Document{}
	}

	return doc, nil
}

// marshal renders the document indented with non-ASCII and HTML characters
// kept verbatim.
func marshal(doc record.Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return buf.Bytes(), nil
}

// save writes the document to disk, atomically unless in-place writes are
// enabled.
func (s *Store) save(doc record.Document) error {
	data, err := marshal(doc)
	if err != nil {
		return err
	}

	if s.inPlace {
		if err := os.WriteFile(s.path, data, 0o644); err != nil {
			return fmt.Errorf("write document: %w", err)
		}
		return nil
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp) // best effort cleanup
		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}
