package storage

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"

	"github.com/saikatdas-ai/saikat-ai-assistant/internal/apperr"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/logger"
)

// File names of the documents kept under the data directory.
const (
	SeenFile      = "seen_links.json"
	SignatureFile = "signatures.json"
	FollowupFile  = "followups.json"
	StateFile     = "state.json"
)

// LoadStatus tells the caller what Load found on disk.
type LoadStatus int

const (
	LoadOK LoadStatus = iota
	LoadMissing
	LoadCorrupt
)

func (s LoadStatus) String() string {
	switch s {
	case LoadOK:
		return "ok"
	case LoadMissing:
		return "missing"
	case LoadCorrupt:
		return "corrupt"
	default:
		return "unknown"
	}
}

// Store reads and writes small JSON documents in one directory.
// Writes go to a temp file that is renamed over the target, so readers
// see either the old or the new document.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore creates dir if needed.
func NewStore(dir string, l *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperr.Wrap(apperr.Storage, "create data dir", err)
	}
	return &Store{dir: dir, logger: logger.Component(l, "storage")}, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the absolute location of document name.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Load decodes document name into v. On a missing or corrupt file v is left
// untouched, so whatever the caller put there acts as the default.
func (s *Store) Load(name string, v any) LoadStatus {
	path := s.Path(name)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return LoadMissing
	}
	if err != nil {
		s.logger.Warn("read failed, using default", "file", name, "kind", apperr.Storage, "error", err)
		return LoadCorrupt
	}

	if len(data) == 0 {
		return LoadMissing
	}

	// Decode into a scratch value first so a half-decoded document never
	// leaks into v.
	target := reflect.ValueOf(v)
	if target.Kind() != reflect.Pointer || target.IsNil() {
		s.logger.Error("load target must be a non-nil pointer", "file", name)
		return LoadCorrupt
	}
	scratch := reflect.New(target.Elem().Type())
	if err := json.Unmarshal(data, scratch.Interface()); err != nil {
		s.logger.Warn("corrupt document, using default", "file", name, "kind", apperr.Storage, "error", err)
		return LoadCorrupt
	}
	target.Elem().Set(scratch.Elem())
	return LoadOK
}

// Save writes v as JSON to name via temp file + rename.
func (s *Store) Save(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return apperr.Wrap(apperr.Storage, "marshal "+name, err)
	}

	target := s.Path(name)
	tmp := target + ".tmp"

	if err := writeSynced(tmp, data); err != nil {
		_ = os.Remove(tmp)
		return apperr.Wrap(apperr.Storage, "write "+name, err)
	}

	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return apperr.Wrap(apperr.Storage, "replace "+name, err)
	}

	return nil
}

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
