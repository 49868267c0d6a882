package tokenstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/felixgeelhaar/truematch/internal/log"
	"github.com/felixgeelhaar/truematch/internal/metrics"
)

// DefaultFileName is the token file created under the client home directory.
const DefaultFileName = "credentials.json"

type fileRecord struct {
	AccessToken string    `json:"access_token"`
	SavedAt     time.Time `json:"saved_at"`
}

// FileStore persists the token as JSON in a single 0600 file. Writes go
// through a temp file and rename so a crash never leaves a torn token.
type FileStore struct {
	path    string
	logger  *log.Logger
	metrics *metrics.Metrics

	mu sync.Mutex
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithFileLogger sets the logger used for fail-soft warnings.
func WithFileLogger(l *log.Logger) FileOption {
	return func(s *FileStore) { s.logger = l }
}

// WithFileMetrics records store operations.
func WithFileMetrics(m *metrics.Metrics) FileOption {
	return func(s *FileStore) { s.metrics = m }
}

// NewFileStore creates a store backed by the file at path.
func NewFileStore(path string, opts ...FileOption) *FileStore {
	s := &FileStore{path: path}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = log.OrDefault(s.logger).With("component", "tokenstore", "backend", "file")
	return s
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Save implements Store.
func (s *FileStore) Save(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.write(fileRecord{AccessToken: token, SavedAt: time.Now().UTC()})
	s.metrics.RecordStoreOp("file", "save", err == nil)
	if err != nil {
		s.logger.Warn("failed to persist access token", "path", s.path, "error", err)
		return
	}
	s.logger.Debug("access token saved", "token_fp", Fingerprint(token))
}

// Read implements Store.
func (s *FileStore) Read() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read access token", "path", s.path, "error", err)
			s.metrics.RecordStoreOp("file", "read", false)
			return "", false
		}
		s.metrics.RecordStoreOp("file", "read", true)
		return "", false
	}

	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		s.logger.Warn("ignoring unreadable token file", "path", s.path, "error", err)
		s.metrics.RecordStoreOp("file", "read", false)
		return "", false
	}

	s.metrics.RecordStoreOp("file", "read", true)
	return rec.AccessToken, rec.AccessToken != ""
}

// Clear implements Store.
func (s *FileStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && os.IsNotExist(err) {
		err = nil
	}
	s.metrics.RecordStoreOp("file", "clear", err == nil)
	if err != nil {
		s.logger.Warn("failed to remove access token", "path", s.path, "error", err)
	}
}

func (s *FileStore) write(rec fileRecord) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace token file: %w", err)
	}
	return nil
}
