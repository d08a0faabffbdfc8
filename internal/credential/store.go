package credential

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/joho/godotenv"

	"github.com/sefaria-labs/explorer/internal/log"
)

// EnvKey is the key under which the credential is persisted in the
// dotenv-format file, and the process environment variable consulted as a
// fallback at load time.
const EnvKey = "OPEN_ROUTER_API"

var (
	// ErrBadFormat indicates Set was called with a key failing the fast
	// local format check.
	ErrBadFormat = errors.New("credential has invalid format")

	// ErrPersist indicates the durable write failed; the in-memory value
	// was left unchanged.
	ErrPersist = errors.New("persisting credential failed")
)

// Store owns the process-wide active credential.
//
// Exactly one value is active at a time. Set persists to the dotenv file
// first and swaps the in-memory value only after the write succeeds, so
// readers always observe either the old or the new key, never a torn or
// unpersisted one. A file lock guards the read-modify-write against
// concurrent processes sharing the same file.
type Store struct {
	mu     sync.RWMutex
	value  string
	path   string
	fileLk *flock.Flock
	logger log.Logger
}

// NewStore creates a Store persisting to the dotenv file at path.
func NewStore(path string, logger log.Logger) (*Store, error) {
	if path == "" {
		return nil, errors.New("credential file path is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Store{
		path:   path,
		fileLk: flock.New(path + ".lock"),
		logger: logger,
	}, nil
}

// Load reads the credential from the dotenv file, falling back to the
// process environment. A missing file or absent key is not an error; the
// store simply starts empty and the session begins in credential setup.
func (s *Store) Load() error {
	values, err := godotenv.Read(s.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading credential file %s: %w", s.path, err)
	}

	key := values[EnvKey]
	if key == "" {
		key = os.Getenv(EnvKey)
	}

	s.mu.Lock()
	s.value = key
	s.mu.Unlock()

	if key != "" {
		s.logger.Debug("loaded credential", "key", Mask(key))
	}
	return nil
}

// Get returns the active credential and whether one is set.
// Calling Get repeatedly without an intervening Set returns the same value.
func (s *Store) Get() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value, s.value != ""
}

// Set replaces the active credential.
//
// Only the fast local format check runs here; callers are expected to have
// already run a full Validator.Validate. The durable write happens before
// the in-memory update: on persist failure the previous value stays active
// and ErrPersist is returned (all-or-nothing).
func (s *Store) Set(candidate string) error {
	if st := CheckFormat(candidate); st != StatusOK {
		return fmt.Errorf("%w: %s", ErrBadFormat, st)
	}

	if err := s.persist(candidate); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}

	s.mu.Lock()
	s.value = candidate
	s.mu.Unlock()

	s.logger.Info("credential updated", "key", Mask(candidate))
	return nil
}

// persist writes the key into the dotenv file under a file lock,
// preserving any other entries the file carries.
func (s *Store) persist(candidate string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("creating credential directory: %w", err)
	}

	if err := s.fileLk.Lock(); err != nil {
		return fmt.Errorf("locking credential file: %w", err)
	}
	defer func() {
		if err := s.fileLk.Unlock(); err != nil {
			s.logger.Warn("unlocking credential file", "error", err)
		}
	}()

	values, err := godotenv.Read(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("reading credential file: %w", err)
		}
		values = map[string]string{}
	}
	values[EnvKey] = candidate

	if err := godotenv.Write(values, s.path); err != nil {
		return fmt.Errorf("writing credential file: %w", err)
	}
	return nil
}
