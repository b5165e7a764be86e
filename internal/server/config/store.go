package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/yndnr/hostgate/internal/core/domain"
	"github.com/yndnr/hostgate/internal/infra/confloader"
	"github.com/yndnr/hostgate/internal/telemetry/logger"
)

// LoadResult describes what a Store.Load did to the live configuration.
type LoadResult int

const (
	// Applied means the file was read and replaced the live configuration.
	Applied LoadResult = iota
	// Defaulted means the file was missing and defaults were adopted.
	Defaulted
	// NotApplied means the file was unusable and nothing changed.
	NotApplied
)

func (r LoadResult) String() string {
	switch r {
	case Applied:
		return "applied"
	case Defaulted:
		return "defaulted"
	default:
		return "rejected"
	}
}

// Store holds the live configuration and reloads it from disk.
type Store struct {
	path      string
	envPrefix string
	logger    logger.Logger

	mu      sync.Mutex
	current atomic.Pointer[Config]
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreLogger sets the logger.
func WithStoreLogger(l logger.Logger) StoreOption {
	return func(s *Store) {
		s.logger = l
	}
}

// WithEnvPrefix sets the environment overlay prefix; "" disables it.
func WithEnvPrefix(prefix string) StoreOption {
	return func(s *Store) {
		s.envPrefix = prefix
	}
}

// NewStore creates a store for the file at path. Until Load succeeds the
// live configuration is Default().
func NewStore(path string, opts ...StoreOption) *Store {
	s := &Store{
		path:      path,
		envPrefix: confloader.DefaultEnvPrefix,
		logger:    logger.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.current.Store(Default())
	return s
}

// Path returns the configuration file path.
func (s *Store) Path() string { return s.path }

// Current returns the live configuration.
func (s *Store) Current() *Config {
	return s.current.Load()
}

// Load reads the configuration file.
//
// A missing file adopts and persists the defaults, with the environment
// overlay applied to the live copy only; a failure to persist is
// returned as ErrConfigPersist alongside the Defaulted result. An unreadable
// or invalid file leaves the live configuration and the file untouched and
// returns ErrConfigMalformed with NotApplied. The returned Config is always
// the live one after the call.
func (s *Store) Load() (*Config, LoadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); missing(err) {
		cfg, err := ParseDefaults(s.envPrefix)
		if err != nil {
			s.logger.Warn("environment overlay on defaults rejected", "error", err)
			cfg = Default()
		}
		s.current.Store(cfg)
		s.logger.Warn("configuration file missing, adopting defaults", "path", s.path)
		if perr := Persist(s.path, DefaultFile()); perr != nil {
			return cfg, Defaulted, domain.ErrConfigPersist.WithDetails(s.path).WithCause(perr)
		}
		return cfg, Defaulted, nil
	}

	cfg, err := Parse(s.path, s.envPrefix)
	if err != nil {
		s.logger.Warn("configuration not applied, keeping previous", "path", s.path, "error", err)
		return s.current.Load(), NotApplied, err
	}
	s.current.Store(cfg)
	return cfg, Applied, nil
}

// missing reports whether a stat error means there is no file to read,
// including a parent path component that is not a directory.
func missing(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}

// Parse reads and validates the file at path, overlaying environment
// variables that carry envPrefix.
func Parse(path, envPrefix string) (*Config, error) {
	var f File
	loader := confloader.NewLoader(
		confloader.WithConfigFile(path),
		confloader.WithEnvPrefix(envPrefix),
		confloader.WithEnvKeys(mixedCaseKeys...),
	)
	if err := loader.Load(&f); err != nil {
		return nil, domain.ErrConfigMalformed.WithDetails(path).WithCause(err)
	}
	return Build(&f)
}

// ParseDefaults validates the default document with the environment
// overlay applied, for use when there is no file.
func ParseDefaults(envPrefix string) (*Config, error) {
	base, err := documentMap(DefaultFile())
	if err != nil {
		return nil, err
	}
	loader := confloader.NewLoader(
		confloader.WithEnvPrefix(envPrefix),
		confloader.WithEnvKeys(mixedCaseKeys...),
	)
	if err := loader.LoadMap(base); err != nil {
		return nil, err
	}
	var f File
	if err := loader.Load(&f); err != nil {
		return nil, domain.ErrConfigMalformed.WithDetails("environment").WithCause(err)
	}
	return Build(&f)
}

// documentMap renders f as the nested map a file holding it would parse to.
func documentMap(f *File) (map[string]any, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Persist writes f as indented JSON, replacing path atomically.
func Persist(path string, f *File) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".hostgate-config-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
