package confloader

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the environment variable prefix.
const DefaultEnvPrefix = "HOSTGATE_"

// Delim separates nested keys, e.g. "admin/port".
const Delim = "/"

// Loader loads configuration from multiple sources.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
	envKeys   []string
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix. An empty prefix
// disables the environment source.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithConfigFile sets the configuration file path.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
	}
}

// WithEnvKeys names keys whose spelling is not all lower case, such as
// "preventCrash". An environment variable matching one of them, or a key
// already loaded from another source, case-insensitively takes that
// spelling so it overrides the value instead of sitting beside it.
func WithEnvKeys(keys ...string) Option {
	return func(l *Loader) {
		l.envKeys = append(l.envKeys, keys...)
	}
}

// NewLoader creates a loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New(Delim),
		envPrefix: DefaultEnvPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the file (when set) and the environment, then unmarshals
// the merged result into target.
func (l *Loader) Load(target any) error {
	if l.filePath != "" {
		if err := l.LoadFile(l.filePath); err != nil {
			return err
		}
	}
	if err := l.LoadEnv(); err != nil {
		return err
	}
	if err := l.Unmarshal(target); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

// ParserFor picks the parser for a file by extension. JSON is the default.
func ParserFor(path string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser()
	default:
		return json.Parser()
	}
}

// LoadFile merges a configuration file.
func (l *Loader) LoadFile(path string) error {
	if path == "" {
		return nil
	}
	if err := l.k.Load(file.Provider(path), ParserFor(path)); err != nil {
		return fmt.Errorf("load file %s: %w", path, err)
	}
	return nil
}

// LoadEnv merges environment variables.
// HOSTGATE_ADMIN_PORT=9000 becomes admin/port and HOSTGATE_PREVENTCRASH
// becomes preventCrash when that key is known.
func (l *Loader) LoadEnv() error {
	if l.envPrefix == "" {
		return nil
	}
	known := make(map[string]string)
	for _, k := range append(l.k.Keys(), l.envKeys...) {
		known[strings.ToLower(k)] = k
	}
	transform := func(s string) string {
		s = strings.TrimPrefix(s, l.envPrefix)
		s = strings.ReplaceAll(strings.ToLower(s), "_", Delim)
		if k, ok := known[s]; ok {
			return k
		}
		return s
	}
	if err := l.k.Load(env.Provider(l.envPrefix, Delim, transform), nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

// LoadMap merges a nested map. Sources loaded later override it.
func (l *Loader) LoadMap(data map[string]any) error {
	if err := l.k.Load(mapProvider(data), nil); err != nil {
		return fmt.Errorf("load map: %w", err)
	}
	return nil
}

// Unmarshal decodes the merged configuration into target using koanf tags.
func (l *Loader) Unmarshal(target any) error {
	return l.k.Unmarshal("", target)
}
