package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/yndnr/hostgate/internal/core/domain"
	"github.com/yndnr/hostgate/internal/telemetry/logger"
)

func newTestStore(path string) *Store {
	return NewStore(path, WithStoreLogger(logger.Nop()), WithEnvPrefix(""))
}

func TestStore_MissingFileWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "hostgate.json")
	s := newTestStore(path)

	cfg, res, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if res != Defaulted {
		t.Errorf("result = %v, want defaulted", res)
	}
	if s.Current() != cfg {
		t.Error("Current() does not reflect loaded defaults")
	}
	if cfg.Port != DefaultPort || cfg.Routes["localhost"] != DefaultRouteTarget {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("defaults not persisted: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("persisted defaults are not JSON: %v", err)
	}
	if doc["title"] != DefaultTitle {
		t.Errorf("persisted title = %v", doc["title"])
	}

	// The persisted document loads back as applied.
	if _, res, err := s.Load(); err != nil || res != Applied {
		t.Errorf("second Load() = (%v, %v), want applied", res, err)
	}
}

func TestStore_PersistFailureIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	s := newTestStore(filepath.Join(blocker, "hostgate.json"))

	cfg, res, err := s.Load()
	if !errors.Is(err, domain.ErrConfigPersist) {
		t.Fatalf("Load() error = %v, want ErrConfigPersist", err)
	}
	if res != Defaulted || cfg == nil || cfg.Title != DefaultTitle {
		t.Errorf("Load() = (%+v, %v), want defaults applied", cfg, res)
	}
}

func TestStore_MalformedKeepsPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hostgate.json")
	good := `{"port": 8081, "routes": {"a.test": "./a"}}`
	if err := os.WriteFile(path, []byte(good), 0o644); err != nil {
		t.Fatal(err)
	}
	s := newTestStore(path)
	before, res, err := s.Load()
	if err != nil || res != Applied {
		t.Fatalf("Load() = (%v, %v)", res, err)
	}

	bad := `{"port": 8081, "routes": {"a.test": `
	if err := os.WriteFile(path, []byte(bad), 0o644); err != nil {
		t.Fatal(err)
	}

	after, res, err := s.Load()
	if !errors.Is(err, domain.ErrConfigMalformed) {
		t.Fatalf("Load() error = %v, want ErrConfigMalformed", err)
	}
	if res != NotApplied {
		t.Errorf("result = %v, want rejected", res)
	}
	if after != before || s.Current() != before {
		t.Error("malformed load replaced the live configuration")
	}

	data, _ := os.ReadFile(path)
	if string(data) != bad {
		t.Error("malformed file was overwritten")
	}
}

func TestStore_InvalidValuesRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hostgate.json")
	if err := os.WriteFile(path, []byte(`{"port": 70000}`), 0o644); err != nil {
		t.Fatal(err)
	}
	s := newTestStore(path)
	if _, res, err := s.Load(); res != NotApplied || err == nil {
		t.Errorf("Load() = (%v, %v), want rejected", res, err)
	}
	if s.Current().Port != DefaultPort {
		t.Errorf("Current().Port = %d, want default", s.Current().Port)
	}
}

func TestStore_EnvOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hostgate.json")
	if err := os.WriteFile(path, []byte(`{"port": 8081, "admin": {"port": 8090}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HGSTORE_ADMIN_PORT", "9999")

	s := NewStore(path, WithStoreLogger(logger.Nop()), WithEnvPrefix("HGSTORE_"))
	cfg, _, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Admin == nil || cfg.Admin.Port != 9999 {
		t.Errorf("Admin = %+v, want port 9999", cfg.Admin)
	}
}

func TestStore_EnvOverlayMixedCaseKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hostgate.json")
	doc := `{"preventCrash": false, "admin": {"port": 8090, "rateLimit": 1}}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HGSTORE_PREVENTCRASH", "true")
	t.Setenv("HGSTORE_ADMIN_RATELIMIT", "20")

	// Decoding is map-ordered, so a duplicate key would make this flaky.
	for i := 0; i < 20; i++ {
		s := NewStore(path, WithStoreLogger(logger.Nop()), WithEnvPrefix("HGSTORE_"))
		cfg, _, err := s.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if !cfg.PreventCrash {
			t.Fatal("PreventCrash = false, want the environment value")
		}
		if cfg.Admin == nil || cfg.Admin.RateLimit != 20 {
			t.Fatalf("Admin = %+v, want rateLimit 20", cfg.Admin)
		}
	}
}

func TestStore_MissingFileDefaultsTakeEnvOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hostgate.json")
	t.Setenv("HGSTORE_PORT", "9000")
	t.Setenv("HGSTORE_PREVENTCRASH", "true")

	s := NewStore(path, WithStoreLogger(logger.Nop()), WithEnvPrefix("HGSTORE_"))
	cfg, res, err := s.Load()
	if err != nil || res != Defaulted {
		t.Fatalf("Load() = (%v, %v), want defaulted", res, err)
	}
	if cfg.Port != 9000 || !cfg.PreventCrash {
		t.Errorf("cfg = %+v, want port 9000 and preventCrash from the environment", cfg)
	}
	if cfg.Routes["localhost"] != DefaultRouteTarget || cfg.Admin == nil {
		t.Errorf("cfg = %+v, want the default routes and admin console", cfg)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc File
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Port != DefaultPort || doc.PreventCrash {
		t.Errorf("persisted %+v, want the defaults without the overlay", doc)
	}
}

func TestParseDefaults_MatchesDefault(t *testing.T) {
	cfg, err := ParseDefaults("")
	if err != nil {
		t.Fatalf("ParseDefaults() error = %v", err)
	}
	want := Default()
	if cfg.Port != want.Port || cfg.Host != want.Host || cfg.Title != want.Title ||
		cfg.Admin.Addr() != want.Admin.Addr() || cfg.Security.Port != want.Security.Port ||
		cfg.TLSEnabled() != want.TLSEnabled() || cfg.Log != want.Log ||
		len(cfg.Routes) != len(want.Routes) {
		t.Errorf("ParseDefaults() = %+v, want %+v", cfg, want)
	}
}

func TestLoadResult_String(t *testing.T) {
	if Applied.String() != "applied" || Defaulted.String() != "defaulted" || NotApplied.String() != "rejected" {
		t.Error("unexpected LoadResult names")
	}
}
