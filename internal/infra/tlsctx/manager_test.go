package tlsctx

import (
	"crypto/tls"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yndnr/hostgate/internal/core/domain"
	"github.com/yndnr/hostgate/internal/infra/confine"
	"github.com/yndnr/hostgate/internal/infra/tlsctx/tlstest"
	"github.com/yndnr/hostgate/internal/telemetry/logger"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	root, err := confine.NewRoot(dir)
	if err != nil {
		t.Fatalf("NewRoot() error = %v", err)
	}
	return NewManager(root, WithLogger(logger.Nop()), WithDebounce(50*time.Millisecond)), dir
}

func TestManager_Load(t *testing.T) {
	m, dir := newTestManager(t)
	if m.Ready() {
		t.Fatal("Ready() before Load")
	}
	if _, err := m.GetCertificate(&tls.ClientHelloInfo{}); !errors.Is(err, domain.ErrTLSMaterialUnavailable) {
		t.Errorf("GetCertificate() error = %v, want ErrTLSMaterialUnavailable", err)
	}

	cert, key := tlstest.WriteKeyPair(t, dir, "server", "a.test")
	if err := m.Load(Files{Key: key, Cert: cert}); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !m.Ready() {
		t.Error("Ready() = false after Load")
	}
	got, err := m.TLSConfig().GetCertificate(&tls.ClientHelloInfo{})
	if err != nil || got == nil {
		t.Fatalf("GetCertificate() = %v, %v", got, err)
	}
	if cn := m.Leaf().Subject.CommonName; cn != "a.test" {
		t.Errorf("Leaf CN = %q, want a.test", cn)
	}
	if files, _ := m.Files(); files.Cert != cert {
		t.Errorf("Files() = %+v", files)
	}
}

func TestManager_FailedRefreshKeepsPrevious(t *testing.T) {
	m, dir := newTestManager(t)
	cert, key := tlstest.WriteKeyPair(t, dir, "server", "a.test")
	if err := m.Load(Files{Key: key, Cert: cert}); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	before, _ := m.GetCertificate(nil)

	if err := os.WriteFile(filepath.Join(dir, cert), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := m.Refresh(); !errors.Is(err, domain.ErrTLSMaterialUnavailable) {
		t.Errorf("Refresh() error = %v, want ErrTLSMaterialUnavailable", err)
	}
	after, _ := m.GetCertificate(nil)
	if after != before {
		t.Error("failed refresh replaced the certificate")
	}
}

func TestManager_Refresh(t *testing.T) {
	m, dir := newTestManager(t)
	if err := m.Refresh(); !errors.Is(err, domain.ErrTLSMaterialUnavailable) {
		t.Errorf("Refresh() without Load error = %v", err)
	}

	cert, key := tlstest.WriteKeyPair(t, dir, "server", "old.test")
	if err := m.Load(Files{Key: key, Cert: cert}); err != nil {
		t.Fatal(err)
	}
	tlstest.WriteKeyPair(t, dir, "server", "new.test")
	if err := m.Refresh(); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if cn := m.Leaf().Subject.CommonName; cn != "new.test" {
		t.Errorf("Leaf CN = %q after refresh, want new.test", cn)
	}
}

func TestManager_LoadRejects(t *testing.T) {
	m, dir := newTestManager(t)
	cert, key := tlstest.WriteKeyPair(t, dir, "server", "a.test")

	tests := []struct {
		name  string
		files Files
		want  error
	}{
		{"missing key", Files{Cert: cert}, domain.ErrTLSMaterialUnavailable},
		{"absent files", Files{Key: "nope.key", Cert: "nope.crt"}, domain.ErrTLSMaterialUnavailable},
		{"escaping key", Files{Key: "../../etc/ssl/private.key", Cert: cert}, domain.ErrPathOutsideRoot},
		{"mismatched pair", Files{Key: key, Cert: key}, domain.ErrTLSMaterialUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := m.Load(tt.files); !errors.Is(err, tt.want) {
				t.Errorf("Load() error = %v, want %v", err, tt.want)
			}
		})
	}
	if m.Ready() {
		t.Error("Ready() after only failed loads")
	}
}

func TestManager_WatchReloadsOnChange(t *testing.T) {
	m, dir := newTestManager(t)
	if err := m.Watch(); err == nil {
		t.Error("Watch() before Load succeeded")
	}

	cert, key := tlstest.WriteKeyPair(t, dir, "server", "old.test")
	if err := m.Load(Files{Key: key, Cert: cert}); err != nil {
		t.Fatal(err)
	}
	if err := m.Watch(); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	defer m.Stop()

	time.Sleep(50 * time.Millisecond)
	tlstest.WriteKeyPair(t, dir, "server", "new.test")

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if m.Leaf().Subject.CommonName == "new.test" {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Errorf("certificate not reloaded, CN still %q", m.Leaf().Subject.CommonName)
}

func TestManager_StopWithoutWatch(t *testing.T) {
	m, _ := newTestManager(t)
	m.Stop()
	m.Stop()
}
