package httpserver

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/yndnr/hostgate/internal/infra/confine"
	"github.com/yndnr/hostgate/internal/infra/tlsctx"
	"github.com/yndnr/hostgate/internal/infra/tlsctx/tlstest"
	"github.com/yndnr/hostgate/internal/telemetry/logger"
)

func startServer(t *testing.T, s *Server) {
	t.Helper()
	if err := s.Listen(); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown() error = %v", err)
		}
		select {
		case err := <-errCh:
			if err != nil {
				t.Errorf("Serve() error = %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Serve() did not return after Shutdown")
		}
	})
}

var hello = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	io.WriteString(w, "hello "+HostOf(r.Host))
})

func TestServer_Plain(t *testing.T) {
	s := New("plain", "127.0.0.1:0", hello, WithLogger(logger.Nop()))
	if s.Addr() != nil {
		t.Error("Addr() before Listen should be nil")
	}
	startServer(t, s)

	resp, err := http.Get("http://" + s.Addr().String() + "/")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "hello 127.0.0.1" {
		t.Errorf("body = %q", body)
	}
}

func TestServer_ListenConflict(t *testing.T) {
	first := New("plain", "127.0.0.1:0", hello, WithLogger(logger.Nop()))
	startServer(t, first)

	second := New("plain", first.Addr().String(), hello, WithLogger(logger.Nop()))
	if err := second.Listen(); err == nil {
		t.Error("Listen() on a bound port succeeded")
	}
}

func TestServer_TLS(t *testing.T) {
	dir := t.TempDir()
	root, _ := confine.NewRoot(dir)
	cert, key := tlstest.WriteKeyPair(t, dir, "server", "localhost")
	mgr := tlsctx.NewManager(root, tlsctx.WithLogger(logger.Nop()))
	if err := mgr.Load(tlsctx.Files{Key: key, Cert: cert}); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	s := New("secure", "127.0.0.1:0", hello, WithTLS(mgr.TLSConfig()), WithLogger(logger.Nop()))
	startServer(t, s)

	client := &http.Client{Transport: &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}}
	resp, err := client.Get("https://" + s.Addr().String() + "/")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()
	if resp.TLS == nil || len(resp.TLS.PeerCertificates) == 0 {
		t.Fatal("response was not served over TLS")
	}
	if cn := resp.TLS.PeerCertificates[0].Subject.CommonName; cn != "localhost" {
		t.Errorf("peer CN = %q", cn)
	}
}
