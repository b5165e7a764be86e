package httpserver

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/yndnr/hostgate/internal/core/domain"
	"github.com/yndnr/hostgate/internal/core/handler"
	"github.com/yndnr/hostgate/internal/core/routing"
	"github.com/yndnr/hostgate/internal/telemetry/logger"
	"github.com/yndnr/hostgate/internal/telemetry/metric"
)

type fixture struct {
	dispatcher *Dispatcher
	cache      *handler.Cache
	loads      atomic.Int32
}

func newFixture(t *testing.T, routes map[string]domain.RouteTarget) *fixture {
	t.Helper()
	f := &fixture{}
	reg := handler.NewRegistry()
	reg.MustRegister(
		handler.Unit{ID: "echo", Load: func(context.Context, handler.Deps) (any, error) {
			f.loads.Add(1)
			return handler.HandlerFunc(func(x *handler.Exchange) error {
				_, err := io.WriteString(x.Writer, x.Scheme.String()+" "+x.Host+" "+string(x.Target))
				return err
			}), nil
		}},
		handler.Static("fails", handler.HandlerFunc(func(*handler.Exchange) error {
			return errors.New("database unavailable")
		})),
		handler.Static("fails-late", handler.HandlerFunc(func(x *handler.Exchange) error {
			x.Writer.WriteHeader(http.StatusAccepted)
			return errors.New("stream broke")
		})),
		handler.Static("panics", handler.HandlerFunc(func(*handler.Exchange) error {
			panic("nil map")
		})),
		handler.Static("not-a-handler", 7),
	)
	f.cache = handler.NewCache(reg, handler.WithLogger(logger.Nop()))
	tables := routing.Tables{
		Plain:  routing.NewTable(domain.Plain, routes),
		Secure: routing.NewTable(domain.Secure, nil),
	}
	f.dispatcher = NewDispatcher(domain.Plain, tables, f.cache, logger.Nop(), metric.NewRegistry())
	return f
}

func (f *fixture) do(host string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Host = host
	rec := httptest.NewRecorder()
	f.dispatcher.ServeHTTP(rec, req)
	return rec
}

func TestDispatcher_RoutesByHost(t *testing.T) {
	f := newFixture(t, map[string]domain.RouteTarget{"a.test": "echo"})

	rec := f.do("a.test:8080")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "http a.test echo" {
		t.Errorf("body = %q", got)
	}
	f.do("a.test")
	if n := f.loads.Load(); n != 1 {
		t.Errorf("loads = %d, want 1 across requests", n)
	}
}

func TestDispatcher_UnknownHost(t *testing.T) {
	f := newFixture(t, map[string]domain.RouteTarget{"a.test": "echo"})
	rec := f.do("b.test")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", rec.Body.String())
	}
	if f.loads.Load() != 0 {
		t.Error("unknown host triggered a load")
	}
}

func TestDispatcher_DefaultRoute(t *testing.T) {
	f := newFixture(t, map[string]domain.RouteTarget{domain.DefaultHost: "echo"})
	rec := f.do("anything.test")
	if rec.Code != http.StatusOK || rec.Body.String() != "http anything.test echo" {
		t.Errorf("default route answered %d %q", rec.Code, rec.Body.String())
	}
}

func TestDispatcher_Failures(t *testing.T) {
	f := newFixture(t, map[string]domain.RouteTarget{
		"fails.test":     "fails",
		"late.test":      "fails-late",
		"panics.test":    "panics",
		"broken.test":    "not-a-handler",
		"missing.test":   "no-such-unit",
		"traversal.test": "../outside",
	})

	tests := []struct {
		host   string
		status int
		code   string
	}{
		{"fails.test", http.StatusInternalServerError, domain.ErrHandlerRuntime.Code},
		{"late.test", http.StatusAccepted, ""},
		{"panics.test", http.StatusInternalServerError, domain.ErrHandlerRuntime.Code},
		{"broken.test", http.StatusBadGateway, domain.ErrHandlerLoad.Code},
		{"missing.test", http.StatusBadGateway, domain.ErrHandlerLoad.Code},
		{"traversal.test", http.StatusBadGateway, domain.ErrHandlerLoad.Code},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			rec := f.do(tt.host)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if got := rec.Header().Get("X-Error-Code"); got != tt.code {
				t.Errorf("X-Error-Code = %q, want %q", got, tt.code)
			}
		})
	}
	if f.cache.Len() != 3 {
		t.Errorf("cache holds %d entries, want only the 3 that loaded", f.cache.Len())
	}
}

type hijackRecorder struct {
	*httptest.ResponseRecorder
	conn net.Conn
}

func (h *hijackRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return h.conn, bufio.NewReadWriter(bufio.NewReader(h.conn), bufio.NewWriter(h.conn)), nil
}

func TestDispatcher_UpgradeHijacks(t *testing.T) {
	reg := handler.NewRegistry()
	reg.MustRegister(handler.Static("ws", handler.HandlerFunc(func(x *handler.Exchange) error {
		conn, buf, err := http.NewResponseController(x.Writer).Hijack()
		if err != nil {
			return err
		}
		buf.WriteString("HTTP/1.1 101 Switching Protocols\r\n\r\n")
		buf.Flush()
		return conn.Close()
	})))
	tables := routing.Tables{Plain: routing.NewTable(domain.Plain, map[string]domain.RouteTarget{"ws.test": "ws"})}
	d := Front(domain.Plain,
		NewDispatcher(domain.Plain, tables, handler.NewCache(reg, handler.WithLogger(logger.Nop())), logger.Nop(), nil),
		logger.Nop(), nil)

	client, server := net.Pipe()
	defer client.Close()
	rec := &hijackRecorder{ResponseRecorder: httptest.NewRecorder(), conn: server}
	req := httptest.NewRequest(http.MethodGet, "/socket", nil)
	req.Host = "ws.test"
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.ServeHTTP(rec, req)
	}()

	line, err := bufio.NewReader(client).ReadString('\n')
	if err != nil {
		t.Fatalf("ReadString() error = %v", err)
	}
	if !strings.HasPrefix(line, "HTTP/1.1 101") {
		t.Errorf("upgrade reply = %q", line)
	}
	<-done
	if rec.Header().Get("X-Error-Code") != "" {
		t.Error("hijacked connection got an error header")
	}
}

func TestHostOf(t *testing.T) {
	tests := map[string]string{
		"a.test":        "a.test",
		"a.test:8080":   "a.test",
		"127.0.0.1:80":  "127.0.0.1",
		"[::1]:443":     "::1",
		"[::1]":         "::1",
		"":              "",
		"UPPER.test:80": "UPPER.test",
	}
	for in, want := range tests {
		if got := HostOf(in); got != want {
			t.Errorf("HostOf(%q) = %q, want %q", in, got, want)
		}
	}
}
