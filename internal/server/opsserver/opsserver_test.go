package opsserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/hostgate/internal/core/domain"
	"github.com/yndnr/hostgate/internal/core/handler"
	"github.com/yndnr/hostgate/internal/core/routing"
	"github.com/yndnr/hostgate/internal/infra/buildinfo"
	"github.com/yndnr/hostgate/internal/telemetry/metric"
)

type fakeSource struct{}

func (fakeSource) Routes(s domain.Scheme) []routing.Entry {
	if s == domain.Plain {
		return []routing.Entry{{Host: "a.test", Target: "routes/welcome"}}
	}
	return nil
}

func (fakeSource) CachedEntries() []*handler.Entry {
	return []*handler.Entry{{
		Key:      domain.Key{Scheme: domain.Plain, Host: "a.test"},
		Target:   "routes/welcome",
		UnitID:   "routes/welcome",
		Closure:  []string{"routes/welcome"},
		LoadedAt: time.Unix(1700000000, 0).UTC(),
	}}
}

func (fakeSource) TLSReady() bool { return false }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRoutes(t *testing.T) {
	h := NewHandler(fakeSource{}, metric.NewRegistry())
	rec := get(t, h, "/routes")
	require.Equal(t, http.StatusOK, rec.Code)

	var view RoutesView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, []routing.Entry{{Host: "a.test", Target: "routes/welcome"}}, view.Plain)
	assert.Empty(t, view.Secure)
	require.Len(t, view.Cached, 1)
	assert.Equal(t, "http", view.Cached[0].Scheme)
	assert.Equal(t, "routes/welcome", view.Cached[0].Unit)
	assert.Contains(t, rec.Body.String(), `"secure":[]`)
}

func TestHealth(t *testing.T) {
	rec := get(t, NewHandler(fakeSource{}, nil), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["tls_ready"])
}

func TestVersion(t *testing.T) {
	rec := get(t, NewHandler(fakeSource{}, nil), "/version")
	var info buildinfo.Info
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, buildinfo.Get(), info)
}

func TestMetrics(t *testing.T) {
	m := metric.NewRegistry()
	m.RecordUnknownHost("http")
	rec := get(t, NewHandler(fakeSource{}, m), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "hostgate_"), "metrics output should carry hostgate series")
}

func TestNotFoundAndMethods(t *testing.T) {
	h := NewHandler(fakeSource{}, nil)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/nope").Code)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/routes", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
