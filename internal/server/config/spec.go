package config

import (
	"net"
	"net/netip"
	"strconv"

	"github.com/yndnr/hostgate/internal/core/domain"
)

// File is the configuration document as stored on disk.
type File struct {
	Host         string            `koanf:"host" json:"host"`
	Port         int               `koanf:"port" json:"port"`
	Title        string            `koanf:"title" json:"title"`
	PreventCrash bool              `koanf:"preventCrash" json:"preventCrash"`
	Routes       map[string]string `koanf:"routes" json:"routes"`
	Admin        *AdminFile        `koanf:"admin" json:"admin"`
	Security     *SecurityFile     `koanf:"security" json:"security,omitempty"`
	Persistent   []string          `koanf:"persistent" json:"persistent"`
	Log          *LogFile          `koanf:"log" json:"log,omitempty"`
	Ops          *OpsFile          `koanf:"ops" json:"ops,omitempty"`
	Watch        bool              `koanf:"watch" json:"watch,omitempty"`
}

// mixedCaseKeys are the document keys the environment overlay cannot spell
// in lower case.
var mixedCaseKeys = []string{"preventCrash", "admin/rateLimit"}

// AdminFile is the "admin" section. A null or absent section disables the
// admin console.
type AdminFile struct {
	Enabled   *bool    `koanf:"enabled" json:"enabled,omitempty"`
	Host      string   `koanf:"host" json:"host,omitempty"`
	Port      int      `koanf:"port" json:"port"`
	RateLimit float64  `koanf:"rateLimit" json:"rateLimit,omitempty"`
	Allow     []string `koanf:"allow" json:"allow,omitempty"`
}

// SecurityFile is the "security" section.
type SecurityFile struct {
	Key    string            `koanf:"key" json:"key"`
	Cert   string            `koanf:"cert" json:"cert"`
	Port   int               `koanf:"port" json:"port"`
	Routes map[string]string `koanf:"routes" json:"routes"`
}

// LogFile is the "log" section.
type LogFile struct {
	Level  string `koanf:"level" json:"level,omitempty"`
	Format string `koanf:"format" json:"format,omitempty"`
}

// OpsFile is the "ops" section.
type OpsFile struct {
	Addr string `koanf:"addr" json:"addr"`
}

// Config is a validated configuration. Values are shared between
// goroutines and must not be modified.
type Config struct {
	Host         string
	Port         int
	Title        string
	PreventCrash bool
	Routes       map[string]domain.RouteTarget

	// Admin is nil when the admin console is disabled.
	Admin *AdminConfig
	// Security is nil when the document has no security section.
	Security *SecurityConfig

	Persistent []string
	Log        LogConfig
	// Ops is nil when no ops listener is configured.
	Ops   *OpsConfig
	Watch bool
}

// AdminConfig configures the admin console listener.
type AdminConfig struct {
	Host      string
	Port      int
	RateLimit float64
	Allow     []netip.Prefix
}

// Addr returns the listen address.
func (a *AdminConfig) Addr() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// SecurityConfig configures the secure listener.
type SecurityConfig struct {
	Port   int
	Routes map[string]domain.RouteTarget
	// TLS is nil unless both key and certificate paths are configured.
	TLS *TLSFiles
}

// TLSFiles names the key and certificate files, relative to the server
// root unless absolute.
type TLSFiles struct {
	Key  string
	Cert string
}

// Enabled reports whether a secure listener should be started. A port
// without key material is not enough.
func (s *SecurityConfig) Enabled() bool {
	return s != nil && s.TLS != nil
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string
	Format string
}

// OpsConfig configures the ops listener.
type OpsConfig struct {
	Addr string
}

// PlainAddr returns the plain listener address.
func (c *Config) PlainAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// SecureAddr returns the secure listener address, or "" without a
// security section.
func (c *Config) SecureAddr() string {
	if c.Security == nil {
		return ""
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Security.Port))
}

// RoutesFor returns the route map for a scheme. The secure map is empty
// when there is no security section.
func (c *Config) RoutesFor(s domain.Scheme) map[string]domain.RouteTarget {
	if s == domain.Secure {
		if c.Security == nil {
			return nil
		}
		return c.Security.Routes
	}
	return c.Routes
}

// TLSEnabled reports whether the secure listener is configured.
func (c *Config) TLSEnabled() bool {
	return c.Security.Enabled()
}
