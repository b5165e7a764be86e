package config

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"

	"github.com/yndnr/hostgate/internal/core/domain"
	"github.com/yndnr/hostgate/internal/telemetry/logger"
)

// Verify validates a document.
func Verify(f *File) error {
	var errs []error

	if err := verifyPort("port", f.Port); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, verifyRoutes("routes", f.Routes)...)

	if f.Admin != nil {
		if err := verifyPort("admin.port", f.Admin.Port); err != nil {
			errs = append(errs, err)
		}
		if f.Admin.RateLimit < 0 {
			errs = append(errs, errors.New("admin.rateLimit must not be negative"))
		}
		for _, a := range f.Admin.Allow {
			if _, err := parseAllow(a); err != nil {
				errs = append(errs, fmt.Errorf("admin.allow: %w", err))
			}
		}
	}

	if f.Security != nil {
		if err := verifyPort("security.port", f.Security.Port); err != nil {
			errs = append(errs, err)
		}
		errs = append(errs, verifyRoutes("security.routes", f.Security.Routes)...)
	}

	for i, id := range f.Persistent {
		if strings.TrimSpace(id) == "" {
			errs = append(errs, fmt.Errorf("persistent[%d] is empty", i))
		}
	}

	if f.Log != nil {
		if f.Log.Level != "" && !logger.ValidLevel(f.Log.Level) {
			errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", f.Log.Level))
		}
		switch strings.ToLower(f.Log.Format) {
		case "", "json", "text", "console":
		default:
			errs = append(errs, fmt.Errorf("log.format %q is not json or text", f.Log.Format))
		}
	}

	if f.Ops != nil && f.Ops.Addr != "" {
		if _, _, err := net.SplitHostPort(f.Ops.Addr); err != nil {
			errs = append(errs, fmt.Errorf("ops.addr: %w", err))
		}
	}

	return errors.Join(errs...)
}

func verifyPort(name string, port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("%s %d out of range", name, port)
	}
	return nil
}

func verifyRoutes(name string, routes map[string]string) []error {
	var errs []error
	for host, target := range routes {
		if host == "" {
			errs = append(errs, fmt.Errorf("%s has an empty hostname", name))
		}
		if strings.TrimSpace(target) == "" {
			errs = append(errs, fmt.Errorf("%s[%s] has an empty target", name, host))
		}
	}
	return errs
}

func parseAllow(s string) (netip.Prefix, error) {
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Prefix{}, err
		}
		return p.Masked(), nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// Build verifies f and converts it into a Config, filling values the
// document leaves out.
func Build(f *File) (*Config, error) {
	if f == nil {
		return nil, domain.ErrConfigMalformed.WithDetails("empty document")
	}
	if err := Verify(f); err != nil {
		return nil, domain.ErrConfigMalformed.WithCause(err)
	}

	cfg := &Config{
		Host:         f.Host,
		Port:         f.Port,
		Title:        f.Title,
		PreventCrash: f.PreventCrash,
		Routes:       targets(f.Routes),
		Persistent:   append([]string(nil), f.Persistent...),
		Log:          LogConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
		Watch:        f.Watch,
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = FallbackPort
	}
	if cfg.Title == "" {
		cfg.Title = DefaultTitle
	}

	if a := f.Admin; a != nil && (a.Enabled == nil || *a.Enabled) {
		admin := &AdminConfig{Host: a.Host, Port: a.Port, RateLimit: a.RateLimit}
		if admin.Host == "" {
			admin.Host = DefaultAdminHost
		}
		if admin.Port == 0 {
			admin.Port = DefaultAdminPort
		}
		for _, s := range a.Allow {
			p, _ := parseAllow(s)
			admin.Allow = append(admin.Allow, p)
		}
		cfg.Admin = admin
	}

	if s := f.Security; s != nil {
		sec := &SecurityConfig{Port: s.Port, Routes: targets(s.Routes)}
		if sec.Port == 0 {
			sec.Port = FallbackSecurePort
		}
		if s.Key != "" && s.Cert != "" {
			sec.TLS = &TLSFiles{Key: s.Key, Cert: s.Cert}
		}
		cfg.Security = sec
	}

	if f.Log != nil {
		if f.Log.Level != "" {
			cfg.Log.Level = strings.ToLower(f.Log.Level)
		}
		if f.Log.Format != "" {
			cfg.Log.Format = strings.ToLower(f.Log.Format)
		}
	}

	if f.Ops != nil && f.Ops.Addr != "" {
		cfg.Ops = &OpsConfig{Addr: f.Ops.Addr}
	}

	return cfg, nil
}

func targets(routes map[string]string) map[string]domain.RouteTarget {
	out := make(map[string]domain.RouteTarget, len(routes))
	for host, target := range routes {
		out[host] = domain.RouteTarget(target)
	}
	return out
}
