package config

// Summary returns log attributes describing cfg. Route targets and TLS
// paths are not secret; admin allow lists are reduced to a count.
func Summary(cfg *Config) []any {
	attrs := []any{
		"plain_addr", cfg.PlainAddr(),
		"title", cfg.Title,
		"prevent_crash", cfg.PreventCrash,
		"routes", len(cfg.Routes),
		"persistent", len(cfg.Persistent),
		"tls_enabled", cfg.TLSEnabled(),
	}
	if cfg.Security != nil {
		attrs = append(attrs,
			"secure_addr", cfg.SecureAddr(),
			"secure_routes", len(cfg.Security.Routes),
		)
	}
	if cfg.Admin != nil {
		attrs = append(attrs, "admin_addr", cfg.Admin.Addr(), "admin_allow", len(cfg.Admin.Allow))
	} else {
		attrs = append(attrs, "admin_addr", "disabled")
	}
	if cfg.Ops != nil {
		attrs = append(attrs, "ops_addr", cfg.Ops.Addr)
	}
	return attrs
}
