package domain

import "fmt"

// Scheme is the connection class a request arrived on. It is fixed by the
// listener, never negotiated per request.
type Scheme int

const (
	// Plain is an unencrypted HTTP listener.
	Plain Scheme = iota
	// Secure is a TLS listener.
	Secure
)

// Schemes lists every scheme in listing order.
var Schemes = []Scheme{Plain, Secure}

// String returns the URL scheme name.
func (s Scheme) String() string {
	switch s {
	case Plain:
		return "http"
	case Secure:
		return "https"
	default:
		return fmt.Sprintf("scheme(%d)", int(s))
	}
}

// ParseScheme parses "http"/"plain" or "https"/"secure".
func ParseScheme(s string) (Scheme, error) {
	switch s {
	case "http", "plain":
		return Plain, nil
	case "https", "secure":
		return Secure, nil
	}
	return 0, ErrInvalidArgument.WithDetails(fmt.Sprintf("unknown scheme %q", s))
}

// DefaultHost is the reserved route key used when no exact hostname matches.
const DefaultHost = "default"

// RouteTarget names the handler unit responsible for a host.
type RouteTarget string

// String implements fmt.Stringer.
func (t RouteTarget) String() string { return string(t) }

// Key identifies one handler cache entry.
type Key struct {
	Scheme Scheme
	Host   string
}

// String returns "scheme://host".
func (k Key) String() string {
	return k.Scheme.String() + "://" + k.Host
}
