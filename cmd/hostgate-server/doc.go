// Package main provides the entry point for hostgate-server.
//
// The server fronts many hostnames on one HTTP and one HTTPS port,
// dispatching each request to the handler its route names, and exposes:
//
//   - a plain listener and, with key material, a secure listener
//   - a line-oriented admin console for reloading routes, TLS and handlers
//   - an optional ops listener with /metrics, /healthz and /routes
//
// Usage:
//
//	hostgate-server [flags]
//	hostgate-server -root /srv/hostgate -config hostgate.json
//
// SIGHUP reloads the configuration file; SIGINT and SIGTERM stop the server.
package main
