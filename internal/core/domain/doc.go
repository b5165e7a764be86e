// Package domain defines the core value types shared by every hostgate
// component.
//
// The types here have no IO dependencies:
//
//   - Scheme: connection class (plain or secure) fixed by the listener
//   - RouteTarget: opaque name of the handler unit serving a host
//   - Key: (scheme, hostname) pair used by the handler cache
//   - Errors: coded domain errors compared with errors.Is
package domain
