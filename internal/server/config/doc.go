// Package config provides the hostgate server configuration.
//
//   - spec.go: File (on-disk document) and Config (validated, immutable)
//   - default.go: the default document written on first run
//   - verify.go: validation and File to Config conversion
//   - summary.go: log attributes describing a Config
//   - store.go: Store, the holder of the live Config
//
// A Config is never mutated after Build returns it; reloads replace the
// whole value through Store.
package config
