// Package handler loads, caches and evicts the code units that answer
// requests.
//
// A route target names a Unit. Units come from a Source: the in-process
// Registry holds the built-in routes and anything linked into the binary,
// and PluginSource opens Go plugins from the server root. A unit declares
// the units it requires; loading a unit loads its requirements first and
// records the transitive set as its dependency closure.
//
// Cache keeps one Entry per (scheme, hostname). Evicting an entry removes
// every unit of its closure, and every unit or entry that depends on a
// removed unit, so the next request loads fresh code.
package handler
