// Package repl provides the interactive shell of hostgate-cli.
//
// Lines are sent to the admin console as typed. Unique command prefixes
// expand ("sl" becomes "slist"), and the history persists between runs.
package repl
