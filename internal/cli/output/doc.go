// Package output renders console replies for hostgate-cli.
//
// Data that knows its own tabular shape implements Tabular and renders as
// an aligned table; json and yaml render any value for scripting.
package output
