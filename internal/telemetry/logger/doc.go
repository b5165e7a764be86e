// Package logger provides structured logging for hostgate.
//
//   - logger.go: slog-backed Logger, level parsing, process-wide default
//   - context.go: request id propagation through context.Context
//   - redact.go: masking of credential-like attributes
//
// Every component receives a Logger; nothing logs through the standard
// library log package.
package logger
