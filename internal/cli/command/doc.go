// Package command defines the hostgate-cli commands.
//
// Each console command has a CLI counterpart that opens a session, sends
// one line and renders the reply; "shell" keeps one session open for an
// interactive loop. It uses urfave/cli/v2 for command parsing.
package command
