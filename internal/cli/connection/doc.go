// Package connection talks to the server's admin console.
//
// The console is a line protocol over TCP: the server greets, then answers
// each command line with zero or more body lines and one terminal line.
// AdminClient hides the framing and hands back a Reply per command.
package connection
