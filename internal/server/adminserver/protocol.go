package adminserver

import (
	"fmt"
	"strings"
)

// Protocol text.
const (
	Greeting         = "hostgate admin console ready"
	ReplyDone        = "done"
	ReplyUnknownHost = "unknown host"
	ReplyFailed      = "failed"
	ReplyBye         = "bye"
	ReplyRateLimited = "rate limited"
	ReplyLineTooLong = "line too long"
	RemovingPrefix   = "removing "
	WarningPrefix    = "warning: "
	unrecognizedHead = "unrecognized command "
)

// MaxLineLength is the longest accepted command line, newline included.
const MaxLineLength = 4096

// Command is one parsed input line.
type Command struct {
	Name string
	// Params is everything after the first space. HasParams is false when
	// the line had no space at all.
	Params    string
	HasParams bool
}

// ParseCommand splits a line on its first space. Surrounding whitespace is
// dropped first.
func ParseCommand(line string) Command {
	text := strings.TrimSpace(line)
	name, params, found := strings.Cut(text, " ")
	return Command{Name: name, Params: params, HasParams: found}
}

// String renders the command back into a protocol line.
func (c Command) String() string {
	if !c.HasParams {
		return c.Name
	}
	return c.Name + " " + c.Params
}

// Unrecognized is the reply to an unknown command.
func Unrecognized(name string) string {
	return unrecognizedHead + fmt.Sprintf("%q", name)
}

// Terminal reports whether line ends a command's reply.
func Terminal(line string) bool {
	switch line {
	case ReplyDone, ReplyUnknownHost, ReplyFailed, ReplyBye, ReplyRateLimited, ReplyLineTooLong:
		return true
	}
	return strings.HasPrefix(line, unrecognizedHead)
}

// Commands lists the console commands in help order.
var Commands = []string{"help", "list", "slist", "reconfig", "quit", "reroute", "sreroute", "ressl", "uncache"}

var helpTopics = map[string][]string{
	"help":     {"Show the command list, or help for one command", "Usage:", "help [command]"},
	"list":     {`List all HTTP routes as "host: target"`},
	"slist":    {`List all HTTPS routes as "host: target"`},
	"reconfig": {"Reload the server configuration file"},
	"quit":     {"Close this admin session"},
	"reroute":  {"Drop the cached HTTP handler for a host so the next request loads it again", "Usage:", "reroute HOST"},
	"sreroute": {"Drop the cached HTTPS handler for a host so the next request loads it again", "Usage:", "sreroute HOST"},
	"ressl":    {"Reload the HTTPS key and certificate named by the current configuration"},
	"uncache":  {"Drop a loaded unit and every unit and handler depending on it", "Usage:", "uncache ID"},
}

// Help returns the help lines for topic. Without a topic it returns the
// command list; an unknown topic has no help. The console still ends the
// reply with its status line either way.
func Help(topic string, hasTopic bool) []string {
	if !hasTopic || topic == "" {
		return []string{"Command list:", strings.Join(Commands, ", ")}
	}
	return helpTopics[topic]
}
