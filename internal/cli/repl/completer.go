package repl

import (
	"sort"
	"strings"
)

// Completer expands command prefixes.
type Completer struct {
	commands []string
}

// NewCompleter creates a completer over commands.
func NewCompleter(commands ...string) *Completer {
	c := &Completer{commands: append([]string(nil), commands...)}
	sort.Strings(c.commands)
	return c
}

// Complete returns the commands starting with prefix.
func (c *Completer) Complete(prefix string) []string {
	var suggestions []string
	for _, cmd := range c.commands {
		if strings.HasPrefix(cmd, prefix) {
			suggestions = append(suggestions, cmd)
		}
	}
	return suggestions
}

// Expand rewrites the command word of line when it is a unique prefix of a
// known command. Exact names and unknown words are left alone; ambiguous
// prefixes return the candidates.
func (c *Completer) Expand(line string) (string, []string) {
	name, rest, hasRest := strings.Cut(line, " ")
	matches := c.Complete(name)
	for _, m := range matches {
		if m == name {
			return line, nil
		}
	}
	switch len(matches) {
	case 0:
		return line, nil
	case 1:
		if hasRest {
			return matches[0] + " " + rest, nil
		}
		return matches[0], nil
	default:
		return line, matches
	}
}
