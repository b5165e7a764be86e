package command

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/hostgate/internal/cli/output"
)

// Route is one line of a list or slist reply.
type Route struct {
	Host   string `json:"host" yaml:"host"`
	Target string `json:"target" yaml:"target"`
}

// RouteList renders as a HOST/TARGET table.
type RouteList []Route

// Table implements output.Tabular.
func (l RouteList) Table() *output.Table {
	t := output.NewTable("HOST", "TARGET")
	for _, r := range l {
		t.AddRow(r.Host, r.Target)
	}
	return t
}

// ParseRoutes reads "host: target" lines.
func ParseRoutes(lines []string) (RouteList, error) {
	routes := make(RouteList, 0, len(lines))
	for _, l := range lines {
		host, target, ok := strings.Cut(l, ": ")
		if !ok {
			return nil, fmt.Errorf("malformed route line %q", l)
		}
		routes = append(routes, Route{Host: host, Target: target})
	}
	return routes, nil
}

// Removed is the reply to uncache.
type Removed struct {
	Units []string `json:"removed" yaml:"removed"`
}

// Table implements output.Tabular.
func (r Removed) Table() *output.Table {
	t := output.NewTable("REMOVED")
	for _, id := range r.Units {
		t.AddRow(id)
	}
	return t
}

func listCommand(name, usage string) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Action: func(c *cli.Context) error {
			reply, flags, err := run(c, name)
			if err != nil {
				return err
			}
			routes, err := ParseRoutes(reply.Body())
			if err != nil {
				return err
			}
			return output.NewFormatter(flags.Output).Format(c.App.Writer, routes)
		},
	}
}

// ListCommand lists the HTTP routes.
func ListCommand() *cli.Command {
	return listCommand("list", "List HTTP routes")
}

// SListCommand lists the HTTPS routes.
func SListCommand() *cli.Command {
	return listCommand("slist", "List HTTPS routes")
}

// ReconfigCommand reloads the server configuration.
func ReconfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "reconfig",
		Usage: "Reload the server configuration file",
		Action: func(c *cli.Context) error {
			if _, _, err := run(c, "reconfig"); err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, "configuration reloaded")
			return nil
		},
	}
}

func rerouteCommand(name, usage string) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "HOST",
		Action: func(c *cli.Context) error {
			host := c.Args().First()
			if host == "" || c.NArg() > 1 {
				return fmt.Errorf("%s takes exactly one HOST", name)
			}
			if _, _, err := run(c, name+" "+host); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "rerouted %s\n", host)
			return nil
		},
	}
}

// RerouteCommand drops the cached HTTP handler of a host.
func RerouteCommand() *cli.Command {
	return rerouteCommand("reroute", "Reload the HTTP handler of HOST on its next request")
}

// SRerouteCommand drops the cached HTTPS handler of a host.
func SRerouteCommand() *cli.Command {
	return rerouteCommand("sreroute", "Reload the HTTPS handler of HOST on its next request")
}

// ResslCommand reloads the TLS key pair.
func ResslCommand() *cli.Command {
	return &cli.Command{
		Name:  "ressl",
		Usage: "Reload the HTTPS key and certificate",
		Action: func(c *cli.Context) error {
			if _, _, err := run(c, "ressl"); err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, "tls material reloaded")
			return nil
		},
	}
}

// UncacheCommand drops a unit and its dependents.
func UncacheCommand() *cli.Command {
	return &cli.Command{
		Name:      "uncache",
		Usage:     "Drop a loaded unit and everything depending on it",
		ArgsUsage: "ID",
		Action: func(c *cli.Context) error {
			id := c.Args().First()
			if id == "" || c.NArg() > 1 {
				return fmt.Errorf("uncache takes exactly one ID")
			}
			reply, flags, err := run(c, "uncache "+id)
			if err != nil {
				return err
			}
			var removed Removed
			for _, l := range reply.Body() {
				if unit, ok := strings.CutPrefix(l, "removing "); ok {
					removed.Units = append(removed.Units, unit)
				}
			}
			return output.NewFormatter(flags.Output).Format(c.App.Writer, removed)
		},
	}
}

// HelpCommand prints the console's help.
func HelpCommand() *cli.Command {
	return &cli.Command{
		Name:      "help",
		Usage:     "Show console help, or help for one command",
		ArgsUsage: "[COMMAND]",
		Action: func(c *cli.Context) error {
			line := "help"
			if topic := c.Args().First(); topic != "" {
				line += " " + topic
			}
			reply, _, err := run(c, line)
			if err != nil {
				return err
			}
			return output.NewFormatter(output.FormatTable).Format(c.App.Writer, reply.Body())
		},
	}
}
