package command

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/hostgate/internal/cli/connection"
	"github.com/yndnr/hostgate/internal/cli/output"
	"github.com/yndnr/hostgate/internal/infra/buildinfo"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "hostgate-cli",
		Usage:   "hostgate admin console client",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		// "help" is a console command; --help still works.
		HideHelpCommand: true,
		Commands: []*cli.Command{
			ListCommand(),
			SListCommand(),
			ReconfigCommand(),
			RerouteCommand(),
			SRerouteCommand(),
			ResslCommand(),
			UncacheCommand(),
			HelpCommand(),
			ShellCommand(),
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "admin",
			Aliases: []string{"a"},
			Usage:   "Admin console address",
			EnvVars: []string{"HOSTGATE_ADMIN"},
			Value:   connection.DefaultAddr,
		},
		&cli.DurationFlag{
			Name:    "timeout",
			Aliases: []string{"t"},
			Usage:   "Dial and per-command timeout",
			Value:   connection.DefaultTimeout,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   string(output.FormatTable),
		},
	}
}

// GlobalFlags holds the flags shared by all commands.
type GlobalFlags struct {
	Admin   string
	Timeout time.Duration
	Output  output.Format
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) (*GlobalFlags, error) {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return nil, err
	}
	return &GlobalFlags{
		Admin:   c.String("admin"),
		Timeout: c.Duration("timeout"),
		Output:  format,
	}, nil
}

// session opens a console session for one command.
func session(c *cli.Context) (*connection.AdminClient, *GlobalFlags, error) {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return nil, nil, err
	}
	client := connection.NewAdminClient(flags.Admin, flags.Timeout)
	ctx, cancel := context.WithTimeout(c.Context, flags.Timeout)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		return nil, nil, err
	}
	return client, flags, nil
}

// run sends line on a fresh session and returns the reply once the server
// answered with success.
func run(c *cli.Context, line string) (*connection.Reply, *GlobalFlags, error) {
	client, flags, err := session(c)
	if err != nil {
		return nil, nil, err
	}
	defer client.Close()

	reply, err := client.Execute(c.Context, line)
	if err != nil {
		return nil, nil, err
	}
	printWarnings(c, reply)
	if err := reply.Err(); err != nil {
		return reply, flags, fmt.Errorf("%s: %w", line, err)
	}
	return reply, flags, nil
}

func printWarnings(c *cli.Context, reply *connection.Reply) {
	for _, w := range reply.Warnings() {
		fmt.Fprintf(c.App.ErrWriter, "warning: %s\n", w)
	}
}
