package command

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/hostgate/internal/cli/repl"
	"github.com/yndnr/hostgate/internal/server/adminserver"
)

// ShellCommand starts an interactive console session.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "Open an interactive console session",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not read or write the history file",
			},
		},
		Action: shellAction,
	}
}

func shellAction(c *cli.Context) error {
	client, _, err := session(c)
	if err != nil {
		return err
	}
	defer client.Close()
	fmt.Fprintf(c.App.Writer, "connected to %s\n", client.Addr())

	exec := func(line string) (bool, error) {
		reply, err := client.Execute(c.Context, line)
		if err != nil {
			return false, err
		}
		if len(reply.Lines) > 0 {
			fmt.Fprintln(c.App.Writer, strings.Join(reply.Lines, "\n"))
		}
		if reply.Status == adminserver.ReplyBye {
			return true, nil
		}
		return false, reply.Err()
	}

	history := repl.NewHistory(repl.DefaultHistoryFile())
	if c.Bool("no-history") {
		history = repl.NewHistory("")
	}
	return repl.New(exec, adminserver.Commands,
		repl.WithIO(c.App.Reader, c.App.Writer),
		repl.WithHistory(history),
	).Run()
}
