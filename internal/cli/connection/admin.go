package connection

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/yndnr/hostgate/internal/server/adminserver"
)

// DefaultAddr is the console address used when none is given.
const DefaultAddr = "127.0.0.1:8090"

// DefaultTimeout bounds dialing and each command round trip.
const DefaultTimeout = 10 * time.Second

// Reply errors.
var (
	ErrUnknownHost = errors.New("unknown host")
	ErrFailed      = errors.New("command failed")
	ErrRateLimited = errors.New("rate limited by server")
	ErrLineTooLong = errors.New("command line too long")
	ErrNotGreeted  = errors.New("peer is not a hostgate admin console")
)

// Reply is the server's answer to one command.
type Reply struct {
	// Lines are the body lines before Status, warnings included.
	Lines []string
	// Status is the terminal line.
	Status string
}

// Warnings returns the warning lines with their prefix removed.
func (r *Reply) Warnings() []string {
	var out []string
	for _, l := range r.Lines {
		if w, ok := strings.CutPrefix(l, adminserver.WarningPrefix); ok {
			out = append(out, w)
		}
	}
	return out
}

// Body returns the lines that are not warnings.
func (r *Reply) Body() []string {
	var out []string
	for _, l := range r.Lines {
		if !strings.HasPrefix(l, adminserver.WarningPrefix) {
			out = append(out, l)
		}
	}
	return out
}

// Err maps the terminal line to an error; "done" and "bye" are success.
func (r *Reply) Err() error {
	switch r.Status {
	case adminserver.ReplyDone, adminserver.ReplyBye:
		return nil
	case adminserver.ReplyUnknownHost:
		return ErrUnknownHost
	case adminserver.ReplyFailed:
		return ErrFailed
	case adminserver.ReplyRateLimited:
		return ErrRateLimited
	case adminserver.ReplyLineTooLong:
		return ErrLineTooLong
	}
	return errors.New(r.Status)
}

// AdminClient is one console session. It is not safe for concurrent use.
type AdminClient struct {
	addr    string
	timeout time.Duration

	conn   net.Conn
	reader *bufio.Reader
}

// NewAdminClient creates a client for the console at addr.
func NewAdminClient(addr string, timeout time.Duration) *AdminClient {
	if addr == "" {
		addr = DefaultAddr
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &AdminClient{addr: addr, timeout: timeout}
}

// Addr returns the console address.
func (c *AdminClient) Addr() string {
	return c.addr
}

// Connect dials the console and consumes its greeting.
func (c *AdminClient) Connect(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	d := net.Dialer{Timeout: c.timeout}
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("connect %s: %w", c.addr, err)
	}
	reader := bufio.NewReader(conn)

	conn.SetReadDeadline(time.Now().Add(c.timeout))
	greeting, err := readLine(reader)
	if err != nil {
		conn.Close()
		return fmt.Errorf("read greeting: %w", err)
	}
	if greeting != adminserver.Greeting {
		conn.Close()
		return fmt.Errorf("%w: %q", ErrNotGreeted, greeting)
	}

	c.conn = conn
	c.reader = reader
	return nil
}

// Close ends the session.
func (c *AdminClient) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.reader = nil
	return err
}

// Execute sends one command line and reads its reply. A transport error
// closes the session; the next Execute reconnects.
func (c *AdminClient) Execute(ctx context.Context, line string) (*Reply, error) {
	if strings.ContainsAny(line, "\r\n") {
		return nil, fmt.Errorf("command contains a line break")
	}
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.conn.SetDeadline(deadline)

	if _, err := c.conn.Write([]byte(line + "\n")); err != nil {
		c.Close()
		return nil, fmt.Errorf("send: %w", err)
	}

	reply := &Reply{}
	for {
		l, err := readLine(c.reader)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("read reply: %w", err)
		}
		if adminserver.Terminal(l) {
			reply.Status = l
			break
		}
		reply.Lines = append(reply.Lines, l)
	}
	if reply.Status == adminserver.ReplyBye {
		c.Close()
	}
	return reply, nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
