package connection

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/hostgate/internal/server/adminserver"
)

// fakeConsole answers each command with the lines scripted for it.
func fakeConsole(t *testing.T, greeting string, script map[string][]string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				conn.Write([]byte(greeting + "\n"))
				sc := bufio.NewScanner(conn)
				for sc.Scan() {
					lines, ok := script[sc.Text()]
					if !ok {
						lines = []string{adminserver.Unrecognized(sc.Text())}
					}
					conn.Write([]byte(strings.Join(lines, "\n") + "\n"))
					if sc.Text() == "quit" {
						return
					}
				}
			}(conn)
		}
	}()
	return ln.Addr().String()
}

func TestAdminClient_Execute(t *testing.T) {
	addr := fakeConsole(t, adminserver.Greeting, map[string][]string{
		"list":      {"a.test: app/a", "localhost: routes/welcome", "done"},
		"reconfig":  {"warning: configuration rejected", "done"},
		"reroute x": {"unknown host"},
		"quit":      {"bye"},
	})
	c := NewAdminClient(addr, time.Second)
	defer c.Close()
	ctx := context.Background()

	r, err := c.Execute(ctx, "list")
	if err != nil {
		t.Fatalf("Execute(list) error = %v", err)
	}
	if r.Err() != nil {
		t.Errorf("Err() = %v, want nil", r.Err())
	}
	if len(r.Body()) != 2 || r.Body()[0] != "a.test: app/a" {
		t.Errorf("Body() = %v", r.Body())
	}

	r, err = c.Execute(ctx, "reconfig")
	if err != nil {
		t.Fatalf("Execute(reconfig) error = %v", err)
	}
	if w := r.Warnings(); len(w) != 1 || w[0] != "configuration rejected" {
		t.Errorf("Warnings() = %v", w)
	}
	if len(r.Body()) != 0 {
		t.Errorf("Body() = %v, want empty", r.Body())
	}

	r, err = c.Execute(ctx, "reroute x")
	if err != nil {
		t.Fatalf("Execute(reroute) error = %v", err)
	}
	if !errors.Is(r.Err(), ErrUnknownHost) {
		t.Errorf("Err() = %v, want ErrUnknownHost", r.Err())
	}

	r, err = c.Execute(ctx, "bogus")
	if err != nil {
		t.Fatalf("Execute(bogus) error = %v", err)
	}
	if r.Err() == nil || !strings.Contains(r.Err().Error(), `"bogus"`) {
		t.Errorf("Err() = %v, want unrecognized", r.Err())
	}

	r, err = c.Execute(ctx, "quit")
	if err != nil {
		t.Fatalf("Execute(quit) error = %v", err)
	}
	if r.Status != adminserver.ReplyBye {
		t.Errorf("Status = %q, want bye", r.Status)
	}
	if c.conn != nil {
		t.Error("session should be closed after bye")
	}
}

func TestAdminClient_RejectsForeignPeer(t *testing.T) {
	addr := fakeConsole(t, "+PONG", nil)
	c := NewAdminClient(addr, time.Second)

	err := c.Connect(context.Background())
	if !errors.Is(err, ErrNotGreeted) {
		t.Errorf("Connect() error = %v, want ErrNotGreeted", err)
	}
}

func TestAdminClient_RejectsLineBreaks(t *testing.T) {
	c := NewAdminClient("127.0.0.1:1", time.Second)
	if _, err := c.Execute(context.Background(), "list\nquit"); err == nil {
		t.Error("Execute() with a line break should fail")
	}
}

func TestAdminClient_ConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	c := NewAdminClient(addr, time.Second)
	if err := c.Connect(context.Background()); err == nil {
		c.Close()
		t.Error("Connect() to a closed port should fail")
	}
}

func TestReply_Err(t *testing.T) {
	tests := []struct {
		status string
		want   error
	}{
		{adminserver.ReplyDone, nil},
		{adminserver.ReplyBye, nil},
		{adminserver.ReplyUnknownHost, ErrUnknownHost},
		{adminserver.ReplyFailed, ErrFailed},
		{adminserver.ReplyRateLimited, ErrRateLimited},
		{adminserver.ReplyLineTooLong, ErrLineTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			r := &Reply{Status: tt.status}
			if err := r.Err(); !errors.Is(err, tt.want) {
				t.Errorf("Err() = %v, want %v", err, tt.want)
			}
		})
	}
}
