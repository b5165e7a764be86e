package adminserver

import (
	"reflect"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want Command
	}{
		{"list\n", Command{Name: "list"}},
		{"reroute a.test\r\n", Command{Name: "reroute", Params: "a.test", HasParams: true}},
		{"uncache lib/db extra words", Command{Name: "uncache", Params: "lib/db extra words", HasParams: true}},
		{"  help  ", Command{Name: "help"}},
		{"reroute  a.test", Command{Name: "reroute", Params: " a.test", HasParams: true}},
		{"", Command{}},
	}
	for _, tt := range tests {
		if got := ParseCommand(tt.line); got != tt.want {
			t.Errorf("ParseCommand(%q) = %+v, want %+v", tt.line, got, tt.want)
		}
	}
}

func TestCommand_String(t *testing.T) {
	if got := ParseCommand("sreroute b.test").String(); got != "sreroute b.test" {
		t.Errorf("String() = %q", got)
	}
	if got := ParseCommand("ressl").String(); got != "ressl" {
		t.Errorf("String() = %q", got)
	}
}

func TestTerminal(t *testing.T) {
	for _, line := range []string{ReplyDone, ReplyFailed, ReplyUnknownHost, ReplyBye, ReplyRateLimited, Unrecognized("zap")} {
		if !Terminal(line) {
			t.Errorf("Terminal(%q) = false", line)
		}
	}
	for _, line := range []string{"a.test: routes/welcome", RemovingPrefix + "x", WarningPrefix + "x", Greeting} {
		if Terminal(line) {
			t.Errorf("Terminal(%q) = true", line)
		}
	}
}

func TestUnrecognized(t *testing.T) {
	if got := Unrecognized("zap"); got != `unrecognized command "zap"` {
		t.Errorf("Unrecognized() = %q", got)
	}
}

func TestHelp(t *testing.T) {
	list := Help("", false)
	if len(list) != 2 || list[0] != "Command list:" {
		t.Fatalf("Help() = %v", list)
	}
	if got := Help("reroute", true); !reflect.DeepEqual(got[len(got)-1], "reroute HOST") {
		t.Errorf("Help(reroute) = %v", got)
	}
	if got := Help("nonsense", true); got != nil {
		t.Errorf("Help(nonsense) = %v, want nothing", got)
	}
	for _, c := range Commands {
		if len(Help(c, true)) == 0 {
			t.Errorf("command %s has no help", c)
		}
	}
}
