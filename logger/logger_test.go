package logger

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

func capture(fn func()) string {
	var buf bytes.Buffer
	prev := log
	SetWriter(&buf)
	defer SetLogger(prev)
	fn()
	return buf.String()
}

func TestFields(t *testing.T) {
	out := capture(func() {
		Warn("seed", uint32(7), "cursor", 24, "seeded generator")
	})
	if v := gjson.Get(out, "seed").Uint(); v != 7 {
		t.Fatalf("expected seed 7, got %s", out)
	}
	if v := gjson.Get(out, "cursor").Int(); v != 24 {
		t.Fatalf("expected cursor 24, got %s", out)
	}
	if v := gjson.Get(out, "message").String(); v != "seeded generator" {
		t.Fatalf("unexpected message in %s", out)
	}
	if v := gjson.Get(out, "severity").String(); v != "WARN" {
		t.Fatalf("unexpected severity in %s", out)
	}
}

func TestTemplate(t *testing.T) {
	out := capture(func() {
		Print("server listening at %s", "127.0.0.1:11001")
	})
	if v := gjson.Get(out, "message").String(); v != "server listening at 127.0.0.1:11001" {
		t.Fatalf("unexpected message in %s", out)
	}
}

func TestError(t *testing.T) {
	out := capture(func() {
		Error(errors.New("boom"), "snapshot failed")
	})
	if v := gjson.Get(out, "error").String(); v != "boom" {
		t.Fatalf("unexpected error in %s", out)
	}
	if v := gjson.Get(out, "severity").String(); v != "ERROR" {
		t.Fatalf("unexpected severity in %s", out)
	}
}

func TestParseRaftLine(t *testing.T) {
	level, msg, args := parseRaftLine(
		`2021-10-16T10:00:00.000Z [WARN]  raft: heartbeat timeout reached, starting election: last-leader=127.0.0.1:11002 term="3"` + "\n")
	if level != zerolog.WarnLevel {
		t.Fatalf("expected warn, got %v", level)
	}
	if msg != "heartbeat timeout reached, starting election" {
		t.Fatalf("unexpected msg %q", msg)
	}
	expected := []interface{}{"last-leader", "127.0.0.1:11002", "term", "3"}
	if len(args) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, args)
	}
	for i := range expected {
		if args[i] != expected[i] {
			t.Fatalf("expected %v, got %v", expected, args)
		}
	}

	level, msg, args = parseRaftLine("2021-10-16T10:00:00.000Z [INFO]  entering leader state")
	if level != zerolog.InfoLevel || msg != "entering leader state" || len(args) != 0 {
		t.Fatalf("unexpected parse %v %q %v", level, msg, args)
	}
}

func TestSetLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)
	for _, name := range []string{"debug", "verb", "info", "notice", "warn", "silent"} {
		if err := SetLevel(name); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
	}
	if err := SetLevel("loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestNotice(t *testing.T) {
	out := capture(func() {
		Notice("seed", uint32(1), "generator seeded")
	})
	if v := gjson.Get(out, "severity").String(); v != "NOTICE" {
		t.Fatalf("unexpected severity in %s", out)
	}
	if v := gjson.Get(out, "message").String(); v != "generator seeded" {
		t.Fatalf("unexpected message in %s", out)
	}
}

func TestRaftWriter(t *testing.T) {
	out := capture(func() {
		RaftWriter.Write([]byte(`2021-10-16T10:00:00.000Z [ERROR] raft: failed to contact: server-id=2 time="1.5s"` + "\n"))
	})
	if v := gjson.Get(out, "severity").String(); v != "ERROR" {
		t.Fatalf("unexpected severity in %s", out)
	}
	if v := gjson.Get(out, "server-id").String(); v != "2" {
		t.Fatalf("unexpected fields in %s", out)
	}
	if v := gjson.Get(out, "message").String(); v != "failed to contact" {
		t.Fatalf("unexpected message in %s", out)
	}
}
