package app

import (
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/raft"
	"github.com/moontrade/tt800/tt800"
	"github.com/tidwall/redcon"
)

// seed 1: first words of the sequence
var seedOneWords = []redcon.SimpleInt{3630909024, 3844011704, 3736212019,
	1046470185}

func testMachine(t *testing.T) *machine {
	t.Helper()
	m := newMachine(Config{MaxBatch: 16}, t.TempDir())
	m.start = 1
	return m
}

func run(t *testing.T, m *machine, args ...string) interface{} {
	t.Helper()
	cmd, ok := machineCommands[args[0]]
	if !ok {
		t.Fatalf("unknown command %q", args[0])
	}
	v, err := cmd.fn(m, args)
	if err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return v
}

func apply(t *testing.T, m *machine, index uint64, cmds ...[]string) []result {
	t.Helper()
	data, err := encodeBatch(cmds)
	if err != nil {
		t.Fatal(err)
	}
	return m.Apply(&raft.Log{Index: index, Term: 1, Data: data}).([]result)
}

func TestGeneratorCommands(t *testing.T) {
	m := testMachine(t)
	if v := run(t, m, "seed", "1"); v != redcon.SimpleString("OK") {
		t.Fatalf("seed: got %v", v)
	}
	if v := run(t, m, "urand"); v != seedOneWords[0] {
		t.Fatalf("urand: expected %d, got %v", seedOneWords[0], v)
	}
	if v := run(t, m, "rand"); v != redcon.SimpleInt(1696528056) {
		t.Fatalf("rand: expected 1696528056, got %v", v)
	}
	if v := run(t, m, "drand"); v != "0.8699046492110938" {
		t.Fatalf("drand: got %v", v)
	}
	if m.draws != 3 {
		t.Fatalf("expected 3 draws, got %d", m.draws)
	}
	if m.lastSeed != 1 {
		t.Fatalf("expected last seed 1, got %d", m.lastSeed)
	}
}

func TestDrawCount(t *testing.T) {
	m := testMachine(t)
	run(t, m, "seed", "1")
	vals, ok := run(t, m, "urand", "3").([]interface{})
	if !ok || len(vals) != 3 {
		t.Fatalf("expected 3 values, got %v", vals)
	}
	for i, v := range vals {
		if v != seedOneWords[i] {
			t.Fatalf("value %d: expected %d, got %v", i, seedOneWords[i], v)
		}
	}
	for _, args := range [][]string{
		{"urand", "0"},
		{"urand", "-1"},
		{"rand", "1000001"},
		{"drand", "x"},
	} {
		if _, err := machineCommands[args[0]].fn(m, args); err != ErrInvalidCount {
			t.Fatalf("%v: expected ErrInvalidCount, got %v", args, err)
		}
	}
	if _, err := cmdURAND(m, []string{"urand", "1", "2"}); err != ErrWrongNumArgs {
		t.Fatalf("expected ErrWrongNumArgs, got %v", err)
	}
	if m.draws != 3 {
		t.Fatalf("failed draws were counted: %d", m.draws)
	}
}

func TestSeedArgument(t *testing.T) {
	tests := []struct {
		in   string
		seed uint32
		ok   bool
	}{
		{"0", 0, true},
		{"1", 1, true},
		{"4294967295", 0xffffffff, true},
		{"-1", 0xffffffff, true},
		{"-2147483648", 0x80000000, true},
		{"4294967296", 0, false},
		{"-2147483649", 0, false},
		{"1.5", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		seed, err := parseSeed(tt.in)
		if tt.ok != (err == nil) {
			t.Fatalf("%q: unexpected error %v", tt.in, err)
		}
		if tt.ok && seed != tt.seed {
			t.Fatalf("%q: expected %d, got %d", tt.in, tt.seed, seed)
		}
		if !tt.ok && err != ErrInvalidSeed {
			t.Fatalf("%q: expected ErrInvalidSeed, got %v", tt.in, err)
		}
	}
}

func TestStateCommands(t *testing.T) {
	m := testMachine(t)
	run(t, m, "seed", "42")
	run(t, m, "urand", "30")
	js := run(t, m, "getstate").(string)

	m2 := testMachine(t)
	run(t, m2, "setstate", js)
	if !m2.gen.Seeded() {
		t.Fatal("expected setstate to seed the generator")
	}
	for i := 0; i < 100; i++ {
		a := run(t, m, "urand")
		b := run(t, m2, "urand")
		if a != b {
			t.Fatalf("draw %d: %v != %v", i, a, b)
		}
	}
	dump := run(t, m, "dumpstate").(string)
	if !strings.HasPrefix(dump, "counter: ") {
		t.Fatalf("unexpected dump %q", dump)
	}
	if _, err := cmdSETSTATE(m2, []string{"setstate", "{}"}); err == nil {
		t.Fatal("expected error for an empty state")
	}
	if _, err := cmdGETSTATE(m2, []string{"getstate", "x"}); err != ErrWrongNumArgs {
		t.Fatalf("expected ErrWrongNumArgs, got %v", err)
	}
}

func TestApplyTick(t *testing.T) {
	m := newMachine(Config{MaxBatch: 16}, t.TempDir())
	res := apply(t, m, 1, []string{"urand"})
	if res[0].err != raft.ErrNotLeader {
		t.Fatalf("expected ErrNotLeader before the first tick, got %v",
			res[0].err)
	}
	res = apply(t, m, 2,
		[]string{"tick", "100", "1"},
		[]string{"urand"},
	)
	if res[0].err != nil {
		t.Fatal(res[0].err)
	}
	if index, ok := res[0].v.(uint64); !ok || index != 2 {
		t.Fatalf("tick result: %v", res[0].v)
	}
	if res[1].v != seedOneWords[0] {
		t.Fatalf("expected %d, got %v", seedOneWords[0], res[1].v)
	}
	// later ticks move time without reseeding
	res = apply(t, m, 3,
		[]string{"tick", "200", "7"},
		[]string{"urand"},
	)
	if res[1].v != seedOneWords[1] {
		t.Fatalf("expected %d, got %v", seedOneWords[1], res[1].v)
	}
	if m.start != 100 || m.ts != 200 || m.lastSeed != 1 || m.applied != 3 {
		t.Fatalf("start=%d ts=%d seed=%d applied=%d", m.start, m.ts,
			m.lastSeed, m.applied)
	}
	res = apply(t, m, 4, []string{"tick", "150", "1"})
	if res[0].err == nil {
		t.Fatal("expected a non monotonic tick to fail")
	}
	res = apply(t, m, 5, []string{"tick", "300", "x"})
	if res[0].err != ErrInvalidSeed {
		t.Fatalf("expected ErrInvalidSeed, got %v", res[0].err)
	}
	if m.ts != 200 {
		t.Fatalf("failed ticks moved the clock to %d", m.ts)
	}
}

func TestApplyRejectsReads(t *testing.T) {
	m := testMachine(t)
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic for a read command in the log")
		}
	}()
	apply(t, m, 1, []string{"getstate"})
}

func TestTickArgs(t *testing.T) {
	m := testMachine(t)
	m.ts = 5000
	args := m.tickArgs(time.Unix(0, 1000), 7)
	if args[0] != "tick" || args[1] != "5001" || args[2] != "7" {
		t.Fatalf("expected a monotonic tick, got %v", args)
	}
	args = m.tickArgs(time.Unix(0, 9000), 0xffffffff)
	if args[1] != "9000" || args[2] != "4294967295" {
		t.Fatalf("unexpected %v", args)
	}
}

func TestMachineStatus(t *testing.T) {
	m := testMachine(t)
	run(t, m, "seed", "5")
	run(t, m, "urand", "2")
	m.ts = 1 + 3e9
	status := run(t, m, "machine").(map[string]string)
	want := map[string]string{
		"seeded":   "true",
		"seed":     "5",
		"cursor":   "1",
		"draws":    "2",
		"boottime": "1",
		"uptime":   "3000000000",
	}
	for k, v := range want {
		if status[k] != v {
			t.Fatalf("%s: expected %q, got %q", k, v, status[k])
		}
	}
	human := run(t, m, "machine", "HUMAN").(map[string]string)
	if human["uptime"] != "3s" {
		t.Fatalf("expected 3s, got %q", human["uptime"])
	}
	if _, err := cmdMACHINE(m, []string{"machine", "json"}); err != ErrSyntax {
		t.Fatalf("expected ErrSyntax, got %v", err)
	}
}

func TestInstallSnapHead(t *testing.T) {
	src := tt800.New(1)
	m := testMachine(t)
	m.install(&snapHead{start: 10, ts: 20, draws: 3, lastSeed: 1,
		seeded: true, state: src.GetState()})
	if v := run(t, m, "urand"); v != seedOneWords[0] {
		t.Fatalf("expected %d, got %v", seedOneWords[0], v)
	}
	if m.start != 10 || m.ts != 20 || m.draws != 4 {
		t.Fatalf("start=%d ts=%d draws=%d", m.start, m.ts, m.draws)
	}
	m.install(&snapHead{})
	if m.gen.Seeded() {
		t.Fatal("expected an unseeded generator")
	}
}
