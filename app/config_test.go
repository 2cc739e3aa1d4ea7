package app

import (
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/raft"
)

func TestParseBackend(t *testing.T) {
	for _, b := range []Backend{MDBX, Memory} {
		got, err := ParseBackend(b.String())
		if err != nil || got != b {
			t.Fatalf("%s: got %v %v", b, got, err)
		}
	}
	if _, err := ParseBackend("leveldb"); err == nil {
		t.Fatal("expected an error")
	}
}

func TestParseCodec(t *testing.T) {
	for _, c := range []Codec{Gzip, LZ4, Zstd, Snappy} {
		got, err := ParseCodec(c.String())
		if err != nil || got != c {
			t.Fatalf("%s: got %v %v", c, got, err)
		}
	}
	if c, err := ParseCodec("ZSTD"); err != nil || c != Zstd {
		t.Fatalf("expected case insensitive names, got %v %v", c, err)
	}
	if _, err := ParseCodec("brotli"); err == nil {
		t.Fatal("expected an error")
	}
	if s := Codec(9).String(); s != "codec(9)" {
		t.Fatalf("unexpected %q", s)
	}
}

func TestConfigDefaults(t *testing.T) {
	var conf Config
	conf.def()
	if conf.Name != "tt800d" || conf.Addr != "127.0.0.1:11001" ||
		conf.MaxBatch != 1024 || conf.Backend != MDBX ||
		conf.SnapshotCodec != Gzip || conf.TickDelay != 500*time.Millisecond {
		t.Fatalf("unexpected defaults %+v", conf)
	}
	rconf := raftConfig(conf, hclog.NewNullLogger())
	if rconf.MaxAppendEntries != 1024 || rconf.LocalID != "1" {
		t.Fatalf("unexpected raft config %+v", rconf)
	}
	if err := raft.ValidateConfig(rconf); err != nil {
		t.Fatal(err)
	}
}

func TestParseFlags(t *testing.T) {
	var conf Config
	err := conf.ParseFlags([]string{
		"-n", "2", "-a", "127.0.0.1:12002", "-j", "127.0.0.1:12001",
		"--seed", "-1", "--backend", "memory", "--snapshot-codec", "lz4",
		"--max-batch", "64", "--tick", "50ms", "--nosync", "--localtime",
	})
	if err != nil {
		t.Fatal(err)
	}
	if conf.NodeID != "2" || conf.Addr != "127.0.0.1:12002" ||
		conf.JoinAddr != "127.0.0.1:12001" || !conf.HasSeed ||
		conf.Seed != 0xffffffff || conf.Backend != Memory ||
		conf.SnapshotCodec != LZ4 || conf.MaxBatch != 64 ||
		conf.TickDelay != 50*time.Millisecond || !conf.NoSync ||
		!conf.LocalTime {
		t.Fatalf("unexpected config %+v", conf)
	}

	conf = Config{Name: "tt800d", Version: "1.2.3", GitSHA: "abc"}
	if err := conf.ParseFlags([]string{"-v"}); err != nil || !conf.ShowVersion {
		t.Fatalf("expected -v to set ShowVersion, got %v", err)
	}
	if s := VersionLine(conf); s != "tt800d version 1.2.3 (abc)" {
		t.Fatalf("unexpected %q", s)
	}
}

func TestParseFlagsErrors(t *testing.T) {
	tests := [][]string{
		{"--seed", "4294967296"},
		{"--backend", "leveldb"},
		{"--snapshot-codec", "brotli"},
		{"--max-batch", "0"},
		{"--tick", "-1s"},
		{"--tls-cert", "cert.pem"},
		{"--restore", "backup.snap", "-j", "127.0.0.1:11001"},
		{"--advertise", "nohost"},
		{"-l", "loud"},
		{"extra"},
		{"--unknown"},
	}
	for _, args := range tests {
		var conf Config
		if err := conf.ParseFlags(args); err == nil {
			t.Fatalf("%v: expected an error", args)
		}
	}
}

func TestHclogLevel(t *testing.T) {
	tests := map[string]hclog.Level{
		"debug":  hclog.Debug,
		"verb":   hclog.Trace,
		"info":   hclog.Info,
		"notice": hclog.Info,
		"warn":   hclog.Warn,
		"silent": hclog.Off,
	}
	for name, want := range tests {
		got, err := hclogLevel(name)
		if err != nil || got != want {
			t.Fatalf("%s: got %v %v", name, got, err)
		}
	}
	if _, err := hclogLevel("loud"); err == nil {
		t.Fatal("expected an error")
	}
}

func TestTickSeeds(t *testing.T) {
	fixed := &tickSeeds{conf: Config{Seed: 99, HasSeed: true}}
	for i := 0; i < 3; i++ {
		if s := fixed.next(); s != 99 {
			t.Fatalf("expected 99, got %d", s)
		}
	}
	random := &tickSeeds{}
	seen := make(map[uint32]bool)
	for i := 0; i < 2048; i++ {
		seen[random.next()] = true
	}
	if len(seen) < 2000 {
		t.Fatalf("expected distinct crypto seeds, got %d", len(seen))
	}
}

func TestRemoteTime(t *testing.T) {
	remote := time.Now().Add(time.Hour)
	rt := &remoteTime{now: func() time.Time { return remote }}
	if !rt.sync() || !rt.Synced() {
		t.Fatal("expected a sync")
	}
	if d := rt.Now().Sub(time.Now()); d < 59*time.Minute || d > 61*time.Minute {
		t.Fatalf("unexpected offset %v", d)
	}
	failing := &remoteTime{now: func() time.Time { return time.Time{} }}
	if failing.sync() || failing.Synced() {
		t.Fatal("expected a failed sync")
	}
	local := &remoteTime{local: true}
	if d := time.Since(local.Now()); d < 0 || d > time.Second {
		t.Fatalf("unexpected local time drift %v", d)
	}
}
