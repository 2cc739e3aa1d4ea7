package app

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/raft"
	"github.com/moontrade/tt800/logger"
	"github.com/moontrade/tt800/tt800"
)

// machine is the raft FSM. It owns the cluster generator and clock, which
// only change inside Apply. Read commands hold mu.RLock and never draw.
type machine struct {
	mu       sync.RWMutex
	gen      tt800.Generator // persisted
	start    int64           // persisted, timestamp of the first tick
	ts       int64           // persisted, timestamp of the last tick
	draws    uint64          // persisted, words drawn by writes
	lastSeed uint32          // persisted
	applied  uint64          // last applied log index
	ticked   uint64          // index of the last tick sent by this node

	dir   string             // node data directory
	codec Codec              // snapshot compression
	snaps raft.SnapshotStore // set by snapshotInit
	props chan *proposal     // drained by runApplier
}

func newMachine(conf Config, dir string) *machine {
	return &machine{
		dir:   dir,
		codec: conf.SnapshotCodec,
		props: make(chan *proposal, conf.MaxBatch),
	}
}

// install replaces the persisted fields with those of a snapshot.
func (m *machine) install(h *snapHead) {
	m.start = h.start
	m.ts = h.ts
	m.draws = h.draws
	m.lastSeed = h.lastSeed
	m.gen = h.generator()
}

// A command runs against the machine. Writes ('w') only run from Apply,
// reads ('r') run on the leader under the read lock.
type command struct {
	kind byte
	fn   func(m *machine, args []string) (interface{}, error)
}

var machineCommands = map[string]command{
	"tick":      {'w', cmdTICK},
	"seed":      {'w', cmdSEED},
	"urand":     {'w', cmdURAND},
	"rand":      {'w', cmdRAND},
	"drand":     {'w', cmdDRAND},
	"setstate":  {'w', cmdSETSTATE},
	"getstate":  {'r', cmdGETSTATE},
	"dumpstate": {'r', cmdDUMPSTATE},
	"machine":   {'r', cmdMACHINE},
}

// result is the outcome of one command of an applied batch.
type result struct {
	v       interface{}
	elapsed time.Duration
	err     error
}

// Apply runs every command of the batch in l and returns a []result.
func (m *machine) Apply(l *raft.Log) interface{} {
	batch, err := decodeBatch(l.Data)
	if err != nil {
		logger.Panic(err, "index", l.Index, "corrupt log entry")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applied = l.Index
	results := make([]result, len(batch))
	for i, args := range batch {
		results[i] = m.apply(l, args)
	}
	return results
}

func (m *machine) apply(l *raft.Log, args []string) result {
	name := strings.ToLower(args[0])
	cmd, ok := machineCommands[name]
	if !ok || cmd.kind != 'w' {
		logger.Panic(fmt.Errorf("'%s' is not a write command", name),
			"index", l.Index, "corrupt log entry")
	}
	if m.start == 0 && name != "tick" {
		// Nothing is known about the clock or seed until the first tick.
		return result{err: raft.ErrNotLeader}
	}
	start := time.Now()
	v, err := cmd.fn(m, args)
	if name == "tick" && err == nil {
		v = l.Index
	}
	return result{v, time.Since(start), err}
}

// TICK timestamp seed
// help: advances the machine clock. The first tick of a cluster also seeds
//       the generator. Only the ticker of the leader sends it.
func cmdTICK(m *machine, args []string) (interface{}, error) {
	if len(args) != 3 {
		return nil, ErrWrongNumArgs
	}
	ts, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return nil, ErrSyntax
	}
	if ts <= m.ts {
		return nil, errors.New("timestamp is not monotonic")
	}
	seed, err := parseSeed(args[2])
	if err != nil {
		return nil, err
	}
	m.ts = ts
	if m.start == 0 {
		m.start = ts
	}
	if !m.gen.Seeded() {
		m.gen.Seed(seed)
		m.lastSeed = seed
		logger.Notice("seed", seed, "generator seeded")
	}
	return nil, nil
}

// MACHINE [HUMAN]
// help: returns the machine clock and generator status; map[string]string
func cmdMACHINE(m *machine, args []string) (interface{}, error) {
	var human bool
	switch len(args) {
	case 1:
	case 2:
		switch strings.ToLower(args[1]) {
		case "human", "h":
			human = true
		default:
			return nil, ErrSyntax
		}
	default:
		return nil, ErrWrongNumArgs
	}
	return m.status(human), nil
}

func (m *machine) status(human bool) map[string]string {
	st := map[string]string{
		"seeded": strconv.FormatBool(m.gen.Seeded()),
		"seed":   strconv.FormatUint(uint64(m.lastSeed), 10),
		"cursor": strconv.Itoa(m.gen.GetState().Cursor),
		"draws":  strconv.FormatUint(m.draws, 10),
	}
	if human {
		st["now"] = time.Unix(0, m.ts).UTC().Format(time.RFC3339Nano)
		st["boottime"] = time.Unix(0, m.start).UTC().Format(time.RFC3339Nano)
		st["uptime"] = time.Duration(m.ts - m.start).String()
	} else {
		st["now"] = strconv.FormatInt(m.ts, 10)
		st["boottime"] = strconv.FormatInt(m.start, 10)
		st["uptime"] = strconv.FormatInt(m.ts-m.start, 10)
	}
	return st
}
