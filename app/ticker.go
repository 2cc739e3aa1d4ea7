package app

import (
	"crypto/rand"
	"encoding/binary"
	"strconv"
	"time"

	"github.com/hashicorp/raft"
	"github.com/moontrade/tt800/logger"
)

// tickSeeds supplies the seed argument of each tick. A configured seed is
// always used, otherwise seeds are drawn from crypto/rand in 4KB chunks.
type tickSeeds struct {
	conf Config
	buf  []byte
	rnb  []byte
}

func (ts *tickSeeds) next() uint32 {
	if ts.conf.HasSeed {
		return ts.conf.Seed
	}
	if len(ts.rnb) == 0 {
		if ts.buf == nil {
			ts.buf = make([]byte, 4096)
		}
		if _, err := rand.Read(ts.buf); err != nil {
			logger.Panic(err, "seed entropy")
		}
		ts.rnb = ts.buf
	}
	seed := binary.LittleEndian.Uint32(ts.rnb)
	ts.rnb = ts.rnb[4:]
	return seed
}

// tickArgs returns the next tick command. Timestamps never go backwards,
// even when the clock of a new leader is behind the machine clock.
func (m *machine) tickArgs(now time.Time, seed uint32) []string {
	ts := now.UnixNano()
	m.mu.RLock()
	if ts <= m.ts {
		ts = m.ts + 1
	}
	m.mu.RUnlock()
	return []string{
		"tick",
		strconv.FormatInt(ts, 10),
		strconv.FormatUint(uint64(seed), 10),
	}
}

// runTicker proposes a tick every conf.TickDelay while this node leads.
// The index of the last committed tick gates reads; followers keep it zero.
func runTicker(conf Config, clock *remoteTime, m *machine, ra *raft.Raft) {
	seeds := &tickSeeds{conf: conf}
	for {
		start := time.Now()
		var index uint64
		if ra.State() == raft.Leader {
			p := newProposal(m.tickArgs(clock.Now(), seeds.next()))
			m.props <- p
			if v, _, err := p.wait(); err == nil {
				index, _ = v.(uint64)
			}
		}
		m.mu.Lock()
		m.ticked = index
		m.mu.Unlock()
		delay := conf.TickDelay - time.Since(start)
		if delay < time.Millisecond {
			delay = time.Millisecond
		}
		time.Sleep(delay)
	}
}
