package app

import (
	"errors"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/raft"
	"github.com/moontrade/tt800/logger"
	"github.com/moontrade/tt800/tt800"
	"github.com/tidwall/sds"
)

const snapMagic = "TT800S01"

var errSnapSignature = errors.New("invalid snapshot signature")

func snapshotInit(dir string, m *machine, hclogger hclog.Logger,
) raft.SnapshotStore {
	snaps, err := raft.NewFileSnapshotStoreWithLogger(dir, 3, hclogger)
	if err != nil {
		logger.Fatal(err, "snapshot store")
	}
	m.snaps = snaps
	return snaps
}

// snapHead is everything a snapshot persists.
type snapHead struct {
	start    int64
	ts       int64
	draws    uint64
	lastSeed uint32
	seeded   bool
	state    tt800.State
}

func (h *snapHead) generator() tt800.Generator {
	var gen tt800.Generator
	if h.seeded {
		gen.SetState(h.state)
	}
	return gen
}

// writeSnapshot writes the codec id followed by the compressed sds
// records: magic, start, ts, draws, last seed, seeded, binary state.
func writeSnapshot(w io.Writer, codec Codec, h *snapHead) error {
	cw, err := codec.newWriter(w)
	if err != nil {
		return err
	}
	state, err := h.state.MarshalBinary()
	if err != nil {
		return err
	}
	sw := sds.NewWriter(cw)
	for _, write := range []func() error{
		func() error { return sw.WriteString(snapMagic) },
		func() error { return sw.WriteInt64(h.start) },
		func() error { return sw.WriteInt64(h.ts) },
		func() error { return sw.WriteUint64(h.draws) },
		func() error { return sw.WriteUint32(h.lastSeed) },
		func() error { return sw.WriteBool(h.seeded) },
		func() error { return sw.WriteBytes(state) },
		sw.Flush,
		cw.Close,
	} {
		if err := write(); err != nil {
			return err
		}
	}
	return nil
}

// readSnapshot reads what writeSnapshot wrote.
func readSnapshot(r io.Reader) (*snapHead, Codec, error) {
	cr, codec, err := newCodecReader(r)
	if err != nil {
		return nil, codec, err
	}
	defer cr.Close()
	sr := sds.NewReader(cr)
	magic, err := sr.ReadString()
	if err != nil {
		return nil, codec, err
	}
	if magic != snapMagic {
		return nil, codec, errSnapSignature
	}
	h := new(snapHead)
	var state []byte
	for _, read := range []func() error{
		func() (err error) { h.start, err = sr.ReadInt64(); return },
		func() (err error) { h.ts, err = sr.ReadInt64(); return },
		func() (err error) { h.draws, err = sr.ReadUint64(); return },
		func() (err error) { h.lastSeed, err = sr.ReadUint32(); return },
		func() (err error) { h.seeded, err = sr.ReadBool(); return },
		func() (err error) { state, err = sr.ReadBytes(); return },
	} {
		if err := read(); err != nil {
			return nil, codec, err
		}
	}
	if err := h.state.UnmarshalBinary(state); err != nil {
		return nil, codec, err
	}
	return h, codec, nil
}

// snapInfo describes the snapshot read from r.
func snapInfo(meta *raft.SnapshotMeta, r io.Reader) (map[string]string,
	error,
) {
	h, codec, err := readSnapshot(r)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"id":        meta.ID,
		"index":     strconv.FormatUint(meta.Index, 10),
		"term":      strconv.FormatUint(meta.Term, 10),
		"size":      strconv.FormatInt(meta.Size, 10),
		"codec":     codec.String(),
		"timestamp": strconv.FormatInt(h.ts, 10),
		"seeded":    strconv.FormatBool(h.seeded),
		"seed":      strconv.FormatUint(uint64(h.lastSeed), 10),
		"cursor":    strconv.Itoa(h.state.Cursor),
		"draws":     strconv.FormatUint(h.draws, 10),
	}, nil
}

type fsmSnap struct {
	codec Codec
	head  snapHead
}

func (s *fsmSnap) Persist(sink raft.SnapshotSink) error {
	if err := writeSnapshot(sink, s.codec, &s.head); err != nil {
		sink.Cancel()
		return err
	}
	return sink.Close()
}

func (s *fsmSnap) Release() {}

func (m *machine) Snapshot() (raft.FSMSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return &fsmSnap{
		codec: m.codec,
		head: snapHead{
			start:    m.start,
			ts:       m.ts,
			draws:    m.draws,
			lastSeed: m.lastSeed,
			seeded:   m.gen.Seeded(),
			state:    m.gen.GetState(),
		},
	}, nil
}

func (m *machine) Restore(rc io.ReadCloser) error {
	defer rc.Close()
	h, _, err := readSnapshot(rc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.install(h)
	m.mu.Unlock()
	return nil
}

// restoreBackup loads a snapshot file into m before raft starts.
func restoreBackup(path string, m *machine) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	h, codec, err := readSnapshot(f)
	if err != nil {
		return err
	}
	m.install(h)
	logger.Notice("path", path, "codec", codec.String(), "draws", h.draws,
		"backup restored")
	return nil
}

// persistRestored snapshots a restored machine once the new cluster has
// applied an entry, so the backup survives a restart.
func persistRestored(m *machine, ra *raft.Raft, delay time.Duration) {
	for {
		time.Sleep(delay)
		m.mu.RLock()
		applied := m.applied
		m.mu.RUnlock()
		if applied == 0 {
			continue
		}
		if err := ra.Snapshot().Error(); err != nil {
			logger.WarnErr(err, "restored snapshot")
			continue
		}
		return
	}
}
