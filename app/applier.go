package app

import (
	"bytes"
	"errors"
	"time"

	"github.com/golang/snappy"
	"github.com/hashicorp/raft"
	"github.com/tidwall/sds"
)

var errMalformedBatch = errors.New("malformed batch")

// proposal is a write command waiting for its log entry to be applied.
type proposal struct {
	args []string
	res  result
	done chan struct{}
}

func newProposal(args []string) *proposal {
	return &proposal{args: args, done: make(chan struct{})}
}

func (p *proposal) resolve(res result) {
	p.res = res
	close(p.done)
}

func (p *proposal) wait() (interface{}, time.Duration, error) {
	<-p.done
	return p.res.v, p.res.elapsed, p.res.err
}

// encodeBatch packs commands into one snappy block: the command count,
// then for each command its arg count and args, all as sds records.
func encodeBatch(cmds [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := sds.NewWriter(&buf)
	if err := w.WriteUvarint(uint64(len(cmds))); err != nil {
		return nil, err
	}
	for _, args := range cmds {
		if err := w.WriteUvarint(uint64(len(args))); err != nil {
			return nil, err
		}
		for _, arg := range args {
			if err := w.WriteString(arg); err != nil {
				return nil, err
			}
		}
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return snappy.Encode(nil, buf.Bytes()), nil
}

func decodeBatch(data []byte) ([][]string, error) {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, err
	}
	r := sds.NewReader(bytes.NewReader(raw))
	n, err := r.ReadUvarint()
	if err != nil || n > uint64(len(raw)) {
		return nil, errMalformedBatch
	}
	cmds := make([][]string, n)
	for i := range cmds {
		nargs, err := r.ReadUvarint()
		if err != nil || nargs == 0 || nargs > uint64(len(raw)) {
			return nil, errMalformedBatch
		}
		args := make([]string, nargs)
		for j := range args {
			if args[j], err = r.ReadString(); err != nil {
				return nil, errMalformedBatch
			}
		}
		cmds[i] = args
	}
	return cmds, nil
}

// runApplier drains pending proposals into log entries of at most maxBatch
// commands each and resolves them with the results of machine.Apply.
func runApplier(m *machine, ra *raft.Raft, maxBatch int) {
	for {
		batch := []*proposal{<-m.props}
	gather:
		for len(batch) < maxBatch {
			select {
			case p := <-m.props:
				batch = append(batch, p)
			default:
				break gather
			}
		}
		results, err := applyBatch(ra, batch)
		for i, p := range batch {
			if err != nil {
				p.resolve(result{err: err})
			} else {
				p.resolve(results[i])
			}
		}
	}
}

func applyBatch(ra *raft.Raft, batch []*proposal) ([]result, error) {
	cmds := make([][]string, len(batch))
	for i, p := range batch {
		cmds[i] = p.args
	}
	data, err := encodeBatch(cmds)
	if err != nil {
		return nil, err
	}
	f := ra.Apply(data, 0)
	if err := f.Error(); err != nil {
		return nil, err
	}
	return f.Response().([]result), nil
}
