package app

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/redcon"
)

// message is one processed client command as seen by MONITOR.
type message struct {
	addr    string
	args    []string
	err     error
	elapsed time.Duration
}

// monitor fans processed commands out to the MONITOR connections.
type monitor struct {
	mu  sync.Mutex
	obs map[*observer]struct{}
}

type observer struct {
	mon *monitor
	c   chan message
}

func newMonitor() *monitor {
	return &monitor{obs: make(map[*observer]struct{})}
}

func (m *monitor) observe() *observer {
	o := &observer{mon: m, c: make(chan message, 64)}
	m.mu.Lock()
	m.obs[o] = struct{}{}
	m.mu.Unlock()
	return o
}

// stop is safe to call more than once.
func (o *observer) stop() {
	o.mon.mu.Lock()
	defer o.mon.mu.Unlock()
	if _, ok := o.mon.obs[o]; ok {
		delete(o.mon.obs, o)
		close(o.c)
	}
}

// send delivers msg to every observer. Observers that fall behind miss
// messages rather than stall the clients.
func (m *monitor) send(msg message) {
	if len(msg.args) > 0 {
		switch msg.args[0] {
		case "auth", "raft", "machine", "monitor":
			return
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for o := range m.obs {
		select {
		case o.c <- msg:
		default:
		}
	}
}

// stream writes every observed message to a detached MONITOR connection
// until the client sends anything or goes away.
func (m *monitor) stream(dc redcon.DetachedConn) {
	defer dc.Close()
	o := m.observe()
	defer o.stop()
	dc.WriteString("OK")
	if err := dc.Flush(); err != nil {
		return
	}
	go func() {
		dc.ReadCommand()
		o.stop()
	}()
	for msg := range o.c {
		dc.WriteString(formatMonitorMessage(msg))
		if err := dc.Flush(); err != nil {
			return
		}
	}
}

// formatMonitorMessage renders msg like the redis MONITOR output, with the
// elapsed time in place of the timestamp.
func formatMonitorMessage(msg message) string {
	var sb strings.Builder
	sb.WriteString(msg.elapsed.String())
	sb.WriteString(" [")
	sb.WriteString(msg.addr)
	sb.WriteByte(']')
	for _, arg := range msg.args {
		sb.WriteByte(' ')
		sb.WriteString(strconv.Quote(arg))
	}
	if msg.err != nil {
		sb.WriteString(" -> ")
		sb.WriteString(strconv.Quote(msg.err.Error()))
	}
	return sb.String()
}
