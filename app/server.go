package app

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/hashicorp/raft"
	"github.com/tidwall/redcon"
)

// server answers redis protocol clients. Writes are proposed to the raft
// log, reads run on the leader and node commands run locally.
type server struct {
	m    *machine
	ra   *raft.Raft
	auth string
	vers string
	mon  *monitor
}

func newServer(conf Config, m *machine, ra *raft.Raft) *server {
	return &server{
		m:    m,
		ra:   ra,
		auth: conf.Auth,
		vers: versline(conf),
		mon:  newMonitor(),
	}
}

// client is the per connection state.
type client struct {
	authorized bool
	pending    *proposal // last write, waited on before reads
}

// reply is a command outcome that may still be in flight.
type reply interface {
	wait() (interface{}, time.Duration, error)
}

type ready result

func (r ready) wait() (interface{}, time.Duration, error) {
	return r.v, r.elapsed, r.err
}

type quit struct{}

type hijack func(dc redcon.DetachedConn)

func (s *server) serve(ln net.Listener) error {
	return redcon.Serve(ln, s.handle, s.accept, nil)
}

func (s *server) accept(conn redcon.Conn) bool {
	conn.SetContext(&client{authorized: s.auth == ""})
	return true
}

func commandArgs(cmd redcon.Command) []string {
	args := make([]string, len(cmd.Args))
	for i, arg := range cmd.Args {
		args[i] = string(arg)
	}
	args[0] = strings.ToLower(args[0])
	return args
}

// handle executes a command and the rest of its pipeline. Writes of the
// pipeline are proposed together before any reply is awaited, so they tend
// to share a log entry.
func (s *server) handle(conn redcon.Conn, cmd redcon.Command) {
	c := conn.Context().(*client)
	cmds := append([]redcon.Command{cmd}, conn.ReadPipeline()...)
	argv := make([][]string, 0, len(cmds))
	replies := make([]reply, 0, len(cmds))
	for _, cmd := range cmds {
		args := commandArgs(cmd)
		argv = append(argv, args)
		replies = append(replies, s.exec(c, args))
		if args[0] == "quit" || args[0] == "monitor" {
			break
		}
	}
	for i, r := range replies {
		v, elapsed, err := r.wait()
		err = clusterErr(s.ra, err)
		s.mon.send(message{
			addr:    conn.RemoteAddr(),
			args:    argv[i],
			err:     err,
			elapsed: elapsed,
		})
		switch v := v.(type) {
		case quit:
			conn.WriteString("OK")
			conn.Close()
			return
		case hijack:
			if err == nil {
				go v(conn.Detach())
				return
			}
		}
		if err != nil {
			conn.WriteAny(err)
		} else {
			conn.WriteAny(v)
		}
	}
}

func (s *server) exec(c *client, args []string) reply {
	switch args[0] {
	case "auth":
		if len(args) != 2 {
			return ready{err: ErrWrongNumArgs}
		}
		c.authorized = args[1] == s.auth
		if !c.authorized {
			return ready{err: ErrUnauthorized}
		}
		return ready{v: redcon.SimpleString("OK")}
	case "quit":
		return ready{v: quit{}}
	}
	if !c.authorized {
		return ready{err: ErrUnauthorized}
	}
	switch args[0] {
	case "ping":
		switch len(args) {
		case 1:
			return ready{v: redcon.SimpleString("PONG")}
		case 2:
			return ready{v: args[1]}
		}
		return ready{err: ErrWrongNumArgs}
	case "echo":
		if len(args) != 2 {
			return ready{err: ErrWrongNumArgs}
		}
		return ready{v: args[1]}
	case "monitor":
		if len(args) != 1 {
			return ready{err: ErrWrongNumArgs}
		}
		return ready{v: hijack(s.mon.stream)}
	}
	if fn, ok := nodeCommands[args[0]]; ok {
		s.settle(c)
		start := time.Now()
		v, err := fn(s, args)
		return ready{v, time.Since(start), err}
	}
	cmd, ok := machineCommands[args[0]]
	if !ok || args[0] == "tick" {
		return ready{err: fmt.Errorf("%w '%s'", ErrUnknownCommand, args[0])}
	}
	if cmd.kind == 'w' {
		p := newProposal(args)
		s.m.props <- p
		c.pending = p
		return p
	}
	s.settle(c)
	start := time.Now()
	v, err := s.read(cmd, args)
	return ready{v, time.Since(start), err}
}

// settle waits for the last write of the client to be applied.
func (s *server) settle(c *client) {
	if c.pending != nil {
		c.pending.wait()
		c.pending = nil
	}
}

// read runs a read command on the leader after its ticker has committed a
// tick of the current term, so the read follows every earlier write.
func (s *server) read(cmd command, args []string) (interface{}, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	if s.ra.State() != raft.Leader || s.m.ticked == 0 {
		return nil, raft.ErrNotLeader
	}
	return cmd.fn(s.m, args)
}
