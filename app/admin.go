package app

import (
	"strconv"
	"strings"

	"github.com/hashicorp/raft"
	"github.com/tidwall/match"
	"github.com/tidwall/redcon"
)

// nodeCommands run on the receiving node without touching the machine.
var nodeCommands = map[string]func(s *server, args []string) (interface{}, error){
	"raft":    cmdRAFT,
	"version": cmdVERSION,
}

// VERSION
func cmdVERSION(s *server, args []string) (interface{}, error) {
	if len(args) != 1 {
		return nil, ErrWrongNumArgs
	}
	return s.vers, nil
}

// RAFT subcommand args...
// help: calls a raft operation on this node.
func cmdRAFT(s *server, args []string) (interface{}, error) {
	if len(args) < 2 {
		return nil, errWrongNumArgsRaft
	}
	switch strings.ToLower(args[1]) {
	case "help":
		return raftHelp(args)
	case "leader":
		if len(args) != 2 {
			return nil, errWrongNumArgsRaft
		}
		return string(s.ra.Leader()), nil
	case "info":
		return s.raftInfo(args)
	case "server":
		return s.raftServer(args)
	case "snapshot":
		return s.raftSnapshot(args)
	}
	return nil, errUnknownSubcommand(args[:2])
}

func raftHelp(args []string) (interface{}, error) {
	if len(args) != 2 {
		return nil, errWrongNumArgsRaft
	}
	return []redcon.SimpleString{
		"RAFT LEADER",
		"RAFT INFO [pattern]",
		"RAFT SERVER LIST",
		"RAFT SERVER ADD id address",
		"RAFT SERVER REMOVE id",
		"RAFT SNAPSHOT NOW",
		"RAFT SNAPSHOT LIST",
	}, nil
}

// RAFT INFO [pattern]
// help: returns the raft stats and the machine status whose keys match
//       pattern; map[string]string
func (s *server) raftInfo(args []string) (interface{}, error) {
	pattern := "*"
	switch len(args) {
	case 2:
	case 3:
		pattern = args[2]
	default:
		return nil, errWrongNumArgsRaft
	}
	stats := s.ra.Stats()
	s.m.mu.RLock()
	for k, v := range s.m.status(false) {
		stats["machine_"+k] = v
	}
	stats["machine_applied_index"] = strconv.FormatUint(s.m.applied, 10)
	s.m.mu.RUnlock()
	info := make(map[string]string)
	for k, v := range stats {
		if match.Match(k, pattern) {
			info[k] = v
		}
	}
	return info, nil
}

// RAFT SERVER LIST|ADD id address|REMOVE id
func (s *server) raftServer(args []string) (interface{}, error) {
	if len(args) < 3 {
		return nil, errWrongNumArgsRaft
	}
	switch strings.ToLower(args[2]) {
	case "list":
		if len(args) != 3 {
			return nil, errWrongNumArgsRaft
		}
		f := s.ra.GetConfiguration()
		if err := f.Error(); err != nil {
			return nil, err
		}
		leader := s.ra.Leader()
		var list [][]string
		for _, srv := range f.Configuration().Servers {
			list = append(list, []string{
				"id", string(srv.ID),
				"address", string(srv.Address),
				"leader", strconv.FormatBool(srv.Address == leader),
			})
		}
		return list, nil
	case "add":
		if len(args) != 5 {
			return nil, errWrongNumArgsRaft
		}
		err := s.ra.AddVoter(raft.ServerID(args[3]),
			raft.ServerAddress(args[4]), 0, 0).Error()
		if err != nil {
			return nil, err
		}
		return redcon.SimpleString("OK"), nil
	case "remove":
		if len(args) != 4 {
			return nil, errWrongNumArgsRaft
		}
		err := s.ra.RemoveServer(raft.ServerID(args[3]), 0, 0).Error()
		if err != nil {
			return nil, err
		}
		return redcon.SimpleString("OK"), nil
	}
	return nil, errUnknownSubcommand(args[:3])
}

// RAFT SNAPSHOT NOW|LIST
// help: takes a snapshot, or lists the retained ones, describing the
//       generator each one holds; map[string]string or []map[string]string
func (s *server) raftSnapshot(args []string) (interface{}, error) {
	if len(args) != 3 {
		return nil, errWrongNumArgsRaft
	}
	switch strings.ToLower(args[2]) {
	case "now":
		f := s.ra.Snapshot()
		if err := f.Error(); err != nil {
			return nil, err
		}
		meta, rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return snapInfo(meta, rc)
	case "list":
		metas, err := s.m.snaps.List()
		if err != nil {
			return nil, err
		}
		list := make([]map[string]string, 0, len(metas))
		for _, meta := range metas {
			info, err := s.openSnapInfo(meta.ID)
			if err != nil {
				return nil, err
			}
			list = append(list, info)
		}
		return list, nil
	}
	return nil, errUnknownSubcommand(args[:3])
}

func (s *server) openSnapInfo(id string) (map[string]string, error) {
	meta, rc, err := s.m.snaps.Open(id)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return snapInfo(meta, rc)
}
