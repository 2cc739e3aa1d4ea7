package app

import (
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/raft"
	"github.com/moontrade/tt800/logger"
)

// raftConfig returns the raft settings for this node. Each log entry
// carries a whole batch of commands, so MaxAppendEntries follows MaxBatch.
func raftConfig(conf Config, hclogger hclog.Logger) *raft.Config {
	rconf := raft.DefaultConfig()
	rconf.LocalID = raft.ServerID(conf.NodeID)
	rconf.Logger = hclogger
	rconf.HeartbeatTimeout = 2 * time.Second
	rconf.ElectionTimeout = 2 * time.Second
	rconf.LeaderLeaseTimeout = time.Second
	rconf.CommitTimeout = 200 * time.Millisecond
	rconf.SnapshotInterval = 2 * time.Minute
	rconf.SnapshotThreshold = 8192
	rconf.TrailingLogs = 10240
	rconf.ShutdownOnRemove = true
	rconf.MaxAppendEntries = conf.MaxBatch
	if rconf.MaxAppendEntries <= 0 || rconf.MaxAppendEntries > 1024 {
		rconf.MaxAppendEntries = 1024
	}
	return rconf
}

func raftInit(conf Config, hclogger hclog.Logger, fsm raft.FSM,
	logs raft.LogStore, stable raft.StableStore, snaps raft.SnapshotStore,
	trans raft.Transport,
) *raft.Raft {
	ra, err := raft.NewRaft(raftConfig(conf, hclogger), fsm, logs, stable,
		snaps, trans)
	if err != nil {
		logger.Fatal(err, "raft start")
	}
	return ra
}

// clusterErr turns raft leadership errors into redis cluster replies.
func clusterErr(ra *raft.Raft, err error) error {
	switch err {
	case raft.ErrNotLeader, raft.ErrLeadershipLost,
		raft.ErrLeadershipTransferInProgress:
		if ra.State() == raft.Leader {
			// elected, but no tick has been applied yet
			return errors.New("TRYAGAIN the leader is starting")
		}
		if leader := ra.Leader(); leader != "" {
			return fmt.Errorf("MOVED 0 %s", leader)
		}
		return errors.New("CLUSTERDOWN no known leader")
	case raft.ErrRaftShutdown, raft.ErrTransportShutdown:
		return fmt.Errorf("CLUSTERDOWN %s", err)
	}
	return err
}

// movedAddr returns the address of a MOVED reply.
func movedAddr(err error) (string, bool) {
	parts := strings.Fields(err.Error())
	if len(parts) == 3 && parts[0] == "MOVED" {
		return parts[2], true
	}
	return "", false
}

// Dial connects to a tt800d server and authenticates when auth is set.
func Dial(addr, auth string, tlscfg *tls.Config) (redis.Conn, error) {
	opts := []redis.DialOption{redis.DialConnectTimeout(5 * time.Second)}
	if tlscfg != nil {
		opts = append(opts, redis.DialUseTLS(true),
			redis.DialTLSConfig(tlscfg))
	}
	if auth != "" {
		opts = append(opts, redis.DialPassword(auth))
	}
	return redis.Dial("tcp", addr, opts...)
}

// raftBootstrap starts a new cluster, joins the one at conf.JoinAddr, or
// does nothing when the node already has a configuration.
func raftBootstrap(conf Config, ra *raft.Raft, self string,
	tlscfg *tls.Config,
) {
	f := ra.GetConfiguration()
	if err := f.Error(); err != nil {
		logger.Fatal(err, "raft configuration")
	}
	servers := f.Configuration().Servers
	if len(servers) > 0 {
		if conf.JoinAddr != "" {
			logger.Warn("join ignored, node already belongs to a cluster")
		}
		for _, s := range servers {
			if string(s.ID) == conf.NodeID && string(s.Address) != self {
				logger.Fatal(fmt.Errorf("address changed from %s to %s",
					s.Address, self), "raft configuration")
			}
		}
		return
	}
	if conf.JoinAddr == "" {
		logger.Notice("bootstrapping new cluster")
		err := ra.BootstrapCluster(raft.Configuration{
			Servers: []raft.Server{{
				Suffrage: raft.Voter,
				ID:       raft.ServerID(conf.NodeID),
				Address:  raft.ServerAddress(self),
			}},
		}).Error()
		if err != nil && err != raft.ErrCantBootstrap {
			logger.Fatal(err, "bootstrap")
		}
		return
	}
	logger.Notice("addr", conf.JoinAddr, "joining cluster")
	if err := joinCluster(conf.JoinAddr, conf.Auth, conf.NodeID, self,
		tlscfg); err != nil {
		logger.Fatal(err, "join")
	}
}

// joinCluster asks the cluster at addr to add this node as a voter,
// following MOVED replies to the leader.
func joinCluster(addr, auth, id, self string, tlscfg *tls.Config) error {
	for hops := 0; hops < 8; hops++ {
		err := func() error {
			conn, err := Dial(addr, auth, tlscfg)
			if err != nil {
				return err
			}
			defer conn.Close()
			_, err = conn.Do("raft", "server", "add", id, self)
			return err
		}()
		leader, moved := "", false
		if err != nil {
			leader, moved = movedAddr(err)
		}
		if !moved {
			return err
		}
		addr = leader
		time.Sleep(100 * time.Millisecond)
	}
	return errors.New("too many redirects")
}
