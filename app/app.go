package app

import (
	"os"
	"path/filepath"

	"github.com/moontrade/tt800/logger"
)

// Main runs a tt800d node until the listener fails. Startup failures are
// fatal.
func Main(conf Config) error {
	conf.def()
	if err := conf.validate(); err != nil {
		return err
	}
	hclogger := logInit(conf)
	clock := remoteTimeInit(conf)
	dir, restore := dataDirInit(conf)
	m := newMachine(conf, dir)
	if restore {
		if err := restoreBackup(conf.BackupPath, m); err != nil {
			logger.Fatal(err, "restore")
		}
	}
	tlscfg := tlsInit(conf)
	ln := listen(conf, tlscfg)
	self := conf.Advertise
	if self == "" {
		self = ln.Addr().String()
	}
	mx := newMux(ln, conf.Auth)
	trans := transportInit(conf, mx, tlscfg)
	logs, stable := storeInit(conf, dir)
	snaps := snapshotInit(dir, m, hclogger)
	ra := raftInit(conf, hclogger, m, logs, stable, snaps, trans)
	go mx.serve()
	raftBootstrap(conf, ra, self, tlscfg)

	go runApplier(m, ra, conf.MaxBatch)
	go runTicker(conf, clock, m, ra)
	if restore {
		go persistRestored(m, ra, conf.TickDelay)
	}
	return newServer(conf, m, ra).serve(mx.redis)
}

// dataDirInit creates the node directory. A backup is only restored into a
// directory that did not exist yet.
func dataDirInit(conf Config) (dir string, restore bool) {
	dir = filepath.Join(conf.DataDir, conf.Name, conf.NodeID)
	_, err := os.Stat(dir)
	existed := err == nil
	if err != nil && !os.IsNotExist(err) {
		logger.Fatal(err, "data directory")
	}
	if err := os.MkdirAll(dir, 0777); err != nil {
		logger.Fatal(err, "data directory")
	}
	if conf.BackupPath != "" && existed {
		logger.Warn("path", dir,
			"backup restore ignored, data directory already exists")
		return dir, false
	}
	return dir, conf.BackupPath != ""
}
