package app

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"
)

// Config is the configuration of a tt800d node. Fill it with ParseFlags or
// by hand, then pass it to Main.
type Config struct {
	Name    string // default "tt800d"
	Version string // default "0.0.0"
	GitSHA  string

	NodeID    string // default "1"
	Addr      string // default "127.0.0.1:11001"
	Advertise string // address peers and clients use, default Addr
	DataDir   string // default "data"
	JoinAddr  string // leader of a cluster to join

	LogLevel  string    // default "info"
	LogOutput io.Writer // default os.Stderr

	Auth        string // shared by all servers and clients
	TLSCertPath string
	TLSKeyPath  string

	// Seed is applied by the first tick of a new cluster. When HasSeed is
	// false the ticker supplies a crypto random seed instead.
	Seed    uint32
	HasSeed bool

	Backend       Backend       // default MDBX
	SnapshotCodec Codec         // default Gzip
	MaxBatch      int           // write commands per log entry, default 1024
	MaxPool       int           // raft transport connections, default 8
	TickDelay     time.Duration // default 500ms
	NoSync        bool
	LocalTime     bool
	BackupPath    string // snapshot file to start a new cluster from

	ShowVersion bool // set by -v
}

// The Backend stores the raft log and the raft stable values.
type Backend int

const (
	// MDBX is an on-disk memory mapped b+tree database. This is the default.
	MDBX Backend = iota
	// Memory keeps the raft log in process memory. Everything except the
	// snapshots is lost when the process exits.
	Memory
)

// ParseBackend returns the backend for a --backend flag value.
func ParseBackend(name string) (Backend, error) {
	switch strings.ToLower(name) {
	case "mdbx":
		return MDBX, nil
	case "memory", "inmem":
		return Memory, nil
	}
	return 0, fmt.Errorf("invalid backend '%s'", name)
}

func (b Backend) String() string {
	switch b {
	case MDBX:
		return "mdbx"
	case Memory:
		return "memory"
	}
	return "unknown"
}

func (conf *Config) def() {
	if conf.Name == "" {
		conf.Name = "tt800d"
	}
	if conf.Version == "" {
		conf.Version = "0.0.0"
	}
	if conf.NodeID == "" {
		conf.NodeID = "1"
	}
	if conf.Addr == "" {
		conf.Addr = "127.0.0.1:11001"
	}
	if conf.DataDir == "" {
		conf.DataDir = "data"
	}
	if conf.LogLevel == "" {
		conf.LogLevel = "info"
	}
	if conf.LogOutput == nil {
		conf.LogOutput = os.Stderr
	}
	if conf.MaxBatch <= 0 {
		conf.MaxBatch = 1024
	}
	if conf.MaxPool <= 0 {
		conf.MaxPool = 8
	}
	if conf.TickDelay <= 0 {
		conf.TickDelay = 500 * time.Millisecond
	}
}

func versline(conf Config) string {
	if conf.GitSHA != "" {
		return fmt.Sprintf("%s version %s (%s)", conf.Name, conf.Version,
			conf.GitSHA)
	}
	return fmt.Sprintf("%s version %s", conf.Name, conf.Version)
}

// VersionLine returns the line printed by -v.
func VersionLine(conf Config) string {
	conf.def()
	return versline(conf)
}

const usage = `Usage: %s [-n id] [-a addr] [options]

  -v                 display version
  -n id              node ID  (default: 1)
  -a addr            bind address  (default: 127.0.0.1:11001)
  -d dir             data directory  (default: data)
  -j addr            address of a cluster member to join
  -l level           log level  (default: info) [debug,verb,info,warn,silent]
  --advertise addr   address announced to peers  (default: bind address)
  --auth auth        shared secret of servers and clients
  --tls-cert path    TLS certificate
  --tls-key path     TLS private key
  --seed seed        seed of the first tick of a new cluster  (default: random)
  --backend name     raft log store  (default: mdbx) [mdbx,memory]
  --snapshot-codec   snapshot compression  (default: gzip)
                     [gzip,lz4,zstd,snappy]
  --max-batch n      write commands per raft entry  (default: 1024)
  --tick dur         machine clock period  (default: 500ms)
  --nosync           do not sync the raft log after every write
  --localtime        use the local clock instead of internet time
  --restore path     start a new single node cluster from a snapshot file,
                     ignored when the data directory exists
`

// ParseFlags fills conf from command line arguments, without the program
// name. It returns flag.ErrHelp for -h.
func (conf *Config) ParseFlags(args []string) error {
	conf.def()
	fs := flag.NewFlagSet(conf.Name, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), usage, conf.Name)
	}
	var backend, codec, seed string
	fs.BoolVar(&conf.ShowVersion, "v", false, "")
	fs.StringVar(&conf.NodeID, "n", conf.NodeID, "")
	fs.StringVar(&conf.Addr, "a", conf.Addr, "")
	fs.StringVar(&conf.DataDir, "d", conf.DataDir, "")
	fs.StringVar(&conf.JoinAddr, "j", conf.JoinAddr, "")
	fs.StringVar(&conf.LogLevel, "l", conf.LogLevel, "")
	fs.StringVar(&conf.Advertise, "advertise", conf.Advertise, "")
	fs.StringVar(&conf.Auth, "auth", conf.Auth, "")
	fs.StringVar(&conf.TLSCertPath, "tls-cert", conf.TLSCertPath, "")
	fs.StringVar(&conf.TLSKeyPath, "tls-key", conf.TLSKeyPath, "")
	fs.StringVar(&seed, "seed", "", "")
	fs.StringVar(&backend, "backend", conf.Backend.String(), "")
	fs.StringVar(&codec, "snapshot-codec", conf.SnapshotCodec.String(), "")
	fs.IntVar(&conf.MaxBatch, "max-batch", conf.MaxBatch, "")
	fs.DurationVar(&conf.TickDelay, "tick", conf.TickDelay, "")
	fs.BoolVar(&conf.NoSync, "nosync", conf.NoSync, "")
	fs.BoolVar(&conf.LocalTime, "localtime", conf.LocalTime, "")
	fs.StringVar(&conf.BackupPath, "restore", conf.BackupPath, "")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected argument '%s'", fs.Arg(0))
	}
	var err error
	if conf.Backend, err = ParseBackend(backend); err != nil {
		return fmt.Errorf("flag --backend: %w", err)
	}
	if conf.SnapshotCodec, err = ParseCodec(codec); err != nil {
		return fmt.Errorf("flag --snapshot-codec: %w", err)
	}
	if seed != "" {
		if conf.Seed, err = parseSeed(seed); err != nil {
			return fmt.Errorf("flag --seed: %w", err)
		}
		conf.HasSeed = true
	}
	return conf.validate()
}

func (conf *Config) validate() error {
	if conf.MaxBatch <= 0 {
		return errors.New("flag --max-batch must be positive")
	}
	if conf.TickDelay <= 0 {
		return errors.New("flag --tick must be positive")
	}
	if (conf.TLSCertPath == "") != (conf.TLSKeyPath == "") {
		return errors.New("flags --tls-cert and --tls-key go together")
	}
	if conf.BackupPath != "" && conf.JoinAddr != "" {
		return errors.New("flags --restore and -j cannot be combined")
	}
	if conf.Advertise != "" {
		if _, _, err := net.SplitHostPort(conf.Advertise); err != nil {
			return fmt.Errorf("flag --advertise: %w", err)
		}
	}
	if _, err := hclogLevel(conf.LogLevel); err != nil {
		return fmt.Errorf("flag -l: %w", err)
	}
	return nil
}
