package app

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/moontrade/tt800/logger"
)

// hclogLevel maps a -l flag value to the raft library log level.
func hclogLevel(level string) (hclog.Level, error) {
	switch level {
	case "debug":
		return hclog.Debug, nil
	case "verbose", "verb":
		return hclog.Trace, nil
	case "notice", "info":
		return hclog.Info, nil
	case "warning", "warn":
		return hclog.Warn, nil
	case "quiet", "silent":
		return hclog.Off, nil
	}
	return hclog.NoLevel, fmt.Errorf("invalid log level: %s", level)
}

func logInit(conf Config) hclog.Logger {
	level, err := hclogLevel(conf.LogLevel)
	if err == nil {
		err = logger.SetLevel(conf.LogLevel)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "flag -l: %v\n", err)
		os.Exit(1)
	}
	logger.SetConsoleOutput(conf.LogOutput, conf.LogOutput != os.Stderr)
	hclopts := *hclog.DefaultOptions
	hclopts.Name = "raft"
	hclopts.Level = level
	hclopts.Output = logger.RaftWriter
	logger.Warn("starting %s", versline(conf))
	return hclog.New(&hclopts)
}
