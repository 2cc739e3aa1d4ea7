package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/moontrade/tt800/app"
	"github.com/moontrade/tt800/logger"
)

// set with -ldflags "-X main.version=... -X main.gitsha=..."
var (
	version = "0.1.0"
	gitsha  = ""
)

func main() {
	conf := app.Config{Name: "tt800d", Version: version, GitSHA: gitsha}
	if err := conf.ParseFlags(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if conf.ShowVersion {
		fmt.Println(app.VersionLine(conf))
		return
	}
	logger.Fatal(app.Main(conf))
}
