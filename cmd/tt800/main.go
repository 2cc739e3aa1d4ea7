// Command tt800 prints lines of TT800 output, each holding a word, a 31-bit
// integer and a float drawn in that order. The values come from a local
// generator, or from a tt800d cluster when -remote is set.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
	"unsafe"

	"github.com/gomodule/redigo/redis"
	"github.com/moontrade/tt800/app"
	"github.com/moontrade/tt800/logger"
	"github.com/moontrade/tt800/tt800"
)

type drawer interface {
	dump() (string, error)
	line() (word uint32, n int32, f float64, err error)
}

type localDrawer struct{ g *tt800.Generator }

func (d localDrawer) dump() (string, error) { return d.g.Dump(), nil }

func (d localDrawer) line() (uint32, int32, float64, error) {
	return d.g.NextWord(), d.g.NextInt31(), d.g.NextFloat(), nil
}

type remoteDrawer struct{ conn redis.Conn }

func (d remoteDrawer) dump() (string, error) {
	return redis.String(d.conn.Do("dumpstate"))
}

func (d remoteDrawer) line() (uint32, int32, float64, error) {
	d.conn.Send("urand")
	d.conn.Send("rand")
	d.conn.Send("drand")
	if err := d.conn.Flush(); err != nil {
		return 0, 0, 0, err
	}
	w, err := redis.Int64(d.conn.Receive())
	if err != nil {
		return 0, 0, 0, err
	}
	n, err := redis.Int64(d.conn.Receive())
	if err != nil {
		return 0, 0, 0, err
	}
	s, err := redis.String(d.conn.Receive())
	if err != nil {
		return 0, 0, 0, err
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, 0, 0, err
	}
	return uint32(w), int32(n), f, nil
}

// entropySeed mixes the process id, the wall clock and a stack address.
// It is good enough to make runs differ and nothing more.
func entropySeed() uint32 {
	junk := uint64(0xdeadbeef)
	p := uint32(uintptr(unsafe.Pointer(&junk)))
	now := time.Now()
	return uint32(os.Getpid())<<16 ^ uint32(now.Unix()) ^
		uint32(now.Nanosecond()/1000) ^ (p & 0xffff00)
}

func run(w io.Writer, d drawer, n int, dump bool) error {
	bw := bufio.NewWriter(w)
	if dump {
		s, err := d.dump()
		if err != nil {
			return err
		}
		bw.WriteString(s)
	}
	for i := 0; i < n; i++ {
		word, n31, f, err := d.line()
		if err != nil {
			return err
		}
		fmt.Fprintf(bw, "0x%08x 0x%08x %f\n", word, n31, f)
	}
	return bw.Flush()
}

func main() {
	var (
		seedArg = flag.String("seed", "", "32-bit seed (default: process entropy)")
		n       = flag.Int("n", 10000, "number of lines")
		dump    = flag.Bool("dump", true, "print the generator state first")
		remote  = flag.String("remote", "", "draw from a tt800d server at addr")
		auth    = flag.String("auth", "", "tt800d auth token")
	)
	flag.Parse()
	logger.SetConsoleWriter()

	var seed uint32
	if *seedArg != "" {
		v, err := strconv.ParseInt(*seedArg, 0, 64)
		if err != nil || v < -1<<31 || v > 1<<32-1 {
			logger.Fatal(fmt.Errorf("invalid seed: %s", *seedArg))
		}
		seed = uint32(v)
	} else if *remote == "" {
		seed = entropySeed()
	}

	var d drawer
	if *remote != "" {
		conn, err := app.Dial(*remote, *auth, nil)
		if err != nil {
			logger.Fatal(err, "dial", *remote)
		}
		defer conn.Close()
		if *seedArg != "" {
			if _, err := conn.Do("seed", seed); err != nil {
				logger.Fatal(err, "seed")
			}
		}
		d = remoteDrawer{conn}
	} else {
		d = localDrawer{tt800.New(seed)}
	}
	if err := run(os.Stdout, d, *n, *dump); err != nil {
		logger.Fatal(err)
	}
}
