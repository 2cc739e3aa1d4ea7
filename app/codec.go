package app

import (
	"compress/gzip"
	"fmt"
	"io"
	"io/ioutil"
	"strings"

	"github.com/DataDog/zstd"
	"github.com/golang/snappy"
	"github.com/pierrec/lz4/v4"
)

// Codec is the compression applied to snapshot files. The codec id is
// written as the first byte of every snapshot so a restore never depends on
// the configuration of the node that wrote it.
type Codec byte

const (
	Gzip Codec = iota
	LZ4
	Zstd
	Snappy
)

var codecNames = [...]string{
	Gzip:   "gzip",
	LZ4:    "lz4",
	Zstd:   "zstd",
	Snappy: "snappy",
}

// ParseCodec returns the codec for a --snapshot-codec flag value.
func ParseCodec(name string) (Codec, error) {
	name = strings.ToLower(name)
	for i, n := range codecNames {
		if n == name {
			return Codec(i), nil
		}
	}
	return 0, fmt.Errorf("invalid codec '%s'", name)
}

func (c Codec) String() string {
	if int(c) < len(codecNames) {
		return codecNames[c]
	}
	return fmt.Sprintf("codec(%d)", byte(c))
}

func (c Codec) valid() bool {
	return int(c) < len(codecNames)
}

// newWriter writes the codec id to w and returns a compressing writer.
// Close must be called to flush the stream. It does not close w.
func (c Codec) newWriter(w io.Writer) (io.WriteCloser, error) {
	if !c.valid() {
		return nil, fmt.Errorf("invalid codec %d", byte(c))
	}
	if _, err := w.Write([]byte{byte(c)}); err != nil {
		return nil, err
	}
	switch c {
	case LZ4:
		return lz4.NewWriter(w), nil
	case Zstd:
		return zstd.NewWriter(w), nil
	case Snappy:
		return snappy.NewBufferedWriter(w), nil
	default:
		return gzip.NewWriter(w), nil
	}
}

// newCodecReader reads the codec id from r and returns a decompressing
// reader for the rest of the stream.
func newCodecReader(r io.Reader) (io.ReadCloser, Codec, error) {
	var id [1]byte
	if _, err := io.ReadFull(r, id[:]); err != nil {
		return nil, 0, err
	}
	c := Codec(id[0])
	switch c {
	case Gzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, c, err
		}
		return gr, c, nil
	case LZ4:
		return ioutil.NopCloser(lz4.NewReader(r)), c, nil
	case Zstd:
		return zstd.NewReader(r), c, nil
	case Snappy:
		return ioutil.NopCloser(snappy.NewReader(r)), c, nil
	}
	return nil, c, fmt.Errorf("invalid codec %d", id[0])
}
