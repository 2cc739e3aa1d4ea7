package app

import (
	"encoding/binary"
	"errors"
	"io"
	"time"

	"github.com/hashicorp/raft"
)

// raftLogHeadLen is the fixed part of an encoded raft log entry:
// index, term, appended-at (unix nanos), type, data length, extensions length.
const raftLogHeadLen = 8 + 8 + 8 + 1 + 4 + 4

var errMalformedLog = errors.New("malformed log entry")

func raftLogSize(log *raft.Log) int {
	if log == nil {
		return 0
	}
	return raftLogHeadLen + len(log.Data) + len(log.Extensions)
}

// encodeRaftLog writes log into b, which is grown when too small, and
// returns the encoded slice. Integers are little-endian.
func encodeRaftLog(log *raft.Log, b []byte) []byte {
	sz := raftLogSize(log)
	if len(b) < sz {
		b = make([]byte, sz)
	} else {
		b = b[:sz]
	}
	binary.LittleEndian.PutUint64(b[0:], log.Index)
	binary.LittleEndian.PutUint64(b[8:], log.Term)
	var appendedAt int64
	if !log.AppendedAt.IsZero() {
		appendedAt = log.AppendedAt.UnixNano()
	}
	binary.LittleEndian.PutUint64(b[16:], uint64(appendedAt))
	b[24] = byte(log.Type)
	binary.LittleEndian.PutUint32(b[25:], uint32(len(log.Data)))
	binary.LittleEndian.PutUint32(b[29:], uint32(len(log.Extensions)))
	n := copy(b[raftLogHeadLen:], log.Data)
	copy(b[raftLogHeadLen+n:], log.Extensions)
	return b
}

// decodeRaftLog fills log from b. Data and Extensions are copied, reusing
// the existing slices of log when they are large enough.
func decodeRaftLog(b []byte, log *raft.Log) error {
	if len(b) < raftLogHeadLen {
		return errMalformedLog
	}
	log.Index = binary.LittleEndian.Uint64(b[0:])
	log.Term = binary.LittleEndian.Uint64(b[8:])
	log.AppendedAt = time.Time{}
	if appendedAt := int64(binary.LittleEndian.Uint64(b[16:])); appendedAt > 0 {
		log.AppendedAt = time.Unix(0, appendedAt)
	}
	log.Type = raft.LogType(b[24])
	dataLen := int(binary.LittleEndian.Uint32(b[25:]))
	extLen := int(binary.LittleEndian.Uint32(b[29:]))
	body := b[raftLogHeadLen:]
	if len(body) < dataLen+extLen {
		return io.ErrShortBuffer
	}
	log.Data = copyInto(log.Data, body[:dataLen])
	log.Extensions = copyInto(log.Extensions, body[dataLen:dataLen+extLen])
	return nil
}

func copyInto(dst, src []byte) []byte {
	if len(src) == 0 {
		if dst != nil {
			return dst[:0]
		}
		return nil
	}
	if cap(dst) < len(src) {
		dst = make([]byte, len(src))
	}
	dst = dst[:len(src)]
	copy(dst, src)
	return dst
}
