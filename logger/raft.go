package logger

import (
	"strings"

	"github.com/rs/zerolog"
)

type raftWriter struct{}

// RaftWriter is an io.Writer for hashicorp/raft and go-hclog output. Each
// line of the form
//
//	2021-01-01T00:00:00.000Z [WARN]  raft: heartbeat timeout reached: last-leader=127.0.0.1:11001
//
// is re-logged as a zerolog event at the matching level, with the key=value
// pairs after the colon as fields.
var RaftWriter = raftWriter{}

// Write writes to the log
func (raftWriter) Write(p []byte) (int, error) {
	level, msg, args := parseRaftLine(string(p))
	args = append(args, msg)
	logAt(level, 5, args)
	return len(p), nil
}

func parseRaftLine(line string) (level zerolog.Level, msg string, args []interface{}) {
	msg = strings.TrimSpace(line)
	if idx := strings.IndexByte(msg, ' '); idx != -1 {
		msg = msg[idx+1:]
	}
	level = zerolog.DebugLevel
	if idx := strings.IndexByte(msg, ']'); idx != -1 && msg[0] == '[' {
		switch msg[1] {
		case 'W':
			level = zerolog.WarnLevel
		case 'E':
			level = zerolog.ErrorLevel
		case 'V', 'T':
			level = zerolog.TraceLevel
		case 'I':
			level = zerolog.InfoLevel
		}
		msg = strings.TrimLeft(msg[idx+1:], " ")
	}
	// skip the "raft:" subsystem prefix, if present
	if strings.HasPrefix(msg, "raft: ") {
		msg = msg[len("raft: "):]
	}
	idx := strings.IndexByte(msg, ':')
	if idx == -1 {
		return level, msg, nil
	}
	fields := strings.TrimSpace(msg[idx+1:])
	msg = strings.TrimSpace(msg[:idx])
	for len(fields) > 0 && len(args) < 14 {
		eq := strings.IndexByte(fields, '=')
		if eq == -1 {
			args = append(args, fields, "")
			break
		}
		name := strings.TrimSpace(fields[:eq])
		fields = strings.TrimSpace(fields[eq+1:])
		var value string
		if len(fields) > 0 && fields[0] == '"' {
			fields = fields[1:]
			end := strings.IndexByte(fields, '"')
			if end == -1 {
				value, fields = fields, ""
			} else {
				value, fields = fields[:end], fields[end+1:]
			}
		} else {
			end := strings.IndexByte(fields, ' ')
			if end == -1 {
				end = len(fields)
			}
			value, fields = fields[:end], fields[end:]
		}
		args = append(args, name, value)
		fields = strings.TrimSpace(fields)
	}
	return level, msg, args
}
