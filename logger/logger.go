package logger

import (
	"fmt"
	"io"
	"path"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var log zerolog.Logger

const (
	rawField  = "raw"
	dataField = "data"
	durField  = "dur"
)

// severity names of the cloud logging agents that read the JSON output
var severities = map[zerolog.Level]string{
	zerolog.DebugLevel: "DEBUG",
	zerolog.InfoLevel:  "INFO",
	zerolog.NoLevel:    "NOTICE",
	zerolog.WarnLevel:  "WARN",
	zerolog.ErrorLevel: "ERROR",
	zerolog.PanicLevel: "CRITICAL",
	zerolog.FatalLevel: "EMERGENCY",
}

func init() {
	_, file, _, _ := runtime.Caller(0)
	root := path.Dir(path.Dir(file)) + "/"
	zerolog.CallerMarshalFunc = func(file string, line int) string {
		if idx := strings.Index(file, root); idx > -1 {
			file = file[idx+len(root):]
		}
		return fmt.Sprintf("%s:%d", file, line)
	}
	zerolog.LevelFieldName = "severity"
	zerolog.LevelFieldMarshalFunc = func(l zerolog.Level) string {
		if s, ok := severities[l]; ok {
			return s
		}
		return "DEFAULT"
	}
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	SetConsoleWriter()
}

// SetWriter sends JSON events to w.
func SetWriter(w io.Writer) {
	log = zerolog.New(w)
}

// SetLogger replaces the process logger.
func SetLogger(logger zerolog.Logger) {
	log = logger
}

// SetLevel sets the global level from a -l flag value: debug, verb(ose),
// info/notice, warn(ing), quiet/silent.
func SetLevel(level string) error {
	var l zerolog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = zerolog.DebugLevel
	case "verbose", "verb":
		l = zerolog.TraceLevel
	case "notice", "info":
		l = zerolog.InfoLevel
	case "warning", "warn":
		l = zerolog.WarnLevel
	case "quiet", "silent":
		// fatal events still need to reach the exit hook
		l = zerolog.FatalLevel
	default:
		return fmt.Errorf("invalid log level: %s", level)
	}
	zerolog.SetGlobalLevel(l)
	return nil
}

func addField(event *zerolog.Event, k string, value interface{}) {
	switch v := value.(type) {
	case string:
		event.Str(k, v)
	case int:
		event.Int(k, v)
	case int64:
		event.Int64(k, v)
	case uint32:
		event.Uint32(k, v)
	case uint64:
		event.Uint64(k, v)
	case bool:
		event.Bool(k, v)
	case error:
		event.AnErr(k, v)
	case time.Duration:
		event.Str(k, v.String())
	case time.Time:
		event.Time(k, v)
	case fmt.Stringer:
		event.Str(k, v.String())
	default:
		event.Interface(k, v)
	}
}

// doLog turns args into event fields. A leading error is attached as the
// error field. A string containing '%' is a printf template consuming the
// remaining args. Otherwise strings are keys followed by their value, and a
// trailing lone string is the message.
func doLog(skip int, event *zerolog.Event, args []interface{}) {
	if event == nil {
		return
	}
	event.Timestamp().Caller(skip)
	if len(args) > 0 {
		if err, ok := args[0].(error); ok {
			event.Err(err)
			args = args[1:]
		}
	}
	for i := 0; i < len(args); i++ {
		switch k := args[i].(type) {
		case nil:
		case string:
			switch {
			case strings.IndexByte(k, '%') != -1:
				event.Msgf(k, args[i+1:]...)
				return
			case i+1 == len(args):
				event.Msg(k)
				return
			}
			addField(event, k, args[i+1])
			i++
		case error:
			event.Err(k)
		case time.Duration:
			addField(event, durField, k)
		case []byte:
			event.Bytes(rawField, k)
		default:
			addField(event, dataField, k)
		}
	}
	event.Msg("")
}

func logAt(level zerolog.Level, skip int, args []interface{}) {
	doLog(skip+1, log.WithLevel(level), args)
}

// Debug logs at level Debug.
func Debug(args ...interface{}) {
	doLog(2, log.Debug(), args)
}

// Print logs at level Info.
func Print(args ...interface{}) {
	doLog(2, log.Info(), args)
}

// Notice logs above Info without being a warning. Generator seeding and
// cluster membership changes are notices.
func Notice(args ...interface{}) {
	doLog(2, log.Log().Str(zerolog.LevelFieldName, "NOTICE"), args)
}

// Warn logs at level Warn.
func Warn(args ...interface{}) {
	doLog(2, log.Warn(), args)
}

// WarnErr logs err at level Warn.
func WarnErr(err error, args ...interface{}) {
	doLog(2, log.Warn().Err(err), args)
}

// Error logs err at level Error.
func Error(err error, args ...interface{}) {
	doLog(2, log.Error().Err(err), args)
}

// Panic logs err at level Panic, then panics.
func Panic(err error, args ...interface{}) {
	doLog(2, log.Panic().Err(err), args)
}

// Fatal logs err at level Fatal, then exits the process with status 1.
func Fatal(err error, args ...interface{}) {
	doLog(2, log.Fatal().Err(err), args)
}
