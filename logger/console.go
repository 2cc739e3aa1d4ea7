package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const (
	colorRed     = 31
	colorGreen   = 32
	colorYellow  = 33
	colorMagenta = 35
	colorBold    = 1
)

// SetConsoleWriter sends human readable, colored events to stderr.
func SetConsoleWriter() {
	SetConsoleOutput(os.Stderr, false)
}

// SetConsoleOutput sends human readable events to w.
func SetConsoleOutput(w io.Writer, noColor bool) {
	log = zerolog.New(zerolog.NewConsoleWriter(func(cw *zerolog.ConsoleWriter) {
		cw.Out = w
		cw.NoColor = noColor
		cw.FormatLevel = consoleFormatLevel(noColor)
		cw.TimeFormat = "15:04:05.000"
	}))
}

// colorize returns the string s wrapped in ANSI code c, unless disabled is true.
func colorize(s interface{}, c int, disabled bool) string {
	if disabled {
		return fmt.Sprintf("%s", s)
	}
	return fmt.Sprintf("\x1b[%dm%v\x1b[0m", c, s)
}

func consoleFormatLevel(noColor bool) zerolog.Formatter {
	return func(i interface{}) string {
		ll, ok := i.(string)
		if !ok {
			if i == nil {
				return colorize("???", colorBold, noColor)
			}
			return strings.ToUpper(fmt.Sprintf("%s", i))[0:3]
		}
		switch strings.ToLower(ll) {
		case "trace", "default":
			return colorize("TRC", colorMagenta, noColor)
		case "debug":
			return colorize("DBG", colorYellow, noColor)
		case "notice":
			return colorize("NOT", colorYellow, noColor)
		case "info":
			return colorize("INF", colorGreen, noColor)
		case "warn":
			return colorize("WRN", colorRed, noColor)
		case "error":
			return colorize(colorize("ERR", colorRed, noColor), colorBold, noColor)
		case "fatal", "emergency":
			return colorize(colorize("FTL", colorRed, noColor), colorBold, noColor)
		case "panic", "critical":
			return colorize(colorize("PNC", colorRed, noColor), colorBold, noColor)
		default:
			return colorize("???", colorBold, noColor)
		}
	}
}
