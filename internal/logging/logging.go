// Package logging hands out named gommon loggers and configures them together.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/labstack/gommon/log"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

const header = `${time_rfc3339} ${level} ${prefix} ${short_file}:${line}`

var (
	mu      sync.Mutex
	loggers []*log.Logger
	level   = log.INFO
	output  io.Writer
	color   bool
)

func init() {
	color = isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	output = colorable.NewColorableStderr()
}

// New returns a logger tagged with prefix that follows later Configure calls.
func New(prefix string) *log.Logger {
	l := log.New(prefix)
	mu.Lock()
	defer mu.Unlock()
	apply(l)
	loggers = append(loggers, l)
	return l
}

// ParseLevel maps debug, info, warn, error and off onto gommon levels.
func ParseLevel(s string) (log.Lvl, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.DEBUG, nil
	case "", "info":
		return log.INFO, nil
	case "warn", "warning":
		return log.WARN, nil
	case "error":
		return log.ERROR, nil
	case "off":
		return log.OFF, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

// Configure sets level and destination for every logger handed out so far
// and for those created afterwards. A nil writer keeps the current one.
func Configure(lvl log.Lvl, w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	level = lvl
	if w != nil {
		output = w
		color = false
		if f, ok := w.(*os.File); ok {
			color = isatty.IsTerminal(f.Fd())
		}
	}
	for _, l := range loggers {
		apply(l)
	}
}

func apply(l *log.Logger) {
	l.SetLevel(level)
	l.SetOutput(output)
	l.SetHeader(header)
	if color {
		l.EnableColor()
	} else {
		l.DisableColor()
	}
}
