package logging

import (
	"io"
	"log"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/lowaak/smart-trainer/pool-assistant/internal/events"
)

type Options struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	// Stderr mirrors every line to stderr. Leave off while the dashboard owns
	// the terminal.
	Stderr bool
}

// Tap fans complete log lines out to listeners such as the dashboard's log
// panel. Slow listeners miss lines.
type Tap struct {
	lines *events.ChannelEvent[string]
}

func NewTap() *Tap {
	return &Tap{lines: events.NewChannelEvent[string](false)}
}

func (t *Tap) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		t.lines.Notify(line)
	}
	return len(p), nil
}

func (t *Tap) Listen(ch chan<- string) func() {
	return t.lines.Listen(ch)
}

// Logger is the process logger and the resources behind it.
type Logger struct {
	*log.Logger
	Tap  *Tap
	file *lumberjack.Logger
}

// New builds the process logger: a rotating file when opts.File is set, the
// tap, and stderr when asked for.
func New(opts Options) *Logger {
	tap := NewTap()
	writers := []io.Writer{tap}

	var file *lumberjack.Logger
	if opts.File != "" {
		file = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
		writers = append(writers, file)
	}
	if opts.Stderr {
		writers = append(writers, os.Stderr)
	}

	return &Logger{
		Logger: log.New(io.MultiWriter(writers...), "", log.LstdFlags|log.Lmicroseconds),
		Tap:    tap,
		file:   file,
	}
}

func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
