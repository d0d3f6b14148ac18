package telemetry

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	timestampLayout = "2006-01-02 15:04:05"
	fileNameLayout  = "session_20060102_150405.txt"
	separator       = "------------------------------"
)

// SessionLog is the append-only text log of one session: task markers and
// one "bpm,spo2" line per recorded sample.
type SessionLog struct {
	mu       sync.Mutex
	w        *bufio.Writer
	closer   io.Closer
	now      func() time.Time
	path     string
	started  bool
	finished bool
}

// OpenSessionLog creates dir if needed and a new log file in it named after now.
func OpenSessionLog(dir string, now time.Time) (*SessionLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, now.Format(fileNameLayout))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open session log: %w", err)
	}
	s := NewSessionLog(f, time.Now)
	s.closer = f
	s.path = path
	return s, nil
}

func NewSessionLog(w io.Writer, now func() time.Time) *SessionLog {
	if now == nil {
		now = time.Now
	}
	return &SessionLog{w: bufio.NewWriter(w), now: now}
}

func (s *SessionLog) Path() string {
	return s.path
}

// Active reports whether samples are currently being accepted.
func (s *SessionLog) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started && !s.finished
}

// StartTask writes the marker for task n (1-based). The first call also
// writes the session header.
func (s *SessionLog) StartTask(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return fmt.Errorf("session log: task %d after session end", n)
	}
	if !s.started {
		s.started = true
		fmt.Fprintf(s.w, "SESSION START: %s\n%s\n", s.now().Format(timestampLayout), separator)
	}
	fmt.Fprintf(s.w, "-----TASK%d-----\n", n)
	return s.w.Flush()
}

// AppendSample writes one sample line. It reports false without writing when
// no task has started yet or the session has ended.
func (s *SessionLog) AppendSample(bpm uint16, spo2 uint8) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.finished {
		return false, nil
	}
	fmt.Fprintf(s.w, "%d,%d\n", bpm, spo2)
	if err := s.w.Flush(); err != nil {
		return false, fmt.Errorf("session log: %w", err)
	}
	return true, nil
}

// Finish writes the session trailer. Later calls do nothing.
func (s *SessionLog) Finish() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return nil
	}
	s.finished = true
	if !s.started {
		return nil
	}
	fmt.Fprintf(s.w, "%s\nSESSION END: %s\n", separator, s.now().Format(timestampLayout))
	return s.w.Flush()
}

func (s *SessionLog) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.w.Flush()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
		s.closer = nil
	}
	return err
}
