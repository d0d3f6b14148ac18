package plan

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Task is one planned set. Optional durations are zero when absent.
type Task struct {
	Index         int
	Name          string
	Reps          int
	DistanceM     int
	Description   string
	TimeLimit     time.Duration
	TargetHRZone  string
	BlockRepeats  int
	PacerInterval time.Duration
}

func (t Task) HasTimeLimit() bool {
	return t.TimeLimit > 0
}

func (t Task) HasPacer() bool {
	return t.PacerInterval > 0
}

// PacerSeconds is the value sent to the wearable to program its pacer.
func (t Task) PacerSeconds() int64 {
	return int64(t.PacerInterval / time.Second)
}

// Summary renders the task the way it is read out on deck, e.g. "4 x 100m".
func (t Task) Summary() string {
	s := fmt.Sprintf("%d x %dm", t.Reps, t.DistanceM)
	if t.BlockRepeats > 1 {
		s = fmt.Sprintf("%d x (%s)", t.BlockRepeats, s)
	}
	return s
}

// ParseClock parses a pool-clock duration written as M'SS ("1'30").
// "None" and the empty string mean no duration.
func ParseClock(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "none") {
		return 0, nil
	}
	minutesStr, secondsStr, ok := strings.Cut(s, "'")
	if !ok {
		return 0, fmt.Errorf("clock value %q: want M'SS", s)
	}
	minutes, err := strconv.Atoi(minutesStr)
	if err != nil || minutes < 0 {
		return 0, fmt.Errorf("clock value %q: bad minutes", s)
	}
	seconds, err := strconv.Atoi(secondsStr)
	if err != nil || seconds < 0 || seconds > 59 {
		return 0, fmt.Errorf("clock value %q: bad seconds", s)
	}
	return time.Duration(minutes)*time.Minute + time.Duration(seconds)*time.Second, nil
}

// FormatClock is the inverse of ParseClock.
func FormatClock(d time.Duration) string {
	if d <= 0 {
		return "None"
	}
	secs := int(d / time.Second)
	return fmt.Sprintf("%d'%02d", secs/60, secs%60)
}
