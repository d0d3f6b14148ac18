package pacing

import (
	"fmt"
	"log"
	"math"
	"strconv"
	"time"

	"github.com/lowaak/smart-trainer/pool-assistant/internal/buzzer"
	"github.com/lowaak/smart-trainer/pool-assistant/internal/plan"
)

// DefaultLeadIn is the countdown before a set starts.
const DefaultLeadIn = 15 * time.Second

const goText = "GO!"

type Phase int

const (
	PreStart Phase = iota
	RunningUnbounded
	RunningWithLimit
	Paused
)

func (p Phase) String() string {
	switch p {
	case PreStart:
		return "PreStart"
	case RunningUnbounded:
		return "Running"
	case RunningWithLimit:
		return "Interval"
	case Paused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// Buzzer receives countdown cues.
type Buzzer interface {
	Beep(kind buzzer.Kind)
}

// PacerCommander programs the wearable's own pacer. The clock calls it from
// Tick, so it should not wait on the wearable; see PacerQueue.
type PacerCommander interface {
	SendCommand(value int64) error
}

type ClockArgs struct {
	Task   plan.Task
	Start  time.Time
	LeadIn time.Duration
	Buzzer Buzzer
	Pacer  PacerCommander
	Logger *log.Logger
}

// Clock is the pace clock for one task. Elapsed time is always derived from
// absolute timestamps, so missed or irregular ticks do not accumulate error.
// A Clock is not safe for concurrent use.
type Clock struct {
	task   plan.Task
	leadIn time.Duration
	buzzer Buzzer
	pacer  PacerCommander
	logger *log.Logger

	phase            Phase
	resumePhase      Phase
	start            time.Time
	pausedAt         time.Time
	accumulatedPause time.Duration
	intervalOffset   time.Duration
	lastFired        int
	hasLastFired     bool
	pacerSent        bool

	elapsed time.Duration
	display string
	angles  [4]float64
}

func NewClock(args ClockArgs) *Clock {
	if args.Logger == nil {
		panic("Clock: logger cannot be nil")
	}
	if args.Buzzer == nil {
		panic("Clock: buzzer cannot be nil")
	}
	leadIn := args.LeadIn
	if leadIn <= 0 {
		leadIn = DefaultLeadIn
	}
	c := &Clock{
		task:   args.Task,
		leadIn: leadIn,
		buzzer: args.Buzzer,
		pacer:  args.Pacer,
		logger: args.Logger,
		phase:  PreStart,
		start:  args.Start,
	}
	c.Tick(args.Start)
	return c
}

func (c *Clock) Task() plan.Task {
	return c.task
}

func (c *Clock) Phase() Phase {
	return c.phase
}

func (c *Clock) DisplayString() string {
	return c.display
}

// ArrowAngles returns the four hand angles in degrees, clockwise from 12.
func (c *Clock) ArrowAngles() [4]float64 {
	return c.angles
}

// Elapsed is the time since the task started, lead-in included and pauses
// excluded, as of the last tick.
func (c *Clock) Elapsed() time.Duration {
	return c.elapsed
}

// IntervalElapsed is the time since the current interval began, or since the
// set began for tasks without a time limit. Zero during the lead-in.
func (c *Clock) IntervalElapsed() time.Duration {
	run := c.elapsed - c.leadIn
	if run < 0 {
		return 0
	}
	return run - c.intervalOffset
}

// Pause freezes the clock at now. Pausing twice has no further effect.
func (c *Clock) Pause(now time.Time) {
	if c.phase == Paused {
		return
	}
	c.Tick(now)
	c.resumePhase = c.phase
	c.pausedAt = now
	c.phase = Paused
	c.logger.Printf("Clock: paused at %s", c.display)
}

// Resume continues from the elapsed time recorded at Pause. Without a prior
// Pause it does nothing.
func (c *Clock) Resume(now time.Time) {
	if c.phase != Paused {
		return
	}
	if gap := now.Sub(c.pausedAt); gap > 0 {
		c.accumulatedPause += gap
	}
	c.phase = c.resumePhase
	c.logger.Printf("Clock: resumed after %v paused in total", c.accumulatedPause)
	c.Tick(now)
}

// Tick recomputes the hands, the display and the countdown cues for now.
func (c *Clock) Tick(now time.Time) {
	if c.phase == Paused {
		return
	}

	elapsed := now.Sub(c.start) - c.accumulatedPause
	if elapsed < 0 {
		elapsed = 0
	}
	c.elapsed = elapsed
	c.angles = handAngles(elapsed)

	if elapsed < c.leadIn {
		c.setPhase(PreStart)
		remaining := secondsCeil(c.leadIn - elapsed)
		c.display = strconv.Itoa(remaining)
		c.cue(remaining, true)
		return
	}

	running := elapsed - c.leadIn
	if c.task.HasTimeLimit() {
		c.setPhase(RunningWithLimit)
		wrapped := false
		for running-c.intervalOffset >= c.task.TimeLimit {
			c.intervalOffset += c.task.TimeLimit
			wrapped = true
		}
		if wrapped {
			c.hasLastFired = false
		}
	} else {
		c.setPhase(RunningUnbounded)
	}

	if !c.pacerSent {
		c.pacerSent = true
		c.sendPacer()
	}

	secs := int((running - c.intervalOffset) / time.Second)
	c.display = formatMMSS(secs)

	switch {
	case secs == 0:
		c.cue(0, true)
	case c.task.HasTimeLimit():
		c.cue(int(c.task.TimeLimit/time.Second)-secs, true)
	default:
		c.cue(0, false)
	}
}

func (c *Clock) setPhase(p Phase) {
	if c.phase != p {
		c.phase = p
		c.hasLastFired = false
	}
}

// cue fires one beep per countdown second in {3,2,1,0}. Leaving that window
// re-arms it for the next countdown.
func (c *Clock) cue(remaining int, counting bool) {
	if !counting || remaining < 0 || remaining > 3 {
		c.hasLastFired = false
		return
	}
	if c.hasLastFired && c.lastFired == remaining {
		return
	}
	c.lastFired = remaining
	c.hasLastFired = true
	if remaining == 0 {
		c.buzzer.Beep(buzzer.Long)
	} else {
		c.buzzer.Beep(buzzer.Short)
	}
}

func (c *Clock) sendPacer() {
	if c.pacer == nil || !c.task.HasPacer() {
		return
	}
	secs := c.task.PacerSeconds()
	if err := c.pacer.SendCommand(secs); err != nil {
		c.logger.Printf("Clock: pacer command %d not sent: %v", secs, err)
	}
}

func handAngles(elapsed time.Duration) [4]float64 {
	s := elapsed.Seconds()
	var angles [4]float64
	for i := range angles {
		angles[i] = math.Mod((s+float64(15*i))*6, 360)
	}
	return angles
}

func secondsCeil(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}

func formatMMSS(secs int) string {
	if secs == 0 {
		return goText
	}
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
