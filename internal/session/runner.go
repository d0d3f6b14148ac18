package session

import (
	"log"
	"sync"
	"time"

	"github.com/lowaak/smart-trainer/pool-assistant/internal/events"
	"github.com/lowaak/smart-trainer/pool-assistant/internal/go_func_utils"
	"github.com/lowaak/smart-trainer/pool-assistant/internal/pacing"
	"github.com/lowaak/smart-trainer/pool-assistant/internal/plan"
)

const DefaultTickInterval = 50 * time.Millisecond

// pacerOff disables the wearable's own pacer.
const pacerOff = 0

type Status int

const (
	StatusIdle Status = iota
	StatusActive
	StatusFinished
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "Idle"
	case StatusActive:
		return "Active"
	case StatusFinished:
		return "Finished"
	default:
		return "Unknown"
	}
}

// Marker receives task boundaries, normally the session log.
type Marker interface {
	StartTask(n int) error
	Finish() error
}

// View is a snapshot of the session for display.
type View struct {
	Status     Status
	Task       plan.Task
	TaskNumber int
	TaskCount  int
	Phase      pacing.Phase
	Display    string
	Angles     [4]float64
	Paused     bool
}

type runnerCommand int

const (
	cmdStart runnerCommand = iota
	cmdTogglePause
	cmdNext
	cmdFinish
)

func (c runnerCommand) String() string {
	switch c {
	case cmdStart:
		return "start"
	case cmdTogglePause:
		return "pause/resume"
	case cmdNext:
		return "next"
	case cmdFinish:
		return "finish"
	default:
		return "unknown"
	}
}

type RunnerArgs struct {
	Tasks        []plan.Task
	LeadIn       time.Duration
	TickInterval time.Duration
	Buzzer       pacing.Buzzer
	Pacer        pacing.PacerCommander
	Marker       Marker
	Logger       *log.Logger
	Now          func() time.Time
}

// Runner walks through the planned tasks. It owns one pace clock per task and
// ticks it from its own goroutine while the task is running.
type Runner struct {
	tasks  []plan.Task
	leadIn time.Duration
	tick   time.Duration
	buzzer pacing.Buzzer
	pacer  *pacing.PacerQueue
	marker Marker
	logger *log.Logger
	now    func() time.Time

	// Touched only by the runner goroutine, or by tests driving apply directly.
	clock   *pacing.Clock
	taskIdx int

	mu     sync.RWMutex
	status Status
	view   View

	views *events.ChannelEvent[View]

	cmdChan      chan runnerCommand
	doneChan     chan struct{}
	wg           sync.WaitGroup
	shutdownOnce sync.Once
}

// NewRunner creates a Runner and starts its goroutine. Call Shutdown to stop it.
func NewRunner(args RunnerArgs) *Runner {
	r := newRunner(args)
	go_func_utils.SafeGoWG(r.logger, &r.wg, r.run)
	return r
}

func newRunner(args RunnerArgs) *Runner {
	if args.Logger == nil {
		panic("Runner: logger cannot be nil")
	}
	if args.Buzzer == nil {
		panic("Runner: buzzer cannot be nil")
	}
	tick := args.TickInterval
	if tick <= 0 {
		tick = DefaultTickInterval
	}
	now := args.Now
	if now == nil {
		now = time.Now
	}
	r := &Runner{
		tasks:    args.Tasks,
		leadIn:   args.LeadIn,
		tick:     tick,
		buzzer:   args.Buzzer,
		marker:   args.Marker,
		logger:   args.Logger,
		now:      now,
		taskIdx:  -1,
		status:   StatusIdle,
		views:    events.NewChannelEvent[View](true),
		cmdChan:  make(chan runnerCommand, 4),
		doneChan: make(chan struct{}),
	}
	if args.Pacer != nil {
		r.pacer = pacing.NewPacerQueue(args.Pacer, args.Logger)
	}
	r.view = View{Status: StatusIdle, TaskCount: len(args.Tasks), Display: "--"}
	r.views.Notify(r.view)
	return r
}

// Start begins the first task.
func (r *Runner) Start() { r.send(cmdStart) }

// TogglePause pauses a running task or resumes a paused one.
func (r *Runner) TogglePause() { r.send(cmdTogglePause) }

// Next ends the current task and starts the following one. On the last task
// it finishes the session.
func (r *Runner) Next() { r.send(cmdNext) }

// Finish ends the session.
func (r *Runner) Finish() { r.send(cmdFinish) }

func (r *Runner) View() View {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.view
}

func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// ListenToView keeps ch holding the newest published view. A reader that falls
// behind skips intermediate views but never misses the latest one. The
// current view is delivered on registration.
func (r *Runner) ListenToView(ch chan View) func() {
	return r.views.ListenLatest(ch)
}

// Shutdown stops the runner goroutine. A session still in progress gets its
// pacer turned off, and queued pacer commands are sent before Shutdown
// returns. Safe to call multiple times.
func (r *Runner) Shutdown() {
	r.shutdownOnce.Do(func() {
		r.logger.Printf("Session: shutting down")
		close(r.doneChan)
		r.wg.Wait()

		if r.pacer == nil {
			return
		}
		if r.Status() == StatusActive {
			r.logger.Printf("Session: still active, turning the pacer off")
			r.sendPacer(pacerOff)
		}
		r.pacer.Close()
	})
}

func (r *Runner) send(cmd runnerCommand) {
	select {
	case r.cmdChan <- cmd:
	case <-r.doneChan:
		r.logger.Printf("Session: %s ignored after shutdown", cmd)
	}
}

func (r *Runner) run() {
	ticker := time.NewTicker(r.tick)
	ticker.Stop() // started once a task is running

	for {
		select {
		case <-r.doneChan:
			ticker.Stop()
			r.logger.Printf("Session: goroutine exiting")
			return

		case cmd := <-r.cmdChan:
			if r.apply(cmd, r.now()) {
				ticker.Reset(r.tick)
			} else {
				ticker.Stop()
			}

		case <-ticker.C:
			r.tickAt(r.now())
		}
	}
}

// apply executes cmd at now and reports whether the clock should be ticking.
func (r *Runner) apply(cmd runnerCommand, now time.Time) bool {
	switch cmd {
	case cmdStart:
		if r.Status() != StatusIdle {
			r.logger.Printf("Session: already started")
			break
		}
		if len(r.tasks) == 0 {
			r.logger.Printf("Session: no tasks to run")
			break
		}
		r.setStatus(StatusActive)
		r.logger.Printf("Session: started with %d tasks", len(r.tasks))
		r.startTask(0, now)

	case cmdTogglePause:
		if r.clock == nil || r.Status() != StatusActive {
			break
		}
		if r.clock.Phase() == pacing.Paused {
			r.clock.Resume(now)
		} else {
			r.clock.Pause(now)
		}

	case cmdNext:
		if r.Status() != StatusActive {
			break
		}
		r.sendPacer(pacerOff)
		if r.taskIdx+1 >= len(r.tasks) {
			r.finish(now)
			break
		}
		r.startTask(r.taskIdx+1, now)

	case cmdFinish:
		if r.Status() != StatusActive {
			r.logger.Printf("Session: nothing to finish")
			break
		}
		r.sendPacer(pacerOff)
		r.finish(now)
	}

	r.publish()
	return r.Status() == StatusActive && r.clock != nil && r.clock.Phase() != pacing.Paused
}

func (r *Runner) tickAt(now time.Time) {
	if r.clock == nil || r.Status() != StatusActive {
		return
	}
	r.clock.Tick(now)
	r.publish()
}

func (r *Runner) startTask(idx int, now time.Time) {
	r.taskIdx = idx
	task := r.tasks[idx]
	args := pacing.ClockArgs{
		Task:   task,
		Start:  now,
		LeadIn: r.leadIn,
		Buzzer: r.buzzer,
		Logger: r.logger,
	}
	if r.pacer != nil {
		args.Pacer = r.pacer
	}
	r.clock = pacing.NewClock(args)
	r.logger.Printf("Session: task %d/%d %s (limit %s, pacer %s)",
		idx+1, len(r.tasks), task.Summary(), plan.FormatClock(task.TimeLimit), plan.FormatClock(task.PacerInterval))
	if r.marker != nil {
		if err := r.marker.StartTask(markerNumber(task, idx)); err != nil {
			r.logger.Printf("Session: task marker: %v", err)
		}
	}
}

// markerNumber is the task's own number from the plan, or its position when
// the plan does not number tasks.
func markerNumber(task plan.Task, idx int) int {
	if task.Index > 0 {
		return task.Index
	}
	return idx + 1
}

func (r *Runner) finish(now time.Time) {
	if r.clock != nil && r.clock.Phase() != pacing.Paused {
		r.clock.Pause(now)
	}
	r.setStatus(StatusFinished)
	if r.marker != nil {
		if err := r.marker.Finish(); err != nil {
			r.logger.Printf("Session: end marker: %v", err)
		}
	}
	r.logger.Printf("Session: finished after %d tasks", r.taskIdx+1)
}

// sendPacer queues value behind the clock's own pacer command, so the wearable
// sees them in order.
func (r *Runner) sendPacer(value int64) {
	if r.pacer == nil {
		return
	}
	if err := r.pacer.SendCommand(value); err != nil {
		r.logger.Printf("Session: pacer command %d not sent: %v", value, err)
	}
}

func (r *Runner) setStatus(s Status) {
	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
}

func (r *Runner) publish() {
	view := View{
		Status:     r.Status(),
		TaskNumber: r.taskIdx + 1,
		TaskCount:  len(r.tasks),
		Display:    "--",
	}
	if r.clock != nil {
		view.Task = r.clock.Task()
		view.Phase = r.clock.Phase()
		view.Display = r.clock.DisplayString()
		view.Angles = r.clock.ArrowAngles()
		view.Paused = view.Status == StatusActive && view.Phase == pacing.Paused
	}

	r.mu.Lock()
	r.view = view
	r.mu.Unlock()
	r.views.Notify(view)
}
