package session

import (
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowaak/smart-trainer/pool-assistant/internal/buzzer"
	"github.com/lowaak/smart-trainer/pool-assistant/internal/pacing"
	"github.com/lowaak/smart-trainer/pool-assistant/internal/plan"
)

type countingBuzzer struct {
	mu    sync.Mutex
	beeps []buzzer.Kind
}

func (b *countingBuzzer) Beep(kind buzzer.Kind) {
	b.mu.Lock()
	b.beeps = append(b.beeps, kind)
	b.mu.Unlock()
}

type recordingMarker struct {
	mu       sync.Mutex
	tasks    []int
	finished int
}

func (m *recordingMarker) StartTask(n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, n)
	return nil
}

func (m *recordingMarker) Finish() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished++
	return nil
}

type chanPacer struct {
	sent chan int64
}

func (p *chanPacer) SendCommand(value int64) error {
	p.sent <- value
	return nil
}

func expectPacer(t *testing.T, p *chanPacer, want int64) {
	t.Helper()
	select {
	case v := <-p.sent:
		assert.Equal(t, want, v)
	case <-time.After(time.Second):
		t.Fatalf("pacer %d never sent", want)
	}
}

var t0 = time.Date(2026, 5, 4, 6, 0, 0, 0, time.UTC)

func testTasks() []plan.Task {
	return []plan.Task{
		{Index: 1, Reps: 4, DistanceM: 100, TimeLimit: time.Minute, PacerInterval: 45 * time.Second},
		{Index: 2, Reps: 1, DistanceM: 400},
	}
}

func newTestRunner(tasks []plan.Task, marker Marker, pacer pacing.PacerCommander) *Runner {
	return newRunner(RunnerArgs{
		Tasks:  tasks,
		LeadIn: pacing.DefaultLeadIn,
		Buzzer: &countingBuzzer{},
		Pacer:  pacer,
		Marker: marker,
		Logger: log.New(io.Discard, "", 0),
	})
}

func TestRunner_IdleView(t *testing.T) {
	r := newTestRunner(testTasks(), nil, nil)
	v := r.View()
	assert.Equal(t, StatusIdle, v.Status)
	assert.Equal(t, 0, v.TaskNumber)
	assert.Equal(t, 2, v.TaskCount)
	assert.Equal(t, "--", v.Display)
}

func TestRunner_WalksThroughTasks(t *testing.T) {
	marker := &recordingMarker{}
	pacer := &chanPacer{sent: make(chan int64, 8)}
	r := newTestRunner(testTasks(), marker, pacer)

	assert.True(t, r.apply(cmdStart, t0))
	v := r.View()
	assert.Equal(t, StatusActive, v.Status)
	assert.Equal(t, 1, v.TaskNumber)
	assert.Equal(t, pacing.PreStart, v.Phase)
	assert.Equal(t, "15", v.Display)

	r.tickAt(t0.Add(15 * time.Second))
	assert.Equal(t, "GO!", r.View().Display)
	assert.Equal(t, pacing.RunningWithLimit, r.View().Phase)
	expectPacer(t, pacer, 45)

	assert.True(t, r.apply(cmdNext, t0.Add(40*time.Second)))
	expectPacer(t, pacer, 0)
	v = r.View()
	assert.Equal(t, 2, v.TaskNumber)
	assert.Equal(t, pacing.PreStart, v.Phase)
	assert.Equal(t, "15", v.Display, "a new task restarts the lead-in")

	assert.False(t, r.apply(cmdNext, t0.Add(90*time.Second)), "next on the last task finishes")
	expectPacer(t, pacer, 0)
	assert.Equal(t, StatusFinished, r.View().Status)
	assert.False(t, r.View().Paused)

	assert.Equal(t, []int{1, 2}, marker.tasks)
	assert.Equal(t, 1, marker.finished)
}

func TestRunner_TogglePauseFreezesView(t *testing.T) {
	r := newTestRunner(testTasks(), nil, nil)
	require.True(t, r.apply(cmdStart, t0))
	r.tickAt(t0.Add(20 * time.Second))
	assert.Equal(t, "00:05", r.View().Display)

	assert.False(t, r.apply(cmdTogglePause, t0.Add(21*time.Second)), "ticker stops while paused")
	frozen := r.View()
	assert.True(t, frozen.Paused)

	r.tickAt(t0.Add(50 * time.Second))
	assert.Equal(t, frozen, r.View())

	assert.True(t, r.apply(cmdTogglePause, t0.Add(60*time.Second)))
	r.tickAt(t0.Add(62 * time.Second))
	assert.Equal(t, "00:08", r.View().Display)
}

func TestRunner_FinishStopsAndIgnoresLaterCommands(t *testing.T) {
	marker := &recordingMarker{}
	r := newTestRunner(testTasks(), marker, nil)
	require.True(t, r.apply(cmdStart, t0))

	assert.False(t, r.apply(cmdFinish, t0.Add(30*time.Second)))
	assert.Equal(t, StatusFinished, r.Status())

	assert.False(t, r.apply(cmdStart, t0.Add(31*time.Second)))
	assert.False(t, r.apply(cmdNext, t0.Add(32*time.Second)))
	assert.False(t, r.apply(cmdFinish, t0.Add(33*time.Second)))
	assert.Equal(t, 1, marker.finished)
	assert.Equal(t, []int{1}, marker.tasks)
}

func TestRunner_StartWithoutTasks(t *testing.T) {
	r := newTestRunner(nil, nil, nil)
	assert.False(t, r.apply(cmdStart, t0))
	assert.Equal(t, StatusIdle, r.Status())
}

func TestRunner_CommandsBeforeStartAreIgnored(t *testing.T) {
	marker := &recordingMarker{}
	r := newTestRunner(testTasks(), marker, nil)
	assert.False(t, r.apply(cmdTogglePause, t0))
	assert.False(t, r.apply(cmdNext, t0))
	assert.False(t, r.apply(cmdFinish, t0))
	assert.Equal(t, StatusIdle, r.Status())
	assert.Empty(t, marker.tasks)
}

func TestRunner_LoopTicksAndPublishes(t *testing.T) {
	r := NewRunner(RunnerArgs{
		Tasks:        []plan.Task{{Index: 1, Reps: 1, DistanceM: 50}},
		LeadIn:       100 * time.Millisecond,
		TickInterval: 5 * time.Millisecond,
		Buzzer:       &countingBuzzer{},
		Logger:       log.New(io.Discard, "", 0),
	})
	defer r.Shutdown()

	views := make(chan View, 64)
	unlisten := r.ListenToView(views)
	defer unlisten()

	r.Start()
	assert.Eventually(t, func() bool {
		return r.View().Phase == pacing.RunningUnbounded
	}, 2*time.Second, 5*time.Millisecond)

	r.Finish()
	assert.Eventually(t, func() bool {
		return r.Status() == StatusFinished
	}, time.Second, 5*time.Millisecond)

	r.Shutdown()
	r.Shutdown()
	r.Start() // ignored after shutdown, must not block
}

func TestRunner_LaggingViewListenerEndsOnLatestView(t *testing.T) {
	r := newTestRunner(testTasks(), nil, nil)

	// a listener busy drawing does not drain its single slot
	views := make(chan View, 1)
	defer r.ListenToView(views)()

	require.True(t, r.apply(cmdStart, t0))
	r.tickAt(t0.Add(time.Second))
	require.False(t, r.apply(cmdFinish, t0.Add(2*time.Second)))

	select {
	case v := <-views:
		assert.Equal(t, StatusFinished, v.Status)
		assert.Equal(t, r.View(), v)
	case <-time.After(time.Second):
		t.Fatal("no view delivered")
	}
}

func TestRunner_LaggingViewListenerSeesPause(t *testing.T) {
	r := newTestRunner(testTasks(), nil, nil)
	views := make(chan View, 1)
	defer r.ListenToView(views)()

	require.True(t, r.apply(cmdStart, t0))
	r.tickAt(t0.Add(20 * time.Second))
	require.False(t, r.apply(cmdTogglePause, t0.Add(21*time.Second)))

	v := <-views
	assert.True(t, v.Paused)
	assert.Equal(t, "00:06", v.Display)
}

func TestRunner_PacerOffNeverOvertakesGo(t *testing.T) {
	// unbuffered: the first command stays in flight until the test reads it
	pacer := &chanPacer{sent: make(chan int64)}
	r := newTestRunner(testTasks(), nil, pacer)

	require.True(t, r.apply(cmdStart, t0))
	r.tickAt(t0.Add(15 * time.Second))
	require.True(t, r.apply(cmdNext, t0.Add(15*time.Second+10*time.Millisecond)))

	expectPacer(t, pacer, 45)
	expectPacer(t, pacer, 0)
}

func TestRunner_ShutdownMidSessionTurnsPacerOff(t *testing.T) {
	pacer := &chanPacer{sent: make(chan int64, 8)}
	r := newTestRunner(testTasks(), nil, pacer)

	require.True(t, r.apply(cmdStart, t0))
	r.tickAt(t0.Add(15 * time.Second))
	r.Shutdown()

	require.Len(t, pacer.sent, 2)
	assert.Equal(t, int64(45), <-pacer.sent)
	assert.Equal(t, int64(0), <-pacer.sent)
}

func TestRunner_ShutdownWhenIdleOrFinishedSendsNothing(t *testing.T) {
	pacer := &chanPacer{sent: make(chan int64, 8)}
	idle := newTestRunner(testTasks(), nil, pacer)
	idle.Shutdown()
	assert.Empty(t, pacer.sent)

	finished := newTestRunner(testTasks(), nil, pacer)
	require.True(t, finished.apply(cmdStart, t0))
	require.False(t, finished.apply(cmdFinish, t0.Add(5*time.Second)))
	finished.Shutdown()
	require.Len(t, pacer.sent, 1, "only the pacer off from finish")
	assert.Equal(t, int64(0), <-pacer.sent)
}

func TestRunner_MarkersUsePlanNumbers(t *testing.T) {
	marker := &recordingMarker{}
	r := newTestRunner([]plan.Task{
		{Index: 1, Reps: 1, DistanceM: 100},
		{Index: 3, Reps: 1, DistanceM: 200},
		{Reps: 1, DistanceM: 50},
	}, marker, nil)

	require.True(t, r.apply(cmdStart, t0))
	require.True(t, r.apply(cmdNext, t0.Add(time.Minute)))
	require.True(t, r.apply(cmdNext, t0.Add(2*time.Minute)))

	assert.Equal(t, []int{1, 3, 3}, marker.tasks, "an unnumbered task falls back to its position")
	assert.Equal(t, 3, r.View().TaskNumber, "the view counts positions")
}
