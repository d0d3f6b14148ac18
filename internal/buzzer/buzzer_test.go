package buzzer

import (
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
)

type levelChange struct {
	level gpio.Level
	at    time.Time
}

type fakePin struct {
	mu      sync.Mutex
	changes []levelChange
	err     error
	calls   int
	// failCall makes that Out call (1-based) fail once
	failCall int
}

func (p *fakePin) Out(l gpio.Level) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return p.err
	}
	if p.calls == p.failCall {
		return errors.New("gpio write failed")
	}
	p.changes = append(p.changes, levelChange{level: l, at: time.Now()})
	return nil
}

func (p *fakePin) levels() []gpio.Level {
	p.mu.Lock()
	defer p.mu.Unlock()
	levels := make([]gpio.Level, len(p.changes))
	for i, c := range p.changes {
		levels[i] = c.level
	}
	return levels
}

func (p *fakePin) current() gpio.Level {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.changes[len(p.changes)-1].level
}

func testConfig() Config {
	return Config{Short: 20 * time.Millisecond, Long: 80 * time.Millisecond, ActiveLow: true}
}

func newTestDispatcher(pin Pin, cfg Config) *Dispatcher {
	return NewDispatcher(pin, cfg, log.New(io.Discard, "", 0))
}

func TestDispatcher_ShortBeepIsActiveLowPulse(t *testing.T) {
	pin := &fakePin{}
	d := newTestDispatcher(pin, testConfig())

	start := time.Now()
	d.Beep(Short)
	assert.Less(t, time.Since(start), 10*time.Millisecond, "Beep must not block")
	assert.Equal(t, gpio.Low, pin.current())

	require.Eventually(t, func() bool { return pin.current() == gpio.High }, time.Second, 2*time.Millisecond)
	assert.Equal(t, []gpio.Level{gpio.High, gpio.Low, gpio.High}, pin.levels())

	pin.mu.Lock()
	pulse := pin.changes[2].at.Sub(pin.changes[1].at)
	pin.mu.Unlock()
	assert.GreaterOrEqual(t, pulse, testConfig().Short)
}

func TestDispatcher_LongBeepOutlastsShort(t *testing.T) {
	pin := &fakePin{}
	d := newTestDispatcher(pin, testConfig())

	d.Beep(Long)
	time.Sleep(2 * testConfig().Short)
	assert.Equal(t, gpio.Low, pin.current(), "long beep still sounding")

	require.Eventually(t, func() bool { return pin.current() == gpio.High }, time.Second, 2*time.Millisecond)
}

func TestDispatcher_OverlapRestartsWindow(t *testing.T) {
	pin := &fakePin{}
	d := newTestDispatcher(pin, testConfig())

	d.Beep(Short)
	time.Sleep(testConfig().Short / 2)
	d.Beep(Long)
	time.Sleep(testConfig().Short)
	assert.Equal(t, gpio.Low, pin.current(), "the earlier short timer must not cut the long beep")

	require.Eventually(t, func() bool { return pin.current() == gpio.High }, time.Second, 2*time.Millisecond)
	assert.Equal(t, []gpio.Level{gpio.High, gpio.Low, gpio.Low, gpio.High}, pin.levels())
}

func TestDispatcher_ActiveHigh(t *testing.T) {
	pin := &fakePin{}
	cfg := testConfig()
	cfg.ActiveLow = false
	d := newTestDispatcher(pin, cfg)

	d.Beep(Short)
	assert.Equal(t, gpio.High, pin.current())
	require.Eventually(t, func() bool { return pin.current() == gpio.Low }, time.Second, 2*time.Millisecond)
}

func TestDispatcher_CloseSilencesAndIgnoresBeeps(t *testing.T) {
	pin := &fakePin{}
	d := newTestDispatcher(pin, testConfig())

	d.Beep(Long)
	require.NoError(t, d.Close())
	assert.Equal(t, gpio.High, pin.current())

	d.Beep(Short)
	time.Sleep(testConfig().Long + 20*time.Millisecond)
	assert.Equal(t, []gpio.Level{gpio.High, gpio.Low, gpio.High}, pin.levels())
}

func TestDispatcher_PinErrorIsLogged(t *testing.T) {
	pin := &fakePin{}
	d := newTestDispatcher(pin, testConfig())
	pin.mu.Lock()
	pin.err = errors.New("gpio busy")
	pin.mu.Unlock()

	assert.NotPanics(t, func() { d.Beep(Short) })
}

func TestDispatcher_FailedActivationStillReleasesSoundingPin(t *testing.T) {
	// calls: silence on construction, first beep, failing second beep
	pin := &fakePin{failCall: 3}
	d := newTestDispatcher(pin, testConfig())

	d.Beep(Short)
	d.Beep(Short)
	assert.Equal(t, gpio.Low, pin.current())

	require.Eventually(t, func() bool { return pin.current() == gpio.High }, time.Second, 2*time.Millisecond)
	assert.Equal(t, []gpio.Level{gpio.High, gpio.Low, gpio.High}, pin.levels())
}

func TestDispatcher_FailedFirstActivationStillReleases(t *testing.T) {
	pin := &fakePin{failCall: 2}
	d := newTestDispatcher(pin, testConfig())

	d.Beep(Long)
	require.Eventually(t, func() bool {
		pin.mu.Lock()
		defer pin.mu.Unlock()
		return pin.calls == 3
	}, time.Second, 2*time.Millisecond, "the pin is driven silent after a failed beep")
	assert.Equal(t, gpio.High, pin.current())
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "short", Short.String())
	assert.Equal(t, "long", Long.String())
}
