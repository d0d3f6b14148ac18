package wearable

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/lowaak/smart-trainer/pool-assistant/internal/go_func_utils"
	"github.com/lowaak/smart-trainer/pool-assistant/internal/link"
)

var _ link.Transport = (*Simulator)(nil)

// ErrConnectRefused is returned for connects the simulator was told to fail.
var ErrConnectRefused = errors.New("wearable: simulated connect failure")

// WrittenValue records a command written to the simulated wearable.
type WrittenValue struct {
	Timestamp time.Time `json:"timestamp"`
	Data      string    `json:"data"`
	PacerSecs *int64    `json:"pacerSecs,omitempty"`
}

// State is the simulator state exposed by the control panel.
type State struct {
	HeartRateBpm  uint16  `json:"heartRateBpm"`
	SpO2Pct       uint8   `json:"spo2Pct"`
	BatteryPct    uint8   `json:"batteryPct"`
	Voltage       float32 `json:"voltage"`
	PacerSecs     int64   `json:"pacerSecs"`
	Connected     bool    `json:"connected"`
	PendingFaults int     `json:"pendingFaults"`
}

type Config struct {
	NotifyInterval time.Duration
	ConnectDelay   time.Duration
}

func DefaultConfig() Config {
	return Config{
		NotifyInterval: time.Second,
		ConnectDelay:   200 * time.Millisecond,
	}
}

// Simulator stands in for the wrist unit: it streams telemetry notifications
// and records the pacer commands written to it.
type Simulator struct {
	cfg    Config
	logger *log.Logger

	mu        sync.RWMutex
	state     State
	failNext  int
	conn      *simConn
	writes    []WrittenValue
	writesCap int
}

func NewSimulator(cfg Config, logger *log.Logger) *Simulator {
	if logger == nil {
		panic("Simulator: logger cannot be nil")
	}
	return &Simulator{
		cfg:    cfg,
		logger: logger,
		state: State{
			HeartRateBpm: 72,
			SpO2Pct:      98,
			BatteryPct:   90,
			Voltage:      3.95,
		},
		writesCap: 100,
	}
}

func (s *Simulator) Connect(ctx context.Context) (link.Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(s.cfg.ConnectDelay):
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext > 0 {
		s.failNext--
		s.logger.Printf("Wearable: refusing connect (%d more)", s.failNext)
		return nil, ErrConnectRefused
	}
	if s.conn != nil {
		s.conn.close()
	}
	s.conn = newSimConn(s)
	s.state.Connected = true
	s.logger.Printf("Wearable: connected")
	return s.conn, nil
}

// Set changes the values carried by subsequent notifications. Nil leaves a
// value unchanged.
func (s *Simulator) Set(bpm *uint16, spo2 *uint8, battery *uint8, voltage *float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if bpm != nil {
		s.state.HeartRateBpm = *bpm
	}
	if spo2 != nil {
		s.state.SpO2Pct = *spo2
	}
	if battery != nil {
		s.state.BatteryPct = *battery
	}
	if voltage != nil {
		s.state.Voltage = *voltage
	}
}

// FailNextConnects makes the next n connect attempts fail.
func (s *Simulator) FailNextConnects(n int) {
	s.mu.Lock()
	s.failNext = n
	s.mu.Unlock()
}

// Drop ends the current connection as if the wearable went out of range.
func (s *Simulator) Drop() bool {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.state.Connected = false
	s.mu.Unlock()
	if conn == nil {
		return false
	}
	s.logger.Printf("Wearable: dropping connection")
	conn.close()
	return true
}

// SendRaw delivers payload as a notification on the current connection.
func (s *Simulator) SendRaw(payload []byte) bool {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return false
	}
	return conn.deliver(payload)
}

func (s *Simulator) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state := s.state
	state.PendingFaults = s.failNext
	return state
}

func (s *Simulator) Writes() []WrittenValue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	writes := make([]WrittenValue, len(s.writes))
	copy(writes, s.writes)
	return writes
}

func (s *Simulator) payload() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return []byte(fmt.Sprintf("%d,%d,%d,%.2f\n",
		s.state.HeartRateBpm, s.state.SpO2Pct, s.state.BatteryPct, s.state.Voltage))
}

// recordWrite mirrors the firmware: the text is parsed as an integer and
// becomes the pacer interval, 0 switching the pacer off.
func (s *Simulator) recordWrite(data []byte) {
	value := WrittenValue{Timestamp: time.Now(), Data: string(data)}
	if secs, err := strconv.ParseInt(string(data), 10, 64); err == nil {
		value.PacerSecs = &secs
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if value.PacerSecs != nil {
		s.state.PacerSecs = *value.PacerSecs
	}
	s.writes = append(s.writes, value)
	if len(s.writes) > s.writesCap {
		s.writes = s.writes[len(s.writes)-s.writesCap:]
	}
	s.logger.Printf("Wearable: received command %q", data)
}

func (s *Simulator) release(c *simConn) {
	s.mu.Lock()
	if s.conn == c {
		s.conn = nil
		s.state.Connected = false
	}
	s.mu.Unlock()
}

type simConn struct {
	sim *Simulator

	mu      sync.Mutex
	handler func([]byte)

	gone     chan struct{}
	goneOnce sync.Once
}

func newSimConn(sim *Simulator) *simConn {
	return &simConn{sim: sim, gone: make(chan struct{})}
}

func (c *simConn) Subscribe(handler func([]byte)) error {
	c.mu.Lock()
	first := c.handler == nil
	c.handler = handler
	c.mu.Unlock()
	if first {
		go_func_utils.SafeGo(c.sim.logger, c.notifyLoop)
	}
	return nil
}

func (c *simConn) notifyLoop() {
	ticker := time.NewTicker(c.sim.cfg.NotifyInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.gone:
			return
		case <-ticker.C:
			c.deliver(c.sim.payload())
		}
	}
}

func (c *simConn) deliver(payload []byte) bool {
	select {
	case <-c.gone:
		return false
	default:
	}
	c.mu.Lock()
	handler := c.handler
	c.mu.Unlock()
	if handler == nil {
		return false
	}
	handler(payload)
	return true
}

func (c *simConn) Write(ctx context.Context, data []byte) error {
	select {
	case <-c.gone:
		return errors.New("wearable: not connected")
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	c.sim.recordWrite(data)
	return nil
}

func (c *simConn) Disconnected() <-chan struct{} {
	return c.gone
}

func (c *simConn) Disconnect(ctx context.Context) error {
	c.close()
	c.sim.release(c)
	return nil
}

func (c *simConn) close() {
	c.goneOnce.Do(func() { close(c.gone) })
}
