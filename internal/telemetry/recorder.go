package telemetry

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/lowaak/smart-trainer/pool-assistant/internal/events"
	"github.com/lowaak/smart-trainer/pool-assistant/internal/link"
)

// Placeholder is shown instead of a number when there is no usable sample.
const Placeholder = "--"

const DefaultInterval = time.Second

type SampleSource interface {
	LatestSample() (link.TelemetrySample, bool)
}

type SampleSink interface {
	AppendSample(bpm uint16, spo2 uint8) (bool, error)
}

// Reading is what the recorder saw on one tick.
type Reading struct {
	Sample    link.TelemetrySample
	HasSample bool
	Valid     bool
	Logged    bool
	At        time.Time
}

func (r Reading) HeartRateText() string {
	if !r.Valid {
		return Placeholder
	}
	return strconv.Itoa(int(r.Sample.HeartRateBpm))
}

func (r Reading) SpO2Text() string {
	if !r.Valid {
		return Placeholder
	}
	return strconv.Itoa(int(r.Sample.SpO2Pct))
}

// BatteryText is shown for any sample that carried a battery level, valid or not.
func (r Reading) BatteryText() string {
	if !r.HasSample || r.Sample.BatteryPct == nil {
		return Placeholder
	}
	return fmt.Sprintf("%d%%", *r.Sample.BatteryPct)
}

func (r Reading) VoltageText() string {
	if !r.HasSample || r.Sample.Voltage == nil {
		return Placeholder
	}
	return fmt.Sprintf("%.2fV", *r.Sample.Voltage)
}

type RecorderArgs struct {
	Source   SampleSource
	Sink     SampleSink
	Interval time.Duration
	Logger   *log.Logger
}

// Recorder polls the link for its latest sample at a fixed cadence, logs the
// valid ones and publishes every reading for display.
type Recorder struct {
	source   SampleSource
	sink     SampleSink
	interval time.Duration
	logger   *log.Logger

	mu      sync.RWMutex
	last    Reading
	readers *events.ChannelEvent[Reading]
}

func NewRecorder(args RecorderArgs) *Recorder {
	if args.Source == nil {
		panic("Recorder: source cannot be nil")
	}
	if args.Logger == nil {
		panic("Recorder: logger cannot be nil")
	}
	interval := args.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Recorder{
		source:   args.Source,
		sink:     args.Sink,
		interval: interval,
		logger:   args.Logger,
		readers:  events.NewChannelEvent[Reading](true),
	}
}

// RecordOnce takes one reading. Only a valid sample reaches the sink.
func (r *Recorder) RecordOnce(now time.Time) Reading {
	sample, ok := r.source.LatestSample()
	reading := Reading{
		Sample:    sample,
		HasSample: ok,
		Valid:     ok && sample.Valid(),
		At:        now,
	}

	if reading.Valid && r.sink != nil {
		logged, err := r.sink.AppendSample(sample.HeartRateBpm, sample.SpO2Pct)
		if err != nil {
			r.logger.Printf("Recorder: append failed: %v", err)
		}
		reading.Logged = logged
	}

	r.mu.Lock()
	r.last = reading
	r.mu.Unlock()
	r.readers.Notify(reading)
	return reading
}

// Run records once per interval until ctx is done.
func (r *Recorder) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	r.logger.Printf("Recorder: recording every %v", r.interval)
	for {
		select {
		case <-ctx.Done():
			r.logger.Printf("Recorder: stopped")
			return nil
		case now := <-ticker.C:
			r.RecordOnce(now)
		}
	}
}

func (r *Recorder) Last() Reading {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// Listen delivers each reading to ch. The latest reading is replayed on
// registration.
func (r *Recorder) Listen(ch chan<- Reading) func() {
	return r.readers.Listen(ch)
}
