package events

import (
	"sync"
)

// ChannelEvent fans values out to listener channels.
// Sends never block: a listener whose channel is full misses that value,
// unless it registered with ListenLatest.
type ChannelEvent[T any] struct {
	mu       sync.RWMutex
	channels map[uint64]listener[T]
	nextID   uint64
	last     lastValue[T]

	// serialises deliveries so a replaced value is never newer than its replacement
	sendMu sync.Mutex
}

type listener[T any] struct {
	ch chan<- T
	// set for ListenLatest: the stale queued value is dropped instead of the new one
	latest chan T
}

// NewChannelEvent creates a ChannelEvent. With replayLast set, the most recent
// value is kept and delivered to each new listener as soon as it registers.
func NewChannelEvent[T any](replayLast bool) *ChannelEvent[T] {
	return &ChannelEvent[T]{
		channels: make(map[uint64]listener[T]),
		last:     lastValue[T]{enabled: replayLast},
	}
}

// Listen registers ch and returns the function that removes it again.
func (e *ChannelEvent[T]) Listen(ch chan<- T) func() {
	if ch == nil {
		panic("ChannelEvent: channel cannot be nil")
	}
	return e.register(listener[T]{ch: ch})
}

// ListenLatest registers ch so that it always ends up holding the newest
// value: when ch is full, the queued value is discarded to make room. Suited
// to state snapshots where only the latest one matters.
func (e *ChannelEvent[T]) ListenLatest(ch chan T) func() {
	if ch == nil {
		panic("ChannelEvent: channel cannot be nil")
	}
	return e.register(listener[T]{ch: ch, latest: ch})
}

func (e *ChannelEvent[T]) register(l listener[T]) func() {
	e.sendMu.Lock()
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.channels[id] = l
	replay, ok := e.last.load()
	e.mu.Unlock()

	if ok {
		l.deliver(replay)
	}
	e.sendMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.channels, id)
			e.mu.Unlock()
		})
	}
}

// Notify delivers value to every registered channel.
func (e *ChannelEvent[T]) Notify(value T) {
	e.sendMu.Lock()
	defer e.sendMu.Unlock()

	e.mu.Lock()
	e.last.store(value)
	targets := make([]listener[T], 0, len(e.channels))
	for _, l := range e.channels {
		targets = append(targets, l)
	}
	e.mu.Unlock()

	for _, l := range targets {
		l.deliver(value)
	}
}

func (l listener[T]) deliver(value T) {
	select {
	case l.ch <- value:
		return
	default:
	}
	if l.latest == nil {
		return
	}
	// the reader may take the stale value first, either way ch ends up with value
	select {
	case <-l.latest:
	default:
	}
	select {
	case l.ch <- value:
	default:
	}
}

// Last returns the most recent value if replay is enabled and Notify has run.
func (e *ChannelEvent[T]) Last() (T, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last.load()
}

// ListenerCount returns the number of registered channels.
func (e *ChannelEvent[T]) ListenerCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.channels)
}
