package events

// lastValue remembers the most recent notification of an event.
// Callers hold the owning event's lock.
type lastValue[T any] struct {
	enabled bool
	value   T
	set     bool
}

func (l *lastValue[T]) store(v T) {
	if !l.enabled {
		return
	}
	l.value = v
	l.set = true
}

func (l *lastValue[T]) load() (T, bool) {
	if !l.enabled || !l.set {
		var zero T
		return zero, false
	}
	return l.value, true
}
