package pacing

import (
	"errors"
	"log"
	"sync"

	"github.com/lowaak/smart-trainer/pool-assistant/internal/go_func_utils"
)

const pacerQueueSize = 16

var (
	ErrPacerQueueFull   = errors.New("pacer queue full")
	ErrPacerQueueClosed = errors.New("pacer queue closed")
)

// PacerQueue hands pacer commands to a single sender goroutine, so they reach
// the wearable one at a time and in the order they were queued. SendCommand
// never blocks on the wearable.
type PacerQueue struct {
	pacer  PacerCommander
	logger *log.Logger

	mu     sync.Mutex
	closed bool
	values chan int64
	wg     sync.WaitGroup
}

func NewPacerQueue(pacer PacerCommander, logger *log.Logger) *PacerQueue {
	if pacer == nil {
		panic("PacerQueue: pacer cannot be nil")
	}
	if logger == nil {
		panic("PacerQueue: logger cannot be nil")
	}
	q := &PacerQueue{
		pacer:  pacer,
		logger: logger,
		values: make(chan int64, pacerQueueSize),
	}
	go_func_utils.SafeGoWG(logger, &q.wg, q.run)
	return q
}

// SendCommand queues value behind any command still in flight.
func (q *PacerQueue) SendCommand(value int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrPacerQueueClosed
	}
	select {
	case q.values <- value:
		return nil
	default:
		return ErrPacerQueueFull
	}
}

// Close sends whatever is still queued, then stops the sender.
func (q *PacerQueue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.values)
	}
	q.mu.Unlock()
	q.wg.Wait()
}

func (q *PacerQueue) run() {
	for value := range q.values {
		if err := q.pacer.SendCommand(value); err != nil {
			q.logger.Printf("Pacer: command %d failed: %v", value, err)
			continue
		}
		if value == 0 {
			q.logger.Printf("Pacer: off")
		} else {
			q.logger.Printf("Pacer: set to %ds", value)
		}
	}
}
