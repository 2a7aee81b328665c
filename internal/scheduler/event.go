package scheduler

import "sync"

// EventKind tags an Event.
type EventKind int

const (
	EventPlanned EventKind = iota
	EventTaskStarted
	EventTaskFinished
	EventProgress
	EventLog
	EventFailed
	EventCanceled
	EventDone
)

func (k EventKind) String() string {
	switch k {
	case EventPlanned:
		return "planned"
	case EventTaskStarted:
		return "task_started"
	case EventTaskFinished:
		return "task_finished"
	case EventProgress:
		return "progress"
	case EventLog:
		return "log"
	case EventFailed:
		return "failed"
	case EventCanceled:
		return "canceled"
	case EventDone:
		return "done"
	}
	return "unknown"
}

// Event is one notification from a run. Only the fields relevant to Kind are
// set.
type Event struct {
	Kind     EventKind
	RunID    string
	TaskID   string
	Plan     []string
	Progress Progress
	Line     string
	Err      error
}

// queue decouples the run goroutine from the consumer: push never blocks,
// and events are delivered in order on out.
type queue struct {
	mu     sync.Mutex
	items  []Event
	closed bool
	signal chan struct{}
	out    chan Event
}

func newQueue() *queue {
	q := &queue{signal: make(chan struct{}, 1), out: make(chan Event)}
	go q.forward()
	return q
}

func (q *queue) push(e Event) {
	q.mu.Lock()
	q.items = append(q.items, e)
	q.mu.Unlock()
	q.wake()
}

func (q *queue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wake()
}

func (q *queue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *queue) forward() {
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			closed := q.closed
			q.mu.Unlock()
			if closed {
				close(q.out)
				return
			}
			<-q.signal
			continue
		}
		e := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()
		q.out <- e
	}
}
