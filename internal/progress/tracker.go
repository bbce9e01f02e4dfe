// Package progress turns byte-transferred events into coarse completion
// milestones (start, every 5%, done).
package progress

import (
	"fmt"
	"iter"
	"math"
)

// Step is the milestone granularity in percent.
const Step = 5

type EventType int

const (
	EventStarted EventType = iota
	EventBytes
	EventCompleted
)

// Event is emitted by a transfer backend.
type Event struct {
	Type  EventType
	Bytes int64
}

func Started() Event      { return Event{Type: EventStarted} }
func Bytes(n int64) Event { return Event{Type: EventBytes, Bytes: n} }
func Completed() Event    { return Event{Type: EventCompleted} }

// Listener receives transfer events. Backends call it synchronously.
type Listener func(Event)

type Kind int

const (
	KindStart Kind = iota
	KindPercent
	KindComplete
)

// Milestone is a notification worth showing to an operator.
type Milestone struct {
	Kind    Kind
	Percent int
}

func (m Milestone) String() string {
	switch m.Kind {
	case KindStart:
		return "Started..."
	case KindComplete:
		return "Done!"
	}
	return fmt.Sprintf("%d%%...", m.Percent)
}

// Tracker accumulates events for a single transfer. It is not safe for
// concurrent use.
type Tracker struct {
	total       int64
	transferred int64
	last        int // -1 until a percentage has been reported
	started     bool
	completed   bool
}

func NewTracker(total int64) *Tracker {
	return &Tracker{total: total, last: -1}
}

func (t *Tracker) Transferred() int64 { return t.transferred }

// Last returns the last reported percentage, or -1.
func (t *Tracker) Last() int { return t.last }

// Observe records ev and returns the milestones it produced, in order.
// State is updated eagerly; the returned sequence only renders it.
func (t *Tracker) Observe(ev Event) iter.Seq[Milestone] {
	start := !t.started
	t.started = true

	lo, hi := 0, -1
	complete := false
	switch ev.Type {
	case EventBytes:
		if ev.Bytes > 0 {
			t.transferred += ev.Bytes
			lo, hi = t.advance()
		}
	case EventCompleted:
		complete = !t.completed
		t.completed = true
	}

	return func(yield func(Milestone) bool) {
		if start && !yield(Milestone{Kind: KindStart}) {
			return
		}
		for p := lo; p <= hi; p += Step {
			if !yield(Milestone{Kind: KindPercent, Percent: p}) {
				return
			}
		}
		if complete {
			yield(Milestone{Kind: KindComplete})
		}
	}
}

// advance moves the last reported boundary forward and returns the newly
// crossed range [lo, hi]; hi < lo when nothing was crossed. 0% is only
// reported when the very first bytes round to it.
func (t *Tracker) advance() (int, int) {
	pct := t.percent()
	if t.last < 0 && pct == 0 {
		t.last = 0
		return 0, 0
	}
	reached := pct - pct%Step
	lo := max(t.last+Step, Step)
	if reached < lo {
		return 0, -1
	}
	t.last = reached
	return lo, reached
}

func (t *Tracker) percent() int {
	if t.total <= 0 {
		return 100
	}
	p := int(math.Round(100 * float64(t.transferred) / float64(t.total)))
	return min(max(p, 0), 100)
}
