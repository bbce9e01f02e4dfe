package progress

import (
	"context"
	"fmt"
	"io"

	"github.com/cwygoda/thaw/internal/logging"
)

// Reporter renders milestones for an operator.
type Reporter interface {
	Report(ctx context.Context, m Milestone)
}

// DotReporter prints milestones inline, e.g. "Started...5%...10%...Done!".
type DotReporter struct {
	w io.Writer
}

func NewDotReporter(w io.Writer) *DotReporter {
	return &DotReporter{w: w}
}

func (r *DotReporter) Report(_ context.Context, m Milestone) {
	if m.Kind == KindComplete {
		fmt.Fprintln(r.w, m.String())
		return
	}
	fmt.Fprint(r.w, m.String())
}

// LogReporter writes one structured log line per milestone.
type LogReporter struct {
	log logging.Logger
}

func NewLogReporter(log logging.Logger) *LogReporter {
	return &LogReporter{log: log}
}

func (r *LogReporter) Report(ctx context.Context, m Milestone) {
	switch m.Kind {
	case KindStart:
		r.log.Info(ctx, "transfer started")
	case KindComplete:
		r.log.Info(ctx, "transfer complete")
	default:
		r.log.Info(ctx, "transfer progress", "percent", m.Percent)
	}
}

// Listen returns a Listener that feeds a fresh tracker for total bytes and
// hands every milestone to r.
func Listen(ctx context.Context, total int64, r Reporter) (Listener, *Tracker) {
	t := NewTracker(total)
	return func(ev Event) {
		for m := range t.Observe(ev) {
			r.Report(ctx, m)
		}
	}, t
}
