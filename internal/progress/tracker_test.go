package progress

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *Tracker, events ...Event) []Milestone {
	var out []Milestone
	for _, ev := range events {
		out = slices.AppendSeq(out, t.Observe(ev))
	}
	return out
}

func percents(ms []Milestone) []int {
	var out []int
	for _, m := range ms {
		if m.Kind == KindPercent {
			out = append(out, m.Percent)
		}
	}
	return out
}

func count(ms []Milestone, k Kind) int {
	n := 0
	for _, m := range ms {
		if m.Kind == k {
			n++
		}
	}
	return n
}

func TestTracker_IrregularChunks(t *testing.T) {
	const total = 100 * 1024 * 1024
	chunks := []int64{3_000_000, 17_000_000, 9_500_000, 25_000_000, 1_257_600, 30_000_000, 19_100_000}
	var sum int64
	for _, c := range chunks {
		sum += c
	}
	require.Equal(t, int64(total), sum)

	tr := NewTracker(total)
	events := []Event{Started()}
	for _, c := range chunks {
		events = append(events, Bytes(c))
	}
	events = append(events, Completed())

	ms := collect(tr, events...)

	require.NotEmpty(t, ms)
	assert.Equal(t, KindStart, ms[0].Kind)
	assert.Equal(t, KindComplete, ms[len(ms)-1].Kind)
	assert.Equal(t, 1, count(ms, KindStart))
	assert.Equal(t, 1, count(ms, KindComplete))

	var want []int
	for p := 5; p <= 100; p += 5 {
		want = append(want, p)
	}
	assert.Equal(t, want, percents(ms))
	assert.Equal(t, int64(total), tr.Transferred())
}

func TestTracker_NeverRepeatsPercent(t *testing.T) {
	tr := NewTracker(1000)
	ms := collect(tr,
		Bytes(50), // 5%
		Bytes(0),  // ignored
		Bytes(1),  // still 5%
		Bytes(4),  // 6% -> bucket 5 again
		Bytes(45), // 10%
		Bytes(0),
		Bytes(400), // 50%
	)

	ps := percents(ms)
	assert.Equal(t, []int{5, 10, 15, 20, 25, 30, 35, 40, 45, 50}, ps)
	for _, p := range ps {
		assert.Zero(t, p%Step, "milestone %d is not a multiple of %d", p, Step)
	}
	assert.Equal(t, 50, tr.Last())
}

func TestTracker_StartOnFirstEventOnly(t *testing.T) {
	tr := NewTracker(100)
	ms := collect(tr, Bytes(10), Started(), Bytes(10), Completed(), Completed())

	assert.Equal(t, KindStart, ms[0].Kind)
	assert.Equal(t, 1, count(ms, KindStart))
	assert.Equal(t, 1, count(ms, KindComplete))
	assert.Equal(t, []int{5, 10, 15, 20}, percents(ms))
}

func TestTracker_TinyTransferCompletes(t *testing.T) {
	tr := NewTracker(10 * 1024 * 1024)
	ms := collect(tr, Started(), Bytes(100), Completed())

	assert.Equal(t, []Milestone{
		{Kind: KindStart},
		{Kind: KindPercent, Percent: 0},
		{Kind: KindComplete},
	}, ms)
}

func TestTracker_ZeroTotal(t *testing.T) {
	tr := NewTracker(0)
	ms := collect(tr, Started(), Bytes(1), Completed())

	ps := percents(ms)
	require.NotEmpty(t, ps)
	assert.Equal(t, 100, ps[len(ps)-1])
}

func TestTracker_OverReportClamps(t *testing.T) {
	tr := NewTracker(100)
	ms := collect(tr, Bytes(90), Bytes(50))

	ps := percents(ms)
	assert.Equal(t, 100, ps[len(ps)-1])
	assert.Len(t, ps, 20)
}

func TestTracker_EarlyBreakKeepsState(t *testing.T) {
	tr := NewTracker(100)
	for range tr.Observe(Bytes(50)) {
		break
	}
	ms := collect(tr, Bytes(5))
	assert.Equal(t, []int{55}, percents(ms))
}

func TestMilestone_String(t *testing.T) {
	assert.Equal(t, "Started...", Milestone{Kind: KindStart}.String())
	assert.Equal(t, "35%...", Milestone{Kind: KindPercent, Percent: 35}.String())
	assert.Equal(t, "Done!", Milestone{Kind: KindComplete}.String())
}

type recordingReporter struct {
	got []Milestone
}

func (r *recordingReporter) Report(_ context.Context, m Milestone) {
	r.got = append(r.got, m)
}

func TestListen_FeedsReporter(t *testing.T) {
	rep := &recordingReporter{}
	listener, tr := Listen(context.Background(), 200, rep)

	listener(Started())
	listener(Bytes(100))
	listener(Bytes(100))
	listener(Completed())

	assert.Equal(t, int64(200), tr.Transferred())
	assert.Equal(t, KindStart, rep.got[0].Kind)
	assert.Equal(t, KindComplete, rep.got[len(rep.got)-1].Kind)
	assert.Len(t, percents(rep.got), 20)
}
