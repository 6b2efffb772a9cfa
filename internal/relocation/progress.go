package relocation

import "github.com/desertwitch/relocator/internal/schema"

// tracker converts the work units done into percentages for a
// [schema.ProgressSink]. Directories and bytes are weighted equally, so the
// percentage is an approximation. Reported percentages never decrease.
type tracker struct {
	sink  schema.ProgressSink
	total uint64
	done  uint64
	last  int
}

func newTracker(sink schema.ProgressSink) *tracker {
	if sink == nil {
		sink = schema.DiscardProgress{}
	}

	return &tracker{sink: sink}
}

func (t *tracker) setTotal(total uint64) {
	t.total = total
}

func (t *tracker) percent() int {
	if t.total == 0 {
		return t.last
	}

	p := int(float64(t.done) / float64(t.total) * 100) //nolint:mnd
	p = max(0, min(p, 100))                             //nolint:mnd

	return max(p, t.last)
}

// advance adds done units and returns whether the percentage changed.
func (t *tracker) advance(units uint64) bool {
	t.done += units

	p := t.percent()
	changed := p != t.last
	t.last = p

	return changed
}

func (t *tracker) report(message string) {
	t.last = t.percent()
	t.sink.Report(schema.ProgressUpdate{Percent: t.last, Message: message})
}

// milestone reports a phase change or provider output, which consumers are
// not to drop.
func (t *tracker) milestone(message string) {
	t.last = t.percent()
	t.sink.Report(schema.ProgressUpdate{Percent: t.last, Message: message, Milestone: true})
}

func (t *tracker) finish(message string) {
	t.last = 100 //nolint:mnd
	t.sink.Report(schema.ProgressUpdate{Percent: t.last, Message: message, Milestone: true})
}
