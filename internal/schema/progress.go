package schema

// ProgressUpdate is a transient progress report of a running relocation.
// Percent is always within 0 and 100. A Milestone marks a phase change or
// output of the link provider, which consumers should not drop.
type ProgressUpdate struct {
	Percent   int
	Message   string
	Milestone bool
}

// ProgressSink receives the [ProgressUpdate] of a running relocation. Updates
// of one relocation are never delivered concurrently and arrive in order, but
// not all from the same goroutine: output of the link provider is delivered
// from the provider's own goroutines while the relocation waits on it.
type ProgressSink interface {
	Report(update ProgressUpdate)
}

// ProgressFunc is an adapter allowing ordinary functions to be used as a
// [ProgressSink].
type ProgressFunc func(update ProgressUpdate)

// Report calls f(update).
func (f ProgressFunc) Report(update ProgressUpdate) {
	f(update)
}

// DiscardProgress is a [ProgressSink] throwing away all updates.
type DiscardProgress struct{}

// Report discards the update.
func (DiscardProgress) Report(ProgressUpdate) {}
