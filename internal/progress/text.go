package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/desertwitch/relocator/internal/schema"
	"golang.org/x/time/rate"
)

const (
	defaultLinesPerSecond = 10
	defaultLineBurst      = 20
)

// TextSink is a [schema.ProgressSink] printing progress lines to an
// [io.Writer]. A line is always printed for a milestone or when the
// percentage changes or is complete, other lines are rate-limited so that a
// tree of many small files does not flood the terminal.
type TextSink struct {
	sync.Mutex
	out     io.Writer
	limiter *rate.Limiter
	last    int
	printed bool
}

// NewTextSink returns a pointer to a new [TextSink] writing to out, allowing
// up to linesPerSecond lines of unchanged percentage. A non-positive value
// selects the default limit.
func NewTextSink(out io.Writer, linesPerSecond int) *TextSink {
	burst := defaultLineBurst

	if linesPerSecond <= 0 {
		linesPerSecond = defaultLinesPerSecond
	} else {
		burst = max(1, linesPerSecond*2) //nolint:mnd
	}

	return &TextSink{
		out:     out,
		limiter: rate.NewLimiter(rate.Every(time.Second/time.Duration(linesPerSecond)), burst),
	}
}

// Report prints the update, unless it is rate-limited.
func (s *TextSink) Report(update schema.ProgressUpdate) {
	s.Lock()
	defer s.Unlock()

	changed := !s.printed || update.Milestone || update.Percent != s.last || update.Percent >= 100

	if !s.limiter.Allow() && !changed {
		return
	}

	s.last = update.Percent
	s.printed = true

	fmt.Fprintln(s.out, FormatLine(update))
}

// FormatLine returns the textual representation of a [schema.ProgressUpdate].
func FormatLine(update schema.ProgressUpdate) string {
	return fmt.Sprintf("[%3d%%] %s", update.Percent, update.Message)
}

// Multi returns a [schema.ProgressSink] reporting every update to all sinks.
func Multi(sinks ...schema.ProgressSink) schema.ProgressSink {
	return schema.ProgressFunc(func(update schema.ProgressUpdate) {
		for _, sink := range sinks {
			sink.Report(update)
		}
	})
}
