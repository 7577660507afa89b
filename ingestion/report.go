package ingestion

import (
	"fmt"
	"io"
	"time"

	"github.com/poiesic/voxbank/core"
)

// Report summarizes one ingestion run.
type Report struct {
	RunID        string
	Collection   string
	NewEntries   int
	Skipped      []core.Skip
	TotalInStore int
	StartedAt    time.Time
	FinishedAt   time.Time
}

// SkipCounts returns the number of skips per reason.
func (r *Report) SkipCounts() map[core.SkipReason]int {
	counts := make(map[core.SkipReason]int)
	for _, s := range r.Skipped {
		counts[s.Reason]++
	}
	return counts
}

// Summary converts the report into its persisted form.
func (r *Report) Summary() *core.RunSummary {
	return &core.RunSummary{
		RunID:        r.RunID,
		Collection:   r.Collection,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
		NewEntries:   r.NewEntries,
		Skipped:      len(r.Skipped),
		TotalInStore: r.TotalInStore,
	}
}

// Print writes a human-readable summary, one line per skip.
func (r *Report) Print(w io.Writer) {
	fmt.Fprintf(w, "Run %s on collection %q\n", r.RunID, r.Collection)
	fmt.Fprintf(w, "New entries: %d\n", r.NewEntries)
	fmt.Fprintf(w, "Skipped: %d\n", len(r.Skipped))
	for _, s := range r.Skipped {
		if s.Cause != "" {
			fmt.Fprintf(w, "  line %d %s: %s (%s)\n", s.Line, s.Filename, s.Reason, s.Cause)
		} else {
			fmt.Fprintf(w, "  line %d %s: %s\n", s.Line, s.Filename, s.Reason)
		}
	}
	fmt.Fprintf(w, "Total in store: %d\n", r.TotalInStore)
	if !r.FinishedAt.IsZero() {
		fmt.Fprintf(w, "Duration: %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}
}
