package lockbridge

import (
	"context"
	"fmt"
	"io"
	"time"
)

const DefaultReportInterval = 10 * time.Second

// Report renders a read-only status table of every active slot. Slot numbers
// are 1-based to match the console.
func (b *Bridge) Report(w io.Writer) {
	active, capacity := b.LockCount()

	fmt.Fprintln(w, "========== LOCK BRIDGE STATUS ==========")
	fmt.Fprintf(w, "Active Locks: %d / %d\n", active, capacity)
	fmt.Fprintln(w, "----------------------------------------")

	for _, s := range b.Snapshot() {
		fmt.Fprintf(w, "Lock %d: %s\n", s.Slot+1, s.Name)
		fmt.Fprintf(w, "  Identifier: %s\n", s.ExternalID)

		fmt.Fprintf(w, "  State: %s", s.State)
		if s.Pending {
			fmt.Fprintf(w, " (moving to %s)", s.Target)
		}
		if s.Fault {
			fmt.Fprint(w, " [FAULT]")
		}
		if s.LowBattery {
			fmt.Fprint(w, " [LOW BATTERY]")
		}
		if s.Identifying {
			fmt.Fprint(w, " [IDENTIFYING]")
		}
		fmt.Fprintln(w)

		indicator := "OFF"
		if s.Indicator {
			indicator = "ON"
		}
		fmt.Fprintf(w, "  Indicator: %s\n", indicator)
		fmt.Fprintln(w, "----------------------------------------")
	}

	fmt.Fprintln(w, "========================================")
}

// RunReporter periodically writes the status table until the context ends.
// Purely observational; it never mutates.
func (b *Bridge) RunReporter(ctx context.Context, w io.Writer, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultReportInterval
	}

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			b.Report(w)
		}
	}
}
