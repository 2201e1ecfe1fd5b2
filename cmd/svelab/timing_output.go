package main

import (
	"fmt"
	"io"

	"svelab/internal/diag"
	"svelab/internal/driver"
)

// printPhaseTimings writes one line per phase and counter of res.
func printPhaseTimings(out io.Writer, res *driver.Result) {
	if out == nil || res.Timing == nil {
		return
	}
	fmt.Fprintf(out, "%s: %.1f ms", res.Name, res.Timing.TotalMS)
	if res.CacheHit {
		fmt.Fprint(out, " (cached)")
	}
	fmt.Fprintln(out)
	for _, p := range res.Timing.Phases {
		fmt.Fprintf(out, "  %-10s %8.2f ms", p.Name, p.DurationMS)
		if p.Note != "" {
			fmt.Fprintf(out, "  %s", p.Note)
		}
		fmt.Fprintln(out)
	}
	for _, c := range res.Timing.Counters {
		fmt.Fprintf(out, "  %-10s %8d\n", c.Name, c.Value)
	}
}

// withoutTimings copies bag minus the timing payloads, which only the
// JSON output carries.
func withoutTimings(bag *diag.Bag) *diag.Bag {
	out := diag.NewBag(bag.Len() + 1)
	for _, d := range bag.Items() {
		if d.Code != diag.ObsTimings {
			out.Add(d)
		}
	}
	return out
}
