package reconcile

import (
	"fmt"
	"io"
	"strings"
	"time"
)

const reportRule = 60

// Summary is the result of one reconciliation run.
type Summary struct {
	RunID           string
	DryRun          bool
	RecordsScanned  int
	Malformed       int
	Identities      int
	DuplicateGroups int
	Merged          int
	Retired         int
	Failures        []Failure
	Planned         []Plan
	Elapsed         time.Duration
}

// Complete reports whether every duplicate group found was merged. A dry
// run is never complete.
func (s *Summary) Complete() bool {
	return !s.DryRun && s.Merged == s.DuplicateGroups
}

// WriteReport renders the human-readable run summary.
func (s *Summary) WriteReport(w io.Writer) error {
	var b strings.Builder
	rule := strings.Repeat("=", reportRule)

	fmt.Fprintln(&b, rule)
	if s.RunID != "" {
		fmt.Fprintf(&b, "Cleanup Summary (run %s)\n", s.RunID)
	} else {
		fmt.Fprintln(&b, "Cleanup Summary")
	}
	fmt.Fprintf(&b, "   Records scanned: %d\n", s.RecordsScanned)
	fmt.Fprintf(&b, "   Total unique addresses: %d\n", s.Identities)
	fmt.Fprintf(&b, "   Duplicates found: %d\n", s.DuplicateGroups)
	fmt.Fprintf(&b, "   Merges performed: %d\n", s.Merged)
	fmt.Fprintf(&b, "   Records retired: %d\n", s.Retired)
	if s.Malformed > 0 {
		fmt.Fprintf(&b, "   Malformed records skipped: %d\n", s.Malformed)
	}
	if len(s.Failures) > 0 {
		fmt.Fprintf(&b, "   Failed groups: %d\n", len(s.Failures))
		for _, f := range s.Failures {
			if f.Key != "" {
				fmt.Fprintf(&b, "     - %s (%s %s): %v\n", f.Identity, f.Stage, f.Key, f.Err)
			} else {
				fmt.Fprintf(&b, "     - %s (%s): %v\n", f.Identity, f.Stage, f.Err)
			}
		}
	}
	if s.Elapsed > 0 {
		fmt.Fprintf(&b, "   Elapsed: %s\n", s.Elapsed.Round(time.Millisecond))
	}
	fmt.Fprintln(&b, rule)

	switch {
	case s.DuplicateGroups == 0:
		fmt.Fprintln(&b, "No duplicates found! Collection is clean.")
	case s.DryRun:
		fmt.Fprintf(&b, "Dry run: %d merge(s) planned, nothing was written.\n", len(s.Planned))
		for _, p := range s.Planned {
			fmt.Fprintf(&b, "   %s: keep score %d from %s, retire %s\n",
				p.Identity, p.Score, p.SurvivorKey, strings.Join(p.Retire, ", "))
		}
	case s.Complete():
		fmt.Fprintln(&b, "Cleanup completed. Every duplicate was merged, keeping the highest score.")
	default:
		fmt.Fprintf(&b, "Cleanup incomplete: %d of %d duplicate groups merged. Re-run to finish.\n",
			s.Merged, s.DuplicateGroups)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
