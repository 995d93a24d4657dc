package checker

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
)

// Tally counts assertion outcomes.
type Tally struct {
	Passed int
	Failed int
}

// Total is the number of recorded assertions.
func (t Tally) Total() int {
	return t.Passed + t.Failed
}

// EntryResult is what one check produced.
type EntryResult struct {
	Index    int
	Name     string
	Passed   int
	Failed   int
	Kind     FailureKind
	Err      error
	Result   any
	Outcome  Outcome
	Duration time.Duration
}

// OK reports whether the check recorded no failure.
func (r EntryResult) OK() bool {
	return r.Failed == 0
}

// Report is the outcome of a run.
type Report struct {
	Tally
	// Expected is the assertion count the checklist was declared with; 0 if unset.
	Expected int
	Entries  []EntryResult
	Duration time.Duration
}

// OK reports whether no assertion failed.
func (r Report) OK() bool {
	return r.Failed == 0
}

// FailedEntries returns the checks that recorded at least one failure.
func (r Report) FailedEntries() []EntryResult {
	var out []EntryResult
	for _, e := range r.Entries {
		if !e.OK() {
			out = append(out, e)
		}
	}
	return out
}

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
	warnColor = color.New(color.FgYellow)
	dimColor  = color.New(color.Faint)
)

func printEntry(w io.Writer, r EntryResult) {
	status := okColor.Sprint("[OK]")
	if !r.OK() {
		status = failColor.Sprint("[FAIL]")
	}
	fmt.Fprintf(w, "%s %s %s\n", status, r.Name, dimColor.Sprintf("(%s)", r.Duration.Round(time.Millisecond)))
	if r.Err != nil {
		fmt.Fprintf(w, "      %s: %v\n", r.Kind, r.Err)
	} else if r.Failed > 0 {
		fmt.Fprintf(w, "      %d of %d assertion(s) failed: %s\n", r.Failed, r.Passed+r.Failed, formatAssertions(r.Outcome))
	}
}

func formatAssertions(o Outcome) string {
	parts := make([]string, 0, len(o.assertions))
	for _, ok := range o.assertions {
		parts = append(parts, fmt.Sprint(ok))
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// PrintTotal writes the run summary to w. It does not change the tally.
func (c *Checker) PrintTotal(w io.Writer) error {
	return c.Report().Print(w)
}

// Print writes the summary of r to w.
func (r Report) Print(w io.Writer) error {
	var b strings.Builder
	b.WriteString(strings.Repeat("-", 40) + "\n")
	fmt.Fprintf(&b, "Checks:  %d\n", len(r.Entries))
	fmt.Fprintf(&b, "Passed:  %s\n", okColor.Sprint(r.Passed))
	if r.Failed > 0 {
		fmt.Fprintf(&b, "Failed:  %s\n", failColor.Sprint(r.Failed))
	} else {
		fmt.Fprintf(&b, "Failed:  %d\n", r.Failed)
	}
	if r.Expected > 0 {
		fmt.Fprintf(&b, "Total:   %d / %d expected\n", r.Total(), r.Expected)
		if r.Total() != r.Expected {
			b.WriteString(warnColor.Sprintf("Warning: %d assertion(s) recorded, %d expected\n", r.Total(), r.Expected))
		}
	} else {
		fmt.Fprintf(&b, "Total:   %d\n", r.Total())
	}
	for _, e := range r.FailedEntries() {
		fmt.Fprintf(&b, "  - %s (%s)\n", e.Name, e.kindOrAssertion())
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func (r EntryResult) kindOrAssertion() FailureKind {
	if r.Kind == FailureNone {
		return FailureAssertion
	}
	return r.Kind
}
