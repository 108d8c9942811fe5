package pipeline

import (
	"fmt"
	"strings"

	"turnpp/internal/domain"
)

// FormatSummary renders a run summary as a short Slack message.
func FormatSummary(s domain.RunSummary) string {
	var b strings.Builder
	status := "completed"
	if s.Aborted {
		status = "aborted"
	}
	fmt.Fprintf(&b, "*Turn post-processing %s* (%s)\n", status, s.RunDate)
	fmt.Fprintf(&b, "Parents: %d, children: %d\n", s.Parents, s.Children)
	fmt.Fprintf(&b, "Checks passed: %d, failed: %d\n", s.Passed, s.Failed)
	fmt.Fprintf(&b, "Archived: %d, marked processed: %d\n", s.Archived, s.Marked)
	if len(s.Errors) > 0 {
		fmt.Fprintf(&b, "Errors (%d):\n", len(s.Errors))
		for _, e := range s.Errors {
			b.WriteString("- " + e + "\n")
		}
	}
	return b.String()
}
