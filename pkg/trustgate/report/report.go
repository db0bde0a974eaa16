// Package report renders validation verdicts as human-readable text for CLI
// output and watch-loop replies.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/solwatch/trustgate/pkg/trustgate/trust"
)

// maxListedFollowers caps how many trusted followers the report names before
// summarizing the remainder.
const maxListedFollowers = 10

// FormatVerdict renders a verdict for display. Error verdicts get a short
// form with the failure reason.
func FormatVerdict(v *trust.Verdict, handle string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "TRUSTED ACCOUNT VALIDATION - @%s\n", handle)
	b.WriteString("========================================\n")

	if v == nil {
		b.WriteString("Validation Error: No validation data available\n")
		return b.String()
	}
	if v.Error != "" {
		fmt.Fprintf(&b, "Validation Error: %s\n", v.Error)
		fmt.Fprintf(&b, "API Calls Used: %d\n", v.APICallsUsed)
		return b.String()
	}

	status := "NOT VALIDATED"
	if v.IsValidated {
		status = "VALIDATED"
	}
	fmt.Fprintf(&b, "Status: %s\n", status)
	fmt.Fprintf(&b, "Trusted Followers: %d/%d minimum required\n", v.TrustedFollowerCount, v.MinRequired)
	fmt.Fprintf(&b, "Validation Strength: %d/100\n", v.ValidationStrength)
	fmt.Fprintf(&b, "Trust Level: %s\n", v.TrustScore.TrustLevel)
	fmt.Fprintf(&b, "Trust Score: %.1f/100\n", v.TrustScore.OverallScore)

	if len(v.TrustedFollowers) > 0 {
		b.WriteString("\nTrusted followers found:\n")
		for i, f := range v.TrustedFollowers {
			if i == maxListedFollowers {
				fmt.Fprintf(&b, "  - ... and %d more\n", len(v.TrustedFollowers)-maxListedFollowers)
				break
			}
			fmt.Fprintf(&b, "  - @%s (%s)\n", f.Handle, f.Category)
		}
	}

	if len(v.CategoryBreakdown) > 0 {
		b.WriteString("\nCategory breakdown:\n")
		for _, entry := range sortedBreakdown(v.CategoryBreakdown) {
			plural := "s"
			if entry.count == 1 {
				plural = ""
			}
			fmt.Fprintf(&b, "  - %s: %d follower%s\n", entry.category, entry.count, plural)
		}
	}

	b.WriteString("\nValidation stats:\n")
	fmt.Fprintf(&b, "  - Followers checked: %d\n", v.CheckedFollowerCount)
	fmt.Fprintf(&b, "  - API calls used: %d\n", v.APICallsUsed)

	return b.String()
}

type breakdownEntry struct {
	category string
	count    int
}

// sortedBreakdown orders categories by count descending, then name, so the
// report is deterministic across runs.
func sortedBreakdown(breakdown map[string]int) []breakdownEntry {
	entries := make([]breakdownEntry, 0, len(breakdown))
	for category, count := range breakdown {
		entries = append(entries, breakdownEntry{category, count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].category < entries[j].category
	})
	return entries
}
