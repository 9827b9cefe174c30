// Package finding defines the threat findings emitted by the rule engine and
// the STRIDE and severity taxonomies used to classify them.
package finding

import (
	"fmt"
	"slices"
)

// Finding is one threat-pattern match against a model element or dataflow.
// Findings are values; copying one never aliases another.
type Finding struct {
	// RuleID identifies the rule that emitted the finding.
	RuleID string `yaml:"rule_id" json:"rule_id"`

	// Title is the rule's short title.
	Title string `yaml:"title" json:"title"`

	Severity Severity `yaml:"severity" json:"severity"`
	Category Category `yaml:"category" json:"category"`

	// SubjectID is the id of the element or dataflow the finding is about.
	SubjectID string `yaml:"subject_id" json:"subject_id"`

	Message string `yaml:"message" json:"message"`

	// Mitigation is optional remediation guidance copied from the rule.
	Mitigation string `yaml:"mitigation,omitempty" json:"mitigation,omitempty"`
}

// Validate checks that the finding has all required fields and valid values.
func (f Finding) Validate() error {
	if f.RuleID == "" {
		return fmt.Errorf("rule id is required")
	}
	if f.SubjectID == "" {
		return fmt.Errorf("subject id is required")
	}
	if !f.Category.IsValid() {
		return fmt.Errorf("invalid category: %s", f.Category)
	}
	if !f.Severity.IsValid() {
		return fmt.Errorf("invalid severity: %s", f.Severity)
	}
	return nil
}

// String renders a single-line summary, e.g. "[high] Spoofing frontend: message".
func (f Finding) String() string {
	return fmt.Sprintf("[%s] %s %s: %s", f.Severity, f.Category, f.SubjectID, f.Message)
}

// SortForReport returns a copy of fs ordered by STRIDE category, then severity
// (critical first). Ties keep their original order.
func SortForReport(fs []Finding) []Finding {
	out := slices.Clone(fs)
	slices.SortStableFunc(out, func(a, b Finding) int {
		if d := a.Category.Rank() - b.Category.Rank(); d != 0 {
			return d
		}
		return a.Severity.Rank() - b.Severity.Rank()
	})
	return out
}

// CountBySeverity tallies findings per severity.
func CountBySeverity(fs []Finding) map[Severity]int {
	counts := make(map[Severity]int)
	for _, f := range fs {
		counts[f.Severity]++
	}
	return counts
}

// Highest returns the most severe severity present in fs, and false when fs is empty.
func Highest(fs []Finding) (Severity, bool) {
	if len(fs) == 0 {
		return "", false
	}
	best := fs[0].Severity
	for _, f := range fs[1:] {
		if f.Severity.Rank() < best.Rank() {
			best = f.Severity
		}
	}
	return best, true
}
