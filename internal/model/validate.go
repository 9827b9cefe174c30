package model

import (
	"fmt"
	"strings"
)

// Validate runs the structural checks and, when they all pass, freezes the
// model in the Validated state. Checks run in a fixed order (referential
// integrity, boundary acyclicity, required attributes) and every issue is
// collected before returning a *ValidationError. A failed model stays Draft
// so the caller can fix it and retry. Validating a model that is already
// past Draft succeeds without doing anything.
func (m *Model) Validate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Draft {
		return nil
	}

	var issues []ValidationIssue
	issues = append(issues, m.checkReferences()...)
	issues = append(issues, m.checkBoundaries()...)
	issues = append(issues, m.checkRequiredAttributes()...)
	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	m.state = Validated
	return nil
}

// checkReferences verifies that every flow endpoint and every element's
// boundary is a member of the model.
func (m *Model) checkReferences() []ValidationIssue {
	var issues []ValidationIssue
	for _, e := range m.elements {
		if e.boundary == nil {
			continue
		}
		if !m.owns(e.boundary) {
			err := &UnknownElementError{ID: e.boundary.id}
			issues = append(issues, ValidationIssue{
				Code:      IssueUnknownElement,
				SubjectID: e.id,
				Message:   fmt.Sprintf("boundary %q is not in the model", e.boundary.id),
				Err:       err,
			})
		}
	}
	for _, df := range m.flows {
		for _, end := range []*Element{df.source, df.sink} {
			if m.owns(end) {
				continue
			}
			err := &UnknownElementError{ID: idOf(end)}
			issues = append(issues, ValidationIssue{
				Code:      IssueUnknownElement,
				SubjectID: df.id,
				Message:   err.Error(),
				Err:       err,
			})
		}
	}
	return issues
}

func (m *Model) checkBoundaries() []ValidationIssue {
	var issues []ValidationIssue
	for _, c := range m.boundaryCycles() {
		issues = append(issues, ValidationIssue{
			Code:      IssueBoundaryCycle,
			SubjectID: c.ID,
			Message:   "containment cycle " + strings.Join(c.Path, " → "),
			Err:       c,
		})
	}
	return issues
}

func (m *Model) checkRequiredAttributes() []ValidationIssue {
	var issues []ValidationIssue
	for _, df := range m.flows {
		if strings.TrimSpace(df.protocol) == "" {
			issues = append(issues, ValidationIssue{
				Code:      IssueMissingProtocol,
				SubjectID: df.id,
				Message:   fmt.Sprintf("dataflow %q has no protocol", df.label),
			})
		}
		if df.hasPort && (df.dstPort < 1 || df.dstPort > 65535) {
			issues = append(issues, ValidationIssue{
				Code:      IssueInvalidPort,
				SubjectID: df.id,
				Message:   fmt.Sprintf("destination port %d out of range", df.dstPort),
			})
		}
	}
	return issues
}
