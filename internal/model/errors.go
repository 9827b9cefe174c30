package model

import (
	"fmt"
	"strings"
)

// DuplicateIDError is returned when an explicit id is already used by an
// element or dataflow of the same model.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate id %q", e.ID)
}

// UnknownElementError is returned when an element is not a member of the model.
type UnknownElementError struct {
	ID string
}

func (e *UnknownElementError) Error() string {
	if e.ID == "" {
		return "unknown element: <nil>"
	}
	return fmt.Sprintf("unknown element %q", e.ID)
}

// SelfLoopError is returned when a dataflow's source and sink are the same element.
type SelfLoopError struct {
	ID string
}

func (e *SelfLoopError) Error() string {
	return fmt.Sprintf("dataflow from %q to itself", e.ID)
}

// KindError is returned when an operation is not valid for an element's kind,
// e.g. placing an element inside a non-boundary or setting isEncrypted on an actor.
type KindError struct {
	ID     string
	Kind   Kind
	Reason string
}

func (e *KindError) Error() string {
	return fmt.Sprintf("%s %q: %s", e.Kind, e.ID, e.Reason)
}

// BoundaryCycleError reports a containment cycle among boundaries. ID names the
// first element reached twice; Path is the walk that closed the cycle.
type BoundaryCycleError struct {
	ID   string
	Path []string
}

func (e *BoundaryCycleError) Error() string {
	return fmt.Sprintf("boundary cycle at %q: %s", e.ID, strings.Join(e.Path, " → "))
}

// FrozenModelError is returned when the graph is mutated after validation.
type FrozenModelError struct {
	Op    string
	State State
}

func (e *FrozenModelError) Error() string {
	return fmt.Sprintf("%s: model is %s and can no longer be modified", e.Op, e.State)
}

// AnalysisError reports a pipeline stage called out of order.
type AnalysisError struct {
	Op    string
	State State
	Want  State
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("%s: model is %s, requires %s", e.Op, e.State, e.Want)
}

// IssueCode classifies a validation issue.
type IssueCode string

const (
	IssueUnknownElement  IssueCode = "unknown-element"
	IssueBoundaryCycle   IssueCode = "boundary-cycle"
	IssueMissingProtocol IssueCode = "missing-protocol"
	IssueInvalidPort     IssueCode = "invalid-port"
)

// ValidationIssue is one structural problem found by Validate.
type ValidationIssue struct {
	Code      IssueCode
	SubjectID string
	Message   string
	// Err is the typed error behind the issue, when there is one.
	Err error
}

func (i ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Code, i.SubjectID, i.Message)
}

// ValidationError aggregates every issue found in one validation pass.
type ValidationError struct {
	Issues []ValidationIssue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 1 {
		return "validation failed: " + e.Issues[0].String()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "validation failed with %d issues:", len(e.Issues))
	for _, is := range e.Issues {
		b.WriteString("\n  - " + is.String())
	}
	return b.String()
}

// Unwrap exposes the typed issue errors to errors.Is and errors.As.
func (e *ValidationError) Unwrap() []error {
	var errs []error
	for _, is := range e.Issues {
		if is.Err != nil {
			errs = append(errs, is.Err)
		}
	}
	return errs
}

// Has reports whether any issue carries the given code.
func (e *ValidationError) Has(code IssueCode) bool {
	for _, is := range e.Issues {
		if is.Code == code {
			return true
		}
	}
	return false
}
