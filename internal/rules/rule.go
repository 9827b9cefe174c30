// Package rules evaluates threat-pattern rules against a validated model.
//
// A Rule is a pure function of a model: it reads the frozen graph and
// returns the findings it matched, in graph traversal order (dataflows in
// insertion order, then elements in insertion order). The Engine runs an
// ordered list of rules and concatenates their output in registration order,
// so the result is the same whether rules run sequentially or in parallel.
package rules

import (
	"strider/internal/finding"
	"strider/internal/model"
)

// Meta describes a rule. Category and Severity are stamped on every finding
// the rule emits unless the finding sets its own.
type Meta struct {
	ID          string
	Title       string
	Category    finding.Category
	Severity    finding.Severity
	Description string
	Mitigation  string
}

// Rule is the contract every built-in and custom rule implements.
type Rule interface {
	// Meta returns the rule's static description.
	Meta() Meta

	// Evaluate returns the findings for m. It must not mutate m and must
	// return the same findings, in the same order, for the same model.
	Evaluate(m *model.Model) []finding.Finding
}

// RuleFunc adapts a plain function to the Rule interface.
type RuleFunc struct {
	M  Meta
	Fn func(m *model.Model) []finding.Finding
}

func (r RuleFunc) Meta() Meta { return r.M }

func (r RuleFunc) Evaluate(m *model.Model) []finding.Finding { return r.Fn(m) }

// emit builds a finding for subjectID stamped with meta.
func emit(meta Meta, subjectID, message string) finding.Finding {
	return finding.Finding{
		RuleID:     meta.ID,
		Title:      meta.Title,
		Severity:   meta.Severity,
		Category:   meta.Category,
		SubjectID:  subjectID,
		Message:    message,
		Mitigation: meta.Mitigation,
	}
}

// stamp fills the fields a rule left empty from its meta.
func stamp(meta Meta, f finding.Finding) finding.Finding {
	if f.RuleID == "" {
		f.RuleID = meta.ID
	}
	if f.Title == "" {
		f.Title = meta.Title
	}
	if f.Category == "" {
		f.Category = meta.Category
	}
	if f.Severity == "" {
		f.Severity = meta.Severity
	}
	if f.Mitigation == "" {
		f.Mitigation = meta.Mitigation
	}
	return f
}
