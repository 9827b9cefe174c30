package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/owenrumney/go-sarif/v2/sarif"

	"strider/internal/finding"
	"strider/internal/model"
)

// securitySeverity is the numeric score code-scanning tools sort by.
var securitySeverity = map[finding.Severity]string{
	finding.SeverityCritical: "9.5",
	finding.SeverityHigh:     "8.0",
	finding.SeverityMedium:   "5.5",
	finding.SeverityLow:      "3.0",
	finding.SeverityInfo:     "0.0",
}

// SARIF renders the findings as a SARIF 2.1.0 log with one rule descriptor
// per emitted rule id, in emission order. When artifactURI is set, every
// result points at it; the subject is always recorded as a logical location.
func SARIF(m *model.Model, artifactURI string) (string, error) {
	if err := m.MarkReported(); err != nil {
		return "", err
	}

	report, err := sarif.New(sarif.Version210)
	if err != nil {
		return "", fmt.Errorf("create SARIF report: %w", err)
	}
	run := &sarif.Run{
		Tool: sarif.Tool{
			Driver: &sarif.ToolComponent{Name: "strider"},
		},
	}

	for _, f := range m.Findings() {
		rule := run.AddRule(f.RuleID).
			WithDescription(f.Title).
			WithDefaultConfiguration(&sarif.ReportingConfiguration{
				Level: sarifLevel(f.Severity),
			}).
			WithProperties(sarif.Properties{
				"security-severity": securitySeverity[f.Severity],
				"tags":              []string{"security", "stride", strings.ToLower(string(f.Category))},
			})
		if f.Mitigation != "" {
			mitigation := f.Mitigation
			rule.Help = &sarif.MultiformatMessageString{Text: &mitigation}
		}

		kind, fqn := subjectLocation(m, f.SubjectID)
		name := f.SubjectID
		location := &sarif.Location{
			LogicalLocations: []*sarif.LogicalLocation{{
				Name:               &name,
				FullyQualifiedName: &fqn,
				Kind:               &kind,
			}},
		}
		if artifactURI != "" {
			location.WithPhysicalLocation(
				sarif.NewPhysicalLocation().
					WithArtifactLocation(sarif.NewArtifactLocation().WithUri(artifactURI)),
			)
		}

		result := sarif.NewRuleResult(rule.ID).
			WithMessage(sarif.NewTextMessage(f.Message)).
			WithLevel(sarifLevel(f.Severity)).
			WithLocations([]*sarif.Location{location})
		result.Properties = sarif.Properties{
			"category": string(f.Category),
			"severity": string(f.Severity),
			"subject":  f.SubjectID,
			"modelId":  m.ID(),
		}
		run.AddResult(result)
	}
	report.AddRun(run)

	var buf bytes.Buffer
	if err := report.PrettyWrite(&buf); err != nil {
		return "", fmt.Errorf("write SARIF report: %w", err)
	}
	return buf.String(), nil
}

// sarifLevel maps a severity to a SARIF result level.
func sarifLevel(sev finding.Severity) string {
	switch sev {
	case finding.SeverityCritical, finding.SeverityHigh:
		return "error"
	case finding.SeverityMedium:
		return "warning"
	case finding.SeverityLow:
		return "note"
	default:
		return "none"
	}
}

// subjectLocation returns the logical-location kind and a fully qualified
// name "<boundary path>/<subject>" for a finding subject.
func subjectLocation(m *model.Model, id string) (kind, fqn string) {
	if e, ok := m.Element(id); ok {
		parts := []string{}
		if b := m.ResolvedBoundary(e); b != nil {
			parts = append(parts, boundaryPath(m, b)...)
		}
		parts = append(parts, e.Name())
		return string(e.Kind()), strings.Join(parts, "/")
	}
	if df, ok := m.Dataflow(id); ok {
		return "dataflow", df.Source().Name() + " -> " + df.Sink().Name()
	}
	return "unknown", id
}
