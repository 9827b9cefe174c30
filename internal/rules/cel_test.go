package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strider/internal/finding"
	"strider/internal/model"
)

func celMeta(id string) Meta {
	return Meta{ID: id, Title: id, Category: finding.CategoryInformationDisclosure, Severity: finding.SeverityMedium}
}

func TestCELDataflowRule(t *testing.T) {
	r, err := CompileCEL(CELDefinition{
		Meta:    celMeta("plaintext-http"),
		Target:  TargetDataflow,
		When:    `flow.protocol == "http" && flow.crossesBoundary`,
		Message: "plaintext HTTP on {{label}} ({{protocol}})",
	}, nil)
	require.NoError(t, err)

	m := model.New("web", false)
	zone, _ := m.CreateElement(model.Boundary, "dc")
	browser, _ := m.CreateElement(model.Actor, "browser")
	web, _ := m.CreateElement(model.Process, "web", model.InBoundary(zone))
	db, _ := m.CreateElement(model.Datastore, "db", model.InBoundary(zone))
	_, err = m.AddDataflow(browser, web, "login", model.Protocol("http"))
	require.NoError(t, err)
	_, err = m.AddDataflow(web, db, "query", model.Protocol("http"))
	require.NoError(t, err)

	fs := analyze(t, m, WithRules(r))
	require.Len(t, fs, 1)
	assert.Equal(t, "flow-1", fs[0].SubjectID)
	assert.Equal(t, "plaintext HTTP on login (http)", fs[0].Message)
	assert.Equal(t, "plaintext-http", fs[0].RuleID)
}

func TestCELElementRule(t *testing.T) {
	r, err := CompileCEL(CELDefinition{
		Meta:    celMeta("zkp-outside-boundary"),
		Target:  TargetElement,
		When:    `element.kind == "process" && element.usesZeroKnowledgeProof && !element.inBoundary`,
		Message: "{{name}} verifies proofs outside any trust zone",
	}, nil)
	require.NoError(t, err)

	m := model.New("zkp", false)
	zone, _ := m.CreateElement(model.Boundary, "chain")
	_, _ = m.CreateElement(model.Process, "inside", model.InBoundary(zone),
		model.WithAttribute(model.AttrUsesZeroKnowledgeProof, true))
	loose, _ := m.CreateElement(model.Process, "loose",
		model.WithAttribute(model.AttrUsesZeroKnowledgeProof, true))
	_, _ = m.CreateElement(model.Actor, "user")

	fs := analyze(t, m, WithRules(r))
	require.Len(t, fs, 1)
	assert.Equal(t, loose.ID(), fs[0].SubjectID)
	assert.Equal(t, "loose verifies proofs outside any trust zone", fs[0].Message)
}

func TestCELNestedEndpoints(t *testing.T) {
	r, err := CompileCEL(CELDefinition{
		Meta:   celMeta("actor-writes-store"),
		Target: TargetDataflow,
		When:   `flow.source.kind == "actor" && flow.sink.kind == "datastore" && flow.port == 5432`,
	}, nil)
	require.NoError(t, err)

	m := model.New("direct", false)
	a, _ := m.CreateElement(model.Actor, "dba")
	d, _ := m.CreateElement(model.Datastore, "pg")
	_, err = m.AddDataflow(a, d, "psql", model.Protocol("postgres"), model.DstPort(5432))
	require.NoError(t, err)

	fs := analyze(t, m, WithRules(r))
	require.Len(t, fs, 1)
	assert.Equal(t, "actor-writes-store matched flow-1", fs[0].Message)
}

func TestCompileCELErrors(t *testing.T) {
	tests := []struct {
		name string
		def  CELDefinition
	}{
		{"missing id", CELDefinition{Meta: Meta{Category: finding.CategorySpoofing, Severity: finding.SeverityLow}, Target: TargetDataflow, When: "true"}},
		{"bad category", CELDefinition{Meta: Meta{ID: "x", Category: "Phishing", Severity: finding.SeverityLow}, Target: TargetDataflow, When: "true"}},
		{"bad severity", CELDefinition{Meta: Meta{ID: "x", Category: finding.CategorySpoofing, Severity: "urgent"}, Target: TargetDataflow, When: "true"}},
		{"bad target", CELDefinition{Meta: celMeta("x"), Target: "boundary", When: "true"}},
		{"syntax", CELDefinition{Meta: celMeta("x"), Target: TargetDataflow, When: "flow.protocol =="}},
		{"undeclared variable", CELDefinition{Meta: celMeta("x"), Target: TargetElement, When: `flow.protocol == "http"`}},
		{"not a bool", CELDefinition{Meta: celMeta("x"), Target: TargetDataflow, When: `"http"`}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := CompileCEL(tc.def, nil)
			assert.Error(t, err)
		})
	}
}

func TestCompileCELOutputTypes(t *testing.T) {
	tests := []struct {
		when string
		ok   bool
	}{
		{`true`, true},
		{`flow.protocol == "http"`, true},
		{`flow.authenticated`, true},
		{`1 + 1`, false},
		{`[true]`, false},
	}
	for _, tc := range tests {
		t.Run(tc.when, func(t *testing.T) {
			_, err := CompileCEL(CELDefinition{Meta: celMeta("x"), Target: TargetDataflow, When: tc.when}, nil)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, "expression must be a bool")
			}
		})
	}
}

func TestCELEvaluationErrorIsNoMatch(t *testing.T) {
	r, err := CompileCEL(CELDefinition{
		Meta:   celMeta("missing-key"),
		Target: TargetDataflow,
		When:   `flow.nonexistent == "x"`,
	}, nil)
	require.NoError(t, err)

	m := model.New("m", false)
	a, _ := m.CreateElement(model.Actor, "a")
	p, _ := m.CreateElement(model.Process, "p")
	_, err = m.AddDataflow(a, p, "x", model.Protocol("https"))
	require.NoError(t, err)
	assert.Empty(t, analyze(t, m, WithRules(r)))
}
