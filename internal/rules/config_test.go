package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strider/internal/finding"
	"strider/internal/model"
	"strider/internal/settings"
)

func TestFromNilSettingsUsesDefaults(t *testing.T) {
	opts, err := FromSettings(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, NewEngine().Rules(), NewEngine(opts...).Rules())
}

func TestFromSettings(t *testing.T) {
	s, err := settings.Parse([]byte(`
rules:
  disable: ["Rule(unencrypted-transport)", "unauthenticated-boundary-*"]
  severity: {unauthenticated-crossing: critical}
  state_changing_protocols: [http-post]
  parallelism: 3
  custom:
    - id: plaintext-http
      category: InformationDisclosure
      severity: medium
      target: dataflow
      when: 'flow.protocol == "http-post"'
      message: 'plaintext {{label}}'
`))
	require.NoError(t, err)

	opts, err := FromSettings(s, nil)
	require.NoError(t, err)
	e := NewEngine(opts...)

	var ids []string
	for _, meta := range e.Rules() {
		ids = append(ids, meta.ID)
		if meta.ID == IDUnauthenticatedCrossing {
			assert.Equal(t, finding.SeverityCritical, meta.Severity)
		}
	}
	assert.Equal(t, []string{
		IDUnauthenticatedCrossing,
		IDReplayableStateChange,
		IDUnprotectedIntegrityStore,
		IDUnencryptedAtRestStore,
		"plaintext-http",
	}, ids)

	m := model.New("form", false)
	zone, _ := m.CreateElement(model.Boundary, "dc")
	user, _ := m.CreateElement(model.Actor, "user")
	api, _ := m.CreateElement(model.Process, "api", model.InBoundary(zone))
	_, err = m.AddDataflow(user, api, "submit", model.Protocol("http-post"))
	require.NoError(t, err)

	fs := analyze(t, m, opts...)
	assert.Equal(t, []string{IDUnauthenticatedCrossing, IDReplayableStateChange, "plaintext-http"}, ruleIDs(fs))
	assert.Equal(t, finding.SeverityCritical, fs[0].Severity)
	assert.Equal(t, "plaintext submit", fs[2].Message)
	assert.Equal(t, "plaintext-http", fs[2].Title)
}

func TestFromSettingsRejectsBadCustomRule(t *testing.T) {
	s := &settings.Settings{Rules: settings.Rules{Custom: []settings.CustomRule{{
		ID: "x", Category: "Phishing", Severity: "low", Target: "element", When: "true",
	}}}}
	_, err := FromSettings(s, nil)
	assert.ErrorContains(t, err, "invalid category")

	s.Rules.Custom[0].Category = "Spoofing"
	s.Rules.Custom[0].When = "element.name +"
	_, err = FromSettings(s, nil)
	assert.Error(t, err)
}
