package rules

import (
	"fmt"

	"github.com/hashicorp/go-hclog"

	"strider/internal/finding"
	"strider/internal/settings"
)

// FromSettings translates project settings into engine options: the
// built-in rules with configured protocols, then custom CEL rules, then
// disables and severity overrides. A nil s yields the defaults.
func FromSettings(s *settings.Settings, logger hclog.Logger) ([]Option, error) {
	rs := Builtins(s.StateChangingProtocols())
	for _, c := range s.CustomRules() {
		cat, err := finding.ParseCategory(c.Category)
		if err != nil {
			return nil, fmt.Errorf("custom rule %s: %w", c.ID, err)
		}
		sev, err := finding.ParseSeverity(c.Severity)
		if err != nil {
			return nil, fmt.Errorf("custom rule %s: %w", c.ID, err)
		}
		title := c.Title
		if title == "" {
			title = c.ID
		}
		r, err := CompileCEL(CELDefinition{
			Meta: Meta{
				ID:          c.ID,
				Title:       title,
				Category:    cat,
				Severity:    sev,
				Description: c.Description,
				Mitigation:  c.Mitigation,
			},
			Target:  Target(c.Target),
			When:    c.When,
			Message: c.Message,
		}, logger)
		if err != nil {
			return nil, err
		}
		rs = append(rs, r)
	}

	opts := []Option{WithRules(rs...), WithoutRules(s.IsDisabled)}
	for id, raw := range s.SeverityOverrides() {
		sev, err := finding.ParseSeverity(raw)
		if err != nil {
			return nil, fmt.Errorf("severity override for %s: %w", id, err)
		}
		opts = append(opts, WithSeverity(id, sev))
	}
	if n := s.Parallelism(); n > 1 {
		opts = append(opts, WithParallelism(n))
	}
	if logger != nil {
		opts = append(opts, WithLogger(logger))
	}
	return opts, nil
}
