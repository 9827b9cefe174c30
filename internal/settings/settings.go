// Package settings loads strider configuration from .strider/settings.yaml.
package settings

// settings.go: Project-level configuration.
//
// The rule disable list accepts bare glob patterns ("unencrypted-*") or the
// same pattern wrapped in a Rule() verb ("Rule(unencrypted-*)"). Every method
// is safe on a nil *Settings, which is what LoadSettings returns when the
// file does not exist.

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"strider/internal/schema"
)

// Dir is the directory under a project root that holds the settings file.
const Dir = ".strider"

// Settings holds strider configuration from .strider/settings.yaml.
type Settings struct {
	Logging Logging `yaml:"logging"`
	Rules   Rules   `yaml:"rules"`
	Output  Output  `yaml:"output"`
}

// Logging controls the CLI logger.
type Logging struct {
	// Level is one of trace, debug, info, warn, error or off.
	Level string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error off"`
}

// Rules tunes the rule engine.
type Rules struct {
	// Disable lists rule id globs to skip, e.g. ["Rule(replayable-state-change)", "unencrypted-*"].
	Disable []string `yaml:"disable"`

	// Severity overrides the severity of a rule's findings, keyed by rule id.
	Severity map[string]string `yaml:"severity" validate:"dive,keys,required,endkeys,oneof=critical high medium low info"`

	// StateChangingProtocols replaces the default list of protocols treated
	// as state-changing.
	StateChangingProtocols []string `yaml:"state_changing_protocols" validate:"dive,required"`

	// Parallelism is the number of rules evaluated at once; 0 or 1 is sequential.
	Parallelism int `yaml:"parallelism" validate:"gte=0,lte=64"`

	// Custom declares additional rules as CEL expressions.
	Custom []CustomRule `yaml:"custom" validate:"dive"`
}

// CustomRule is a user-defined rule evaluated with CEL.
type CustomRule struct {
	ID          string `yaml:"id" validate:"required"`
	Title       string `yaml:"title"`
	Category    string `yaml:"category" validate:"required"`
	Severity    string `yaml:"severity" validate:"required,oneof=critical high medium low info"`
	Target      string `yaml:"target" validate:"required,oneof=dataflow element"`
	When        string `yaml:"when" validate:"required"`
	Message     string `yaml:"message"`
	Description string `yaml:"description"`
	Mitigation  string `yaml:"mitigation"`
}

// Output selects the artifacts written by `strider analyze`.
type Output struct {
	// Formats lists output names; empty means all of them.
	Formats []string `yaml:"formats" validate:"dive,oneof=report dot mermaid sequence sarif vault"`
}

// Path returns the settings file location under root.
func Path(root string) string {
	return filepath.Join(root, Dir, "settings.yaml")
}

// LoadSettings reads .strider/settings.yaml relative to root.
// Returns nil (not an error) if the file does not exist.
func LoadSettings(root string) (*Settings, error) {
	path := Path(root)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and validates a settings document.
func Parse(data []byte) (*Settings, error) {
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	if err := schema.Struct(&s); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return &s, nil
}

// LogLevel returns the configured log level, or "" when unset.
func (s *Settings) LogLevel() string {
	if s == nil {
		return ""
	}
	return s.Logging.Level
}

// IsDisabled reports whether ruleID matches any disable pattern.
func (s *Settings) IsDisabled(ruleID string) bool {
	if s == nil {
		return false
	}
	for _, rule := range s.Rules.Disable {
		if matched, _ := filepath.Match(parseRulePattern(rule), ruleID); matched {
			return true
		}
	}
	return false
}

// SeverityOverrides returns the per-rule severity overrides.
func (s *Settings) SeverityOverrides() map[string]string {
	if s == nil {
		return nil
	}
	return s.Rules.Severity
}

// StateChangingProtocols returns the configured protocol list, or nil to
// use the defaults.
func (s *Settings) StateChangingProtocols() []string {
	if s == nil {
		return nil
	}
	return s.Rules.StateChangingProtocols
}

// Parallelism returns the configured rule parallelism.
func (s *Settings) Parallelism() int {
	if s == nil {
		return 0
	}
	return s.Rules.Parallelism
}

// CustomRules returns the declared CEL rules.
func (s *Settings) CustomRules() []CustomRule {
	if s == nil {
		return nil
	}
	return s.Rules.Custom
}

// WantsOutput reports whether the named output should be written. With no
// formats configured every output is written.
func (s *Settings) WantsOutput(name string) bool {
	if s == nil || len(s.Output.Formats) == 0 {
		return true
	}
	for _, f := range s.Output.Formats {
		if f == name {
			return true
		}
	}
	return false
}

// parseRulePattern extracts the id glob from a disable entry.
//
//	"Rule(unencrypted-*)" → "unencrypted-*"
//	"unencrypted-*"       → "unencrypted-*"
func parseRulePattern(rule string) string {
	rule = strings.TrimSpace(rule)
	if strings.HasPrefix(rule, "Rule(") && strings.HasSuffix(rule, ")") {
		rule = rule[5 : len(rule)-1]
	}
	return strings.TrimSpace(rule)
}
