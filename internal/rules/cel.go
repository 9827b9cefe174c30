package rules

// cel.go: Rules written as CEL expressions.
//
// A dataflow rule sees one variable, flow; an element rule sees element.
// Both are maps; flow.source and flow.sink are element maps. Every security
// attribute is present on every element map and reads false where it does
// not apply, so expressions never trip over a missing key.

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/hashicorp/go-hclog"

	"strider/internal/finding"
	"strider/internal/model"
)

// Target selects what a CEL rule is evaluated against.
type Target string

const (
	TargetDataflow Target = "dataflow"
	TargetElement  Target = "element"
)

// CELDefinition is a user-supplied rule.
type CELDefinition struct {
	Meta Meta
	// Target is dataflow or element.
	Target Target
	// When is a CEL expression that must evaluate to a bool.
	When string
	// Message is the finding message. {{key}} is replaced with the value of
	// key from the subject's variable map, e.g. {{label}} or {{name}}.
	Message string
}

// CELRule is a compiled CELDefinition.
type CELRule struct {
	def    CELDefinition
	prg    cel.Program
	logger hclog.Logger
}

// CompileCEL type-checks def and returns a rule ready to evaluate. A nil
// logger discards evaluation errors.
func CompileCEL(def CELDefinition, logger hclog.Logger) (*CELRule, error) {
	if def.Meta.ID == "" {
		return nil, fmt.Errorf("custom rule: id is required")
	}
	if !def.Meta.Category.IsValid() {
		return nil, fmt.Errorf("custom rule %s: invalid category %q", def.Meta.ID, def.Meta.Category)
	}
	if !def.Meta.Severity.IsValid() {
		return nil, fmt.Errorf("custom rule %s: invalid severity %q", def.Meta.ID, def.Meta.Severity)
	}

	var variable string
	switch def.Target {
	case TargetDataflow:
		variable = "flow"
	case TargetElement:
		variable = "element"
	default:
		return nil, fmt.Errorf("custom rule %s: invalid target %q", def.Meta.ID, def.Target)
	}

	env, err := cel.NewEnv(
		cel.Variable(variable, cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("custom rule %s: %w", def.Meta.ID, err)
	}
	ast, issues := env.Compile(def.When)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("custom rule %s: %w", def.Meta.ID, issues.Err())
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("custom rule %s: expression must be a bool, got %s", def.Meta.ID, out)
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("custom rule %s: program construction: %w", def.Meta.ID, err)
	}

	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &CELRule{def: def, prg: prg, logger: logger}, nil
}

func (r *CELRule) Meta() Meta { return r.def.Meta }

func (r *CELRule) Evaluate(m *model.Model) []finding.Finding {
	var out []finding.Finding
	switch r.def.Target {
	case TargetDataflow:
		for _, df := range m.Dataflows() {
			vars := flowVars(m, df)
			if r.matches("flow", vars) {
				out = append(out, emit(r.def.Meta, df.ID(), r.render(vars)))
			}
		}
	case TargetElement:
		for _, e := range m.Elements() {
			vars := elementVars(m, e)
			if r.matches("element", vars) {
				out = append(out, emit(r.def.Meta, e.ID(), r.render(vars)))
			}
		}
	}
	return out
}

// matches evaluates the program. Evaluation errors and non-bool results
// count as no match.
func (r *CELRule) matches(name string, vars map[string]any) bool {
	val, _, err := r.prg.Eval(map[string]any{name: vars})
	if err != nil {
		r.logger.Debug("custom rule evaluation failed", "rule", r.def.Meta.ID, "subject", vars["id"], "error", err)
		return false
	}
	b, ok := val.Value().(bool)
	return ok && b
}

func (r *CELRule) render(vars map[string]any) string {
	if r.def.Message == "" {
		return fmt.Sprintf("%s matched %v", r.def.Meta.Title, vars["id"])
	}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	var pairs []string
	for _, k := range keys {
		if _, nested := vars[k].(map[string]any); nested {
			continue
		}
		pairs = append(pairs, "{{"+k+"}}", fmt.Sprint(vars[k]))
	}
	return strings.NewReplacer(pairs...).Replace(r.def.Message)
}

func elementVars(m *model.Model, e *model.Element) map[string]any {
	vars := map[string]any{
		"id":          e.ID(),
		"name":        e.Name(),
		"kind":        string(e.Kind()),
		"description": e.Description(),
		"boundary":    "",
		"inBoundary":  false,
	}
	if b := m.ResolvedBoundary(e); b != nil {
		vars["boundary"] = b.ID()
		vars["inBoundary"] = true
	}
	for _, a := range allAttributes() {
		vars[string(a)] = e.Attr(a)
	}
	return vars
}

func flowVars(m *model.Model, df *model.Dataflow) map[string]any {
	port, hasPort := df.DstPort()
	order, ordered := df.Order()
	if !ordered {
		order = -1
	}
	return map[string]any{
		"id":              df.ID(),
		"label":           df.Label(),
		"protocol":        df.Protocol(),
		"note":            df.Note(),
		"port":            port,
		"hasPort":         hasPort,
		"authenticated":   df.Authenticated(),
		"replayable":      df.Replayable(),
		"order":           order,
		"crossesBoundary": m.CrossesBoundary(df),
		"source":          elementVars(m, df.Source()),
		"sink":            elementVars(m, df.Sink()),
	}
}

func allAttributes() []model.Attribute {
	return []model.Attribute{
		model.AttrEncrypted,
		model.AttrFullDiskEncrypted,
		model.AttrIntegrityProtected,
		model.AttrImplementsAuthentication,
		model.AttrStoresSensitiveData,
		model.AttrUsesZeroKnowledgeProof,
	}
}
