package model

// model.go: The threat model aggregate.
//
// A Model owns its elements and dataflows and moves through a one-way
// lifecycle:
//
//	Draft → Validated → Analyzed → Reported
//
// Only a Draft model may be mutated. Validate freezes the graph; the rule
// engine records its findings with CompleteAnalysis; exporters call
// MarkReported, which may happen any number of times.

import (
	"slices"
	"sync"

	"github.com/google/uuid"

	"strider/internal/finding"
)

// State is a lifecycle state of a Model.
type State int

const (
	Draft State = iota
	Validated
	Analyzed
	Reported
)

func (s State) String() string {
	switch s {
	case Draft:
		return "draft"
	case Validated:
		return "validated"
	case Analyzed:
		return "analyzed"
	case Reported:
		return "reported"
	default:
		return "unknown"
	}
}

// ParseState is the inverse of State.String.
func ParseState(s string) (State, bool) {
	for st := Draft; st <= Reported; st++ {
		if st.String() == s {
			return st, true
		}
	}
	return Draft, false
}

// modelNamespace scopes model UUIDs so they stay stable across runs.
var modelNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("strider:model"))

// Model is the aggregate root of a data-flow diagram.
type Model struct {
	id          string
	name        string
	description string
	ordered     bool

	mu       sync.RWMutex
	state    State
	elements []*Element
	byID     map[string]*Element
	flows    []*Dataflow
	flowByID map[string]*Dataflow
	findings []finding.Finding
}

// ModelOption configures a Model at construction.
type ModelOption func(*Model)

// WithDescription sets the model's free-text description.
func WithDescription(d string) ModelOption {
	return func(m *Model) { m.description = d }
}

// New creates an empty Draft model. When ordered is true every dataflow
// receives a gapless sequence number in creation order.
func New(name string, ordered bool, opts ...ModelOption) *Model {
	m := &Model{
		id:       uuid.NewSHA1(modelNamespace, []byte(name)).String(),
		name:     name,
		ordered:  ordered,
		byID:     make(map[string]*Element),
		flowByID: make(map[string]*Dataflow),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ID is a UUID derived from the model name.
func (m *Model) ID() string          { return m.id }
func (m *Model) Name() string        { return m.name }
func (m *Model) Description() string { return m.description }
func (m *Model) IsOrdered() bool     { return m.ordered }

// State returns the current lifecycle state.
func (m *Model) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// checkDraft returns a FrozenModelError unless the model is still a Draft.
// Callers hold m.mu.
func (m *Model) checkDraft(op string) error {
	if m.state != Draft {
		return &FrozenModelError{Op: op, State: m.state}
	}
	return nil
}

// Elements returns all elements in insertion order.
func (m *Model) Elements() []*Element {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.elements)
}

// Element looks up an element by id.
func (m *Model) Element(id string) (*Element, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.byID[id]
	return e, ok
}

// ElementsOfKind returns the elements of kind k in insertion order.
func (m *Model) ElementsOfKind(k Kind) []*Element {
	var out []*Element
	for _, e := range m.Elements() {
		if e.kind == k {
			out = append(out, e)
		}
	}
	return out
}

// Boundaries returns the boundary elements in insertion order.
func (m *Model) Boundaries() []*Element {
	return m.ElementsOfKind(Boundary)
}

// Dataflow looks up a dataflow by id.
func (m *Model) Dataflow(id string) (*Dataflow, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	df, ok := m.flowByID[id]
	return df, ok
}

// Dataflows returns all dataflows in report order: by sequence number when
// the model is ordered, otherwise by insertion.
func (m *Model) Dataflows() []*Dataflow {
	m.mu.RLock()
	flows := slices.Clone(m.flows)
	m.mu.RUnlock()
	if m.ordered {
		slices.SortStableFunc(flows, func(a, b *Dataflow) int { return a.order - b.order })
	}
	return flows
}

// Findings returns a copy of the frozen findings list. It is empty before
// the model is Analyzed.
func (m *Model) Findings() []finding.Finding {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.findings)
}

// FindingsFor returns the findings whose subject is id, in emission order.
func (m *Model) FindingsFor(id string) []finding.Finding {
	var out []finding.Finding
	for _, f := range m.Findings() {
		if f.SubjectID == id {
			out = append(out, f)
		}
	}
	return out
}

// CompleteAnalysis records the rule engine's findings and moves a Validated
// model to Analyzed. The list is frozen from then on.
func (m *Model) CompleteAnalysis(fs []finding.Finding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Validated {
		return &AnalysisError{Op: "complete analysis", State: m.state, Want: Validated}
	}
	m.findings = slices.Clone(fs)
	m.state = Analyzed
	return nil
}

// MarkReported moves an Analyzed model to Reported. Calling it again on a
// Reported model is a no-op.
func (m *Model) MarkReported() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state < Analyzed {
		return &AnalysisError{Op: "report", State: m.state, Want: Analyzed}
	}
	m.state = Reported
	return nil
}
