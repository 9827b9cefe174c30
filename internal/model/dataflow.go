package model

import (
	"fmt"
	"iter"
	"slices"
)

// Dataflow is a directed, labeled edge between two elements.
type Dataflow struct {
	id            string
	source        *Element
	sink          *Element
	label         string
	protocol      string
	note          string
	dstPort       int
	hasPort       bool
	authenticated bool
	replayable    bool
	order         int
}

func (df *Dataflow) ID() string          { return df.id }
func (df *Dataflow) Source() *Element    { return df.source }
func (df *Dataflow) Sink() *Element      { return df.sink }
func (df *Dataflow) Label() string       { return df.label }
func (df *Dataflow) Protocol() string    { return df.protocol }
func (df *Dataflow) Note() string        { return df.note }
func (df *Dataflow) Authenticated() bool { return df.authenticated }

// Replayable reports whether the flow lacks replay protection. Defaults to true.
func (df *Dataflow) Replayable() bool { return df.replayable }

// DstPort returns the destination port and whether one was declared.
func (df *Dataflow) DstPort() (int, bool) { return df.dstPort, df.hasPort }

// Order returns the flow's sequence number and whether the model is ordered.
func (df *Dataflow) Order() (int, bool) { return df.order, df.order >= 0 }

func (df *Dataflow) String() string {
	return fmt.Sprintf("%s → %s (%s)", idOf(df.source), idOf(df.sink), df.label)
}

// FlowOption configures a dataflow at creation.
type FlowOption func(*Dataflow)

// Protocol sets the protocol tag, e.g. "https" or "eth_sendTransaction".
func Protocol(p string) FlowOption {
	return func(df *Dataflow) { df.protocol = p }
}

// DstPort sets the destination port.
func DstPort(port int) FlowOption {
	return func(df *Dataflow) { df.dstPort, df.hasPort = port, true }
}

// Authenticated declares whether the flow's origin is authenticated.
func Authenticated(v bool) FlowOption {
	return func(df *Dataflow) { df.authenticated = v }
}

// Replayable declares whether the flow lacks replay protection.
func Replayable(v bool) FlowOption {
	return func(df *Dataflow) { df.replayable = v }
}

// WithFlowID assigns an explicit id instead of a generated one.
func WithFlowID(id string) FlowOption {
	return func(df *Dataflow) { df.id = id }
}

// WithNote attaches a free-text note to the flow.
func WithNote(n string) FlowOption {
	return func(df *Dataflow) { df.note = n }
}

// AddDataflow connects source to sink. Both endpoints must already belong to
// the model and neither may be a boundary. On an ordered model the flow's
// sequence number is the count of flows that existed before it.
func (m *Model) AddDataflow(source, sink *Element, label string, opts ...FlowOption) (*Dataflow, error) {
	df := &Dataflow{
		source:     source,
		sink:       sink,
		label:      label,
		replayable: true,
		order:      -1,
	}
	for _, opt := range opts {
		opt(df)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkDraft("add dataflow"); err != nil {
		return nil, err
	}
	for _, end := range []*Element{source, sink} {
		if !m.owns(end) {
			return nil, &UnknownElementError{ID: idOf(end)}
		}
		if end.kind == Boundary {
			return nil, &KindError{ID: end.id, Kind: end.kind, Reason: "a boundary cannot be a dataflow endpoint"}
		}
	}
	if source == sink {
		return nil, &SelfLoopError{ID: source.id}
	}

	if df.id == "" {
		df.id = m.freshID(fmt.Sprintf("flow-%d", len(m.flows)+1))
	} else if m.idTaken(df.id) {
		return nil, &DuplicateIDError{ID: df.id}
	}
	if m.ordered {
		df.order = len(m.flows)
	}
	m.flows = append(m.flows, df)
	m.flowByID[df.id] = df
	return df, nil
}

// flowSnapshot copies the flow slice so iterators can run without the lock.
func (m *Model) flowSnapshot() []*Dataflow {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.flows)
}

// Outgoing yields the flows whose source is e, in insertion order. The
// sequence is lazy and may be ranged over any number of times.
func (m *Model) Outgoing(e *Element) iter.Seq[*Dataflow] {
	return func(yield func(*Dataflow) bool) {
		for _, df := range m.flowSnapshot() {
			if df.source == e && !yield(df) {
				return
			}
		}
	}
}

// Incoming yields the flows whose sink is e, in insertion order.
func (m *Model) Incoming(e *Element) iter.Seq[*Dataflow] {
	return func(yield func(*Dataflow) bool) {
		for _, df := range m.flowSnapshot() {
			if df.sink == e && !yield(df) {
				return
			}
		}
	}
}
