package model

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strider/internal/finding"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func mustElement(t *testing.T, m *Model, k Kind, name string, opts ...ElementOption) *Element {
	t.Helper()
	e, err := m.CreateElement(k, name, opts...)
	require.NoError(t, err)
	return e
}

func mustFlow(t *testing.T, m *Model, src, dst *Element, label string, opts ...FlowOption) *Dataflow {
	t.Helper()
	if len(opts) == 0 {
		opts = []FlowOption{Protocol("https")}
	}
	df, err := m.AddDataflow(src, dst, label, opts...)
	require.NoError(t, err)
	return df
}

// ---------------------------------------------------------------------------
// Elements
// ---------------------------------------------------------------------------

func TestCreateElementAssignsFreshIDs(t *testing.T) {
	m := New("ids", false)
	a := mustElement(t, m, Actor, "Holder (Wallet)")
	b := mustElement(t, m, Actor, "Holder (Wallet)")
	c := mustElement(t, m, Process, "")

	assert.Equal(t, "actor-holder-wallet", a.ID())
	assert.Equal(t, "actor-holder-wallet-2", b.ID())
	assert.Equal(t, "process", c.ID())
	assert.Equal(t, "Holder (Wallet)", a.Name())
}

func TestCreateElementDuplicateExplicitID(t *testing.T) {
	m := New("dup", false)
	mustElement(t, m, Process, "api", WithID("api"))

	_, err := m.CreateElement(Datastore, "db", WithID("api"))
	var dup *DuplicateIDError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "api", dup.ID)
	assert.Len(t, m.Elements(), 1)
}

func TestCreateElementRejectsAttributeForWrongKind(t *testing.T) {
	m := New("kinds", false)

	_, err := m.CreateElement(Actor, "user", WithAttribute(AttrEncrypted, true))
	var kerr *KindError
	require.ErrorAs(t, err, &kerr)
	assert.Equal(t, Actor, kerr.Kind)
	assert.Empty(t, m.Elements())

	ds := mustElement(t, m, Datastore, "db", WithAttribute(AttrEncrypted, true))
	assert.True(t, ds.IsEncrypted())
	assert.False(t, ds.IsIntegrityProtected())
}

func TestCreateElementUnknownKind(t *testing.T) {
	m := New("kinds", false)
	_, err := m.CreateElement(Kind("server"), "x")
	var kerr *KindError
	assert.ErrorAs(t, err, &kerr)
}

func TestSetBoundaryRequiresBoundaryKind(t *testing.T) {
	m := New("b", false)
	p := mustElement(t, m, Process, "p")
	q := mustElement(t, m, Process, "q")

	err := m.SetBoundary(p, q)
	var kerr *KindError
	require.ErrorAs(t, err, &kerr)
	assert.Equal(t, q.ID(), kerr.ID)

	zone := mustElement(t, m, Boundary, "zone")
	require.NoError(t, m.SetBoundary(p, zone))
	assert.Same(t, zone, p.Boundary())

	require.NoError(t, m.SetBoundary(p, nil))
	assert.Nil(t, p.Boundary())
}

func TestSetBoundaryForeignElement(t *testing.T) {
	m := New("a", false)
	other := New("b", false)
	p := mustElement(t, m, Process, "p")
	zone := mustElement(t, other, Boundary, "zone")

	var unknown *UnknownElementError
	assert.ErrorAs(t, m.SetBoundary(p, zone), &unknown)
}

func TestSetAttribute(t *testing.T) {
	m := New("attrs", false)
	p := mustElement(t, m, Process, "p")
	ds := mustElement(t, m, Datastore, "ds")

	require.NoError(t, m.SetImplementsAuthentication(p, true))
	require.NoError(t, m.SetUsesZeroKnowledgeProof(p, true))
	require.NoError(t, m.SetStoresSensitiveData(ds, true))
	require.NoError(t, m.SetFullDiskEncrypted(ds, true))
	require.NoError(t, m.SetIntegrityProtected(ds, true))

	assert.True(t, p.ImplementsAuthentication())
	assert.True(t, p.UsesZeroKnowledgeProof())
	assert.True(t, ds.StoresSensitiveData())
	assert.True(t, ds.IsFullDiskEncrypted())
	assert.True(t, ds.IsIntegrityProtected())

	var kerr *KindError
	assert.ErrorAs(t, m.SetEncrypted(p, true), &kerr)
}

func TestKindAttributes(t *testing.T) {
	assert.Empty(t, Boundary.Attributes())
	assert.True(t, Datastore.Supports(AttrEncrypted))
	assert.False(t, Actor.Supports(AttrStoresSensitiveData))

	k, err := ParseKind("Datastore")
	require.NoError(t, err)
	assert.Equal(t, Datastore, k)
	assert.Equal(t, "Datastore", k.DisplayName())

	_, err = ParseKind("queue")
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// Dataflows
// ---------------------------------------------------------------------------

func TestAddDataflowDefaults(t *testing.T) {
	m := New("flows", false)
	a := mustElement(t, m, Actor, "a")
	p := mustElement(t, m, Process, "p")

	df := mustFlow(t, m, a, p, "call", Protocol("rpc"))
	assert.True(t, df.Replayable())
	assert.False(t, df.Authenticated())
	_, hasPort := df.DstPort()
	assert.False(t, hasPort)
	_, ordered := df.Order()
	assert.False(t, ordered)
	assert.Equal(t, "flow-1", df.ID())
}

func TestAddDataflowUnknownEndpointLeavesModelUnchanged(t *testing.T) {
	m := New("flows", false)
	other := New("other", false)
	a := mustElement(t, m, Actor, "a")
	stranger := mustElement(t, other, Process, "p")

	before := m.Dataflows()
	for _, tc := range []struct {
		name     string
		src, dst *Element
	}{
		{"foreign sink", a, stranger},
		{"foreign source", stranger, a},
		{"nil sink", a, nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := m.AddDataflow(tc.src, tc.dst, "x", Protocol("https"))
			var unknown *UnknownElementError
			require.ErrorAs(t, err, &unknown)
			assert.Equal(t, before, m.Dataflows())
		})
	}
}

func TestAddDataflowSelfLoop(t *testing.T) {
	m := New("flows", false)
	p := mustElement(t, m, Process, "p")
	_, err := m.AddDataflow(p, p, "loop", Protocol("https"))
	var loop *SelfLoopError
	require.ErrorAs(t, err, &loop)
	assert.Equal(t, "p", loop.ID)
	assert.Empty(t, m.Dataflows())
}

func TestAddDataflowRejectsBoundaryEndpoint(t *testing.T) {
	m := New("flows", false)
	zone := mustElement(t, m, Boundary, "zone")
	p := mustElement(t, m, Process, "p")
	_, err := m.AddDataflow(p, zone, "x", Protocol("https"))
	var kerr *KindError
	assert.ErrorAs(t, err, &kerr)
}

func TestAddDataflowDuplicateFlowID(t *testing.T) {
	m := New("flows", false)
	a := mustElement(t, m, Actor, "a")
	p := mustElement(t, m, Process, "p")
	mustFlow(t, m, a, p, "one", Protocol("https"), WithFlowID("f"))
	_, err := m.AddDataflow(a, p, "two", Protocol("https"), WithFlowID("f"))
	var dup *DuplicateIDError
	assert.ErrorAs(t, err, &dup)

	// Element ids and flow ids share one namespace.
	_, err = m.CreateElement(Process, "q", WithID("f"))
	assert.ErrorAs(t, err, &dup)
}

func TestOrderedFlowsNumberedInCreationOrder(t *testing.T) {
	m := New("ordered", true)
	a := mustElement(t, m, Actor, "a")
	p := mustElement(t, m, Process, "p")
	ds := mustElement(t, m, Datastore, "ds")

	df1 := mustFlow(t, m, a, p, "df1")
	df2 := mustFlow(t, m, p, ds, "df2")
	df3 := mustFlow(t, m, ds, p, "df3")

	for want, df := range []*Dataflow{df1, df2, df3} {
		got, ok := df.Order()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, []*Dataflow{df1, df2, df3}, m.Dataflows())
}

func TestOutgoingIncomingAreRestartable(t *testing.T) {
	m := New("iter", false)
	a := mustElement(t, m, Actor, "a")
	p := mustElement(t, m, Process, "p")
	ds := mustElement(t, m, Datastore, "ds")
	f1 := mustFlow(t, m, a, p, "1")
	f2 := mustFlow(t, m, p, ds, "2")
	f3 := mustFlow(t, m, p, a, "3")

	out := m.Outgoing(p)
	assert.Equal(t, []*Dataflow{f2, f3}, slices.Collect(out))
	assert.Equal(t, []*Dataflow{f2, f3}, slices.Collect(out))
	assert.Equal(t, []*Dataflow{f1}, slices.Collect(m.Incoming(p)))
	assert.Empty(t, slices.Collect(m.Outgoing(ds)))

	// Early break stops the sequence.
	n := 0
	for range m.Outgoing(p) {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func TestMutationAfterValidateIsFrozen(t *testing.T) {
	m := New("frozen", false)
	a := mustElement(t, m, Actor, "a")
	p := mustElement(t, m, Process, "p")
	zone := mustElement(t, m, Boundary, "zone")
	require.NoError(t, m.Validate())
	assert.Equal(t, Validated, m.State())

	var frozen *FrozenModelError
	_, err := m.CreateElement(Actor, "late")
	assert.ErrorAs(t, err, &frozen)
	_, err = m.AddDataflow(a, p, "late", Protocol("https"))
	assert.ErrorAs(t, err, &frozen)
	assert.ErrorAs(t, m.SetBoundary(p, zone), &frozen)
	assert.ErrorAs(t, m.SetImplementsAuthentication(p, true), &frozen)
	assert.Equal(t, Validated, frozen.State)
}

func TestLifecycleTransitions(t *testing.T) {
	m := New("life", false)
	mustElement(t, m, Actor, "a")

	var aerr *AnalysisError
	require.ErrorAs(t, m.MarkReported(), &aerr)
	assert.Equal(t, Draft, aerr.State)
	require.ErrorAs(t, m.CompleteAnalysis(nil), &aerr)

	require.NoError(t, m.Validate())
	require.ErrorAs(t, m.MarkReported(), &aerr)

	fs := []finding.Finding{{RuleID: "r", SubjectID: "actor-a", Category: finding.CategorySpoofing, Severity: finding.SeverityLow}}
	require.NoError(t, m.CompleteAnalysis(fs))
	assert.Equal(t, Analyzed, m.State())
	assert.Equal(t, fs, m.Findings())
	assert.Len(t, m.FindingsFor("actor-a"), 1)

	// Frozen: a second analysis cannot replace the list.
	require.ErrorAs(t, m.CompleteAnalysis(nil), &aerr)

	// Returned slices are copies.
	got := m.Findings()
	got[0].Message = "changed"
	assert.Empty(t, m.Findings()[0].Message)

	require.NoError(t, m.MarkReported())
	require.NoError(t, m.MarkReported())
	assert.Equal(t, Reported, m.State())
	require.NoError(t, m.Validate())
}

func TestParseState(t *testing.T) {
	for st := Draft; st <= Reported; st++ {
		got, ok := ParseState(st.String())
		require.True(t, ok)
		assert.Equal(t, st, got)
	}
	_, ok := ParseState("archived")
	assert.False(t, ok)
}

func TestModelIDStable(t *testing.T) {
	a := New("Identity", false)
	b := New("Identity", true)
	c := New("Other", false)
	assert.Equal(t, a.ID(), b.ID())
	assert.NotEqual(t, a.ID(), c.ID())
	assert.Len(t, a.ID(), 36)
}

func TestErrorMessages(t *testing.T) {
	errs := []error{
		&DuplicateIDError{ID: "x"},
		&UnknownElementError{},
		&SelfLoopError{ID: "x"},
		&KindError{ID: "x", Kind: Actor, Reason: "nope"},
		&BoundaryCycleError{ID: "a", Path: []string{"a", "b", "a"}},
		&FrozenModelError{Op: "op", State: Validated},
		&AnalysisError{Op: "op", State: Draft, Want: Analyzed},
	}
	for _, err := range errs {
		assert.NotEmpty(t, err.Error())
	}
	assert.False(t, errors.Is(errs[0], errs[1]))
}
