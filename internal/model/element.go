package model

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Kind is the variant tag of an Element.
type Kind string

const (
	Actor     Kind = "actor"
	Process   Kind = "process"
	Datastore Kind = "datastore"
	Boundary  Kind = "boundary"
)

// ParseKind parses a kind name case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(s))
	if !k.IsValid() {
		return "", fmt.Errorf("invalid element kind: %s", s)
	}
	return k, nil
}

// IsValid reports whether k is one of the four element kinds.
func (k Kind) IsValid() bool {
	_, ok := kindAttributes[k]
	return ok
}

// DisplayName returns the capitalized kind name, e.g. "Datastore".
func (k Kind) DisplayName() string {
	if k == "" {
		return ""
	}
	return strings.ToUpper(string(k[:1])) + string(k[1:])
}

// Attribute names a boolean security attribute.
type Attribute string

const (
	AttrEncrypted                Attribute = "isEncrypted"
	AttrFullDiskEncrypted        Attribute = "isFullDiskEncrypted"
	AttrIntegrityProtected       Attribute = "isIntegrityProtected"
	AttrImplementsAuthentication Attribute = "implementsAuthentication"
	AttrStoresSensitiveData      Attribute = "storesSensitiveData"
	AttrUsesZeroKnowledgeProof   Attribute = "usesZeroKnowledgeProof"
)

// kindAttributes lists the attributes each kind exposes, in display order.
var kindAttributes = map[Kind][]Attribute{
	Actor: {AttrImplementsAuthentication},
	Process: {
		AttrImplementsAuthentication,
		AttrStoresSensitiveData,
		AttrUsesZeroKnowledgeProof,
	},
	Datastore: {
		AttrEncrypted,
		AttrFullDiskEncrypted,
		AttrIntegrityProtected,
		AttrStoresSensitiveData,
	},
	Boundary: nil,
}

// Attributes returns the attributes meaningful for kind k.
func (k Kind) Attributes() []Attribute {
	return slices.Clone(kindAttributes[k])
}

// Supports reports whether attribute a is meaningful for kind k.
func (k Kind) Supports(a Attribute) bool {
	return slices.Contains(kindAttributes[k], a)
}

// Element is a node of the diagram: an actor, process, datastore or trust
// boundary. Elements are created through Model.CreateElement and mutated only
// through the owning Model.
type Element struct {
	id          string
	name        string
	description string
	kind        Kind
	boundary    *Element
	attrs       map[Attribute]bool
	model       *Model
}

func (e *Element) ID() string          { return e.id }
func (e *Element) Name() string        { return e.name }
func (e *Element) Description() string { return e.description }
func (e *Element) Kind() Kind          { return e.kind }

// Boundary returns the directly containing boundary, or nil when unscoped.
func (e *Element) Boundary() *Element { return e.boundary }

// Attr returns the value of attribute a. Unset attributes, and attributes
// that do not apply to the element's kind, read as false.
func (e *Element) Attr(a Attribute) bool { return e.attrs[a] }

// Attrs returns a copy of the explicitly set attributes.
func (e *Element) Attrs() map[Attribute]bool { return maps.Clone(e.attrs) }

func (e *Element) IsEncrypted() bool              { return e.Attr(AttrEncrypted) }
func (e *Element) IsFullDiskEncrypted() bool      { return e.Attr(AttrFullDiskEncrypted) }
func (e *Element) IsIntegrityProtected() bool     { return e.Attr(AttrIntegrityProtected) }
func (e *Element) ImplementsAuthentication() bool { return e.Attr(AttrImplementsAuthentication) }
func (e *Element) StoresSensitiveData() bool      { return e.Attr(AttrStoresSensitiveData) }
func (e *Element) UsesZeroKnowledgeProof() bool   { return e.Attr(AttrUsesZeroKnowledgeProof) }

func (e *Element) String() string {
	return fmt.Sprintf("%s(%s)", e.kind.DisplayName(), e.id)
}

// elementConfig collects ElementOptions before anything touches the model.
type elementConfig struct {
	id          string
	description string
	boundary    *Element
	attrs       map[Attribute]bool
}

// ElementOption configures an element at creation.
type ElementOption func(*elementConfig)

// WithID assigns an explicit id instead of a generated one.
func WithID(id string) ElementOption {
	return func(c *elementConfig) { c.id = id }
}

// WithElementDescription sets the element's free-text description.
func WithElementDescription(d string) ElementOption {
	return func(c *elementConfig) { c.description = d }
}

// WithAttribute sets a security attribute. The attribute must apply to the
// element's kind.
func WithAttribute(a Attribute, v bool) ElementOption {
	return func(c *elementConfig) {
		if c.attrs == nil {
			c.attrs = make(map[Attribute]bool)
		}
		c.attrs[a] = v
	}
}

// InBoundary places the element inside boundary b.
func InBoundary(b *Element) ElementOption {
	return func(c *elementConfig) { c.boundary = b }
}

// CreateElement adds a new element to a Draft model. Without WithID the
// element gets a fresh id derived from its kind and name.
func (m *Model) CreateElement(kind Kind, name string, opts ...ElementOption) (*Element, error) {
	var cfg elementConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkDraft("create element"); err != nil {
		return nil, err
	}
	if !kind.IsValid() {
		return nil, &KindError{ID: cfg.id, Kind: kind, Reason: "unknown element kind"}
	}

	id := cfg.id
	if id == "" {
		id = m.freshID(string(kind) + "-" + name)
	} else if m.idTaken(id) {
		return nil, &DuplicateIDError{ID: id}
	}

	for a := range cfg.attrs {
		if !kind.Supports(a) {
			return nil, &KindError{ID: id, Kind: kind, Reason: fmt.Sprintf("attribute %s does not apply", a)}
		}
	}
	if cfg.boundary != nil {
		if err := m.checkBoundaryTarget(cfg.boundary); err != nil {
			return nil, err
		}
	}

	e := &Element{
		id:          id,
		name:        name,
		description: cfg.description,
		kind:        kind,
		boundary:    cfg.boundary,
		attrs:       make(map[Attribute]bool),
		model:       m,
	}
	maps.Copy(e.attrs, cfg.attrs)
	m.elements = append(m.elements, e)
	m.byID[id] = e
	return e, nil
}

// SetBoundary moves e into boundary b. A nil b makes e unscoped.
func (m *Model) SetBoundary(e, b *Element) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkDraft("set boundary"); err != nil {
		return err
	}
	if !m.owns(e) {
		return &UnknownElementError{ID: idOf(e)}
	}
	if b != nil {
		if err := m.checkBoundaryTarget(b); err != nil {
			return err
		}
	}
	e.boundary = b
	return nil
}

// SetAttribute writes a security attribute on a Draft model's element.
func (m *Model) SetAttribute(e *Element, a Attribute, v bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkDraft("set " + string(a)); err != nil {
		return err
	}
	if !m.owns(e) {
		return &UnknownElementError{ID: idOf(e)}
	}
	if !e.kind.Supports(a) {
		return &KindError{ID: e.id, Kind: e.kind, Reason: fmt.Sprintf("attribute %s does not apply", a)}
	}
	e.attrs[a] = v
	return nil
}

func (m *Model) SetEncrypted(e *Element, v bool) error {
	return m.SetAttribute(e, AttrEncrypted, v)
}

func (m *Model) SetFullDiskEncrypted(e *Element, v bool) error {
	return m.SetAttribute(e, AttrFullDiskEncrypted, v)
}

func (m *Model) SetIntegrityProtected(e *Element, v bool) error {
	return m.SetAttribute(e, AttrIntegrityProtected, v)
}

func (m *Model) SetImplementsAuthentication(e *Element, v bool) error {
	return m.SetAttribute(e, AttrImplementsAuthentication, v)
}

func (m *Model) SetStoresSensitiveData(e *Element, v bool) error {
	return m.SetAttribute(e, AttrStoresSensitiveData, v)
}

func (m *Model) SetUsesZeroKnowledgeProof(e *Element, v bool) error {
	return m.SetAttribute(e, AttrUsesZeroKnowledgeProof, v)
}

// checkBoundaryTarget verifies b can contain other elements. Callers hold m.mu.
func (m *Model) checkBoundaryTarget(b *Element) error {
	if !m.owns(b) {
		return &UnknownElementError{ID: b.id}
	}
	if b.kind != Boundary {
		return &KindError{ID: b.id, Kind: b.kind, Reason: "is not a boundary"}
	}
	return nil
}

// owns reports whether e is a member of m. Callers hold m.mu.
func (m *Model) owns(e *Element) bool {
	return e != nil && e.model == m && m.byID[e.id] == e
}

// idTaken reports whether id is used by an element or a dataflow. Callers hold m.mu.
func (m *Model) idTaken(id string) bool {
	_, el := m.byID[id]
	_, df := m.flowByID[id]
	return el || df
}

// freshID slugs base and appends -2, -3, ... until the id is unused.
// Callers hold m.mu.
func (m *Model) freshID(base string) string {
	slug := slugify(base)
	if slug == "" {
		slug = "element"
	}
	id := slug
	for n := 2; m.idTaken(id); n++ {
		id = fmt.Sprintf("%s-%d", slug, n)
	}
	return id
}

// slugify lowercases s, replaces every run of non-alphanumerics with a single
// "-", and trims leading and trailing "-".
func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.Trim(b.String(), "-")
}

func idOf(e *Element) string {
	if e == nil {
		return ""
	}
	return e.id
}
