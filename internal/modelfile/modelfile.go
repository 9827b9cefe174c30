// Package modelfile reads and writes threat models as YAML documents.
package modelfile

// modelfile.go: The persisted form of a Model.
//
// A document records everything the construction API accepts plus the
// lifecycle state and, once analyzed, the frozen findings. Decoding replays
// the document through the construction API, so every invariant the API
// enforces holds for loaded models too:
//
//	name: Shop
//	ordered: true
//	state: analyzed
//	elements:
//	  - {id: boundary-cloud, kind: boundary, name: Cloud}
//	  - {id: process-api, kind: process, name: api, boundary: boundary-cloud,
//	     attributes: {implementsAuthentication: true}}
//	dataflows:
//	  - {source: actor-user, sink: process-api, label: login, protocol: https}
//	findings: [...]

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"strider/internal/finding"
	"strider/internal/model"
	"strider/internal/schema"
)

// File is the YAML document for one model.
type File struct {
	Name        string            `yaml:"name" validate:"required"`
	Description string            `yaml:"description,omitempty"`
	Ordered     bool              `yaml:"ordered"`
	State       string            `yaml:"state,omitempty" validate:"omitempty,oneof=draft validated analyzed reported"`
	Elements    []Element         `yaml:"elements" validate:"dive"`
	Dataflows   []Dataflow        `yaml:"dataflows,omitempty" validate:"dive"`
	Findings    []finding.Finding `yaml:"findings,omitempty"`
}

// Element is one element entry. Attributes not meaningful for the kind are
// rejected when the model is rebuilt.
type Element struct {
	ID          string          `yaml:"id,omitempty"`
	Kind        string          `yaml:"kind" validate:"required,oneof=actor process datastore boundary"`
	Name        string          `yaml:"name" validate:"required"`
	Description string          `yaml:"description,omitempty"`
	Boundary    string          `yaml:"boundary,omitempty"`
	Attributes  map[string]bool `yaml:"attributes,omitempty"`
}

// Dataflow is one dataflow entry. Replayable defaults to true when absent.
type Dataflow struct {
	ID            string `yaml:"id,omitempty"`
	Source        string `yaml:"source" validate:"required"`
	Sink          string `yaml:"sink" validate:"required"`
	Label         string `yaml:"label"`
	Protocol      string `yaml:"protocol,omitempty"`
	Port          *int   `yaml:"port,omitempty"`
	Authenticated bool   `yaml:"authenticated,omitempty"`
	Replayable    *bool  `yaml:"replayable,omitempty"`
	Note          string `yaml:"note,omitempty"`
	Order         *int   `yaml:"order,omitempty" validate:"omitempty,gte=0"`
}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

// Load reads and decodes the model file at path.
func Load(path string) (*model.Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Decode parses a model document and rebuilds the model it describes. The
// model ends in the document's state: a validated document is validated
// again, and an analyzed or reported one gets its findings restored.
func Decode(data []byte) (*model.Model, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty model file")
		}
		return nil, fmt.Errorf("parse model: %w", err)
	}
	if err := schema.Struct(f); err != nil {
		return nil, fmt.Errorf("invalid model: %w", err)
	}
	return f.Build()
}

// Build replays the document through the construction API.
func (f *File) Build() (*model.Model, error) {
	state := model.Draft
	if f.State != "" {
		s, ok := model.ParseState(f.State)
		if !ok {
			return nil, fmt.Errorf("unknown state %q", f.State)
		}
		state = s
	}
	if len(f.Findings) > 0 && state < model.Analyzed {
		return nil, fmt.Errorf("findings recorded on a %s model", state)
	}

	var opts []model.ModelOption
	if f.Description != "" {
		opts = append(opts, model.WithDescription(f.Description))
	}
	m := model.New(f.Name, f.Ordered, opts...)

	// Elements first, then containment, so a boundary may be referenced
	// before it is declared.
	created := make([]*model.Element, len(f.Elements))
	for i, fe := range f.Elements {
		kind, err := model.ParseKind(fe.Kind)
		if err != nil {
			return nil, fmt.Errorf("elements[%d]: %w", i, err)
		}
		eopts := []model.ElementOption{}
		if fe.ID != "" {
			eopts = append(eopts, model.WithID(fe.ID))
		}
		if fe.Description != "" {
			eopts = append(eopts, model.WithElementDescription(fe.Description))
		}
		for _, name := range sortedKeys(fe.Attributes) {
			eopts = append(eopts, model.WithAttribute(model.Attribute(name), fe.Attributes[name]))
		}
		e, err := m.CreateElement(kind, fe.Name, eopts...)
		if err != nil {
			return nil, fmt.Errorf("elements[%d]: %w", i, err)
		}
		created[i] = e
	}
	for i, fe := range f.Elements {
		if fe.Boundary == "" {
			continue
		}
		b, ok := m.Element(fe.Boundary)
		if !ok {
			return nil, fmt.Errorf("elements[%d]: %w", i, &model.UnknownElementError{ID: fe.Boundary})
		}
		if err := m.SetBoundary(created[i], b); err != nil {
			return nil, fmt.Errorf("elements[%d]: %w", i, err)
		}
	}

	for i, fd := range f.flowsInOrder() {
		src, ok := m.Element(fd.Source)
		if !ok {
			return nil, fmt.Errorf("dataflows[%d]: %w", i, &model.UnknownElementError{ID: fd.Source})
		}
		dst, ok := m.Element(fd.Sink)
		if !ok {
			return nil, fmt.Errorf("dataflows[%d]: %w", i, &model.UnknownElementError{ID: fd.Sink})
		}
		fopts := []model.FlowOption{
			model.Protocol(fd.Protocol),
			model.Authenticated(fd.Authenticated),
		}
		if fd.ID != "" {
			fopts = append(fopts, model.WithFlowID(fd.ID))
		}
		if fd.Port != nil {
			fopts = append(fopts, model.DstPort(*fd.Port))
		}
		if fd.Replayable != nil {
			fopts = append(fopts, model.Replayable(*fd.Replayable))
		}
		if fd.Note != "" {
			fopts = append(fopts, model.WithNote(fd.Note))
		}
		if _, err := m.AddDataflow(src, dst, fd.Label, fopts...); err != nil {
			return nil, fmt.Errorf("dataflows[%d]: %w", i, err)
		}
	}

	if state >= model.Validated {
		if err := m.Validate(); err != nil {
			return nil, err
		}
	}
	if state >= model.Analyzed {
		for i, fnd := range f.Findings {
			if err := fnd.Validate(); err != nil {
				return nil, fmt.Errorf("findings[%d]: %w", i, err)
			}
		}
		if err := m.CompleteAnalysis(f.Findings); err != nil {
			return nil, err
		}
	}
	if state == model.Reported {
		if err := m.MarkReported(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// flowsInOrder returns the dataflows sorted by their recorded order. Flows
// without one keep their position after the ordered ones.
func (f *File) flowsInOrder() []Dataflow {
	flows := slices.Clone(f.Dataflows)
	if !f.Ordered {
		return flows
	}
	slices.SortStableFunc(flows, func(a, b Dataflow) int {
		switch {
		case a.Order == nil && b.Order == nil:
			return 0
		case a.Order == nil:
			return 1
		case b.Order == nil:
			return -1
		default:
			return *a.Order - *b.Order
		}
	})
	return flows
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

// FromModel captures m as a document.
func FromModel(m *model.Model) *File {
	f := &File{
		Name:        m.Name(),
		Description: m.Description(),
		Ordered:     m.IsOrdered(),
		State:       m.State().String(),
	}
	for _, e := range m.Elements() {
		fe := Element{
			ID:          e.ID(),
			Kind:        string(e.Kind()),
			Name:        e.Name(),
			Description: e.Description(),
		}
		if b := e.Boundary(); b != nil {
			fe.Boundary = b.ID()
		}
		for a, v := range e.Attrs() {
			if v {
				if fe.Attributes == nil {
					fe.Attributes = make(map[string]bool)
				}
				fe.Attributes[string(a)] = true
			}
		}
		f.Elements = append(f.Elements, fe)
	}
	for _, df := range m.Dataflows() {
		replayable := df.Replayable()
		fd := Dataflow{
			ID:            df.ID(),
			Source:        df.Source().ID(),
			Sink:          df.Sink().ID(),
			Label:         df.Label(),
			Protocol:      df.Protocol(),
			Authenticated: df.Authenticated(),
			Replayable:    &replayable,
			Note:          df.Note(),
		}
		if p, ok := df.DstPort(); ok {
			fd.Port = &p
		}
		if n, ok := df.Order(); ok {
			fd.Order = &n
		}
		f.Dataflows = append(f.Dataflows, fd)
	}
	f.Findings = m.Findings()
	return f
}

// Encode renders m as a YAML document.
func Encode(m *model.Model) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(FromModel(m)); err != nil {
		return nil, fmt.Errorf("encode model: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode model: %w", err)
	}
	return buf.Bytes(), nil
}

// Save encodes m and writes it to path.
func Save(m *model.Model, path string) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func sortedKeys(attrs map[string]bool) []string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
