package export

import (
	"fmt"
	"strings"

	"strider/internal/frontmatter"
	"strider/internal/model"
)

// Mermaid renders the model as a Mermaid flowchart inside a markdown note.
// Boundaries become nested subgraphs.
func Mermaid(m *model.Model) (string, error) {
	if err := m.MarkReported(); err != nil {
		return "", err
	}
	ids := nodeIDs(m)

	var b strings.Builder
	b.WriteString(frontmatter.Tags("strider/graph"))
	fmt.Fprintf(&b, "\n# Data Flow Diagram: %s\n\n", m.Name())
	b.WriteString("```mermaid\nflowchart LR\n")
	writeMermaidScope(&b, m, ids, nil, 1)
	for _, df := range m.Dataflows() {
		label := flowLabel(df)
		if p := df.Protocol(); p != "" {
			label += " / " + p
		}
		fmt.Fprintf(&b, "  %s -->|%s| %s\n", ids[df.Source().ID()], mermaidText(label), ids[df.Sink().ID()])
	}
	b.WriteString("```\n")
	return b.String(), nil
}

func writeMermaidScope(b *strings.Builder, m *model.Model, ids map[string]string, parent *model.Element, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, e := range m.Children(parent) {
		id := ids[e.ID()]
		name := mermaidText(e.Name())
		switch e.Kind() {
		case model.Actor:
			fmt.Fprintf(b, "%s%s[%s]\n", indent, id, name)
		case model.Process:
			fmt.Fprintf(b, "%s%s((%s))\n", indent, id, name)
		case model.Datastore:
			fmt.Fprintf(b, "%s%s[(%s)]\n", indent, id, name)
		case model.Boundary:
			fmt.Fprintf(b, "%ssubgraph %s[%s]\n", indent, id, name)
			writeMermaidScope(b, m, ids, e, depth+1)
			fmt.Fprintf(b, "%send\n", indent)
		}
	}
}

// Sequence renders the dataflows, in report order, as a Mermaid sequence
// diagram. Participants are the non-boundary elements in insertion order.
func Sequence(m *model.Model) (string, error) {
	if err := m.MarkReported(); err != nil {
		return "", err
	}
	ids := nodeIDs(m)

	var b strings.Builder
	b.WriteString(frontmatter.Tags("strider/sequence"))
	fmt.Fprintf(&b, "\n# Sequence: %s\n\n", m.Name())
	b.WriteString("```mermaid\nsequenceDiagram\n")
	for _, e := range m.Elements() {
		switch e.Kind() {
		case model.Boundary:
			continue
		case model.Actor:
			fmt.Fprintf(&b, "  actor %s as %s\n", ids[e.ID()], sequenceText(e.Name()))
		default:
			fmt.Fprintf(&b, "  participant %s as %s\n", ids[e.ID()], sequenceText(e.Name()))
		}
	}
	for _, df := range m.Dataflows() {
		fmt.Fprintf(&b, "  %s->>%s: %s\n", ids[df.Source().ID()], ids[df.Sink().ID()], sequenceText(flowLabel(df)))
		if note := df.Note(); note != "" {
			fmt.Fprintf(&b, "  Note over %s,%s: %s\n", ids[df.Source().ID()], ids[df.Sink().ID()], sequenceText(note))
		}
	}
	b.WriteString("```\n")
	return b.String(), nil
}

var mermaidEscaper = strings.NewReplacer(`"`, "#quot;", "\n", "<br/>")

// mermaidText quotes s for flowchart labels.
func mermaidText(s string) string {
	return `"` + mermaidEscaper.Replace(s) + `"`
}

var sequenceEscaper = strings.NewReplacer("#", "#35;", ";", "#59;", "\n", " ")

// sequenceText escapes the characters that end a sequence message.
func sequenceText(s string) string {
	return sequenceEscaper.Replace(s)
}
