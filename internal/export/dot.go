package export

import (
	"fmt"
	"strings"

	"strider/internal/model"
)

// dotStyle is the node style hint for each element kind.
var dotStyle = map[model.Kind]string{
	model.Actor:     `shape=square, style=filled, fillcolor="#f5f5f5"`,
	model.Process:   `shape=circle, style=filled, fillcolor="#e8f0fe"`,
	model.Datastore: `shape=cylinder, style=filled, fillcolor="#fef7e0"`,
}

// Diagram renders the model as a Graphviz digraph: one node per element
// styled by kind, one cluster per boundary nested as in the containment
// forest, and one edge per dataflow labeled with its label and protocol.
func Diagram(m *model.Model) (string, error) {
	if err := m.MarkReported(); err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "digraph %s {\n", dotQuote(m.Name()))
	fmt.Fprintf(&b, "  graph [fontname=\"Arial\", fontsize=14, labelloc=\"t\", label=%s, nodesep=1];\n", dotQuote(m.Name()))
	b.WriteString("  node [fontname=\"Arial\", fontsize=12];\n")
	b.WriteString("  edge [fontname=\"Arial\", fontsize=10];\n\n")

	writeDOTScope(&b, m, nil, 1)

	if flows := m.Dataflows(); len(flows) > 0 {
		b.WriteString("\n")
		for _, df := range flows {
			label := flowLabel(df)
			if p := df.Protocol(); p != "" {
				label += "\n" + p
			}
			fmt.Fprintf(&b, "  %s -> %s [label=%s];\n",
				dotQuote(df.Source().ID()), dotQuote(df.Sink().ID()), dotQuote(label))
		}
	}
	b.WriteString("}\n")
	return b.String(), nil
}

// writeDOTScope writes the nodes directly inside parent, then one cluster
// per child boundary.
func writeDOTScope(b *strings.Builder, m *model.Model, parent *model.Element, depth int) {
	indent := strings.Repeat("  ", depth)
	children := m.Children(parent)
	for _, e := range children {
		if e.Kind() == model.Boundary {
			continue
		}
		attrs := fmt.Sprintf("label=%s, %s", dotQuote(e.Name()), dotStyle[e.Kind()])
		if d := e.Description(); d != "" {
			attrs += ", tooltip=" + dotQuote(d)
		}
		fmt.Fprintf(b, "%s%s [%s];\n", indent, dotQuote(e.ID()), attrs)
	}
	for _, e := range children {
		if e.Kind() != model.Boundary {
			continue
		}
		fmt.Fprintf(b, "%ssubgraph %s {\n", indent, dotQuote("cluster_"+e.ID()))
		fmt.Fprintf(b, "%s  label=%s;\n", indent, dotQuote(e.Name()))
		fmt.Fprintf(b, "%s  style=dashed; color=firebrick2; fontcolor=firebrick2;\n", indent)
		writeDOTScope(b, m, e, depth+1)
		fmt.Fprintf(b, "%s}\n", indent)
	}
}

var dotEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

// dotQuote returns s as a double-quoted DOT identifier.
func dotQuote(s string) string {
	return `"` + dotEscaper.Replace(s) + `"`
}
