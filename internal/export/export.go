package export

// export.go: Projections of an analyzed model.
//
// Every projection is a pure function of the model: it may run any number of
// times, concurrently, and returns byte-identical output for an unchanged
// model. Each one first moves the model to Reported, which fails with an
// AnalysisError before the rule engine has run.
//
// Output layout written by WriteBundle:
//
//	report.md        elements by boundary, ordered dataflows, findings
//	dfd.dot          Graphviz description for an external renderer
//	dfd.md           Mermaid flowchart
//	sequence.md      Mermaid sequence diagram of the dataflows
//	findings.sarif   SARIF 2.1.0 log

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"strider/internal/model"
	"strider/internal/plugin"
)

// Outputs returns the built-in file outputs in a fixed order.
func Outputs() []plugin.Output {
	return []plugin.Output{
		plugin.Func{OutputName: "report", File: "report.md", Fn: Report},
		plugin.Func{OutputName: "dot", File: "dfd.dot", Fn: Diagram},
		plugin.Func{OutputName: "mermaid", File: "dfd.md", Fn: Mermaid},
		plugin.Func{OutputName: "sequence", File: "sequence.md", Fn: Sequence},
		plugin.Func{OutputName: "sarif", File: "findings.sarif", Fn: func(m *model.Model) (string, error) {
			return SARIF(m, "")
		}},
	}
}

// Bundle holds rendered outputs keyed by relative path.
type Bundle struct {
	files map[string]string
}

// Paths returns the bundle's relative paths in sorted order.
func (b *Bundle) Paths() []string {
	paths := make([]string, 0, len(b.files))
	for p := range b.files {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

// File returns the content rendered for path.
func (b *Bundle) File(path string) (string, bool) {
	s, ok := b.files[path]
	return s, ok
}

// GenerateBundle renders every output for which want returns true. A nil
// want renders all of them. No files are written.
func GenerateBundle(m *model.Model, outputs []plugin.Output, want func(name string) bool) (*Bundle, error) {
	files := make(map[string]string)
	for _, out := range outputs {
		if want != nil && !want(out.Name()) {
			continue
		}
		content, err := out.Render(m)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", out.Name(), err)
		}
		files[out.Filename()] = content
	}
	return &Bundle{files: files}, nil
}

// WriteBundle writes every file in bundle under dir, in sorted path order.
func WriteBundle(bundle *Bundle, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	for _, p := range bundle.Paths() {
		if err := writeFile(filepath.Join(dir, filepath.FromSlash(p)), bundle.files[p]); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// boundaryPath returns the names of b and its ancestors, outermost first.
func boundaryPath(m *model.Model, b *model.Element) []string {
	names := []string{b.Name()}
	for _, a := range m.Ancestors(b) {
		names = append(names, a.Name())
	}
	slices.Reverse(names)
	return names
}

// walkBoundaries visits every boundary depth-first, parents before
// children, siblings in insertion order.
func walkBoundaries(m *model.Model, visit func(b *model.Element, depth int)) {
	var walk func(parent *model.Element, depth int)
	walk = func(parent *model.Element, depth int) {
		for _, e := range m.Children(parent) {
			if e.Kind() != model.Boundary {
				continue
			}
			visit(e, depth)
			walk(e, depth+1)
		}
	}
	walk(nil, 0)
}

// trueAttributes lists the attributes set on e, in kind order.
func trueAttributes(e *model.Element) []string {
	var out []string
	for _, a := range e.Kind().Attributes() {
		if e.Attr(a) {
			out = append(out, string(a))
		}
	}
	return out
}

// flowLabel prefixes the label with the 1-based sequence number on ordered
// models, e.g. "(3) createDID".
func flowLabel(df *model.Dataflow) string {
	if n, ok := df.Order(); ok {
		return fmt.Sprintf("(%d) %s", n+1, df.Label())
	}
	return df.Label()
}

// nodeIDs maps element ids to short positional identifiers (n0, n1, ...)
// safe for diagram syntaxes that restrict identifier characters.
func nodeIDs(m *model.Model) map[string]string {
	ids := make(map[string]string)
	for i, e := range m.Elements() {
		ids[e.ID()] = fmt.Sprintf("n%d", i)
	}
	return ids
}

// writeFile writes content to path, creating parent directories as needed.
func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// escapeTable escapes pipe characters for markdown table cells.
func escapeTable(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
