// Package obsidian renders an analyzed threat model as an Obsidian vault.
package obsidian

// vault.go: Converts a Model into an Obsidian vault.
//
// Elements form a linked graph: each element note wiki-links to the notes
// on the other end of its dataflows, to its containing boundary and, for a
// boundary, to its members. Findings are listed on their subject's note and
// collected in findings.md.
//
// Vault layout:
//
//	index.md             entry point: boundaries, elements by kind, findings
//	elements/<id>.md     one note per element
//	findings.md          findings grouped by STRIDE category

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"strider/internal/finding"
	"strider/internal/frontmatter"
	"strider/internal/model"
)

// Vault renders every note keyed by its slash-separated relative path. It
// moves the model to Reported and fails with an AnalysisError before the
// rule engine has run.
func Vault(m *model.Model) (map[string]string, error) {
	if err := m.MarkReported(); err != nil {
		return nil, err
	}
	v := &vault{m: m, paths: notePaths(m)}
	notes := map[string]string{
		"index.md":    v.indexNote(),
		"findings.md": v.findingsNote(),
	}
	for _, e := range m.Elements() {
		notes[v.paths[e.ID()]+".md"] = v.elementNote(e)
	}
	return notes, nil
}

// vault renders notes for one model.
type vault struct {
	m *model.Model

	// paths maps element id to its note path without the .md extension.
	paths map[string]string
}

// notePaths assigns every element a distinct note path. Ids that sanitize
// to the same file name, ignoring case, get -2, -3, ... in element order.
func notePaths(m *model.Model) map[string]string {
	paths := make(map[string]string, len(m.Elements()))
	taken := make(map[string]bool)
	for _, e := range m.Elements() {
		base := sanitizeFilename(e.ID())
		if base == "" {
			base = "element"
		}
		name := base
		for n := 2; taken[strings.ToLower(name)]; n++ {
			name = fmt.Sprintf("%s-%d", base, n)
		}
		taken[strings.ToLower(name)] = true
		paths[e.ID()] = "elements/" + name
	}
	return paths
}

// GenerateVault writes the vault rooted at outputDir. Existing notes are
// overwritten. Two runs over the same model produce identical files.
func GenerateVault(m *model.Model, outputDir string) error {
	notes, err := Vault(m)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(outputDir, "elements"), 0o755); err != nil {
		return fmt.Errorf("mkdir elements: %w", err)
	}

	// Sort paths for deterministic write order.
	paths := make([]string, 0, len(notes))
	for p := range notes {
		paths = append(paths, p)
	}
	slices.Sort(paths)

	for _, p := range paths {
		if err := writeNote(filepath.Join(outputDir, filepath.FromSlash(p)), notes[p]); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Notes
// ---------------------------------------------------------------------------

// indexNote lists the boundary tree, the elements by kind and a link to
// the findings note.
func (v *vault) indexNote() string {
	m := v.m
	var b strings.Builder
	b.WriteString(noteHeader("strider/index"))
	fmt.Fprintf(&b, "# %s\n\n", m.Name())
	if d := m.Description(); d != "" {
		b.WriteString(d + "\n\n")
	}
	fmt.Fprintf(&b, "- **Model ID**: `%s`\n", m.ID())
	fmt.Fprintf(&b, "- **Ordered**: %t\n\n", m.IsOrdered())

	if len(m.Boundaries()) > 0 {
		b.WriteString("## Boundaries\n\n")
		var walk func(parent *model.Element, depth int)
		walk = func(parent *model.Element, depth int) {
			for _, e := range m.Children(parent) {
				if e.Kind() != model.Boundary {
					continue
				}
				fmt.Fprintf(&b, "%s- %s\n", strings.Repeat("  ", depth), v.link(e))
				walk(e, depth+1)
			}
		}
		walk(nil, 0)
		b.WriteString("\n")
	}

	for _, sec := range []struct {
		kind    model.Kind
		heading string
	}{
		{model.Actor, "Actors"},
		{model.Process, "Processes"},
		{model.Datastore, "Datastores"},
	} {
		els := m.ElementsOfKind(sec.kind)
		if len(els) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n", sec.heading)
		for _, e := range els {
			line := "- " + v.link(e)
			if d := e.Description(); d != "" {
				line += ": " + d
			}
			b.WriteString(line + "\n")
		}
		b.WriteString("\n")
	}

	fs := m.Findings()
	fmt.Fprintf(&b, "## Findings\n\n[[findings|%d findings]]\n", len(fs))
	return b.String()
}

// elementNote writes the element's attributes, containment, dataflows and
// findings.
//
// Tags: strider/element, kind/<kind>, plus severity/<highest> when the
// element is the subject of at least one finding.
func (v *vault) elementNote(e *model.Element) string {
	m := v.m
	var b strings.Builder
	fs := m.FindingsFor(e.ID())

	tags := []string{"strider/element", "kind/" + string(e.Kind())}
	if sev, ok := finding.Highest(fs); ok {
		tags = append(tags, "severity/"+string(sev))
	}
	b.WriteString(noteHeader(tags...))

	fmt.Fprintf(&b, "# %s\n\n", e.Name())
	if d := e.Description(); d != "" {
		b.WriteString(d + "\n\n")
	}
	fmt.Fprintf(&b, "**Kind**: %s\n", e.Kind().DisplayName())
	fmt.Fprintf(&b, "**ID**: `%s`\n", e.ID())
	if bd := m.ResolvedBoundary(e); bd != nil {
		fmt.Fprintf(&b, "**Boundary**: %s\n", v.link(bd))
	}

	if attrs := e.Kind().Attributes(); len(attrs) > 0 {
		b.WriteString("\n## Attributes\n\n")
		for _, a := range attrs {
			mark := " "
			if e.Attr(a) {
				mark = "x"
			}
			fmt.Fprintf(&b, "- [%s] %s\n", mark, a)
		}
	}

	if e.Kind() == model.Boundary {
		if members := m.Children(e); len(members) > 0 {
			b.WriteString("\n## Members\n\n")
			for _, c := range members {
				fmt.Fprintf(&b, "- %s (%s)\n", v.link(c), c.Kind())
			}
		}
	}

	var out, in []string
	for df := range m.Outgoing(e) {
		out = append(out, v.flowLine(df, df.Sink()))
	}
	for df := range m.Incoming(e) {
		in = append(in, v.flowLine(df, df.Source()))
	}
	if len(out) > 0 {
		b.WriteString("\n## Outgoing\n\n" + strings.Join(out, "\n") + "\n")
	}
	if len(in) > 0 {
		b.WriteString("\n## Incoming\n\n" + strings.Join(in, "\n") + "\n")
	}

	if len(fs) > 0 {
		b.WriteString("\n## Findings\n\n")
		b.WriteString("| Severity | Category | Rule | Message |\n")
		b.WriteString("|----------|----------|------|---------|\n")
		for _, f := range finding.SortForReport(fs) {
			fmt.Fprintf(&b, "| %s | %s | `%s` | %s |\n",
				f.Severity, f.Category.DisplayName(), f.RuleID, strings.ReplaceAll(f.Message, "|", `\|`))
		}
	}
	return b.String()
}

// findingsNote groups every finding by STRIDE category, each linked to its
// subject's note. A dataflow subject links both of its ends.
func (v *vault) findingsNote() string {
	m := v.m
	var b strings.Builder
	fs := finding.SortForReport(m.Findings())
	b.WriteString(noteHeader("strider/findings"))
	b.WriteString("# Findings\n\n")
	if len(fs) == 0 {
		b.WriteString("_No findings._\n")
		return b.String()
	}

	for _, cat := range finding.AllCategories() {
		var lines []string
		for _, f := range fs {
			if f.Category != cat {
				continue
			}
			lines = append(lines, fmt.Sprintf("- **%s** `%s` %s: %s", f.Severity, f.RuleID, v.subjectLink(f.SubjectID), f.Message))
		}
		if len(lines) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s %s\n\n", cat.Letter(), cat.DisplayName())
		b.WriteString(strings.Join(lines, "\n") + "\n\n")
	}
	return b.String()
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// noteHeader returns a YAML header block with tags sorted alphabetically.
func noteHeader(tags ...string) string {
	sorted := slices.Clone(tags)
	slices.Sort(sorted)
	return frontmatter.Tags(sorted...) + "\n"
}

// link returns a wiki link to e's note, aliased to its display name.
func (v *vault) link(e *model.Element) string {
	return fmt.Sprintf("[[%s|%s]]", v.paths[e.ID()], wikiAlias(e.Name()))
}

func (v *vault) subjectLink(id string) string {
	m := v.m
	if e, ok := m.Element(id); ok {
		return v.link(e)
	}
	if df, ok := m.Dataflow(id); ok {
		return fmt.Sprintf("%s → %s (%s)", v.link(df.Source()), v.link(df.Sink()), df.Label())
	}
	return "`" + id + "`"
}

// flowLine renders one dataflow from the point of view of one endpoint.
func (v *vault) flowLine(df *model.Dataflow, other *model.Element) string {
	label := df.Label()
	if n, ok := df.Order(); ok {
		label = fmt.Sprintf("(%d) %s", n+1, label)
	}
	line := fmt.Sprintf("- %s: %s", label, v.link(other))
	if p := df.Protocol(); p != "" {
		line += " `" + p + "`"
	}
	var flags []string
	if df.Authenticated() {
		flags = append(flags, "authenticated")
	}
	if df.Replayable() {
		flags = append(flags, "replayable")
	}
	if len(flags) > 0 {
		line += " (" + strings.Join(flags, ", ") + ")"
	}
	return line
}

// wikiAlias strips the characters that end a wiki link alias.
func wikiAlias(s string) string {
	return strings.NewReplacer("|", "-", "[", "(", "]", ")").Replace(s)
}

// sanitizeFilename replaces / and . with -, collapses consecutive - to one,
// and trims leading/trailing -.
func sanitizeFilename(s string) string {
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, ".", "-")
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	return strings.Trim(s, "-")
}

// writeNote writes content to path, creating parent directories as needed.
func writeNote(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
