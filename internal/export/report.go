package export

import (
	"fmt"
	"strings"

	"strider/internal/finding"
	"strider/internal/frontmatter"
	"strider/internal/model"
)

// reportHeader is the YAML header of report.md.
type reportHeader struct {
	Title    string         `yaml:"title"`
	ModelID  string         `yaml:"model_id"`
	Ordered  bool           `yaml:"ordered"`
	Elements int            `yaml:"elements"`
	Flows    int            `yaml:"dataflows"`
	Findings map[string]int `yaml:"findings"`
	Tags     []string       `yaml:"tags"`
}

// Report renders the markdown threat report: elements grouped by boundary,
// dataflows in report order, then findings grouped by STRIDE category and
// severity.
func Report(m *model.Model) (string, error) {
	if err := m.MarkReported(); err != nil {
		return "", err
	}
	fs := m.Findings()

	counts := make(map[string]int)
	for sev, n := range finding.CountBySeverity(fs) {
		counts[string(sev)] = n
	}
	var body strings.Builder
	fmt.Fprintf(&body, "\n# Threat Model: %s\n\n", m.Name())
	if d := m.Description(); d != "" {
		body.WriteString(d + "\n\n")
	}
	writeSummary(&body, fs)
	writeElements(&body, m)
	writeDataflows(&body, m)
	writeFindings(&body, m, fs)

	out, err := frontmatter.Write(reportHeader{
		Title:    m.Name(),
		ModelID:  m.ID(),
		Ordered:  m.IsOrdered(),
		Elements: len(m.Elements()),
		Flows:    len(m.Dataflows()),
		Findings: counts,
		Tags:     []string{"strider/report"},
	}, body.String())
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func writeSummary(b *strings.Builder, fs []finding.Finding) {
	if len(fs) == 0 {
		b.WriteString("**Summary**: no findings\n\n")
		return
	}
	counts := finding.CountBySeverity(fs)
	var parts []string
	for _, sev := range finding.AllSeverities() {
		if n := counts[sev]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, sev))
		}
	}
	fmt.Fprintf(b, "**Summary**: %d findings (%s)\n\n", len(fs), strings.Join(parts, ", "))
}

// writeElements lists unscoped elements first, then each boundary's direct
// members under a heading naming its full containment path.
func writeElements(b *strings.Builder, m *model.Model) {
	b.WriteString("## Elements\n\n")
	writeMembers := func(heading string, parent *model.Element) {
		var lines []string
		for _, e := range m.Children(parent) {
			if e.Kind() == model.Boundary {
				continue
			}
			line := fmt.Sprintf("- %s **%s** (`%s`)", e.Kind().DisplayName(), e.Name(), e.ID())
			if attrs := trueAttributes(e); len(attrs) > 0 {
				line += " [" + strings.Join(attrs, ", ") + "]"
			}
			if d := e.Description(); d != "" {
				line += "\n  " + d
			}
			lines = append(lines, line)
		}
		if len(lines) == 0 && parent == nil {
			return
		}
		b.WriteString(heading + "\n\n")
		if len(lines) == 0 {
			b.WriteString("_Empty._\n\n")
			return
		}
		b.WriteString(strings.Join(lines, "\n") + "\n\n")
	}

	writeMembers("### Unscoped", nil)
	walkBoundaries(m, func(bd *model.Element, _ int) {
		writeMembers(fmt.Sprintf("### %s (`%s`)", strings.Join(boundaryPath(m, bd), " / "), bd.ID()), bd)
	})
}

func writeDataflows(b *strings.Builder, m *model.Model) {
	b.WriteString("## Dataflows\n\n")
	flows := m.Dataflows()
	if len(flows) == 0 {
		b.WriteString("_None._\n\n")
		return
	}
	b.WriteString("| # | Source | Sink | Label | Protocol | Port | Authenticated | Replayable |\n")
	b.WriteString("|---|--------|------|-------|----------|------|---------------|------------|\n")
	for i, df := range flows {
		seq := i + 1
		if n, ok := df.Order(); ok {
			seq = n + 1
		}
		port := ""
		if p, ok := df.DstPort(); ok {
			port = fmt.Sprint(p)
		}
		fmt.Fprintf(b, "| %d | %s | %s | %s | %s | %s | %s | %s |\n",
			seq,
			escapeTable(df.Source().Name()),
			escapeTable(df.Sink().Name()),
			escapeTable(df.Label()),
			escapeTable(df.Protocol()),
			port,
			yesNo(df.Authenticated()),
			yesNo(df.Replayable()))
	}
	b.WriteString("\n")
}

func writeFindings(b *strings.Builder, m *model.Model, fs []finding.Finding) {
	b.WriteString("## Findings\n\n")
	if len(fs) == 0 {
		b.WriteString("_No findings._\n")
		return
	}

	sorted := finding.SortForReport(fs)
	for _, cat := range finding.AllCategories() {
		var rows []finding.Finding
		for _, f := range sorted {
			if f.Category == cat {
				rows = append(rows, f)
			}
		}
		if len(rows) == 0 {
			continue
		}
		fmt.Fprintf(b, "### %s %s\n\n", cat.Letter(), cat.DisplayName())
		b.WriteString("| Severity | Rule | Subject | Message |\n")
		b.WriteString("|----------|------|---------|---------|\n")
		for _, f := range rows {
			fmt.Fprintf(b, "| %s | %s | %s | %s |\n",
				f.Severity, f.RuleID, escapeTable(subjectName(m, f.SubjectID)), escapeTable(f.Message))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Mitigations\n\n")
	seen := make(map[string]bool)
	for _, f := range sorted {
		if seen[f.RuleID] || f.Mitigation == "" {
			continue
		}
		seen[f.RuleID] = true
		fmt.Fprintf(b, "- **%s** (`%s`): %s\n", f.Title, f.RuleID, f.Mitigation)
	}
}

// subjectName resolves a finding subject to a display name.
func subjectName(m *model.Model, id string) string {
	if e, ok := m.Element(id); ok {
		return e.Name()
	}
	if df, ok := m.Dataflow(id); ok {
		return flowLabel(df)
	}
	return id
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
