package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"strider/internal/finding"
	"strider/internal/rules"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF00FF"))
	promptStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FD75F"))
)

var severityStyles = map[finding.Severity]lipgloss.Style{
	finding.SeverityCritical: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF0000")),
	finding.SeverityHigh:     lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87")),
	finding.SeverityMedium:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FFAF00")),
	finding.SeverityLow:      lipgloss.NewStyle().Foreground(lipgloss.Color("#5FAFFF")),
	finding.SeverityInfo:     dimStyle,
}

// severityBreakdown renders counts such as "2 high, 1 medium", most severe first.
func severityBreakdown(fs []finding.Finding) string {
	counts := finding.CountBySeverity(fs)
	var parts []string
	for _, sev := range finding.AllSeverities() {
		if n := counts[sev]; n > 0 {
			parts = append(parts, severityStyles[sev].Render(fmt.Sprintf("%d %s", n, sev)))
		}
	}
	return strings.Join(parts, ", ")
}

// summaryLine renders one model's analysis result.
func summaryLine(name string, fs []finding.Finding, dir string) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(name))
	if len(fs) == 0 {
		b.WriteString("  " + okStyle.Render("no findings"))
	} else {
		fmt.Fprintf(&b, "  %d findings (%s)", len(fs), severityBreakdown(fs))
	}
	if dir != "" {
		b.WriteString("  " + dimStyle.Render(dir))
	}
	return b.String()
}

// ruleLine renders one row of `strider rules`.
func ruleLine(m rules.Meta) string {
	sev := severityStyles[m.Severity].Render(fmt.Sprintf("%-8s", m.Severity))
	return fmt.Sprintf("%-40s %s %-2s %s", m.ID, sev, m.Category.Letter(), m.Title)
}
