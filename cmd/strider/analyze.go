package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"strider/internal/container"
	"strider/internal/export"
	"strider/internal/finding"
	"strider/internal/model"
	"strider/internal/modelfile"
	"strider/internal/obsidian"
	"strider/internal/rules"
)

// snapshotFile is the analyzed copy of a model written next to its outputs.
// The workspace's own <model>.yaml is left as the user wrote it.
const snapshotFile = "model.yaml"

// newEngine builds a rule engine from the loaded settings.
func (a *app) newEngine(mt *rules.Metrics) (*rules.Engine, error) {
	opts, err := rules.FromSettings(a.settings, a.log.Named("rules"))
	if err != nil {
		return nil, err
	}
	if mt != nil {
		opts = append(opts, rules.WithMetrics(mt))
	}
	return rules.NewEngine(opts...), nil
}

// analyzeModel validates m if it is still a draft, then runs engine on it.
func analyzeModel(ctx context.Context, engine *rules.Engine, m *model.Model) ([]finding.Finding, error) {
	if m.State() == model.Draft {
		if err := m.Validate(); err != nil {
			return nil, err
		}
	}
	return engine.Analyze(ctx, m)
}

// loadAndAnalyze reads a model file and analyzes it with the configured rules.
func (a *app) loadAndAnalyze(ctx context.Context, path string) (*model.Model, []finding.Finding, error) {
	m, err := modelfile.Load(path)
	if err != nil {
		return nil, nil, err
	}
	engine, err := a.newEngine(nil)
	if err != nil {
		return nil, nil, err
	}
	fs, err := analyzeModel(ctx, engine, m)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, fs, nil
}

func (a *app) newAnalyzeCmd() *cobra.Command {
	var metricsFile string
	cmd := &cobra.Command{
		Use:   "analyze <workspace>",
		Short: "Analyze every model in a workspace and write its outputs",
		Long: `Validate and analyze every model in a workspace, then write each model's
outputs to ~/.strider/<workspace>/<model>/:

  report.md        Markdown threat report
  dfd.dot          Graphviz data-flow diagram
  dfd.md           Mermaid flowchart
  sequence.md      Mermaid sequence diagram
  findings.sarif   SARIF 2.1.0 findings
  vault/           Obsidian notes per element
  model.yaml       the analyzed model with its findings

output.formats in settings limits which outputs are written.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := container.Open(args[0])
			if err != nil {
				return err
			}
			names, err := w.ListModels()
			if err != nil {
				return err
			}
			if len(names) == 0 {
				return fmt.Errorf("workspace %q has no models (run 'strider add %s <file>' first)", args[0], args[0])
			}

			reg := prometheus.NewRegistry()
			engine, err := a.newEngine(rules.NewMetrics(reg))
			if err != nil {
				return err
			}

			for _, name := range names {
				fs, err := a.analyzeWorkspaceModel(cmd.Context(), w, engine, name)
				if err != nil {
					return fmt.Errorf("model %s: %w", name, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), summaryLine(name, fs, w.OutputDir(name)))
			}

			if metricsFile != "" {
				if err := prometheus.WriteToTextfile(metricsFile, reg); err != nil {
					return fmt.Errorf("write metrics: %w", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics in text format to this file")
	return cmd
}

func (a *app) analyzeWorkspaceModel(ctx context.Context, w *container.Workspace, engine *rules.Engine, name string) ([]finding.Finding, error) {
	m, err := w.LoadModel(name)
	if err != nil {
		return nil, err
	}
	fs, err := analyzeModel(ctx, engine, m)
	if err != nil {
		return nil, err
	}

	out := w.OutputDir(name)
	bundle, err := export.GenerateBundle(m, export.Outputs(), a.settings.WantsOutput)
	if err != nil {
		return nil, err
	}
	if err := export.WriteBundle(bundle, out); err != nil {
		return nil, err
	}
	if a.settings.WantsOutput("vault") {
		if err := obsidian.GenerateVault(m, filepath.Join(out, "vault")); err != nil {
			return nil, err
		}
	}
	if err := modelfile.Save(m, filepath.Join(out, snapshotFile)); err != nil {
		return nil, err
	}
	a.log.Debug("outputs written", "model", name, "findings", len(fs), "outputs", len(bundle.Paths()))
	return fs, nil
}

func (a *app) newCheckCmd() *cobra.Command {
	var failOn, format string
	cmd := &cobra.Command{
		Use:   "check <model-file>",
		Short: "Analyze a single model file and print the result",
		Long: `Analyze a model file without a workspace and print the report to stdout.

--format selects report (Markdown), sarif or summary. With --fail-on the
command exits with status 2 when any finding is at or above that severity.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var threshold finding.Severity
			if failOn != "" {
				sev, err := finding.ParseSeverity(failOn)
				if err != nil {
					return err
				}
				threshold = sev
			}

			m, fs, err := a.loadAndAnalyze(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			var out string
			switch format {
			case "report":
				out, err = export.Report(m)
			case "sarif":
				out, err = export.SARIF(m, filepath.ToSlash(args[0]))
			case "summary":
				out = summaryLine(m.Name(), fs, "") + "\n"
			default:
				return fmt.Errorf("unknown format %q (want report, sarif or summary)", format)
			}
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)

			if threshold == "" {
				return nil
			}
			var failing int
			for _, f := range fs {
				if f.Severity.AtLeast(threshold) {
					failing++
				}
			}
			if failing > 0 {
				return &exitError{code: 2, msg: fmt.Sprintf("%d findings at or above %s", failing, threshold)}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&failOn, "fail-on", "", "exit 2 if any finding is at or above this severity")
	cmd.Flags().StringVar(&format, "format", "report", "output format: report, sarif or summary")
	return cmd
}

func (a *app) newDiagramCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "diagram <model-file>",
		Short: "Print a model's data-flow diagram",
		Long: `Print a model's diagram to stdout. The default Graphviz output can be piped
into dot:

  strider diagram model.yaml | dot -Tpng -o dfd.png

--format mermaid prints a Mermaid flowchart and --format sequence a Mermaid
sequence diagram of the dataflows.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			render := map[string]func(*model.Model) (string, error){
				"dot":      export.Diagram,
				"mermaid":  export.Mermaid,
				"sequence": export.Sequence,
			}[format]
			if render == nil {
				return fmt.Errorf("unknown format %q (want dot, mermaid or sequence)", format)
			}
			m, _, err := a.loadAndAnalyze(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out, err := render(m)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "dot", "diagram format: dot, mermaid or sequence")
	return cmd
}

func (a *app) newRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the rules that analyze runs",
		Long: `List the rules in evaluation order with settings applied: disabled rules
are omitted, severity overrides and custom rules are included.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.newEngine(nil)
			if err != nil {
				return err
			}
			for _, meta := range engine.Rules() {
				fmt.Fprintln(cmd.OutOrStdout(), ruleLine(meta))
			}
			return nil
		},
	}
}
