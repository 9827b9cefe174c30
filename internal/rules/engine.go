package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"strider/internal/finding"
	"strider/internal/model"
)

// Engine runs an ordered list of rules against validated models.
type Engine struct {
	rules       []Rule
	severity    map[string]finding.Severity
	logger      hclog.Logger
	tracer      trace.Tracer
	metrics     *Metrics
	parallelism int
}

// Option configures an Engine.
type Option func(*Engine)

// WithRules replaces the rule list.
func WithRules(rs ...Rule) Option {
	return func(e *Engine) { e.rules = append([]Rule(nil), rs...) }
}

// AddRules appends rules after the current list.
func AddRules(rs ...Rule) Option {
	return func(e *Engine) { e.rules = append(e.rules, rs...) }
}

// WithoutRules drops every rule for which disabled returns true.
func WithoutRules(disabled func(id string) bool) Option {
	return func(e *Engine) {
		kept := e.rules[:0:0]
		for _, r := range e.rules {
			if !disabled(r.Meta().ID) {
				kept = append(kept, r)
			}
		}
		e.rules = kept
	}
}

// WithSeverity overrides the severity of every finding emitted by rule id.
func WithSeverity(id string, sev finding.Severity) Option {
	return func(e *Engine) { e.severity[id] = sev }
}

// WithLogger sets the engine's logger.
func WithLogger(l hclog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithTracer sets the tracer used for analysis spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(mt *Metrics) Option {
	return func(e *Engine) { e.metrics = mt }
}

// WithParallelism evaluates up to n rules at once. n <= 1 runs them
// sequentially. Output order does not depend on n.
func WithParallelism(n int) Option {
	return func(e *Engine) { e.parallelism = n }
}

// NewEngine returns an engine loaded with the built-in rules and the default
// state-changing protocols, then applies opts in order.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		rules:    Builtins(nil),
		severity: make(map[string]finding.Severity),
		logger:   hclog.NewNullLogger(),
		tracer:   otel.Tracer("strider/rules"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rules returns the metadata of the loaded rules in evaluation order, with
// severity overrides applied.
func (e *Engine) Rules() []Meta {
	out := make([]Meta, 0, len(e.rules))
	for _, r := range e.rules {
		meta := r.Meta()
		if sev, ok := e.severity[meta.ID]; ok {
			meta.Severity = sev
		}
		out = append(out, meta)
	}
	return out
}

// Analyze evaluates every rule against m, records the findings on the model
// and moves it to Analyzed. m must be Validated; a model that was already
// analyzed returns its frozen findings without running the rules again.
func (e *Engine) Analyze(ctx context.Context, m *model.Model) ([]finding.Finding, error) {
	switch st := m.State(); st {
	case model.Draft:
		e.metrics.RecordAnalysis("rejected")
		return nil, &model.AnalysisError{Op: "analyze", State: st, Want: model.Validated}
	case model.Analyzed, model.Reported:
		return m.Findings(), nil
	}

	ctx, span := e.tracer.Start(ctx, "strider.analyze")
	defer span.End()
	span.SetAttributes(
		attribute.String("model.id", m.ID()),
		attribute.String("model.name", m.Name()),
		attribute.Int("rules.count", len(e.rules)),
	)

	results := make([][]finding.Finding, len(e.rules))
	if e.parallelism > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.parallelism)
		for i, r := range e.rules {
			g.Go(func() error {
				results[i] = e.evaluate(gctx, r, m)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			span.RecordError(err)
			e.logger.Error("rule evaluation failed", "model", m.Name(), "error", err)
		}
	} else {
		for i, r := range e.rules {
			results[i] = e.evaluate(ctx, r, m)
		}
	}

	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		e.metrics.RecordAnalysis("canceled")
		return nil, fmt.Errorf("analyze %s: %w", m.Name(), err)
	}

	var all []finding.Finding
	for _, fs := range results {
		all = append(all, fs...)
	}
	if err := m.CompleteAnalysis(all); err != nil {
		if m.State() >= model.Analyzed {
			// A concurrent Analyze froze its findings first.
			e.logger.Debug("analysis already completed", "model", m.Name())
			e.metrics.RecordAnalysis("ok")
			return m.Findings(), nil
		}
		span.RecordError(err)
		e.metrics.RecordAnalysis("error")
		return nil, err
	}

	span.SetAttributes(attribute.Int("findings.count", len(all)))
	span.SetStatus(codes.Ok, "")
	e.metrics.RecordAnalysis("ok")
	e.logger.Info("analysis complete", "model", m.Name(), "rules", len(e.rules), "findings", len(all))
	return m.Findings(), nil
}

// evaluate runs one rule. A rule that panics is logged and contributes no
// findings; findings that fail validation are dropped.
func (e *Engine) evaluate(ctx context.Context, r Rule, m *model.Model) (out []finding.Finding) {
	meta := r.Meta()
	_, span := e.tracer.Start(ctx, "strider.rule", trace.WithAttributes(attribute.String("rule.id", meta.ID)))
	defer span.End()

	start := time.Now()
	status := "ok"
	defer func() {
		if rec := recover(); rec != nil {
			status = "panic"
			out = nil
			e.logger.Warn("rule panicked", "rule", meta.ID, "panic", rec)
			span.SetStatus(codes.Error, fmt.Sprint(rec))
		}
		elapsed := time.Since(start)
		span.SetAttributes(attribute.Int("findings.count", len(out)))
		e.metrics.RecordRule(meta.ID, status, elapsed, out)
		e.logger.Debug("rule evaluated", "rule", meta.ID, "findings", len(out), "elapsed", elapsed)
	}()

	if ctx.Err() != nil {
		status = "skipped"
		return nil
	}
	for _, f := range r.Evaluate(m) {
		f = stamp(meta, f)
		if sev, ok := e.severity[meta.ID]; ok {
			f.Severity = sev
		}
		if err := f.Validate(); err != nil {
			e.logger.Warn("dropping invalid finding", "rule", meta.ID, "error", err)
			continue
		}
		out = append(out, f)
	}
	return out
}
