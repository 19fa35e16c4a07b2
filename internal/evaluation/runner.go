package evaluation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/redact-sentinel/internal/logger"
	"github.com/raaihank/redact-sentinel/internal/policy"
	"github.com/raaihank/redact-sentinel/internal/privacy"
)

const placeholder = "[REDACTED]"

// Runner benchmarks a detector against labeled cases
type Runner struct {
	analyzer privacy.Analyzer
	engine   *policy.Engine
	policy   *policy.RedactionPolicy
	config   Config
	logger   *logger.Logger
}

// NewRunner creates a benchmark runner. When p is non-nil detections are
// filtered through it before scoring, exactly as the redaction path does.
func NewRunner(analyzer privacy.Analyzer, engine *policy.Engine, p *policy.RedactionPolicy, cfg Config, log *logger.Logger) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MatchThreshold <= 0 {
		cfg.MatchThreshold = DefaultMatchThreshold
	}
	return &Runner{
		analyzer: analyzer,
		engine:   engine,
		policy:   p,
		config:   cfg,
		logger:   log.WithComponent("evaluation"),
	}
}

// Run evaluates every case and aggregates the report. Cancellation stops
// dispatching new cases and returns ctx.Err().
func (r *Runner) Run(ctx context.Context, cases []Case) (*Report, error) {
	start := time.Now()
	r.logger.Info("Starting evaluation",
		zap.Int("cases", len(cases)),
		zap.Int("workers", r.config.Workers))

	results := make([]CaseResult, len(cases))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < r.config.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = r.evaluateCase(ctx, cases[i])
			}
		}()
	}

	var runErr error
dispatch:
	for i := range cases {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		select {
		case <-ctx.Done():
			runErr = ctx.Err()
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if runErr != nil {
		return nil, fmt.Errorf("evaluation cancelled: %w", runErr)
	}

	report := r.aggregate(cases, results)
	report.Duration = time.Since(start)

	r.logger.Info("Evaluation completed",
		zap.Int("successful_cases", report.SuccessfulCases),
		zap.Int("failed_cases", report.FailedCases),
		zap.Float64("precision", report.Overall.Precision),
		zap.Float64("recall", report.Overall.Recall),
		zap.Float64("f1", report.Overall.F1),
		zap.Int("leaked_entities", report.Leaks.TotalLeaked),
		zap.Duration("duration", report.Duration))

	return report, nil
}

func (r *Runner) evaluateCase(ctx context.Context, c Case) CaseResult {
	result := CaseResult{ID: c.ID, Category: c.Category}

	start := time.Now()
	detections, err := r.analyzer.Analyze(ctx, c.Text)
	if err != nil {
		result.Error = err.Error()
		r.logger.Warn("Case failed", zap.String("case_id", c.ID), zap.Error(err))
		return result
	}
	if r.policy != nil {
		detections = r.engine.FilterEntities(detections, *r.policy)
	}

	redacted, applied, err := privacy.Anonymize(c.Text, detections, func(privacy.Detection, string) (string, error) {
		return placeholder, nil
	})
	result.Latency = time.Since(start)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	for _, idx := range applied {
		d := detections[idx]
		result.Predictions = append(result.Predictions, Span{
			Type:  d.Type,
			Start: d.Start,
			End:   d.End,
			Text:  c.Text[d.Start:d.End],
			Score: d.Score,
		})
	}

	result.TruePositives, result.FalsePositives, result.FalseNegatives =
		MatchSpans(result.Predictions, c.GroundTruth, r.config.MatchThreshold)

	for _, gt := range c.GroundTruth {
		if gt.Text != "" && strings.Contains(redacted, gt.Text) {
			result.Leaked = append(result.Leaked, gt)
		}
	}

	result.Success = true
	return result
}

func (r *Runner) aggregate(cases []Case, results []CaseResult) *Report {
	report := &Report{
		TotalCases: len(cases),
		ByCategory: map[string]Scores{},
	}
	if r.policy != nil {
		report.PolicyContext = r.policy.Context
	}

	type counts struct{ tp, fp, fn int }
	var total counts
	byCategory := map[string]*counts{}
	var latencies []time.Duration

	for i, res := range results {
		report.TotalEntities += len(cases[i].GroundTruth)
		if !res.Success {
			report.FailedCases++
			continue
		}
		report.SuccessfulCases++
		latencies = append(latencies, res.Latency)

		tp, fp, fn := len(res.TruePositives), len(res.FalsePositives), len(res.FalseNegatives)
		total.tp += tp
		total.fp += fp
		total.fn += fn

		cat, ok := byCategory[res.Category]
		if !ok {
			cat = &counts{}
			byCategory[res.Category] = cat
		}
		cat.tp += tp
		cat.fp += fp
		cat.fn += fn

		report.Leaks.TotalLeaked += len(res.Leaked)
	}

	report.Overall = ComputeScores(total.tp, total.fp, total.fn)
	report.ByType = ScoresByType(results)
	for name, c := range byCategory {
		report.ByCategory[name] = ComputeScores(c.tp, c.fp, c.fn)
	}
	if report.TotalEntities > 0 {
		report.Leaks.LeakRate = round(float64(report.Leaks.TotalLeaked)/float64(report.TotalEntities), 4)
	}
	report.Latency = Latencies(latencies)

	if r.config.IncludeCases {
		report.Cases = results
	}
	return report
}
