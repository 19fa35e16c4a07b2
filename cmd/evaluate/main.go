package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"

	"go.uber.org/zap"

	"github.com/raaihank/redact-sentinel/internal/config"
	"github.com/raaihank/redact-sentinel/internal/evaluation"
	"github.com/raaihank/redact-sentinel/internal/logger"
	"github.com/raaihank/redact-sentinel/internal/policy"
	"github.com/raaihank/redact-sentinel/internal/privacy"
)

func main() {
	var (
		configPath    = flag.String("config", "", "Configuration file path")
		inputFile     = flag.String("input", "", "Labeled dataset (CSV, Parquet, or JSON); built-in cases when empty")
		policyContext = flag.String("policy", "", "Filter detections through this policy context")
		workers       = flag.Int("workers", 4, "Number of worker goroutines")
		threshold     = flag.Float64("threshold", evaluation.DefaultMatchThreshold, "Minimum span overlap for a match")
		outputFile    = flag.String("output", "", "Write the JSON report to this file")
		perCase       = flag.Bool("cases", false, "Include per-case results in the JSON report")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, cancelling evaluation...")
		cancel()
	}()

	cases := evaluation.BuiltinCases()
	if *inputFile != "" {
		if cases, err = evaluation.LoadFile(*inputFile); err != nil {
			log.Fatal("Failed to load dataset", zap.String("file", *inputFile), zap.Error(err))
		}
	}

	detector, err := privacy.New(cfg.Detector, log)
	if err != nil {
		log.Fatal("Failed to initialize detector", zap.Error(err))
	}

	engine := policy.NewEngine()
	var applied *policy.RedactionPolicy
	if *policyContext != "" {
		p, err := engine.Load(*policyContext)
		if err != nil {
			log.Fatal("Unknown policy context", zap.Error(err))
		}
		applied = &p
	}

	runner := evaluation.NewRunner(detector, engine, applied, evaluation.Config{
		Workers:        *workers,
		MatchThreshold: *threshold,
		IncludeCases:   *perCase,
	}, log)

	report, err := runner.Run(ctx, cases)
	if err != nil {
		log.Fatal("Evaluation failed", zap.Error(err))
	}

	printReport(report)

	if *outputFile != "" {
		if err := writeReport(*outputFile, report); err != nil {
			log.Fatal("Failed to write report", zap.Error(err))
		}
		log.Info("Report written", zap.String("file", *outputFile))
	}
}

func writeReport(path string, report *evaluation.Report) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func printReport(r *evaluation.Report) {
	fmt.Printf("\n=== PII Redaction Benchmark ===\n")
	if r.PolicyContext != "" {
		fmt.Printf("Policy:             %s\n", r.PolicyContext)
	}
	fmt.Printf("Cases:              %d (%d ok, %d failed)\n", r.TotalCases, r.SuccessfulCases, r.FailedCases)
	fmt.Printf("Labeled Entities:   %d\n", r.TotalEntities)
	fmt.Printf("Precision:          %.4f\n", r.Overall.Precision)
	fmt.Printf("Recall:             %.4f\n", r.Overall.Recall)
	fmt.Printf("F1:                 %.4f\n", r.Overall.F1)
	fmt.Printf("TP / FP / FN:       %d / %d / %d\n", r.Overall.TruePositives, r.Overall.FalsePositives, r.Overall.FalseNegatives)

	fmt.Printf("\n=== Leak Detection ===\n")
	fmt.Printf("Leaked Entities:    %d / %d\n", r.Leaks.TotalLeaked, r.TotalEntities)
	fmt.Printf("Leak Rate:          %.2f%%\n", r.Leaks.LeakRate*100)

	fmt.Printf("\n=== Latency (ms) ===\n")
	fmt.Printf("p50 / p95 / p99:    %.3f / %.3f / %.3f\n", r.Latency.P50, r.Latency.P95, r.Latency.P99)
	fmt.Printf("Mean / Max:         %.3f / %.3f\n", r.Latency.Mean, r.Latency.Max)

	fmt.Printf("\n=== By Entity Type ===\n")
	for _, t := range sortedKeys(r.ByType) {
		s := r.ByType[t]
		fmt.Printf("%-20s P=%.2f R=%.2f F1=%.2f\n", t, s.Precision, s.Recall, s.F1)
	}

	fmt.Printf("\n=== By Category ===\n")
	for _, c := range sortedKeys(r.ByCategory) {
		s := r.ByCategory[c]
		fmt.Printf("%-20s P=%.2f R=%.2f F1=%.2f\n", c, s.Precision, s.Recall, s.F1)
	}
	fmt.Printf("\nCompleted in %s\n", r.Duration)
}

func sortedKeys(m map[string]evaluation.Scores) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
