package evaluation

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raaihank/redact-sentinel/internal/config"
	"github.com/raaihank/redact-sentinel/internal/logger"
	"github.com/raaihank/redact-sentinel/internal/policy"
	"github.com/raaihank/redact-sentinel/internal/privacy"
)

// substringAnalyzer reports every configured substring it finds.
type substringAnalyzer struct {
	found map[string]string // text -> entity type
	err   error
}

func (a substringAnalyzer) Analyze(_ context.Context, text string) ([]privacy.Detection, error) {
	if a.err != nil {
		return nil, a.err
	}
	var out []privacy.Detection
	for s, typ := range a.found {
		if i := strings.Index(text, s); i >= 0 {
			out = append(out, privacy.Detection{Type: typ, Start: i, End: i + len(s), Score: 0.9})
		}
	}
	return out, nil
}

func TestOverlap(t *testing.T) {
	assert.Equal(t, 1.0, Overlap(Span{Start: 0, End: 10}, Span{Start: 0, End: 10}))
	assert.Equal(t, 0.0, Overlap(Span{Start: 0, End: 5}, Span{Start: 5, End: 10}))
	assert.Equal(t, 0.5, Overlap(Span{Start: 0, End: 10}, Span{Start: 5, End: 10}))
	assert.Equal(t, 0.0, Overlap(Span{Start: 3, End: 3}, Span{Start: 3, End: 3}))
}

func TestMatchSpans(t *testing.T) {
	truth := []Span{
		{Type: "EMAIL_ADDRESS", Start: 14, End: 34},
		{Type: "PHONE_NUMBER", Start: 50, End: 62},
	}
	preds := []Span{
		{Type: "EMAIL_ADDRESS", Start: 14, End: 34},
		{Type: "PERSON", Start: 0, End: 4},
		{Type: "PHONE_NUMBER", Start: 55, End: 62}, // overlap 7/12 is a hit
	}

	tp, fp, fn := MatchSpans(preds, truth, DefaultMatchThreshold)
	require.Len(t, tp, 2)
	assert.Equal(t, "EMAIL_ADDRESS", tp[0].GroundTruth.Type)
	assert.InDelta(t, 7.0/12.0, tp[1].Overlap, 1e-9)
	require.Len(t, fp, 1)
	assert.Equal(t, "PERSON", fp[0].Type)
	assert.Empty(t, fn)

	// a ground truth span is consumed by its first match
	tp, fp, fn = MatchSpans([]Span{truth[0], truth[0]}, truth[:1], DefaultMatchThreshold)
	assert.Len(t, tp, 1)
	assert.Len(t, fp, 1)
	assert.Empty(t, fn)

	_, _, fn = MatchSpans(nil, truth, DefaultMatchThreshold)
	assert.Len(t, fn, 2)
}

func TestComputeScores(t *testing.T) {
	s := ComputeScores(2, 1, 1)
	assert.Equal(t, 0.6667, s.Precision)
	assert.Equal(t, 0.6667, s.Recall)
	assert.Equal(t, 0.6667, s.F1)

	assert.Equal(t, Scores{}, ComputeScores(0, 0, 0))
}

func TestLatencies(t *testing.T) {
	assert.Equal(t, LatencyStats{}, Latencies(nil))

	var ds []time.Duration
	for _, ms := range []int{500, 800, 1200, 900, 1500, 2100, 700, 1000, 600, 1800} {
		ds = append(ds, time.Duration(ms)*time.Millisecond)
	}
	stats := Latencies(ds)
	assert.Equal(t, 950.0, stats.P50)
	assert.Equal(t, 1965.0, stats.P95)
	assert.Equal(t, 1110.0, stats.Mean)
	assert.Equal(t, 2100.0, stats.Max)
	assert.Equal(t, 500.0, stats.Min)
}

func TestBuiltinCasesOffsets(t *testing.T) {
	cases := BuiltinCases()
	require.NotEmpty(t, cases)
	for _, c := range cases {
		require.NoError(t, validateCase(c))
		for _, s := range c.GroundTruth {
			assert.Equal(t, s.Text, c.Text[s.Start:s.End], c.ID)
		}
	}
}

func TestLoadFileFormats(t *testing.T) {
	dir := t.TempDir()
	want := []Case{
		labeled("c1", "standard", "mail bob@test.com now", entity{"EMAIL_ADDRESS", "bob@test.com"}),
		labeled("c2", "negative", "nothing here"),
	}

	t.Run("csv", func(t *testing.T) {
		path := filepath.Join(dir, "cases.csv")
		f, err := os.Create(path)
		require.NoError(t, err)
		w := csv.NewWriter(f)
		require.NoError(t, w.WriteAll([][]string{
			{"text", "id", "category", "ground_truth"},
			{"mail bob@test.com now", "c1", "standard", `[{"type":"EMAIL_ADDRESS","start":5,"end":17,"text":"bob@test.com"}]`},
			{"nothing here", "c2", "negative", ""},
		}))
		require.NoError(t, f.Close())

		got, err := LoadFile(path)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, want[0].GroundTruth, got[0].GroundTruth)
		assert.Equal(t, "negative", got[1].Category)
		assert.Empty(t, got[1].GroundTruth)
	})

	t.Run("json array", func(t *testing.T) {
		path := filepath.Join(dir, "cases.json")
		require.NoError(t, os.WriteFile(path, []byte(`[
			{"id":"c1","text":"mail bob@test.com now","category":"standard",
			 "ground_truth":[{"type":"EMAIL_ADDRESS","start":5,"end":17,"text":"bob@test.com"}]}
		]`), 0o600))

		got, err := LoadFile(path)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, want[0].GroundTruth, got[0].GroundTruth)
	})

	t.Run("json lines", func(t *testing.T) {
		path := filepath.Join(dir, "cases.jsonl")
		require.NoError(t, os.WriteFile(path, []byte(
			`{"id":"c1","text":"a","ground_truth":[]}`+"\n"+`{"id":"c2","text":"b","ground_truth":[]}`+"\n"), 0o600))

		got, err := LoadFile(path)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("parquet", func(t *testing.T) {
		path := filepath.Join(dir, "cases.parquet")
		f, err := os.Create(path)
		require.NoError(t, err)
		require.NoError(t, WriteParquet(f, want))
		require.NoError(t, f.Close())

		got, err := LoadFile(path)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "c1", got[0].ID)
		assert.Equal(t, want[0].GroundTruth, got[0].GroundTruth)
		assert.Empty(t, got[1].GroundTruth)
	})

	t.Run("span out of range", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(path, []byte(
			`[{"id":"x","text":"short","ground_truth":[{"type":"PERSON","start":2,"end":40}]}]`), 0o600))

		_, err := LoadFile(path)
		assert.ErrorContains(t, err, "out of range")
	})
}

func TestRunnerReport(t *testing.T) {
	cases := []Case{
		labeled("c1", "standard", "mail bob@test.com or call 555-987-6543",
			entity{"EMAIL_ADDRESS", "bob@test.com"}, entity{"PHONE_NUMBER", "555-987-6543"}),
		labeled("c2", "negative", "Project Apollo ships soon"),
	}
	analyzer := substringAnalyzer{found: map[string]string{
		"bob@test.com":   "EMAIL_ADDRESS",
		"Project Apollo": "PERSON",
	}}

	runner := NewRunner(analyzer, policy.NewEngine(), nil, Config{Workers: 2, IncludeCases: true}, logger.NewNop())
	report, err := runner.Run(context.Background(), cases)
	require.NoError(t, err)

	assert.Equal(t, 2, report.TotalCases)
	assert.Equal(t, 2, report.SuccessfulCases)
	assert.Equal(t, 2, report.TotalEntities)
	assert.Equal(t, 1, report.Overall.TruePositives)
	assert.Equal(t, 1, report.Overall.FalsePositives)
	assert.Equal(t, 1, report.Overall.FalseNegatives)
	assert.Equal(t, 0.5, report.Overall.Precision)

	assert.Equal(t, 1, report.ByType["EMAIL_ADDRESS"].TruePositives)
	assert.Equal(t, 1, report.ByType["PHONE_NUMBER"].FalseNegatives)
	assert.Equal(t, 1, report.ByType["PERSON"].FalsePositives)
	assert.Equal(t, 1, report.ByCategory["negative"].FalsePositives)

	assert.Equal(t, 1, report.Leaks.TotalLeaked)
	assert.Equal(t, 0.5, report.Leaks.LeakRate)
	require.Len(t, report.Cases, 2)
	assert.Equal(t, "555-987-6543", report.Cases[0].Leaked[0].Text)
}

func TestRunnerAppliesPolicy(t *testing.T) {
	cases := []Case{labeled("c1", "standard", "mail bob@test.com", entity{"EMAIL_ADDRESS", "bob@test.com"})}
	analyzer := substringAnalyzer{found: map[string]string{"bob@test.com": "EMAIL_ADDRESS"}}

	p := policy.RedactionPolicy{Context: "names-only", EnabledEntities: []string{"PERSON"}}
	report, err := NewRunner(analyzer, policy.NewEngine(), &p, Config{}, logger.NewNop()).Run(context.Background(), cases)
	require.NoError(t, err)

	assert.Equal(t, "names-only", report.PolicyContext)
	assert.Equal(t, 0, report.Overall.TruePositives)
	assert.Equal(t, 1, report.Leaks.TotalLeaked)
}

func TestRunnerCountsFailedCases(t *testing.T) {
	analyzer := substringAnalyzer{err: errors.New("detector down")}
	report, err := NewRunner(analyzer, policy.NewEngine(), nil, Config{}, logger.NewNop()).
		Run(context.Background(), BuiltinCases()[:3])
	require.NoError(t, err)

	assert.Equal(t, 3, report.FailedCases)
	assert.Equal(t, 0, report.SuccessfulCases)
	assert.Nil(t, report.Cases)
}

func TestRunnerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(substringAnalyzer{}, policy.NewEngine(), nil, Config{Workers: 1}, logger.NewNop()).
		Run(ctx, BuiltinCases())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuiltinCasesWithRegexDetector(t *testing.T) {
	detector, err := privacy.New(config.DetectorConfig{Recognizers: []string{"all"}}, logger.NewNop())
	require.NoError(t, err)

	report, err := NewRunner(detector, policy.NewEngine(), nil, Config{}, logger.NewNop()).
		Run(context.Background(), BuiltinCases())
	require.NoError(t, err)

	assert.Equal(t, len(BuiltinCases()), report.SuccessfulCases)
	assert.Greater(t, report.ByType["EMAIL_ADDRESS"].TruePositives, 0)
	assert.Greater(t, report.Overall.Recall, 0.0)
}
