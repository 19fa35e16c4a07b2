package evaluation

import (
	"path/filepath"
	"strings"
	"time"
)

// DefaultMatchThreshold is the minimum Jaccard overlap for a prediction to
// count as a hit.
const DefaultMatchThreshold = 0.5

// Span is one labeled or predicted entity. Offsets are byte offsets into
// the case text.
type Span struct {
	Type  string  `json:"type"`
	Start int     `json:"start"`
	End   int     `json:"end"`
	Text  string  `json:"text,omitempty"`
	Score float64 `json:"score,omitempty"`
}

// Case is a single labeled benchmark input
type Case struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Category    string `json:"category"`
	GroundTruth []Span `json:"ground_truth"`
}

// datasetRow is the flat on-disk shape used by CSV and Parquet files. The
// ground truth column holds a JSON array of spans.
type datasetRow struct {
	ID          string `csv:"id" parquet:"id"`
	Text        string `csv:"text" parquet:"text"`
	Category    string `csv:"category" parquet:"category"`
	GroundTruth string `csv:"ground_truth" parquet:"ground_truth"`
}

// Scores holds precision, recall and F1 with their raw counts
type Scores struct {
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
	F1             float64 `json:"f1"`
	TruePositives  int     `json:"true_positives"`
	FalsePositives int     `json:"false_positives"`
	FalseNegatives int     `json:"false_negatives"`
}

// LatencyStats summarizes per-case detection latency in milliseconds
type LatencyStats struct {
	P50  float64 `json:"p50_ms"`
	P95  float64 `json:"p95_ms"`
	P99  float64 `json:"p99_ms"`
	Mean float64 `json:"mean_ms"`
	Max  float64 `json:"max_ms"`
	Min  float64 `json:"min_ms"`
}

// CaseResult is the outcome for one case
type CaseResult struct {
	ID             string        `json:"id"`
	Category       string        `json:"category"`
	Success        bool          `json:"success"`
	Error          string        `json:"error,omitempty"`
	Predictions    []Span        `json:"predictions,omitempty"`
	TruePositives  []Match       `json:"-"`
	FalsePositives []Span        `json:"-"`
	FalseNegatives []Span        `json:"false_negatives,omitempty"`
	Leaked         []Span        `json:"leaked_entities,omitempty"`
	Latency        time.Duration `json:"latency"`
}

// Match pairs a prediction with the ground truth span it hit
type Match struct {
	Prediction  Span    `json:"prediction"`
	GroundTruth Span    `json:"ground_truth"`
	Overlap     float64 `json:"overlap"`
}

// LeakStats counts labeled entities still present after redaction
type LeakStats struct {
	TotalLeaked int     `json:"total_leaked_entities"`
	LeakRate    float64 `json:"leak_rate"`
}

// Report is the full benchmark output
type Report struct {
	TotalCases      int               `json:"total_cases"`
	SuccessfulCases int               `json:"successful_cases"`
	FailedCases     int               `json:"failed_cases"`
	TotalEntities   int               `json:"total_entities"`
	PolicyContext   string            `json:"policy_context,omitempty"`
	Overall         Scores            `json:"overall_metrics"`
	ByType          map[string]Scores `json:"entity_type_metrics"`
	ByCategory      map[string]Scores `json:"category_metrics"`
	Leaks           LeakStats         `json:"leak_detection"`
	Latency         LatencyStats      `json:"latency_metrics"`
	Duration        time.Duration     `json:"duration"`
	Cases           []CaseResult      `json:"case_results,omitempty"`
}

// Config contains benchmark runner settings
type Config struct {
	Workers        int     `yaml:"workers" mapstructure:"workers"`
	MatchThreshold float64 `yaml:"match_threshold" mapstructure:"match_threshold"`
	IncludeCases   bool    `yaml:"include_cases" mapstructure:"include_cases"`
}

// FileFormat represents supported dataset formats
type FileFormat string

const (
	FormatCSV     FileFormat = "csv"
	FormatParquet FileFormat = "parquet"
	FormatJSON    FileFormat = "json"
)

// DetectFileFormat detects file format from extension
func DetectFileFormat(filename string) FileFormat {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".parquet":
		return FormatParquet
	case ".json", ".jsonl":
		return FormatJSON
	default:
		return FormatCSV
	}
}
