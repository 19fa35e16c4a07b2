package redaction

import (
	"errors"
	"fmt"
	"time"

	"github.com/raaihank/redact-sentinel/internal/policy"
)

var (
	// ErrStorageUnavailable is returned when the token store cannot be reached
	// on the synchronous redact or restore path.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrPolicyViolation matches any *PolicyViolationError.
	ErrPolicyViolation = errors.New("restoration not allowed")
)

// PolicyViolationError names the policy context that blocked a restore.
type PolicyViolationError struct {
	Context string
	Token   string
}

func (e *PolicyViolationError) Error() string {
	return fmt.Sprintf("Restoration not allowed for policy context: %s", e.Context)
}

// Is lets errors.Is match ErrPolicyViolation.
func (e *PolicyViolationError) Is(target error) bool {
	return target == ErrPolicyViolation
}

// Config contains redaction settings
type Config struct {
	TokenTTL time.Duration
}

// Entity describes one applied redaction without its original value.
type Entity struct {
	Type  string  `json:"entity_type"`
	Token string  `json:"token"`
	Score float64 `json:"score"`
}

// Result is the outcome of RedactAndStore.
type Result struct {
	RedactedText  string
	Scores        []float64
	CreatedTokens []string
	Entities      []Entity
	Policy        *policy.RedactionPolicy
}

// RestoreResult is the outcome of Restore.
type RestoreResult struct {
	RestoredText  string   `json:"restored_text"`
	TokensFound   int      `json:"tokens_found"`
	TokensMissing []string `json:"tokens_missing"`
	Warnings      []string `json:"warnings"`
}
