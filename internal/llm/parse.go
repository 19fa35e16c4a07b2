package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedResponse is returned by DecodeObject when the payload is not
// a JSON object or lacks a required field.
var ErrMalformedResponse = errors.New("malformed_response")

// Recommended actions in risk mode.
const (
	ActionAllow = "allow"
	ActionAlert = "alert"
	ActionPurge = "purge"
)

// LeakVerdict is the boolean-mode audit answer.
type LeakVerdict struct {
	Leaked bool   `json:"leaked"`
	Reason string `json:"reason,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Indeterminate reports whether the verdict is a safe default.
func (v LeakVerdict) Indeterminate() bool { return v.Error != "" }

// RiskAnalysis is the risk-mode audit answer.
type RiskAnalysis struct {
	RiskScore         float64  `json:"risk_score"`
	RiskFactors       []string `json:"risk_factors"`
	RecommendedAction string   `json:"recommended_action"`
	Confidence        float64  `json:"confidence"`
	Error             string   `json:"error,omitempty"`
}

// StripCodeFence removes a surrounding ```json or ``` fence.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "```json"); ok {
		s = rest
	} else if rest, ok := strings.CutPrefix(s, "```"); ok {
		s = rest
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// DecodeObject turns a raw response into a JSON object and checks that the
// required keys are present. Maps pass through unchanged.
func DecodeObject(raw any, required ...string) (map[string]any, error) {
	var obj map[string]any

	switch v := raw.(type) {
	case map[string]any:
		obj = v
	case string, []byte:
		text, ok := v.(string)
		if !ok {
			text = string(v.([]byte))
		}
		var decoded any
		if err := json.Unmarshal([]byte(StripCodeFence(text)), &decoded); err != nil {
			return nil, fmt.Errorf("JSON parse error: %w", err)
		}
		obj, _ = decoded.(map[string]any)
	default:
		return nil, fmt.Errorf("%w: unsupported response type %T", ErrMalformedResponse, raw)
	}

	if obj == nil {
		return nil, fmt.Errorf("%w: not a JSON object", ErrMalformedResponse)
	}
	for _, key := range required {
		if _, ok := obj[key]; !ok {
			return nil, fmt.Errorf("%w: missing %q", ErrMalformedResponse, key)
		}
	}
	return obj, nil
}

// ParseLeakResponse applies the shared parsing contract in boolean mode.
// It never fails: unusable input yields a no-leak verdict tagged with Error.
func ParseLeakResponse(raw any) LeakVerdict {
	switch v := raw.(type) {
	case LeakVerdict:
		return v
	case *LeakVerdict:
		if v != nil {
			return *v
		}
	}

	obj, err := DecodeObject(raw, "leaked")
	if err != nil {
		if errors.Is(err, ErrMalformedResponse) {
			return LeakVerdict{Leaked: false, Reason: "Invalid response structure", Error: ErrMalformedResponse.Error()}
		}
		return LeakVerdict{Leaked: false, Reason: "JSON parse error", Error: err.Error()}
	}

	leaked, ok := obj["leaked"].(bool)
	if !ok {
		return LeakVerdict{Leaked: false, Reason: "Invalid response structure", Error: ErrMalformedResponse.Error()}
	}

	verdict := LeakVerdict{Leaked: leaked}
	verdict.Reason, _ = obj["reason"].(string)
	verdict.Error, _ = obj["error"].(string)
	return verdict
}

// ParseRiskResponse applies the shared parsing contract in risk mode.
func ParseRiskResponse(raw any) RiskAnalysis {
	if v, ok := raw.(RiskAnalysis); ok {
		return v
	}

	safe := func(reason string) RiskAnalysis {
		return RiskAnalysis{RiskScore: 0, RiskFactors: []string{}, RecommendedAction: ActionAllow, Error: reason}
	}

	obj, err := DecodeObject(raw, "risk_score", "recommended_action")
	if err != nil {
		return safe(err.Error())
	}

	score, ok := obj["risk_score"].(float64)
	if !ok || score < 0 || score > 1 {
		return safe(ErrMalformedResponse.Error() + ": risk_score out of range")
	}

	action, _ := obj["recommended_action"].(string)
	switch action {
	case ActionAllow, ActionAlert, ActionPurge:
	default:
		return safe(ErrMalformedResponse.Error() + ": unknown recommended_action")
	}

	out := RiskAnalysis{RiskScore: score, RecommendedAction: action, RiskFactors: []string{}}
	if c, ok := obj["confidence"].(float64); ok {
		out.Confidence = c
	}
	if factors, ok := obj["risk_factors"].([]any); ok {
		for _, f := range factors {
			if s, ok := f.(string); ok {
				out.RiskFactors = append(out.RiskFactors, s)
			}
		}
	}
	out.Error, _ = obj["error"].(string)
	return out
}
