package processor

import (
	"fmt"
	"sort"
	"strings"
)

// Priority ranks suggestions; higher values sort first.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return fmt.Sprintf("Priority(%d)", int(p))
	}
}

// MarshalText encodes the priority by name.
func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText accepts a priority name.
func (p *Priority) UnmarshalText(b []byte) error {
	for _, candidate := range []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical} {
		if strings.EqualFold(string(b), candidate.String()) {
			*p = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown priority %q", b)
}

// Category groups suggestions by the part of the chain they touch.
type Category string

const (
	CategoryLoudness Category = "loudness"
	CategoryEQ       Category = "eq"
	CategoryStereo   Category = "stereo"
	CategoryDynamics Category = "dynamics"
	CategoryNoise    Category = "noise"
	CategoryPreset   Category = "preset"
)

// Suggestion is a piece of advice produced by a deterministic rule. It is
// never applied automatically.
type Suggestion struct {
	Category   Category           `json:"category"`
	Suggestion string             `json:"suggestion"`
	Reasoning  string             `json:"reasoning"`
	Confidence float64            `json:"confidence"` // 0-1, fixed per rule
	Priority   Priority           `json:"priority"`
	Parameters map[string]float64 `json:"parameters,omitempty"`
	Impact     float64            `json:"impact"` // estimated 0-1
	RuleID     string             `json:"rule_id"`
}

// SortSuggestions orders suggestions by descending priority, then impact.
// The sort is stable so rule order breaks remaining ties.
func SortSuggestions(s []Suggestion) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].Priority != s[j].Priority {
			return s[i].Priority > s[j].Priority
		}
		return s[i].Impact > s[j].Impact
	})
}

// MeanConfidence averages the confidences of s, returning fallback when s is empty.
func MeanConfidence(s []Suggestion, fallback float64) float64 {
	if len(s) == 0 {
		return fallback
	}
	var sum float64
	for _, sg := range s {
		sum += sg.Confidence
	}
	return sum / float64(len(s))
}
