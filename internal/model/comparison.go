package model

import "time"

// Comparison is a stored reconciliation run. Listings carry the summary only;
// Result is populated when a single comparison is fetched.
type Comparison struct {
	ID        string            `json:"id" yaml:"id"`
	Label     string            `json:"label,omitempty" yaml:"label,omitempty"`
	SourceA   string            `json:"source_a,omitempty" yaml:"source_a,omitempty"`
	SourceB   string            `json:"source_b,omitempty" yaml:"source_b,omitempty"`
	AsOf      string            `json:"as_of,omitempty" yaml:"as_of,omitempty"`
	Summary   SummaryMetrics    `json:"summary" yaml:"summary"`
	Result    *ComparisonResult `json:"result,omitempty" yaml:"result,omitempty"`
	CreatedAt time.Time         `json:"created_at" yaml:"created_at"`
}
