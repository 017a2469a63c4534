package model

// Field names a compared attribute of a period.
type Field string

const (
	FieldCompany   Field = "company"
	FieldStartDate Field = "start_date"
	FieldEndDate   Field = "end_date"
	FieldDuration  Field = "duration"
)

// Fields lists the compared fields in report order.
var Fields = []Field{FieldCompany, FieldStartDate, FieldEndDate, FieldDuration}

// Severity grades a difference or conflict.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Tier is the qualitative bucket of a match's composite score.
type Tier string

const (
	TierExact  Tier = "exact"
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// Difference describes one field that disagrees between matched periods.
// Delta is a day count for date and duration fields and a similarity ratio
// for the company field.
type Difference struct {
	Field    Field    `json:"field" yaml:"field"`
	ValueA   string   `json:"value_a" yaml:"value_a"`
	ValueB   string   `json:"value_b" yaml:"value_b"`
	Severity Severity `json:"severity" yaml:"severity"`
	Delta    float64  `json:"delta" yaml:"delta"`
	Reason   string   `json:"reason" yaml:"reason"`
}

// ConflictKind classifies a conflict.
type ConflictKind string

const (
	ConflictCompany  ConflictKind = "company_conflict"
	ConflictDate     ConflictKind = "date_conflict"
	ConflictDuration ConflictKind = "duration_conflict"
)

// Conflict is a difference severe enough that the pairing itself is suspect.
type Conflict struct {
	Kind        ConflictKind `json:"kind" yaml:"kind"`
	Field       Field        `json:"field" yaml:"field"`
	Severity    Severity     `json:"severity" yaml:"severity"`
	Description string       `json:"description" yaml:"description"`
}

// DisplayPeriod is the report-ready projection of a normalized period.
type DisplayPeriod struct {
	Index            int           `json:"index" yaml:"index"`
	Source           Source        `json:"source" yaml:"source"`
	Company          string        `json:"company" yaml:"company"`
	CanonicalCompany string        `json:"canonical_company" yaml:"canonical_company"`
	Role             string        `json:"role,omitempty" yaml:"role,omitempty"`
	StartDate        string        `json:"start_date,omitempty" yaml:"start_date,omitempty"`
	EndDate          string        `json:"end_date,omitempty" yaml:"end_date,omitempty"`
	Ongoing          bool          `json:"ongoing,omitempty" yaml:"ongoing,omitempty"`
	DurationDays     *int          `json:"duration_days,omitempty" yaml:"duration_days,omitempty"`
	QualityFlags     []QualityFlag `json:"quality_flags,omitempty" yaml:"quality_flags,omitempty"`
	Reason           string        `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Match is an accepted pairing between a period from each source.
type Match struct {
	PeriodAIndex   int              `json:"period_a_index" yaml:"period_a_index"`
	PeriodBIndex   int              `json:"period_b_index" yaml:"period_b_index"`
	PeriodA        DisplayPeriod    `json:"period_a" yaml:"period_a"`
	PeriodB        DisplayPeriod    `json:"period_b" yaml:"period_b"`
	Scores         SimilarityResult `json:"scores" yaml:"scores"`
	CompositeScore float64          `json:"composite_score" yaml:"composite_score"`
	Tier           Tier             `json:"match_tier" yaml:"match_tier"`
	Partial        bool             `json:"partial" yaml:"partial"`
	Confidence     float64          `json:"confidence" yaml:"confidence"`
	Differences    []Difference     `json:"differences" yaml:"differences"`
	Conflicts      []Conflict       `json:"conflicts" yaml:"conflicts"`
	IsExactMatch   bool             `json:"is_exact_match" yaml:"is_exact_match"`
}

// OverlapFinding records two periods of one source whose ranges intersect.
type OverlapFinding struct {
	Source   Source `json:"source" yaml:"source"`
	IndexA   int    `json:"index_a" yaml:"index_a"`
	IndexB   int    `json:"index_b" yaml:"index_b"`
	CompanyA string `json:"company_a" yaml:"company_a"`
	CompanyB string `json:"company_b" yaml:"company_b"`
	Start    string `json:"start" yaml:"start"`
	End      string `json:"end" yaml:"end"`
	Days     int    `json:"days" yaml:"days"`
}

// GapFinding records an uncovered span between chronologically adjacent
// periods of one source.
type GapFinding struct {
	Source      Source `json:"source" yaml:"source"`
	BeforeIndex int    `json:"before_index" yaml:"before_index"`
	AfterIndex  int    `json:"after_index" yaml:"after_index"`
	Start       string `json:"start" yaml:"start"`
	End         string `json:"end" yaml:"end"`
	Days        int    `json:"days" yaml:"days"`
}

// SummaryMetrics aggregates a comparison. Rates, QualityScore, Confidence and
// DataCompleteness are percentages (0-100); AverageScore is a mean composite
// score (0-1). Every ratio is 0 when its denominator is 0.
type SummaryMetrics struct {
	TotalA              int           `json:"total_a" yaml:"total_a"`
	TotalB              int           `json:"total_b" yaml:"total_b"`
	Matched             int           `json:"matched" yaml:"matched"`
	PartialMatches      int           `json:"partial_matches" yaml:"partial_matches"`
	ExactMatches        int           `json:"exact_matches" yaml:"exact_matches"`
	UnmatchedA          int           `json:"unmatched_a" yaml:"unmatched_a"`
	UnmatchedB          int           `json:"unmatched_b" yaml:"unmatched_b"`
	MatchRate           float64       `json:"match_rate" yaml:"match_rate"`
	CoverageB           float64       `json:"coverage_b" yaml:"coverage_b"`
	ExactMatchRate      float64       `json:"exact_match_rate" yaml:"exact_match_rate"`
	AverageScore        float64       `json:"average_score" yaml:"average_score"`
	QualityScore        float64       `json:"quality_score" yaml:"quality_score"`
	Confidence          float64       `json:"confidence" yaml:"confidence"`
	DataCompleteness    float64       `json:"data_completeness" yaml:"data_completeness"`
	TotalDaysA          int           `json:"total_days_a" yaml:"total_days_a"`
	TotalDaysB          int           `json:"total_days_b" yaml:"total_days_b"`
	TotalDaysDifference int           `json:"total_days_difference" yaml:"total_days_difference"`
	DifferencesByField  map[Field]int `json:"differences_by_field" yaml:"differences_by_field"`
	Conflicts           int           `json:"conflicts" yaml:"conflicts"`
	OverlapsA           int           `json:"overlaps_a" yaml:"overlaps_a"`
	OverlapsB           int           `json:"overlaps_b" yaml:"overlaps_b"`
	GapsA               int           `json:"gaps_a" yaml:"gaps_a"`
	GapsB               int           `json:"gaps_b" yaml:"gaps_b"`
}

// ComparisonResult is the full output of one reconciliation.
type ComparisonResult struct {
	Summary    SummaryMetrics   `json:"summary" yaml:"summary"`
	Matches    []Match          `json:"matches" yaml:"matches"`
	UnmatchedA []DisplayPeriod  `json:"unmatched_a" yaml:"unmatched_a"`
	UnmatchedB []DisplayPeriod  `json:"unmatched_b" yaml:"unmatched_b"`
	OverlapsA  []OverlapFinding `json:"overlaps_a" yaml:"overlaps_a"`
	OverlapsB  []OverlapFinding `json:"overlaps_b" yaml:"overlaps_b"`
	GapsA      []GapFinding     `json:"gaps_a" yaml:"gaps_a"`
	GapsB      []GapFinding     `json:"gaps_b" yaml:"gaps_b"`
}
