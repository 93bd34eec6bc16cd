package models

import "time"

// Pattern labels assigned by the history aggregator.
const (
	PatternInsufficientData    = "insufficient data"
	PatternConsecutiveMissing  = "multiple consecutive missing submissions"
	PatternFrequentlyLate      = "frequently submits late"
	PatternLowSubmissionRate   = "low submission rate overall"
	PatternExcellentSubmission = "excellent submission record"
	PatternOccasionalMissing   = "occasional missing submissions"
)

// SubjectTally aggregates one subject's share of a student's history.
type SubjectTally struct {
	SubjectName    string `json:"subject"`
	Total          int    `json:"total"`
	Missing        int    `json:"missing"`
	Submitted      int    `json:"submitted"`
	Returned       int    `json:"returned"`
	MissingPercent int    `json:"missing_percent"`
}

// HistorySummary is the derived pattern summary of an ordered submission history.
type HistorySummary struct {
	Total                 int            `json:"total"`
	ReturnedCount         int            `json:"returned_count"`
	SubmittedCount        int            `json:"submitted_count"`
	MissingCount          int            `json:"missing_count"`
	SubmissionRate        int            `json:"submission_rate"`
	MaxConsecutiveMissing int            `json:"max_consecutive_missing"`
	LateSubmissionCount   int            `json:"late_submission_count"`
	SubjectBreakdown      []SubjectTally `json:"subject_breakdown"`
	ProblemSubject        *SubjectTally  `json:"problem_subject,omitempty"`
	PatternLabel          string         `json:"pattern"`
}

// Breakdown returns the per-subject tallies keyed by subject name.
func (h HistorySummary) Breakdown() map[string]SubjectTally {
	out := make(map[string]SubjectTally, len(h.SubjectBreakdown))
	for _, tally := range h.SubjectBreakdown {
		out[tally.SubjectName] = tally
	}
	return out
}

// RiskBand is the display band derived from a default probability.
type RiskBand string

const (
	RiskBandHigh     RiskBand = "high"
	RiskBandElevated RiskBand = "elevated"
	RiskBandModerate RiskBand = "moderate"
	RiskBandLow      RiskBand = "low"
)

// RiskFilter selects which scored students are returned.
type RiskFilter string

const (
	RiskFilterAll      RiskFilter = "all"
	RiskFilterHighOnly RiskFilter = "high"
)

// Valid returns true when the filter is a supported value.
func (f RiskFilter) Valid() bool {
	switch f {
	case RiskFilterAll, RiskFilterHighOnly:
		return true
	default:
		return false
	}
}

// RiskResult is the defaulter risk assessment for one student.
type RiskResult struct {
	Included           bool     `json:"included"`
	DefaultProbability float64  `json:"default_probability"`
	Band               RiskBand `json:"band"`
	Reasoning          []string `json:"reasoning"`
	PatternLabel       string   `json:"pattern"`
}

// RiskCandidate is one student's input to population scoring.
type RiskCandidate struct {
	StudentID     string           `json:"student_id"`
	StudentName   string           `json:"student_name"`
	CurrentStatus SubmissionStatus `json:"current_status"`
	History       HistorySummary   `json:"history"`
}

// ScoredStudent is a candidate with its computed risk.
type ScoredStudent struct {
	StudentID   string           `json:"student_id"`
	StudentName string           `json:"student_name"`
	Status      SubmissionStatus `json:"current_status"`
	History     HistorySummary   `json:"history"`
	Risk        RiskResult       `json:"risk"`
}

// DefaulterQuery scopes a class-level defaulter listing.
// A zero Threshold selects the configured default.
type DefaulterQuery struct {
	ClassID   string
	SubjectID string
	Threshold int
	Filter    RiskFilter
}

// DefaulterReport is the ranked defaulter population for a class.
type DefaulterReport struct {
	ClassID     string          `json:"class_id"`
	SubjectID   string          `json:"subject_id,omitempty"`
	Threshold   int             `json:"threshold"`
	Filter      RiskFilter      `json:"filter"`
	Students    []ScoredStudent `json:"students"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// AnalyticsSystemMetrics represents system level analytics captured from instrumentation.
type AnalyticsSystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	StatusAnomalies          uint64    `json:"status_anomalies"`
	NotificationsSent        uint64    `json:"notifications_sent"`
	NotificationsFailed      uint64    `json:"notifications_failed"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
