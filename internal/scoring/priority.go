package scoring

import (
	"math"
)

// Bucket is the discretized urgency tier derived from a priority score.
type Bucket string

const (
	BucketHot  Bucket = "hot"
	BucketWarm Bucket = "warm"
	BucketCold Bucket = "cold"
)

// Thresholds are the score cutoffs for the hot and warm buckets.
type Thresholds struct {
	Hot  float64 `json:"hot" yaml:"hot"`
	Warm float64 `json:"warm" yaml:"warm"`
}

// ScoringParams control how recency and meeting signals turn into points.
type ScoringParams struct {
	RecencyMaxPoints      float64 `json:"recencyMaxPoints" yaml:"recency_max_points"`
	StaleDays             float64 `json:"staleDays" yaml:"stale_days"`
	UpcomingMeetingPoints float64 `json:"upcomingMeetingPoints" yaml:"upcoming_meeting_points"`
	MinScore              float64 `json:"minScore" yaml:"min_score"`
	MaxScore              float64 `json:"maxScore" yaml:"max_score"`
}

// Descriptions are the human-readable labels shown next to each bucket.
type Descriptions struct {
	Hot  string `json:"hot" yaml:"hot"`
	Warm string `json:"warm" yaml:"warm"`
	Cold string `json:"cold" yaml:"cold"`
}

// PriorityConfig is the lead priority configuration snapshot. It is immutable
// for the duration of an evaluation.
type PriorityConfig struct {
	Thresholds   Thresholds    `json:"thresholds" yaml:"thresholds"`
	Scoring      ScoringParams `json:"scoring" yaml:"scoring"`
	Descriptions Descriptions  `json:"descriptions" yaml:"descriptions"`
}

// For returns the description of a bucket.
func (d Descriptions) For(b Bucket) string {
	switch b {
	case BucketHot:
		return d.Hot
	case BucketWarm:
		return d.Warm
	default:
		return d.Cold
	}
}

// Signals are the per-lead inputs to ComputeScore.
// A nil DaysSinceLastActivity means no activity has been recorded.
type Signals struct {
	DaysSinceLastActivity *float64 `json:"days_since_last_activity"`
	HasUpcomingMeeting    bool     `json:"has_upcoming_meeting"`
}

// PriorityResult is a derived score and its bucket. Not persisted by this package.
type PriorityResult struct {
	Score  float64 `json:"score"`
	Bucket Bucket  `json:"bucket"`
}

// DefaultPriorityConfig returns the hardcoded fallback configuration.
func DefaultPriorityConfig() PriorityConfig {
	return PriorityConfig{
		Thresholds: Thresholds{
			Hot:  70,
			Warm: 40,
		},
		Scoring: ScoringParams{
			RecencyMaxPoints:      60,
			StaleDays:             30,
			UpcomingMeetingPoints: 40,
			MinScore:              0,
			MaxScore:              100,
		},
		Descriptions: Descriptions{
			Hot:  "Recent activity and an upcoming meeting: follow up today",
			Warm: "Some recent engagement: keep the conversation going",
			Cold: "No recent engagement: nurture or requalify",
		},
	}
}

// ComputeScore computes the 0–100 urgency score for a lead and buckets it.
// It never panics; out-of-range signals are normalised rather than rejected.
func ComputeScore(signals Signals, cfg PriorityConfig) PriorityResult {
	p := cfg.Scoring

	score := recencyPoints(signals.DaysSinceLastActivity, p) + meetingPoints(signals.HasUpcomingMeeting, p)
	score = clamp(score, p.MinScore, p.MaxScore)

	return PriorityResult{
		Score:  score,
		Bucket: BucketFor(score, cfg.Thresholds),
	}
}

// BucketFor maps a score onto hot/warm/cold using the given thresholds.
func BucketFor(score float64, t Thresholds) Bucket {
	switch {
	case score >= t.Hot:
		return BucketHot
	case score >= t.Warm:
		return BucketWarm
	default:
		return BucketCold
	}
}

// recencyPoints decays linearly from RecencyMaxPoints at 0 days to 0 at StaleDays.
func recencyPoints(days *float64, p ScoringParams) float64 {
	if days == nil || math.IsNaN(*days) || math.IsInf(*days, 1) {
		return 0
	}
	// Non-positive StaleDays is a configuration error: treat every lead as fully stale.
	if p.StaleDays <= 0 {
		return 0
	}
	d := math.Max(0, *days)
	return math.Max(0, p.RecencyMaxPoints*(1-d/p.StaleDays))
}

func meetingPoints(hasMeeting bool, p ScoringParams) float64 {
	if hasMeeting {
		return p.UpcomingMeetingPoints
	}
	return 0
}

// clamp bounds v to [min, max]. When the config is inverted (min > max) the
// lower bound wins, so the result is still deterministic. NaN maps to min.
func clamp(v, min, max float64) float64 {
	if math.IsNaN(v) {
		return min
	}
	if v > max {
		v = max
	}
	if v < min {
		v = min
	}
	return v
}
