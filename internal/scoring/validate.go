package scoring

import (
	"fmt"
	"strings"
)

// ValidationResult lists every invariant violation found in a config.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// ValidateConfig checks all PriorityConfig invariants and returns the full list
// of violations instead of stopping at the first one.
func ValidateConfig(cfg PriorityConfig) ValidationResult {
	var errs []string

	t := cfg.Thresholds
	if t.Hot <= t.Warm {
		errs = append(errs, fmt.Sprintf("hot threshold (%g) must be greater than warm threshold (%g)", t.Hot, t.Warm))
	}
	errs = appendRange(errs, "hot threshold", t.Hot)
	errs = appendRange(errs, "warm threshold", t.Warm)

	p := cfg.Scoring
	errs = appendRange(errs, "recencyMaxPoints", p.RecencyMaxPoints)
	errs = appendRange(errs, "upcomingMeetingPoints", p.UpcomingMeetingPoints)
	if !(p.StaleDays > 0) {
		errs = append(errs, fmt.Sprintf("staleDays must be greater than 0, got %g", p.StaleDays))
	}
	errs = appendRange(errs, "minScore", p.MinScore)
	errs = appendRange(errs, "maxScore", p.MaxScore)
	if p.MinScore >= p.MaxScore {
		errs = append(errs, fmt.Sprintf("minScore (%g) must be less than maxScore (%g)", p.MinScore, p.MaxScore))
	}

	d := cfg.Descriptions
	for _, f := range []struct {
		name  string
		value string
	}{
		{"hot", d.Hot},
		{"warm", d.Warm},
		{"cold", d.Cold},
	} {
		if strings.TrimSpace(f.value) == "" {
			errs = append(errs, fmt.Sprintf("%s description must not be empty", f.name))
		}
	}

	if errs == nil {
		errs = []string{}
	}
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func appendRange(errs []string, name string, v float64) []string {
	if !(v >= 0 && v <= 100) {
		return append(errs, fmt.Sprintf("%s must be between 0 and 100, got %g", name, v))
	}
	return errs
}
