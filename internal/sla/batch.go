package sla

import "time"

// PolicySet indexes policies by stage ID.
type PolicySet struct {
	byStage map[string]Policy
}

// NewPolicySet builds a PolicySet. Later policies for the same stage replace
// earlier ones.
func NewPolicySet(policies []Policy) PolicySet {
	m := make(map[string]Policy, len(policies))
	for _, p := range policies {
		m[p.StageID] = p
	}
	return PolicySet{byStage: m}
}

// For returns the policy for a stage, or nil when none is configured.
func (s PolicySet) For(stageID string) *Policy {
	p, ok := s.byStage[stageID]
	if !ok {
		return nil
	}
	return &p
}

// Len returns the number of configured stages.
func (s PolicySet) Len() int { return len(s.byStage) }

// Item is one entity to evaluate in a batch.
type Item struct {
	ID             string    `json:"id"`
	StageID        string    `json:"stage_id"`
	StageEnteredAt time.Time `json:"stage_entered_at"`
}

// Result is the evaluation of one Item.
type Result struct {
	ID             string `json:"id"`
	StageID        string `json:"stage_id"`
	Status         Status `json:"status"`
	HoursInStage   int    `json:"hours_in_stage"`
	HoursRemaining *int   `json:"hours_remaining,omitempty"`
}

// EvaluateAll evaluates every item against the same now, so a batch reads as
// a single point in time.
func EvaluateAll(items []Item, now time.Time, set PolicySet) []Result {
	results := make([]Result, 0, len(items))
	for _, it := range items {
		results = append(results, EvaluateItem(it, now, set.For(it.StageID)))
	}
	return results
}

// EvaluateItem evaluates a single item with its already resolved policy.
func EvaluateItem(it Item, now time.Time, policy *Policy) Result {
	hours := HoursInStage(it.StageEnteredAt, now)
	r := Result{
		ID:           it.ID,
		StageID:      it.StageID,
		Status:       Evaluate(it.StageEnteredAt, now, policy),
		HoursInStage: hours,
	}
	if policy != nil && policy.MaxHours > 0 {
		remaining := policy.MaxHours - hours
		if remaining < 0 {
			remaining = 0
		}
		r.HoursRemaining = &remaining
	}
	return r
}

// Summary counts results per status.
type Summary struct {
	OK      int `json:"ok"`
	Warning int `json:"warning"`
	Overdue int `json:"overdue"`
}

// Summarize tallies a batch of results.
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		switch r.Status {
		case StatusOverdue:
			s.Overdue++
		case StatusWarning:
			s.Warning++
		default:
			s.OK++
		}
	}
	return s
}
