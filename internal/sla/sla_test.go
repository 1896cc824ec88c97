package sla

import (
	"strings"
	"testing"
	"time"
)

var base = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func TestEvaluateNoPolicy(t *testing.T) {
	if got := Evaluate(base, base.Add(1000*time.Hour), nil); got != StatusOK {
		t.Errorf("nil policy: expected ok, got %s", got)
	}
}

func TestEvaluateZeroMaxHours(t *testing.T) {
	for _, warn := range []int{0, 1, 24, 500} {
		p := &Policy{StageID: "nda", MaxHours: 0, WarningThresholdHours: warn}
		if got := Evaluate(base, base.Add(100*time.Hour), p); got != StatusOK {
			t.Errorf("warning=%d: expected ok with no SLA, got %s", warn, got)
		}
	}
}

func TestEvaluateThresholds(t *testing.T) {
	p := &Policy{StageID: "analysis", MaxHours: 48, WarningThresholdHours: 24}

	tests := []struct {
		name    string
		elapsed time.Duration
		want    Status
	}{
		{"10h", 10 * time.Hour, StatusOK},
		{"just under warning", 23*time.Hour + 59*time.Minute, StatusOK},
		{"at warning", 24 * time.Hour, StatusWarning},
		{"25h", 25 * time.Hour, StatusWarning},
		{"just under max", 47*time.Hour + 59*time.Minute, StatusWarning},
		{"at max", 48 * time.Hour, StatusOverdue},
		{"50h", 50 * time.Hour, StatusOverdue},
		{"entered in the future", -5 * time.Hour, StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Evaluate(base, base.Add(tt.elapsed), p); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEvaluateOverdueTakesPrecedence(t *testing.T) {
	// Past both thresholds, including a misconfigured warning above max.
	for _, p := range []*Policy{
		{StageID: "a", MaxHours: 10, WarningThresholdHours: 5},
		{StageID: "b", MaxHours: 10, WarningThresholdHours: 20},
	} {
		if got := Evaluate(base, base.Add(30*time.Hour), p); got != StatusOverdue {
			t.Errorf("policy %+v: expected overdue, got %s", p, got)
		}
	}
}

func TestEvaluateNoWarningTier(t *testing.T) {
	p := &Policy{StageID: "closing", MaxHours: 24}
	if got := Evaluate(base, base.Add(23*time.Hour), p); got != StatusOK {
		t.Errorf("expected ok without warning tier, got %s", got)
	}
	if got := Evaluate(base, base.Add(24*time.Hour), p); got != StatusOverdue {
		t.Errorf("expected overdue at max, got %s", got)
	}
}

func TestHoursInStageTruncates(t *testing.T) {
	if h := HoursInStage(base, base.Add(5*time.Hour+59*time.Minute)); h != 5 {
		t.Errorf("expected 5, got %d", h)
	}
	if h := HoursInStage(base, base.Add(-90*time.Minute)); h != -1 {
		t.Errorf("expected -1, got %d", h)
	}
}

func TestValidatePolicy(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		want   []string
	}{
		{"valid", Policy{StageID: "nda", MaxHours: 48, WarningThresholdHours: 24}, nil},
		{"no sla", Policy{StageID: "nda"}, nil},
		{"warning equals max", Policy{StageID: "nda", MaxHours: 24, WarningThresholdHours: 24}, nil},
		{"warning above max", Policy{StageID: "nda", MaxHours: 24, WarningThresholdHours: 30}, []string{"must not exceed max_hours"}},
		{"warning without max", Policy{StageID: "nda", WarningThresholdHours: 30}, []string{"requires a non-zero max_hours"}},
		{"negatives", Policy{StageID: "nda", MaxHours: -1, WarningThresholdHours: -2}, []string{"max_hours must not be negative", "warning_threshold_hours must not be negative"}},
		{"missing stage", Policy{MaxHours: 10}, []string{"stage_id is required"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidatePolicy(tt.policy)
			if len(errs) != len(tt.want) {
				t.Fatalf("expected %d errors, got %v", len(tt.want), errs)
			}
			for i, frag := range tt.want {
				if !strings.Contains(errs[i], frag) {
					t.Errorf("error %d: %q does not contain %q", i, errs[i], frag)
				}
			}
		})
	}
}
