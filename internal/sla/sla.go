package sla

import (
	"fmt"
	"time"
)

// Status is the health of an entity sitting in a pipeline stage.
type Status string

const (
	StatusOK      Status = "ok"
	StatusWarning Status = "warning"
	StatusOverdue Status = "overdue"
)

// Policy is the time budget for one pipeline stage.
// MaxHours == 0 means the stage has no SLA; WarningThresholdHours == 0 means
// there is no warning tier.
type Policy struct {
	StageID               string `json:"stage_id" yaml:"stage_id"`
	MaxHours              int    `json:"max_hours" yaml:"max_hours"`
	WarningThresholdHours int    `json:"warning_threshold_hours" yaml:"warning_threshold_hours"`
}

// Evaluate returns the SLA status of an entity that entered its stage at
// stageEnteredAt, as of now. Overdue is checked before warning, so an entity
// past MaxHours is never reported as warning.
func Evaluate(stageEnteredAt, now time.Time, policy *Policy) Status {
	if policy == nil || policy.MaxHours <= 0 {
		return StatusOK
	}

	hours := HoursInStage(stageEnteredAt, now)
	if hours >= policy.MaxHours {
		return StatusOverdue
	}
	if policy.WarningThresholdHours > 0 && hours >= policy.WarningThresholdHours {
		return StatusWarning
	}
	return StatusOK
}

// HoursInStage returns the whole hours elapsed between enteredAt and now,
// truncated toward zero.
func HoursInStage(enteredAt, now time.Time) int {
	return int(now.Sub(enteredAt) / time.Hour)
}

// ValidatePolicy reports configuration problems the evaluator would otherwise
// silently tolerate.
func ValidatePolicy(p Policy) []string {
	var errs []string
	if p.StageID == "" {
		errs = append(errs, "stage_id is required")
	}
	if p.MaxHours < 0 {
		errs = append(errs, fmt.Sprintf("max_hours must not be negative, got %d", p.MaxHours))
	}
	if p.WarningThresholdHours < 0 {
		errs = append(errs, fmt.Sprintf("warning_threshold_hours must not be negative, got %d", p.WarningThresholdHours))
	}
	if p.MaxHours > 0 && p.WarningThresholdHours > p.MaxHours {
		errs = append(errs, fmt.Sprintf("warning_threshold_hours (%d) must not exceed max_hours (%d)", p.WarningThresholdHours, p.MaxHours))
	}
	if p.MaxHours == 0 && p.WarningThresholdHours > 0 {
		errs = append(errs, "warning_threshold_hours requires a non-zero max_hours")
	}
	return errs
}
