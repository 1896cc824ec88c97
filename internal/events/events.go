package events

import "time"

type DealCreatedEvent struct {
	DealID string `json:"deal_id"`
	Title  string `json:"title"`
	Stage  string `json:"stage"`
	Owner  string `json:"owner,omitempty"`
}

type StageMovedEvent struct {
	DealID    string    `json:"deal_id"`
	FromStage string    `json:"from_stage"`
	ToStage   string    `json:"to_stage"`
	MovedBy   string    `json:"moved_by"`
	MovedAt   time.Time `json:"moved_at"`
}

type TransitionDeniedEvent struct {
	DealID      string `json:"deal_id"`
	FromStage   string `json:"from_stage"`
	ToStage     string `json:"to_stage"`
	RequestedBy string `json:"requested_by"`
}

type SLAChangedEvent struct {
	DealID         string `json:"deal_id"`
	Stage          string `json:"stage"`
	Previous       string `json:"previous"`
	Current        string `json:"current"`
	HoursInStage   int    `json:"hours_in_stage"`
	HoursRemaining *int   `json:"hours_remaining,omitempty"`
}

type SLASweepEvent struct {
	OK        int       `json:"ok"`
	Warning   int       `json:"warning"`
	Overdue   int       `json:"overdue"`
	Changed   int       `json:"changed"`
	Timestamp time.Time `json:"timestamp"`
}

type LeadCreatedEvent struct {
	LeadID string `json:"lead_id"`
	Name   string `json:"name"`
	Owner  string `json:"owner,omitempty"`
}

type LeadBucketChangedEvent struct {
	LeadID   string  `json:"lead_id"`
	Previous string  `json:"previous,omitempty"`
	Current  string  `json:"current"`
	Score    float64 `json:"score"`
}

type PriorityConfigUpdatedEvent struct {
	UpdatedBy string    `json:"updated_by"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LeadActivityEvent is published by other systems when a lead is touched.
// Zero times leave the stored value unchanged.
type LeadActivityEvent struct {
	LeadID        string     `json:"lead_id"`
	OccurredAt    time.Time  `json:"occurred_at"`
	NextMeetingAt *time.Time `json:"next_meeting_at,omitempty"`
}
