package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/pipedesk/internal/scoring"
	"github.com/MikeSquared-Agency/pipedesk/internal/sla"
	"github.com/MikeSquared-Agency/pipedesk/internal/transition"
)

// SettingPriorityConfig is the settings key holding the lead priority config.
const SettingPriorityConfig = "lead_priority_config"

// ErrTransitionDenied is returned by MoveDeal when the allow func rejects the move.
var ErrTransitionDenied = errors.New("transition not allowed")

// ErrDealClosed is returned by MoveDeal for a closed deal.
var ErrDealClosed = errors.New("deal is closed")

type Stage struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Position int    `json:"position" yaml:"position"`
}

type Lead struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	Company        string     `json:"company,omitempty"`
	Owner          string     `json:"owner"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`
	NextMeetingAt  *time.Time `json:"next_meeting_at,omitempty"`

	PriorityScore  *float64 `json:"priority_score,omitempty"`
	PriorityBucket string   `json:"priority_bucket,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Signals derives scoring inputs from the lead as of now. Days since activity
// are whole days; a meeting counts as upcoming only when it is after now.
func (l *Lead) Signals(now time.Time) scoring.Signals {
	var s scoring.Signals
	if l.LastActivityAt != nil {
		days := float64(int64(now.Sub(*l.LastActivityAt) / (24 * time.Hour)))
		s.DaysSinceLastActivity = &days
	}
	if l.NextMeetingAt != nil && l.NextMeetingAt.After(now) {
		s.HasUpcomingMeeting = true
	}
	return s
}

type LeadFilter struct {
	Bucket  string
	Owner   string
	Limit   int
	Offset  int
	// ByID orders by id and returns only leads after AfterID, ignoring
	// Offset. Pages stay stable while scores are rewritten.
	ByID    bool
	AfterID uuid.UUID
}

type Deal struct {
	ID             uuid.UUID  `json:"id"`
	Title          string     `json:"title"`
	LeadID         *uuid.UUID `json:"lead_id,omitempty"`
	Owner          string     `json:"owner"`
	CurrentStage   string     `json:"current_stage"`
	StageEnteredAt time.Time  `json:"stage_entered_at"`
	SLAStatus      sla.Status `json:"sla_status"`
	Closed         bool       `json:"closed"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type DealFilter struct {
	Stage         string
	Owner         string
	IncludeClosed bool
	Limit         int
	Offset        int
}

// StageMove is one entry in a deal's stage history.
type StageMove struct {
	ID        uuid.UUID `json:"id"`
	DealID    uuid.UUID `json:"deal_id"`
	FromStage string    `json:"from_stage"`
	ToStage   string    `json:"to_stage"`
	MovedBy   string    `json:"moved_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Setting is a raw JSON settings row.
type Setting struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	UpdatedBy string          `json:"updated_by,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// AllowFn decides whether a deal may move between two stages.
type AllowFn func(from, to string) bool

type Store interface {
	// Stages
	ListStages(ctx context.Context) ([]*Stage, error)
	UpsertStage(ctx context.Context, stage *Stage) error

	// Leads
	CreateLead(ctx context.Context, lead *Lead) error
	GetLead(ctx context.Context, id uuid.UUID) (*Lead, error)
	ListLeads(ctx context.Context, filter LeadFilter) ([]*Lead, error)
	UpdateLead(ctx context.Context, lead *Lead) error
	UpdateLeadPriority(ctx context.Context, id uuid.UUID, score float64, bucket scoring.Bucket) error

	// Deals
	CreateDeal(ctx context.Context, deal *Deal) error
	GetDeal(ctx context.Context, id uuid.UUID) (*Deal, error)
	ListDeals(ctx context.Context, filter DealFilter) ([]*Deal, error)
	ListOpenDeals(ctx context.Context) ([]*Deal, error)
	SetDealClosed(ctx context.Context, id uuid.UUID, closed bool) error
	// UpdateDealSLAStatus writes status only while the deal is open and still
	// in the stage entered at stageEnteredAt. It reports whether a row changed.
	UpdateDealSLAStatus(ctx context.Context, id uuid.UUID, stageEnteredAt time.Time, status sla.Status) (bool, error)
	// MoveDeal moves a deal to another stage and records the move in one
	// transaction. It returns (nil, nil, nil) when the deal does not exist and
	// a nil move when the deal is already in the target stage. Closed deals
	// fail with ErrDealClosed.
	MoveDeal(ctx context.Context, id uuid.UUID, toStage, movedBy string, allow AllowFn) (*Deal, *StageMove, error)
	GetDealHistory(ctx context.Context, id uuid.UUID) ([]*StageMove, error)

	// SLA policies
	ListSLAPolicies(ctx context.Context) ([]sla.Policy, error)
	UpsertSLAPolicy(ctx context.Context, p sla.Policy) error
	DeleteSLAPolicy(ctx context.Context, stageID string) error

	// Transition rules, in creation order
	ListTransitionRules(ctx context.Context) ([]transition.Rule, error)
	UpsertTransitionRule(ctx context.Context, r transition.Rule) error
	DeleteTransitionRule(ctx context.Context, from, to string) error

	// Settings
	GetSetting(ctx context.Context, key string) (*Setting, error)
	PutSetting(ctx context.Context, key string, value json.RawMessage, updatedBy string) error

	Migrate(ctx context.Context) error
	Close() error
}
