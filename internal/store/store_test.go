package store

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestLeadSignals(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	ago := func(d time.Duration) *time.Time { ts := now.Add(-d); return &ts }

	tests := []struct {
		name        string
		lead        Lead
		wantDays    *float64
		wantMeeting bool
	}{
		{"no activity", Lead{}, nil, false},
		{"partial day truncates", Lead{LastActivityAt: ago(47 * time.Hour)}, f(1), false},
		{"fifteen days", Lead{LastActivityAt: ago(15 * 24 * time.Hour)}, f(15), false},
		{"future activity", Lead{LastActivityAt: ago(-30 * time.Hour)}, f(-1), false},
		{"upcoming meeting", Lead{NextMeetingAt: ago(-time.Hour)}, nil, true},
		{"past meeting", Lead{NextMeetingAt: ago(time.Hour)}, nil, false},
		{"meeting now is not upcoming", Lead{NextMeetingAt: ago(0)}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.lead.Signals(now)
			if s.HasUpcomingMeeting != tt.wantMeeting {
				t.Errorf("meeting: got %v, want %v", s.HasUpcomingMeeting, tt.wantMeeting)
			}
			switch {
			case tt.wantDays == nil && s.DaysSinceLastActivity != nil:
				t.Errorf("expected nil days, got %v", *s.DaysSinceLastActivity)
			case tt.wantDays != nil && s.DaysSinceLastActivity == nil:
				t.Errorf("expected %v days, got nil", *tt.wantDays)
			case tt.wantDays != nil && *s.DaysSinceLastActivity != *tt.wantDays:
				t.Errorf("expected %v days, got %v", *tt.wantDays, *s.DaysSinceLastActivity)
			}
		})
	}
}

func f(v float64) *float64 { return &v }

func TestFilterDefaults(t *testing.T) {
	var lf LeadFilter
	if lf.Limit != 0 || lf.Bucket != "" {
		t.Errorf("unexpected lead filter defaults: %+v", lf)
	}
	var df DealFilter
	if df.IncludeClosed {
		t.Error("expected closed deals excluded by default")
	}
}

func TestPaginate(t *testing.T) {
	q, args := paginate("SELECT 1 WHERE a = $1", []interface{}{"x"}, 1, 0, 0)
	if q != "SELECT 1 WHERE a = $1 LIMIT $2" {
		t.Errorf("unexpected query %q", q)
	}
	if len(args) != 2 || args[1] != 100 {
		t.Errorf("expected default limit 100, got %v", args)
	}

	q, args = paginate("SELECT 1", nil, 0, 10, 20)
	if q != "SELECT 1 LIMIT $1 OFFSET $2" {
		t.Errorf("unexpected query %q", q)
	}
	if len(args) != 2 || args[0] != 10 || args[1] != 20 {
		t.Errorf("unexpected args %v", args)
	}
}

func TestLeadsQueryKeyset(t *testing.T) {
	q, args := leadsQuery(LeadFilter{Limit: 50, Offset: 100, ByID: true})
	if !strings.HasSuffix(q, "WHERE 1=1 ORDER BY id LIMIT $1") {
		t.Errorf("unexpected first page query %q", q)
	}
	if len(args) != 1 || args[0] != 50 {
		t.Errorf("offset must be ignored, got args %v", args)
	}

	after := uuid.New()
	q, args = leadsQuery(LeadFilter{Owner: "ana", Limit: 50, ByID: true, AfterID: after})
	if !strings.HasSuffix(q, "AND owner = $1 AND id > $2 ORDER BY id LIMIT $3") {
		t.Errorf("unexpected next page query %q", q)
	}
	if len(args) != 3 || args[1] != after {
		t.Errorf("unexpected args %v", args)
	}

	q, _ = leadsQuery(LeadFilter{Limit: 10, Offset: 20})
	if !strings.HasSuffix(q, "ORDER BY priority_score DESC NULLS LAST, created_at ASC LIMIT $1 OFFSET $2") {
		t.Errorf("unexpected ranked query %q", q)
	}
}
