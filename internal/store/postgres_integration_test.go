//go:build integration

package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/pipedesk/internal/scoring"
	"github.com/MikeSquared-Agency/pipedesk/internal/sla"
	"github.com/MikeSquared-Agency/pipedesk/internal/transition"
)

func setupTestDB(t *testing.T) *PostgresStore {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	s, err := NewPostgresStore(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// Running twice must be harmless.
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	t.Cleanup(func() {
		_, _ = s.pool.Exec(ctx, "TRUNCATE deal_stage_moves, deals, leads, sla_policies, transition_rules, settings, pipeline_stages CASCADE")
		s.Close()
	})

	return s
}

func TestLeadRoundTrip(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	last := time.Now().Add(-72 * time.Hour).UTC().Truncate(time.Second)
	lead := &Lead{Name: "Acme Holdings", Company: "Acme", Owner: "ana", LastActivityAt: &last}
	if err := s.CreateLead(ctx, lead); err != nil {
		t.Fatalf("CreateLead failed: %v", err)
	}
	if lead.ID == uuid.Nil {
		t.Fatal("expected lead ID after create")
	}

	if err := s.UpdateLeadPriority(ctx, lead.ID, 54, scoring.BucketWarm); err != nil {
		t.Fatalf("UpdateLeadPriority failed: %v", err)
	}

	got, err := s.GetLead(ctx, lead.ID)
	if err != nil {
		t.Fatalf("GetLead failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected lead, got nil")
	}
	if got.PriorityScore == nil || *got.PriorityScore != 54 {
		t.Errorf("expected score 54, got %v", got.PriorityScore)
	}
	if got.PriorityBucket != "warm" {
		t.Errorf("expected bucket warm, got %s", got.PriorityBucket)
	}
	if got.LastActivityAt == nil || !got.LastActivityAt.Equal(last) {
		t.Errorf("expected last activity %v, got %v", last, got.LastActivityAt)
	}

	warm, err := s.ListLeads(ctx, LeadFilter{Bucket: "warm"})
	if err != nil {
		t.Fatalf("ListLeads failed: %v", err)
	}
	if len(warm) != 1 {
		t.Errorf("expected 1 warm lead, got %d", len(warm))
	}

	missing, err := s.GetLead(ctx, uuid.New())
	if err != nil || missing != nil {
		t.Errorf("expected (nil, nil) for missing lead, got (%v, %v)", missing, err)
	}
}

func TestMoveDeal(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	for i, id := range []string{"prospecting", "nda", "closing"} {
		if err := s.UpsertStage(ctx, &Stage{ID: id, Name: id, Position: i}); err != nil {
			t.Fatalf("UpsertStage failed: %v", err)
		}
	}

	deal := &Deal{Title: "Series A", Owner: "ana", CurrentStage: "prospecting", StageEnteredAt: time.Now().Add(-50 * time.Hour)}
	if err := s.CreateDeal(ctx, deal); err != nil {
		t.Fatalf("CreateDeal failed: %v", err)
	}
	enteredAt := deal.StageEnteredAt
	if ok, err := s.UpdateDealSLAStatus(ctx, deal.ID, enteredAt, sla.StatusOverdue); err != nil || !ok {
		t.Fatalf("UpdateDealSLAStatus failed: ok=%v err=%v", ok, err)
	}

	rules := transition.NewRuleSet([]transition.Rule{{FromStage: "nda", ToStage: "closing", Enabled: false}})

	moved, move, err := s.MoveDeal(ctx, deal.ID, "nda", "ana", rules.Allowed)
	if err != nil {
		t.Fatalf("MoveDeal failed: %v", err)
	}
	if move == nil || move.FromStage != "prospecting" || move.ToStage != "nda" {
		t.Fatalf("unexpected move %+v", move)
	}
	if moved.SLAStatus != sla.StatusOK {
		t.Errorf("expected SLA reset to ok, got %s", moved.SLAStatus)
	}
	if time.Since(moved.StageEnteredAt) > time.Minute {
		t.Errorf("expected stage_entered_at reset, got %v", moved.StageEnteredAt)
	}

	// A status computed for the previous stage entry must not land.
	if ok, err := s.UpdateDealSLAStatus(ctx, deal.ID, enteredAt, sla.StatusOverdue); err != nil || ok {
		t.Errorf("expected stale sla update to be skipped: ok=%v err=%v", ok, err)
	}
	if got, _ := s.GetDeal(ctx, deal.ID); got == nil || got.SLAStatus != sla.StatusOK {
		t.Errorf("expected sla status to stay ok, got %+v", got)
	}

	_, _, err = s.MoveDeal(ctx, deal.ID, "closing", "ana", rules.Allowed)
	if !errors.Is(err, ErrTransitionDenied) {
		t.Fatalf("expected ErrTransitionDenied, got %v", err)
	}

	_, move, err = s.MoveDeal(ctx, deal.ID, "nda", "ana", rules.Allowed)
	if err != nil || move != nil {
		t.Errorf("expected no-op self move, got (%v, %v)", move, err)
	}

	history, err := s.GetDealHistory(ctx, deal.ID)
	if err != nil {
		t.Fatalf("GetDealHistory failed: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("expected 1 history row, got %d", len(history))
	}

	d, m, err := s.MoveDeal(ctx, uuid.New(), "nda", "ana", nil)
	if d != nil || m != nil || err != nil {
		t.Errorf("expected (nil, nil, nil) for missing deal")
	}

	if err := s.SetDealClosed(ctx, deal.ID, true); err != nil {
		t.Fatalf("SetDealClosed failed: %v", err)
	}
	open, err := s.ListOpenDeals(ctx)
	if err != nil {
		t.Fatalf("ListOpenDeals failed: %v", err)
	}
	if len(open) != 0 {
		t.Errorf("expected no open deals, got %d", len(open))
	}

	if _, _, err := s.MoveDeal(ctx, deal.ID, "prospecting", "ana", rules.Allowed); !errors.Is(err, ErrDealClosed) {
		t.Errorf("expected ErrDealClosed, got %v", err)
	}
}

func TestRulesPoliciesAndSettings(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	if err := s.UpsertTransitionRule(ctx, transition.Rule{FromStage: "nda", ToStage: "closing", Enabled: false}); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertTransitionRule(ctx, transition.Rule{FromStage: "nda", ToStage: "closing", Enabled: true}); err != nil {
		t.Fatal(err)
	}
	rules, err := s.ListTransitionRules(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rules) != 1 || !rules[0].Enabled {
		t.Errorf("expected one enabled rule after upsert, got %+v", rules)
	}
	if err := s.DeleteTransitionRule(ctx, "nda", "closing"); err != nil {
		t.Fatal(err)
	}

	if err := s.UpsertSLAPolicy(ctx, sla.Policy{StageID: "nda", MaxHours: 48, WarningThresholdHours: 24}); err != nil {
		t.Fatal(err)
	}
	policies, err := s.ListSLAPolicies(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(policies) != 1 || policies[0].MaxHours != 48 {
		t.Errorf("unexpected policies %+v", policies)
	}

	missing, err := s.GetSetting(ctx, SettingPriorityConfig)
	if err != nil || missing != nil {
		t.Fatalf("expected no setting yet, got (%v, %v)", missing, err)
	}
	raw, _ := json.Marshal(scoring.DefaultPriorityConfig())
	if err := s.PutSetting(ctx, SettingPriorityConfig, raw, "admin"); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetSetting(ctx, SettingPriorityConfig)
	if err != nil || got == nil {
		t.Fatalf("GetSetting failed: %v", err)
	}
	cfg, defaulted := scoring.ParseConfigJSON(got.Value)
	if len(defaulted) != 0 {
		t.Errorf("expected no defaulted fields, got %v", defaulted)
	}
	if cfg != scoring.DefaultPriorityConfig() {
		t.Errorf("round trip changed config: %+v", cfg)
	}
}
