package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/pipedesk/internal/events"
	"github.com/MikeSquared-Agency/pipedesk/internal/metrics"
	"github.com/MikeSquared-Agency/pipedesk/internal/notify"
	"github.com/MikeSquared-Agency/pipedesk/internal/scoring"
	"github.com/MikeSquared-Agency/pipedesk/internal/store"
)

const leadPageSize = 500

type PriorityReport struct {
	Scored  int            `json:"scored"`
	Changed int            `json:"changed"`
	Buckets map[string]int `json:"buckets"`
}

// SweepPriority rescores every lead with the active config. It aborts when
// the config cannot be loaded rather than rescoring with defaults.
func (s *Sweeper) SweepPriority(ctx context.Context) (PriorityReport, error) {
	start := time.Now()
	defer func() { metrics.SweepDuration.WithLabelValues("priority").Observe(time.Since(start).Seconds()) }()

	cfg, err := s.settings.PriorityConfig(ctx)
	if err != nil {
		metrics.SweepErrors.WithLabelValues("priority").Inc()
		return PriorityReport{}, err
	}

	var leads []*store.Lead
	filter := store.LeadFilter{Limit: leadPageSize, ByID: true}
	for {
		page, err := s.store.ListLeads(ctx, filter)
		if err != nil {
			metrics.SweepErrors.WithLabelValues("priority").Inc()
			return PriorityReport{}, fmt.Errorf("list leads: %w", err)
		}
		leads = append(leads, page...)
		if len(page) < leadPageSize {
			break
		}
		filter.AfterID = page[len(page)-1].ID
	}

	now := s.now()
	report := PriorityReport{Buckets: map[string]int{
		string(scoring.BucketHot):  0,
		string(scoring.BucketWarm): 0,
		string(scoring.BucketCold): 0,
	}}
	for _, lead := range leads {
		res, changed, err := s.RescoreLead(ctx, lead, cfg, now)
		if err != nil {
			s.logger.Error("failed to rescore lead", "lead_id", lead.ID, "error", err)
			continue
		}
		report.Scored++
		report.Buckets[string(res.Bucket)]++
		if changed {
			report.Changed++
		}
	}

	for bucket, n := range report.Buckets {
		metrics.LeadsByBucket.WithLabelValues(bucket).Set(float64(n))
	}
	return report, nil
}

// RescoreLead computes the lead's priority and persists it when the score or
// bucket moved. changed reports a bucket change.
func (s *Sweeper) RescoreLead(ctx context.Context, lead *store.Lead, cfg scoring.PriorityConfig, now time.Time) (scoring.PriorityResult, bool, error) {
	res := scoring.ComputeScore(lead.Signals(now), cfg)

	prevBucket := lead.PriorityBucket
	sameScore := lead.PriorityScore != nil && *lead.PriorityScore == res.Score
	if sameScore && prevBucket == string(res.Bucket) {
		return res, false, nil
	}

	if err := s.store.UpdateLeadPriority(ctx, lead.ID, res.Score, res.Bucket); err != nil {
		return res, false, err
	}
	score := res.Score
	lead.PriorityScore = &score
	lead.PriorityBucket = string(res.Bucket)

	if prevBucket == string(res.Bucket) {
		return res, false, nil
	}

	id := lead.ID.String()
	s.logger.Info("lead bucket changed", "lead_id", id, "from", prevBucket, "to", res.Bucket, "score", res.Score)
	_ = s.events.Publish(events.SubjectLeadBucketChanged(id), events.LeadBucketChangedEvent{
		LeadID:   id,
		Previous: prevBucket,
		Current:  string(res.Bucket),
		Score:    res.Score,
	})

	if res.Bucket == scoring.BucketHot {
		err := s.notifier.Notify(ctx, notify.Notification{
			Kind:      notify.KindLeadHot,
			SubjectID: id,
			Title:     lead.Name,
			Details: map[string]interface{}{
				"score":       res.Score,
				"owner":       lead.Owner,
				"description": cfg.Descriptions.Hot,
			},
		})
		if err != nil {
			s.logger.Warn("hot lead notification failed", "lead_id", id, "error", err)
		}
	}
	return res, true, nil
}

// HandleLeadActivity applies an inbound activity event and rescores the lead.
// Older activity never moves LastActivityAt backwards.
func (s *Sweeper) HandleLeadActivity(ctx context.Context, ev events.LeadActivityEvent) error {
	id, err := uuid.Parse(ev.LeadID)
	if err != nil {
		return fmt.Errorf("invalid lead id %q: %w", ev.LeadID, err)
	}

	lead, err := s.store.GetLead(ctx, id)
	if err != nil {
		return err
	}
	if lead == nil {
		return fmt.Errorf("lead %s not found", id)
	}

	dirty := false
	if !ev.OccurredAt.IsZero() && (lead.LastActivityAt == nil || ev.OccurredAt.After(*lead.LastActivityAt)) {
		at := ev.OccurredAt
		lead.LastActivityAt = &at
		dirty = true
	}
	if ev.NextMeetingAt != nil && !ev.NextMeetingAt.IsZero() {
		at := *ev.NextMeetingAt
		lead.NextMeetingAt = &at
		dirty = true
	}
	if !dirty {
		return nil
	}
	if err := s.store.UpdateLead(ctx, lead); err != nil {
		return err
	}

	cfg, err := s.settings.PriorityConfig(ctx)
	if err != nil {
		s.logger.Warn("priority config unavailable, scoring with defaults", "error", err)
	}
	_, _, err = s.RescoreLead(ctx, lead, cfg, s.now())
	return err
}
