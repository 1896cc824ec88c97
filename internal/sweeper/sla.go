package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/MikeSquared-Agency/pipedesk/internal/events"
	"github.com/MikeSquared-Agency/pipedesk/internal/metrics"
	"github.com/MikeSquared-Agency/pipedesk/internal/notify"
	"github.com/MikeSquared-Agency/pipedesk/internal/sla"
	"github.com/MikeSquared-Agency/pipedesk/internal/store"
)

type SLAReport struct {
	sla.Summary
	Changed int `json:"changed"`
}

// SweepSLA evaluates every open deal against a single now, persists status
// changes and notifies on deals that just became overdue.
func (s *Sweeper) SweepSLA(ctx context.Context) (SLAReport, error) {
	start := time.Now()
	defer func() { metrics.SweepDuration.WithLabelValues("sla").Observe(time.Since(start).Seconds()) }()

	deals, err := s.store.ListOpenDeals(ctx)
	if err != nil {
		metrics.SweepErrors.WithLabelValues("sla").Inc()
		return SLAReport{}, fmt.Errorf("list open deals: %w", err)
	}
	policies, err := s.settings.Policies(ctx)
	if err != nil {
		metrics.SweepErrors.WithLabelValues("sla").Inc()
		return SLAReport{}, err
	}

	now := s.now()
	byID := make(map[string]*store.Deal, len(deals))
	items := make([]sla.Item, 0, len(deals))
	for _, d := range deals {
		id := d.ID.String()
		byID[id] = d
		items = append(items, sla.Item{ID: id, StageID: d.CurrentStage, StageEnteredAt: d.StageEnteredAt})
	}

	results := sla.EvaluateAll(items, now, policies)
	report := SLAReport{Summary: sla.Summarize(results)}

	for _, r := range results {
		deal := byID[r.ID]
		if deal.SLAStatus == r.Status {
			continue
		}
		updated, err := s.store.UpdateDealSLAStatus(ctx, deal.ID, deal.StageEnteredAt, r.Status)
		if err != nil {
			s.logger.Error("failed to update sla status", "deal_id", r.ID, "error", err)
			continue
		}
		if !updated {
			// Moved or closed since it was listed.
			s.logger.Debug("sla status update skipped", "deal_id", r.ID)
			continue
		}
		report.Changed++
		s.logger.Info("deal sla status changed", "deal_id", r.ID, "stage", r.StageID, "from", deal.SLAStatus, "to", r.Status)

		_ = s.events.Publish(events.SubjectDealSLAChanged(r.ID), events.SLAChangedEvent{
			DealID:         r.ID,
			Stage:          r.StageID,
			Previous:       string(deal.SLAStatus),
			Current:        string(r.Status),
			HoursInStage:   r.HoursInStage,
			HoursRemaining: r.HoursRemaining,
		})

		if r.Status == sla.StatusOverdue {
			err := s.notifier.Notify(ctx, notify.Notification{
				Kind:      notify.KindSLAOverdue,
				SubjectID: r.ID,
				Title:     deal.Title,
				Details: map[string]interface{}{
					"stage":          r.StageID,
					"owner":          deal.Owner,
					"hours_in_stage": r.HoursInStage,
				},
			})
			if err != nil {
				s.logger.Warn("overdue notification failed", "deal_id", r.ID, "error", err)
			}
		}
	}

	metrics.DealsBySLAStatus.WithLabelValues(string(sla.StatusOK)).Set(float64(report.OK))
	metrics.DealsBySLAStatus.WithLabelValues(string(sla.StatusWarning)).Set(float64(report.Warning))
	metrics.DealsBySLAStatus.WithLabelValues(string(sla.StatusOverdue)).Set(float64(report.Overdue))

	_ = s.events.Publish(events.SubjectSLASweepCompleted, events.SLASweepEvent{
		OK:        report.OK,
		Warning:   report.Warning,
		Overdue:   report.Overdue,
		Changed:   report.Changed,
		Timestamp: now,
	})
	return report, nil
}
