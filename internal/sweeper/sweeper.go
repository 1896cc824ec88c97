package sweeper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/pipedesk/internal/config"
	"github.com/MikeSquared-Agency/pipedesk/internal/events"
	"github.com/MikeSquared-Agency/pipedesk/internal/notify"
	"github.com/MikeSquared-Agency/pipedesk/internal/settings"
	"github.com/MikeSquared-Agency/pipedesk/internal/store"
)

// Sweeper periodically re-evaluates SLA status for open deals and priority
// for leads, and applies inbound lead activity.
type Sweeper struct {
	store    store.Store
	settings *settings.Loader
	events   events.Client
	notifier notify.Notifier
	logger   *slog.Logger

	slaInterval      time.Duration
	priorityInterval time.Duration
	now              func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func New(s store.Store, loader *settings.Loader, ev events.Client, n notify.Notifier, cfg *config.Config, logger *slog.Logger) *Sweeper {
	if ev == nil {
		ev = events.Nop{}
	}
	if n == nil {
		n = notify.Nop{}
	}
	return &Sweeper{
		store:            s,
		settings:         loader,
		events:           ev,
		notifier:         n,
		logger:           logger,
		slaInterval:      cfg.SLAInterval(),
		priorityInterval: cfg.PriorityInterval(),
		now:              time.Now,
		stopCh:           make(chan struct{}),
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	s.wg.Add(2)
	go s.loop(ctx, s.slaInterval, "sla", func(ctx context.Context) error {
		_, err := s.SweepSLA(ctx)
		return err
	})
	go s.loop(ctx, s.priorityInterval, "priority", func(ctx context.Context) error {
		_, err := s.SweepPriority(ctx)
		return err
	})
}

func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

func (s *Sweeper) loop(ctx context.Context, interval time.Duration, name string, sweep func(context.Context) error) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sweep(ctx); err != nil {
				s.logger.Error("sweep failed", "sweep", name, "error", err)
			}
		}
	}
}

// SetupSubscriptions listens for inbound lead activity.
func (s *Sweeper) SetupSubscriptions(ctx context.Context) error {
	return s.events.Subscribe(events.SubjectLeadActivity, events.Handle(s.logger,
		func(_ string, ev events.LeadActivityEvent) error {
			return s.HandleLeadActivity(ctx, ev)
		}))
}
