package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/MikeSquared-Agency/pipedesk/internal/metrics"
)

const (
	KindSLAOverdue = "deal.sla_overdue"
	KindLeadHot    = "lead.hot"
)

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("notifier unavailable")

// Notification is the JSON body posted to the webhook.
type Notification struct {
	Kind      string                 `json:"kind"`
	SubjectID string                 `json:"subject_id"`
	Title     string                 `json:"title"`
	Details   map[string]interface{} `json:"details,omitempty"`
	At        time.Time              `json:"at"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

type Options struct {
	Timeout         time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

type WebhookNotifier struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[struct{}]
	logger  *slog.Logger
}

func NewWebhookNotifier(url string, opts Options, logger *slog.Logger) *WebhookNotifier {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}

	n := &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: opts.Timeout},
		logger: logger,
	}
	n.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "webhook",
		MaxRequests: 1,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("notify breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	return n
}

func (n *WebhookNotifier) Notify(ctx context.Context, note Notification) error {
	if note.At.IsZero() {
		note.At = time.Now().UTC()
	}
	_, err := n.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, n.post(ctx, note)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.Notifications.WithLabelValues(note.Kind, "skipped").Inc()
		return ErrUnavailable
	case err != nil:
		metrics.Notifications.WithLabelValues(note.Kind, "failed").Inc()
		return err
	}
	metrics.Notifications.WithLabelValues(note.Kind, "sent").Inc()
	return nil
}

func (n *WebhookNotifier) post(ctx context.Context, note Notification) error {
	body, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}

// Nop drops notifications. It is used when no webhook is configured.
type Nop struct{}

func (Nop) Notify(context.Context, Notification) error { return nil }
