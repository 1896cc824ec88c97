package events

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleDecodesTypedEvents(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	var got []LeadActivityEvent
	h := Handle(logger, func(subject string, ev LeadActivityEvent) error {
		assert.Equal(t, "pipedesk.inbound.lead.l1.activity", subject)
		got = append(got, ev)
		return nil
	})

	h("pipedesk.inbound.lead.l1.activity", []byte(`{"lead_id":"l1","occurred_at":"2026-05-10T12:00:00Z"}`))
	require.Len(t, got, 1)
	assert.Equal(t, "l1", got[0].LeadID)
	assert.True(t, got[0].OccurredAt.Equal(time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)))
	assert.Nil(t, got[0].NextMeetingAt)
	assert.Empty(t, buf.String())

	h("pipedesk.inbound.lead.l1.activity", []byte("{"))
	assert.Len(t, got, 1, "undecodable payloads never reach the handler")
	assert.Contains(t, buf.String(), "dropping undecodable event")
}

func TestHandleLogsRejectedEvents(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := Handle(logger, func(string, LeadActivityEvent) error { return errors.New("lead not found") })
	h("pipedesk.inbound.lead.l2.activity", []byte(`{"lead_id":"l2"}`))

	assert.Contains(t, buf.String(), "event rejected")
	assert.Contains(t, buf.String(), "lead not found")
	assert.Contains(t, buf.String(), `"subject":"pipedesk.inbound.lead.l2.activity"`)
}

func TestDecode(t *testing.T) {
	ev, err := Decode[StageMovedEvent]("s", []byte(`{"deal_id":"d1","from_stage":"nda","to_stage":"analysis"}`))
	require.NoError(t, err)
	assert.Equal(t, "analysis", ev.ToStage)

	_, err = Decode[StageMovedEvent]("s", []byte(`{"deal_id":1}`))
	assert.ErrorContains(t, err, "decode s")
}

func TestNewMessage(t *testing.T) {
	msg, err := newMessage(SubjectDealCreated("d1"), DealCreatedEvent{DealID: "d1", Title: "Acme", Stage: "lead"})
	require.NoError(t, err)
	assert.Equal(t, SubjectDealCreated("d1"), msg.Subject)
	assert.JSONEq(t, `{"deal_id":"d1","title":"Acme","stage":"lead"}`, string(msg.Data))
	assert.Equal(t, "application/json", msg.Header.Get("Content-Type"))

	other, err := newMessage(SubjectDealCreated("d1"), DealCreatedEvent{DealID: "d1"})
	require.NoError(t, err)
	assert.NotEmpty(t, msg.Header.Get(nats.MsgIdHdr))
	assert.NotEqual(t, msg.Header.Get(nats.MsgIdHdr), other.Header.Get(nats.MsgIdHdr))

	_, err = newMessage("x", func() {})
	assert.Error(t, err)
}
