package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/MikeSquared-Agency/pipedesk/internal/events"
	"github.com/MikeSquared-Agency/pipedesk/internal/scoring"
	"github.com/MikeSquared-Agency/pipedesk/internal/settings"
	"github.com/MikeSquared-Agency/pipedesk/internal/store"
	"github.com/MikeSquared-Agency/pipedesk/internal/sweeper"
)

type LeadsHandler struct {
	store    store.Store
	settings *settings.Loader
	events   events.Client
	sweeper  *sweeper.Sweeper
	logger   *slog.Logger
	now      func() time.Time
}

func NewLeadsHandler(s store.Store, loader *settings.Loader, ev events.Client, sw *sweeper.Sweeper, logger *slog.Logger) *LeadsHandler {
	return &LeadsHandler{store: s, settings: loader, events: ev, sweeper: sw, logger: logger, now: time.Now}
}

type CreateLeadRequest struct {
	Name           string     `json:"name"`
	Company        string     `json:"company,omitempty"`
	Owner          string     `json:"owner,omitempty"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`
	NextMeetingAt  *time.Time `json:"next_meeting_at,omitempty"`
}

func (h *LeadsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name required")
		return
	}

	lead := &store.Lead{
		Name:           req.Name,
		Company:        req.Company,
		Owner:          req.Owner,
		LastActivityAt: req.LastActivityAt,
		NextMeetingAt:  req.NextMeetingAt,
	}
	if lead.Owner == "" {
		lead.Owner = userID(r)
	}

	if err := h.store.CreateLead(r.Context(), lead); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = h.events.Publish(events.SubjectLeadCreated(lead.ID.String()), events.LeadCreatedEvent{
		LeadID: lead.ID.String(),
		Name:   lead.Name,
		Owner:  lead.Owner,
	})

	h.rescore(r, lead)
	writeJSON(w, http.StatusCreated, lead)
}

func (h *LeadsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.LeadFilter{
		Bucket: q.Get("bucket"),
		Owner:  q.Get("owner"),
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	leads, err := h.store.ListLeads(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if leads == nil {
		leads = []*store.Lead{}
	}
	writeJSON(w, http.StatusOK, leads)
}

func (h *LeadsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "lead")
	if !ok {
		return
	}
	lead, err := h.store.GetLead(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if lead == nil {
		writeError(w, http.StatusNotFound, "lead not found")
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

type UpdateLeadRequest struct {
	Name             *string    `json:"name,omitempty"`
	Company          *string    `json:"company,omitempty"`
	Owner            *string    `json:"owner,omitempty"`
	LastActivityAt   *time.Time `json:"last_activity_at,omitempty"`
	NextMeetingAt    *time.Time `json:"next_meeting_at,omitempty"`
	ClearNextMeeting bool       `json:"clear_next_meeting,omitempty"`
}

func (h *LeadsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "lead")
	if !ok {
		return
	}
	var req UpdateLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	lead, err := h.store.GetLead(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if lead == nil {
		writeError(w, http.StatusNotFound, "lead not found")
		return
	}

	if req.Name != nil {
		if *req.Name == "" {
			writeError(w, http.StatusBadRequest, "name must not be empty")
			return
		}
		lead.Name = *req.Name
	}
	if req.Company != nil {
		lead.Company = *req.Company
	}
	if req.Owner != nil {
		lead.Owner = *req.Owner
	}
	if req.LastActivityAt != nil {
		lead.LastActivityAt = req.LastActivityAt
	}
	if req.NextMeetingAt != nil {
		lead.NextMeetingAt = req.NextMeetingAt
	}
	if req.ClearNextMeeting {
		lead.NextMeetingAt = nil
	}

	if err := h.store.UpdateLead(r.Context(), lead); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.rescore(r, lead)
	writeJSON(w, http.StatusOK, lead)
}

// rescore persists the lead's priority. Failures are logged; the sweep will
// pick the lead up again.
func (h *LeadsHandler) rescore(r *http.Request, lead *store.Lead) {
	cfg, err := h.settings.PriorityConfig(r.Context())
	if err != nil {
		h.logger.Warn("priority config unavailable, scoring with defaults", "error", err)
	}
	if _, _, err := h.sweeper.RescoreLead(r.Context(), lead, cfg, h.now()); err != nil {
		h.logger.Error("failed to rescore lead", "lead_id", lead.ID, "error", err)
	}
}

type LeadPriorityResponse struct {
	LeadID      string          `json:"lead_id"`
	Score       float64         `json:"score"`
	Bucket      scoring.Bucket  `json:"bucket"`
	Description string          `json:"description"`
	Signals     scoring.Signals `json:"signals"`
}

// Priority computes the lead's priority live with the active config.
func (h *LeadsHandler) Priority(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "lead")
	if !ok {
		return
	}
	lead, err := h.store.GetLead(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if lead == nil {
		writeError(w, http.StatusNotFound, "lead not found")
		return
	}

	cfg, err := h.settings.PriorityConfig(r.Context())
	if err != nil {
		h.logger.Warn("priority config unavailable, scoring with defaults", "error", err)
	}
	signals := lead.Signals(h.now())
	res := scoring.ComputeScore(signals, cfg)
	writeJSON(w, http.StatusOK, LeadPriorityResponse{
		LeadID:      lead.ID.String(),
		Score:       res.Score,
		Bucket:      res.Bucket,
		Description: cfg.Descriptions.For(res.Bucket),
		Signals:     signals,
	})
}

// ByBucket lists leads in one bucket, highest score first.
func (h *LeadsHandler) ByBucket(w http.ResponseWriter, r *http.Request) {
	bucket := scoring.Bucket(r.URL.Query().Get("bucket"))
	switch bucket {
	case scoring.BucketHot, scoring.BucketWarm, scoring.BucketCold:
	default:
		writeError(w, http.StatusBadRequest, "bucket must be one of hot, warm, cold")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	leads, err := h.store.ListLeads(r.Context(), store.LeadFilter{Bucket: string(bucket), Limit: limit})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if leads == nil {
		leads = []*store.Lead{}
	}

	cfg, err := h.settings.PriorityConfig(r.Context())
	if err != nil {
		h.logger.Warn("priority config unavailable, using default descriptions", "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"bucket":      bucket,
		"description": cfg.Descriptions.For(bucket),
		"leads":       leads,
	})
}
