package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/pipedesk/internal/events"
	"github.com/MikeSquared-Agency/pipedesk/internal/metrics"
	"github.com/MikeSquared-Agency/pipedesk/internal/settings"
	"github.com/MikeSquared-Agency/pipedesk/internal/sla"
	"github.com/MikeSquared-Agency/pipedesk/internal/store"
)

type DealsHandler struct {
	store    store.Store
	settings *settings.Loader
	events   events.Client
	logger   *slog.Logger
	now      func() time.Time
}

func NewDealsHandler(s store.Store, loader *settings.Loader, ev events.Client, logger *slog.Logger) *DealsHandler {
	return &DealsHandler{store: s, settings: loader, events: ev, logger: logger, now: time.Now}
}

type CreateDealRequest struct {
	Title  string `json:"title"`
	LeadID string `json:"lead_id,omitempty"`
	Owner  string `json:"owner,omitempty"`
	Stage  string `json:"stage"`
}

func (h *DealsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateDealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" || req.Stage == "" {
		writeError(w, http.StatusBadRequest, "title and stage required")
		return
	}
	if ok, err := h.knownStage(r, req.Stage); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	} else if !ok {
		writeError(w, http.StatusBadRequest, "unknown stage "+req.Stage)
		return
	}

	deal := &store.Deal{
		Title:        req.Title,
		Owner:        req.Owner,
		CurrentStage: req.Stage,
		SLAStatus:    sla.StatusOK,
	}
	if deal.Owner == "" {
		deal.Owner = userID(r)
	}
	if req.LeadID != "" {
		lid, err := uuid.Parse(req.LeadID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid lead_id")
			return
		}
		deal.LeadID = &lid
	}

	if err := h.store.CreateDeal(r.Context(), deal); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = h.events.Publish(events.SubjectDealCreated(deal.ID.String()), events.DealCreatedEvent{
		DealID: deal.ID.String(),
		Title:  deal.Title,
		Stage:  deal.CurrentStage,
		Owner:  deal.Owner,
	})
	writeJSON(w, http.StatusCreated, deal)
}

// knownStage accepts any stage while no stages are configured.
func (h *DealsHandler) knownStage(r *http.Request, stage string) (bool, error) {
	stages, err := h.store.ListStages(r.Context())
	if err != nil {
		return false, err
	}
	if len(stages) == 0 {
		return true, nil
	}
	for _, s := range stages {
		if s.ID == stage {
			return true, nil
		}
	}
	return false, nil
}

func (h *DealsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.DealFilter{
		Stage: q.Get("stage"),
		Owner: q.Get("owner"),
	}
	filter.IncludeClosed, _ = strconv.ParseBool(q.Get("include_closed"))
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	deals, err := h.store.ListDeals(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if deals == nil {
		deals = []*store.Deal{}
	}
	writeJSON(w, http.StatusOK, deals)
}

func (h *DealsHandler) Get(w http.ResponseWriter, r *http.Request) {
	deal, ok := h.loadDeal(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, deal)
}

func (h *DealsHandler) loadDeal(w http.ResponseWriter, r *http.Request) (*store.Deal, bool) {
	id, ok := parseID(w, r, "deal")
	if !ok {
		return nil, false
	}
	deal, err := h.store.GetDeal(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	if deal == nil {
		writeError(w, http.StatusNotFound, "deal not found")
		return nil, false
	}
	return deal, true
}

type MoveRequest struct {
	ToStage string `json:"to_stage"`
}

type MoveResponse struct {
	Deal  *store.Deal      `json:"deal"`
	Move  *store.StageMove `json:"move,omitempty"`
	Moved bool             `json:"moved"`
}

// Move advances a deal to another stage if the transition rules allow it.
// Denied moves answer 409 and leave the deal untouched.
func (h *DealsHandler) Move(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "deal")
	if !ok {
		return
	}
	var req MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ToStage == "" {
		writeError(w, http.StatusBadRequest, "to_stage required")
		return
	}
	if ok, err := h.knownStage(r, req.ToStage); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	} else if !ok {
		writeError(w, http.StatusBadRequest, "unknown stage "+req.ToStage)
		return
	}

	rules, err := h.settings.Rules(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	user := userID(r)
	deal, move, err := h.store.MoveDeal(r.Context(), id, req.ToStage, user, rules.Allowed)
	switch {
	case errors.Is(err, store.ErrTransitionDenied):
		metrics.StageMoves.WithLabelValues("denied").Inc()
		h.logger.Info("transition denied", "deal_id", id, "from", deal.CurrentStage, "to", req.ToStage, "user", user)
		_ = h.events.Publish(events.SubjectTransitionDenied(id.String()), events.TransitionDeniedEvent{
			DealID:      id.String(),
			FromStage:   deal.CurrentStage,
			ToStage:     req.ToStage,
			RequestedBy: user,
		})
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":      "transition not allowed",
			"from_stage": deal.CurrentStage,
			"to_stage":   req.ToStage,
		})
		return
	case errors.Is(err, store.ErrDealClosed):
		metrics.StageMoves.WithLabelValues("closed").Inc()
		writeError(w, http.StatusConflict, "deal is closed")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	case deal == nil:
		writeError(w, http.StatusNotFound, "deal not found")
		return
	}

	if move == nil {
		metrics.StageMoves.WithLabelValues("noop").Inc()
		writeJSON(w, http.StatusOK, MoveResponse{Deal: deal})
		return
	}

	metrics.StageMoves.WithLabelValues("moved").Inc()
	_ = h.events.Publish(events.SubjectDealStageMoved(id.String()), events.StageMovedEvent{
		DealID:    id.String(),
		FromStage: move.FromStage,
		ToStage:   move.ToStage,
		MovedBy:   move.MovedBy,
		MovedAt:   move.CreatedAt,
	})
	writeJSON(w, http.StatusOK, MoveResponse{Deal: deal, Move: move, Moved: true})
}

func (h *DealsHandler) Close(w http.ResponseWriter, r *http.Request) {
	deal, ok := h.loadDeal(w, r)
	if !ok {
		return
	}
	if err := h.store.SetDealClosed(r.Context(), deal.ID, true); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	deal.Closed = true
	writeJSON(w, http.StatusOK, deal)
}

type DealSLAResponse struct {
	sla.Result
	Policy *sla.Policy `json:"policy,omitempty"`
}

func (h *DealsHandler) SLA(w http.ResponseWriter, r *http.Request) {
	deal, ok := h.loadDeal(w, r)
	if !ok {
		return
	}
	policies, err := h.settings.Policies(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	policy := policies.For(deal.CurrentStage)
	res := sla.EvaluateItem(sla.Item{
		ID:             deal.ID.String(),
		StageID:        deal.CurrentStage,
		StageEnteredAt: deal.StageEnteredAt,
	}, h.now(), policy)
	writeJSON(w, http.StatusOK, DealSLAResponse{Result: res, Policy: policy})
}

func (h *DealsHandler) History(w http.ResponseWriter, r *http.Request) {
	deal, ok := h.loadDeal(w, r)
	if !ok {
		return
	}
	moves, err := h.store.GetDealHistory(r.Context(), deal.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if moves == nil {
		moves = []*store.StageMove{}
	}
	writeJSON(w, http.StatusOK, moves)
}

type OverviewResponse struct {
	Summary sla.Summary            `json:"summary"`
	ByStage map[string]sla.Summary `json:"by_stage"`
	Deals   []sla.Result           `json:"deals"`
}

// Overview evaluates every open deal live. ?status= narrows the deal list;
// the summaries always cover all open deals.
func (h *DealsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	status := sla.Status(r.URL.Query().Get("status"))
	switch status {
	case "", sla.StatusOK, sla.StatusWarning, sla.StatusOverdue:
	default:
		writeError(w, http.StatusBadRequest, "status must be one of ok, warning, overdue")
		return
	}

	deals, err := h.store.ListOpenDeals(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	policies, err := h.settings.Policies(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	items := make([]sla.Item, 0, len(deals))
	for _, d := range deals {
		items = append(items, sla.Item{ID: d.ID.String(), StageID: d.CurrentStage, StageEnteredAt: d.StageEnteredAt})
	}
	results := sla.EvaluateAll(items, h.now(), policies)

	resp := OverviewResponse{
		Summary: sla.Summarize(results),
		ByStage: make(map[string]sla.Summary),
		Deals:   []sla.Result{},
	}
	grouped := make(map[string][]sla.Result)
	for _, res := range results {
		grouped[res.StageID] = append(grouped[res.StageID], res)
		if status == "" || res.Status == status {
			resp.Deals = append(resp.Deals, res)
		}
	}
	for stage, rs := range grouped {
		resp.ByStage[stage] = sla.Summarize(rs)
	}
	writeJSON(w, http.StatusOK, resp)
}
