package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/pipedesk/internal/settings"
	"github.com/MikeSquared-Agency/pipedesk/internal/sla"
	"github.com/MikeSquared-Agency/pipedesk/internal/store"
	"github.com/MikeSquared-Agency/pipedesk/internal/transition"
)

// PipelineHandler serves stages, SLA policies and transition rules.
type PipelineHandler struct {
	store    store.Store
	settings *settings.Loader
}

func NewPipelineHandler(s store.Store, loader *settings.Loader) *PipelineHandler {
	return &PipelineHandler{store: s, settings: loader}
}

func (h *PipelineHandler) ListStages(w http.ResponseWriter, r *http.Request) {
	stages, err := h.store.ListStages(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if stages == nil {
		stages = []*store.Stage{}
	}
	writeJSON(w, http.StatusOK, stages)
}

func (h *PipelineHandler) UpsertStage(w http.ResponseWriter, r *http.Request) {
	var stage store.Stage
	if err := json.NewDecoder(r.Body).Decode(&stage); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if stage.ID == "" {
		writeError(w, http.StatusBadRequest, "id required")
		return
	}
	if stage.Name == "" {
		stage.Name = stage.ID
	}
	if err := h.store.UpsertStage(r.Context(), &stage); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, stage)
}

type CheckResponse struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Allowed bool   `json:"allowed"`
}

func (h *PipelineHandler) Check(w http.ResponseWriter, r *http.Request) {
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if from == "" || to == "" {
		writeError(w, http.StatusBadRequest, "from and to required")
		return
	}
	rules, err := h.settings.Rules(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, CheckResponse{From: from, To: to, Allowed: rules.Allowed(from, to)})
}

type MatrixResponse struct {
	Stages []string                   `json:"stages"`
	Matrix map[string]map[string]bool `json:"matrix"`
}

func (h *PipelineHandler) Matrix(w http.ResponseWriter, r *http.Request) {
	stages, err := h.store.ListStages(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	rules, err := h.settings.Rules(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	ids := make([]string, 0, len(stages))
	for _, s := range stages {
		ids = append(ids, s.ID)
	}
	writeJSON(w, http.StatusOK, MatrixResponse{Stages: ids, Matrix: transition.Matrix(ids, rules)})
}

func (h *PipelineHandler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := h.store.ListSLAPolicies(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if policies == nil {
		policies = []sla.Policy{}
	}
	writeJSON(w, http.StatusOK, policies)
}

type validationError struct {
	Error  string   `json:"error"`
	Errors []string `json:"errors"`
}

// PutPolicy stores the policy for the stage in the path. Policies the
// evaluator would silently misread are rejected with 422.
func (h *PipelineHandler) PutPolicy(w http.ResponseWriter, r *http.Request) {
	var p sla.Policy
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p.StageID = chi.URLParam(r, "stage")

	if errs := sla.ValidatePolicy(p); len(errs) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, validationError{Error: "invalid sla policy", Errors: errs})
		return
	}
	if err := h.store.UpsertSLAPolicy(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PipelineHandler) DeletePolicy(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteSLAPolicy(r.Context(), chi.URLParam(r, "stage")); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PipelineHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.store.ListTransitionRules(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rules == nil {
		rules = []transition.Rule{}
	}
	writeJSON(w, http.StatusOK, rules)
}

// PutRule creates the rule for a stage pair or replaces its enabled flag.
func (h *PipelineHandler) PutRule(w http.ResponseWriter, r *http.Request) {
	var rule transition.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	errs := transition.ValidateRules([]transition.Rule{rule})
	if rule.FromStage != "" && rule.FromStage == rule.ToStage {
		errs = append(errs, "from_stage and to_stage must differ")
	}
	if len(errs) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, validationError{Error: "invalid transition rule", Errors: errs})
		return
	}
	if err := h.store.UpsertTransitionRule(r.Context(), rule); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (h *PipelineHandler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if from == "" || to == "" {
		writeError(w, http.StatusBadRequest, "from and to required")
		return
	}
	if err := h.store.DeleteTransitionRule(r.Context(), from, to); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
