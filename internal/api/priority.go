package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/MikeSquared-Agency/pipedesk/internal/events"
	"github.com/MikeSquared-Agency/pipedesk/internal/scoring"
	"github.com/MikeSquared-Agency/pipedesk/internal/settings"
)

const maxSettingsBody = 64 << 10

type PriorityHandler struct {
	settings *settings.Loader
	events   events.Client
	logger   *slog.Logger
}

func NewPriorityHandler(loader *settings.Loader, ev events.Client, logger *slog.Logger) *PriorityHandler {
	return &PriorityHandler{settings: loader, events: ev, logger: logger}
}

type ScoreRequest struct {
	DaysSinceLastActivity *float64        `json:"days_since_last_activity"`
	HasUpcomingMeeting    bool            `json:"has_upcoming_meeting"`
	Config                json.RawMessage `json:"config,omitempty"`
}

type ScoreResponse struct {
	Score       float64        `json:"score"`
	Bucket      scoring.Bucket `json:"bucket"`
	Description string         `json:"description"`
}

// Score scores ad hoc signals with the active config, or with a draft config
// passed in the request for previewing settings changes.
func (h *PriorityHandler) Score(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var cfg scoring.PriorityConfig
	if len(req.Config) > 0 && !bytes.Equal(req.Config, []byte("null")) {
		cfg, _ = scoring.ParseConfigJSON(req.Config)
	} else {
		var err error
		cfg, err = h.settings.PriorityConfig(r.Context())
		if err != nil {
			h.logger.Warn("priority config unavailable, scoring with defaults", "error", err)
		}
	}

	res := scoring.ComputeScore(scoring.Signals{
		DaysSinceLastActivity: req.DaysSinceLastActivity,
		HasUpcomingMeeting:    req.HasUpcomingMeeting,
	}, cfg)
	writeJSON(w, http.StatusOK, ScoreResponse{
		Score:       res.Score,
		Bucket:      res.Bucket,
		Description: cfg.Descriptions.For(res.Bucket),
	})
}

func (h *PriorityHandler) Get(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.settings.PriorityConfig(r.Context())
	if err != nil {
		h.logger.Warn("priority config unavailable, serving defaults", "error", err)
	}
	writeJSON(w, http.StatusOK, cfg)
}

type ValidateResponse struct {
	scoring.ValidationResult
	Defaulted []string `json:"defaulted"`
}

// Validate checks a draft config without saving it. Fields that are missing
// or of the wrong type are listed in defaulted.
func (h *PriorityHandler) Validate(w http.ResponseWriter, r *http.Request) {
	cfg, defaulted, ok := readConfig(w, r)
	if !ok {
		return
	}
	if defaulted == nil {
		defaulted = []string{}
	}
	writeJSON(w, http.StatusOK, ValidateResponse{
		ValidationResult: scoring.ValidateConfig(cfg),
		Defaulted:        defaulted,
	})
}

// Put replaces the stored config. The body must be a complete config: a
// missing or mistyped field is rejected rather than filled from defaults.
// Every problem is reported with 422.
func (h *PriorityHandler) Put(w http.ResponseWriter, r *http.Request) {
	cfg, defaulted, ok := readConfig(w, r)
	if !ok {
		return
	}

	res := scoring.ValidateConfig(cfg)
	if len(defaulted) > 0 {
		for _, f := range defaulted {
			res.Errors = append(res.Errors, f+" is missing or has the wrong type")
		}
		res.Valid = false
		writeJSON(w, http.StatusUnprocessableEntity, ValidateResponse{ValidationResult: res, Defaulted: defaulted})
		return
	}

	user := userID(r)
	res, err := h.settings.SavePriorityConfig(r.Context(), cfg, user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !res.Valid {
		writeJSON(w, http.StatusUnprocessableEntity, ValidateResponse{ValidationResult: res, Defaulted: []string{}})
		return
	}

	_ = h.events.Publish(events.SubjectPriorityConfigUpdated, events.PriorityConfigUpdatedEvent{
		UpdatedBy: user,
		UpdatedAt: time.Now().UTC(),
	})
	writeJSON(w, http.StatusOK, cfg)
}

// readConfig reads a config body leniently. Only a body that is not JSON at
// all is rejected.
func readConfig(w http.ResponseWriter, r *http.Request) (scoring.PriorityConfig, []string, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSettingsBody))
	if err != nil || !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return scoring.PriorityConfig{}, nil, false
	}
	cfg, defaulted := scoring.ParseConfigJSON(body)
	return cfg, defaulted, true
}
