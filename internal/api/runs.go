package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"LeadFlow/internal/campaign"
	"LeadFlow/internal/models"
	"LeadFlow/internal/progress"
	"LeadFlow/internal/sender"
)

var errNoActiveRun = errors.New("no run in progress for this campaign")

type generateRequest struct {
	TemplateID *uuid.UUID `json:"template_id,omitempty"`
}

type sendRequest struct {
	DelaySeconds *int   `json:"delay_seconds,omitempty" validate:"omitempty,gte=0"`
	DailyLimit   *int   `json:"daily_limit,omitempty" validate:"omitempty,gte=0"`
	TestMode     bool   `json:"test_mode"`
	TestEmail    string `json:"test_email,omitempty" validate:"omitempty,email"`
}

func (req sendRequest) config(defaults sender.Config) sender.Config {
	cfg := defaults
	if req.DelaySeconds != nil {
		cfg.DelaySeconds = *req.DelaySeconds
	}
	if req.DailyLimit != nil {
		cfg.DailyLimit = *req.DailyLimit
	}
	cfg.TestMode = req.TestMode
	cfg.TestEmail = req.TestEmail
	return cfg
}

func (h *Handler) StartScraping(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	c, err := h.Store.GetCampaign(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if c.Status != models.CampaignDraft {
		writeError(w, campaign.ErrNotDraft)
		return
	}

	h.start(w, r, id, campaign.RunScrape, nil, func(ctx context.Context) error {
		_, err := h.Pipeline.RunScraping(ctx, id)
		return err
	})
}

func (h *Handler) StartGeneration(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req generateRequest
	if err := decode(r, &req, true); err != nil {
		writeError(w, err)
		return
	}
	if _, err := h.Store.GetCampaign(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	check := func(ctx context.Context) error {
		_, _, err := h.Pipeline.PrepareGeneration(ctx, id, req.TemplateID)
		return err
	}
	h.start(w, r, id, campaign.RunGenerate, check, func(ctx context.Context) error {
		_, err := h.Pipeline.RunGeneration(ctx, id, req.TemplateID)
		if err != nil {
			h.publishFailure(id, err)
		}
		return err
	})
}

func (h *Handler) StartSending(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req sendRequest
	if err := decode(r, &req, true); err != nil {
		writeError(w, err)
		return
	}
	if _, err := h.Store.GetCampaign(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	cfg := req.config(h.SendDefaults)
	check := func(ctx context.Context) error {
		_, err := h.Sender.Prepare(ctx, id, cfg)
		return err
	}
	h.start(w, r, id, campaign.RunSend, check, func(ctx context.Context) error {
		_, err := h.Sender.Run(ctx, id, cfg)
		if err != nil {
			h.publishFailure(id, err)
		}
		return err
	})
}

// Abort cancels the campaign's active run. The sender stops before its next lead.
func (h *Handler) Abort(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if !h.Runs.Abort(id) {
		writeError(w, errNoActiveRun)
		return
	}

	h.Log.Info("run aborted", zap.String("campaign_id", id.String()))
	writeJSON(w, http.StatusAccepted, map[string]bool{"aborted": true})
}

// start claims the campaign and runs fn in the background, detached from the
// request. A non-nil check runs first under the claim; its error is returned to
// the caller and nothing starts.
func (h *Handler) start(w http.ResponseWriter, r *http.Request, id uuid.UUID, kind campaign.RunKind, check, fn func(ctx context.Context) error) {
	ctx, done, err := h.Runs.Begin(context.Background(), id, kind)
	if err != nil {
		writeError(w, err)
		return
	}
	if check != nil {
		if err := check(r.Context()); err != nil {
			done()
			writeError(w, err)
			return
		}
	}

	log := h.Log.With(zap.String("campaign_id", id.String()), zap.String("run", string(kind)))
	go func() {
		defer done()
		if err := fn(ctx); err != nil {
			log.Error("run failed", zap.Error(err))
			return
		}
		log.Info("run finished")
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"campaign_id": id.String(),
		"run":         string(kind),
	})
}

func (h *Handler) publishFailure(id uuid.UUID, err error) {
	h.Hub.Publish(progress.Snapshot{
		CampaignID: id,
		Phase:      progress.PhaseError,
		Message:    err.Error(),
		StartedAt:  time.Now(),
	})
}
