package api

import (
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"LeadFlow/internal/campaign"
	"LeadFlow/internal/csvparser"
	"LeadFlow/internal/models"
	"LeadFlow/internal/progress"
)

const maxImportBytes = 5 << 20

type createCampaignRequest struct {
	UserID string              `json:"user_id" validate:"required"`
	Name   string              `json:"name" validate:"required"`
	Search models.SearchConfig `json:"search"`
}

func (h *Handler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req createCampaignRequest
	if err := decode(r, &req, false); err != nil {
		writeError(w, err)
		return
	}

	c := models.Campaign{
		UserID: req.UserID,
		Name:   strings.TrimSpace(req.Name),
		Status: models.CampaignDraft,
		Search: req.Search,
	}
	if err := h.Store.CreateCampaign(r.Context(), &c); err != nil {
		writeError(w, err)
		return
	}

	h.Log.Info("campaign created", zap.String("campaign_id", c.ID.String()), zap.String("user_id", c.UserID))
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, badRequest("user_id is required"))
		return
	}

	list, err := h.Store.ListCampaigns(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []models.Campaign{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) GetCampaign(w http.ResponseWriter, r *http.Request) {
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

	resp := struct {
		models.Campaign
		ActiveRun campaign.RunKind   `json:"active_run,omitempty"`
		Progress  *progress.Snapshot `json:"progress,omitempty"`
	}{Campaign: c}
	resp.ActiveRun, _ = h.Runs.Active(id)
	if snap, ok := h.Hub.Last(id); ok {
		resp.Progress = &snap
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	// Claiming the campaign keeps a run from starting while it is removed.
	_, done, err := h.Runs.Begin(r.Context(), id, campaign.RunDelete)
	if err != nil {
		writeError(w, err)
		return
	}
	defer done()

	if err := h.Store.DeleteCampaign(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	h.Hub.Forget(id)
	h.Log.Info("campaign deleted", zap.String("campaign_id", id.String()))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListLeads(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := h.Store.GetCampaign(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	leads, err := h.Store.ListLeads(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if leads == nil {
		leads = []models.Lead{}
	}
	writeJSON(w, http.StatusOK, leads)
}

func (h *Handler) ExportLeads(w http.ResponseWriter, r *http.Request) {
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

	leads, err := h.Store.ListLeads(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="leads-%s.csv"`, c.ID))
	if err := csvparser.WriteLeads(w, leads); err != nil {
		h.Log.Error("csv export failed", zap.String("campaign_id", id.String()), zap.Error(err))
	}
}

// ImportLeads appends leads from a CSV body. A draft campaign becomes ready.
func (h *Handler) ImportLeads(w http.ResponseWriter, r *http.Request) {
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

	_, done, err := h.Runs.Begin(r.Context(), id, campaign.RunImport)
	if err != nil {
		writeError(w, err)
		return
	}
	defer done()

	leads, err := csvparser.ParseLeadRows(http.MaxBytesReader(w, r.Body, maxImportBytes), csvparser.DefaultMaxRows)
	if err != nil {
		writeError(w, badRequest("%v", err))
		return
	}
	for i := range leads {
		leads[i].CampaignID = id
		if leads[i].Location == "" {
			leads[i].Location = c.Search.Location
		}
	}

	inserted, err := h.Store.InsertLeads(r.Context(), leads)
	if err != nil {
		writeError(w, err)
		return
	}
	count, err := h.Store.CountLeads(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.Store.SetLeadsFound(r.Context(), id, count); err != nil {
		writeError(w, err)
		return
	}
	if c.Status == models.CampaignDraft {
		if err := h.Store.UpdateCampaignStatus(r.Context(), id, models.CampaignReady); err != nil {
			writeError(w, err)
			return
		}
	}

	h.Log.Info("leads imported", zap.String("campaign_id", id.String()), zap.Int("imported", inserted))
	writeJSON(w, http.StatusOK, map[string]int{
		"imported":    inserted,
		"leads_found": count,
	})
}
