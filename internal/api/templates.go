package api

import (
	"net/http"

	"LeadFlow/internal/models"
)

type createTemplateRequest struct {
	UserID    string `json:"user_id" validate:"required"`
	Name      string `json:"name" validate:"required"`
	Subject   string `json:"subject"`
	HTML      string `json:"html" validate:"required"`
	IsDefault bool   `json:"is_default"`
}

func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req createTemplateRequest
	if err := decode(r, &req, false); err != nil {
		writeError(w, err)
		return
	}

	t := models.EmailTemplate{
		UserID:    req.UserID,
		Name:      req.Name,
		Subject:   req.Subject,
		HTML:      req.HTML,
		IsDefault: req.IsDefault,
	}
	if err := h.Store.CreateTemplate(r.Context(), &t); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, badRequest("user_id is required"))
		return
	}

	list, err := h.Store.ListTemplates(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []models.EmailTemplate{}
	}
	writeJSON(w, http.StatusOK, list)
}
