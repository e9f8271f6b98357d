package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"LeadFlow/internal/campaign"
	"LeadFlow/internal/db"
	"LeadFlow/internal/sender"
)

var validate = validator.New()

type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &validationError{msg: fmt.Sprintf(format, args...)}
}

func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return badRequest("%v", err)
	}

	var msgs []string
	for _, e := range verrs {
		field := strings.ToLower(e.Field())
		switch e.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "email":
			msgs = append(msgs, field+" must be a valid email")
		case "gte":
			msgs = append(msgs, field+" must be at least "+e.Param())
		case "lte":
			msgs = append(msgs, field+" must be at most "+e.Param())
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return badRequest("%s", strings.Join(msgs, ", "))
}

// decode reads a JSON body into v and validates it. An empty body is allowed when optional is set.
func decode(r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return validateStruct(v)
		}
		return badRequest("invalid JSON: %v", err)
	}
	return validateStruct(v)
}

func campaignID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, badRequest("invalid campaign id")
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	var verr *validationError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, sender.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, campaign.ErrCampaignBusy),
		errors.Is(err, campaign.ErrNotDraft),
		errors.Is(err, errNoActiveRun):
		return http.StatusConflict
	case errors.Is(err, sender.ErrNoEligibleLeads),
		errors.Is(err, campaign.ErrNoLeadsToGenerate):
		return http.StatusUnprocessableEntity
	case errors.Is(err, campaign.ErrNoGenerator):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
