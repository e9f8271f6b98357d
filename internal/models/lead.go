package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type LeadStatus string

const (
	LeadPending   LeadStatus = "pending"
	LeadGenerated LeadStatus = "generated"
	LeadSent      LeadStatus = "sent"
	LeadError     LeadStatus = "error"
)

func ParseLeadStatus(s string) (LeadStatus, error) {
	switch st := LeadStatus(s); st {
	case LeadPending, LeadGenerated, LeadSent, LeadError:
		return st, nil
	}
	return "", fmt.Errorf("unknown lead status %q", s)
}

// CanAdvanceTo reports whether a lead may move from s to next.
// Regeneration (generated or error back to generated) is allowed; sent is terminal.
func (s LeadStatus) CanAdvanceTo(next LeadStatus) bool {
	switch next {
	case LeadGenerated:
		return s == LeadPending || s == LeadGenerated || s == LeadError
	case LeadSent:
		return s == LeadGenerated
	case LeadError:
		return s == LeadPending || s == LeadGenerated
	}
	return false
}

// PreviousFor lists the statuses a lead may hold before moving to next.
func PreviousFor(next LeadStatus) []LeadStatus {
	var out []LeadStatus
	for _, s := range []LeadStatus{LeadPending, LeadGenerated, LeadSent, LeadError} {
		if s.CanAdvanceTo(next) {
			out = append(out, s)
		}
	}
	return out
}

// Lead is one discovered business. Optional text fields are empty when unknown.
type Lead struct {
	ID         uuid.UUID `json:"id"`
	CampaignID uuid.UUID `json:"campaign_id"`

	Name     string `json:"name"`
	Category string `json:"category"`
	Address  string `json:"address"`
	Location string `json:"location"`
	Phone    string `json:"phone,omitempty"`
	Website  string `json:"website,omitempty"`
	Email    string `json:"email,omitempty"`

	Rating      *float64 `json:"rating,omitempty"`
	ReviewCount *int     `json:"review_count,omitempty"`

	Subject string     `json:"subject,omitempty"`
	HTML    string     `json:"html,omitempty"`
	Status  LeadStatus `json:"status"`

	ErrorMsg string     `json:"error_msg,omitempty"`
	SentAt   *time.Time `json:"sent_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (l Lead) HasWebsite() bool { return l.Website != "" }
func (l Lead) HasEmail() bool   { return l.Email != "" }
