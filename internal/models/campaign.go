package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type CampaignStatus string

const (
	CampaignDraft         CampaignStatus = "draft"
	CampaignScraping      CampaignStatus = "scraping"
	CampaignFindingEmails CampaignStatus = "finding_emails"
	CampaignReady         CampaignStatus = "ready"
	CampaignGenerating    CampaignStatus = "generating"
	CampaignSending       CampaignStatus = "sending"
	CampaignCompleted     CampaignStatus = "completed"
)

// ParseCampaignStatus rejects anything outside the campaign status vocabulary.
func ParseCampaignStatus(s string) (CampaignStatus, error) {
	switch st := CampaignStatus(s); st {
	case CampaignDraft, CampaignScraping, CampaignFindingEmails, CampaignReady,
		CampaignGenerating, CampaignSending, CampaignCompleted:
		return st, nil
	}
	return "", fmt.Errorf("unknown campaign status %q", s)
}

// Filters narrow the leads kept from a place search.
type Filters struct {
	RequireEmail   bool    `json:"require_email"`
	RequireWebsite bool    `json:"require_website"`
	MinRating      float64 `json:"min_rating,omitempty" validate:"gte=0,lte=5"`
}

type SearchConfig struct {
	Sector   string  `json:"sector" validate:"required"`
	Location string  `json:"location" validate:"required"`
	Count    int     `json:"count" validate:"gte=1,lte=200"`
	Filters  Filters `json:"filters"`
}

type Campaign struct {
	ID     uuid.UUID      `json:"id"`
	UserID string         `json:"user_id"`
	Name   string         `json:"name"`
	Status CampaignStatus `json:"status"`
	Search SearchConfig   `json:"search"`

	LeadsFound int `json:"leads_found"`
	EmailsSent int `json:"emails_sent"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
