package db

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"LeadFlow/internal/models"
)

// Rows are scanned into these raw shapes first and only become model values
// after parsing, so a bad row never reaches the pipeline.

type campaignRow struct {
	ID         string
	UserID     string
	Name       string
	Status     string
	Search     []byte
	LeadsFound int
	EmailsSent int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (r campaignRow) parse() (models.Campaign, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return models.Campaign{}, fmt.Errorf("%w: campaign id %q: %v", ErrInvalidRow, r.ID, err)
	}
	status, err := models.ParseCampaignStatus(r.Status)
	if err != nil {
		return models.Campaign{}, fmt.Errorf("%w: campaign %s: %v", ErrInvalidRow, id, err)
	}
	var search models.SearchConfig
	if len(r.Search) > 0 {
		if err := json.Unmarshal(r.Search, &search); err != nil {
			return models.Campaign{}, fmt.Errorf("%w: campaign %s search config: %v", ErrInvalidRow, id, err)
		}
	}
	if r.LeadsFound < 0 || r.EmailsSent < 0 {
		return models.Campaign{}, fmt.Errorf("%w: campaign %s negative counters", ErrInvalidRow, id)
	}

	return models.Campaign{
		ID:         id,
		UserID:     r.UserID,
		Name:       r.Name,
		Status:     status,
		Search:     search,
		LeadsFound: r.LeadsFound,
		EmailsSent: r.EmailsSent,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}, nil
}

type leadRow struct {
	ID          string
	CampaignID  string
	Name        string
	Category    *string
	Address     *string
	Location    *string
	Phone       *string
	Website     *string
	Email       *string
	Rating      *float64
	ReviewCount *int32
	Subject     *string
	HTML        *string
	Status      string
	ErrorMsg    *string
	SentAt      *time.Time
	CreatedAt   time.Time
}

func (r leadRow) parse() (models.Lead, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return models.Lead{}, fmt.Errorf("%w: lead id %q: %v", ErrInvalidRow, r.ID, err)
	}
	campaignID, err := uuid.Parse(r.CampaignID)
	if err != nil {
		return models.Lead{}, fmt.Errorf("%w: lead %s campaign id: %v", ErrInvalidRow, id, err)
	}
	status, err := models.ParseLeadStatus(r.Status)
	if err != nil {
		return models.Lead{}, fmt.Errorf("%w: lead %s: %v", ErrInvalidRow, id, err)
	}
	if status == models.LeadSent && r.SentAt == nil {
		return models.Lead{}, fmt.Errorf("%w: lead %s sent without timestamp", ErrInvalidRow, id)
	}

	l := models.Lead{
		ID:         id,
		CampaignID: campaignID,
		Name:       r.Name,
		Category:   deref(r.Category),
		Address:    deref(r.Address),
		Location:   deref(r.Location),
		Phone:      deref(r.Phone),
		Website:    deref(r.Website),
		Email:      strings.TrimSpace(deref(r.Email)),
		Rating:     r.Rating,
		Subject:    deref(r.Subject),
		HTML:       deref(r.HTML),
		Status:     status,
		ErrorMsg:   deref(r.ErrorMsg),
		SentAt:     r.SentAt,
		CreatedAt:  r.CreatedAt,
	}
	if r.ReviewCount != nil {
		n := int(*r.ReviewCount)
		l.ReviewCount = &n
	}
	return l, nil
}

type templateRow struct {
	ID        string
	UserID    string
	Name      string
	Subject   *string
	HTML      string
	IsDefault bool
	CreatedAt time.Time
}

func (r templateRow) parse() (models.EmailTemplate, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return models.EmailTemplate{}, fmt.Errorf("%w: template id %q: %v", ErrInvalidRow, r.ID, err)
	}
	if strings.TrimSpace(r.HTML) == "" {
		return models.EmailTemplate{}, fmt.Errorf("%w: template %s has empty html", ErrInvalidRow, id)
	}
	return models.EmailTemplate{
		ID:        id,
		UserID:    r.UserID,
		Name:      r.Name,
		Subject:   deref(r.Subject),
		HTML:      r.HTML,
		IsDefault: r.IsDefault,
		CreatedAt: r.CreatedAt,
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
