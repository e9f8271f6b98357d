// Package storetest provides an in-memory store with the same semantics as
// db.Store for use in tests.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"LeadFlow/internal/db"
	"LeadFlow/internal/models"
)

type Memory struct {
	mu        sync.Mutex
	campaigns map[uuid.UUID]models.Campaign
	leads     map[uuid.UUID]models.Lead
	order     []uuid.UUID
	templates map[uuid.UUID]models.EmailTemplate

	// InsertErr, when set, is returned by InsertLeads without storing anything.
	InsertErr error
	// StatusHistory records every campaign status written, in order.
	StatusHistory []models.CampaignStatus
}

func New() *Memory {
	return &Memory{
		campaigns: make(map[uuid.UUID]models.Campaign),
		leads:     make(map[uuid.UUID]models.Lead),
		templates: make(map[uuid.UUID]models.EmailTemplate),
	}
}

func (m *Memory) CreateCampaign(_ context.Context, c *models.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = models.CampaignDraft
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	m.campaigns[c.ID] = *c
	return nil
}

func (m *Memory) GetCampaign(_ context.Context, id uuid.UUID) (models.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.campaigns[id]
	if !ok {
		return models.Campaign{}, fmt.Errorf("campaign %s: %w", id, db.ErrNotFound)
	}
	return c, nil
}

func (m *Memory) ListCampaigns(_ context.Context, userID string) ([]models.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Campaign
	for _, c := range m.campaigns {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) UpdateCampaignStatus(_ context.Context, id uuid.UUID, status models.CampaignStatus) error {
	return m.updateCampaign(id, func(c *models.Campaign) {
		c.Status = status
		m.StatusHistory = append(m.StatusHistory, status)
	})
}

func (m *Memory) SetLeadsFound(_ context.Context, id uuid.UUID, n int) error {
	return m.updateCampaign(id, func(c *models.Campaign) { c.LeadsFound = n })
}

func (m *Memory) SetEmailsSent(_ context.Context, id uuid.UUID, n int) error {
	return m.updateCampaign(id, func(c *models.Campaign) { c.EmailsSent = n })
}

func (m *Memory) DeleteCampaign(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.campaigns[id]; !ok {
		return db.ErrNotFound
	}
	delete(m.campaigns, id)

	kept := m.order[:0]
	for _, lid := range m.order {
		if m.leads[lid].CampaignID == id {
			delete(m.leads, lid)
			continue
		}
		kept = append(kept, lid)
	}
	m.order = kept
	return nil
}

func (m *Memory) updateCampaign(id uuid.UUID, fn func(*models.Campaign)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.campaigns[id]
	if !ok {
		return db.ErrNotFound
	}
	fn(&c)
	c.UpdatedAt = time.Now().UTC()
	m.campaigns[id] = c
	return nil
}

func (m *Memory) InsertLeads(_ context.Context, leads []models.Lead) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.InsertErr != nil {
		return 0, m.InsertErr
	}
	now := time.Now().UTC()
	for i := range leads {
		l := &leads[i]
		if l.CampaignID == uuid.Nil {
			return 0, fmt.Errorf("lead %q has no campaign", l.Name)
		}
	}
	for i := range leads {
		l := &leads[i]
		if l.ID == uuid.Nil {
			l.ID = uuid.New()
		}
		if l.Status == "" {
			l.Status = models.LeadPending
		}
		l.CreatedAt = now
		m.leads[l.ID] = *l
		m.order = append(m.order, l.ID)
	}
	return len(leads), nil
}

func (m *Memory) ListLeads(_ context.Context, campaignID uuid.UUID) ([]models.Lead, error) {
	return m.filterLeads(func(l models.Lead) bool { return l.CampaignID == campaignID }), nil
}

func (m *Memory) ListSendableLeads(_ context.Context, campaignID uuid.UUID) ([]models.Lead, error) {
	return m.filterLeads(func(l models.Lead) bool {
		return l.CampaignID == campaignID &&
			l.Status == models.LeadGenerated &&
			strings.TrimSpace(l.Email) != ""
	}), nil
}

func (m *Memory) CountLeads(ctx context.Context, campaignID uuid.UUID) (int, error) {
	leads, _ := m.ListLeads(ctx, campaignID)
	return len(leads), nil
}

func (m *Memory) CountLeadsByStatus(_ context.Context, campaignID uuid.UUID, status models.LeadStatus) (int, error) {
	return len(m.filterLeads(func(l models.Lead) bool {
		return l.CampaignID == campaignID && l.Status == status
	})), nil
}

func (m *Memory) SaveGenerated(_ context.Context, leadID uuid.UUID, subject, html string) error {
	return m.transition(leadID, models.LeadGenerated, func(l *models.Lead) {
		l.Subject = subject
		l.HTML = html
		l.ErrorMsg = ""
	})
}

func (m *Memory) MarkLeadSent(_ context.Context, leadID uuid.UUID, at time.Time) error {
	return m.transition(leadID, models.LeadSent, func(l *models.Lead) {
		l.SentAt = &at
		l.ErrorMsg = ""
	})
}

func (m *Memory) MarkLeadError(_ context.Context, leadID uuid.UUID, errorMsg string) error {
	return m.transition(leadID, models.LeadError, func(l *models.Lead) {
		l.ErrorMsg = errorMsg
	})
}

// Lead returns a stored lead by id, for assertions.
func (m *Memory) Lead(id uuid.UUID) (models.Lead, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[id]
	return l, ok
}

// PutLead stores l as-is, bypassing transition checks.
func (m *Memory) PutLead(l models.Lead) models.Lead {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	if _, exists := m.leads[l.ID]; !exists {
		m.order = append(m.order, l.ID)
	}
	m.leads[l.ID] = l
	return l
}

func (m *Memory) transition(id uuid.UUID, to models.LeadStatus, fn func(*models.Lead)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.leads[id]
	if !ok || !l.Status.CanAdvanceTo(to) {
		return fmt.Errorf("lead %s -> %s: %w", id, to, db.ErrInvalidTransition)
	}
	l.Status = to
	fn(&l)
	m.leads[id] = l
	return nil
}

func (m *Memory) filterLeads(keep func(models.Lead) bool) []models.Lead {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Lead
	for _, id := range m.order {
		if l := m.leads[id]; keep(l) {
			out = append(out, l)
		}
	}
	return out
}

func (m *Memory) CreateTemplate(_ context.Context, t *models.EmailTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.IsDefault {
		for id, other := range m.templates {
			if other.UserID == t.UserID && other.IsDefault {
				other.IsDefault = false
				m.templates[id] = other
			}
		}
	}
	t.CreatedAt = time.Now().UTC()
	m.templates[t.ID] = *t
	return nil
}

func (m *Memory) GetTemplate(_ context.Context, id uuid.UUID) (models.EmailTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.templates[id]
	if !ok {
		return models.EmailTemplate{}, fmt.Errorf("template: %w", db.ErrNotFound)
	}
	return t, nil
}

func (m *Memory) DefaultTemplate(_ context.Context, userID string) (models.EmailTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.templates {
		if t.UserID == userID && t.IsDefault {
			return t, nil
		}
	}
	return models.EmailTemplate{}, fmt.Errorf("template: %w", db.ErrNotFound)
}

func (m *Memory) ListTemplates(_ context.Context, userID string) ([]models.EmailTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.EmailTemplate
	for _, t := range m.templates {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
