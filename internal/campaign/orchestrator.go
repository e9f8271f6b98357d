package campaign

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"LeadFlow/internal/extractor"
	"LeadFlow/internal/generator"
	"LeadFlow/internal/metrics"
	"LeadFlow/internal/models"
	"LeadFlow/internal/places"
	"LeadFlow/internal/progress"
)

type Store interface {
	GetCampaign(ctx context.Context, id uuid.UUID) (models.Campaign, error)
	UpdateCampaignStatus(ctx context.Context, id uuid.UUID, status models.CampaignStatus) error
	SetLeadsFound(ctx context.Context, id uuid.UUID, n int) error

	InsertLeads(ctx context.Context, leads []models.Lead) (int, error)
	ListLeads(ctx context.Context, campaignID uuid.UUID) ([]models.Lead, error)
	CountLeads(ctx context.Context, campaignID uuid.UUID) (int, error)
	SaveGenerated(ctx context.Context, leadID uuid.UUID, subject, html string) error
	MarkLeadError(ctx context.Context, leadID uuid.UUID, errorMsg string) error

	GetTemplate(ctx context.Context, id uuid.UUID) (models.EmailTemplate, error)
	DefaultTemplate(ctx context.Context, userID string) (models.EmailTemplate, error)
}

type PlaceSearcher interface {
	Search(ctx context.Context, q places.Query, keep places.Filter, target int) (places.Result, error)
}

type EmailFinder interface {
	ExtractAll(ctx context.Context, leads []models.Lead, onLead func(done, total int, lead models.Lead)) ([]models.Lead, []extractor.Result, error)
}

type ContentGenerator interface {
	Generate(ctx context.Context, lead models.Lead, tmpl models.EmailTemplate) (generator.Content, error)
}

// Orchestrator drives a campaign through its pipeline phases.
type Orchestrator struct {
	store     Store
	places    PlaceSearcher
	emails    EmailFinder
	generator ContentGenerator
	hub       *progress.Hub
	log       *zap.Logger
}

// New wires an orchestrator. gen may be nil when no LLM is configured; generation then fails fast.
func New(store Store, searcher PlaceSearcher, finder EmailFinder, gen ContentGenerator, hub *progress.Hub, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		store:     store,
		places:    searcher,
		emails:    finder,
		generator: gen,
		hub:       hub,
		log:       logger,
	}
}

type ScrapeSummary struct {
	PlacesFound   int    `json:"places_found"`
	EmailsFound   int    `json:"emails_found"`
	LeadsSaved    int    `json:"leads_saved"`
	LeadsFound    int    `json:"leads_found"`
	NextPageToken string `json:"next_page_token,omitempty"`
}

// RunScraping searches places, finds their emails and stores the leads in a
// single insert. On any failure the campaign is put back to draft and
// nothing is persisted.
func (o *Orchestrator) RunScraping(ctx context.Context, campaignID uuid.UUID) (ScrapeSummary, error) {
	c, err := o.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return ScrapeSummary{}, err
	}
	if c.Status != models.CampaignDraft {
		return ScrapeSummary{}, fmt.Errorf("%w: campaign is %s", ErrNotDraft, c.Status)
	}

	log := o.log.With(zap.String("campaign_id", campaignID.String()))
	started := time.Now()

	sum, err := o.scrape(ctx, log, c, started)
	if err != nil {
		rollbackCtx := context.WithoutCancel(ctx)
		if rbErr := o.store.UpdateCampaignStatus(rollbackCtx, campaignID, models.CampaignDraft); rbErr != nil {
			log.Error("failed to roll back campaign status", zap.Error(rbErr))
		}
		o.publish(c.ID, progress.PhaseError, 0, 0, "", err.Error(), started)
		log.Error("scraping failed", zap.Error(err))
		return ScrapeSummary{}, err
	}
	return sum, nil
}

func (o *Orchestrator) scrape(ctx context.Context, log *zap.Logger, c models.Campaign, started time.Time) (ScrapeSummary, error) {
	var sum ScrapeSummary

	// ----------------------------
	// Places
	// ----------------------------
	if err := o.store.UpdateCampaignStatus(ctx, c.ID, models.CampaignScraping); err != nil {
		return sum, err
	}
	o.publish(c.ID, progress.PhasePlaces, 0, c.Search.Count, "", "Buscando negocios", started)

	query := places.Query{Text: places.QueryFor(c.Search.Sector, c.Search.Location)}
	res, err := o.places.Search(ctx, query, places.FilterFor(c.Search.Filters), c.Search.Count)
	if err != nil {
		return sum, fmt.Errorf("place search: %w", err)
	}
	sum.PlacesFound = len(res.Places)
	sum.NextPageToken = res.NextPageToken

	leads := make([]models.Lead, 0, len(res.Places))
	for _, p := range res.Places {
		leads = append(leads, leadFromPlace(c, p))
	}
	log.Info("places found", zap.Int("places", len(leads)), zap.String("query", query.Text))
	o.publish(c.ID, progress.PhasePlaces, len(leads), c.Search.Count, "",
		fmt.Sprintf("%d negocios encontrados", len(leads)), started)

	// ----------------------------
	// Emails
	// ----------------------------
	if err := o.store.UpdateCampaignStatus(ctx, c.ID, models.CampaignFindingEmails); err != nil {
		return sum, err
	}
	o.publish(c.ID, progress.PhaseEmails, 0, len(leads), "", "Buscando emails", started)

	leads, _, err = o.emails.ExtractAll(ctx, leads, func(done, total int, lead models.Lead) {
		o.publish(c.ID, progress.PhaseEmails, done, total, lead.Name, "Buscando emails", started)
	})
	if err != nil {
		return sum, fmt.Errorf("email extraction: %w", err)
	}
	for _, l := range leads {
		if l.HasEmail() {
			sum.EmailsFound++
		}
	}

	if c.Search.Filters.RequireEmail {
		kept := leads[:0]
		for _, l := range leads {
			if l.HasEmail() {
				kept = append(kept, l)
			}
		}
		leads = kept
	}

	// ----------------------------
	// Save
	// ----------------------------
	o.publish(c.ID, progress.PhaseSaving, 0, len(leads), "", "Guardando leads", started)

	saved, err := o.store.InsertLeads(ctx, leads)
	if err != nil {
		return sum, fmt.Errorf("save leads: %w", err)
	}
	sum.LeadsSaved = saved
	metrics.LeadsScraped.Add(float64(saved))

	count, err := o.store.CountLeads(ctx, c.ID)
	if err != nil {
		return sum, fmt.Errorf("count leads: %w", err)
	}
	if err := o.store.SetLeadsFound(ctx, c.ID, count); err != nil {
		return sum, err
	}
	sum.LeadsFound = count

	if err := o.store.UpdateCampaignStatus(ctx, c.ID, models.CampaignReady); err != nil {
		return sum, err
	}

	o.publish(c.ID, progress.PhaseDone, saved, saved, "",
		fmt.Sprintf("%d leads guardados, %d con email", saved, sum.EmailsFound), started)
	log.Info("scraping finished",
		zap.Int("places", sum.PlacesFound),
		zap.Int("emails", sum.EmailsFound),
		zap.Int("saved", saved),
	)
	return sum, nil
}

func leadFromPlace(c models.Campaign, p places.Place) models.Lead {
	return models.Lead{
		CampaignID:  c.ID,
		Name:        p.Name(),
		Category:    p.Category(),
		Address:     strings.TrimSpace(p.FormattedAddress),
		Location:    c.Search.Location,
		Phone:       p.Phone(),
		Website:     strings.TrimSpace(p.WebsiteURI),
		Rating:      p.Rating,
		ReviewCount: p.UserRatingCount,
		Status:      models.LeadPending,
	}
}

func (o *Orchestrator) publish(id uuid.UUID, phase progress.Phase, current, total int, lead, msg string, started time.Time) {
	o.hub.Publish(progress.Snapshot{
		CampaignID: id,
		Phase:      phase,
		Current:    current,
		Total:      total,
		LeadName:   lead,
		Message:    msg,
		StartedAt:  started,
	})
}
