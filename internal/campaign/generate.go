package campaign

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"LeadFlow/internal/db"
	"LeadFlow/internal/metrics"
	"LeadFlow/internal/models"
	"LeadFlow/internal/progress"
	"LeadFlow/internal/templates"
)

type GenerateSummary struct {
	Total     int  `json:"total"`
	Generated int  `json:"generated"`
	Failed    int  `json:"failed"`
	Aborted   bool `json:"aborted"`
}

// PrepareGeneration checks that generation can start and returns the template
// and the leads it would write for.
func (o *Orchestrator) PrepareGeneration(ctx context.Context, campaignID uuid.UUID, templateID *uuid.UUID) (models.EmailTemplate, []models.Lead, error) {
	if o.generator == nil {
		return models.EmailTemplate{}, nil, ErrNoGenerator
	}

	c, err := o.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return models.EmailTemplate{}, nil, err
	}
	tmpl, err := o.template(ctx, c.UserID, templateID)
	if err != nil {
		return models.EmailTemplate{}, nil, err
	}

	all, err := o.store.ListLeads(ctx, campaignID)
	if err != nil {
		return models.EmailTemplate{}, nil, fmt.Errorf("load leads: %w", err)
	}
	var leads []models.Lead
	for _, l := range all {
		if l.HasEmail() && l.Status.CanAdvanceTo(models.LeadGenerated) && l.Status != models.LeadGenerated {
			leads = append(leads, l)
		}
	}
	if len(leads) == 0 {
		return models.EmailTemplate{}, nil, ErrNoLeadsToGenerate
	}
	return tmpl, leads, nil
}

// RunGeneration writes a subject and body for every pending or failed lead
// that has an email. A nil templateID selects the user's default template,
// falling back to the built-in one.
func (o *Orchestrator) RunGeneration(ctx context.Context, campaignID uuid.UUID, templateID *uuid.UUID) (GenerateSummary, error) {
	tmpl, leads, err := o.PrepareGeneration(ctx, campaignID, templateID)
	if err != nil {
		return GenerateSummary{}, err
	}

	if err := o.store.UpdateCampaignStatus(ctx, campaignID, models.CampaignGenerating); err != nil {
		return GenerateSummary{}, err
	}

	log := o.log.With(zap.String("campaign_id", campaignID.String()), zap.String("template", tmpl.Name))
	log.Info("generation started", zap.Int("leads", len(leads)))

	started := time.Now()
	sum := GenerateSummary{Total: len(leads)}
	writeCtx := context.WithoutCancel(ctx)

	for i, lead := range leads {
		if ctx.Err() != nil {
			sum.Aborted = true
			break
		}

		content, err := o.generator.Generate(ctx, lead, tmpl)
		switch {
		case err != nil && ctx.Err() != nil:
			sum.Aborted = true
		case err != nil:
			sum.Failed++
			metrics.GenerationFailures.Inc()
			log.Warn("generation failed", zap.String("lead", lead.Name), zap.Error(err))
			if dbErr := o.store.MarkLeadError(writeCtx, lead.ID, err.Error()); dbErr != nil {
				log.Error("failed to update failure status", zap.String("lead_id", lead.ID.String()), zap.Error(dbErr))
			}
		default:
			if dbErr := o.store.SaveGenerated(writeCtx, lead.ID, content.Subject, content.HTML); dbErr != nil {
				sum.Failed++
				log.Error("failed to store generated content", zap.String("lead_id", lead.ID.String()), zap.Error(dbErr))
				break
			}
			sum.Generated++
			metrics.ContentsGenerated.Inc()
		}
		if sum.Aborted {
			break
		}

		o.hub.Publish(progress.Snapshot{
			CampaignID: campaignID,
			Phase:      progress.PhaseGenerating,
			Current:    i + 1,
			Total:      sum.Total,
			Sent:       sum.Generated,
			Failed:     sum.Failed,
			LeadName:   lead.Name,
			Message:    fmt.Sprintf("Generados %d de %d", sum.Generated, sum.Total),
			StartedAt:  started,
		})
	}

	if err := o.store.UpdateCampaignStatus(writeCtx, campaignID, models.CampaignReady); err != nil {
		return sum, err
	}

	o.hub.Publish(progress.Snapshot{
		CampaignID: campaignID,
		Phase:      progress.PhaseDone,
		Current:    sum.Generated + sum.Failed,
		Total:      sum.Total,
		Sent:       sum.Generated,
		Failed:     sum.Failed,
		Message:    fmt.Sprintf("%d emails generados, %d con error", sum.Generated, sum.Failed),
		StartedAt:  started,
	})
	log.Info("generation finished",
		zap.Int("generated", sum.Generated),
		zap.Int("failed", sum.Failed),
		zap.Bool("aborted", sum.Aborted),
	)
	return sum, nil
}

func (o *Orchestrator) template(ctx context.Context, userID string, id *uuid.UUID) (models.EmailTemplate, error) {
	if id != nil {
		return o.store.GetTemplate(ctx, *id)
	}
	t, err := o.store.DefaultTemplate(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		return templates.Default(), nil
	}
	return t, err
}
