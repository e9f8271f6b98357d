package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"LeadFlow/internal/models"
)

const leadColumns = `id, campaign_id, name, category, address, location, phone, website, email,
	rating, review_count, subject, html, email_status, error_msg, sent_at, created_at`

var leadCopyColumns = []string{
	"id", "campaign_id", "name", "category", "address", "location", "phone", "website", "email",
	"rating", "review_count", "email_status", "created_at",
}

// InsertLeads writes all leads in one COPY; either every row lands or none does.
func (s *Store) InsertLeads(ctx context.Context, leads []models.Lead) (int, error) {
	if len(leads) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(leads))
	for i := range leads {
		l := &leads[i]
		if l.CampaignID == uuid.Nil {
			return 0, fmt.Errorf("lead %q has no campaign", l.Name)
		}
		if l.ID == uuid.Nil {
			l.ID = uuid.New()
		}
		if l.Status == "" {
			l.Status = models.LeadPending
		}
		l.CreatedAt = now

		var reviews *int32
		if l.ReviewCount != nil {
			n := int32(*l.ReviewCount)
			reviews = &n
		}

		rows = append(rows, []any{
			l.ID,
			l.CampaignID,
			l.Name,
			nullable(l.Category),
			nullable(l.Address),
			nullable(l.Location),
			nullable(l.Phone),
			nullable(l.Website),
			nullable(l.Email),
			l.Rating,
			reviews,
			string(l.Status),
			l.CreatedAt,
		})
	}

	n, err := s.Pool.CopyFrom(ctx, pgx.Identifier{"leads"}, leadCopyColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("bulk insert leads: %w", err)
	}
	return int(n), nil
}

func (s *Store) ListLeads(ctx context.Context, campaignID uuid.UUID) ([]models.Lead, error) {
	return s.queryLeads(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE campaign_id=$1 ORDER BY created_at, id`,
		campaignID,
	)
}

// ListSendableLeads returns generated leads that have an email address.
func (s *Store) ListSendableLeads(ctx context.Context, campaignID uuid.UUID) ([]models.Lead, error) {
	return s.queryLeads(ctx,
		`SELECT `+leadColumns+` FROM leads
		 WHERE campaign_id=$1
		   AND email_status=$2
		   AND email IS NOT NULL AND email <> ''
		 ORDER BY created_at, id`,
		campaignID,
		string(models.LeadGenerated),
	)
}

func (s *Store) CountLeads(ctx context.Context, campaignID uuid.UUID) (int, error) {
	var n int
	err := s.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM leads WHERE campaign_id=$1`, campaignID).Scan(&n)
	return n, err
}

func (s *Store) CountLeadsByStatus(ctx context.Context, campaignID uuid.UUID, status models.LeadStatus) (int, error) {
	var n int
	err := s.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM leads WHERE campaign_id=$1 AND email_status=$2`,
		campaignID,
		string(status),
	).Scan(&n)
	return n, err
}

func (s *Store) SaveGenerated(ctx context.Context, leadID uuid.UUID, subject, html string) error {
	return s.transition(ctx, leadID, models.LeadGenerated,
		`UPDATE leads
		 SET email_status=$1,
		     subject=$2,
		     html=$3,
		     error_msg=NULL
		 WHERE id=$4 AND email_status = ANY($5)`,
		string(models.LeadGenerated), subject, html, leadID, previous(models.LeadGenerated),
	)
}

func (s *Store) MarkLeadSent(ctx context.Context, leadID uuid.UUID, at time.Time) error {
	return s.transition(ctx, leadID, models.LeadSent,
		`UPDATE leads
		 SET email_status=$1,
		     sent_at=$2,
		     error_msg=NULL
		 WHERE id=$3 AND email_status = ANY($4)`,
		string(models.LeadSent), at, leadID, previous(models.LeadSent),
	)
}

func (s *Store) MarkLeadError(ctx context.Context, leadID uuid.UUID, errorMsg string) error {
	return s.transition(ctx, leadID, models.LeadError,
		`UPDATE leads
		 SET email_status=$1,
		     error_msg=$2
		 WHERE id=$3 AND email_status = ANY($4)`,
		string(models.LeadError), errorMsg, leadID, previous(models.LeadError),
	)
}

func (s *Store) transition(ctx context.Context, leadID uuid.UUID, to models.LeadStatus, sql string, args ...any) error {
	tag, err := s.Pool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("lead %s -> %s: %w", leadID, to, ErrInvalidTransition)
	}
	return nil
}

func (s *Store) queryLeads(ctx context.Context, sql string, args ...any) ([]models.Lead, error) {
	rows, err := s.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Lead
	for rows.Next() {
		var r leadRow
		if err := rows.Scan(
			&r.ID, &r.CampaignID, &r.Name, &r.Category, &r.Address, &r.Location, &r.Phone,
			&r.Website, &r.Email, &r.Rating, &r.ReviewCount, &r.Subject, &r.HTML, &r.Status,
			&r.ErrorMsg, &r.SentAt, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		l, err := r.parse()
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func previous(to models.LeadStatus) []string {
	prev := models.PreviousFor(to)
	out := make([]string, len(prev))
	for i, s := range prev {
		out[i] = string(s)
	}
	return out
}
