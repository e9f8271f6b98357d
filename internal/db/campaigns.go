package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"LeadFlow/internal/models"
)

const campaignColumns = `id, user_id, name, status, search_config, leads_found, emails_sent, created_at, updated_at`

func (s *Store) CreateCampaign(ctx context.Context, c *models.Campaign) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = models.CampaignDraft
	}

	search, err := json.Marshal(c.Search)
	if err != nil {
		return err
	}

	return s.Pool.QueryRow(ctx,
		`INSERT INTO campaigns
		 (id, user_id, name, status, search_config, leads_found, emails_sent, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,0,0,NOW(),NOW())
		 RETURNING created_at, updated_at`,
		c.ID,
		c.UserID,
		c.Name,
		c.Status,
		search,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (s *Store) GetCampaign(ctx context.Context, id uuid.UUID) (models.Campaign, error) {
	var r campaignRow
	err := s.Pool.QueryRow(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id=$1`,
		id,
	).Scan(&r.ID, &r.UserID, &r.Name, &r.Status, &r.Search, &r.LeadsFound, &r.EmailsSent, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Campaign{}, fmt.Errorf("campaign %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Campaign{}, err
	}
	return r.parse()
}

func (s *Store) ListCampaigns(ctx context.Context, userID string) ([]models.Campaign, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE user_id=$1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Campaign
	for rows.Next() {
		var r campaignRow
		if err := rows.Scan(&r.ID, &r.UserID, &r.Name, &r.Status, &r.Search, &r.LeadsFound, &r.EmailsSent, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		c, err := r.parse()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) UpdateCampaignStatus(ctx context.Context, id uuid.UUID, status models.CampaignStatus) error {
	return s.execOne(ctx,
		`UPDATE campaigns
		 SET status=$1,
		     updated_at=NOW()
		 WHERE id=$2`,
		status,
		id,
	)
}

func (s *Store) SetLeadsFound(ctx context.Context, id uuid.UUID, n int) error {
	return s.execOne(ctx,
		`UPDATE campaigns
		 SET leads_found=$1,
		     updated_at=NOW()
		 WHERE id=$2`,
		n,
		id,
	)
}

func (s *Store) SetEmailsSent(ctx context.Context, id uuid.UUID, n int) error {
	return s.execOne(ctx,
		`UPDATE campaigns
		 SET emails_sent=$1,
		     updated_at=NOW()
		 WHERE id=$2`,
		n,
		id,
	)
}

// DeleteCampaign removes a campaign; its leads go with it through the foreign key cascade.
func (s *Store) DeleteCampaign(ctx context.Context, id uuid.UUID) error {
	return s.execOne(ctx, `DELETE FROM campaigns WHERE id=$1`, id)
}

func (s *Store) execOne(ctx context.Context, sql string, args ...any) error {
	tag, err := s.Pool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
