package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"LeadFlow/internal/models"
)

const templateColumns = `id, user_id, name, subject, html, is_default, created_at`

// CreateTemplate stores t. When t is the default, the user's previous default is cleared in the same transaction.
func (s *Store) CreateTemplate(ctx context.Context, t *models.EmailTemplate) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if t.IsDefault {
		if _, err := tx.Exec(ctx,
			`UPDATE email_templates SET is_default=false WHERE user_id=$1 AND is_default`,
			t.UserID,
		); err != nil {
			return err
		}
	}

	if err := tx.QueryRow(ctx,
		`INSERT INTO email_templates (id, user_id, name, subject, html, is_default, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,NOW())
		 RETURNING created_at`,
		t.ID, t.UserID, t.Name, nullable(t.Subject), t.HTML, t.IsDefault,
	).Scan(&t.CreatedAt); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *Store) GetTemplate(ctx context.Context, id uuid.UUID) (models.EmailTemplate, error) {
	return s.oneTemplate(ctx, `SELECT `+templateColumns+` FROM email_templates WHERE id=$1`, id)
}

func (s *Store) DefaultTemplate(ctx context.Context, userID string) (models.EmailTemplate, error) {
	return s.oneTemplate(ctx,
		`SELECT `+templateColumns+` FROM email_templates WHERE user_id=$1 AND is_default LIMIT 1`,
		userID,
	)
}

func (s *Store) ListTemplates(ctx context.Context, userID string) ([]models.EmailTemplate, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT `+templateColumns+` FROM email_templates WHERE user_id=$1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.EmailTemplate
	for rows.Next() {
		var r templateRow
		if err := rows.Scan(&r.ID, &r.UserID, &r.Name, &r.Subject, &r.HTML, &r.IsDefault, &r.CreatedAt); err != nil {
			return nil, err
		}
		t, err := r.parse()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) oneTemplate(ctx context.Context, sql string, arg any) (models.EmailTemplate, error) {
	var r templateRow
	err := s.Pool.QueryRow(ctx, sql, arg).Scan(&r.ID, &r.UserID, &r.Name, &r.Subject, &r.HTML, &r.IsDefault, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.EmailTemplate{}, fmt.Errorf("template: %w", ErrNotFound)
	}
	if err != nil {
		return models.EmailTemplate{}, err
	}
	return r.parse()
}
