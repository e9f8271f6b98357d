package models

import (
	"time"

	"github.com/google/uuid"
)

// EmailTemplate is an HTML skeleton with {{placeholder}} markers.
type EmailTemplate struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Subject   string    `json:"subject"`
	HTML      string    `json:"html"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
}
