package campaign

import "errors"

var (
	ErrCampaignBusy      = errors.New("campaign: another run is in progress")
	ErrNotDraft          = errors.New("campaign: scraping only starts from draft")
	ErrNoLeadsToGenerate = errors.New("campaign: no pending leads with an email address")
	ErrNoGenerator       = errors.New("campaign: content generation is not configured")
)
