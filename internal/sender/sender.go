package sender

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/badoux/checkmail"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"LeadFlow/internal/metrics"
	"LeadFlow/internal/models"
	"LeadFlow/internal/progress"
)

const DefaultSimulatedDelay = 300 * time.Millisecond

var (
	ErrNoEligibleLeads = errors.New("sender: no generated leads with an email address")
	ErrInvalidConfig   = errors.New("sender: invalid configuration")
)

// Config controls one bulk send run.
type Config struct {
	DelaySeconds int    `json:"delay_seconds" validate:"gte=0"`
	DailyLimit   int    `json:"daily_limit" validate:"gte=0"`
	TestMode     bool   `json:"test_mode"`
	TestEmail    string `json:"test_email,omitempty" validate:"omitempty,email"`
}

func (c Config) validate() error {
	if c.DelaySeconds < 0 {
		return fmt.Errorf("%w: negative delay %d", ErrInvalidConfig, c.DelaySeconds)
	}
	if c.TestEmail != "" {
		if err := checkmail.ValidateFormat(c.TestEmail); err != nil {
			return fmt.Errorf("%w: test email %q: %v", ErrInvalidConfig, c.TestEmail, err)
		}
	}
	return nil
}

func (c Config) delay() time.Duration {
	return time.Duration(c.DelaySeconds) * time.Second
}

// Summary describes how a run ended.
type Summary struct {
	Total     int                   `json:"total"`
	Sent      int                   `json:"sent"`
	Failed    int                   `json:"failed"`
	Remaining int                   `json:"remaining"`
	Aborted   bool                  `json:"aborted"`
	Capped    bool                  `json:"capped"`
	Status    models.CampaignStatus `json:"status"`
}

func (s Summary) processed() int { return s.Sent + s.Failed }

// Mailer delivers one message and returns its delivery id.
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) (string, error)
}

type Store interface {
	GetCampaign(ctx context.Context, id uuid.UUID) (models.Campaign, error)
	ListSendableLeads(ctx context.Context, campaignID uuid.UUID) ([]models.Lead, error)
	UpdateCampaignStatus(ctx context.Context, id uuid.UUID, status models.CampaignStatus) error
	MarkLeadSent(ctx context.Context, leadID uuid.UUID, at time.Time) error
	MarkLeadError(ctx context.Context, leadID uuid.UUID, errorMsg string) error
	CountLeadsByStatus(ctx context.Context, campaignID uuid.UUID, status models.LeadStatus) (int, error)
	SetEmailsSent(ctx context.Context, id uuid.UUID, n int) error
}

type Sender struct {
	store  Store
	mailer Mailer
	hub    *progress.Hub
	log    *zap.Logger

	// SimulatedDelay is how long a test-mode send without a recipient pretends to take.
	SimulatedDelay time.Duration
}

func New(store Store, mailer Mailer, hub *progress.Hub, logger *zap.Logger) *Sender {
	return &Sender{
		store:          store,
		mailer:         mailer,
		hub:            hub,
		log:            logger,
		SimulatedDelay: DefaultSimulatedDelay,
	}
}

// Prepare checks that a run with cfg can start and returns the leads it would send.
func (s *Sender) Prepare(ctx context.Context, campaignID uuid.UUID, cfg Config) ([]models.Lead, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if !cfg.TestMode && s.mailer == nil {
		return nil, fmt.Errorf("%w: no mail transport configured", ErrInvalidConfig)
	}
	if _, err := s.store.GetCampaign(ctx, campaignID); err != nil {
		return nil, err
	}

	leads, err := s.store.ListSendableLeads(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("load leads: %w", err)
	}
	if len(leads) == 0 {
		return nil, ErrNoEligibleLeads
	}
	return leads, nil
}

// Run sends every generated lead of a campaign, one at a time. Cancelling ctx
// aborts the run between leads; a send already in flight is allowed to finish.
func (s *Sender) Run(ctx context.Context, campaignID uuid.UUID, cfg Config) (Summary, error) {
	leads, err := s.Prepare(ctx, campaignID, cfg)
	if err != nil {
		return Summary{}, err
	}

	if err := s.store.UpdateCampaignStatus(ctx, campaignID, models.CampaignSending); err != nil {
		return Summary{}, err
	}

	log := s.log.With(zap.String("campaign_id", campaignID.String()))
	log.Info("bulk send started",
		zap.Int("leads", len(leads)),
		zap.Int("daily_limit", cfg.DailyLimit),
		zap.Bool("test_mode", cfg.TestMode),
	)

	started := time.Now()
	sum := Summary{Total: len(leads)}

	for i, lead := range leads {

		// ----------------------------
		// Abort / daily cap
		// ----------------------------
		if ctx.Err() != nil {
			sum.Aborted = true
			break
		}
		if cfg.DailyLimit > 0 && sum.processed() >= cfg.DailyLimit {
			sum.Capped = true
			break
		}

		// ----------------------------
		// Send
		// ----------------------------
		s.sendOne(context.WithoutCancel(ctx), log, cfg, lead, &sum)

		s.hub.Publish(progress.Snapshot{
			CampaignID: campaignID,
			Phase:      progress.PhaseSending,
			Current:    sum.processed(),
			Total:      sum.Total,
			Sent:       sum.Sent,
			Failed:     sum.Failed,
			LeadName:   lead.Name,
			Message:    fmt.Sprintf("Enviados %d de %d", sum.Sent, sum.Total),
			StartedAt:  started,
		})

		// ----------------------------
		// Delay before next lead
		// ----------------------------
		last := i == len(leads)-1
		capped := cfg.DailyLimit > 0 && sum.processed() >= cfg.DailyLimit
		if !last && !capped && !cfg.TestMode {
			sleep(ctx, cfg.delay())
		}
	}

	sum.Remaining = sum.Total - sum.processed()
	if err := s.finish(context.WithoutCancel(ctx), campaignID, &sum); err != nil {
		return sum, err
	}

	s.hub.Publish(progress.Snapshot{
		CampaignID: campaignID,
		Phase:      progress.PhaseDone,
		Current:    sum.processed(),
		Total:      sum.Total,
		Sent:       sum.Sent,
		Failed:     sum.Failed,
		Message:    finishMessage(sum),
		StartedAt:  started,
	})

	log.Info("bulk send finished",
		zap.Int("sent", sum.Sent),
		zap.Int("failed", sum.Failed),
		zap.Int("remaining", sum.Remaining),
		zap.Bool("aborted", sum.Aborted),
		zap.Bool("capped", sum.Capped),
	)
	return sum, nil
}

func (s *Sender) sendOne(ctx context.Context, log *zap.Logger, cfg Config, lead models.Lead, sum *Summary) {
	var (
		to  = lead.Email
		id  string
		err error
	)

	switch {
	case cfg.TestMode && cfg.TestEmail == "":
		log.Info("simulated send",
			zap.String("lead", lead.Name),
			zap.String("to", lead.Email),
			zap.String("subject", lead.Subject),
		)
		time.Sleep(s.SimulatedDelay)
	case cfg.TestMode:
		to = cfg.TestEmail
		fallthrough
	default:
		id, err = s.mailer.Send(ctx, to, lead.Subject, lead.HTML)
	}

	if err != nil {
		log.Error("email send failed",
			zap.String("lead", lead.Name),
			zap.String("to", to),
			zap.Error(err),
		)
		if dbErr := s.store.MarkLeadError(ctx, lead.ID, err.Error()); dbErr != nil {
			log.Error("failed to update failure status",
				zap.String("lead_id", lead.ID.String()),
				zap.Error(dbErr),
			)
		}
		metrics.EmailFailures.Inc()
		sum.Failed++
		return
	}

	if dbErr := s.store.MarkLeadSent(ctx, lead.ID, time.Now().UTC()); dbErr != nil {
		// The message left but the lead is not recorded as sent. Parking it in
		// error keeps the next run from mailing it again.
		log.Error("failed to update sent status",
			zap.String("lead_id", lead.ID.String()),
			zap.String("message_id", id),
			zap.Error(dbErr),
		)
		msg := "delivered but not recorded: " + dbErr.Error()
		if err := s.store.MarkLeadError(ctx, lead.ID, msg); err != nil {
			log.Error("failed to update failure status",
				zap.String("lead_id", lead.ID.String()),
				zap.Error(err),
			)
		}
		metrics.EmailFailures.Inc()
		sum.Failed++
		return
	}
	if id != "" {
		metrics.EmailsSent.Inc()
		log.Info("email sent successfully",
			zap.String("lead", lead.Name),
			zap.String("to", to),
			zap.String("message_id", id),
		)
	}
	sum.Sent++
}

func (s *Sender) finish(ctx context.Context, campaignID uuid.UUID, sum *Summary) error {
	sent, err := s.store.CountLeadsByStatus(ctx, campaignID, models.LeadSent)
	if err != nil {
		return fmt.Errorf("count sent leads: %w", err)
	}
	if err := s.store.SetEmailsSent(ctx, campaignID, sent); err != nil {
		return fmt.Errorf("update emails sent: %w", err)
	}

	sum.Status = models.CampaignCompleted
	if sum.Remaining > 0 {
		sum.Status = models.CampaignReady
	}
	return s.store.UpdateCampaignStatus(ctx, campaignID, sum.Status)
}

func finishMessage(sum Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d enviados, %d con error", sum.Sent, sum.Failed)
	switch {
	case sum.Aborted:
		b.WriteString(" (cancelado)")
	case sum.Capped:
		b.WriteString(" (límite diario alcanzado)")
	}
	return b.String()
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
