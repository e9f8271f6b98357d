package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"LeadFlow/internal/campaign"
	"LeadFlow/internal/models"
	"LeadFlow/internal/progress"
	"LeadFlow/internal/sender"
)

type Store interface {
	CreateCampaign(ctx context.Context, c *models.Campaign) error
	GetCampaign(ctx context.Context, id uuid.UUID) (models.Campaign, error)
	ListCampaigns(ctx context.Context, userID string) ([]models.Campaign, error)
	UpdateCampaignStatus(ctx context.Context, id uuid.UUID, status models.CampaignStatus) error
	SetLeadsFound(ctx context.Context, id uuid.UUID, n int) error
	DeleteCampaign(ctx context.Context, id uuid.UUID) error

	InsertLeads(ctx context.Context, leads []models.Lead) (int, error)
	ListLeads(ctx context.Context, campaignID uuid.UUID) ([]models.Lead, error)
	CountLeads(ctx context.Context, campaignID uuid.UUID) (int, error)

	CreateTemplate(ctx context.Context, t *models.EmailTemplate) error
	ListTemplates(ctx context.Context, userID string) ([]models.EmailTemplate, error)
}

type Pipeline interface {
	RunScraping(ctx context.Context, campaignID uuid.UUID) (campaign.ScrapeSummary, error)
	PrepareGeneration(ctx context.Context, campaignID uuid.UUID, templateID *uuid.UUID) (models.EmailTemplate, []models.Lead, error)
	RunGeneration(ctx context.Context, campaignID uuid.UUID, templateID *uuid.UUID) (campaign.GenerateSummary, error)
}

type BulkSender interface {
	Prepare(ctx context.Context, campaignID uuid.UUID, cfg sender.Config) ([]models.Lead, error)
	Run(ctx context.Context, campaignID uuid.UUID, cfg sender.Config) (sender.Summary, error)
}

type Handler struct {
	Store    Store
	Pipeline Pipeline
	Sender   BulkSender
	Runs     *campaign.Runs
	Hub      *progress.Hub
	Log      *zap.Logger

	// SendDefaults fills the send settings a request leaves out.
	SendDefaults sender.Config
	// CORSOrigins lists the allowed browser origins; empty allows any.
	CORSOrigins []string
}

func (h *Handler) Routes() http.Handler {
	origins := h.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/campaigns", func(r chi.Router) {
		r.Post("/", h.CreateCampaign)
		r.Get("/", h.ListCampaigns)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetCampaign)
			r.Delete("/", h.DeleteCampaign)

			r.Get("/leads", h.ListLeads)
			r.Get("/leads.csv", h.ExportLeads)
			r.Post("/leads/import", h.ImportLeads)

			r.Post("/scrape", h.StartScraping)
			r.Post("/generate", h.StartGeneration)
			r.Post("/send", h.StartSending)
			r.Post("/abort", h.Abort)
			r.Get("/progress", h.Progress)
		})
	})

	r.Route("/templates", func(r chi.Router) {
		r.Post("/", h.CreateTemplate)
		r.Get("/", h.ListTemplates)
	})

	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
