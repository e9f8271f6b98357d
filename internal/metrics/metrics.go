package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	PlacesRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "places_requests_total",
			Help: "Place search upstream requests by HTTP status",
		},
		[]string{"status"},
	)

	LeadsScraped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "leads_scraped_total",
			Help: "Total leads persisted by scraping runs",
		},
	)

	EmailsFound = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "emails_found_total",
			Help: "Total leads for which a website email was found",
		},
	)

	ExtractionErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "extraction_errors_total",
			Help: "Total website loads that failed during email extraction",
		},
	)

	ContentsGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "contents_generated_total",
			Help: "Total emails generated by the LLM",
		},
	)

	GenerationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "generation_failures_total",
			Help: "Total failed LLM generations",
		},
	)

	EmailsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "emails_sent_total",
			Help: "Total emails sent",
		},
	)

	EmailFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "email_failures_total",
			Help: "Total failed emails",
		},
	)
)

func Init() {
	prometheus.MustRegister(PlacesRequests)
	prometheus.MustRegister(LeadsScraped)
	prometheus.MustRegister(EmailsFound)
	prometheus.MustRegister(ExtractionErrors)
	prometheus.MustRegister(ContentsGenerated)
	prometheus.MustRegister(GenerationFailures)
	prometheus.MustRegister(EmailsSent)
	prometheus.MustRegister(EmailFailures)
}
