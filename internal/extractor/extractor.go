package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"LeadFlow/internal/metrics"
	"LeadFlow/internal/models"
)

const (
	DefaultPageTimeout = 15 * time.Second
	DefaultLeadDelay   = 500 * time.Millisecond
)

var ErrNoWebsite = errors.New("extractor: lead has no website")

// Page is what the browser reports for one loaded URL.
type Page struct {
	URL   string
	Text  string
	Links []string
}

// Browser loads a URL and returns its rendered text and links.
type Browser interface {
	Visit(ctx context.Context, url string) (Page, error)
}

type Options struct {
	// PageTimeout bounds each page load.
	PageTimeout time.Duration
	// LeadDelay separates consecutive website visits in ExtractAll.
	LeadDelay time.Duration
}

func (o Options) withDefaults() Options {
	if o.PageTimeout <= 0 {
		o.PageTimeout = DefaultPageTimeout
	}
	if o.LeadDelay < 0 {
		o.LeadDelay = 0
	}
	return o
}

// Result is the extraction outcome for one website.
type Result struct {
	Website string
	Emails  []Email
	Best    string
	Visited []string
	Err     error
}

type Extractor struct {
	browser Browser
	opts    Options
	log     *zap.Logger
}

func New(browser Browser, opts Options, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{browser: browser, opts: opts.withDefaults(), log: logger}
}

// Extract visits the website and up to MaxSecondaryPages contact/legal pages
// on the same origin, collecting unique addresses across all of them.
func (e *Extractor) Extract(ctx context.Context, website string) Result {
	res := Result{Website: normalizeURL(website)}
	if res.Website == "" {
		res.Err = ErrNoWebsite
		return res
	}

	main, err := e.visit(ctx, res.Website)
	if err != nil {
		res.Err = fmt.Errorf("load %s: %w", res.Website, err)
		return res
	}
	res.Visited = append(res.Visited, res.Website)
	res.Emails = FindEmails(main.Text, main.Links)

	base := res.Website
	if main.URL != "" {
		base = main.URL
	}
	for _, u := range SecondaryPages(base, main.Links) {
		if ctx.Err() != nil {
			break
		}
		page, err := e.visit(ctx, u)
		if err != nil {
			e.log.Debug("secondary page failed", zap.String("url", u), zap.Error(err))
			continue
		}
		res.Visited = append(res.Visited, u)
		res.Emails = Merge(res.Emails, FindEmails(page.Text, page.Links))
	}

	res.Best = Best(res.Emails)
	return res
}

func (e *Extractor) visit(ctx context.Context, url string) (Page, error) {
	pageCtx, cancel := context.WithTimeout(ctx, e.opts.PageTimeout)
	defer cancel()
	return e.browser.Visit(pageCtx, url)
}

// ExtractAll processes leads one at a time, in order. Leads without a website
// pass through untouched. A failed website is reported in the matching Result
// and its lead is returned unmodified. The returned slices are index-aligned
// with the input.
func (e *Extractor) ExtractAll(ctx context.Context, leads []models.Lead, onLead func(done, total int, lead models.Lead)) ([]models.Lead, []Result, error) {
	out := make([]models.Lead, len(leads))
	copy(out, leads)
	results := make([]Result, len(leads))

	visited := 0
	for i, lead := range leads {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if !lead.HasWebsite() {
			continue
		}

		if visited > 0 && e.opts.LeadDelay > 0 {
			t := time.NewTimer(e.opts.LeadDelay)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return nil, nil, ctx.Err()
			}
		}
		visited++

		res := e.Extract(ctx, lead.Website)
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		results[i] = res

		switch {
		case res.Err != nil:
			metrics.ExtractionErrors.Inc()
			e.log.Warn("email extraction failed",
				zap.String("lead", lead.Name),
				zap.String("website", lead.Website),
				zap.Error(res.Err),
			)
		case res.Best != "":
			metrics.EmailsFound.Inc()
			if !lead.HasEmail() {
				out[i].Email = res.Best
			}
		}

		if onLead != nil {
			onLead(i+1, len(leads), out[i])
		}
	}

	return out, results, nil
}

func normalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(u), "http://") && !strings.HasPrefix(strings.ToLower(u), "https://") {
		u = "https://" + u
	}
	return u
}
