package places

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"LeadFlow/internal/metrics"
)

const (
	// MaxPages bounds upstream calls per Search invocation.
	MaxPages = 5
	// MinSpacing is the minimum delay between two upstream requests.
	MinSpacing = 200 * time.Millisecond

	pageSize  = 20
	fieldMask = "places.id,places.displayName,places.formattedAddress,places.nationalPhoneNumber," +
		"places.internationalPhoneNumber,places.websiteUri,places.rating,places.userRatingCount," +
		"places.primaryType,places.primaryTypeDisplayName,places.types,nextPageToken"
)

type Config struct {
	APIKey  string
	BaseURL string

	LanguageCode string
	RegionCode   string

	HTTPClient *http.Client
	// Spacing overrides MinSpacing; values below MinSpacing are raised to it.
	Spacing time.Duration
}

type Client struct {
	apiKey   string
	baseURL  string
	language string
	region   string
	http     *http.Client
	limiter  *rate.Limiter
	log      *zap.Logger
}

func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = "https://places.googleapis.com"
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 20 * time.Second}
	}
	spacing := cfg.Spacing
	if spacing < MinSpacing {
		spacing = MinSpacing
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		apiKey:   strings.TrimSpace(cfg.APIKey),
		baseURL:  base,
		language: cfg.LanguageCode,
		region:   cfg.RegionCode,
		http:     hc,
		limiter:  rate.NewLimiter(rate.Every(spacing), 1),
		log:      logger,
	}, nil
}

// Search pages through the upstream until target filtered places are
// collected, the upstream runs out of pages, or MaxPages is reached.
func (c *Client) Search(ctx context.Context, q Query, keep Filter, target int) (Result, error) {
	if target <= 0 {
		return Result{}, nil
	}
	if q.LanguageCode == "" {
		q.LanguageCode = c.language
	}
	if q.RegionCode == "" {
		q.RegionCode = c.region
	}

	var out Result
	token := q.PageToken

	for page := 0; page < MaxPages; page++ {
		resp, err := c.searchPage(ctx, q, token)
		if err != nil {
			return Result{}, err
		}

		for _, p := range resp.Places {
			if keep != nil && !keep(p) {
				continue
			}
			out.Places = append(out.Places, p)
		}

		c.log.Debug("places page fetched",
			zap.Int("page", page+1),
			zap.Int("raw", len(resp.Places)),
			zap.Int("kept", len(out.Places)),
		)

		token = resp.NextPageToken
		if len(out.Places) >= target || token == "" {
			break
		}
	}

	if len(out.Places) > target {
		out.Places = out.Places[:target]
	}
	out.NextPageToken = token
	return out, nil
}

func (c *Client) searchPage(ctx context.Context, q Query, token string) (*searchTextResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body := searchTextRequest{
		TextQuery:    q.Text,
		LanguageCode: q.LanguageCode,
		RegionCode:   q.RegionCode,
		PageSize:     pageSize,
		PageToken:    token,
	}
	if q.Bias != nil {
		body.LocationBias = &locationBias{Circle: circle{
			Center: latLng{Latitude: q.Bias.Latitude, Longitude: q.Bias.Longitude},
			Radius: q.Bias.RadiusM,
		}}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("places: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/places:searchText", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("places: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("places: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("places: read response: %w", err)
	}

	metrics.PlacesRequests.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newHTTPError(resp.Status, resp.StatusCode, raw)
	}

	var parsed searchTextResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("places: decode response: %w", err)
	}
	return &parsed, nil
}
