package places

import (
	"fmt"
	"strings"

	"LeadFlow/internal/models"
)

// Place is the subset of a Places API (New) record the pipeline uses.
type Place struct {
	ID                       string        `json:"id"`
	DisplayName              LocalizedText `json:"displayName"`
	FormattedAddress         string        `json:"formattedAddress"`
	NationalPhoneNumber      string        `json:"nationalPhoneNumber"`
	InternationalPhoneNumber string        `json:"internationalPhoneNumber"`
	WebsiteURI               string        `json:"websiteUri"`
	Rating                   *float64      `json:"rating"`
	UserRatingCount          *int          `json:"userRatingCount"`
	PrimaryType              string        `json:"primaryType"`
	PrimaryTypeDisplayName   LocalizedText `json:"primaryTypeDisplayName"`
	Types                    []string      `json:"types"`
}

type LocalizedText struct {
	Text         string `json:"text"`
	LanguageCode string `json:"languageCode,omitempty"`
}

func (p Place) Name() string { return strings.TrimSpace(p.DisplayName.Text) }

func (p Place) Phone() string {
	if p.NationalPhoneNumber != "" {
		return p.NationalPhoneNumber
	}
	return p.InternationalPhoneNumber
}

func (p Place) Category() string {
	if p.PrimaryTypeDisplayName.Text != "" {
		return p.PrimaryTypeDisplayName.Text
	}
	if p.PrimaryType != "" {
		return p.PrimaryType
	}
	if len(p.Types) > 0 {
		return p.Types[0]
	}
	return ""
}

// Circle biases results towards an area.
type Circle struct {
	Latitude  float64
	Longitude float64
	RadiusM   float64
}

type Query struct {
	Text         string
	LanguageCode string
	RegionCode   string
	Bias         *Circle
	PageToken    string
}

type Result struct {
	Places []Place
	// NextPageToken is set when the upstream has more pages the caller may resume from.
	NextPageToken string
}

// Filter decides whether a place is kept.
type Filter func(Place) bool

// QueryFor composes the free-text query for a sector in a location.
func QueryFor(sector, location string) string {
	sector = strings.TrimSpace(sector)
	location = strings.TrimSpace(location)
	if location == "" {
		return sector
	}
	return fmt.Sprintf("%s en %s", sector, location)
}

// FilterFor builds the place predicate for a campaign's filters. Email
// requirements are applied later, once websites have been crawled.
func FilterFor(f models.Filters) Filter {
	if !f.RequireWebsite && f.MinRating <= 0 {
		return nil
	}
	return func(p Place) bool {
		if f.RequireWebsite && strings.TrimSpace(p.WebsiteURI) == "" {
			return false
		}
		if f.MinRating > 0 && (p.Rating == nil || *p.Rating < f.MinRating) {
			return false
		}
		return true
	}
}

// searchTextRequest is the Places API (New) searchText body.
type searchTextRequest struct {
	TextQuery    string        `json:"textQuery"`
	LanguageCode string        `json:"languageCode,omitempty"`
	RegionCode   string        `json:"regionCode,omitempty"`
	PageSize     int           `json:"pageSize,omitempty"`
	PageToken    string        `json:"pageToken,omitempty"`
	LocationBias *locationBias `json:"locationBias,omitempty"`
}

type locationBias struct {
	Circle circle `json:"circle"`
}

type circle struct {
	Center latLng  `json:"center"`
	Radius float64 `json:"radius"`
}

type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type searchTextResponse struct {
	Places        []Place `json:"places"`
	NextPageToken string  `json:"nextPageToken"`
}
