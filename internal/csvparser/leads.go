package csvparser

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"LeadFlow/internal/models"
)

const DefaultMaxRows = 1000

// Header is the column order used by WriteLeads.
var Header = []string{
	"name", "category", "address", "location", "phone", "website", "email",
	"rating", "review_count", "status", "subject", "error", "sent_at",
}

// column aliases accepted on import, lower-cased
var aliases = map[string]string{
	"name":         "name",
	"nombre":       "name",
	"business":     "name",
	"category":     "category",
	"categoria":    "category",
	"address":      "address",
	"direccion":    "address",
	"location":     "location",
	"ubicacion":    "location",
	"phone":        "phone",
	"telefono":     "phone",
	"website":      "website",
	"web":          "website",
	"email":        "email",
	"rating":       "rating",
	"review_count": "review_count",
	"reviews":      "review_count",
}

// ParseLeadRows reads leads from a CSV with a header row. A "name" column is
// required; email, website, phone, address, category, location, rating and
// review_count are optional. Headers are matched case-insensitively.
//
// maxRows limits how many data rows are parsed (excluding header).
func ParseLeadRows(r io.Reader, maxRows int) ([]models.Lead, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		return nil, err
	}
	if len(headers) == 0 {
		return nil, errors.New("csv header row is empty")
	}

	columns := make([]string, len(headers))
	hasName := false
	for i, h := range headers {
		key := aliases[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))]
		columns[i] = key
		if key == "name" {
			hasName = true
		}
	}
	if !hasName {
		return nil, errors.New("csv must contain a name column")
	}

	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}

	leads := make([]models.Lead, 0)
	for len(leads) < maxRows {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) && errors.Is(perr.Err, csv.ErrFieldCount) {
				// skip malformed row
				continue
			}
			return nil, err
		}

		lead := models.Lead{Status: models.LeadPending}
		for i, value := range record {
			setField(&lead, columns[i], strings.TrimSpace(value))
		}
		if lead.Name == "" {
			continue
		}
		leads = append(leads, lead)
	}

	if len(leads) == 0 {
		return nil, errors.New("csv must contain at least one data row")
	}

	return leads, nil
}

func setField(l *models.Lead, column, value string) {
	switch column {
	case "name":
		l.Name = value
	case "category":
		l.Category = value
	case "address":
		l.Address = value
	case "location":
		l.Location = value
	case "phone":
		l.Phone = value
	case "website":
		l.Website = value
	case "email":
		l.Email = strings.ToLower(value)
	case "rating":
		if f, err := strconv.ParseFloat(strings.Replace(value, ",", ".", 1), 64); err == nil {
			l.Rating = &f
		}
	case "review_count":
		if n, err := strconv.Atoi(value); err == nil {
			l.ReviewCount = &n
		}
	}
}

// WriteLeads writes leads as CSV with the Header column order.
func WriteLeads(w io.Writer, leads []models.Lead) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}

	for _, l := range leads {
		var rating, reviews, sentAt string
		if l.Rating != nil {
			rating = strconv.FormatFloat(*l.Rating, 'f', 1, 64)
		}
		if l.ReviewCount != nil {
			reviews = strconv.Itoa(*l.ReviewCount)
		}
		if l.SentAt != nil {
			sentAt = l.SentAt.UTC().Format(time.RFC3339)
		}

		if err := cw.Write([]string{
			l.Name, l.Category, l.Address, l.Location, l.Phone, l.Website, l.Email,
			rating, reviews, string(l.Status), l.Subject, l.ErrorMsg, sentAt,
		}); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
