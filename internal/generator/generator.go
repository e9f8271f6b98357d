package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"LeadFlow/internal/models"
	"LeadFlow/internal/templates"
)

var ErrMissingAPIKey = errors.New("generator: GEMINI_API_KEY is required")

// Content is a filled email ready to be stored on a lead.
type Content struct {
	Subject string
	HTML    string
}

type Config struct {
	APIKey string
	Model  string
	// BaseURL overrides the Gemini API base URL.
	BaseURL string
}

// Gemini fills template placeholders with short texts written by a Gemini model.
type Gemini struct {
	client *genai.Client
	model  string
	log    *zap.Logger
}

func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Gemini, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gemini-2.5-flash"
	}

	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("generator: create client: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gemini{client: client, model: model, log: logger}, nil
}

func (g *Gemini) Generate(ctx context.Context, lead models.Lead, tmpl models.EmailTemplate) (Content, error) {
	fields := templates.AIFields(tmpl.HTML)

	resp, err := g.client.Models.GenerateContent(
		ctx,
		g.model,
		genai.Text(buildPrompt(lead, tmpl, fields)),
		&genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}},
			CandidateCount:    1,
			ResponseMIMEType:  "application/json",
			ResponseSchema:    schemaFor(fields),
		},
	)
	if err != nil {
		return Content{}, fmt.Errorf("generator: gemini: %w", err)
	}

	content, err := assemble(resp.Text(), lead, tmpl)
	if err != nil {
		return Content{}, err
	}
	g.log.Debug("email generated", zap.String("lead", lead.Name), zap.Int("fields", len(fields)))
	return content, nil
}

const systemPrompt = `You write short, personal B2B cold emails in Spanish for small local businesses.
Return ONLY a JSON object with the requested keys.
Rules:
- subject: at most 60 characters, no emojis, no clickbait.
- Every other key is one paragraph of 1 to 3 sentences, at most 350 characters.
- Plain text only: no HTML, no markdown, no placeholders, no signatures.
- Mention the business by name at most once and never invent facts not present in the context.`

func buildPrompt(lead models.Lead, tmpl models.EmailTemplate, fields []string) string {
	var b strings.Builder
	b.WriteString("Business context:\n")
	writeLine(&b, "Name", lead.Name)
	writeLine(&b, "Category", lead.Category)
	writeLine(&b, "Location", lead.Location)
	writeLine(&b, "Address", lead.Address)
	writeLine(&b, "Website", lead.Website)
	if lead.Rating != nil {
		writeLine(&b, "Rating", fmt.Sprintf("%.1f", *lead.Rating))
	}
	if lead.ReviewCount != nil {
		writeLine(&b, "Reviews", fmt.Sprintf("%d", *lead.ReviewCount))
	}

	if s := strings.TrimSpace(tmpl.Subject); s != "" {
		b.WriteString("\nSubject hint: " + s + "\n")
	}
	b.WriteString("\nKeys to write:\n- subject\n")
	for _, f := range fields {
		b.WriteString("- " + f + ": " + describe(f) + "\n")
	}
	return b.String()
}

func writeLine(b *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	b.WriteString("- " + label + ": " + strings.TrimSpace(value) + "\n")
}

func describe(field string) string {
	switch {
	case strings.Contains(field, "problem"):
		return "a concrete problem this kind of business likely has"
	case strings.Contains(field, "offer"):
		return "how we can help with that problem"
	case strings.Contains(field, "closing"):
		return "a low-pressure call to action"
	}
	return strings.ReplaceAll(field, "_", " ")
}

func schemaFor(fields []string) *genai.Schema {
	s := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: map[string]*genai.Schema{"subject": {Type: genai.TypeString}},
		Required:   []string{"subject"},
	}
	for _, f := range fields {
		s.Properties[f] = &genai.Schema{Type: genai.TypeString}
		s.Required = append(s.Required, f)
	}
	return s
}

// assemble merges the model's JSON answer with the lead-bound values and fills the template.
func assemble(raw string, lead models.Lead, tmpl models.EmailTemplate) (Content, error) {
	var parsed map[string]string
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return Content{}, fmt.Errorf("generator: parse structured json: %w", err)
	}

	values := templates.LeadValues(lead)
	for k, v := range parsed {
		if _, leadBound := values[k]; leadBound {
			continue
		}
		values[k] = v
	}

	subject := strings.TrimSpace(parsed["subject"])
	if subject == "" {
		subject = strings.TrimSpace(templates.Fill(tmpl.Subject, values))
	}
	if subject == "" {
		return Content{}, errors.New("generator: empty subject")
	}

	return Content{Subject: subject, HTML: templates.Fill(tmpl.HTML, values)}, nil
}
