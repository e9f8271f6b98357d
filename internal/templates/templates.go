package templates

import (
	"html"
	"regexp"
	"strings"

	"LeadFlow/internal/models"
)

var placeholderRegex = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// Lead-bound placeholders, filled from the lead record rather than the LLM.
const (
	BusinessName = "business_name"
	Category     = "category"
	Location     = "location"
	Website      = "website"
)

// Placeholders lists the unique markers of tmpl in order of appearance.
func Placeholders(tmpl string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, m := range placeholderRegex.FindAllStringSubmatch(tmpl, -1) {
		name := m[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// AIFields are the placeholders that must be written by the LLM.
func AIFields(tmpl string) []string {
	var out []string
	for _, p := range Placeholders(tmpl) {
		if _, ok := LeadValues(models.Lead{})[p]; ok {
			continue
		}
		out = append(out, p)
	}
	return out
}

// LeadValues maps the lead-bound placeholders to the lead's data.
func LeadValues(l models.Lead) map[string]string {
	return map[string]string{
		BusinessName: l.Name,
		Category:     l.Category,
		Location:     l.Location,
		Website:      l.Website,
	}
}

// Fill replaces every marker with its HTML-escaped value. Markers without a
// value are removed.
func Fill(tmpl string, values map[string]string) string {
	return placeholderRegex.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := placeholderRegex.FindStringSubmatch(m)[1]
		return html.EscapeString(strings.TrimSpace(values[name]))
	})
}

// Default is the built-in outreach template.
func Default() models.EmailTemplate {
	return models.EmailTemplate{
		Name:      "Default outreach",
		Subject:   "Una idea para {{business_name}}",
		IsDefault: true,
		HTML: `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #222; line-height: 1.5;">
  <p>Hola, equipo de {{business_name}}:</p>
  <p>{{problem_paragraph}}</p>
  <p>{{offer_paragraph}}</p>
  <p>{{closing_paragraph}}</p>
  <p>Un saludo.</p>
</body>
</html>`,
	}
}
