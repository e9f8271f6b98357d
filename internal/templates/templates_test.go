package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"LeadFlow/internal/models"
)

func TestPlaceholders(t *testing.T) {
	tmpl := `<p>{{business_name}}</p><p>{{ problem_paragraph }}</p><p>{{business_name}}</p><p>{{offer_paragraph}}</p>`

	assert.Equal(t, []string{"business_name", "problem_paragraph", "offer_paragraph"}, Placeholders(tmpl))
	assert.Equal(t, []string{"problem_paragraph", "offer_paragraph"}, AIFields(tmpl))
}

func TestFillEscapesAndDropsUnknown(t *testing.T) {
	values := LeadValues(models.Lead{Name: "Casa Pepe & Hijos", Location: "Madrid"})
	values["problem_paragraph"] = "<b>Sin reservas online</b>"

	got := Fill(`{{business_name}} en {{location}}: {{problem_paragraph}}{{missing}}`, values)
	assert.Equal(t, "Casa Pepe &amp; Hijos en Madrid: &lt;b&gt;Sin reservas online&lt;/b&gt;", got)
}

func TestDefaultTemplateFields(t *testing.T) {
	d := Default()
	assert.Equal(t, []string{"problem_paragraph", "offer_paragraph", "closing_paragraph"}, AIFields(d.HTML))
	assert.Equal(t, "Una idea para Bar Sol", Fill(d.Subject, LeadValues(models.Lead{Name: "Bar Sol"})))
}
