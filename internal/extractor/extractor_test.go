package extractor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LeadFlow/internal/models"
)

type fakeBrowser struct {
	mu     sync.Mutex
	pages  map[string]Page
	fail   map[string]error
	visits []string
	// onVisit runs before each page load.
	onVisit func(url string)
}

func (b *fakeBrowser) Visit(ctx context.Context, url string) (Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.visits = append(b.visits, url)
	if b.onVisit != nil {
		b.onVisit(url)
	}

	if _, ok := ctx.Deadline(); !ok {
		return Page{}, errors.New("visit without deadline")
	}
	if err := b.fail[url]; err != nil {
		return Page{}, err
	}
	p, ok := b.pages[url]
	if !ok {
		return Page{}, errors.New("404")
	}
	p.URL = url
	return p, nil
}

func newFakeBrowser() *fakeBrowser {
	return &fakeBrowser{pages: map[string]Page{}, fail: map[string]error{}}
}

func TestExtractVisitsAtMostThreePages(t *testing.T) {
	b := newFakeBrowser()
	b.pages["https://lataberna.es"] = Page{
		Text: "Reservas: lataberna@gmail.com",
		Links: []string{
			"https://lataberna.es/contacto",
			"https://lataberna.es/aviso-legal",
			"https://lataberna.es/privacidad",
			"https://lataberna.es/sobre-nosotros",
		},
	}
	b.pages["https://lataberna.es/contacto"] = Page{Text: "INFO@lataberna.es"}
	b.pages["https://lataberna.es/aviso-legal"] = Page{Text: "info@LATABERNA.es lataberna@Gmail.com"}

	res := New(b, Options{}, nil).Extract(context.Background(), "lataberna.es")

	require.NoError(t, res.Err)
	assert.Len(t, b.visits, 3)
	assert.Equal(t, []string{"https://lataberna.es", "https://lataberna.es/contacto", "https://lataberna.es/aviso-legal"}, res.Visited)
	assert.Equal(t, []string{"lataberna@gmail.com", "info@lataberna.es"}, addresses(res.Emails))
	assert.Equal(t, "info@lataberna.es", res.Best)
}

func TestExtractToleratesSecondaryFailure(t *testing.T) {
	b := newFakeBrowser()
	b.pages["https://lataberna.es"] = Page{Text: "hola@lataberna.es", Links: []string{"/contacto"}}
	b.fail["https://lataberna.es/contacto"] = context.DeadlineExceeded

	res := New(b, Options{}, nil).Extract(context.Background(), "https://lataberna.es")

	require.NoError(t, res.Err)
	assert.Equal(t, "hola@lataberna.es", res.Best)
	assert.Equal(t, []string{"https://lataberna.es"}, res.Visited)
}

func TestExtractMainPageFailure(t *testing.T) {
	b := newFakeBrowser()
	b.fail["https://caido.es"] = errors.New("net::ERR_NAME_NOT_RESOLVED")

	res := New(b, Options{}, nil).Extract(context.Background(), "https://caido.es")
	assert.ErrorContains(t, res.Err, "ERR_NAME_NOT_RESOLVED")
	assert.Empty(t, res.Best)
}

func TestExtractAllSequentialPassThrough(t *testing.T) {
	b := newFakeBrowser()
	b.pages["https://uno.es"] = Page{Text: "uno@uno.es"}
	b.fail["https://dos.es"] = errors.New("timeout")
	b.pages["https://tres.es"] = Page{Text: "nothing here"}

	leads := []models.Lead{
		{Name: "Uno", Website: "https://uno.es"},
		{Name: "Sin web"},
		{Name: "Dos", Website: "https://dos.es"},
		{Name: "Tres", Website: "https://tres.es"},
	}

	var progressed []string
	start := time.Now()
	out, results, err := New(b, Options{LeadDelay: 20 * time.Millisecond}, nil).ExtractAll(context.Background(), leads,
		func(done, total int, l models.Lead) {
			assert.Equal(t, 4, total)
			progressed = append(progressed, l.Name)
		})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	assert.Equal(t, []string{"https://uno.es", "https://dos.es", "https://tres.es"}, b.visits)
	assert.Equal(t, []string{"Uno", "Dos", "Tres"}, progressed)

	require.Len(t, out, 4)
	assert.Equal(t, "uno@uno.es", out[0].Email)
	assert.Equal(t, leads[1], out[1])
	assert.Equal(t, leads[2], out[2])
	assert.Error(t, results[2].Err)
	assert.Empty(t, out[3].Email)
	assert.Empty(t, leads[0].Email, "input must not be mutated")
}

func TestExtractAllStopsOnCancel(t *testing.T) {
	b := newFakeBrowser()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := New(b, Options{}, nil).ExtractAll(ctx, []models.Lead{{Website: "https://uno.es"}}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, b.visits)
}

func TestExtractAllCancelledDuringLastLead(t *testing.T) {
	b := newFakeBrowser()
	b.pages["https://uno.es"] = Page{Text: "uno@uno.es"}
	b.pages["https://dos.es"] = Page{Text: "dos@dos.es"}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.onVisit = func(url string) {
		if url == "https://dos.es" {
			cancel()
		}
	}

	leads := []models.Lead{
		{Name: "Uno", Website: "https://uno.es"},
		{Name: "Dos", Website: "https://dos.es"},
	}
	out, results, err := New(b, Options{}, nil).ExtractAll(ctx, leads, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, out)
	assert.Nil(t, results)
}
