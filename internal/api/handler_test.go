package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"LeadFlow/internal/campaign"
	"LeadFlow/internal/generator"
	"LeadFlow/internal/models"
	"LeadFlow/internal/progress"
	"LeadFlow/internal/sender"
	"LeadFlow/internal/storetest"
)

type fakePipeline struct {
	mu       sync.Mutex
	scrapes  int
	release  chan struct{}
	template *uuid.UUID
	checkErr error
}

func (p *fakePipeline) RunScraping(ctx context.Context, _ uuid.UUID) (campaign.ScrapeSummary, error) {
	p.mu.Lock()
	p.scrapes++
	p.mu.Unlock()

	select {
	case <-ctx.Done():
		return campaign.ScrapeSummary{}, ctx.Err()
	case <-p.release:
		return campaign.ScrapeSummary{}, nil
	}
}

func (p *fakePipeline) PrepareGeneration(context.Context, uuid.UUID, *uuid.UUID) (models.EmailTemplate, []models.Lead, error) {
	return models.EmailTemplate{}, nil, p.checkErr
}

func (p *fakePipeline) RunGeneration(_ context.Context, _ uuid.UUID, templateID *uuid.UUID) (campaign.GenerateSummary, error) {
	p.mu.Lock()
	p.template = templateID
	p.mu.Unlock()
	return campaign.GenerateSummary{}, nil
}

type fakeSender struct {
	got      chan sender.Config
	err      error
	checkErr error
}

func (s *fakeSender) Prepare(context.Context, uuid.UUID, sender.Config) ([]models.Lead, error) {
	return nil, s.checkErr
}

func (s *fakeSender) Run(_ context.Context, _ uuid.UUID, cfg sender.Config) (sender.Summary, error) {
	s.got <- cfg
	return sender.Summary{}, s.err
}

type testAPI struct {
	store    *storetest.Memory
	pipeline *fakePipeline
	sender   *fakeSender
	handler  *Handler
	server   *httptest.Server
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	a := &testAPI{
		store:    storetest.New(),
		pipeline: &fakePipeline{release: make(chan struct{})},
		sender:   &fakeSender{got: make(chan sender.Config, 1)},
	}
	a.handler = &Handler{
		Store:        a.store,
		Pipeline:     a.pipeline,
		Sender:       a.sender,
		Runs:         campaign.NewRuns(),
		Hub:          progress.NewHub(),
		Log:          zap.NewNop(),
		SendDefaults: sender.Config{DelaySeconds: 30, DailyLimit: 50},
	}
	a.server = httptest.NewServer(a.handler.Routes())
	t.Cleanup(a.server.Close)
	return a
}

func (a *testAPI) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, a.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (a *testAPI) campaign(t *testing.T, status models.CampaignStatus) models.Campaign {
	t.Helper()
	c := &models.Campaign{
		UserID: "user-1",
		Name:   "Restaurantes Madrid",
		Status: status,
		Search: models.SearchConfig{Sector: "Restaurantes", Location: "Madrid", Count: 10},
	}
	require.NoError(t, a.store.CreateCampaign(context.Background(), c))
	return *c
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestCreateAndGetCampaign(t *testing.T) {
	a := newTestAPI(t)

	resp := a.do(t, http.MethodPost, "/campaigns", `{
		"user_id": "user-1",
		"name": "Restaurantes Madrid",
		"search": {"sector": "Restaurantes", "location": "Madrid", "count": 10,
		           "filters": {"require_email": true, "require_website": true}}
	}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.Campaign
	decodeBody(t, resp, &created)
	assert.Equal(t, models.CampaignDraft, created.Status)
	assert.True(t, created.Search.Filters.RequireEmail)

	resp = a.do(t, http.MethodGet, "/campaigns/"+created.ID.String(), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got models.Campaign
	decodeBody(t, resp, &got)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Madrid", got.Search.Location)
}

func TestCreateCampaignValidation(t *testing.T) {
	a := newTestAPI(t)

	resp := a.do(t, http.MethodPost, "/campaigns", `{"user_id":"u","name":"x","search":{"sector":"Bares","location":"Vigo","count":0}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = a.do(t, http.MethodPost, "/campaigns", `{"user_id":"u","search":{"sector":"Bares","location":"Vigo","count":5}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = a.do(t, http.MethodPost, "/campaigns", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetCampaignErrors(t *testing.T) {
	a := newTestAPI(t)

	resp := a.do(t, http.MethodGet, "/campaigns/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = a.do(t, http.MethodGet, "/campaigns/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestScrapeRunsInBackgroundAndRejectsConcurrentRuns(t *testing.T) {
	a := newTestAPI(t)
	c := a.campaign(t, models.CampaignDraft)
	path := "/campaigns/" + c.ID.String()

	resp := a.do(t, http.MethodPost, path+"/scrape", "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp = a.do(t, http.MethodPost, path+"/scrape", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = a.do(t, http.MethodPost, path+"/send", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = a.do(t, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = a.do(t, http.MethodPost, path+"/abort", "")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	assert.Eventually(t, func() bool {
		_, active := a.handler.Runs.Active(c.ID)
		return !active
	}, 2*time.Second, 10*time.Millisecond)

	resp = a.do(t, http.MethodPost, path+"/abort", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestScrapeRequiresDraft(t *testing.T) {
	a := newTestAPI(t)
	c := a.campaign(t, models.CampaignReady)

	resp := a.do(t, http.MethodPost, "/campaigns/"+c.ID.String()+"/scrape", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Zero(t, a.pipeline.scrapes)
}

func TestSendMergesDefaults(t *testing.T) {
	a := newTestAPI(t)
	c := a.campaign(t, models.CampaignReady)

	resp := a.do(t, http.MethodPost, "/campaigns/"+c.ID.String()+"/send", `{"daily_limit": 2, "test_mode": true}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	select {
	case cfg := <-a.sender.got:
		assert.Equal(t, sender.Config{DelaySeconds: 30, DailyLimit: 2, TestMode: true}, cfg)
	case <-time.After(2 * time.Second):
		t.Fatal("sender not started")
	}
}

func TestSendValidation(t *testing.T) {
	a := newTestAPI(t)
	c := a.campaign(t, models.CampaignReady)

	resp := a.do(t, http.MethodPost, "/campaigns/"+c.ID.String()+"/send", `{"test_mode": true, "test_email": "nope"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = a.do(t, http.MethodPost, "/campaigns/"+c.ID.String()+"/send", `{"delay_seconds": -5}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = a.do(t, http.MethodPost, "/campaigns/"+uuid.NewString()+"/send", `{}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGenerateWithTemplate(t *testing.T) {
	a := newTestAPI(t)
	c := a.campaign(t, models.CampaignReady)
	tmpl := uuid.New()

	resp := a.do(t, http.MethodPost, "/campaigns/"+c.ID.String()+"/generate", `{"template_id":"`+tmpl.String()+`"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	assert.Eventually(t, func() bool {
		a.pipeline.mu.Lock()
		defer a.pipeline.mu.Unlock()
		return a.pipeline.template != nil && *a.pipeline.template == tmpl
	}, 2*time.Second, 10*time.Millisecond)
}

func TestImportAndExportLeads(t *testing.T) {
	a := newTestAPI(t)
	c := a.campaign(t, models.CampaignDraft)
	path := "/campaigns/" + c.ID.String()

	csv := "name,email,website\nLa Taberna,info@lataberna.es,https://lataberna.es\nCasa Pepe,,\n"
	resp := a.do(t, http.MethodPost, path+"/leads/import", csv)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]int
	decodeBody(t, resp, &out)
	assert.Equal(t, 2, out["imported"])
	assert.Equal(t, 2, out["leads_found"])

	got, err := a.store.GetCampaign(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignReady, got.Status)
	assert.Equal(t, 2, got.LeadsFound)

	resp = a.do(t, http.MethodGet, path+"/leads", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var leads []models.Lead
	decodeBody(t, resp, &leads)
	require.Len(t, leads, 2)
	assert.Equal(t, "Madrid", leads[0].Location)
	assert.Equal(t, models.LeadPending, leads[0].Status)

	resp = a.do(t, http.MethodGet, path+"/leads.csv", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/csv")

	scanner := bufio.NewScanner(resp.Body)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "La Taberna,"))
}

func TestImportRejectsBadCSV(t *testing.T) {
	a := newTestAPI(t)
	c := a.campaign(t, models.CampaignDraft)

	resp := a.do(t, http.MethodPost, "/campaigns/"+c.ID.String()+"/leads/import", "email\na@b.es\n")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteCampaign(t *testing.T) {
	a := newTestAPI(t)
	c := a.campaign(t, models.CampaignDraft)

	resp := a.do(t, http.MethodDelete, "/campaigns/"+c.ID.String(), "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = a.do(t, http.MethodDelete, "/campaigns/"+c.ID.String(), "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTemplates(t *testing.T) {
	a := newTestAPI(t)

	resp := a.do(t, http.MethodPost, "/templates", `{"user_id":"user-1","name":"Base","html":"<p>{{business_name}}</p>","is_default":true}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = a.do(t, http.MethodPost, "/templates", `{"user_id":"user-1","name":"Sin html"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = a.do(t, http.MethodGet, "/templates?user_id=user-1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []models.EmailTemplate
	decodeBody(t, resp, &list)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsDefault)

	resp = a.do(t, http.MethodGet, "/templates", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProgressStream(t *testing.T) {
	a := newTestAPI(t)
	c := a.campaign(t, models.CampaignSending)
	other := uuid.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.server.URL+"/campaigns/"+c.ID.String()+"/progress", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// The subscription exists once the handler has flushed its preamble.
	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": connected\n", line)

	a.handler.Hub.Publish(progress.Snapshot{CampaignID: other, Phase: progress.PhaseSending, LeadName: "Otro"})
	a.handler.Hub.Publish(progress.Snapshot{CampaignID: c.ID, Phase: progress.PhaseSending, Current: 1, Total: 3, LeadName: "La Taberna"})

	var data string
	for data == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(strings.TrimSpace(line), "data: ")
		}
	}

	var snap progress.Snapshot
	require.NoError(t, json.Unmarshal([]byte(data), &snap))
	assert.Equal(t, c.ID, snap.CampaignID)
	assert.Equal(t, "La Taberna", snap.LeadName)
}

type stubGenerator struct{}

func (stubGenerator) Generate(_ context.Context, lead models.Lead, _ models.EmailTemplate) (generator.Content, error) {
	return generator.Content{Subject: "Hola " + lead.Name, HTML: "<p>Hola</p>"}, nil
}

func TestSendRejectedBeforeStarting(t *testing.T) {
	a := newTestAPI(t)
	a.handler.Sender = sender.New(a.store, nil, a.handler.Hub, zap.NewNop())
	c := a.campaign(t, models.CampaignReady)
	path := "/campaigns/" + c.ID.String() + "/send"

	resp := a.do(t, http.MethodPost, path, `{"test_mode": true}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	a.store.PutLead(models.Lead{CampaignID: c.ID, Name: "La Taberna", Email: "info@lataberna.es", Status: models.LeadGenerated})
	resp = a.do(t, http.MethodPost, path, `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, active := a.handler.Runs.Active(c.ID)
	assert.False(t, active, "a rejected run must release the campaign")
	assert.Empty(t, a.store.StatusHistory)
}

func TestGenerateRejectedBeforeStarting(t *testing.T) {
	a := newTestAPI(t)
	c := a.campaign(t, models.CampaignReady)
	path := "/campaigns/" + c.ID.String() + "/generate"

	a.handler.Pipeline = campaign.New(a.store, nil, nil, nil, a.handler.Hub, zap.NewNop())
	resp := a.do(t, http.MethodPost, path, "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	a.handler.Pipeline = campaign.New(a.store, nil, nil, stubGenerator{}, a.handler.Hub, zap.NewNop())
	a.store.PutLead(models.Lead{CampaignID: c.ID, Name: "Sin email", Status: models.LeadPending})
	resp = a.do(t, http.MethodPost, path, "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	_, active := a.handler.Runs.Active(c.ID)
	assert.False(t, active)
	assert.Empty(t, a.store.StatusHistory)
}

func TestGetCampaignIncludesLastProgress(t *testing.T) {
	a := newTestAPI(t)
	c := a.campaign(t, models.CampaignReady)
	path := "/campaigns/" + c.ID.String()

	resp := a.do(t, http.MethodGet, path, "")
	var before map[string]any
	decodeBody(t, resp, &before)
	assert.NotContains(t, before, "progress")

	a.handler.Hub.Publish(progress.Snapshot{CampaignID: c.ID, Phase: progress.PhaseDone, Message: "2 enviados, 0 con error"})

	resp = a.do(t, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got struct {
		Progress *progress.Snapshot `json:"progress"`
	}
	decodeBody(t, resp, &got)
	require.NotNil(t, got.Progress)
	assert.Equal(t, progress.PhaseDone, got.Progress.Phase)

	resp = a.do(t, http.MethodDelete, path, "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	_, ok := a.handler.Hub.Last(c.ID)
	assert.False(t, ok)
}

func TestProgressStreamStartsWithLastSnapshot(t *testing.T) {
	a := newTestAPI(t)
	c := a.campaign(t, models.CampaignReady)
	a.handler.Hub.Publish(progress.Snapshot{CampaignID: c.ID, Phase: progress.PhaseError, Message: "sin leads"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.server.URL+"/campaigns/"+c.ID.String()+"/progress", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	reader := bufio.NewReader(resp.Body)
	var data string
	for data == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(strings.TrimSpace(line), "data: ")
		}
	}

	var snap progress.Snapshot
	require.NoError(t, json.Unmarshal([]byte(data), &snap))
	assert.Equal(t, progress.PhaseError, snap.Phase)
	assert.Equal(t, "sin leads", snap.Message)
}
