package progress

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Phase string

const (
	PhasePlaces     Phase = "places"
	PhaseEmails     Phase = "emails"
	PhaseSaving     Phase = "saving"
	PhaseGenerating Phase = "generating"
	PhaseSending    Phase = "sending"
	PhaseDone       Phase = "done"
	PhaseError      Phase = "error"
)

// Snapshot is an ephemeral view of a running phase. It is never persisted.
type Snapshot struct {
	CampaignID uuid.UUID `json:"campaign_id"`
	Phase      Phase     `json:"phase"`
	Current    int       `json:"current"`
	Total      int       `json:"total"`
	Sent       int       `json:"sent,omitempty"`
	Failed     int       `json:"failed,omitempty"`
	LeadName   string    `json:"lead_name,omitempty"`
	Message    string    `json:"message"`
	StartedAt  time.Time `json:"started_at"`
}

// Hub fans snapshots out to any number of subscribers. Each subscriber has a
// bounded queue; when it is full the oldest queued snapshot is dropped, so a
// slow reader never blocks the pipeline. The last snapshot of every campaign
// is kept so late subscribers start from the current state.
type Hub struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
	last map[uuid.UUID]Snapshot
}

type subscriber struct {
	ch       chan Snapshot
	campaign uuid.UUID
}

func (s *subscriber) wants(id uuid.UUID) bool {
	return s.campaign == uuid.Nil || s.campaign == id
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[*subscriber]struct{}),
		last: make(map[uuid.UUID]Snapshot),
	}
}

// Subscribe registers a new observer of one campaign, or of every campaign
// when campaignID is uuid.Nil. A campaign subscriber first receives the last
// snapshot published for it, if any. The returned func unsubscribes and
// closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(campaignID uuid.UUID, buffer int) (<-chan Snapshot, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	s := &subscriber{ch: make(chan Snapshot, buffer), campaign: campaignID}

	h.mu.Lock()
	if snap, ok := h.last[campaignID]; ok && campaignID != uuid.Nil {
		s.ch <- snap
	}
	h.subs[s] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, s)
			h.mu.Unlock()
			close(s.ch)
		})
	}
}

// Last returns the most recent snapshot published for a campaign.
func (h *Hub) Last(campaignID uuid.UUID) (Snapshot, bool) {
	if h == nil {
		return Snapshot{}, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	snap, ok := h.last[campaignID]
	return snap, ok
}

// Forget drops the stored snapshot of a deleted campaign.
func (h *Hub) Forget(campaignID uuid.UUID) {
	if h == nil {
		return
	}
	h.mu.Lock()
	delete(h.last, campaignID)
	h.mu.Unlock()
}

// Publish delivers snap to every interested subscriber without blocking. A nil Hub is a no-op.
func (h *Hub) Publish(snap Snapshot) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	h.last[snap.CampaignID] = snap

	for s := range h.subs {
		if !s.wants(snap.CampaignID) {
			continue
		}
		for {
			select {
			case s.ch <- snap:
			default:
				select {
				case <-s.ch:
				default:
				}
				continue
			}
			break
		}
	}
}
