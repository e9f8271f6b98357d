package campaign

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunKind names the work a campaign is busy with.
type RunKind string

const (
	RunScrape   RunKind = "scrape"
	RunGenerate RunKind = "generate"
	RunSend     RunKind = "send"
	RunImport   RunKind = "import"
	RunDelete   RunKind = "delete"
)

type run struct {
	kind    RunKind
	cancel  context.CancelFunc
	started time.Time
}

// Runs tracks the single active run allowed per campaign and holds the
// cancel func used to abort it.
type Runs struct {
	mu     sync.Mutex
	active map[uuid.UUID]*run
	wg     sync.WaitGroup
}

func NewRuns() *Runs {
	return &Runs{active: make(map[uuid.UUID]*run)}
}

// Begin claims campaignID for a run. The returned context is cancelled by
// Abort or Shutdown; done must be called when the run ends.
func (r *Runs) Begin(parent context.Context, campaignID uuid.UUID, kind RunKind) (context.Context, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.active[campaignID]; ok {
		return nil, nil, fmt.Errorf("%w: %s running since %s", ErrCampaignBusy, cur.kind, cur.started.Format(time.RFC3339))
	}

	ctx, cancel := context.WithCancel(parent)
	rn := &run{kind: kind, cancel: cancel, started: time.Now()}
	r.active[campaignID] = rn
	r.wg.Add(1)

	var once sync.Once
	done := func() {
		once.Do(func() {
			r.mu.Lock()
			if r.active[campaignID] == rn {
				delete(r.active, campaignID)
			}
			r.mu.Unlock()
			cancel()
			r.wg.Done()
		})
	}
	return ctx, done, nil
}

// Abort cancels the active run of a campaign. It reports whether one existed.
func (r *Runs) Abort(campaignID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rn, ok := r.active[campaignID]
	if ok {
		rn.cancel()
	}
	return ok
}

// Active reports the kind of run in progress for a campaign.
func (r *Runs) Active(campaignID uuid.UUID) (RunKind, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rn, ok := r.active[campaignID]
	if !ok {
		return "", false
	}
	return rn.kind, true
}

// Shutdown cancels every active run and waits for them to finish or for ctx to expire.
func (r *Runs) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	for _, rn := range r.active {
		rn.cancel()
	}
	r.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
