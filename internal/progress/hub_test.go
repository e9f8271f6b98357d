package progress

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubFanOut(t *testing.T) {
	h := NewHub()
	a, unsubA := h.Subscribe(uuid.Nil, 4)
	b, unsubB := h.Subscribe(uuid.Nil, 4)
	defer unsubA()
	defer unsubB()

	h.Publish(Snapshot{Phase: PhasePlaces, Message: "searching"})

	assert.Equal(t, PhasePlaces, (<-a).Phase)
	assert.Equal(t, PhasePlaces, (<-b).Phase)
}

func TestHubDropsOldestWhenFull(t *testing.T) {
	h := NewHub()
	ch, unsub := h.Subscribe(uuid.Nil, 2)
	defer unsub()

	for i := 1; i <= 5; i++ {
		h.Publish(Snapshot{Current: i})
	}

	require.Len(t, ch, 2)
	assert.Equal(t, 4, (<-ch).Current)
	assert.Equal(t, 5, (<-ch).Current)
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	h := NewHub()
	ch, unsub := h.Subscribe(uuid.Nil, 1)
	unsub()
	unsub()

	_, ok := <-ch
	assert.False(t, ok)

	h.Publish(Snapshot{Current: 1})
}

func TestHubFiltersByCampaign(t *testing.T) {
	h := NewHub()
	mine, other := uuid.New(), uuid.New()
	ch, unsub := h.Subscribe(mine, 2)
	defer unsub()

	h.Publish(Snapshot{CampaignID: mine, Phase: PhaseDone})
	for i := 0; i < 10; i++ {
		h.Publish(Snapshot{CampaignID: other, Phase: PhaseSending, Current: i})
	}

	require.Len(t, ch, 1)
	snap := <-ch
	assert.Equal(t, mine, snap.CampaignID)
	assert.Equal(t, PhaseDone, snap.Phase)
}

func TestHubReplaysLastSnapshot(t *testing.T) {
	h := NewHub()
	id := uuid.New()

	h.Publish(Snapshot{CampaignID: id, Phase: PhaseSending, Current: 1})
	h.Publish(Snapshot{CampaignID: id, Phase: PhaseDone, Current: 2})
	h.Publish(Snapshot{CampaignID: uuid.New(), Phase: PhaseError})

	last, ok := h.Last(id)
	require.True(t, ok)
	assert.Equal(t, PhaseDone, last.Phase)

	ch, unsub := h.Subscribe(id, 4)
	defer unsub()
	require.Len(t, ch, 1)
	assert.Equal(t, 2, (<-ch).Current)

	all, unsubAll := h.Subscribe(uuid.Nil, 4)
	defer unsubAll()
	assert.Empty(t, all)

	h.Forget(id)
	_, ok = h.Last(id)
	assert.False(t, ok)
}

func TestNilHubPublish(t *testing.T) {
	var h *Hub
	assert.NotPanics(t, func() { h.Publish(Snapshot{}) })
}
