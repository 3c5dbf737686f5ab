package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
	audit "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/audit"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/audit/store/memory"
)

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	actorID := id.ActorID(uuid.New())
	err := pub.Emit(context.Background(), audit.Event{
		ActorID: actorID,
		Action:  string(audit.EventPayoutRequested),
	})
	require.NoError(t, err)

	events, err := pub.List(context.Background(), actorID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventPayoutRequested), events[0].Action)
	assert.Equal(t, audit.CategoryOperations, events[0].Category)
}

func TestPublisher_DerivesCategory(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	actorID := id.ActorID(uuid.New())
	require.NoError(t, pub.Emit(context.Background(), audit.Event{ActorID: actorID, Action: string(audit.EventPayoutHeld)}))
	require.NoError(t, pub.Emit(context.Background(), audit.Event{ActorID: actorID, Action: string(audit.EventSignalDetected)}))

	events, err := pub.List(context.Background(), actorID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
	assert.Equal(t, audit.CategorySecurity, events[1].Category)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	actorID := id.ActorID(uuid.New())
	for range 10 {
		require.NoError(t, pub.Emit(context.Background(), audit.Event{
			ActorID: actorID,
			Action:  string(audit.EventSignalDetected),
		}))
	}

	pub.Close()

	events, err := store.ListByActor(context.Background(), actorID)
	require.NoError(t, err)
	assert.Len(t, events, 10, "all events should be drained on close")
}

func TestPublisher_EmitAfterCloseWritesThrough(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(4))
	pub.Close()
	pub.Close()

	actorID := id.ActorID(uuid.New())
	require.NoError(t, pub.Emit(context.Background(), audit.Event{ActorID: actorID, Action: string(audit.EventPayoutSettled)}))
	assert.Equal(t, []string{string(audit.EventPayoutSettled)}, store.Actions(actorID))
}

func TestPublisher_BufferFull_DropsWithoutPanic(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(1))
	defer pub.Close()

	actorID := id.ActorID(uuid.New())
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pub.Emit(context.Background(), audit.Event{ActorID: actorID, Action: string(audit.EventSignalDetected)})
			if err != nil {
				assert.True(t, errors.Is(err, ErrBufferFull))
			}
		}()
	}
	wg.Wait()
}

func TestPublisher_PreservesExistingTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	actorID := id.ActorID(uuid.New())
	custom := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, pub.Emit(context.Background(), audit.Event{
		ActorID:   actorID,
		Action:    string(audit.EventRiskStatusChanged),
		Timestamp: custom,
	}))

	events, err := pub.List(context.Background(), actorID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, custom, events[0].Timestamp)
}
