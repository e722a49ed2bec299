package publisher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "github.com/taxlien-online/taxlien-nft/pkg/platform/audit"
	auditmemory "github.com/taxlien-online/taxlien-nft/pkg/platform/audit/store/memory"
)

func TestSynchronousEmit(t *testing.T) {
	ctx := context.Background()
	store := auditmemory.NewInMemoryStore()
	p := NewPublisher(store)
	defer p.Close()

	require.NoError(t, p.Emit(ctx, audit.Event{Action: "lien_created", HasLien: true, LienID: 1}))

	events, err := store.ListByLien(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestAsyncEmitFlushesOnClose(t *testing.T) {
	ctx := context.Background()
	store := auditmemory.NewInMemoryStore()
	p := NewPublisher(store, WithAsyncBuffer(16))

	for i := 0; i < 10; i++ {
		require.NoError(t, p.Emit(ctx, audit.Event{Action: "status_updated", HasLien: true, LienID: 2}))
	}
	p.Close()

	events, err := store.ListByLien(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, events, 10)
}

func TestFullBufferFallsBackToSync(t *testing.T) {
	ctx := context.Background()
	store := auditmemory.NewInMemoryStore()
	p := NewPublisher(store, WithAsyncBuffer(1))

	// Many more events than the buffer holds; none may be dropped.
	for i := 0; i < 50; i++ {
		require.NoError(t, p.Emit(ctx, audit.Event{Action: "lien_created", HasLien: true, LienID: 3}))
	}
	p.Close()

	events, err := store.ListByLien(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, events, 50)
}
