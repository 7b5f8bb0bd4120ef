package services

import (
	"context"
	"testing"
	"time"

	"relay-chat/internal/repository"
	"relay-chat/internal/store"
	"relay-chat/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepairWorkerRunsPasses(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	t.Cleanup(s.Close)
	chats := repository.NewChatRepository(s)
	index := repository.NewChatIndexRepository(s)

	key, err := chats.Create(ctx, map[string]any{"users": []string{"a1", "b1"}, "isGroupChat": false})
	require.NoError(t, err)

	w := NewRepairWorker(NewIndexRepairer(chats, index, logger.NewNop()), 10*time.Millisecond, logger.NewNop())
	w.Start()
	defer w.Stop()

	select {
	case report := <-w.Passes():
		assert.Equal(t, 1, report.ChatsChecked)
		assert.Equal(t, 2, report.EntriesAdded())
	case <-time.After(2 * time.Second):
		require.FailNow(t, "no repair pass")
	}
	for _, uid := range []string{"a1", "b1"} {
		assert.Equal(t, 1, indexed(t, index, uid, key), "%s references", uid)
	}
}

func TestRepairWorkerStopIsIdempotent(t *testing.T) {
	w := NewRepairWorker(nil, time.Hour, logger.NewNop())
	w.Start()
	w.Stop()
	assert.NotPanics(t, w.Stop)
}
