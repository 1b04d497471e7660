package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/situation-relay/internal/domain"
)

func TestStateStoreMissingChannel(t *testing.T) {
	s := NewStateStore()
	_, err := s.GetChannelState(context.Background(), "c1")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestStateStoreMergeKeepsUntouchedFields(t *testing.T) {
	ctx := context.Background()
	s := NewStateStore()

	situation := "You are a pirate."
	mode := domain.ModeAwaitingReinput
	require.NoError(t, s.MergeChannelState(ctx, "c1", domain.StatePatch{Situation: &situation}))
	require.NoError(t, s.MergeChannelState(ctx, "c1", domain.StatePatch{Mode: &mode}))

	st, err := s.GetChannelState(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, situation, st.Situation)
	assert.Equal(t, domain.ModeAwaitingReinput, st.Mode)
}

func TestStateStoreUpdatedAtNeverDecreases(t *testing.T) {
	ctx := context.Background()
	s := NewStateStore()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := []time.Time{base, base.Add(-time.Hour)}
	s.now = func() time.Time { v := clock[0]; clock = clock[1:]; return v }

	mode := domain.ModeIdle
	require.NoError(t, s.MergeChannelState(ctx, "c1", domain.StatePatch{Mode: &mode}))
	require.NoError(t, s.MergeChannelState(ctx, "c1", domain.StatePatch{Mode: &mode}))

	st, err := s.GetChannelState(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, base, st.UpdatedAt)
}

func TestMessageStoreStrictlyIncreasingCreatedAt(t *testing.T) {
	ctx := context.Background()
	s := NewMessageStore()
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	for i := 0; i < 3; i++ {
		require.NoError(t, s.AddMessage(ctx, "c1", domain.NewUserMessage("hi", domain.MessageRef(fmt.Sprintf("U%d", i)))))
	}

	msgs, err := s.ListMessages(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for i := 1; i < len(msgs); i++ {
		assert.True(t, msgs[i].CreatedAt.After(msgs[i-1].CreatedAt))
	}
}

func TestMessageStoreAddAssignsID(t *testing.T) {
	s := NewMessageStore()
	msg := domain.NewAssistantMessage("hello", "A1")
	require.NoError(t, s.AddMessage(context.Background(), "c1", msg))
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.CreatedAt.IsZero())
}

func TestMessageStoreDeleteIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := NewMessageStore()
	m1 := domain.NewUserMessage("one", "U1")
	m2 := domain.NewUserMessage("two", "U2")
	require.NoError(t, s.AddMessage(ctx, "c1", m1))
	require.NoError(t, s.AddMessage(ctx, "c1", m2))

	err := s.DeleteMessages(ctx, "c1", []domain.MessageID{m1.ID, "missing"})
	require.Error(t, err)

	msgs, err := s.ListMessages(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, msgs, 2)

	require.NoError(t, s.DeleteMessages(ctx, "c1", []domain.MessageID{m1.ID}))
	msgs, err = s.ListMessages(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "two", msgs[0].Content)
}

func TestMessageStoreChannelsAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := NewMessageStore()
	require.NoError(t, s.AddMessage(ctx, "c1", domain.NewUserMessage("one", "U1")))

	msgs, err := s.ListMessages(ctx, "c2")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
