package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/situation-relay/internal/adapters/storage/memory"
	"github.com/PabloGalante/situation-relay/internal/app/prompt"
	"github.com/PabloGalante/situation-relay/internal/domain"
)

const ch domain.ChannelID = "ch-1"

type harness struct {
	svc      *Service
	store    *memory.Store
	replier  *fakeReplier
	llm      *scriptedLLM
	expander *fakeExpander
}

func newHarness(t *testing.T, assembler prompt.Assembler, opts Options) *harness {
	t.Helper()
	h := &harness{
		store:    memory.NewStore(),
		replier:  &fakeReplier{},
		llm:      &scriptedLLM{},
		expander: &fakeExpander{},
	}
	policy := StaticPolicy{Profile: ChannelProfile{Backend: "scripted", Model: h.llm, Assembler: assembler}}
	h.svc = NewService(h.store, h.replier, policy, h.expander, opts)
	return h
}

func (h *harness) seed(t *testing.T, msgs ...*domain.ConversationMessage) {
	t.Helper()
	for _, m := range msgs {
		require.NoError(t, h.store.AddMessage(context.Background(), ch, m))
	}
}

func (h *harness) history(t *testing.T) []string {
	t.Helper()
	msgs, err := h.store.ListMessages(context.Background(), ch)
	require.NoError(t, err)
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = fmt.Sprintf("%s:%s:%s", m.Role, m.Content, m.Ref())
	}
	return out
}

func (h *harness) mode(t *testing.T) domain.Mode {
	t.Helper()
	st, err := h.store.GetChannelState(context.Background(), ch)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ModeIdle
	}
	require.NoError(t, err)
	return st.Mode.Effective()
}

func fourTurns() []*domain.ConversationMessage {
	return []*domain.ConversationMessage{
		domain.NewUserMessage("投稿1", "U1"),
		domain.NewAssistantMessage("投稿2", "A2"),
		domain.NewUserMessage("投稿3", "U3"),
		domain.NewAssistantMessage("投稿4", "A4"),
	}
}

func userMsg(ref, content string) domain.InboundMessage {
	return domain.InboundMessage{ChannelID: ch, AuthorID: "user", MessageID: domain.MessageRef(ref), Content: content}
}

func TestNormalTurn(t *testing.T) {
	h := newHarness(t, prompt.Assembler{}, Options{})
	h.llm.replies = []string{"こんにちは"}

	require.NoError(t, h.svc.HandleMessage(context.Background(), userMsg("U1", "hello")))

	assert.Equal(t, []string{"user:hello:U1", "assistant:こんにちは:B1"}, h.history(t))
	assert.Equal(t, sentMessage{Channel: ch, To: "U1", Content: "こんにちは", Ref: "B1"}, h.replier.last())
	assert.Equal(t, []domain.ChatMessage{
		{Role: domain.ChatRoleSystem, Content: prompt.DefaultSystemPrompt},
		{Role: domain.ChatRoleUser, Content: "hello"},
	}, h.llm.lastInput())
	assert.Equal(t, 1, h.replier.typing)
}

func TestTurnUsesSituationAndWindow(t *testing.T) {
	h := newHarness(t, prompt.Assembler{}, Options{HistoryLimit: 2})
	h.seed(t, fourTurns()...)
	situation := "you are a cat"
	require.NoError(t, h.store.MergeChannelState(context.Background(), ch, domain.StatePatch{Situation: &situation}))
	h.llm.replies = []string{"nya"}

	require.NoError(t, h.svc.HandleMessage(context.Background(), userMsg("U5", "投稿5")))

	assert.Equal(t, []domain.ChatMessage{
		{Role: domain.ChatRoleSystem, Content: "you are a cat"},
		{Role: domain.ChatRoleAssistant, Content: "投稿4"},
		{Role: domain.ChatRoleUser, Content: "投稿5"},
	}, h.llm.lastInput())
}

func TestIgnoresBotsAndDisallowedChannels(t *testing.T) {
	h := newHarness(t, prompt.Assembler{}, Options{AllowedChannels: []domain.ChannelID{"other"}})

	require.NoError(t, h.svc.HandleMessage(context.Background(), userMsg("U1", "hello")))

	bot := userMsg("U2", "hello")
	bot.ChannelID = "other"
	bot.AuthorIsBot = true
	require.NoError(t, h.svc.HandleMessage(context.Background(), bot))

	assert.Equal(t, 0, h.replier.count())
	assert.Equal(t, 0, h.llm.calls())
	assert.True(t, h.svc.Allowed("other"))
	assert.False(t, h.svc.Allowed(ch))
}

func TestAllowedChannelsAreCopied(t *testing.T) {
	allowed := []domain.ChannelID{"a"}
	h := newHarness(t, prompt.Assembler{}, Options{AllowedChannels: allowed})
	allowed[0] = "b"

	assert.True(t, h.svc.Allowed("a"))
	assert.False(t, h.svc.Allowed("b"))
}

func TestPrefixedMessageResetsModeWithoutTurn(t *testing.T) {
	h := newHarness(t, prompt.Assembler{}, Options{})
	ctx := context.Background()
	h.svc.HandleCommand(ctx, ch, domain.CommandInit)
	require.Equal(t, domain.ModeAwaitingSituationInput, h.mode(t))

	require.NoError(t, h.svc.HandleMessage(ctx, userMsg("U1", "/something")))

	assert.Equal(t, domain.ModeIdle, h.mode(t))
	assert.Empty(t, h.history(t))
	assert.Equal(t, 0, h.llm.calls())
}

func TestSituationInput(t *testing.T) {
	h := newHarness(t, prompt.Assembler{}, Options{})
	ctx := context.Background()
	h.seed(t, fourTurns()...)

	res := h.svc.HandleCommand(ctx, ch, domain.CommandInit)
	assert.Equal(t, MsgEnterSituation, res.Content)
	assert.Empty(t, h.history(t), "init discards the old conversation")

	require.NoError(t, h.svc.HandleMessage(ctx, userMsg("U9", "雨の夜の駅")))

	st, err := h.store.GetChannelState(ctx, ch)
	require.NoError(t, err)
	assert.Equal(t, "雨の夜の駅", st.Situation)
	assert.Equal(t, domain.ModeIdle, st.Mode)
	assert.Empty(t, h.history(t))
	assert.Equal(t, MsgSituationRegistered, h.replier.last().Content)
	assert.Equal(t, 0, h.llm.calls())
}

func TestModelFailureSkipsAssistantAppend(t *testing.T) {
	h := newHarness(t, prompt.Assembler{}, Options{})
	h.llm.err = errors.New("boom")

	require.NoError(t, h.svc.HandleMessage(context.Background(), userMsg("U1", "hello")))

	assert.Equal(t, []string{"user:hello:U1"}, h.history(t))
	assert.Equal(t, MsgModelFailure, h.replier.last().Content)
}

func TestModelTimeout(t *testing.T) {
	h := newHarness(t, prompt.Assembler{}, Options{ModelTimeout: 10 * time.Millisecond})
	h.llm.block = true

	require.NoError(t, h.svc.HandleMessage(context.Background(), userMsg("U1", "hello")))

	assert.Equal(t, MsgModelFailure, h.replier.last().Content)
	assert.Equal(t, []string{"user:hello:U1"}, h.history(t))
}

func TestEmptyReplyPlaceholder(t *testing.T) {
	h := newHarness(t, prompt.Assembler{}, Options{})
	h.llm.replies = []string{"  "}

	require.NoError(t, h.svc.HandleMessage(context.Background(), userMsg("U1", "hello")))

	assert.Equal(t, EmptyReplyPlaceholder, h.replier.last().Content)
	assert.Equal(t, []string{"user:hello:U1", "assistant:" + EmptyReplyPlaceholder + ":B1"}, h.history(t))
}

func TestStrictProfileRequiresSituation(t *testing.T) {
	h := newHarness(t, prompt.Assembler{RequireSituation: true, Suffix: "日本語で"}, Options{})
	ctx := context.Background()

	require.NoError(t, h.svc.HandleMessage(ctx, userMsg("U1", "hello")))
	assert.Equal(t, MsgSituationRequired, h.replier.last().Content)
	assert.Empty(t, h.history(t))
	assert.Equal(t, 0, h.llm.calls())

	situation := "scene"
	require.NoError(t, h.store.MergeChannelState(ctx, ch, domain.StatePatch{Situation: &situation}))
	h.llm.replies = []string{"ok"}
	require.NoError(t, h.svc.HandleMessage(ctx, userMsg("U2", "hello")))
	assert.Equal(t, "scene\n\n日本語で", h.llm.lastInput()[0].Content)
}

func TestStoreUnavailable(t *testing.T) {
	replier := &fakeReplier{}
	llm := &scriptedLLM{}
	svc := NewService(brokenStore{}, replier, StaticPolicy{Profile: ChannelProfile{Model: llm}}, nil, Options{})
	ctx := context.Background()

	require.NoError(t, svc.HandleMessage(ctx, userMsg("U1", "hello")))
	assert.Equal(t, MsgStoreUnavailable, replier.last().Content)

	require.NoError(t, svc.HandleReaction(ctx, domain.ReactionEvent{ChannelID: ch, MessageID: "U1", Emoji: "♻️"}))
	assert.Equal(t, MsgStoreUnavailable, replier.last().Content)

	assert.Equal(t, MsgStoreUnavailable, svc.HandleCommand(ctx, ch, domain.CommandClear).Content)
	assert.Equal(t, 0, llm.calls())
}

func TestRegenerateAssistantReply(t *testing.T) {
	h := newHarness(t, prompt.Assembler{}, Options{})
	h.seed(t, fourTurns()...)
	h.llm.replies = []string{"新しい投稿2"}

	err := h.svc.HandleReaction(context.Background(), domain.ReactionEvent{
		ChannelID: ch, MessageID: "A2", Emoji: "♻️", TargetAuthorIsBot: true,
	})
	require.NoError(t, err)

	assert.Equal(t, []domain.ChatMessage{
		{Role: domain.ChatRoleSystem, Content: prompt.DefaultSystemPrompt},
		{Role: domain.ChatRoleUser, Content: "投稿1"},
	}, h.llm.lastInput())
	assert.Equal(t, []string{"user:投稿1:U1", "assistant:新しい投稿2:B1"}, h.history(t))
	assert.Equal(t, domain.MessageRef("A2"), h.replier.last().To)
}

func TestRegenerateUnknownTargetIsSilent(t *testing.T) {
	h := newHarness(t, prompt.Assembler{}, Options{})
	h.seed(t, fourTurns()...)

	err := h.svc.HandleReaction(context.Background(), domain.ReactionEvent{
		ChannelID: ch, MessageID: "gone", Emoji: "♻️", TargetAuthorIsBot: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 0, h.replier.count())
	assert.Equal(t, 0, h.llm.calls())
	assert.Len(t, h.history(t), 4)
}

func TestRegenerateModelFailureKeepsTruncation(t *testing.T) {
	h := newHarness(t, prompt.Assembler{}, Options{})
	h.seed(t, fourTurns()...)
	h.llm.err = errors.New("boom")

	require.NoError(t, h.svc.HandleReaction(context.Background(), domain.ReactionEvent{
		ChannelID: ch, MessageID: "A4", Emoji: "♻️", TargetAuthorIsBot: true,
	}))

	assert.Equal(t, MsgModelFailure, h.replier.last().Content)
	assert.Equal(t, []string{"user:投稿1:U1", "assistant:投稿2:A2", "user:投稿3:U3"}, h.history(t))
}

func TestRewindUserMessage(t *testing.T) {
	h := newHarness(t, prompt.Assembler{}, Options{})
	ctx := context.Background()
	h.seed(t, fourTurns()...)

	require.NoError(t, h.svc.HandleReaction(ctx, domain.ReactionEvent{ChannelID: ch, MessageID: "U3", Emoji: "♻️"}))

	assert.Equal(t, []string{"user:投稿1:U1", "assistant:投稿2:A2", "user:投稿3:U3"}, h.history(t))
	assert.Equal(t, MsgEnterReinput, h.replier.last().Content)
	assert.Equal(t, 0, h.llm.calls())

	st, err := h.store.GetChannelState(ctx, ch)
	require.NoError(t, err)
	assert.Equal(t, domain.ModeAwaitingReinput, st.Mode)
	assert.Equal(t, domain.MessageRef("U3"), st.RebaseAnchor)

	h.llm.replies = []string{"続き"}
	require.NoError(t, h.svc.HandleMessage(ctx, userMsg("U5", "言い直し")))

	assert.Equal(t, domain.ModeIdle, h.mode(t))
	assert.Equal(t, []string{
		"user:投稿1:U1", "assistant:投稿2:A2", "user:投稿3:U3",
		"user:言い直し:U5", "assistant:続き:B2",
	}, h.history(t))
}

func TestRewindUnknownTargetIsSilent(t *testing.T) {
	h := newHarness(t, prompt.Assembler{}, Options{})
	h.seed(t, fourTurns()...)

	require.NoError(t, h.svc.HandleReaction(context.Background(), domain.ReactionEvent{ChannelID: ch, MessageID: "A2", Emoji: "♻️"}))

	assert.Equal(t, 0, h.replier.count())
	assert.Equal(t, domain.ModeIdle, h.mode(t))
}

func TestReactionFilters(t *testing.T) {
	h := newHarness(t, prompt.Assembler{}, Options{})
	h.seed(t, fourTurns()...)
	ctx := context.Background()

	require.NoError(t, h.svc.HandleReaction(ctx, domain.ReactionEvent{ChannelID: ch, MessageID: "A2", Emoji: "♻️", TargetAuthorIsBot: true, ReactorIsBot: true}))
	require.NoError(t, h.svc.HandleReaction(ctx, domain.ReactionEvent{ChannelID: ch, MessageID: "A2", Emoji: "👍", TargetAuthorIsBot: true}))
	require.NoError(t, h.svc.HandleReaction(ctx, domain.ReactionEvent{ChannelID: ch, MessageID: "U1", Emoji: "✅"}))

	assert.Equal(t, 0, h.replier.count())
	assert.Len(t, h.history(t), 4)
}

func TestPromptExpansionFlow(t *testing.T) {
	h := newHarness(t, prompt.Assembler{}, Options{})
	ctx := context.Background()
	h.seed(t, fourTurns()...)
	h.expander.out = "# 世界観の設定"

	res := h.svc.HandleCommand(ctx, ch, domain.CommandPrompt)
	assert.Equal(t, domain.CommandResult{Content: MsgEnterExpansion, Ephemeral: true}, res)
	assert.Equal(t, domain.ModeAwaitingPromptExpansionInput, h.mode(t))

	require.NoError(t, h.svc.HandleMessage(ctx, userMsg("U9", "図書館")))

	assert.Equal(t, "図書館", h.expander.got)
	assert.Equal(t, domain.ModeIdle, h.mode(t))
	assert.Len(t, h.history(t), 4, "expansion input is not a turn")

	posted := h.replier.last()
	assert.Equal(t, "# 世界観の設定", posted.Content)
	assert.Empty(t, posted.To)
	assert.Equal(t, []reaction{{Message: posted.Ref, Emoji: "✅"}}, h.replier.reactions)

	require.NoError(t, h.svc.HandleReaction(ctx, domain.ReactionEvent{
		ChannelID: ch, MessageID: posted.Ref, Emoji: "✅", TargetAuthorIsBot: true,
	}))

	st, err := h.store.GetChannelState(ctx, ch)
	require.NoError(t, err)
	assert.Equal(t, "# 世界観の設定", st.Situation)
	assert.Equal(t, domain.ModeIdle, st.Mode)
	assert.Empty(t, h.history(t))
	assert.Equal(t, MsgSituationRegistered, h.replier.last().Content)
}

func TestPromptExpansionFailure(t *testing.T) {
	h := newHarness(t, prompt.Assembler{}, Options{})
	ctx := context.Background()
	h.expander.err = errors.New("boom")

	h.svc.HandleCommand(ctx, ch, domain.CommandPrompt)
	require.NoError(t, h.svc.HandleMessage(ctx, userMsg("U9", "図書館")))

	assert.Equal(t, MsgExpansionFailed, h.replier.last().Content)
	assert.Empty(t, h.replier.reactions)
	assert.Equal(t, domain.ModeIdle, h.mode(t))
}

func TestSameChannelEventsAreSerialized(t *testing.T) {
	h := newHarness(t, prompt.Assembler{}, Options{})
	const n = 20
	h.llm.replies = make([]string, n)
	for i := range h.llm.replies {
		h.llm.replies[i] = "reply"
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = h.svc.HandleMessage(context.Background(), userMsg(fmt.Sprintf("U%d", i), "hi"))
		}(i)
	}
	wg.Wait()

	msgs, err := h.store.ListMessages(context.Background(), ch)
	require.NoError(t, err)
	require.Len(t, msgs, 2*n)
	for i := 0; i < len(msgs); i += 2 {
		assert.Equal(t, domain.RoleUser, msgs[i].Role)
		assert.Equal(t, domain.RoleAssistant, msgs[i+1].Role, "turns must not interleave")
	}
	assert.Equal(t, 0, h.svc.locks.size())
}
