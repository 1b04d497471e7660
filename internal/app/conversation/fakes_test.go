package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/PabloGalante/situation-relay/internal/domain"
)

type sentMessage struct {
	Channel domain.ChannelID
	To      domain.MessageRef // empty for Send
	Content string
	Ref     domain.MessageRef
}

type reaction struct {
	Message domain.MessageRef
	Emoji   string
}

type fakeReplier struct {
	mu        sync.Mutex
	n         int
	sent      []sentMessage
	reactions []reaction
	typing    int
}

func (f *fakeReplier) post(ch domain.ChannelID, to domain.MessageRef, content string) domain.MessageRef {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	ref := domain.MessageRef(fmt.Sprintf("B%d", f.n))
	f.sent = append(f.sent, sentMessage{Channel: ch, To: to, Content: content, Ref: ref})
	return ref
}

func (f *fakeReplier) Reply(_ context.Context, ch domain.ChannelID, to domain.MessageRef, content string) (domain.MessageRef, error) {
	return f.post(ch, to, content), nil
}

func (f *fakeReplier) Send(_ context.Context, ch domain.ChannelID, content string) (domain.MessageRef, error) {
	return f.post(ch, "", content), nil
}

func (f *fakeReplier) React(_ context.Context, _ domain.ChannelID, msg domain.MessageRef, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions = append(f.reactions, reaction{Message: msg, Emoji: emoji})
	return nil
}

func (f *fakeReplier) Typing(context.Context, domain.ChannelID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typing++
	return errors.New("typing is best effort")
}

func (f *fakeReplier) last() sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return sentMessage{}
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeReplier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// scriptedLLM returns replies in order and records every input.
type scriptedLLM struct {
	mu      sync.Mutex
	replies []string
	err     error
	block   bool
	inputs  [][]domain.ChatMessage
}

func (s *scriptedLLM) GenerateReply(ctx context.Context, msgs []domain.ChatMessage) (string, error) {
	s.mu.Lock()
	s.inputs = append(s.inputs, msgs)
	block, err := s.block, s.err
	var reply string
	if len(s.replies) > 0 {
		reply, s.replies = s.replies[0], s.replies[1:]
	}
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if err != nil {
		return "", err
	}
	return reply, nil
}

func (s *scriptedLLM) lastInput() []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.inputs) == 0 {
		return nil
	}
	return s.inputs[len(s.inputs)-1]
}

func (s *scriptedLLM) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inputs)
}

type fakeExpander struct {
	out string
	err error
	got string
}

func (f *fakeExpander) Expand(_ context.Context, situation string) (string, error) {
	f.got = situation
	return f.out, f.err
}

// brokenStore fails every operation.
type brokenStore struct{}

var errUnavailable = errors.New("store unavailable")

func (brokenStore) GetChannelState(context.Context, domain.ChannelID) (*domain.ChannelState, error) {
	return nil, errUnavailable
}

func (brokenStore) MergeChannelState(context.Context, domain.ChannelID, domain.StatePatch) error {
	return errUnavailable
}

func (brokenStore) AddMessage(context.Context, domain.ChannelID, *domain.ConversationMessage) error {
	return errUnavailable
}

func (brokenStore) ListMessages(context.Context, domain.ChannelID) ([]*domain.ConversationMessage, error) {
	return nil, errUnavailable
}

func (brokenStore) DeleteMessages(context.Context, domain.ChannelID, []domain.MessageID) error {
	return errUnavailable
}
