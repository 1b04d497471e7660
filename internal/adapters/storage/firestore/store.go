package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PabloGalante/situation-relay/internal/domain"
)

const (
	colChannelStates        = "channelStates"
	colChannelConversations = "channelConversations"
	colMessages             = "messages"
)

type Store struct {
	client *firestore.Client
}

// NewStore creates a Firestore store for projectID. credentialsJSON is an
// optional service-account key; when empty, ambient credentials are used.
func NewStore(ctx context.Context, projectID, credentialsJSON string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	var opts []option.ClientOption
	if credentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(normalizePrivateKey(credentialsJSON))))
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// normalizePrivateKey undoes the double escaping of a key pasted into a
// single-line env var, so the JSON decodes "\\n" as a newline again.
func normalizePrivateKey(secret string) string {
	return strings.ReplaceAll(secret, `\\n`, `\n`)
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) stateDoc(ch domain.ChannelID) *firestore.DocumentRef {
	return s.client.Collection(colChannelStates).Doc(string(ch))
}

func (s *Store) messagesCol(ch domain.ChannelID) *firestore.CollectionRef {
	return s.client.Collection(colChannelConversations).Doc(string(ch)).Collection(colMessages)
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

type channelStateDoc struct {
	Mode                    string    `firestore:"mode"`
	Situation               string    `firestore:"situation,omitempty"`
	RebaseLastUserMessageID string    `firestore:"rebaseLastUserMessageId,omitempty"`
	UpdatedAt               time.Time `firestore:"updatedAt"`
}

type messageDoc struct {
	Role                 string    `firestore:"role"`
	Content              string    `firestore:"content"`
	DiscordMessageID     string    `firestore:"discordMessageId,omitempty"`
	DiscordUserMessageID string    `firestore:"discordUserMessageId,omitempty"`
	CreatedAt            time.Time `firestore:"createdAt"`
}

// ─────────────────────────────────────────
// StateStore implementation
// ─────────────────────────────────────────

func (s *Store) GetChannelState(ctx context.Context, ch domain.ChannelID) (*domain.ChannelState, error) {
	snap, err := s.stateDoc(ch).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("firestore GetChannelState: %w", err)
	}

	var doc channelStateDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("firestore GetChannelState decode: %w", err)
	}

	return &domain.ChannelState{
		ChannelID:    ch,
		Mode:         domain.ParseMode(doc.Mode),
		Situation:    doc.Situation,
		RebaseAnchor: domain.MessageRef(doc.RebaseLastUserMessageID),
		UpdatedAt:    doc.UpdatedAt,
	}, nil
}

func (s *Store) MergeChannelState(ctx context.Context, ch domain.ChannelID, patch domain.StatePatch) error {
	doc := map[string]interface{}{
		"updatedAt": firestore.ServerTimestamp,
	}
	if patch.Mode != nil {
		doc["mode"] = patch.Mode.String()
	}
	if patch.Situation != nil {
		doc["situation"] = *patch.Situation
	}
	if patch.RebaseAnchor != nil {
		doc["rebaseLastUserMessageId"] = string(*patch.RebaseAnchor)
	}

	_, err := s.stateDoc(ch).Set(ctx, doc, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("firestore MergeChannelState: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────
// MessageStore implementation
// ─────────────────────────────────────────

func (s *Store) AddMessage(ctx context.Context, ch domain.ChannelID, msg *domain.ConversationMessage) error {
	doc := map[string]interface{}{
		"role":      string(msg.Role),
		"content":   msg.Content,
		"createdAt": firestore.ServerTimestamp,
	}
	if msg.AssistantMessageRef != "" {
		doc["discordMessageId"] = string(msg.AssistantMessageRef)
	}
	if msg.UserMessageRef != "" {
		doc["discordUserMessageId"] = string(msg.UserMessageRef)
	}

	ref, wr, err := s.messagesCol(ch).Add(ctx, doc)
	if err != nil {
		return fmt.Errorf("firestore AddMessage: %w", err)
	}

	msg.ID = domain.MessageID(ref.ID)
	msg.CreatedAt = wr.UpdateTime
	return nil
}

// ListMessages scans the whole sub-collection in ascending createdAt order.
// Callers slice the tail themselves; a descending query with a limit is not
// equivalent while the newest server timestamps are still being resolved.
func (s *Store) ListMessages(ctx context.Context, ch domain.ChannelID) ([]*domain.ConversationMessage, error) {
	iter := s.messagesCol(ch).OrderBy("createdAt", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var out []*domain.ConversationMessage
	for {
		snap, err := iter.Next()
		if err != nil {
			if errors.Is(err, iterator.Done) {
				break
			}
			return nil, fmt.Errorf("firestore ListMessages: %w", err)
		}

		var doc messageDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode messageDoc: %w", err)
		}

		out = append(out, &domain.ConversationMessage{
			ID:                  domain.MessageID(snap.Ref.ID),
			Role:                domain.Role(doc.Role),
			Content:             doc.Content,
			UserMessageRef:      domain.MessageRef(doc.DiscordUserMessageID),
			AssistantMessageRef: domain.MessageRef(doc.DiscordMessageID),
			CreatedAt:           doc.CreatedAt,
		})
	}
	return out, nil
}

// DeleteMessages removes ids in a single transaction commit so readers never
// observe a partially truncated log.
func (s *Store) DeleteMessages(ctx context.Context, ch domain.ChannelID, ids []domain.MessageID) error {
	if len(ids) == 0 {
		return nil
	}

	col := s.messagesCol(ch)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		for _, id := range ids {
			if err := tx.Delete(col.Doc(string(id))); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("firestore DeleteMessages: %w", err)
	}
	return nil
}

var _ domain.ConversationStore = (*Store)(nil)
