package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/PabloGalante/situation-relay/internal/domain"
	"github.com/PabloGalante/situation-relay/internal/observability"
)

// Store is a single-file domain.ConversationStore for deployments without
// Firestore.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewStore opens (or creates) the database at path. Parent directories are
// created if needed. Use ":memory:" for a throwaway database.
func NewStore(path string) (*Store, error) {
	logger := observability.WithFields("component", "sqlite_store")

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// one connection keeps ":memory:" coherent and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &Store{db: db, logger: logger, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("sqlite store initialized", "path", path)
	return s, nil
}

func (s *Store) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS channel_states (
			channel_id TEXT PRIMARY KEY,
			mode TEXT NOT NULL DEFAULT '',
			situation TEXT NOT NULL DEFAULT '',
			rebase_anchor TEXT NOT NULL DEFAULT '',
			updated_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS conversation_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			channel_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			user_message_ref TEXT NOT NULL DEFAULT '',
			assistant_message_ref TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_conversation_messages_channel
			ON conversation_messages(channel_id, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ─────────────────────────────────────────
// StateStore implementation
// ─────────────────────────────────────────

func (s *Store) GetChannelState(ctx context.Context, ch domain.ChannelID) (*domain.ChannelState, error) {
	var (
		mode, situation, anchor string
		updated                 int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT mode, situation, rebase_anchor, updated_at FROM channel_states WHERE channel_id = ?`,
		string(ch),
	).Scan(&mode, &situation, &anchor, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite GetChannelState: %w", err)
	}

	return &domain.ChannelState{
		ChannelID:    ch,
		Mode:         domain.ParseMode(mode),
		Situation:    situation,
		RebaseAnchor: domain.MessageRef(anchor),
		UpdatedAt:    time.Unix(0, updated),
	}, nil
}

func (s *Store) MergeChannelState(ctx context.Context, ch domain.ChannelID, patch domain.StatePatch) error {
	cols := []string{"updated_at"}
	args := []any{string(ch), s.now().UnixNano()}
	if patch.Mode != nil {
		cols = append(cols, "mode")
		args = append(args, patch.Mode.String())
	}
	if patch.Situation != nil {
		cols = append(cols, "situation")
		args = append(args, *patch.Situation)
	}
	if patch.RebaseAnchor != nil {
		cols = append(cols, "rebase_anchor")
		args = append(args, string(*patch.RebaseAnchor))
	}

	placeholders := strings.Repeat(", ?", len(cols))
	sets := make([]string, len(cols))
	for i, c := range cols {
		if c == "updated_at" {
			sets[i] = "updated_at = MAX(updated_at, excluded.updated_at)"
			continue
		}
		sets[i] = c + " = excluded." + c
	}

	query := fmt.Sprintf(
		`INSERT INTO channel_states (channel_id, %s) VALUES (?%s)
		 ON CONFLICT(channel_id) DO UPDATE SET %s`,
		strings.Join(cols, ", "), placeholders, strings.Join(sets, ", "),
	)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("sqlite MergeChannelState: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────
// MessageStore implementation
// ─────────────────────────────────────────

func (s *Store) AddMessage(ctx context.Context, ch domain.ChannelID, msg *domain.ConversationMessage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite AddMessage: begin: %w", err)
	}
	defer tx.Rollback()

	createdAt := s.now().UnixNano()
	var last sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(created_at) FROM conversation_messages WHERE channel_id = ?`, string(ch),
	).Scan(&last); err != nil {
		return fmt.Errorf("sqlite AddMessage: last timestamp: %w", err)
	}
	if last.Valid && createdAt <= last.Int64 {
		createdAt = last.Int64 + 1
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO conversation_messages
			(channel_id, role, content, user_message_ref, assistant_message_ref, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		string(ch), string(msg.Role), msg.Content,
		string(msg.UserMessageRef), string(msg.AssistantMessageRef), createdAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite AddMessage: insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite AddMessage: last id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite AddMessage: commit: %w", err)
	}

	msg.ID = domain.MessageID(strconv.FormatInt(id, 10))
	msg.CreatedAt = time.Unix(0, createdAt)
	return nil
}

func (s *Store) ListMessages(ctx context.Context, ch domain.ChannelID) ([]*domain.ConversationMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, content, user_message_ref, assistant_message_ref, created_at
		 FROM conversation_messages WHERE channel_id = ?
		 ORDER BY created_at ASC, id ASC`,
		string(ch),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite ListMessages: %w", err)
	}
	defer rows.Close()

	var out []*domain.ConversationMessage
	for rows.Next() {
		var (
			id                    int64
			role, content         string
			userRef, assistantRef string
			created               int64
		)
		if err := rows.Scan(&id, &role, &content, &userRef, &assistantRef, &created); err != nil {
			return nil, fmt.Errorf("sqlite ListMessages: scan: %w", err)
		}
		out = append(out, &domain.ConversationMessage{
			ID:                  domain.MessageID(strconv.FormatInt(id, 10)),
			Role:                domain.Role(role),
			Content:             content,
			UserMessageRef:      domain.MessageRef(userRef),
			AssistantMessageRef: domain.MessageRef(assistantRef),
			CreatedAt:           time.Unix(0, created),
		})
	}
	return out, rows.Err()
}

// DeleteMessages removes every id in one transaction; an id missing from the
// channel rolls the whole batch back.
func (s *Store) DeleteMessages(ctx context.Context, ch domain.ChannelID, ids []domain.MessageID) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite DeleteMessages: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`DELETE FROM conversation_messages WHERE channel_id = ? AND id = ?`)
	if err != nil {
		return fmt.Errorf("sqlite DeleteMessages: prepare: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		rowID, err := strconv.ParseInt(string(id), 10, 64)
		if err != nil {
			return fmt.Errorf("sqlite DeleteMessages: bad id %q: %w", id, err)
		}
		res, err := stmt.ExecContext(ctx, string(ch), rowID)
		if err != nil {
			return fmt.Errorf("sqlite DeleteMessages: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("sqlite DeleteMessages: message %s not in channel %s", id, ch)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite DeleteMessages: commit: %w", err)
	}
	return nil
}

var _ domain.ConversationStore = (*Store)(nil)
