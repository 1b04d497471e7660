package httpadapter

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/PabloGalante/situation-relay/internal/app/conversation"
	"github.com/PabloGalante/situation-relay/internal/domain"
	"github.com/PabloGalante/situation-relay/internal/observability"
)

// Inspector is the read side of the conversation service.
type Inspector interface {
	Allowed(ch domain.ChannelID) bool
	Inspect(ctx context.Context, ch domain.ChannelID) (*conversation.Snapshot, error)
	PendingPrompt(ctx context.Context, ch domain.ChannelID) ([]domain.ChatMessage, bool, error)
}

type Server struct {
	svc Inspector
}

// NewServer returns the read-only admin API.
func NewServer(svc Inspector) http.Handler {
	s := &Server{svc: svc}
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealthz)

	// /channels/{id}        → GET: state + history window
	// /channels/{id}/prompt → GET: model input the next turn would send
	mux.HandleFunc("/channels/", s.handleChannelWithID)

	return chainMiddlewares(mux, withCORS, withLogging)
}

// ─────────────────────────────────────────────
// DTOs (response)
// ─────────────────────────────────────────────

type channelResponse struct {
	ChannelID    string            `json:"channel_id"`
	Mode         string            `json:"mode"`
	Situation    string            `json:"situation,omitempty"`
	RebaseAnchor string            `json:"rebase_anchor,omitempty"`
	UpdatedAt    *time.Time        `json:"updated_at,omitempty"`
	Backend      string            `json:"backend"`
	Messages     []messageResponse `json:"messages"`
}

type messageResponse struct {
	ID         string    `json:"id"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	MessageRef string    `json:"message_ref"`
	CreatedAt  time.Time `json:"created_at"`
}

type promptResponse struct {
	ChannelID string           `json:"channel_id"`
	Ready     bool             `json:"ready"`
	Messages  []chatMessageDTO `json:"messages"`
}

type chatMessageDTO struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ─────────────────────────────────────────────
// Basic routing
// ─────────────────────────────────────────────

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// /channels/{id} or /channels/{id}/prompt
func (s *Server) handleChannelWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/channels/")
	parts := strings.Split(path, "/")
	id := domain.ChannelID(parts[0])

	if id == "" || !s.svc.Allowed(id) {
		notFound(w)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	switch {
	case len(parts) == 1:
		s.handleGetChannel(w, r, id)
	case len(parts) == 2 && parts[1] == "prompt":
		s.handleGetPrompt(w, r, id)
	default:
		notFound(w)
	}
}

// ─────────────────────────────────────────────
// Concrete handlers
// ─────────────────────────────────────────────

func (s *Server) handleGetChannel(w http.ResponseWriter, r *http.Request, id domain.ChannelID) {
	snap, err := s.svc.Inspect(r.Context(), id)
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toChannelResponse(id, snap))
}

func (s *Server) handleGetPrompt(w http.ResponseWriter, r *http.Request, id domain.ChannelID) {
	msgs, ok, err := s.svc.PendingPrompt(r.Context(), id)
	if err != nil {
		internalError(w, r, err)
		return
	}

	out := make([]chatMessageDTO, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, chatMessageDTO{Role: string(m.Role), Content: m.Content})
	}
	writeJSON(w, http.StatusOK, promptResponse{ChannelID: string(id), Ready: ok, Messages: out})
}

// ─────────────────────────────────────────────
// Conversation Helpers
// ─────────────────────────────────────────────

func toChannelResponse(id domain.ChannelID, snap *conversation.Snapshot) channelResponse {
	resp := channelResponse{
		ChannelID:    string(id),
		Mode:         snap.State.Mode.String(),
		Situation:    snap.State.Situation,
		RebaseAnchor: string(snap.State.RebaseAnchor),
		Backend:      snap.Backend,
		Messages:     make([]messageResponse, 0, len(snap.Messages)),
	}
	if !snap.State.UpdatedAt.IsZero() {
		t := snap.State.UpdatedAt
		resp.UpdatedAt = &t
	}
	for _, m := range snap.Messages {
		resp.Messages = append(resp.Messages, messageResponse{
			ID:         string(m.ID),
			Role:       string(m.Role),
			Content:    m.Content,
			MessageRef: string(m.Ref()),
			CreatedAt:  m.CreatedAt,
		})
	}
	return resp
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "not found",
	})
}

func internalError(w http.ResponseWriter, r *http.Request, err error) {
	observability.LoggerFromContext(r.Context()).Error("admin request failed", "path", r.URL.Path, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "internal server error",
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
		"error": "method not allowed",
	})
}
