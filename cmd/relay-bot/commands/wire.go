package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/PabloGalante/situation-relay/internal/adapters/llm"
	firestorestore "github.com/PabloGalante/situation-relay/internal/adapters/storage/firestore"
	memstore "github.com/PabloGalante/situation-relay/internal/adapters/storage/memory"
	sqlitestore "github.com/PabloGalante/situation-relay/internal/adapters/storage/sqlite"
	"github.com/PabloGalante/situation-relay/internal/config"
	"github.com/PabloGalante/situation-relay/internal/domain"
)

// openStore builds the configured ConversationStore and its close func.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (domain.ConversationStore, func(), error) {
	switch cfg.StorageBackend {
	case config.StorageFirestore:
		logger.Info("using firestore storage", "project", cfg.Firestore.ProjectID)
		fs, err := firestorestore.NewStore(ctx, cfg.Firestore.ProjectID, cfg.Firestore.CredentialsJSON)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() { _ = fs.Close() }, nil

	case config.StorageSQLite:
		logger.Info("using sqlite storage", "path", cfg.SQLitePath)
		st, err := sqlitestore.NewStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { _ = st.Close() }, nil

	default:
		logger.Info("using in-memory storage")
		return memstore.NewStore(), func() {}, nil
	}
}

// buildModels creates one client per backend referenced by the config.
func buildModels(ctx context.Context, cfg *config.Config, logger *slog.Logger) (map[string]domain.LLMClient, error) {
	models := make(map[string]domain.LLMClient)
	for _, backend := range cfg.Backends() {
		client, err := newModel(ctx, cfg, backend)
		if err != nil {
			return nil, fmt.Errorf("backend %s: %w", backend, err)
		}
		logger.Info("model backend ready", "backend", backend)
		models[backend] = client
	}
	return models, nil
}

func newModel(ctx context.Context, cfg *config.Config, backend string) (domain.LLMClient, error) {
	google := llm.GoogleConfig{
		Project:   cfg.Google.Project,
		Location:  cfg.Google.Location,
		APIKey:    cfg.Google.GeminiAPIKey,
		Model:     cfg.Google.Model,
		MaxTokens: cfg.OpenAI.MaxTokens,
	}

	switch backend {
	case config.BackendOpenAI:
		return llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:    cfg.OpenAI.APIKey,
			BaseURL:   cfg.OpenAI.BaseURL,
			Model:     cfg.OpenAI.Model,
			MaxTokens: cfg.OpenAI.MaxTokens,
		})
	case config.BackendVertex:
		return llm.NewVertexClient(ctx, google)
	case config.BackendGemini:
		return llm.NewGeminiClient(ctx, google)
	case config.BackendMock:
		return llm.NewMockLLM(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}
