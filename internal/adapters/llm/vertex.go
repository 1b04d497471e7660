package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/PabloGalante/situation-relay/internal/domain"
)

type GoogleConfig struct {
	// Project and Location select Vertex AI.
	Project  string
	Location string

	// APIKey selects the Gemini Developer API instead.
	APIKey string

	Model     string
	MaxTokens int
}

type VertexClient struct {
	client    *genai.Client
	modelName string
	maxTokens int32
}

// NewVertexClient creates an LLMClient backed by Gemini on Vertex AI.
func NewVertexClient(ctx context.Context, cfg GoogleConfig) (*VertexClient, error) {
	if cfg.Project == "" || cfg.Location == "" {
		return nil, fmt.Errorf("project and location must be set for Vertex AI")
	}
	return newGenAIClient(ctx, cfg, &genai.ClientConfig{
		Project:  cfg.Project,
		Location: cfg.Location,
		Backend:  genai.BackendVertexAI,
	})
}

// NewGeminiClient creates an LLMClient backed by the Gemini Developer API.
func NewGeminiClient(ctx context.Context, cfg GoogleConfig) (*VertexClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key must be set for the Gemini API")
	}
	return newGenAIClient(ctx, cfg, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
}

func newGenAIClient(ctx context.Context, cfg GoogleConfig, cc *genai.ClientConfig) (*VertexClient, error) {
	modelName := cfg.Model
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &VertexClient{
		client:    client,
		modelName: modelName,
		maxTokens: int32(maxTokens),
	}, nil
}

// GenerateReply implements domain.LLMClient. System entries become the
// system instruction; the rest is sent as the conversation.
func (v *VertexClient) GenerateReply(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	system, contents := toGenAIContents(messages)

	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: v.maxTokens,
	}
	if system != "" {
		// According to official examples, the role here is usually RoleUser, not "system"
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	res, err := v.client.Models.GenerateContent(ctx, v.modelName, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("vertex generate content: %w", err)
	}

	// empty output is a valid reply; the caller renders a placeholder
	return res.Text(), nil
}

// GenerateStructured implements domain.StructuredLLMClient. The schema is
// passed in the system instruction and the response is forced to JSON.
func (v *VertexClient) GenerateStructured(ctx context.Context, req domain.StructuredRequest, result any) error {
	schema, err := json.Marshal(req.Schema)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	system := req.SystemPrompt + "\n\nRespond with a single JSON object matching this JSON Schema:\n" + string(schema)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		MaxOutputTokens:   v.maxTokens * 4,
	}

	res, err := v.client.Models.GenerateContent(ctx, v.modelName,
		[]*genai.Content{genai.NewContentFromText(req.UserPrompt, genai.RoleUser)}, cfg)
	if err != nil {
		return fmt.Errorf("vertex structured content: %w", err)
	}

	text := strings.TrimSpace(res.Text())
	if text == "" {
		return fmt.Errorf("vertex returned empty text")
	}
	if err := json.Unmarshal([]byte(text), result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func toGenAIContents(messages []domain.ChatMessage) (string, []*genai.Content) {
	var (
		system   []string
		contents []*genai.Content
	)
	for _, m := range messages {
		switch m.Role {
		case domain.ChatRoleSystem:
			system = append(system, m.Content)
		case domain.ChatRoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return strings.Join(system, "\n\n"), contents
}

var (
	_ domain.LLMClient           = (*VertexClient)(nil)
	_ domain.StructuredLLMClient = (*VertexClient)(nil)
)
