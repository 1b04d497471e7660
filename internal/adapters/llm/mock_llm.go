package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/PabloGalante/situation-relay/internal/domain"
)

// MockLLM echoes the last user message. It needs no credentials and is used
// for local runs and tests.
type MockLLM struct {
	// StructuredJSON is decoded into GenerateStructured results.
	StructuredJSON string
}

func NewMockLLM() *MockLLM {
	return &MockLLM{StructuredJSON: "{}"}
}

func (m *MockLLM) GenerateReply(_ context.Context, messages []domain.ChatMessage) (string, error) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == domain.ChatRoleUser {
			return fmt.Sprintf("echo: %s", messages[i].Content), nil
		}
	}
	return "", nil
}

func (m *MockLLM) GenerateStructured(_ context.Context, _ domain.StructuredRequest, result any) error {
	if err := json.Unmarshal([]byte(m.StructuredJSON), result); err != nil {
		return fmt.Errorf("mock structured: %w", err)
	}
	return nil
}

var (
	_ domain.LLMClient           = (*MockLLM)(nil)
	_ domain.StructuredLLMClient = (*MockLLM)(nil)
)
