// Package expansion turns a short situation into a full roleplay system
// prompt: the model fills a structured character sheet, which is rendered
// to Markdown.
package expansion

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/invopop/jsonschema"

	"github.com/PabloGalante/situation-relay/internal/domain"
)

type World struct {
	Location  string `json:"location" jsonschema:"description=Where the scene takes place"`
	Time      string `json:"time" jsonschema:"description=Era, season or time of day"`
	Situation string `json:"situation" jsonschema:"description=What is happening around the characters"`
}

type Character struct {
	Name                string `json:"name"`
	Gender              string `json:"gender"`
	Age                 int    `json:"age"`
	FirstPersonPronoun  string `json:"firstPersonPronoun" jsonschema:"description=How the character refers to themself"`
	SecondPersonPronoun string `json:"secondPersonPronoun" jsonschema:"description=How the character addresses the other party"`
	Personality         string `json:"personality"`
	Background          string `json:"background"`
}

// Sheet is the structured output requested from the model.
type Sheet struct {
	World         World     `json:"worldSetting"`
	DialogueScene string    `json:"dialogueSceneSetting"`
	User          Character `json:"userCharacterSetting" jsonschema:"description=The character the user plays"`
	AI            Character `json:"aiCharacterSetting" jsonschema:"description=The character the assistant plays"`
	Goal          string    `json:"goal" jsonschema:"description=Final goal or ending condition of the roleplay"`
	DialogueTone  string    `json:"dialogueTone"`
	Relationship  string    `json:"relationshipSetting"`
}

// IsZero reports whether the model returned nothing usable.
func (s Sheet) IsZero() bool {
	return s == Sheet{}
}

const systemPrompt = `あなたはロールプレイ用のシステムプロンプトを設計する専門家です。
ユーザーが入力した短いシチュエーションをもとに、世界観、対話シーン、ユーザーとあなたがなりきる人物の設定、最終目標、対話のトーン、関係性を具体的に補完してください。
入力に書かれていない項目は、シチュエーションに自然に合う内容で創作してください。
すべての文字列は日本語で書いてください。`

// EmptyResult is rendered when the model returns an empty sheet.
const EmptyResult = "生成されたデータが空です。"

var (
	//go:embed sheet.md.tmpl
	sheetTemplate string

	sheetTmpl = template.Must(template.New("sheet").Parse(sheetTemplate))

	sheetSchema = generateSchema[Sheet]()
)

func generateSchema[T any]() any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

// Service expands situations through a structured-output model.
type Service struct {
	llm domain.StructuredLLMClient
}

func NewService(llm domain.StructuredLLMClient) *Service {
	return &Service{llm: llm}
}

// Expand asks the model for a Sheet describing situation and renders it.
func (s *Service) Expand(ctx context.Context, situation string) (string, error) {
	if strings.TrimSpace(situation) == "" {
		return "", errors.New("expand: empty situation")
	}

	var sheet Sheet
	err := s.llm.GenerateStructured(ctx, domain.StructuredRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   situation,
		SchemaName:   "roleplay_sheet",
		Schema:       sheetSchema,
	}, &sheet)
	if err != nil {
		return "", fmt.Errorf("expand: %w", err)
	}

	return Render(sheet)
}

// Render formats sheet as the Markdown system prompt.
func Render(sheet Sheet) (string, error) {
	if sheet.IsZero() {
		return EmptyResult, nil
	}
	var buf bytes.Buffer
	if err := sheetTmpl.Execute(&buf, sheet); err != nil {
		return "", fmt.Errorf("render sheet: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
