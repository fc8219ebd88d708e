package checklist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

const aiSystemPrompt = "Tu es un assistant d'analyse de conversations. Tu réponds uniquement en JSON valide."

// JSONCompleter 以 JSON 模式调用对话模型
// JSONCompleter runs a chat completion constrained to a JSON object reply
type JSONCompleter interface {
	CompleteJSON(ctx context.Context, system, user string) (string, error)
}

// TokenTrimmer keeps the last max tokens of text.
type TokenTrimmer interface {
	TailTokens(text string, max int) string
}

// AIAnalyzer 由模型判定已覆盖主题；回复无法解析时退回关键词匹配
// AIAnalyzer asks a chat model which topics were covered, falling back to keywords when the reply cannot be parsed
type AIAnalyzer struct {
	STT             SpeechToText
	LLM             JSONCompleter
	Trimmer         TokenTrimmer
	MaxPromptTokens int
	MinChars        int
	Logger          *zap.Logger
}

func (a AIAnalyzer) Analyze(ctx context.Context, in Input) ([]string, error) {
	text, err := resolveTranscript(ctx, a.STT, in)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < a.MinChars {
		return nil, nil
	}
	if a.Trimmer != nil && a.MaxPromptTokens > 0 {
		text = a.Trimmer.TailTokens(text, a.MaxPromptTokens)
	}

	reply, err := a.LLM.CompleteJSON(ctx, aiSystemPrompt, BuildPrompt(text))
	if err != nil {
		return nil, err
	}
	ids, err := ParseDetected(reply)
	if err != nil {
		if a.Logger != nil {
			a.Logger.Warn("checklist reply unparseable, using keywords", zap.Error(err))
		}
		return MatchKeywords(text), nil
	}
	return ids, nil
}

// BuildPrompt renders the detection prompt for a transcript.
func BuildPrompt(transcript string) string {
	var b strings.Builder
	b.WriteString("Tu es un assistant d'analyse de conversation téléphonique.\n\n")
	b.WriteString("Voici la transcription d'un appel de téléprospection :\n\"\"\"\n")
	b.WriteString(transcript)
	b.WriteString("\n\"\"\"\n\n")
	fmt.Fprintf(&b, "Voici les %d points que le téléprospecteur doit aborder :\n", len(definitions))
	for i, d := range definitions {
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, d.ID, d.Detail)
	}
	b.WriteString("\nPour chaque point, détermine si le sujet a été abordé dans la conversation (même partiellement ou indirectement).\n\n")
	b.WriteString(`Réponds UNIQUEMENT avec un objet JSON contenant un tableau "detectedItems" avec les IDs des points qui ont été abordés.` + "\n")
	b.WriteString(`Exemple: {"detectedItems": ["historique", "passif_actif"]}` + "\n\n")
	b.WriteString(`Si aucun point n'a été abordé, réponds: {"detectedItems": []}`)
	return b.String()
}

// ParseDetected decodes {"detectedItems": [...]}, tolerating markdown fences,
// and drops ids that are not checklist topics.
func ParseDetected(reply string) ([]string, error) {
	cleaned := stripFences(reply)
	var parsed struct {
		DetectedItems []string `json:"detectedItems"`
	}
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, fmt.Errorf("parse detected items: %w", err)
	}
	if parsed.DetectedItems == nil {
		return nil, fmt.Errorf("parse detected items: missing detectedItems")
	}
	return FilterKnown(parsed.DetectedItems), nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
