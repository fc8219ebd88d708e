package provider

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"callsync/internal/capture"
	"callsync/internal/errs"
)

const summarySystemPrompt = `Tu es un assistant spécialisé dans la création de comptes-rendus d'appels commerciaux structurés et professionnels pour un cabinet de conseil.

Tu dois produire un résumé structuré au format markdown avec les sections suivantes (adapte selon les informations disponibles):

## Coordonnées
- Nom de la société
- Localisation
- Contacts clés (noms, rôles, emails)

## Contexte Historique
Description de l'entreprise, son activité, son historique pertinent.

## Difficultés
Liste des problèmes identifiés avec montants si applicable.

## Particularités
Points spécifiques à noter sur le dossier.

## Solution
Solutions envisagées ou proposées.

## Échéances
Délais importants à respecter.

## Prochaines étapes
Actions à mener suite à l'appel.

Sois précis, factuel et professionnel. Utilise des listes à puces pour la clarté.`

// OpenAIConfig OpenAI 兼容后端配置
// OpenAIConfig configures the OpenAI-compatible backend
type OpenAIConfig struct {
	BaseURL         string
	APIKey          string
	TranscribeModel string
	ChatModel       string
	Language        string
	TimeoutMS       int
}

// OpenAI 使用 go-openai SDK 实现转写、摘要与 JSON 补全
// OpenAI implements transcription, summary and JSON completion with the go-openai SDK
type OpenAI struct {
	client *openai.Client
	cfg    OpenAIConfig
}

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	config := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimRight(cfg.BaseURL, "/"); base != "" {
		config.BaseURL = base
	}

	httpClient := &http.Client{}
	if cfg.TimeoutMS > 0 {
		httpClient.Timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	}
	config.HTTPClient = httpClient

	if cfg.TranscribeModel == "" {
		cfg.TranscribeModel = openai.Whisper1
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = openai.GPT4oMini
	}
	return &OpenAI{client: openai.NewClientWithConfig(config), cfg: cfg}
}

// Transcribe 转写整段录音并生成结构化摘要
// Transcribe converts the full recording to text and produces a structured summary
func (p *OpenAI) Transcribe(ctx context.Context, sessionID string, audio capture.Artifact) (Result, error) {
	if audio.Empty() {
		return Result{}, errs.New(errs.KindPreconditionFailed, "transcribe", "no audio data provided")
	}
	text, err := p.transcribe(ctx, sessionID, audio)
	if err != nil {
		return Result{}, err
	}
	summary, err := p.Summarize(ctx, text)
	if err != nil {
		return Result{}, err
	}
	return Result{Transcript: text, Summary: summary}, nil
}

// TranscribeText transcribes an audio snapshot.
func (p *OpenAI) TranscribeText(ctx context.Context, audio capture.Artifact) (string, error) {
	return p.transcribe(ctx, "snapshot", audio)
}

func (p *OpenAI) transcribe(ctx context.Context, name string, audio capture.Artifact) (string, error) {
	if audio.Len() > MaxUploadBytes {
		return "", errs.New(errs.KindPreconditionFailed, "transcribe",
			fmt.Sprintf("audio is %d bytes, over the %d byte upload limit", audio.Len(), MaxUploadBytes))
	}
	ext := audio.Ext
	if ext == "" {
		ext = "wav"
	}
	resp, err := p.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    p.cfg.TranscribeModel,
		FilePath: name + "." + ext,
		Reader:   bytes.NewReader(audio.Data),
		Language: p.cfg.Language,
	})
	if err != nil {
		return "", Classify("transcribe audio", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// Summarize 根据转写生成 markdown 摘要
// Summarize renders a markdown summary of a transcript
func (p *OpenAI) Summarize(ctx context.Context, transcript string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", errs.New(errs.KindMalformedResponse, "summarize", "empty transcript")
	}
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.cfg.ChatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summarySystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "Transcription de l'appel :\n\n" + transcript},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", Classify("summarize", err)
	}
	return firstContent("summarize", resp)
}

// CompleteJSON asks for a JSON object reply; used by checklist detection.
func (p *OpenAI) CompleteJSON(ctx context.Context, system, user string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.cfg.ChatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.1,
		MaxTokens:   200,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", Classify("analyze checklist", err)
	}
	return firstContent("analyze checklist", resp)
}

func firstContent(op string, resp openai.ChatCompletionResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", errs.New(errs.KindMalformedResponse, op, "no choices in response")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", errs.New(errs.KindMalformedResponse, op, fmt.Sprintf("empty content (finish_reason=%s)", resp.Choices[0].FinishReason))
	}
	return content, nil
}
