package checklist

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callsync/internal/capture"
)

type stubSTT struct {
	text  string
	err   error
	calls int
}

func (s *stubSTT) TranscribeText(ctx context.Context, audio capture.Artifact) (string, error) {
	s.calls++
	return s.text, s.err
}

type stubLLM struct {
	reply  string
	err    error
	prompt string
}

func (s *stubLLM) CompleteJSON(ctx context.Context, system, user string) (string, error) {
	s.prompt = user
	return s.reply, s.err
}

type headTrimmer struct{}

func (headTrimmer) TailTokens(text string, max int) string {
	if len(text) <= max {
		return text
	}
	return text[len(text)-max:]
}

const frenchCall = "Bonjour, la société a été créée en 2015 et le comptable pense que la trésorerie est tendue."

var audio = capture.Artifact{Data: []byte("RIFF....fake"), ContentType: "audio/wav", Ext: "wav"}

func TestMatchKeywords(t *testing.T) {
	got := MatchKeywords(frenchCall)
	assert.Equal(t, []string{"historique", "passif_actif", "avis_comptable"}, got)
}

func TestMatchKeywordsShortWordsNeedWholeWord(t *testing.T) {
	assert.Empty(t, MatchKeywords("quickly this irrelevant text"))
	assert.Equal(t, []string{"declarations"}, MatchKeywords("on parle de la TVA ce mois"))
}

func TestKeywordAnalyzerTranscribesAudio(t *testing.T) {
	stt := &stubSTT{text: frenchCall}
	k := KeywordAnalyzer{STT: stt, MinChars: 50}
	ids, err := k.Analyze(context.Background(), Input{Audio: audio})
	require.NoError(t, err)
	assert.Equal(t, 1, stt.calls)
	assert.Contains(t, ids, "historique")
}

func TestKeywordAnalyzerSkipsShortText(t *testing.T) {
	ids, err := KeywordAnalyzer{MinChars: 50}.Analyze(context.Background(), Input{Transcript: "société"})
	require.NoError(t, err)
	assert.Nil(t, ids)
}

func TestAIAnalyzerParsesFencedReply(t *testing.T) {
	llm := &stubLLM{reply: "```json\n{\"detectedItems\": [\"declarations\", \"made_up\"]}\n```"}
	a := AIAnalyzer{LLM: llm, MinChars: 10}
	ids, err := a.Analyze(context.Background(), Input{Transcript: frenchCall})
	require.NoError(t, err)
	assert.Equal(t, []string{"declarations"}, ids)
	assert.Contains(t, llm.prompt, "6. intention_continuer:")
	assert.Contains(t, llm.prompt, frenchCall)
}

func TestAIAnalyzerFallsBackToKeywords(t *testing.T) {
	a := AIAnalyzer{LLM: &stubLLM{reply: "je ne sais pas"}, MinChars: 10}
	ids, err := a.Analyze(context.Background(), Input{Transcript: frenchCall})
	require.NoError(t, err)
	assert.Equal(t, MatchKeywords(frenchCall), ids)
}

func TestAIAnalyzerPropagatesServiceErrors(t *testing.T) {
	boom := errors.New("429")
	a := AIAnalyzer{LLM: &stubLLM{err: boom}, MinChars: 10}
	_, err := a.Analyze(context.Background(), Input{Transcript: frenchCall})
	assert.ErrorIs(t, err, boom)
}

func TestAIAnalyzerTrimsLongTranscript(t *testing.T) {
	llm := &stubLLM{reply: `{"detectedItems": []}`}
	long := strings.Repeat("a", 500) + "TAIL"
	a := AIAnalyzer{LLM: llm, Trimmer: headTrimmer{}, MaxPromptTokens: 10, MinChars: 10}
	ids, err := a.Analyze(context.Background(), Input{Transcript: long})
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.NotContains(t, llm.prompt, strings.Repeat("a", 20))
	assert.Contains(t, llm.prompt, "TAIL")
}

func TestParseDetectedRejectsMissingField(t *testing.T) {
	_, err := ParseDetected(`{"items": ["historique"]}`)
	assert.Error(t, err)
}
