package checklist

import (
	"context"

	"callsync/internal/capture"
)

// Input 一次分析的输入：音频快照或文本片段（至少其一）
// Input is one analysis request: an audio snapshot, a transcript fragment, or both
type Input struct {
	Audio      capture.Artifact
	Transcript string
}

// Analyzer 检测对话中已覆盖的清单主题；结果仅供参考，不具权威性
// Analyzer detects checklist topics covered so far; results are best-effort and non-authoritative
type Analyzer interface {
	Analyze(ctx context.Context, in Input) ([]string, error)
}

// SpeechToText turns an audio artifact into plain text.
type SpeechToText interface {
	TranscribeText(ctx context.Context, audio capture.Artifact) (string, error)
}

// resolveTranscript returns the text to analyze, transcribing audio when no text was given.
func resolveTranscript(ctx context.Context, stt SpeechToText, in Input) (string, error) {
	if in.Transcript != "" || in.Audio.Empty() || stt == nil {
		return in.Transcript, nil
	}
	return stt.TranscribeText(ctx, in.Audio)
}
