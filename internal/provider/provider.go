package provider

import (
	"context"

	"callsync/internal/capture"
)

// MaxUploadBytes 转写接口接受的最大音频文件
// MaxUploadBytes is the largest audio file the transcription endpoint accepts.
const MaxUploadBytes = 25 << 20

// Result 转写与摘要结果
// Result is the transcript and summary of one call
type Result struct {
	Transcript string
	Summary    string
}

// Transcriber 转写与摘要服务；错误按 errs.Kind 分类以决定是否重试
// Transcriber turns a finished recording into a transcript and summary.
// Errors carry an errs.Kind so callers can decide whether to retry.
type Transcriber interface {
	Transcribe(ctx context.Context, sessionID string, audio capture.Artifact) (Result, error)
}
