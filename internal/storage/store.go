package storage

import (
	"context"
	"io"
	"time"
)

// Store 通话记录持久化接口，支持多后端 (SQLite / Supabase)
// Store is the call-record persistence interface supporting multiple backends
type Store interface {
	CreateCall(ctx context.Context, rec CallRecord) error
	LoadCall(ctx context.Context, id string) (CallRecord, error)
	// ListCalls returns at most limit records, newest first. limit <= 0 means all.
	ListCalls(ctx context.Context, limit int) ([]CallRecord, error)
	UpdateCall(ctx context.Context, id string, patch CallPatch) (CallRecord, error)
	DeleteCall(ctx context.Context, id string) error

	// 生命周期 / Lifecycle
	Close() error
}

// Blob 已存储的音频对象 / Blob describes one stored audio object
type Blob struct {
	Path      string
	CreatedAt time.Time
}

// BlobStore 音频对象存储接口 (本地目录 / Supabase Storage)
// BlobStore holds recorded audio (local directory or Supabase Storage)
type BlobStore interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	Exists(ctx context.Context, path string) (bool, error)
	Delete(ctx context.Context, paths ...string) error
	ListOlderThan(ctx context.Context, cutoff time.Time) ([]Blob, error)
}
