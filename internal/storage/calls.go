package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// NewCallID 生成新的通话 ID / NewCallID generates a new call id
func NewCallID() string {
	return uuid.NewString()
}

// RemoveCall 尽力删除音频，再删除记录
// RemoveCall deletes the stored audio best-effort, then the record itself
func RemoveCall(ctx context.Context, store Store, blobs BlobStore, id string, logger *zap.Logger) error {
	rec, err := store.LoadCall(ctx, id)
	if err != nil {
		return err
	}
	if rec.AudioPath != "" && blobs != nil {
		if err := blobs.Delete(ctx, rec.AudioPath); err != nil && logger != nil {
			logger.Warn("delete call audio failed", zap.String("call_id", id), zap.String("path", rec.AudioPath), zap.Error(err))
		}
	}
	return store.DeleteCall(ctx, id)
}

// CleanupResult 清理统计 / CleanupResult summarizes one cleanup pass
type CleanupResult struct {
	Deleted []string
	Failed  int
}

const cleanupBatch = 50

// CleanupBlobs 删除早于 maxAge 的录音对象，分批并发
// CleanupBlobs removes audio objects older than maxAge, in concurrent batches
func CleanupBlobs(ctx context.Context, blobs BlobStore, maxAge time.Duration, now time.Time) (CleanupResult, error) {
	if maxAge <= 0 {
		return CleanupResult{}, fmt.Errorf("cleanup max age must be positive")
	}
	old, err := blobs.ListOlderThan(ctx, now.Add(-maxAge))
	if err != nil {
		return CleanupResult{}, err
	}

	var (
		mu      sync.Mutex
		result  CleanupResult
		errList []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for start := 0; start < len(old); start += cleanupBatch {
		end := min(start+cleanupBatch, len(old))
		batch := make([]string, 0, end-start)
		for _, b := range old[start:end] {
			batch = append(batch, b.Path)
		}
		g.Go(func() error {
			err := blobs.Delete(gctx, batch...)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed += len(batch)
				errList = append(errList, err)
				return nil
			}
			result.Deleted = append(result.Deleted, batch...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}
	return result, errors.Join(errList...)
}
