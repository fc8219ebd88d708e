package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	storage_go "github.com/supabase-community/storage-go"
)

// BlobPath 返回录音对象路径 `<id>.<ext>` / BlobPath names the audio object for a call
func BlobPath(callID, ext string) string {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		ext = "bin"
	}
	return callID + "." + ext
}

// --- Local directory ---

// FSBlobStore 把音频存在本地目录 / FSBlobStore keeps audio under a local directory
type FSBlobStore struct {
	root string
}

func NewFSBlobStore(root string) (*FSBlobStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("blob root is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	return &FSBlobStore{root: root}, nil
}

func (b *FSBlobStore) resolve(p string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(p))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid blob path %q", p)
	}
	return filepath.Join(b.root, clean), nil
}

// Put 先写临时文件再重命名 / Put writes to a temp file and renames it into place
func (b *FSBlobStore) Put(ctx context.Context, p string, data io.Reader, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := b.resolve(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create blob directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp blob: %w", err)
	}
	if _, err := io.Copy(tmp, data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename blob: %w", err)
	}
	return nil
}

func (b *FSBlobStore) Exists(_ context.Context, p string) (bool, error) {
	full, err := b.resolve(p)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat blob: %w", err)
	}
	return true, nil
}

func (b *FSBlobStore) Delete(_ context.Context, paths ...string) error {
	var errList []error
	for _, p := range paths {
		full, err := b.resolve(p)
		if err != nil {
			errList = append(errList, err)
			continue
		}
		if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errList = append(errList, fmt.Errorf("remove blob %s: %w", p, err))
		}
	}
	return errors.Join(errList...)
}

func (b *FSBlobStore) ListOlderThan(ctx context.Context, cutoff time.Time) ([]Blob, error) {
	var out []Blob
	err := filepath.WalkDir(b.root, func(full string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.ModTime().Before(cutoff) {
			return nil
		}
		rel, err := filepath.Rel(b.root, full)
		if err != nil {
			return err
		}
		out = append(out, Blob{Path: filepath.ToSlash(rel), CreatedAt: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk blobs: %w", err)
	}
	return out, nil
}

// --- Supabase Storage ---

const supabaseListLimit = 1000

// SupabaseBlobStore 把音频存到 Supabase Storage 桶
// SupabaseBlobStore keeps audio in a Supabase Storage bucket
type SupabaseBlobStore struct {
	url    string
	key    string
	bucket string
}

// NewSupabaseBlobStore takes the project URL (without /storage/v1).
func NewSupabaseBlobStore(projectURL, key, bucket string) *SupabaseBlobStore {
	if strings.TrimSpace(bucket) == "" {
		bucket = "call-recordings"
	}
	return &SupabaseBlobStore{
		url:    strings.TrimRight(strings.TrimSpace(projectURL), "/") + "/storage/v1",
		key:    strings.TrimSpace(key),
		bucket: bucket,
	}
}

// UploadFile mutates the transport headers of its client, so every call gets a fresh one.
func (b *SupabaseBlobStore) client() *storage_go.Client {
	return storage_go.NewClient(b.url, b.key, map[string]string{"apikey": b.key})
}

func (b *SupabaseBlobStore) Put(ctx context.Context, p string, data io.Reader, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	upsert := true
	opts := storage_go.FileOptions{Upsert: &upsert}
	if contentType != "" {
		opts.ContentType = &contentType
	}
	if _, err := b.client().UploadFile(b.bucket, p, data, opts); err != nil {
		return fmt.Errorf("upload %s: %w", p, err)
	}
	return nil
}

func (b *SupabaseBlobStore) Exists(ctx context.Context, p string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	dir, name := path.Split(p)
	files, err := b.client().ListFiles(b.bucket, strings.TrimSuffix(dir, "/"), storage_go.FileSearchOptions{Limit: supabaseListLimit})
	if err != nil {
		return false, fmt.Errorf("list %s: %w", b.bucket, err)
	}
	for _, f := range files {
		if f.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (b *SupabaseBlobStore) Delete(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := b.client().RemoveFile(b.bucket, paths); err != nil {
		return fmt.Errorf("remove from %s: %w", b.bucket, err)
	}
	return nil
}

func (b *SupabaseBlobStore) ListOlderThan(ctx context.Context, cutoff time.Time) ([]Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	files, err := b.client().ListFiles(b.bucket, "", storage_go.FileSearchOptions{
		Limit:         supabaseListLimit,
		SortByOptions: storage_go.SortBy{Column: "created_at", Order: "asc"},
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", b.bucket, err)
	}
	var out []Blob
	for _, f := range files {
		// 文件夹条目没有 id / folder placeholders carry no id
		if f.Id == "" {
			continue
		}
		created, err := time.Parse(time.RFC3339Nano, f.CreatedAt)
		if err != nil || !created.Before(cutoff) {
			continue
		}
		out = append(out, Blob{Path: f.Name, CreatedAt: created})
	}
	return out, nil
}
