package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobPath(t *testing.T) {
	assert.Equal(t, "abc.webm", BlobPath("abc", "webm"))
	assert.Equal(t, "abc.wav", BlobPath("abc", ".wav"))
	assert.Equal(t, "abc.bin", BlobPath("abc", ""))
}

func TestFSBlobStore_PutExistsDelete(t *testing.T) {
	ctx := context.Background()
	blobs, err := NewFSBlobStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, blobs.Put(ctx, "c1.wav", bytes.NewReader([]byte("RIFF")), "audio/wav"))
	ok, err := blobs.Exists(ctx, "c1.wav")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, blobs.Delete(ctx, "c1.wav", "missing.wav"))
	ok, err = blobs.Exists(ctx, "c1.wav")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFSBlobStore_RejectsEscapingPath(t *testing.T) {
	blobs, err := NewFSBlobStore(t.TempDir())
	require.NoError(t, err)
	err = blobs.Put(context.Background(), "../outside.wav", strings.NewReader("x"), "")
	assert.Error(t, err)
}

func TestFSBlobStore_ListOlderThan(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	blobs, err := NewFSBlobStore(root)
	require.NoError(t, err)

	require.NoError(t, blobs.Put(ctx, "old.webm", strings.NewReader("old"), ""))
	require.NoError(t, blobs.Put(ctx, "new.webm", strings.NewReader("new"), ""))
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(root, "old.webm"), past, past))

	old, err := blobs.ListOlderThan(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, old, 1)
	assert.Equal(t, "old.webm", old[0].Path)
}

// fakeStorageServer 模拟 Supabase Storage 的对象接口
type fakeStorageServer struct {
	mu      sync.Mutex
	objects map[string]time.Time
	failPut bool
}

func newFakeStorageServer(t *testing.T) (*fakeStorageServer, *httptest.Server) {
	t.Helper()
	f := &fakeStorageServer{objects: map[string]time.Time{}}
	srv := httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeStorageServer) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	const prefix = "/storage/v1/object/"
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && strings.HasPrefix(rest, "list/"):
		type entry struct {
			Name      string `json:"name"`
			ID        string `json:"id"`
			CreatedAt string `json:"created_at"`
		}
		var out []entry
		for name, ts := range f.objects {
			out = append(out, entry{Name: name, ID: "id-" + name, CreatedAt: ts.Format(time.RFC3339Nano)})
		}
		_ = json.NewEncoder(w).Encode(out)
	case r.Method == http.MethodPost:
		if f.failPut {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"status":500,"message":"boom"}`)
			return
		}
		_, name, _ := strings.Cut(rest, "/")
		f.objects[name] = time.Now()
		_, _ = io.WriteString(w, `{"Key":"call-recordings/`+name+`"}`)
	case r.Method == http.MethodDelete:
		var body struct {
			Prefixes []string `json:"prefixes"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		for _, p := range body.Prefixes {
			delete(f.objects, p)
		}
		_, _ = io.WriteString(w, `[]`)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"status":404,"message":"not found"}`)
	}
}

func TestSupabaseBlobStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	fake, srv := newFakeStorageServer(t)
	blobs := NewSupabaseBlobStore(srv.URL, "service-key", "")

	require.NoError(t, blobs.Put(ctx, "c9.webm", strings.NewReader("opus"), "audio/webm"))
	ok, err := blobs.Exists(ctx, "c9.webm")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = blobs.Exists(ctx, "other.webm")
	require.NoError(t, err)
	assert.False(t, ok)

	fake.mu.Lock()
	fake.objects["stale.webm"] = time.Now().Add(-30 * time.Hour)
	fake.mu.Unlock()

	old, err := blobs.ListOlderThan(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, old, 1)
	assert.Equal(t, "stale.webm", old[0].Path)

	require.NoError(t, blobs.Delete(ctx, "c9.webm"))
	fake.mu.Lock()
	_, still := fake.objects["c9.webm"]
	fake.mu.Unlock()
	assert.False(t, still)
}

func TestSupabaseBlobStore_PutError(t *testing.T) {
	fake, srv := newFakeStorageServer(t)
	fake.failPut = true
	blobs := NewSupabaseBlobStore(srv.URL, "service-key", "call-recordings")
	err := blobs.Put(context.Background(), "c1.webm", strings.NewReader("x"), "audio/webm")
	assert.Error(t, err)
}

func TestCleanupBlobs(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	blobs, err := NewFSBlobStore(root)
	require.NoError(t, err)

	past := time.Now().Add(-25 * time.Hour)
	for _, name := range []string{"a.webm", "b.webm", "fresh.webm"} {
		require.NoError(t, blobs.Put(ctx, name, strings.NewReader(name), ""))
		if name != "fresh.webm" {
			require.NoError(t, os.Chtimes(filepath.Join(root, name), past, past))
		}
	}

	res, err := CleanupBlobs(ctx, blobs, 24*time.Hour, time.Now())
	require.NoError(t, err)
	sort.Strings(res.Deleted)
	assert.Equal(t, []string{"a.webm", "b.webm"}, res.Deleted)
	assert.Zero(t, res.Failed)

	ok, err := blobs.Exists(ctx, "fresh.webm")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCleanupBlobs_RejectsNonPositiveAge(t *testing.T) {
	blobs, err := NewFSBlobStore(t.TempDir())
	require.NoError(t, err)
	_, err = CleanupBlobs(context.Background(), blobs, 0, time.Now())
	assert.Error(t, err)
}

func TestRemoveCall_DeletesAudioThenRecord(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	blobs, err := NewFSBlobStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, blobs.Put(ctx, "r1.webm", strings.NewReader("x"), ""))
	require.NoError(t, store.CreateCall(ctx, CallRecord{ID: "r1", AudioPath: "r1.webm"}))

	require.NoError(t, RemoveCall(ctx, store, blobs, "r1", nil))
	ok, _ := blobs.Exists(ctx, "r1.webm")
	assert.False(t, ok)
	_, err = store.LoadCall(ctx, "r1")
	assert.ErrorIs(t, err, ErrNotFound)
}
