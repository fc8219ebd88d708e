package config

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchRemoteAppliesSettings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/extension-config", r.URL.Path)
		assert.Equal(t, "1.0.0", r.URL.Query().Get("version"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"version": "1.2.0",
			"settings": map[string]any{
				"maxRecordingDuration": 3600,
				"audioBitrate":         24000,
				"autoSaveInterval":     15,
			},
			"updateUrl":    "https://example.com/releases",
			"announcement": map[string]any{"title": "Info", "message": "maintenance tonight", "type": "info"},
		})
	}))
	defer srv.Close()

	cfg := Default()
	cfg.Service.BaseURL = srv.URL
	cfg.Service.Credential = "secret"
	got := FetchRemote(context.Background(), cfg, resty.New(), "1.0.0", nil)

	require.True(t, got.Remote.Loaded)
	assert.False(t, got.Remote.LoadedWithFallback)
	assert.Equal(t, 3600, got.Session.MaxSessionDurationSeconds)
	assert.Equal(t, 24000, got.Audio.Bitrate)
	assert.Equal(t, 15, got.Session.AutoSaveIntervalSeconds)
	assert.Equal(t, DefaultAnalysisIntervalSeconds, got.Session.AnalysisIntervalSeconds)
	assert.True(t, got.Remote.UpdateAvailable)
	assert.Equal(t, "https://example.com/releases", got.Remote.UpdateURL)
	assert.Equal(t, "Info: maintenance tonight", got.Remote.Announcement)
}

func TestFetchRemoteFallsBackOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := Default()
	cfg.Service.BaseURL = srv.URL
	got := FetchRemote(context.Background(), cfg, resty.New(), "1.0.0", nil)

	assert.True(t, got.Remote.Loaded)
	assert.True(t, got.Remote.LoadedWithFallback)
	assert.Equal(t, DefaultMaxSessionDurationSeconds, got.Session.MaxSessionDurationSeconds)
}

func TestFetchRemoteFallsBackWhenUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	cfg := Default()
	cfg.Service.BaseURL = url
	got := FetchRemote(context.Background(), cfg, nil, "1.0.0", nil)
	assert.True(t, got.Remote.LoadedWithFallback)
}

func TestFetchRemoteWithoutEndpoint(t *testing.T) {
	got := FetchRemote(context.Background(), Default(), nil, "1.0.0", nil)
	assert.True(t, got.Remote.Loaded)
	assert.True(t, got.Remote.LoadedWithFallback)
}

func TestCompareVersions(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.2", "1.1.9", 1},
		{"1.0", "1.0.1", -1},
		{"v2.0.0", "1.9.9", 1},
		{"1.0.0", "1", 0},
	}
	for _, tc := range cases {
		if got := CompareVersions(tc.a, tc.b); got != tc.want {
			t.Fatalf("CompareVersions(%q,%q)=%d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
	if UpdateAvailable("1.0.0", "") {
		t.Fatalf("empty latest must not report update")
	}
}
