package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Announcement 远程下发的公告 / Announcement pushed by the remote endpoint
type Announcement struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

type remoteSettings struct {
	MaxRecordingDuration int `json:"maxRecordingDuration"`
	AudioBitrate         int `json:"audioBitrate"`
	AutoSaveInterval     int `json:"autoSaveInterval"`
	AnalysisInterval     int `json:"analysisInterval"`
}

// remotePayload mirrors the extension-config response body.
type remotePayload struct {
	Version         string            `json:"version"`
	Settings        remoteSettings    `json:"settings"`
	Messages        map[string]string `json:"messages"`
	UpdateURL       string            `json:"updateUrl"`
	Announcement    *Announcement     `json:"announcement"`
	UpdateAvailable bool              `json:"updateAvailable"`
	ServerTime      string            `json:"serverTime"`
}

// FetchRemote 拉取远程覆盖配置；任何失败都回退到本地默认值并标记 LoadedWithFallback，不返回错误
// FetchRemote fetches remote overrides; on any failure it keeps local values, marks LoadedWithFallback and never blocks startup
func FetchRemote(ctx context.Context, cfg Config, client *resty.Client, clientVersion string, logger *zap.Logger) Config {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.Service.BaseURL), "/")
	if base == "" {
		cfg.Remote = RemoteState{Loaded: true, LoadedWithFallback: true}
		return cfg
	}
	if client == nil {
		client = resty.New()
	}
	timeout := time.Duration(cfg.Service.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = DefaultRemoteTimeoutMS * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := fetchPayload(ctx, client, base, cfg.Service.Credential, clientVersion)
	if err != nil {
		logger.Warn("remote config unavailable, using defaults", zap.String("url", base), zap.Error(err))
		cfg.Remote = RemoteState{Loaded: true, LoadedWithFallback: true}
		return cfg
	}
	return applyRemote(cfg, payload, clientVersion)
}

func fetchPayload(ctx context.Context, client *resty.Client, base, credential, clientVersion string) (remotePayload, error) {
	var payload remotePayload
	req := client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetQueryParam("version", clientVersion).
		SetResult(&payload)
	if credential != "" {
		req.SetAuthToken(credential).SetHeader("apikey", credential)
	}
	resp, err := req.Get(base + "/extension-config")
	if err != nil {
		return remotePayload{}, fmt.Errorf("get extension-config: %w", err)
	}
	if resp.IsError() {
		return remotePayload{}, fmt.Errorf("get extension-config: HTTP %d", resp.StatusCode())
	}
	return payload, nil
}

func applyRemote(cfg Config, p remotePayload, clientVersion string) Config {
	if p.Settings.MaxRecordingDuration > 0 {
		cfg.Session.MaxSessionDurationSeconds = p.Settings.MaxRecordingDuration
	}
	if p.Settings.AudioBitrate > 0 {
		cfg.Audio.Bitrate = p.Settings.AudioBitrate
	}
	if p.Settings.AutoSaveInterval > 0 {
		cfg.Session.AutoSaveIntervalSeconds = p.Settings.AutoSaveInterval
	}
	if p.Settings.AnalysisInterval > 0 {
		cfg.Session.AnalysisIntervalSeconds = p.Settings.AnalysisInterval
	}
	state := RemoteState{
		Loaded:        true,
		LatestVersion: strings.TrimSpace(p.Version),
		UpdateURL:     strings.TrimSpace(p.UpdateURL),
	}
	if p.Announcement != nil {
		state.Announcement = strings.TrimSpace(p.Announcement.Message)
		if title := strings.TrimSpace(p.Announcement.Title); title != "" && state.Announcement != "" {
			state.Announcement = title + ": " + state.Announcement
		}
	}
	state.UpdateAvailable = p.UpdateAvailable || UpdateAvailable(clientVersion, state.LatestVersion)
	cfg.Remote = state
	return cfg
}
