package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"callsync/internal/capture"
	"callsync/internal/checklist"
	"callsync/internal/config"
	"callsync/internal/crm"
	"callsync/internal/i18n"
	"callsync/internal/logging"
	"callsync/internal/provider"
	"callsync/internal/session"
	"callsync/internal/storage"
)

// appRuntime 命令共享的已初始化依赖 / appRuntime holds the dependencies shared by commands
type appRuntime struct {
	cfg    config.Config
	logger *zap.Logger
	http   *resty.Client
	store  storage.Store
	blobs  storage.BlobStore
	crm    *crm.Pipedrive
}

// loadRuntime 加载配置、日志、存储；remote 为 true 时拉取远程覆盖
// loadRuntime loads config, logging and storage, fetching remote overrides when asked
func loadRuntime(ctx context.Context, opts rootOptions, remote bool) (*appRuntime, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.lang != "" {
		cfg.UI.Lang = opts.lang
	}
	i18n.Init(cfg.UI.Lang)

	logger, err := logging.New(cfg.Log, cfg.DataDir())
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	httpClient := resty.New().SetHeader("User-Agent", "callsync/"+version)
	if remote {
		cfg = config.FetchRemote(ctx, cfg, httpClient, version, logger)
	}

	store, err := openStore(cfg)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	blobs, err := openBlobs(cfg)
	if err != nil {
		_ = store.Close()
		_ = logger.Sync()
		return nil, err
	}
	return &appRuntime{
		cfg:    cfg,
		logger: logger,
		http:   httpClient,
		store:  store,
		blobs:  blobs,
		crm:    crm.NewPipedrive(cfg.CRM, httpClient, logger),
	}, nil
}

func (rt *appRuntime) Close() {
	if err := rt.store.Close(); err != nil {
		rt.logger.Warn("close store", zap.Error(err))
	}
	_ = rt.logger.Sync()
}

func openStore(cfg config.Config) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case "supabase":
		client, err := storage.NewSupabaseClient(cfg.Storage.SupabaseURL, cfg.Storage.SupabaseKey)
		if err != nil {
			return nil, fmt.Errorf("open supabase: %w", err)
		}
		return storage.NewSupabaseStore(client, cfg.Storage.Table), nil
	default:
		store, err := storage.NewSQLiteStore(cfg.DataDir(databaseFile))
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		return store, nil
	}
}

func openBlobs(cfg config.Config) (storage.BlobStore, error) {
	switch cfg.Storage.Blob {
	case "supabase":
		if strings.TrimSpace(cfg.Storage.SupabaseURL) == "" {
			return nil, fmt.Errorf("open blob store: supabase_url is not set")
		}
		return storage.NewSupabaseBlobStore(cfg.Storage.SupabaseURL, cfg.Storage.SupabaseKey, cfg.Storage.Bucket), nil
	default:
		blobs, err := storage.NewFSBlobStore(cfg.DataDir(blobDir))
		if err != nil {
			return nil, fmt.Errorf("open blob store: %w", err)
		}
		return blobs, nil
	}
}

func newProvider(cfg config.Config) *provider.OpenAI {
	return provider.NewOpenAI(provider.OpenAIConfig{
		BaseURL:         cfg.Provider.BaseURL,
		APIKey:          cfg.Provider.APIKey,
		TranscribeModel: cfg.Provider.TranscribeModel,
		ChatModel:       cfg.Provider.ChatModel,
		Language:        cfg.Provider.Language,
		TimeoutMS:       cfg.Provider.TimeoutMS,
	})
}

// newAnalyzer 按配置选择 AI 或关键词检测；没有 API key 时不做周期分析
// newAnalyzer picks the AI or keyword detector; without an API key no periodic analysis runs
func newAnalyzer(cfg config.Config, ai *provider.OpenAI, logger *zap.Logger) checklist.Analyzer {
	if strings.TrimSpace(cfg.Provider.APIKey) == "" {
		logger.Warn("no provider API key, live checklist detection disabled")
		return nil
	}
	if cfg.Analysis.Mode == "keyword" {
		return checklist.KeywordAnalyzer{STT: ai, MinChars: cfg.Analysis.MinTranscriptChars}
	}
	return checklist.AIAnalyzer{
		STT:             ai,
		LLM:             ai,
		Trimmer:         provider.NewTokenizer("cl100k_base"),
		MaxPromptTokens: cfg.Analysis.MaxPromptTokens,
		MinChars:        cfg.Analysis.MinTranscriptChars,
		Logger:          logger,
	}
}

func newController(rt *appRuntime) *session.Controller {
	cfg := rt.cfg
	ai := newProvider(cfg)
	format := capture.Format{SampleRate: cfg.Audio.SampleRate, Channels: cfg.Audio.Channels}
	deps := session.Deps{
		NewSource: func() capture.Source {
			return capture.NewFFmpegSource(cfg.Audio.FFmpegPath, cfg.Audio.InputFormat, cfg.Audio.Device, format)
		},
		Analyzer:    newAnalyzer(cfg, ai, rt.logger),
		Transcriber: ai,
		Notes:       rt.crm,
		Store:       rt.store,
		Blobs:       rt.blobs,
		Logger:      rt.logger,
	}
	if cfg.Audio.Encode {
		deps.Encoder = capture.FFmpegEncoder{Path: cfg.Audio.FFmpegPath, Bitrate: cfg.Audio.Bitrate}
	}
	return session.NewController(deps, session.Options{
		AnalysisInterval: time.Duration(cfg.Session.AnalysisIntervalSeconds) * time.Second,
		MaxDuration:      time.Duration(cfg.Session.MaxSessionDurationSeconds) * time.Second,
		Retry:            provider.RetryPolicy{Attempts: cfg.Provider.Attempts, Base: 500 * time.Millisecond},
	})
}

func newDebouncer(rt *appRuntime) *crm.Debouncer {
	return crm.NewDebouncer(rt.crm,
		time.Duration(rt.cfg.CRM.DebounceMS)*time.Millisecond,
		rt.cfg.CRM.MinQueryLength, nil, rt.logger)
}

// pickSurface resolves "auto" to the TUI on a terminal and to the REPL otherwise.
func pickSurface(requested string, isTTY bool) string {
	switch requested {
	case surfaceTUI, surfaceREPL, surfaceDaemon:
		return requested
	}
	if isTTY {
		return surfaceTUI
	}
	return surfaceREPL
}

// bannerLines 远程配置带来的提示 / bannerLines lists notices from the remote config fetch
func bannerLines(cfg config.Config, loc *i18n.I18n) []string {
	var lines []string
	if cfg.Remote.LoadedWithFallback && strings.TrimSpace(cfg.Service.BaseURL) != "" {
		lines = append(lines, loc.T("status.fallback"))
	}
	if cfg.Remote.UpdateAvailable && cfg.Remote.LatestVersion != "" {
		lines = append(lines, strings.TrimSpace(loc.T("status.update", cfg.Remote.LatestVersion, cfg.Remote.UpdateURL)))
	}
	if cfg.Remote.Announcement != "" {
		lines = append(lines, cfg.Remote.Announcement)
	}
	return lines
}
