package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ServiceConfig 托管服务端点（远程配置下发）
// ServiceConfig describes the hosted control endpoint that serves remote overrides
type ServiceConfig struct {
	BaseURL    string `json:"base_url" validate:"omitempty,url"`
	Credential string `json:"credential"`
	TimeoutMS  int    `json:"timeout_ms" validate:"gte=0"`
}

// ProviderConfig OpenAI 兼容的转写与摘要后端
// ProviderConfig is the OpenAI-compatible transcription and summary backend
type ProviderConfig struct {
	BaseURL         string `json:"base_url" validate:"omitempty,url"`
	APIKey          string `json:"api_key"`
	TranscribeModel string `json:"transcribe_model"`
	ChatModel       string `json:"chat_model"`
	Language        string `json:"language"`
	TimeoutMS       int    `json:"timeout_ms" validate:"gte=0"`
	Attempts        int    `json:"attempts" validate:"gte=0,lte=10"`
}

type SessionConfig struct {
	AnalysisIntervalSeconds   int `json:"analysis_interval_seconds" validate:"gte=0"`
	MaxSessionDurationSeconds int `json:"max_session_duration_seconds" validate:"gte=0"`
	AutoSaveIntervalSeconds   int `json:"auto_save_interval_seconds" validate:"gte=0"`
}

type AudioConfig struct {
	FFmpegPath string `json:"ffmpeg_path"`
	// InputFormat 是 ffmpeg -f 参数（pulse / alsa / avfoundation / dshow）
	// InputFormat is the ffmpeg -f demuxer (pulse / alsa / avfoundation / dshow)
	InputFormat string `json:"input_format"`
	Device      string `json:"device"`
	SampleRate  int    `json:"sample_rate" validate:"gte=0"`
	Channels    int    `json:"channels" validate:"gte=0,lte=2"`
	Bitrate     int    `json:"bitrate" validate:"gte=0"`
	Encode      bool   `json:"encode"`
}

type AnalysisConfig struct {
	Mode               string `json:"mode" validate:"omitempty,oneof=ai keyword"`
	MinTranscriptChars int    `json:"min_transcript_chars" validate:"gte=0"`
	MaxPromptTokens    int    `json:"max_prompt_tokens" validate:"gte=0"`
}

type CRMConfig struct {
	BaseURL        string `json:"base_url" validate:"omitempty,url"`
	APIToken       string `json:"api_token"`
	SearchLimit    int    `json:"search_limit" validate:"gte=0"`
	DebounceMS     int    `json:"debounce_ms" validate:"gte=0"`
	MinQueryLength int    `json:"min_query_length" validate:"gte=0"`
}

type StorageConfig struct {
	BaseDir            string `json:"base_dir"`
	Backend            string `json:"backend" validate:"omitempty,oneof=sqlite supabase"`
	Blob               string `json:"blob" validate:"omitempty,oneof=fs supabase"`
	Bucket             string `json:"bucket"`
	Table              string `json:"table"`
	SupabaseURL        string `json:"supabase_url" validate:"omitempty,url"`
	SupabaseKey        string `json:"supabase_key"`
	CleanupMaxAgeHours int    `json:"cleanup_max_age_hours" validate:"gte=0"`
}

type UIConfig struct {
	// Surface 选择宿主界面：auto / tui / repl / daemon
	// Surface selects the host surface: auto / tui / repl / daemon
	Surface   string `json:"surface" validate:"omitempty,oneof=auto tui repl daemon"`
	Lang      string `json:"lang" validate:"omitempty,oneof=en fr"`
	Socket    string `json:"socket"`
	RequestMS int    `json:"request_timeout_ms" validate:"gte=0"`
}

type LogConfig struct {
	Level      string `json:"level" validate:"omitempty,oneof=debug info warn error"`
	MaxSizeMB  int    `json:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `json:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `json:"max_age_days" validate:"gte=0"`
	Stderr     bool   `json:"stderr"`
}

// RemoteState 记录远程配置拉取结果，不参与文件序列化
// RemoteState records the outcome of the remote override fetch; never written to disk
type RemoteState struct {
	Loaded             bool   `json:"-"`
	LoadedWithFallback bool   `json:"-"`
	LatestVersion      string `json:"-"`
	UpdateURL          string `json:"-"`
	Announcement       string `json:"-"`
	UpdateAvailable    bool   `json:"-"`
}

type Config struct {
	Service  ServiceConfig  `json:"service"`
	Provider ProviderConfig `json:"provider"`
	Session  SessionConfig  `json:"session"`
	Audio    AudioConfig    `json:"audio"`
	Analysis AnalysisConfig `json:"analysis"`
	CRM      CRMConfig      `json:"crm"`
	Storage  StorageConfig  `json:"storage"`
	UI       UIConfig       `json:"ui"`
	Log      LogConfig      `json:"log"`
	Remote   RemoteState    `json:"-"`
}

type fileAudioConfig struct {
	FFmpegPath  *string `json:"ffmpeg_path"`
	InputFormat *string `json:"input_format"`
	Device      *string `json:"device"`
	SampleRate  *int    `json:"sample_rate"`
	Channels    *int    `json:"channels"`
	Bitrate     *int    `json:"bitrate"`
	Encode      *bool   `json:"encode"`
}

type fileLogConfig struct {
	Level      *string `json:"level"`
	MaxSizeMB  *int    `json:"max_size_mb"`
	MaxBackups *int    `json:"max_backups"`
	MaxAgeDays *int    `json:"max_age_days"`
	Stderr     *bool   `json:"stderr"`
}

type fileConfig struct {
	Service  *ServiceConfig   `json:"service"`
	Provider *ProviderConfig  `json:"provider"`
	Session  *SessionConfig   `json:"session"`
	Audio    *fileAudioConfig `json:"audio"`
	Analysis *AnalysisConfig  `json:"analysis"`
	CRM      *CRMConfig       `json:"crm"`
	Storage  *StorageConfig   `json:"storage"`
	UI       *UIConfig        `json:"ui"`
	Log      *fileLogConfig   `json:"log"`
}

func Default() Config {
	return Config{
		Service: ServiceConfig{
			TimeoutMS: DefaultRemoteTimeoutMS,
		},
		Provider: ProviderConfig{
			BaseURL:         "https://api.openai.com/v1",
			TranscribeModel: "whisper-1",
			ChatModel:       "gpt-4o-mini",
			Language:        "fr",
			TimeoutMS:       120000,
			Attempts:        DefaultProcessAttempts,
		},
		Session: SessionConfig{
			AnalysisIntervalSeconds:   DefaultAnalysisIntervalSeconds,
			MaxSessionDurationSeconds: DefaultMaxSessionDurationSeconds,
			AutoSaveIntervalSeconds:   DefaultAutoSaveIntervalSeconds,
		},
		Audio: AudioConfig{
			FFmpegPath: "ffmpeg",
			SampleRate: 16000,
			Channels:   1,
			Bitrate:    DefaultAudioBitrate,
			Encode:     true,
		},
		Analysis: AnalysisConfig{
			Mode:               "ai",
			MinTranscriptChars: DefaultMinTranscriptChars,
			MaxPromptTokens:    3000,
		},
		CRM: CRMConfig{
			BaseURL:        "https://api.pipedrive.com/v1",
			SearchLimit:    10,
			DebounceMS:     DefaultSearchDebounceMS,
			MinQueryLength: DefaultSearchMinQueryLength,
		},
		Storage: StorageConfig{
			BaseDir:            "~/.callsync",
			Backend:            "sqlite",
			Blob:               "fs",
			Bucket:             "call-recordings",
			Table:              "calls",
			CleanupMaxAgeHours: 24,
		},
		UI: UIConfig{
			Surface:   "auto",
			Lang:      "en",
			RequestMS: 10000,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  20,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	for _, globalPath := range globalConfigPaths() {
		if err := mergeFromFile(&cfg, globalPath); err != nil {
			return Config{}, err
		}
	}

	resolvedPath := strings.TrimSpace(path)
	if envPath := strings.TrimSpace(os.Getenv("CALLSYNC_CONFIG")); envPath != "" {
		resolvedPath = envPath
	}
	if resolvedPath == "" {
		resolvedPath = findProjectConfigPath()
	}
	if err := mergeFromFile(&cfg, resolvedPath); err != nil {
		return Config{}, err
	}

	cfg, err := applyEnv(cfg)
	if err != nil {
		return Config{}, err
	}
	if err := normalize(&cfg); err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate 校验字段取值范围 / Validates field ranges and enums
func Validate(cfg Config) error {
	if err := validator.New().Struct(&cfg); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

func globalConfigPaths() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{filepath.Join(home, ".callsync", "config.json")}
}

func findProjectConfigPath() string {
	candidates := []string{
		"callsync.config.json",
		".callsync/config.json",
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

func mergeFromFile(cfg *Config, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}

	resolved, err := expandPath(path)
	if err != nil {
		return fmt.Errorf("expand config path %q: %w", path, err)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %q: %w", resolved, err)
	}

	var fileCfg fileConfig
	if err := json.Unmarshal(stripJSONComments(data), &fileCfg); err != nil {
		return fmt.Errorf("parse config %q: %w", resolved, err)
	}
	applyFileConfig(cfg, fileCfg)
	return nil
}

func applyFileConfig(cfg *Config, fc fileConfig) {
	if fc.Service != nil {
		cfg.Service = mergeService(cfg.Service, *fc.Service)
	}
	if fc.Provider != nil {
		cfg.Provider = mergeProvider(cfg.Provider, *fc.Provider)
	}
	if fc.Session != nil {
		cfg.Session = mergeSession(cfg.Session, *fc.Session)
	}
	if fc.Audio != nil {
		if fc.Audio.FFmpegPath != nil {
			cfg.Audio.FFmpegPath = *fc.Audio.FFmpegPath
		}
		if fc.Audio.InputFormat != nil {
			cfg.Audio.InputFormat = *fc.Audio.InputFormat
		}
		if fc.Audio.Device != nil {
			cfg.Audio.Device = *fc.Audio.Device
		}
		if fc.Audio.SampleRate != nil {
			cfg.Audio.SampleRate = *fc.Audio.SampleRate
		}
		if fc.Audio.Channels != nil {
			cfg.Audio.Channels = *fc.Audio.Channels
		}
		if fc.Audio.Bitrate != nil {
			cfg.Audio.Bitrate = *fc.Audio.Bitrate
		}
		if fc.Audio.Encode != nil {
			cfg.Audio.Encode = *fc.Audio.Encode
		}
	}
	if fc.Analysis != nil {
		if strings.TrimSpace(fc.Analysis.Mode) != "" {
			cfg.Analysis.Mode = fc.Analysis.Mode
		}
		if fc.Analysis.MinTranscriptChars > 0 {
			cfg.Analysis.MinTranscriptChars = fc.Analysis.MinTranscriptChars
		}
		if fc.Analysis.MaxPromptTokens > 0 {
			cfg.Analysis.MaxPromptTokens = fc.Analysis.MaxPromptTokens
		}
	}
	if fc.CRM != nil {
		cfg.CRM = mergeCRM(cfg.CRM, *fc.CRM)
	}
	if fc.Storage != nil {
		cfg.Storage = mergeStorage(cfg.Storage, *fc.Storage)
	}
	if fc.UI != nil {
		if strings.TrimSpace(fc.UI.Surface) != "" {
			cfg.UI.Surface = fc.UI.Surface
		}
		if strings.TrimSpace(fc.UI.Lang) != "" {
			cfg.UI.Lang = fc.UI.Lang
		}
		if strings.TrimSpace(fc.UI.Socket) != "" {
			cfg.UI.Socket = fc.UI.Socket
		}
		if fc.UI.RequestMS > 0 {
			cfg.UI.RequestMS = fc.UI.RequestMS
		}
	}
	if fc.Log != nil {
		if fc.Log.Level != nil {
			cfg.Log.Level = *fc.Log.Level
		}
		if fc.Log.MaxSizeMB != nil {
			cfg.Log.MaxSizeMB = *fc.Log.MaxSizeMB
		}
		if fc.Log.MaxBackups != nil {
			cfg.Log.MaxBackups = *fc.Log.MaxBackups
		}
		if fc.Log.MaxAgeDays != nil {
			cfg.Log.MaxAgeDays = *fc.Log.MaxAgeDays
		}
		if fc.Log.Stderr != nil {
			cfg.Log.Stderr = *fc.Log.Stderr
		}
	}
}

func mergeService(base ServiceConfig, override ServiceConfig) ServiceConfig {
	if strings.TrimSpace(override.BaseURL) != "" {
		base.BaseURL = strings.TrimRight(override.BaseURL, "/")
	}
	if strings.TrimSpace(override.Credential) != "" {
		base.Credential = override.Credential
	}
	if override.TimeoutMS > 0 {
		base.TimeoutMS = override.TimeoutMS
	}
	return base
}

func mergeProvider(base ProviderConfig, override ProviderConfig) ProviderConfig {
	if strings.TrimSpace(override.BaseURL) != "" {
		base.BaseURL = override.BaseURL
	}
	if strings.TrimSpace(override.APIKey) != "" {
		base.APIKey = override.APIKey
	}
	if strings.TrimSpace(override.TranscribeModel) != "" {
		base.TranscribeModel = override.TranscribeModel
	}
	if strings.TrimSpace(override.ChatModel) != "" {
		base.ChatModel = override.ChatModel
	}
	if strings.TrimSpace(override.Language) != "" {
		base.Language = override.Language
	}
	if override.TimeoutMS > 0 {
		base.TimeoutMS = override.TimeoutMS
	}
	if override.Attempts > 0 {
		base.Attempts = override.Attempts
	}
	return base
}

func mergeSession(base SessionConfig, override SessionConfig) SessionConfig {
	if override.AnalysisIntervalSeconds > 0 {
		base.AnalysisIntervalSeconds = override.AnalysisIntervalSeconds
	}
	if override.MaxSessionDurationSeconds > 0 {
		base.MaxSessionDurationSeconds = override.MaxSessionDurationSeconds
	}
	if override.AutoSaveIntervalSeconds > 0 {
		base.AutoSaveIntervalSeconds = override.AutoSaveIntervalSeconds
	}
	return base
}

func mergeCRM(base CRMConfig, override CRMConfig) CRMConfig {
	if strings.TrimSpace(override.BaseURL) != "" {
		base.BaseURL = strings.TrimRight(override.BaseURL, "/")
	}
	if strings.TrimSpace(override.APIToken) != "" {
		base.APIToken = override.APIToken
	}
	if override.SearchLimit > 0 {
		base.SearchLimit = override.SearchLimit
	}
	if override.DebounceMS > 0 {
		base.DebounceMS = override.DebounceMS
	}
	if override.MinQueryLength > 0 {
		base.MinQueryLength = override.MinQueryLength
	}
	return base
}

func mergeStorage(base StorageConfig, override StorageConfig) StorageConfig {
	if strings.TrimSpace(override.BaseDir) != "" {
		base.BaseDir = override.BaseDir
	}
	if strings.TrimSpace(override.Backend) != "" {
		base.Backend = override.Backend
	}
	if strings.TrimSpace(override.Blob) != "" {
		base.Blob = override.Blob
	}
	if strings.TrimSpace(override.Bucket) != "" {
		base.Bucket = override.Bucket
	}
	if strings.TrimSpace(override.Table) != "" {
		base.Table = override.Table
	}
	if strings.TrimSpace(override.SupabaseURL) != "" {
		base.SupabaseURL = override.SupabaseURL
	}
	if strings.TrimSpace(override.SupabaseKey) != "" {
		base.SupabaseKey = override.SupabaseKey
	}
	if override.CleanupMaxAgeHours > 0 {
		base.CleanupMaxAgeHours = override.CleanupMaxAgeHours
	}
	return base
}

func normalize(cfg *Config) error {
	def := Default()
	if cfg.Session.AnalysisIntervalSeconds <= 0 {
		cfg.Session.AnalysisIntervalSeconds = def.Session.AnalysisIntervalSeconds
	}
	if cfg.Session.MaxSessionDurationSeconds <= 0 {
		cfg.Session.MaxSessionDurationSeconds = def.Session.MaxSessionDurationSeconds
	}
	if cfg.Provider.Attempts <= 0 {
		cfg.Provider.Attempts = def.Provider.Attempts
	}
	if cfg.Provider.TimeoutMS <= 0 {
		cfg.Provider.TimeoutMS = def.Provider.TimeoutMS
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = def.Audio.SampleRate
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = def.Audio.Channels
	}
	if cfg.Audio.Bitrate <= 0 {
		cfg.Audio.Bitrate = def.Audio.Bitrate
	}
	if strings.TrimSpace(cfg.Audio.FFmpegPath) == "" {
		cfg.Audio.FFmpegPath = def.Audio.FFmpegPath
	}
	cfg.Analysis.Mode = strings.ToLower(strings.TrimSpace(cfg.Analysis.Mode))
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	cfg.Storage.Blob = strings.ToLower(strings.TrimSpace(cfg.Storage.Blob))
	cfg.UI.Surface = strings.ToLower(strings.TrimSpace(cfg.UI.Surface))
	cfg.UI.Lang = strings.ToLower(strings.TrimSpace(cfg.UI.Lang))
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))

	baseDir, err := expandPath(cfg.Storage.BaseDir)
	if err != nil {
		return err
	}
	cfg.Storage.BaseDir = baseDir
	if strings.TrimSpace(cfg.UI.Socket) == "" {
		cfg.UI.Socket = filepath.Join(baseDir, "callsync.sock")
	} else if cfg.UI.Socket, err = expandPath(cfg.UI.Socket); err != nil {
		return err
	}
	if cfg.Log.MaxSizeMB <= 0 {
		cfg.Log.MaxSizeMB = def.Log.MaxSizeMB
	}

	// supabase 后端必须同时提供 URL 与 key。
	if strings.TrimSpace(cfg.Storage.SupabaseURL) == "" || strings.TrimSpace(cfg.Storage.SupabaseKey) == "" {
		if cfg.Storage.Backend == "supabase" || cfg.Storage.Blob == "supabase" {
			return errors.New("storage: supabase backend requires supabase_url and supabase_key")
		}
	}
	return nil
}

func applyEnv(cfg Config) (Config, error) {
	if v := strings.TrimSpace(os.Getenv("CALLSYNC_SERVICE_URL")); v != "" {
		cfg.Service.BaseURL = strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(os.Getenv("CALLSYNC_SERVICE_KEY")); v != "" {
		cfg.Service.Credential = v
	}
	if v := strings.TrimSpace(os.Getenv("CALLSYNC_BASE_URL")); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("PIPEDRIVE_API_TOKEN")); v != "" {
		cfg.CRM.APIToken = v
	}
	if v := strings.TrimSpace(os.Getenv("SUPABASE_URL")); v != "" {
		cfg.Storage.SupabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("SUPABASE_KEY")); v != "" {
		cfg.Storage.SupabaseKey = v
	}
	if v := strings.TrimSpace(os.Getenv("CALLSYNC_LANG")); v != "" {
		cfg.UI.Lang = v
	}
	if v := strings.TrimSpace(os.Getenv("CALLSYNC_HOME")); v != "" {
		cfg.Storage.BaseDir = v
	}
	if v := strings.TrimSpace(os.Getenv("CALLSYNC_ANALYSIS_INTERVAL")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid CALLSYNC_ANALYSIS_INTERVAL: %q", v)
		}
		cfg.Session.AnalysisIntervalSeconds = n
	}
	return cfg, nil
}

// DataDir 返回数据目录下的子路径 / Returns a path under the data directory
func (c Config) DataDir(elem ...string) string {
	return filepath.Join(append([]string{c.Storage.BaseDir}, elem...)...)
}

func expandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		if path == "~" {
			path = home
		} else {
			path = filepath.Join(home, strings.TrimPrefix(path, "~/"))
		}
	}
	return filepath.Abs(path)
}

func stripJSONComments(data []byte) []byte {
	const (
		stateNormal = iota
		stateString
		stateLineComment
		stateBlockComment
	)

	state := stateNormal
	escaped := false
	out := bytes.Buffer{}

	for i := 0; i < len(data); i++ {
		c := data[i]
		next := byte(0)
		if i+1 < len(data) {
			next = data[i+1]
		}

		switch state {
		case stateNormal:
			if c == '"' {
				state = stateString
				out.WriteByte(c)
				continue
			}
			if c == '/' && next == '/' {
				state = stateLineComment
				i++
				continue
			}
			if c == '/' && next == '*' {
				state = stateBlockComment
				i++
				continue
			}
			out.WriteByte(c)
		case stateString:
			out.WriteByte(c)
			if escaped {
				escaped = false
				continue
			}
			if c == '\\' {
				escaped = true
				continue
			}
			if c == '"' {
				state = stateNormal
			}
		case stateLineComment:
			if c == '\n' {
				state = stateNormal
				out.WriteByte(c)
			}
		case stateBlockComment:
			if c == '*' && next == '/' {
				state = stateNormal
				i++
			}
		}
	}

	return out.Bytes()
}
