package config

const (
	DefaultAnalysisIntervalSeconds   = 60
	DefaultMaxSessionDurationSeconds = 7200
	DefaultAutoSaveIntervalSeconds   = 30
	DefaultAudioBitrate              = 32000

	DefaultProcessAttempts = 3
	DefaultRemoteTimeoutMS = 5000

	DefaultSearchDebounceMS     = 300
	DefaultSearchMinQueryLength = 2

	DefaultMinTranscriptChars = 50
)
