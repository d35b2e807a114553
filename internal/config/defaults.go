package config

const (
	defaultWorkspaceDir    = "~/.local/share/vodclips"
	defaultStoreBackend    = "fs"
	defaultStoreNamespace  = "vods"
	defaultFFmpeg          = "ffmpeg"
	defaultFFprobe         = "ffprobe"
	defaultYtDlp           = "yt-dlp"
	defaultYtDlpFormat     = "best"
	defaultSampleRate      = 44100
	defaultChannels        = 2
	defaultTranscriber     = "http"
	defaultWhisperURL      = "http://localhost:5000"
	defaultWhisperTimeout  = 1200
	defaultWhisperBin      = "whisper-cli"
	defaultWindowSize      = 30.0
	defaultStepSize        = 10.0
	defaultEnergyThreshold = 0.01
	defaultTopN            = 20
	defaultMaxClips        = 10
	defaultVideoCodec      = "libx264"
	defaultAudioCodec      = "aac"
	defaultPreset          = "fast"
	defaultCRF             = 23
	defaultLogFormat       = "auto"
	defaultLogLevel        = "info"
	defaultServerBind      = "127.0.0.1:8080"
	defaultConfigPath      = "~/.config/vodclips/config.toml"
	projectConfigFile      = "vodclips.toml"
)

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkspaceDir: defaultWorkspaceDir,
		},
		Store: Store{
			Backend:   defaultStoreBackend,
			Namespace: defaultStoreNamespace,
		},
		Tools: Tools{
			FFmpeg:      defaultFFmpeg,
			FFprobe:     defaultFFprobe,
			YtDlp:       defaultYtDlp,
			YtDlpFormat: defaultYtDlpFormat,
		},
		Ingest: Ingest{
			AudioSampleRate: defaultSampleRate,
			AudioChannels:   defaultChannels,
		},
		Transcription: Transcription{
			Backend:        defaultTranscriber,
			URL:            defaultWhisperURL,
			TimeoutSeconds: defaultWhisperTimeout,
			WhisperBin:     defaultWhisperBin,
		},
		Analysis: Analysis{
			WindowSize:      defaultWindowSize,
			StepSize:        defaultStepSize,
			EnergyThreshold: defaultEnergyThreshold,
			TopN:            defaultTopN,
		},
		Clips: Clips{
			MaxClips:   defaultMaxClips,
			VideoCodec: defaultVideoCodec,
			AudioCodec: defaultAudioCodec,
			Preset:     defaultPreset,
			CRF:        defaultCRF,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Server: Server{
			Bind: defaultServerBind,
		},
	}
}
