// Package config loads vodclips settings from TOML. Load starts from Default,
// decodes the file when present, applies environment overrides, expands paths
// and validates the result.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Store backends.
const (
	StoreFS     = "fs"
	StoreBadger = "badger"
)

// Transcription backends.
const (
	TranscriberHTTP       = "http"
	TranscriberWhisperCPP = "whispercpp"
)

// Paths holds the local directories of a workspace. Empty TempDir, DBPath and
// store dir are derived from WorkspaceDir.
type Paths struct {
	WorkspaceDir string `toml:"workspace_dir" validate:"required"`
	TempDir      string `toml:"temp_dir"`
	DBPath       string `toml:"db_path"`
}

type Store struct {
	Backend   string `toml:"backend" validate:"oneof=fs badger"`
	Dir       string `toml:"dir"`
	Namespace string `toml:"namespace" validate:"required,excludesall=/"`
}

// Tools names the external binaries.
type Tools struct {
	FFmpeg      string `toml:"ffmpeg" validate:"required"`
	FFprobe     string `toml:"ffprobe" validate:"required"`
	YtDlp       string `toml:"ytdlp" validate:"required"`
	YtDlpFormat string `toml:"ytdlp_format" validate:"required"`
}

// Ingest describes the audio artifact extracted from the source video.
type Ingest struct {
	AudioSampleRate int `toml:"audio_sample_rate" validate:"gte=8000,lte=192000"`
	AudioChannels   int `toml:"audio_channels" validate:"gte=1,lte=8"`
}

type Transcription struct {
	Backend        string   `toml:"backend" validate:"oneof=http whispercpp"`
	URL            string   `toml:"url"`
	AllowedHosts   []string `toml:"allowed_hosts"`
	TimeoutSeconds int      `toml:"timeout_seconds" validate:"gt=0"`
	WhisperBin     string   `toml:"whisper_bin"`
	WhisperModel   string   `toml:"whisper_model"`
}

// Analysis holds the scorer and ranker parameters.
type Analysis struct {
	WindowSize      float64 `toml:"window_size" validate:"gt=0"`
	StepSize        float64 `toml:"step_size" validate:"gt=0"`
	EnergyThreshold float64 `toml:"energy_threshold" validate:"gte=0"`
	TopN            int     `toml:"top_n" validate:"gt=0"`
}

// Clips holds the synthesis batch size and the clip encoding settings.
type Clips struct {
	MaxClips   int    `toml:"max_clips" validate:"gt=0"`
	VideoCodec string `toml:"video_codec" validate:"required"`
	AudioCodec string `toml:"audio_codec" validate:"required"`
	Preset     string `toml:"preset" validate:"required"`
	CRF        int    `toml:"crf" validate:"gte=1,lte=51"`
}

type Logging struct {
	Format string `toml:"format" validate:"oneof=auto console json"`
	Level  string `toml:"level" validate:"oneof=debug info warn warning error"`
	File   string `toml:"file"`
}

type Server struct {
	Bind string `toml:"bind" validate:"required"`
}

// Config encapsulates all configuration values for vodclips.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Store         Store         `toml:"store"`
	Tools         Tools         `toml:"tools"`
	Ingest        Ingest        `toml:"ingest"`
	Transcription Transcription `toml:"transcription"`
	Analysis      Analysis      `toml:"analysis"`
	Clips         Clips         `toml:"clips"`
	Logging       Logging       `toml:"logging"`
	Server        Server        `toml:"server"`
}

// DefaultConfigPath returns the absolute path of the per-user config file.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. path overrides
// the search; otherwise VODCLIPS_CONFIG, the per-user file and ./vodclips.toml
// are tried in that order. It returns the resolved path and whether the file
// existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	if path == "" {
		path = strings.TrimSpace(os.Getenv("VODCLIPS_CONFIG"))
	}
	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file).DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config %s: unknown keys %s", resolvedPath, unknownKeys(strict))
			}
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func unknownKeys(strict *toml.StrictMissingError) string {
	keys := make([]string, 0, len(strict.Errors))
	for i := range strict.Errors {
		keys = append(keys, strings.Join(strict.Errors[i].Key(), "."))
	}
	return strings.Join(keys, ", ")
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs(projectConfigFile)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// LocksDir holds the per-job lock files.
func (c *Config) LocksDir() string {
	return filepath.Join(c.Paths.WorkspaceDir, "locks")
}

// EnsureDirectories creates the workspace directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.WorkspaceDir, c.Paths.TempDir, c.LocksDir(), filepath.Dir(c.Paths.DBPath)}
	if c.Store.Backend == StoreFS {
		dirs = append(dirs, c.Store.Dir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CreateSample writes the commented sample configuration to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}
