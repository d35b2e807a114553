package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// applyEnv overlays the supported environment variables.
func (c *Config) applyEnv() {
	if v, ok := lookupEnv("WHISPER_URL"); ok {
		c.Transcription.URL = v
	}
	if v, ok := lookupEnv("VODCLIPS_STORE_DIR"); ok {
		c.Store.Dir = v
	}
	if v, ok := lookupEnv("VODCLIPS_LOG_LEVEL"); ok {
		c.Logging.Level = v
	}
	if v, ok := lookupEnv("VODCLIPS_LOG_FORMAT"); ok {
		c.Logging.Format = v
	}
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeStore()
	c.normalizeTranscription()
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.WorkspaceDir, err = expandPath(c.Paths.WorkspaceDir); err != nil {
		return fmt.Errorf("paths.workspace_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.TempDir) == "" {
		c.Paths.TempDir = filepath.Join(c.Paths.WorkspaceDir, "tmp")
	}
	if c.Paths.TempDir, err = expandPath(c.Paths.TempDir); err != nil {
		return fmt.Errorf("paths.temp_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DBPath) == "" {
		c.Paths.DBPath = filepath.Join(c.Paths.WorkspaceDir, "jobs.db")
	}
	if c.Paths.DBPath, err = expandPath(c.Paths.DBPath); err != nil {
		return fmt.Errorf("paths.db_path: %w", err)
	}
	if strings.TrimSpace(c.Store.Dir) == "" {
		c.Store.Dir = filepath.Join(c.Paths.WorkspaceDir, "store")
	}
	if c.Store.Dir, err = expandPath(c.Store.Dir); err != nil {
		return fmt.Errorf("store.dir: %w", err)
	}
	if c.Logging.File != "" {
		if c.Logging.File, err = expandPath(c.Logging.File); err != nil {
			return fmt.Errorf("logging.file: %w", err)
		}
	}
	if c.Transcription.WhisperModel != "" {
		if c.Transcription.WhisperModel, err = expandPath(c.Transcription.WhisperModel); err != nil {
			return fmt.Errorf("transcription.whisper_model: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeStore() {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	c.Store.Namespace = strings.TrimSpace(c.Store.Namespace)
}

func (c *Config) normalizeTranscription() {
	c.Transcription.Backend = strings.ToLower(strings.TrimSpace(c.Transcription.Backend))
	c.Transcription.URL = strings.TrimRight(strings.TrimSpace(c.Transcription.URL), "/")
	if c.Transcription.URL == "" {
		c.Transcription.URL = defaultWhisperURL
	}
	hosts := c.Transcription.AllowedHosts[:0]
	for _, h := range c.Transcription.AllowedHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			hosts = append(hosts, h)
		}
	}
	c.Transcription.AllowedHosts = hosts
	if strings.TrimSpace(c.Transcription.WhisperBin) == "" {
		c.Transcription.WhisperBin = defaultWhisperBin
	}
}
