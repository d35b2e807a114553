package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/forPelevin/vodclips/internal/ports/adapters/whisperhttp"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateFields(); err != nil {
		return err
	}
	return c.validateTranscription()
}

func (c *Config) validateFields() error {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("toml"), ",")
		if name == "" {
			return fld.Name
		}
		return name
	})
	err := v.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	fe := fieldErrs[0]
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	return fmt.Errorf("%s: invalid value %v (must satisfy %s)", field, fe.Value(), constraint(fe))
}

func constraint(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

func (c *Config) validateTranscription() error {
	switch c.Transcription.Backend {
	case TranscriberHTTP:
		return whisperhttp.ValidateBaseURL(c.Transcription.URL, c.Transcription.AllowedHosts)
	case TranscriberWhisperCPP:
		if c.Transcription.WhisperModel == "" {
			return errors.New("transcription.whisper_model is required for the whispercpp backend")
		}
	}
	return nil
}

// TranscriptionTimeout is the bounded wait of one transcription call.
func (c *Config) TranscriptionTimeout() time.Duration {
	return time.Duration(c.Transcription.TimeoutSeconds) * time.Second
}
