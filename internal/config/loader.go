package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// KnownModels lists the recognition model flavours SaluteSpeech offers.
// Used by [Validate] to warn about unrecognised names.
var KnownModels = []string{"general", "media", "ivr", "callcenter"}

// KnownLanguages lists the languages SaluteSpeech recognizes or synthesizes.
var KnownLanguages = []string{"ru-RU", "kz-KZ", "en-US"}

// Override adjusts a decoded config before validation. Command-line flags use
// it to take precedence over both the file and the environment.
type Override func(*Config)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. An empty path skips the file and uses defaults plus environment
// overrides. Precedence, lowest first: defaults, file, SALUTEGW_* variables,
// overrides.
func Load(path string, overrides ...Override) (*Config, error) {
	if path == "" {
		cfg := Default()
		applyEnvOverrides(cfg)
		for _, o := range overrides {
			o(cfg)
		}
		if err := Validate(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f, overrides...)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of [Default], applies
// SALUTEGW_* environment overrides and then overrides, and validates the
// result.
func LoadFromReader(r io.Reader, overrides ...Override) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyEnvOverrides(cfg)
	for _, o := range overrides {
		o(cfg)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if err := validateListenURI(cfg.Server.ListenURI); err != nil {
		errs = append(errs, err)
	}

	// Salute
	if cfg.Salute.AuthKey == "" {
		errs = append(errs, errors.New("salute.auth_key is required (or set SALUTEGW_AUTH_KEY)"))
	}
	for field, v := range map[string]string{
		"salute.auth_url":    cfg.Salute.AuthURL,
		"salute.service_url": cfg.Salute.ServiceURL,
	} {
		if u, err := url.Parse(v); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s %q must be an absolute URL", field, v))
		}
	}
	if cfg.Salute.Scope == "" {
		errs = append(errs, errors.New("salute.scope must not be empty"))
	}
	if cfg.Salute.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("salute.request_timeout %s must not be negative", cfg.Salute.RequestTimeout))
	}
	if cfg.Salute.Breaker.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("salute.breaker.max_failures %d must not be negative", cfg.Salute.Breaker.MaxFailures))
	}
	if cfg.Salute.Breaker.MaxFailures > 0 && cfg.Salute.Breaker.ResetTimeout <= 0 {
		errs = append(errs, errors.New("salute.breaker.reset_timeout must be positive when the breaker is enabled"))
	}
	if cfg.Salute.CACertFile != "" {
		if _, err := os.Stat(cfg.Salute.CACertFile); err != nil {
			errs = append(errs, fmt.Errorf("salute.ca_cert_file: %w", err))
		}
	}
	warnUnknown("salute.model", cfg.Salute.Model, KnownModels)

	// Gateway
	if cfg.Gateway.Language == "" {
		errs = append(errs, errors.New("gateway.language must not be empty"))
	}
	warnUnknown("gateway.language", cfg.Gateway.Language, KnownLanguages)
	if cfg.Gateway.Voice == "" {
		errs = append(errs, errors.New("gateway.voice must not be empty"))
	}
	if cfg.Gateway.FrameSamples <= 0 {
		errs = append(errs, fmt.Errorf("gateway.frame_samples %d must be positive", cfg.Gateway.FrameSamples))
	}
	if cfg.Gateway.MaxAudioBytes < 0 {
		errs = append(errs, fmt.Errorf("gateway.max_audio_bytes %d must not be negative", cfg.Gateway.MaxAudioBytes))
	}

	return errors.Join(errs...)
}

func validateListenURI(uri string) error {
	u, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("server.listen_uri %q: %w", uri, err)
	}
	switch u.Scheme {
	case "tcp", "ws":
		if u.Host == "" {
			return fmt.Errorf("server.listen_uri %q is missing host:port", uri)
		}
	case "unix":
		if u.Path == "" {
			return fmt.Errorf("server.listen_uri %q is missing a socket path", uri)
		}
	default:
		return fmt.Errorf("server.listen_uri %q has unsupported scheme; valid schemes: tcp, unix, ws", uri)
	}
	return nil
}

// warnUnknown logs a warning if value is non-empty and not in known.
func warnUnknown(field, value string, known []string) {
	if value == "" || slices.Contains(known, value) {
		return
	}
	slog.Warn("unknown value, may be a typo or a newly added option",
		"field", field,
		"value", value,
		"known", known,
	)
}
