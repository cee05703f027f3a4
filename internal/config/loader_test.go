package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/salutespeech-gateway/internal/config"
)

func TestValidate_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		yaml    string
		wantSub string
	}{
		{
			name:    "missing auth key",
			yaml:    "gateway:\n  language: ru-RU\n",
			wantSub: "salute.auth_key is required",
		},
		{
			name:    "invalid log level",
			yaml:    "server:\n  log_level: bananas\nsalute:\n  auth_key: k\n",
			wantSub: "server.log_level",
		},
		{
			name:    "unsupported listen scheme",
			yaml:    "server:\n  listen_uri: http://0.0.0.0:80\nsalute:\n  auth_key: k\n",
			wantSub: "unsupported scheme",
		},
		{
			name:    "unix without path",
			yaml:    "server:\n  listen_uri: unix://\nsalute:\n  auth_key: k\n",
			wantSub: "socket path",
		},
		{
			name:    "relative service url",
			yaml:    "salute:\n  auth_key: k\n  service_url: /rest/v1\n",
			wantSub: "salute.service_url",
		},
		{
			name:    "zero frame samples",
			yaml:    "salute:\n  auth_key: k\ngateway:\n  frame_samples: 0\n",
			wantSub: "gateway.frame_samples",
		},
		{
			name:    "negative max audio",
			yaml:    "salute:\n  auth_key: k\ngateway:\n  max_audio_bytes: -1\n",
			wantSub: "gateway.max_audio_bytes",
		},
		{
			name:    "negative timeout",
			yaml:    "salute:\n  auth_key: k\n  request_timeout: -1s\n",
			wantSub: "salute.request_timeout",
		},
		{
			name:    "breaker without reset",
			yaml:    "salute:\n  auth_key: k\n  breaker:\n    max_failures: 2\n    reset_timeout: 0s\n",
			wantSub: "reset_timeout",
		},
		{
			name:    "missing ca file",
			yaml:    "salute:\n  auth_key: k\n  ca_cert_file: /nonexistent/ca.pem\n",
			wantSub: "salute.ca_cert_file",
		},
		{
			name:    "empty voice",
			yaml:    "salute:\n  auth_key: k\ngateway:\n  voice: \"\"\n",
			wantSub: "gateway.voice",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error should mention %q, got: %v", tt.wantSub, err)
			}
		})
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: bananas
gateway:
  frame_samples: -5
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	for _, sub := range []string{"log_level", "auth_key", "frame_samples"} {
		if !strings.Contains(err.Error(), sub) {
			t.Errorf("joined error should mention %q, got: %v", sub, err)
		}
	}
}

func TestLoadFromReader_EnvOverrides(t *testing.T) {
	t.Setenv("SALUTEGW_AUTH_KEY", "from-env")
	t.Setenv("SALUTEGW_LOG_LEVEL", "DEBUG")
	t.Setenv("SALUTEGW_FRAME_SAMPLES", "2048")
	t.Setenv("SALUTEGW_REPORT_ERRORS", "true")
	t.Setenv("SALUTEGW_REQUEST_TIMEOUT", "20s")
	t.Setenv("SALUTEGW_LISTEN_URI", "unix:///tmp/gw.sock")

	cfg, err := config.LoadFromReader(strings.NewReader("salute:\n  auth_key: from-file\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Salute.AuthKey != "from-env" {
		t.Errorf("auth_key = %q, want env value", cfg.Salute.AuthKey)
	}
	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("log_level = %q", cfg.Server.LogLevel)
	}
	if cfg.Gateway.FrameSamples != 2048 || !cfg.Gateway.ReportErrors {
		t.Errorf("gateway = %+v", cfg.Gateway)
	}
	if cfg.Salute.RequestTimeout != 20*time.Second {
		t.Errorf("request_timeout = %s", cfg.Salute.RequestTimeout)
	}
	if cfg.Server.ListenURI != "unix:///tmp/gw.sock" {
		t.Errorf("listen_uri = %q", cfg.Server.ListenURI)
	}
}

func TestLoadFromReader_InvalidEnvIgnored(t *testing.T) {
	t.Setenv("SALUTEGW_AUTH_KEY", "k")
	t.Setenv("SALUTEGW_FRAME_SAMPLES", "lots")
	t.Setenv("SALUTEGW_REQUEST_TIMEOUT", "soon")

	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Gateway.FrameSamples != 1024 || cfg.Salute.RequestTimeout != 0 {
		t.Errorf("invalid overrides should be ignored, got %+v / %s", cfg.Gateway, cfg.Salute.RequestTimeout)
	}
}

func TestLoad_EmptyPathUsesEnv(t *testing.T) {
	t.Setenv("SALUTEGW_AUTH_KEY", "k")
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Salute.AuthKey != "k" || cfg.Gateway.Voice != "Ost_24000" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_File(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "salutegw.yaml")
	if err := os.WriteFile(path, []byte(validYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Gateway.Voice != "May_24000" {
		t.Errorf("voice = %q", cfg.Gateway.Voice)
	}

	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_OverridesBeatEnvAndFile(t *testing.T) {
	t.Setenv("SALUTEGW_VOICE", "Nec_24000")
	path := filepath.Join(t.TempDir(), "salutegw.yaml")
	if err := os.WriteFile(path, []byte(validYAML), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path, func(c *config.Config) { c.Gateway.Voice = "Bys_24000" })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Gateway.Voice != "Bys_24000" {
		t.Errorf("voice = %q, want Bys_24000", cfg.Gateway.Voice)
	}
}

func TestLoad_OverrideCanSupplyAuthKey(t *testing.T) {
	t.Setenv("SALUTEGW_AUTH_KEY", "")
	if _, err := config.Load(""); err == nil {
		t.Fatal("want error without auth key")
	}
	cfg, err := config.Load("", func(c *config.Config) { c.Salute.AuthKey = "from-flag" })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Salute.AuthKey != "from-flag" {
		t.Errorf("auth key = %q", cfg.Salute.AuthKey)
	}
}
