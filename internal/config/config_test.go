package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/salutespeech-gateway/internal/config"
)

const validYAML = `
server:
  listen_uri: tcp://127.0.0.1:10300
  admin_addr: ":9191"
  log_level: info
salute:
  auth_key: dGVzdDp0ZXN0
  model: media
  request_timeout: 15s
  breaker:
    max_failures: 3
    reset_timeout: 1m
gateway:
  language: kz-KZ
  voice: May_24000
  frame_samples: 512
  max_audio_bytes: 1048576
  report_errors: true
  audio_dump_dir: /tmp/salutegw
journal:
  postgres_dsn: postgres://localhost/salutegw
`

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.ListenURI != "tcp://127.0.0.1:10300" || cfg.Server.AdminAddr != ":9191" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level: got %q, want %q", cfg.Server.LogLevel, config.LogInfo)
	}
	if cfg.Salute.Model != "media" || cfg.Salute.RequestTimeout != 15*time.Second {
		t.Errorf("salute = %+v", cfg.Salute)
	}
	if cfg.Salute.Breaker.MaxFailures != 3 || cfg.Salute.Breaker.ResetTimeout != time.Minute {
		t.Errorf("breaker = %+v", cfg.Salute.Breaker)
	}
	want := config.GatewayConfig{
		Language:      "kz-KZ",
		Voice:         "May_24000",
		FrameSamples:  512,
		MaxAudioBytes: 1 << 20,
		ReportErrors:  true,
		AudioDumpDir:  "/tmp/salutegw",
	}
	if cfg.Gateway != want {
		t.Errorf("gateway: got %+v, want %+v", cfg.Gateway, want)
	}
	if cfg.Journal.PostgresDSN != "postgres://localhost/salutegw" {
		t.Errorf("journal = %+v", cfg.Journal)
	}
}

func TestLoadFromReader_DefaultsFillGaps(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader("salute:\n  auth_key: k\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	def := config.Default()
	if cfg.Server.ListenURI != "tcp://0.0.0.0:9999" {
		t.Errorf("listen_uri default = %q, want tcp://0.0.0.0:9999", cfg.Server.ListenURI)
	}
	if cfg.Server != def.Server {
		t.Errorf("server: got %+v, want defaults %+v", cfg.Server, def.Server)
	}
	if cfg.Gateway != def.Gateway {
		t.Errorf("gateway: got %+v, want defaults %+v", cfg.Gateway, def.Gateway)
	}
	if cfg.Salute.AuthURL != def.Salute.AuthURL || cfg.Salute.Scope != "SALUTE_SPEECH_PERS" {
		t.Errorf("salute = %+v", cfg.Salute)
	}
	if cfg.Salute.RequestTimeout != 0 {
		t.Errorf("request_timeout default = %s, want 0", cfg.Salute.RequestTimeout)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader("salute:\n  auth_key: k\n  secret: x\n"))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestLogLevel_IsValid(t *testing.T) {
	t.Parallel()
	for _, l := range []config.LogLevel{config.LogDebug, config.LogInfo, config.LogWarn, config.LogError} {
		if !l.IsValid() {
			t.Errorf("%q should be valid", l)
		}
	}
	if config.LogLevel("trace").IsValid() {
		t.Error("trace should be invalid")
	}
}
