package main

import (
	"flag"
	"io"
	"testing"

	"github.com/MrWong99/salutespeech-gateway/internal/config"
)

func parseOverrides(t *testing.T, args ...string) *flagOverrides {
	t.Helper()
	fs := flag.NewFlagSet("salutegw", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	o := newFlagOverrides(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return o
}

func TestFlagOverrides_OnlySetFlagsApply(t *testing.T) {
	o := parseOverrides(t, "-voice", "May_24000", "-log-level", "debug", "-dump-dir", "/tmp/dumps")

	cfg := config.Default()
	cfg.Gateway.Language = "kz-KZ"
	o.apply(cfg)

	if cfg.Gateway.Voice != "May_24000" {
		t.Errorf("voice = %q", cfg.Gateway.Voice)
	}
	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("log level = %q", cfg.Server.LogLevel)
	}
	if cfg.Gateway.AudioDumpDir != "/tmp/dumps" {
		t.Errorf("dump dir = %q", cfg.Gateway.AudioDumpDir)
	}
	if cfg.Gateway.Language != "kz-KZ" {
		t.Errorf("unset -language flag overwrote language: %q", cfg.Gateway.Language)
	}
}

func TestFlagOverrides_ExplicitEmptyValueApplies(t *testing.T) {
	o := parseOverrides(t, "-dump-dir=")

	cfg := config.Default()
	cfg.Gateway.AudioDumpDir = "/var/dumps"
	o.apply(cfg)

	if cfg.Gateway.AudioDumpDir != "" {
		t.Errorf("dump dir = %q, want empty", cfg.Gateway.AudioDumpDir)
	}
}

func TestFlagOverrides_AllConnectionFlags(t *testing.T) {
	o := parseOverrides(t,
		"-auth-key", "key",
		"-listen-uri", "unix:///run/gw.sock",
		"-auth-url", "https://auth.example/oauth",
		"-service-url", "https://speech.example/rest/v1",
		"-model", "media",
	)
	cfg := config.Default()
	o.apply(cfg)

	s := cfg.Salute
	if s.AuthKey != "key" || s.AuthURL != "https://auth.example/oauth" ||
		s.ServiceURL != "https://speech.example/rest/v1" || s.Model != "media" {
		t.Errorf("salute = %+v", s)
	}
	if cfg.Server.ListenURI != "unix:///run/gw.sock" {
		t.Errorf("listen uri = %q", cfg.Server.ListenURI)
	}
}
