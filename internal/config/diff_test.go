package config_test

import (
	"slices"
	"testing"
	"time"

	"github.com/MrWong99/salutespeech-gateway/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	d := config.Diff(config.Default(), config.Default())
	if !d.Empty() {
		t.Errorf("expected empty diff, got %+v", d)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old, new := config.Default(), config.Default()
	new.Server.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("diff = %+v", d)
	}
	if len(d.RestartRequired) != 0 {
		t.Errorf("log level must not require restart, got %v", d.RestartRequired)
	}
}

func TestDiff_GatewayChanged(t *testing.T) {
	t.Parallel()
	old, new := config.Default(), config.Default()
	new.Gateway.Voice = "Bys_24000"

	d := config.Diff(old, new)
	if !d.GatewayChanged {
		t.Error("GatewayChanged should be true")
	}
	if d.LogLevelChanged || len(d.RestartRequired) != 0 {
		t.Errorf("unexpected extra changes: %+v", d)
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	t.Parallel()
	old, new := config.Default(), config.Default()
	new.Server.ListenURI = "tcp://0.0.0.0:10400"
	new.Salute.RequestTimeout = 10 * time.Second
	new.Journal.PostgresDSN = "postgres://db/gw"

	d := config.Diff(old, new)
	want := []string{"server", "salute", "journal"}
	if !slices.Equal(d.RestartRequired, want) {
		t.Errorf("RestartRequired = %v, want %v", d.RestartRequired, want)
	}
	if d.Empty() {
		t.Error("diff should not be empty")
	}
}
