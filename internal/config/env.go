package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SALUTEGW_"

// applyEnvOverrides replaces config values with SALUTEGW_* environment
// variables when set. Unparseable values are logged and ignored.
func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.Server.ListenURI, "LISTEN_URI")
	overrideString(&cfg.Server.AdminAddr, "ADMIN_ADDR")
	overrideLogLevel(&cfg.Server.LogLevel, "LOG_LEVEL")

	overrideString(&cfg.Salute.AuthKey, "AUTH_KEY")
	overrideString(&cfg.Salute.AuthURL, "AUTH_URL")
	overrideString(&cfg.Salute.Scope, "SCOPE")
	overrideString(&cfg.Salute.ServiceURL, "SERVICE_URL")
	overrideString(&cfg.Salute.Model, "MODEL")
	overrideString(&cfg.Salute.CACertFile, "CA_CERT_FILE")
	overrideDuration(&cfg.Salute.RequestTimeout, "REQUEST_TIMEOUT")
	overrideInt(&cfg.Salute.Breaker.MaxFailures, "BREAKER_MAX_FAILURES")
	overrideDuration(&cfg.Salute.Breaker.ResetTimeout, "BREAKER_RESET_TIMEOUT")

	overrideString(&cfg.Gateway.Language, "LANGUAGE")
	overrideString(&cfg.Gateway.Voice, "VOICE")
	overrideInt(&cfg.Gateway.FrameSamples, "FRAME_SAMPLES")
	overrideInt(&cfg.Gateway.MaxAudioBytes, "MAX_AUDIO_BYTES")
	overrideBool(&cfg.Gateway.ReportErrors, "REPORT_ERRORS")
	overrideString(&cfg.Gateway.AudioDumpDir, "AUDIO_DUMP_DIR")

	overrideString(&cfg.Journal.PostgresDSN, "POSTGRES_DSN")
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

func overrideString(target *string, key string) {
	if v, ok := lookup(key); ok {
		*target = v
	}
}

func overrideLogLevel(target *LogLevel, key string) {
	if v, ok := lookup(key); ok {
		*target = LogLevel(strings.ToLower(v))
	}
}

func overrideInt(target *int, key string) {
	if v, ok := lookup(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("config: ignoring invalid integer override", "env", EnvPrefix+key, "err", err)
			return
		}
		*target = n
	}
}

func overrideBool(target *bool, key string) {
	if v, ok := lookup(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			slog.Warn("config: ignoring invalid boolean override", "env", EnvPrefix+key, "err", err)
			return
		}
		*target = b
	}
}

func overrideDuration(target *time.Duration, key string) {
	if v, ok := lookup(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("config: ignoring invalid duration override", "env", EnvPrefix+key, "err", err)
			return
		}
		*target = d
	}
}
