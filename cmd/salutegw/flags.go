package main

import (
	"flag"

	"github.com/MrWong99/salutespeech-gateway/internal/config"
)

// flagOverrides holds the command-line settings that take precedence over the
// config file and the environment. Only flags the user actually set are
// applied.
type flagOverrides struct {
	fs *flag.FlagSet

	authKey    string
	listenURI  string
	authURL    string
	serviceURL string
	model      string
	voice      string
	language   string
	dumpDir    string
	logLevel   string
}

func newFlagOverrides(fs *flag.FlagSet) *flagOverrides {
	o := &flagOverrides{fs: fs}
	fs.StringVar(&o.authKey, "auth-key", "", "SberDevices authorization key (prefer SALUTEGW_AUTH_KEY)")
	fs.StringVar(&o.listenURI, "listen-uri", "", "Wyoming listen URI, like tcp://0.0.0.0:9999")
	fs.StringVar(&o.authURL, "auth-url", "", "SberDevices token endpoint")
	fs.StringVar(&o.serviceURL, "service-url", "", "SaluteSpeech REST base URL")
	fs.StringVar(&o.model, "model", "", "recognition model: general, media, ivr, callcenter")
	fs.StringVar(&o.voice, "voice", "", "default synthesis voice, like Ost_24000")
	fs.StringVar(&o.language, "language", "", "default language, like ru-RU")
	fs.StringVar(&o.dumpDir, "dump-dir", "", "directory that receives a WAV file per turn")
	fs.StringVar(&o.logLevel, "log-level", "", "debug, info, warn or error")
	return o
}

// apply implements [config.Override].
func (o *flagOverrides) apply(cfg *config.Config) {
	o.fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "auth-key":
			cfg.Salute.AuthKey = o.authKey
		case "listen-uri":
			cfg.Server.ListenURI = o.listenURI
		case "auth-url":
			cfg.Salute.AuthURL = o.authURL
		case "service-url":
			cfg.Salute.ServiceURL = o.serviceURL
		case "model":
			cfg.Salute.Model = o.model
		case "voice":
			cfg.Gateway.Voice = o.voice
		case "language":
			cfg.Gateway.Language = o.language
		case "dump-dir":
			cfg.Gateway.AudioDumpDir = o.dumpDir
		case "log-level":
			cfg.Server.LogLevel = config.LogLevel(o.logLevel)
		}
	})
}
