package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MrWong99/salutespeech-gateway/internal/journal"
	"github.com/MrWong99/salutespeech-gateway/internal/observe"
	"github.com/MrWong99/salutespeech-gateway/pkg/audio"
	"github.com/MrWong99/salutespeech-gateway/pkg/wyoming"
)

// State is the position of a session in its turn cycle.
type State int

const (
	// StateIdle means no turn is in progress. The audio buffer is empty.
	StateIdle State = iota

	// StateReceiving means audio for a recognition turn is being buffered.
	StateReceiving

	// StateRecognizing means the buffered audio is being transcribed.
	StateRecognizing

	// StateSynthesizing means a synthesis request is being served.
	StateSynthesizing
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReceiving:
		return "receiving"
	case StateRecognizing:
		return "recognizing"
	case StateSynthesizing:
		return "synthesizing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Error codes carried by error events when Settings.ReportErrors is on.
const (
	codeRecognizeFailed  = "recognize-failed"
	codeSynthesizeFailed = "synthesize-failed"
)

// Session is the state of one client connection. It is owned by the single
// goroutine running [Handler.Serve] and is never shared.
type Session struct {
	h    *Handler
	id   string
	conn *wyoming.Conn
	log  *slog.Logger

	settings Settings
	language string
	state    State
	buf      []byte
	conv     *audio.FormatConverter
	overflow bool
	turns    int
}

func newSession(h *Handler, id string, conn *wyoming.Conn) *Session {
	s := &Session{
		h:    h,
		id:   id,
		conn: conn,
		log:  slog.With("session_id", id),
	}
	s.reset()
	return s
}

// reset returns the session to Idle with the current handler defaults.
func (s *Session) reset() {
	s.settings = s.h.Settings()
	s.language = s.settings.Language
	s.state = StateIdle
	s.buf = nil
	s.conv = &audio.FormatConverter{Target: audio.Canonical}
	s.overflow = false
}

func (s *Session) run(ctx context.Context) error {
	s.log.Debug("session opened")
	defer s.log.Debug("session closed", "turns", s.turns)

	for {
		ev, err := s.conn.Read()
		if err != nil {
			return err
		}
		if err := s.handle(ctx, ev); err != nil {
			return err
		}
	}
}

// handle applies one inbound event. A returned error ends the session; remote
// failures are absorbed and never surface here.
func (s *Session) handle(ctx context.Context, ev wyoming.Event) error {
	switch ev := ev.(type) {
	case wyoming.Describe:
		s.log.Debug("sending info")
		return s.conn.Write(s.h.info)
	case wyoming.Transcribe:
		if ev.Language != "" {
			s.language = ev.Language
			s.log.Debug("language set", "language", ev.Language)
		}
		return nil
	case wyoming.AudioStart:
		if s.state == StateIdle {
			s.state = StateReceiving
		}
		return nil
	case wyoming.AudioChunk:
		s.appendAudio(ctx, ev)
		return nil
	case wyoming.AudioStop:
		return s.recognize(ctx)
	case wyoming.Synthesize:
		return s.synthesize(ctx, ev)
	case wyoming.Ping:
		return s.conn.Write(wyoming.Pong{Text: ev.Text})
	case wyoming.Info, wyoming.Transcript, wyoming.Pong, wyoming.Error, wyoming.Unknown:
		s.log.Debug("ignoring event", "type", ev.Type())
		return nil
	default:
		s.log.Debug("ignoring event", "type", ev.Type())
		return nil
	}
}

func (s *Session) appendAudio(ctx context.Context, ev wyoming.AudioChunk) {
	if s.state == StateIdle {
		s.log.Debug("receiving audio")
		s.state = StateReceiving
	}
	frame := s.conv.Convert(audio.AudioFrame{
		Data:       ev.Audio,
		SampleRate: ev.Rate,
		Width:      ev.Width,
		Channels:   ev.Channels,
	})
	if limit := s.settings.MaxAudioBytes; limit > 0 && len(s.buf)+len(frame.Data) > limit {
		if !s.overflow {
			s.overflow = true
			s.log.Warn("audio buffer limit reached, dropping further chunks", "limit", limit)
		}
		return
	}
	s.buf = append(s.buf, frame.Data...)
	s.h.metrics.RecordAudio(ctx, "in", len(frame.Data))
}

// recognize transcribes the buffered audio and always emits exactly one
// transcript, empty on failure.
func (s *Session) recognize(ctx context.Context) error {
	s.state = StateRecognizing
	s.turns++
	defer s.reset()

	ctx, span := observe.StartTurn(ctx, "recognize", s.id,
		attribute.String("language", s.language),
		attribute.Int("audio.bytes", len(s.buf)),
	)
	log := observe.WithTrace(ctx, s.log)
	s.dump("in", s.buf, audio.CanonicalRate, audio.CanonicalWidth, audio.CanonicalChannels)

	release, err := s.h.gate.Acquire(ctx)
	if err != nil {
		observe.EndSpan(span, err)
		return err
	}
	start := time.Now()
	text, rerr := s.h.recognizer.Recognize(ctx, s.buf, s.language)
	elapsed := time.Since(start)
	release()

	s.h.metrics.RecordTurn(ctx, s.h.provider, observe.KindSTT, elapsed, rerr)
	if rerr != nil {
		text = ""
		log.Warn("recognition failed", "language", s.language, "err", rerr)
		if err := s.reportError(codeRecognizeFailed, rerr); err != nil {
			observe.EndSpan(span, err)
			return err
		}
	} else {
		log.Info("recognition completed", "seconds", fmt.Sprintf("%.2f", elapsed.Seconds()))
	}
	observe.EndSpan(span, rerr)

	s.record(ctx, journal.Turn{
		Kind:       journal.KindRecognize,
		Language:   s.language,
		Text:       text,
		AudioBytes: len(s.buf),
		Duration:   elapsed,
		Err:        errString(rerr),
	})
	return s.conn.Write(wyoming.Transcript{Text: text})
}

// synthesize renders ev.Text and streams it back as start, chunks, stop. An
// empty or failed synthesis still sends start and stop with no chunks.
func (s *Session) synthesize(ctx context.Context, ev wyoming.Synthesize) error {
	prev := s.state
	s.state = StateSynthesizing
	s.turns++
	defer func() { s.state = prev }()

	// Voice overrides last for this request only and never touch the
	// recognition language of a turn in progress.
	language, voice := s.settings.Language, s.settings.Voice
	if v := ev.Voice; v != nil {
		if v.Name != "" {
			voice = v.Name
		}
		if v.Language != "" {
			language = v.Language
		}
	}

	ctx, span := observe.StartTurn(ctx, "synthesize", s.id,
		attribute.String("language", language),
		attribute.String("voice", voice),
	)
	log := observe.WithTrace(ctx, s.log)

	release, err := s.h.gate.Acquire(ctx)
	if err != nil {
		observe.EndSpan(span, err)
		return err
	}
	start := time.Now()
	pcm, serr := s.h.synthesizer.Synthesize(ctx, ev.Text, language, voice)
	elapsed := time.Since(start)
	release()

	s.h.metrics.RecordTurn(ctx, s.h.provider, observe.KindTTS, elapsed, serr)
	if serr != nil {
		pcm = nil
		log.Warn("synthesis failed", "voice", voice, "language", language, "err", serr)
		if err := s.reportError(codeSynthesizeFailed, serr); err != nil {
			observe.EndSpan(span, err)
			return err
		}
	}
	observe.EndSpan(span, serr)

	f := s.h.synthesizer.Format()
	s.dump("out", pcm, f.SampleRate, f.Width, f.Channels)
	s.record(ctx, journal.Turn{
		Kind:       journal.KindSynthesize,
		Language:   language,
		Voice:      voice,
		Text:       ev.Text,
		AudioBytes: len(pcm),
		Duration:   elapsed,
		Err:        errString(serr),
	})

	if err := s.conn.Write(wyoming.AudioStart{Rate: f.SampleRate, Width: f.Width, Channels: f.Channels}); err != nil {
		return err
	}
	for chunk := range audio.SplitFrames(pcm, s.settings.FrameSamples, f.Width*f.Channels).All() {
		err := s.conn.Write(wyoming.AudioChunk{
			Rate:     f.SampleRate,
			Width:    f.Width,
			Channels: f.Channels,
			Audio:    chunk,
		})
		if err != nil {
			return err
		}
	}
	s.h.metrics.RecordAudio(ctx, "out", len(pcm))
	return s.conn.Write(wyoming.AudioStop{})
}

func (s *Session) reportError(code string, cause error) error {
	if !s.settings.ReportErrors {
		return nil
	}
	return s.conn.Write(wyoming.Error{Text: cause.Error(), Code: code})
}

func (s *Session) dump(kind string, pcm []byte, rate, width, channels int) {
	if s.settings.DumpDir == "" {
		return
	}
	path, err := dumpAudio(s.settings.DumpDir, s.id, s.turns, kind, pcm, rate, width, channels)
	if err != nil {
		s.log.Warn("audio dump failed", "err", err)
		return
	}
	s.log.Debug("audio dumped", "path", path)
}

func (s *Session) record(ctx context.Context, turn journal.Turn) {
	if s.h.journal == nil {
		return
	}
	turn.SessionID = s.id
	turn.At = time.Now().UTC()
	if err := s.h.journal.Record(context.WithoutCancel(ctx), turn); err != nil {
		s.log.Warn("journal write failed", "err", err)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
