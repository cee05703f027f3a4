package wyoming

import (
	"encoding/json"
	"fmt"
)

// Event type names as they appear in the "type" header field.
const (
	TypeDescribe   = "describe"
	TypeInfo       = "info"
	TypeTranscribe = "transcribe"
	TypeTranscript = "transcript"
	TypeAudioStart = "audio-start"
	TypeAudioChunk = "audio-chunk"
	TypeAudioStop  = "audio-stop"
	TypeSynthesize = "synthesize"
	TypePing       = "ping"
	TypePong       = "pong"
	TypeError      = "error"
)

// Event is one typed protocol message. The set of implementations is closed:
// [Describe], [Info], [Transcribe], [Transcript], [AudioStart], [AudioChunk],
// [AudioStop], [Synthesize], [Ping], [Pong], [Error] and [Unknown].
type Event interface {
	// Type returns the wire type name.
	Type() string
	isEvent()
}

// Describe asks the server for its capabilities.
type Describe struct{}

// Transcribe configures the next recognition turn.
type Transcribe struct {
	Name     string `json:"name,omitempty"`
	Language string `json:"language,omitempty"`
}

// Transcript carries the recognition result of one turn.
type Transcript struct {
	Text string `json:"text"`
}

// AudioStart opens an audio stream.
type AudioStart struct {
	Rate      int    `json:"rate"`
	Width     int    `json:"width"`
	Channels  int    `json:"channels"`
	Timestamp *int64 `json:"timestamp,omitempty"`
}

// AudioChunk carries PCM audio in its payload.
type AudioChunk struct {
	Rate      int    `json:"rate"`
	Width     int    `json:"width"`
	Channels  int    `json:"channels"`
	Timestamp *int64 `json:"timestamp,omitempty"`

	// Audio is the event payload, not part of the JSON data.
	Audio []byte `json:"-"`
}

// AudioStop closes an audio stream.
type AudioStop struct {
	Timestamp *int64 `json:"timestamp,omitempty"`
}

// SynthesizeVoice selects the voice for one synthesis request.
type SynthesizeVoice struct {
	Name     string `json:"name,omitempty"`
	Language string `json:"language,omitempty"`
	Speaker  string `json:"speaker,omitempty"`
}

// Synthesize requests text-to-speech.
type Synthesize struct {
	Text  string           `json:"text"`
	Voice *SynthesizeVoice `json:"voice,omitempty"`
}

// Ping asks the peer for a [Pong].
type Ping struct {
	Text string `json:"text,omitempty"`
}

// Pong answers a [Ping] with the same text.
type Pong struct {
	Text string `json:"text,omitempty"`
}

// Error reports a failure to the peer.
type Error struct {
	Text string `json:"text"`
	Code string `json:"code,omitempty"`
}

// Unknown wraps any event whose type this package does not model.
type Unknown struct {
	Raw *Raw
}

func (Describe) Type() string   { return TypeDescribe }
func (Info) Type() string       { return TypeInfo }
func (Transcribe) Type() string { return TypeTranscribe }
func (Transcript) Type() string { return TypeTranscript }
func (AudioStart) Type() string { return TypeAudioStart }
func (AudioChunk) Type() string { return TypeAudioChunk }
func (AudioStop) Type() string  { return TypeAudioStop }
func (Synthesize) Type() string { return TypeSynthesize }
func (Ping) Type() string       { return TypePing }
func (Pong) Type() string       { return TypePong }
func (Error) Type() string      { return TypeError }

// Type returns the wire type of the wrapped event.
func (u Unknown) Type() string {
	if u.Raw == nil {
		return ""
	}
	return u.Raw.Type
}

func (Describe) isEvent()   {}
func (Info) isEvent()       {}
func (Transcribe) isEvent() {}
func (Transcript) isEvent() {}
func (AudioStart) isEvent() {}
func (AudioChunk) isEvent() {}
func (AudioStop) isEvent()  {}
func (Synthesize) isEvent() {}
func (Ping) isEvent()       {}
func (Pong) isEvent()       {}
func (Error) isEvent()      {}
func (Unknown) isEvent()    {}

// Decode maps a framed event to its typed variant. Unrecognised types decode
// to [Unknown] without error; malformed data for a known type is an error.
func Decode(raw *Raw) (Event, error) {
	switch raw.Type {
	case TypeDescribe:
		return Describe{}, nil
	case TypeInfo:
		return decodeData[Info](raw)
	case TypeTranscribe:
		return decodeData[Transcribe](raw)
	case TypeTranscript:
		return decodeData[Transcript](raw)
	case TypeAudioStart:
		return decodeData[AudioStart](raw)
	case TypeAudioChunk:
		ev, err := decodeData[AudioChunk](raw)
		if err != nil {
			return nil, err
		}
		ev.Audio = raw.Payload
		return ev, nil
	case TypeAudioStop:
		return decodeData[AudioStop](raw)
	case TypeSynthesize:
		return decodeData[Synthesize](raw)
	case TypePing:
		return decodeData[Ping](raw)
	case TypePong:
		return decodeData[Pong](raw)
	case TypeError:
		return decodeData[Error](raw)
	default:
		return Unknown{Raw: raw}, nil
	}
}

// Encode maps a typed event to its framed form.
func Encode(ev Event) (*Raw, error) {
	switch e := ev.(type) {
	case Unknown:
		if e.Raw == nil {
			return nil, fmt.Errorf("wyoming: encode: empty unknown event")
		}
		return e.Raw, nil
	case Describe:
		return &Raw{Type: TypeDescribe}, nil
	case AudioChunk:
		raw, err := encodeData(e)
		if err != nil {
			return nil, err
		}
		raw.Payload = e.Audio
		return raw, nil
	default:
		return encodeData(ev)
	}
}

func decodeData[T Event](raw *Raw) (T, error) {
	var v T
	if len(raw.Data) == 0 {
		return v, nil
	}
	b, err := json.Marshal(raw.Data)
	if err != nil {
		return v, fmt.Errorf("wyoming: decode %s: %w", raw.Type, err)
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return v, fmt.Errorf("wyoming: decode %s: %w", raw.Type, err)
	}
	return v, nil
}

func encodeData(ev Event) (*Raw, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("wyoming: encode %s: %w", ev.Type(), err)
	}
	var data map[string]json.RawMessage
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, fmt.Errorf("wyoming: encode %s: %w", ev.Type(), err)
	}
	return &Raw{Type: ev.Type(), Data: data}, nil
}
