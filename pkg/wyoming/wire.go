// Package wyoming implements the Wyoming voice-assistant event protocol.
//
// Every event on the wire is a single JSON header line terminated by '\n',
// optionally followed by data_length bytes of JSON that are merged into the
// header's data object, and then payload_length bytes of binary payload:
//
//	{"type":"audio-chunk","data_length":42,"payload_length":2048,"version":"1.5.3"}\n
//	{"rate":16000,"width":2,"channels":1}
//	<2048 bytes of PCM>
//
// [ReadRaw] and [WriteRaw] deal with that framing. [Decode] and [Encode] map
// framed events to the typed variants of [Event]. [Conn] combines both for a
// single connection.
package wyoming

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
)

// Version is the protocol version stamped on outgoing headers.
const Version = "1.5.3"

// Frame size limits. Headers longer than MaxHeaderBytes and sections larger
// than their limit are rejected with [ErrPayloadTooLarge].
const (
	MaxHeaderBytes  = 64 << 10
	MaxDataBytes    = 1 << 20
	MaxPayloadBytes = 64 << 20
)

// ErrPayloadTooLarge is returned when a frame announces a section larger than
// the configured limits.
var ErrPayloadTooLarge = errors.New("wyoming: frame section too large")

// Raw is a framed event before typed decoding.
type Raw struct {
	Type    string
	Data    map[string]json.RawMessage
	Payload []byte
}

type header struct {
	Type          string                     `json:"type"`
	Data          map[string]json.RawMessage `json:"data,omitempty"`
	DataLength    int                        `json:"data_length,omitempty"`
	PayloadLength int                        `json:"payload_length,omitempty"`
	Version       string                     `json:"version,omitempty"`
}

// ReadRaw reads one framed event from r. It returns io.EOF only when the
// stream ends cleanly between events.
func ReadRaw(r *bufio.Reader) (*Raw, error) {
	line, err := readLine(r)
	if err != nil {
		return nil, err
	}

	var h header
	if err := json.Unmarshal(line, &h); err != nil {
		return nil, fmt.Errorf("wyoming: decode header: %w", err)
	}
	if h.Type == "" {
		return nil, errors.New("wyoming: decode header: missing event type")
	}
	if h.DataLength < 0 || h.PayloadLength < 0 {
		return nil, fmt.Errorf("wyoming: decode header: negative section length")
	}
	if h.DataLength > MaxDataBytes {
		return nil, fmt.Errorf("%w: data_length %d", ErrPayloadTooLarge, h.DataLength)
	}
	if h.PayloadLength > MaxPayloadBytes {
		return nil, fmt.Errorf("%w: payload_length %d", ErrPayloadTooLarge, h.PayloadLength)
	}

	raw := &Raw{Type: h.Type, Data: h.Data}

	if h.DataLength > 0 {
		buf := make([]byte, h.DataLength)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("wyoming: read data: %w", unexpected(err))
		}
		var extra map[string]json.RawMessage
		if err := json.Unmarshal(buf, &extra); err != nil {
			return nil, fmt.Errorf("wyoming: decode data: %w", err)
		}
		if raw.Data == nil {
			raw.Data = extra
		} else {
			maps.Copy(raw.Data, extra)
		}
	}

	if h.PayloadLength > 0 {
		raw.Payload = make([]byte, h.PayloadLength)
		if _, err := io.ReadFull(r, raw.Payload); err != nil {
			return nil, fmt.Errorf("wyoming: read payload: %w", unexpected(err))
		}
	}
	return raw, nil
}

// WriteRaw writes one framed event to w. Data is sent as a separate section
// after the header line, never inline.
func WriteRaw(w io.Writer, raw *Raw) error {
	var data []byte
	if len(raw.Data) > 0 {
		var err error
		data, err = json.Marshal(raw.Data)
		if err != nil {
			return fmt.Errorf("wyoming: encode data: %w", err)
		}
	}

	h := header{
		Type:          raw.Type,
		DataLength:    len(data),
		PayloadLength: len(raw.Payload),
		Version:       Version,
	}
	line, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("wyoming: encode header: %w", err)
	}

	// One write per event so concurrent readers never see a torn frame.
	buf := make([]byte, 0, len(line)+1+len(data)+len(raw.Payload))
	buf = append(buf, line...)
	buf = append(buf, '\n')
	buf = append(buf, data...)
	buf = append(buf, raw.Payload...)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("wyoming: write %s: %w", raw.Type, err)
	}
	return nil
}

func readLine(r *bufio.Reader) ([]byte, error) {
	var line []byte
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) && len(line) > 0 {
				return nil, fmt.Errorf("wyoming: read header: %w", io.ErrUnexpectedEOF)
			}
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("wyoming: read header: %w", err)
		}
		line = append(line, chunk...)
		if len(line) > MaxHeaderBytes {
			return nil, fmt.Errorf("%w: header exceeds %d bytes", ErrPayloadTooLarge, MaxHeaderBytes)
		}
		if !isPrefix {
			break
		}
	}
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, errors.New("wyoming: read header: empty line")
	}
	return line, nil
}

func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
