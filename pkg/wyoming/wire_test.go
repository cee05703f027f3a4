package wyoming_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/MrWong99/salutespeech-gateway/pkg/wyoming"
)

func TestReadRaw_InlineAndSeparateDataMerged(t *testing.T) {
	stream := `{"type":"audio-chunk","data":{"rate":22050},"data_length":26,"payload_length":4}` + "\n" +
		`{"width":2,"channels":1}  ` + "\x01\x02\x03\x04"
	// data_length covers the JSON object plus two spaces.
	r := bufio.NewReader(strings.NewReader(stream))

	raw, err := wyoming.ReadRaw(r)
	if err != nil {
		t.Fatalf("ReadRaw: %v", err)
	}
	if raw.Type != wyoming.TypeAudioChunk {
		t.Errorf("type = %q, want %q", raw.Type, wyoming.TypeAudioChunk)
	}
	for _, key := range []string{"rate", "width", "channels"} {
		if _, ok := raw.Data[key]; !ok {
			t.Errorf("data missing key %q", key)
		}
	}
	if !bytes.Equal(raw.Payload, []byte{1, 2, 3, 4}) {
		t.Errorf("payload = %v", raw.Payload)
	}

	if _, err := wyoming.ReadRaw(r); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF after last event, got %v", err)
	}
}

func TestReadRaw_HeaderOnly(t *testing.T) {
	r := bufio.NewReader(strings.NewReader(`{"type":"describe"}` + "\n"))
	raw, err := wyoming.ReadRaw(r)
	if err != nil {
		t.Fatalf("ReadRaw: %v", err)
	}
	if raw.Type != wyoming.TypeDescribe || len(raw.Data) != 0 || len(raw.Payload) != 0 {
		t.Errorf("unexpected raw event: %+v", raw)
	}
}

func TestReadRaw_Errors(t *testing.T) {
	tests := []struct {
		name    string
		stream  string
		wantErr error
	}{
		{name: "bad json", stream: "{not json}\n"},
		{name: "missing type", stream: `{"data":{}}` + "\n"},
		{name: "truncated payload", stream: `{"type":"audio-chunk","payload_length":10}` + "\n" + "abc", wantErr: io.ErrUnexpectedEOF},
		{name: "truncated data", stream: `{"type":"transcript","data_length":10}` + "\n" + `{"te`, wantErr: io.ErrUnexpectedEOF},
		{name: "payload too large", stream: `{"type":"audio-chunk","payload_length":999999999}` + "\n", wantErr: wyoming.ErrPayloadTooLarge},
		{name: "negative length", stream: `{"type":"audio-chunk","payload_length":-1}` + "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := wyoming.ReadRaw(bufio.NewReader(strings.NewReader(tt.stream)))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if errors.Is(err, io.EOF) {
				t.Errorf("malformed input must not look like a clean EOF: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestWriteRaw_Format(t *testing.T) {
	var buf bytes.Buffer
	raw := &wyoming.Raw{
		Type:    wyoming.TypeAudioChunk,
		Data:    map[string]json.RawMessage{"rate": json.RawMessage("24000")},
		Payload: []byte{9, 8},
	}
	if err := wyoming.WriteRaw(&buf, raw); err != nil {
		t.Fatalf("WriteRaw: %v", err)
	}

	line, rest, ok := bytes.Cut(buf.Bytes(), []byte("\n"))
	if !ok {
		t.Fatal("header line not terminated")
	}
	var h struct {
		Type          string `json:"type"`
		DataLength    int    `json:"data_length"`
		PayloadLength int    `json:"payload_length"`
		Version       string `json:"version"`
	}
	if err := json.Unmarshal(line, &h); err != nil {
		t.Fatalf("header is not JSON: %v", err)
	}
	if h.Type != wyoming.TypeAudioChunk || h.Version != wyoming.Version {
		t.Errorf("header = %+v", h)
	}
	if h.PayloadLength != 2 {
		t.Errorf("payload_length = %d, want 2", h.PayloadLength)
	}
	if string(rest[:h.DataLength]) != `{"rate":24000}` {
		t.Errorf("data section = %q", rest[:h.DataLength])
	}
	if !bytes.Equal(rest[h.DataLength:], []byte{9, 8}) {
		t.Errorf("payload section = %v", rest[h.DataLength:])
	}
}

func TestWriteRaw_ReadRaw_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	events := []*wyoming.Raw{
		{Type: "describe"},
		{Type: "transcript", Data: map[string]json.RawMessage{"text": json.RawMessage(`"привет"`)}},
		{Type: "audio-chunk", Data: map[string]json.RawMessage{"rate": json.RawMessage("16000")}, Payload: make([]byte, 300)},
	}
	for _, ev := range events {
		if err := wyoming.WriteRaw(&buf, ev); err != nil {
			t.Fatalf("WriteRaw(%s): %v", ev.Type, err)
		}
	}

	r := bufio.NewReader(&buf)
	for _, want := range events {
		got, err := wyoming.ReadRaw(r)
		if err != nil {
			t.Fatalf("ReadRaw: %v", err)
		}
		if got.Type != want.Type {
			t.Errorf("type = %q, want %q", got.Type, want.Type)
		}
		if len(got.Data) != len(want.Data) {
			t.Errorf("%s: data keys = %d, want %d", want.Type, len(got.Data), len(want.Data))
		}
		if len(got.Payload) != len(want.Payload) {
			t.Errorf("%s: payload = %d bytes, want %d", want.Type, len(got.Payload), len(want.Payload))
		}
	}
}
