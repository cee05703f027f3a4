package gateway

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/MrWong99/salutespeech-gateway/pkg/audio"
)

// dumpAudio writes pcm as a WAV file into dir and returns its path. Files are
// named <session>-<turn>-<kind>.wav and are never removed by the gateway.
func dumpAudio(dir, sessionID string, turn int, kind string, pcm []byte, rate, width, channels int) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("gateway: dump audio: %w", err)
	}
	name := filepath.Join(dir, fmt.Sprintf("%s-%04d-%s.wav", sessionID, turn, kind))
	if err := os.WriteFile(name, audio.EncodeWAV(pcm, rate, width, channels), 0o644); err != nil {
		return "", fmt.Errorf("gateway: dump audio: %w", err)
	}
	return name, nil
}
