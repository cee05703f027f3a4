package gateway

import (
	"github.com/MrWong99/salutespeech-gateway/pkg/provider/tts"
	"github.com/MrWong99/salutespeech-gateway/pkg/wyoming"
)

// Program metadata advertised in the capability record.
const (
	ProgramName = "Wyoming-SaluteSpeech Gateway"
	ModelName   = "SaluteSpeech"

	programAuthor = "Sergei Martynov"
	programURL    = "https://github.com/sergemart/wyoming-salutespeech-gateway/"
	modelOrg      = "SberDevices"
	modelURL      = "https://developers.sber.ru/docs/ru/salutespeech/overview"
)

// NewInfo builds the capability record for a gateway that recognizes the
// given languages and offers voices for synthesis. version is reported for
// both programs.
func NewInfo(version string, languages []string, voices []tts.VoiceProfile) wyoming.Info {
	program := wyoming.Attribution{Name: programAuthor, URL: programURL}
	attr := wyoming.Attribution{Name: modelOrg, URL: modelURL}

	ttsVoices := make([]wyoming.TtsVoice, 0, len(voices))
	for _, v := range voices {
		ttsVoices = append(ttsVoices, wyoming.TtsVoice{
			Name:        v.ID,
			Attribution: attr,
			Installed:   true,
			Description: v.Name,
			Version:     version,
			Languages:   []string{v.Language},
		})
	}

	asr := []wyoming.AsrProgram{{
		Name:        ProgramName,
		Attribution: program,
		Installed:   true,
		Description: "A gateway between a Wyoming protocol client and SberDevices SaluteSpeech STT/TTS cloud service.",
		Version:     version,
		Models: []wyoming.AsrModel{{
			Name:        ModelName,
			Attribution: attr,
			Installed:   true,
			Description: "SaluteSpeech STT/TTS model",
			Version:     version,
			Languages:   languages,
		}},
	}}
	ttsPrograms := []wyoming.TtsProgram{{
		Name:        ProgramName,
		Attribution: program,
		Installed:   true,
		Description: "SaluteSpeech speech synthesis",
		Version:     version,
		Voices:      ttsVoices,
	}}
	return wyoming.NewInfo(asr, ttsPrograms)
}
