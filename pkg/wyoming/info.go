package wyoming

// Attribution credits the author of a program, model or voice.
type Attribution struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// AsrModel is one recognition model offered by an [AsrProgram].
type AsrModel struct {
	Name        string      `json:"name"`
	Attribution Attribution `json:"attribution"`
	Installed   bool        `json:"installed"`
	Description string      `json:"description,omitempty"`
	Version     string      `json:"version,omitempty"`
	Languages   []string    `json:"languages"`
}

// AsrProgram is a speech-to-text service.
type AsrProgram struct {
	Name        string      `json:"name"`
	Attribution Attribution `json:"attribution"`
	Installed   bool        `json:"installed"`
	Description string      `json:"description,omitempty"`
	Version     string      `json:"version,omitempty"`
	Models      []AsrModel  `json:"models"`
}

// TtsVoiceSpeaker is a named speaker within a multi-speaker voice.
type TtsVoiceSpeaker struct {
	Name string `json:"name"`
}

// TtsVoice is one synthesis voice offered by a [TtsProgram].
type TtsVoice struct {
	Name        string            `json:"name"`
	Attribution Attribution       `json:"attribution"`
	Installed   bool              `json:"installed"`
	Description string            `json:"description,omitempty"`
	Version     string            `json:"version,omitempty"`
	Languages   []string          `json:"languages"`
	Speakers    []TtsVoiceSpeaker `json:"speakers,omitempty"`
}

// TtsProgram is a text-to-speech service.
type TtsProgram struct {
	Name        string      `json:"name"`
	Attribution Attribution `json:"attribution"`
	Installed   bool        `json:"installed"`
	Description string      `json:"description,omitempty"`
	Version     string      `json:"version,omitempty"`
	Voices      []TtsVoice  `json:"voices"`
}

// Info answers [Describe] with the server's capabilities. Only speech
// services are modelled; the other service lists are always sent empty.
type Info struct {
	Asr    []AsrProgram `json:"asr"`
	Tts    []TtsProgram `json:"tts"`
	Handle []struct{}   `json:"handle"`
	Intent []struct{}   `json:"intent"`
	Wake   []struct{}   `json:"wake"`
}

// NewInfo builds a capability record advertising the given programs.
func NewInfo(asr []AsrProgram, tts []TtsProgram) Info {
	return Info{
		Asr:    asr,
		Tts:    tts,
		Handle: []struct{}{},
		Intent: []struct{}{},
		Wake:   []struct{}{},
	}
}
