package salute

import "github.com/MrWong99/salutespeech-gateway/pkg/provider/tts"

// Languages lists the recognition languages SaluteSpeech accepts.
var Languages = []string{"ru-RU", "kz-KZ"}

// Voices is the SaluteSpeech synthesis catalogue for 24 kHz output.
var Voices = []tts.VoiceProfile{
	voice("Nec_24000", "Наталья", "ru-RU", "female"),
	voice("Bys_24000", "Борис", "ru-RU", "male"),
	voice("May_24000", "Марфа", "ru-RU", "female"),
	voice("Tur_24000", "Тарас", "ru-RU", "male"),
	voice("Ost_24000", "Александра", "ru-RU", "female"),
	voice("Pon_24000", "Сергей", "ru-RU", "male"),
	voice("Kin_24000", "Kira", "en-US", "female"),
}

func voice(id, name, lang, gender string) tts.VoiceProfile {
	return tts.VoiceProfile{
		ID:       id,
		Name:     name,
		Provider: "salute",
		Language: lang,
		Metadata: map[string]string{"gender": gender, "sample_rate": "24000"},
	}
}
