package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	VoiceEnabledChanged bool
	VoiceEnabled        bool

	WakePhraseChanged bool
	NewWakePhrase     string

	SpeechChanged bool
	NewSpeech     SpeechConfig

	// RestartRequired lists changed settings that only take effect after a
	// restart, by YAML path.
	RestartRequired []string
}

// Empty reports whether d carries no change at all.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.VoiceEnabledChanged && !d.WakePhraseChanged &&
		!d.SpeechChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Voice.Enabled != new.Voice.Enabled {
		d.VoiceEnabledChanged = true
		d.VoiceEnabled = new.Voice.Enabled
	}
	if old.Voice.WakePhrase != new.Voice.WakePhrase {
		d.WakePhraseChanged = true
		d.NewWakePhrase = new.Voice.WakePhrase
	}
	if old.Speech.Rate != new.Speech.Rate || old.Speech.Pitch != new.Speech.Pitch {
		d.SpeechChanged = true
		d.NewSpeech = new.Speech
	}

	restart := func(path string, changed bool) {
		if changed {
			d.RestartRequired = append(d.RestartRequired, path)
		}
	}
	restart("server.listen_addr", old.Server.ListenAddr != new.Server.ListenAddr)
	restart("providers", !providersEqual(old.Providers, new.Providers))
	restart("voice.language", old.Voice.Language != new.Voice.Language)
	restart("speech.voice_id", old.Speech.VoiceID != new.Speech.VoiceID)
	restart("classifier", old.Classifier != new.Classifier)
	restart("stores", old.Stores != new.Stores)
	restart("reminders", old.Reminders != new.Reminders)

	return d
}

func providersEqual(a, b ProvidersConfig) bool {
	if !entryEqual(a.LLM, b.LLM) || !entryEqual(a.STT, b.STT) || !entryEqual(a.TTS, b.TTS) {
		return false
	}
	return entriesEqual(a.LLMFallbacks, b.LLMFallbacks) &&
		entriesEqual(a.STTFallbacks, b.STTFallbacks) &&
		entriesEqual(a.TTSFallbacks, b.TTSFallbacks)
}

func entriesEqual(a, b []ProviderEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !entryEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// entryEqual compares the identifying fields of two entries. Options are
// not compared.
func entryEqual(a, b ProviderEntry) bool {
	return a.Name == b.Name && a.APIKey == b.APIKey && a.BaseURL == b.BaseURL && a.Model == b.Model
}
