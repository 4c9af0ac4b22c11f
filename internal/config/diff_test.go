package config_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/vesper/internal/config"
)

func baseConfig() *config.Config {
	cfg := &config.Config{
		Providers: config.ProvidersConfig{
			LLM: config.ProviderEntry{Name: "openai", Model: "gpt-4o-mini"},
			STT: config.ProviderEntry{Name: "deepgram"},
		},
	}
	config.ApplyDefaults(cfg)
	return cfg
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	d := config.Diff(baseConfig(), baseConfig())
	if !d.Empty() {
		t.Errorf("Diff of identical configs = %+v", d)
	}
}

func TestDiff_HotReloadable(t *testing.T) {
	t.Parallel()
	old, new := baseConfig(), baseConfig()
	new.Server.LogLevel = config.LogDebug
	new.Voice.Enabled = true
	new.Voice.WakePhrase = "hey vesper"
	new.Speech.Rate = 1.2

	d := config.Diff(old, new)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("log level diff = %v/%q", d.LogLevelChanged, d.NewLogLevel)
	}
	if !d.VoiceEnabledChanged || !d.VoiceEnabled {
		t.Errorf("voice diff = %v/%v", d.VoiceEnabledChanged, d.VoiceEnabled)
	}
	if !d.WakePhraseChanged || d.NewWakePhrase != "hey vesper" {
		t.Errorf("wake phrase diff = %v/%q", d.WakePhraseChanged, d.NewWakePhrase)
	}
	if !d.SpeechChanged || d.NewSpeech.Rate != 1.2 || d.NewSpeech.Pitch != config.DefaultSpeechPitch {
		t.Errorf("speech diff = %v/%+v", d.SpeechChanged, d.NewSpeech)
	}
	if len(d.RestartRequired) != 0 {
		t.Errorf("RestartRequired = %v, want none", d.RestartRequired)
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"listen addr", func(c *config.Config) { c.Server.ListenAddr = ":1" }, "server.listen_addr"},
		{"llm model", func(c *config.Config) { c.Providers.LLM.Model = "gpt-4o" }, "providers"},
		{"added fallback", func(c *config.Config) {
			c.Providers.LLMFallbacks = []config.ProviderEntry{{Name: "ollama"}}
		}, "providers"},
		{"language", func(c *config.Config) { c.Voice.Language = "de-DE" }, "voice.language"},
		{"voice id", func(c *config.Config) { c.Speech.VoiceID = "adam" }, "speech.voice_id"},
		{"classifier", func(c *config.Config) { c.Classifier.MaxTokens = 100 }, "classifier"},
		{"stores", func(c *config.Config) { c.Stores.SeedDemo = true }, "stores"},
		{"reminders", func(c *config.Config) { c.Reminders.Enabled = true }, "reminders"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			old, new := baseConfig(), baseConfig()
			tt.mutate(new)
			d := config.Diff(old, new)
			if !slices.Equal(d.RestartRequired, []string{tt.want}) {
				t.Errorf("RestartRequired = %v, want [%s]", d.RestartRequired, tt.want)
			}
			if d.Empty() {
				t.Error("Empty() = true")
			}
		})
	}
}

func TestDiff_ProviderOptionsIgnored(t *testing.T) {
	t.Parallel()
	old, new := baseConfig(), baseConfig()
	new.Providers.LLM.Options = map[string]any{"organization": "acme"}
	if d := config.Diff(old, new); !d.Empty() {
		t.Errorf("Diff = %+v, want empty", d)
	}
}
