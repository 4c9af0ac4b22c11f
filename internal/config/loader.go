package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "openrouter", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt": {"deepgram"},
	"tts": {"elevenlabs", "coqui"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. An empty document yields the all-defaults config.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Providers
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	errs = append(errs, validateFallbacks("llm", cfg.Providers.LLM, cfg.Providers.LLMFallbacks)...)
	errs = append(errs, validateFallbacks("stt", cfg.Providers.STT, cfg.Providers.STTFallbacks)...)
	errs = append(errs, validateFallbacks("tts", cfg.Providers.TTS, cfg.Providers.TTSFallbacks)...)

	if cfg.Providers.LLM.Name == "" {
		slog.Warn("providers.llm is not configured; commands will be classified by keyword rules only")
	}
	if cfg.Voice.Enabled && cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("voice.enabled requires providers.stt"))
	}
	if cfg.Providers.TTS.Name == "" {
		slog.Warn("providers.tts is not configured; replies will be shown but not spoken")
	}

	// Voice
	if cfg.Voice.PhoneticThreshold < 0 || cfg.Voice.PhoneticThreshold > 1 {
		errs = append(errs, fmt.Errorf("voice.phonetic_threshold %.2f is out of range [0, 1]", cfg.Voice.PhoneticThreshold))
	}
	for name, d := range map[string]float64{
		"voice.wake_cooldown":     cfg.Voice.WakeCooldown.Seconds(),
		"voice.restart_delay":     cfg.Voice.RestartDelay.Seconds(),
		"voice.no_speech_timeout": cfg.Voice.NoSpeechTimeout.Seconds(),
		"classifier.timeout":      cfg.Classifier.Timeout.Seconds(),
		"reminders.task_lead":     cfg.Reminders.TaskLead.Seconds(),
		"reminders.event_lead":    cfg.Reminders.EventLead.Seconds(),
		"level.interval":          cfg.Level.Interval.Seconds(),
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}

	// Speech
	if cfg.Speech.Rate != 0 && (cfg.Speech.Rate < 0.5 || cfg.Speech.Rate > 2.0) {
		errs = append(errs, fmt.Errorf("speech.rate %.2f is out of range [0.5, 2.0]", cfg.Speech.Rate))
	}
	if cfg.Speech.Pitch != 0 && (cfg.Speech.Pitch < 0.5 || cfg.Speech.Pitch > 2.0) {
		errs = append(errs, fmt.Errorf("speech.pitch %.2f is out of range [0.5, 2.0]", cfg.Speech.Pitch))
	}

	// Classifier
	if cfg.Classifier.Temperature < 0 || cfg.Classifier.Temperature > 2 {
		errs = append(errs, fmt.Errorf("classifier.temperature %.2f is out of range [0, 2]", cfg.Classifier.Temperature))
	}
	if cfg.Classifier.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("classifier.max_tokens %d must not be negative", cfg.Classifier.MaxTokens))
	}

	// Stores
	if cfg.Stores.PostgresDSN != "" && cfg.Stores.SeedDemo {
		slog.Warn("stores.seed_demo is ignored when stores.postgres_dsn is set")
	}

	// Level
	if cfg.Level.Gain < 0 {
		errs = append(errs, fmt.Errorf("level.gain %.2f must not be negative", cfg.Level.Gain))
	}

	return errors.Join(errs...)
}

// validateFallbacks checks that every fallback is named, unique, and only
// configured alongside a primary.
func validateFallbacks(kind string, primary ProviderEntry, fallbacks []ProviderEntry) []error {
	var errs []error
	if len(fallbacks) > 0 && primary.Name == "" {
		errs = append(errs, fmt.Errorf("providers.%s_fallbacks requires providers.%s", kind, kind))
	}
	seen := map[string]bool{primary.Name: true}
	for i, fb := range fallbacks {
		prefix := fmt.Sprintf("providers.%s_fallbacks[%d]", kind, i)
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		if seen[fb.Name] {
			errs = append(errs, fmt.Errorf("%s.name %q is listed more than once", prefix, fb.Name))
		}
		seen[fb.Name] = true
		validateProviderName(kind, fb.Name)
	}
	return errs
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
