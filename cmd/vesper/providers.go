package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/vesper/internal/app"
	"github.com/MrWong99/vesper/internal/config"
	"github.com/MrWong99/vesper/internal/observe"
	"github.com/MrWong99/vesper/internal/resilience"
	"github.com/MrWong99/vesper/pkg/provider/llm"
	"github.com/MrWong99/vesper/pkg/provider/llm/anyllm"
	"github.com/MrWong99/vesper/pkg/provider/llm/openai"
	"github.com/MrWong99/vesper/pkg/provider/stt"
	"github.com/MrWong99/vesper/pkg/provider/stt/deepgram"
	"github.com/MrWong99/vesper/pkg/provider/tts"
	"github.com/MrWong99/vesper/pkg/provider/tts/coqui"
	"github.com/MrWong99/vesper/pkg/provider/tts/elevenlabs"
)

// openRouterURL is the OpenAI-compatible endpoint used for "openrouter"
// entries without a base_url.
const openRouterURL = "https://openrouter.ai/api/v1"

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────
	// openai and openrouter use the native OpenAI client; openrouter is the
	// same API behind a different base URL.
	for _, name := range []string{"openai", "openrouter"} {
		reg.RegisterLLM(name, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []openai.Option
			baseURL := entry.BaseURL
			if baseURL == "" && name == "openrouter" {
				baseURL = openRouterURL
			}
			if baseURL != "" {
				opts = append(opts, openai.WithBaseURL(baseURL))
			}
			if org := optString(entry.Options, "organization"); org != "" {
				opts = append(opts, openai.WithOrganization(org))
			}
			if d := optDuration(entry.Options, "timeout"); d > 0 {
				opts = append(opts, openai.WithTimeout(d))
			}
			if n, ok := optInt(entry.Options, "max_retries"); ok {
				opts = append(opts, openai.WithMaxRetries(n))
			}
			return openai.New(entry.APIKey, entry.Model, opts...)
		})
	}

	// The remaining backends share one pattern: optional APIKey + optional
	// BaseURL. ollama, llamacpp and llamafile are local servers and usually
	// only need the BaseURL.
	for _, name := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq",
		"ollama", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(name, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(name, entry.Model, opts...)
		})
	}

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		if rate, ok := optInt(entry.Options, "sample_rate"); ok {
			opts = append(opts, deepgram.WithSampleRate(rate))
		}
		if d := optDuration(entry.Options, "endpointing"); d > 0 {
			opts = append(opts, deepgram.WithEndpointing(d))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(entry.BaseURL))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if rate, ok := optInt(entry.Options, "sample_rate"); ok {
			opts = append(opts, elevenlabs.WithSampleRate(rate))
		}
		if voice := optString(entry.Options, "voice_id"); voice != "" {
			opts = append(opts, elevenlabs.WithDefaultVoice(voice))
		}
		if entry.BaseURL != "" {
			opts = append(opts, elevenlabs.WithEndpoint(entry.BaseURL))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("coqui", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []coqui.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, coqui.WithLanguage(lang))
		}
		if rate, ok := optInt(entry.Options, "sample_rate"); ok {
			opts = append(opts, coqui.WithSampleRate(rate))
		}
		if d := optDuration(entry.Options, "timeout"); d > 0 {
			opts = append(opts, coqui.WithTimeout(d))
		}
		return coqui.New(entry.BaseURL, opts...)
	})

	for _, kind := range []string{"llm", "stt", "tts"} {
		slog.Debug("registered providers", "kind", kind, "names", reg.Names(kind))
	}
}

// buildProviders instantiates the providers named in cfg. Configured
// fallbacks wrap the primary in a circuit-breaking failover group.
func buildProviders(cfg *config.Config, reg *config.Registry, m *observe.Metrics) (*app.Providers, error) {
	ps := &app.Providers{}
	breaker := resilience.CircuitBreakerConfig{}

	if entry := cfg.Providers.LLM; entry.Name != "" {
		primary, err := create("llm", entry, reg.CreateLLM)
		if err != nil {
			return nil, err
		}
		ps.LLM = primary
		if len(cfg.Providers.LLMFallbacks) > 0 {
			group := resilience.NewLLMFallback(primary, entry.Name, resilience.FallbackConfig{CircuitBreaker: breaker, Metrics: m})
			for _, fb := range cfg.Providers.LLMFallbacks {
				p, err := create("llm", fb, reg.CreateLLM)
				if err != nil {
					return nil, err
				}
				group.AddFallback(fb.Name, p)
			}
			slog.Info("llm failover enabled", "order", group.Names())
			ps.LLM = group
		}
	}

	if entry := cfg.Providers.STT; entry.Name != "" {
		primary, err := create("stt", entry, reg.CreateSTT)
		if err != nil {
			return nil, err
		}
		ps.STT = primary
		if len(cfg.Providers.STTFallbacks) > 0 {
			group := resilience.NewSTTFallback(primary, entry.Name, resilience.FallbackConfig{CircuitBreaker: breaker, Metrics: m})
			for _, fb := range cfg.Providers.STTFallbacks {
				p, err := create("stt", fb, reg.CreateSTT)
				if err != nil {
					return nil, err
				}
				group.AddFallback(fb.Name, p)
			}
			ps.STT = group
		}
	}

	if entry := cfg.Providers.TTS; entry.Name != "" {
		primary, err := create("tts", entry, reg.CreateTTS)
		if err != nil {
			return nil, err
		}
		ps.TTS = primary
		if len(cfg.Providers.TTSFallbacks) > 0 {
			group := resilience.NewTTSFallback(primary, entry.Name, resilience.FallbackConfig{CircuitBreaker: breaker, Metrics: m})
			for _, fb := range cfg.Providers.TTSFallbacks {
				p, err := create("tts", fb, reg.CreateTTS)
				if err != nil {
					return nil, err
				}
				if err := group.AddFallback(fb.Name, p); err != nil {
					return nil, err
				}
			}
			ps.TTS = group
		}
	}

	return ps, nil
}

func create[T any](kind string, entry config.ProviderEntry, factory func(config.ProviderEntry) (T, error)) (T, error) {
	p, err := factory(entry)
	if err != nil {
		var zero T
		if errors.Is(err, config.ErrProviderNotRegistered) {
			return zero, fmt.Errorf("%s provider %q is not built in: %w", kind, entry.Name, err)
		}
		return zero, fmt.Errorf("create %s provider %q: %w", kind, entry.Name, err)
	}
	slog.Info("provider created", "kind", kind, "name", entry.Name, "model", entry.Model)
	return p, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map. Returns ""
// if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

// optInt extracts an integer value from a provider Options map.
func optInt(opts map[string]any, key string) (int, bool) {
	switch v := opts[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	}
	return 0, false
}

// optDuration parses a duration string such as "30s". Invalid values are
// logged and ignored.
func optDuration(opts map[string]any, key string) time.Duration {
	s := optString(opts, key)
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		slog.Warn("ignoring invalid provider option", "key", key, "value", s, "err", err)
		return 0
	}
	return d
}
