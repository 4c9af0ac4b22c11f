// Package elevenlabs implements [tts.Provider] on top of the ElevenLabs
// stream-input WebSocket API.
package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/coder/websocket"

	"github.com/MrWong99/vesper/pkg/audio"
	"github.com/MrWong99/vesper/pkg/provider/tts"
)

const (
	defaultEndpoint   = "wss://api.elevenlabs.io"
	defaultModel      = "eleven_flash_v2_5"
	defaultSampleRate = 16000

	// ElevenLabs accepts speed in [0.7, 1.2].
	minSpeed = 0.7
	maxSpeed = 1.2
)

// Option configures a [Provider].
type Option func(*Provider)

// WithModel sets the ElevenLabs model ID.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithSampleRate selects the pcm_<rate> output format. ElevenLabs supports
// 16000, 22050, 24000 and 44100.
func WithSampleRate(rate int) Option {
	return func(p *Provider) { p.sampleRate = rate }
}

// WithDefaultVoice sets the voice used when [tts.Voice.ID] is empty.
func WithDefaultVoice(id string) Option {
	return func(p *Provider) { p.defaultVoice = id }
}

// WithEndpoint overrides the API base URL. Used by tests.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) { p.endpoint = strings.TrimRight(endpoint, "/") }
}

// Provider implements tts.Provider for ElevenLabs.
type Provider struct {
	apiKey       string
	endpoint     string
	model        string
	sampleRate   int
	defaultVoice string
}

// New creates an ElevenLabs provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		endpoint:   defaultEndpoint,
		model:      defaultModel,
		sampleRate: defaultSampleRate,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Format implements tts.Provider.
func (p *Provider) Format() audio.Format {
	return audio.Format{SampleRate: p.sampleRate, Channels: 1}
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed,omitempty"`
}

// inputMessage is one client frame on the stream-input socket. The first
// frame carries the key and settings; an empty Text ends the input.
type inputMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	XiAPIKey      string         `json:"xi_api_key,omitempty"`
	Flush         bool           `json:"flush,omitempty"`
}

type audioMessage struct {
	Audio   string `json:"audio"`
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Synthesize implements tts.Provider. The whole utterance is sent in one
// frame followed by the end-of-input marker.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.Voice) (<-chan []byte, error) {
	voiceID := voice.ID
	if voiceID == "" {
		voiceID = p.defaultVoice
	}
	if voiceID == "" {
		return nil, errors.New("elevenlabs: no voice configured")
	}

	conn, _, err := websocket.Dial(ctx, p.streamURL(voiceID, voice.Language), nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: dial: %w", err)
	}

	frames := [][]byte{
		mustJSON(inputMessage{
			Text:          " ",
			VoiceSettings: settingsFor(voice),
			XiAPIKey:      p.apiKey,
		}),
		mustJSON(inputMessage{Text: text + " ", Flush: true}),
		mustJSON(inputMessage{Text: ""}),
	}
	for _, f := range frames {
		if err := conn.Write(ctx, websocket.MessageText, f); err != nil {
			_ = conn.Close(websocket.StatusInternalError, "write failed")
			return nil, fmt.Errorf("elevenlabs: send text: %w", err)
		}
	}

	out := make(chan []byte, 64)
	go func() {
		defer close(out)
		defer conn.CloseNow()
		for {
			_, msg, err := conn.Read(ctx)
			if err != nil {
				return
			}
			pcm, final, ok := decodeAudio(msg)
			if ok {
				select {
				case out <- pcm:
				case <-ctx.Done():
					return
				}
			}
			if final {
				_ = conn.Close(websocket.StatusNormalClosure, "done")
				return
			}
		}
	}()
	return out, nil
}

func (p *Provider) streamURL(voiceID, language string) string {
	q := url.Values{}
	q.Set("model_id", p.model)
	q.Set("output_format", "pcm_"+strconv.Itoa(p.sampleRate))
	if lang, _, _ := strings.Cut(language, "-"); lang != "" {
		q.Set("language_code", strings.ToLower(lang))
	}
	return fmt.Sprintf("%s/v1/text-to-speech/%s/stream-input?%s", p.endpoint, url.PathEscape(voiceID), q.Encode())
}

// settingsFor maps a rate multiplier onto the ElevenLabs speed range.
func settingsFor(v tts.Voice) *voiceSettings {
	vs := &voiceSettings{Stability: 0.5, SimilarityBoost: 0.75}
	if v.Rate > 0 {
		vs.Speed = min(max(v.Rate, minSpeed), maxSpeed)
	}
	return vs
}

// decodeAudio extracts PCM from a server frame. ok is false when the frame
// carries no audio.
func decodeAudio(msg []byte) (pcm []byte, final, ok bool) {
	var m audioMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		return nil, false, false
	}
	if m.Audio != "" {
		b, err := base64.StdEncoding.DecodeString(m.Audio)
		if err == nil && len(b) > 0 {
			pcm, ok = b, true
		}
	}
	return pcm, m.IsFinal || m.Error != "", ok
}

func mustJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}
