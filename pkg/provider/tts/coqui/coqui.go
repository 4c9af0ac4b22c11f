// Package coqui implements [tts.Provider] against a self-hosted Coqui TTS
// server (ghcr.io/coqui-ai/tts-cpu). The server answers GET /api/tts with a
// complete WAV file, so each utterance yields a single PCM chunk.
package coqui

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrWong99/vesper/pkg/audio"
	"github.com/MrWong99/vesper/pkg/provider/tts"
)

const (
	apiTTSEndpoint    = "/api/tts"
	defaultTimeout    = 30 * time.Second
	defaultSampleRate = 16000
)

var _ tts.Provider = (*Provider)(nil)

// Option configures a [Provider].
type Option func(*Provider)

// WithLanguage sets the language_id sent when the voice has none.
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithTimeout bounds each HTTP request.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.httpClient.Timeout = d }
}

// WithSampleRate sets the output rate. Server audio is resampled to match.
func WithSampleRate(rate int) Option {
	return func(p *Provider) { p.sampleRate = rate }
}

// Provider is a Coqui TTS client.
type Provider struct {
	serverURL  string
	language   string
	sampleRate int
	httpClient *http.Client
}

// New creates a provider for the server at serverURL.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("coqui: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		sampleRate: defaultSampleRate,
		httpClient: &http.Client{Timeout: defaultTimeout},
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

// Synthesize implements tts.Provider. The request is issued synchronously so
// server errors surface as the returned error.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.Voice) (<-chan []byte, error) {
	pcm, err := p.fetch(ctx, text, voice)
	if err != nil {
		return nil, err
	}
	out := make(chan []byte, 1)
	out <- pcm
	close(out)
	return out, nil
}

func (p *Provider) fetch(ctx context.Context, text string, voice tts.Voice) ([]byte, error) {
	params := url.Values{}
	params.Set("text", text)
	if voice.ID != "" {
		params.Set("speaker_id", voice.ID)
	}
	lang := p.language
	if voice.Language != "" {
		lang, _, _ = strings.Cut(voice.Language, "-")
	}
	if lang != "" {
		params.Set("language_id", lang)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.serverURL+apiTTSEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: create request: %w", err)
	}
	req.Header.Set("Accept", "audio/wav")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: GET %s: %w", apiTTSEndpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: GET %s returned status %d", apiTTSEndpoint, resp.StatusCode)
	}

	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coqui: read response: %w", err)
	}
	info, err := parseWAV(wav)
	if err != nil {
		return nil, err
	}

	pcm := wav[info.dataOffset:]
	if info.channels == 2 {
		pcm = audio.StereoToMono(pcm)
	}
	return audio.ResampleMono16(pcm, info.sampleRate, p.sampleRate), nil
}

type wavInfo struct {
	sampleRate int
	channels   int
	dataOffset int
}

// parseWAV walks the RIFF chunks of a PCM WAV file.
func parseWAV(wav []byte) (wavInfo, error) {
	if len(wav) < 12 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return wavInfo{}, errors.New("coqui: response is not a RIFF/WAVE file")
	}

	info := wavInfo{sampleRate: 22050, channels: 1}
	offset := 12
	for offset+8 <= len(wav) {
		id := string(wav[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(wav[offset+4 : offset+8]))
		switch id {
		case "fmt ":
			if size >= 16 && offset+8+16 <= len(wav) {
				f := wav[offset+8:]
				info.channels = int(binary.LittleEndian.Uint16(f[2:4]))
				info.sampleRate = int(binary.LittleEndian.Uint32(f[4:8]))
			}
		case "data":
			info.dataOffset = offset + 8
			return info, nil
		}
		// Chunks are word-aligned.
		offset += 8 + size + size%2
	}
	return wavInfo{}, errors.New("coqui: WAV has no data chunk")
}
