package resilience

import (
	"context"
	"errors"
	"reflect"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/vesper/internal/observe"
	"github.com/MrWong99/vesper/pkg/audio"
	"github.com/MrWong99/vesper/pkg/provider/llm"
	llmmock "github.com/MrWong99/vesper/pkg/provider/llm/mock"
	"github.com/MrWong99/vesper/pkg/provider/stt"
	sttmock "github.com/MrWong99/vesper/pkg/provider/stt/mock"
	"github.com/MrWong99/vesper/pkg/provider/tts"
	ttsmock "github.com/MrWong99/vesper/pkg/provider/tts/mock"
)

func TestFallbackGroup_Order(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		failing map[string]bool
		want    []string
		wantErr bool
	}{
		{"primary succeeds", nil, []string{"a"}, false},
		{"primary fails", map[string]bool{"a": true}, []string{"a", "b"}, false},
		{"all fail", map[string]bool{"a": true, "b": true, "c": true}, []string{"a", "b", "c"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fg := NewFallbackGroup("a", "a", FallbackConfig{})
			fg.AddFallback("b", "b")
			fg.AddFallback("c", "c")

			var tried []string
			got, err := Do(context.Background(), fg, func(v string) (string, error) {
				tried = append(tried, v)
				if tt.failing[v] {
					return "", errTest
				}
				return v, nil
			})
			if !reflect.DeepEqual(tried, tt.want) {
				t.Errorf("tried = %v, want %v", tried, tt.want)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrAllFailed) || !errors.Is(err, errTest) {
					t.Errorf("err = %v, want all-failed wrapping the last error", err)
				}
				return
			}
			if err != nil || got != tt.want[len(tt.want)-1] {
				t.Errorf("Do = (%q, %v)", got, err)
			}
		})
	}
}

func TestFallbackGroup_SkipsOpenBreaker(t *testing.T) {
	t.Parallel()
	fg := NewFallbackGroup("a", "a", FallbackConfig{CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1}})
	fg.AddFallback("b", "b")

	_ = fg.Execute(context.Background(), func(v string) error {
		if v == "a" {
			return errTest
		}
		return nil
	})
	if fg.Breaker("a").State() != StateOpen {
		t.Fatalf("breaker a = %v, want open", fg.Breaker("a").State())
	}

	var tried []string
	_ = fg.Execute(context.Background(), func(v string) error {
		tried = append(tried, v)
		return nil
	})
	if !reflect.DeepEqual(tried, []string{"b"}) {
		t.Errorf("tried = %v, want [b]", tried)
	}
	if fg.Breaker("missing") != nil {
		t.Error("Breaker(missing) != nil")
	}
}

func TestFallbackGroup_StopsOnCancelledContext(t *testing.T) {
	t.Parallel()
	fg := NewFallbackGroup("a", "a", FallbackConfig{})
	fg.AddFallback("b", "b")

	ctx, cancel := context.WithCancel(context.Background())
	var tried []string
	err := fg.Execute(ctx, func(v string) error {
		tried = append(tried, v)
		cancel()
		return ctx.Err()
	})
	if !errors.Is(err, context.Canceled) || errors.Is(err, ErrAllFailed) {
		t.Errorf("err = %v, want plain cancellation", err)
	}
	if len(tried) != 1 {
		t.Errorf("tried = %v, want only the primary", tried)
	}
	if fg.Breaker("a").State() != StateClosed {
		t.Error("cancellation counted against the breaker")
	}
}

func TestFallbackGroup_Metrics(t *testing.T) {
	t.Parallel()
	reader := sdkmetric.NewManualReader()
	m, err := observe.NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	if err != nil {
		t.Fatal(err)
	}
	fg := NewFallbackGroup("a", "a", FallbackConfig{Kind: "llm", Metrics: m})
	fg.AddFallback("b", "b")
	_ = fg.Execute(context.Background(), func(v string) error {
		if v == "a" {
			return errTest
		}
		return nil
	})

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}
	counts := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if sum, ok := md.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					counts[md.Name] += dp.Value
				}
			}
		}
	}
	if counts["vesper.provider.requests"] != 2 || counts["vesper.provider.errors"] != 1 {
		t.Errorf("counts = %v, want 2 requests and 1 error", counts)
	}
}

func TestLLMFallback(t *testing.T) {
	t.Parallel()
	primary := &llmmock.Provider{Err: errTest}
	backup := &llmmock.Provider{Response: &llm.CompletionResponse{Content: `{"type":"affirmation"}`}}
	f := NewLLMFallback(primary, "openai", FallbackConfig{})
	f.AddFallback("ollama", backup)

	resp, err := f.Complete(context.Background(), llm.CompletionRequest{Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}}})
	if err != nil || resp.Content != `{"type":"affirmation"}` {
		t.Fatalf("Complete = (%v, %v)", resp, err)
	}
	if primary.CallCount() != 1 || backup.CallCount() != 1 {
		t.Errorf("calls = %d/%d, want 1/1", primary.CallCount(), backup.CallCount())
	}
	if got := f.Names(); !reflect.DeepEqual(got, []string{"openai", "ollama"}) {
		t.Errorf("Names = %v", got)
	}
}

func TestSTTFallback(t *testing.T) {
	t.Parallel()
	primary := &sttmock.Provider{StartStreamErr: errTest}
	backup := &sttmock.Provider{}
	f := NewSTTFallback(primary, "deepgram", FallbackConfig{})
	f.AddFallback("backup", backup)

	h, err := f.StartStream(context.Background(), stt.StreamConfig{SampleRate: 16000})
	if err != nil || h == nil {
		t.Fatalf("StartStream = (%v, %v)", h, err)
	}
	if backup.CallCount() != 1 {
		t.Errorf("backup calls = %d, want 1", backup.CallCount())
	}
}

func TestTTSFallback(t *testing.T) {
	t.Parallel()
	format := audio.Format{SampleRate: 22050, Channels: 1}
	primary := &ttsmock.Provider{Err: errTest, AudioFormat: format}
	backup := &ttsmock.Provider{Chunks: [][]byte{{1, 0}}, AudioFormat: format}
	f := NewTTSFallback(primary, "elevenlabs", FallbackConfig{})
	if err := f.AddFallback("coqui", backup); err != nil {
		t.Fatalf("AddFallback: %v", err)
	}

	ch, err := f.Synthesize(context.Background(), "hello", tts.Voice{Rate: 0.9})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	var n int
	for range ch {
		n++
	}
	if n != 1 {
		t.Errorf("chunks = %d, want 1", n)
	}
	if f.Format() != format {
		t.Errorf("Format = %+v", f.Format())
	}

	mismatched := &ttsmock.Provider{AudioFormat: audio.Format{SampleRate: 44100, Channels: 2}}
	if err := f.AddFallback("hifi", mismatched); err == nil {
		t.Error("AddFallback accepted a provider with a different format")
	}
}
