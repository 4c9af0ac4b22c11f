package intent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/MrWong99/vesper/internal/observe"
	"github.com/MrWong99/vesper/pkg/provider/llm"
)

const (
	defaultTemperature = 0.3
	defaultMaxTokens   = 500
	defaultTimeout     = 10 * time.Second
)

// Fallback reasons recorded in metrics.
const (
	reasonError   = "error"
	reasonEmpty   = "empty"
	reasonInvalid = "invalid"
	reasonPanic   = "panic"
	reasonTimeout = "timeout"
)

// ErrEmptyReply is returned when the backend answered without content.
var ErrEmptyReply = errors.New("intent: empty reply from backend")

// systemPrompt describes the JSON contract to the classification backend.
const systemPrompt = `You are an assistant that turns a single spoken command into a structured intent.

Analyze the user's text and return a JSON object with this exact structure:
{
  "type": "task|calendar|journal|navigation|mood|habit|weather|affirmation|unknown",
  "confidence": 0.0-1.0,
  "data": { /* fields for the type, see below */ }
}

Fields per type:
- task: action (create|complete|delete|update), title, description, priority (low|medium|high), dueDate (YYYY-MM-DD), tags (array of strings)
- calendar: action (create|view|update|delete), title, date (YYYY-MM-DD), time (HH:MM, 24-hour), duration (minutes, integer), description
- journal: action (create|reflect|mood), content, mood (integer 1-5), tags, prompt (a therapeutic prompt)
- navigation: destination (dashboard|tasks|calendar|journal|hands|settings)
- mood: rating (integer 1-5), notes
- habit: action (mark|complete), habitName, date (YYYY-MM-DD)
- weather: location (optional)
- affirmation: no fields
- unknown: no fields

Return only valid JSON, no other text.`

// Option configures a [Classifier].
type Option func(*Classifier)

// WithTimeout bounds each backend call. Default: 10s.
func WithTimeout(d time.Duration) Option {
	return func(c *Classifier) { c.timeout = d }
}

// WithTemperature sets the backend sampling temperature. Default: 0.3.
func WithTemperature(t float64) Option {
	return func(c *Classifier) { c.temperature = t }
}

// WithMaxTokens caps the backend reply length. Default: 500.
func WithMaxTokens(n int) Option {
	return func(c *Classifier) { c.maxTokens = n }
}

// WithMetrics records classification latency, outcomes and fallbacks on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Classifier) { c.metrics = m }
}

// Classifier maps utterances to intents. With a backend it asks the
// language model first and falls back to [Rules] on any failure; without one
// it uses the rules directly. It is safe for concurrent use and holds no
// per-request state.
type Classifier struct {
	backend     llm.Provider
	rules       Rules
	timeout     time.Duration
	temperature float64
	maxTokens   int
	metrics     *observe.Metrics
}

// NewClassifier creates a classifier. backend may be nil.
func NewClassifier(backend llm.Provider, opts ...Option) *Classifier {
	c := &Classifier{
		backend:     backend,
		timeout:     defaultTimeout,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Remote reports whether a classification backend is configured.
func (c *Classifier) Remote() bool { return c.backend != nil }

// Classify returns the intent of text. It never fails: every backend problem
// degrades to the rule engine.
func (c *Classifier) Classify(ctx context.Context, text string) Intent {
	ctx, span := observe.StartSpan(ctx, "intent.classify")
	defer span.End()
	start := time.Now()

	out, path := c.classify(ctx, text)

	span.SetAttributes(
		attribute.String("intent.kind", string(out.Kind())),
		attribute.String("intent.path", path),
		attribute.Float64("intent.confidence", out.Confidence),
	)
	if c.metrics != nil {
		c.metrics.ClassifyDuration.Record(ctx, time.Since(start).Seconds())
		c.metrics.RecordIntent(ctx, string(out.Kind()), path)
	}
	observe.Logger(ctx).Debug("intent: classified",
		"kind", out.Kind(),
		"confidence", out.Confidence,
		"path", path,
	)
	return out
}

func (c *Classifier) classify(ctx context.Context, text string) (Intent, string) {
	if c.backend == nil {
		return c.rules.Classify(text), "rules"
	}

	out, err := c.remote(ctx, text)
	if err == nil {
		return out, "remote"
	}

	reason := fallbackReason(err)
	log := observe.Logger(ctx)
	if reason == reasonInvalid || reason == reasonEmpty {
		log.Debug("intent: backend reply unusable, using rules", "reason", reason, "err", err)
	} else {
		log.Warn("intent: backend failed, using rules", "reason", reason, "err", err)
	}
	if c.metrics != nil {
		c.metrics.RecordClassifyFallback(ctx, reason)
	}
	return c.rules.Classify(text), "rules"
}

type panicError struct{ v any }

func (e panicError) Error() string { return fmt.Sprintf("backend panic: %v", e.v) }

func (c *Classifier) remote(ctx context.Context, text string) (out Intent, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError{v: r}
		}
	}()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	ctx, span := observe.StartSpan(ctx, "intent.remote")
	defer span.End()
	start := time.Now()

	resp, err := c.backend.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: text}},
		Temperature:  c.temperature,
		MaxTokens:    c.maxTokens,
		JSON:         true,
	})
	if c.metrics != nil {
		c.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return Intent{}, fmt.Errorf("intent: complete: %w", err)
	}
	if resp == nil {
		return Intent{}, ErrEmptyReply
	}
	return ParseReply(resp.Content, text)
}

// ParseReply decodes a backend reply into an intent. Markdown code fences
// around the JSON are tolerated.
func ParseReply(content, utterance string) (Intent, error) {
	cleaned := stripMarkdown(content)
	if cleaned == "" {
		return Intent{}, ErrEmptyReply
	}
	return Decode([]byte(cleaned), utterance)
}

func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}

func fallbackReason(err error) string {
	var pe panicError
	switch {
	case errors.As(err, &pe):
		return reasonPanic
	case errors.Is(err, context.DeadlineExceeded):
		return reasonTimeout
	case errors.Is(err, ErrEmptyReply):
		return reasonEmpty
	case errors.Is(err, ErrInvalidIntent):
		return reasonInvalid
	default:
		return reasonError
	}
}

// String renders the intent for logs.
func (i Intent) String() string {
	return fmt.Sprintf("%s(%.2f)", i.Kind(), i.Confidence)
}
