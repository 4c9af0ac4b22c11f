// Package app wires all Vesper subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP until the context is cancelled, and Shutdown
// tears everything down in order.
//
// For testing, inject test doubles via functional options (WithStore,
// WithMetrics, WithScheduler). When an option is not provided, New creates
// real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/vesper/internal/audiolevel"
	"github.com/MrWong99/vesper/internal/config"
	"github.com/MrWong99/vesper/internal/dictation"
	"github.com/MrWong99/vesper/internal/gateway"
	"github.com/MrWong99/vesper/internal/health"
	"github.com/MrWong99/vesper/internal/intent"
	"github.com/MrWong99/vesper/internal/notify"
	"github.com/MrWong99/vesper/internal/observe"
	"github.com/MrWong99/vesper/internal/orchestrator"
	"github.com/MrWong99/vesper/internal/pipeline"
	"github.com/MrWong99/vesper/internal/recognition"
	"github.com/MrWong99/vesper/internal/reminder"
	"github.com/MrWong99/vesper/internal/speech"
	"github.com/MrWong99/vesper/internal/wakeword"
	"github.com/MrWong99/vesper/pkg/provider/llm"
	"github.com/MrWong99/vesper/pkg/provider/stt"
	"github.com/MrWong99/vesper/pkg/provider/tts"
	"github.com/MrWong99/vesper/pkg/store"
	"github.com/MrWong99/vesper/pkg/store/memstore"
	"github.com/MrWong99/vesper/pkg/store/postgres"
)

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	// LLM backs the remote intent classifier. Without it every command is
	// classified by keyword rules.
	LLM llm.Provider

	// STT backs both the wake-word and dictation recognisers. Without it
	// voice cannot be enabled.
	STT stt.Provider

	// TTS speaks replies. Without it replies are only shown.
	TTS tts.Provider
}

// App owns all subsystem lifetimes and serves the voice assistant.
type App struct {
	cfg       *config.Config
	providers *Providers
	metrics   *observe.Metrics
	scrape    http.Handler
	sched     recognition.Scheduler

	// Subsystems, initialised in New and torn down in Shutdown.
	store      store.Store
	hub        *gateway.Hub
	notifier   notify.Sink
	reminders  *reminder.Scheduler
	classifier *intent.Classifier
	orch       *orchestrator.Orchestrator
	speaker    *speech.Speaker
	pipeline   *pipeline.Pipeline
	level      *audiolevel.Monitor
	health     *health.Handler
	handler    http.Handler

	// runCtx is the long-lived context voice runs under once Run starts.
	mu     sync.Mutex
	runCtx context.Context

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a domain store instead of creating one from config.
// The App takes ownership and closes it on Shutdown.
func WithStore(s store.Store) Option {
	return func(a *App) { a.store = s }
}

// WithMetrics records telemetry on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithTelemetry records on t's metrics and serves t's registry on
// /metrics. Without it the global meter provider and the default Prometheus
// registry are used.
func WithTelemetry(t *observe.Telemetry) Option {
	return func(a *App) {
		a.metrics = t.Metrics
		a.scrape = t.Handler()
	}
}

// WithScheduler replaces the timer source used for recognition restarts and
// reminders.
func WithScheduler(s recognition.Scheduler) Option {
	return func(a *App) { a.sched = s }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). cfg must have had
// [config.ApplyDefaults] applied, which [config.Load] does.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
		sched:     recognition.SystemScheduler{},
		runCtx:    context.Background(),
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.scrape == nil {
		a.scrape = promhttp.Handler()
	}

	// ── 1. Domain store ──────────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	// ── 2. Device gateway ────────────────────────────────────────────────
	a.hub = gateway.New(
		gateway.WithMetrics(a.metrics),
		gateway.WithOriginPatterns(cfg.Server.AllowedOrigins...),
	)
	a.closers = append(a.closers, a.hub.Close)
	a.notifier = notify.Multi{a.hub, notify.Log{}}

	// ── 3. Reminders ─────────────────────────────────────────────────────
	a.initReminders(ctx)

	// ── 4. Classifier + orchestrator ─────────────────────────────────────
	a.classifier = intent.NewClassifier(providers.LLM,
		intent.WithTimeout(cfg.Classifier.Timeout),
		intent.WithTemperature(cfg.Classifier.Temperature),
		intent.WithMaxTokens(cfg.Classifier.MaxTokens),
		intent.WithMetrics(a.metrics),
	)
	orchOpts := []orchestrator.Option{
		orchestrator.WithNotifier(a.notifier),
		orchestrator.WithNavigator(a.hub),
		orchestrator.WithMetrics(a.metrics),
	}
	if a.reminders != nil {
		orchOpts = append(orchOpts, orchestrator.WithReminders(a.reminders))
	}
	a.orch = orchestrator.New(orchestrator.StoresFrom(a.store), orchOpts...)

	// ── 5. Speech output ─────────────────────────────────────────────────
	a.initSpeaker()

	// ── 6. Voice pipeline ────────────────────────────────────────────────
	if err := a.initPipeline(); err != nil {
		return nil, fmt.Errorf("app: init pipeline: %w", err)
	}
	a.hub.SetController(a)

	// ── 7. Level meter ───────────────────────────────────────────────────
	a.level = audiolevel.New(a.hub,
		audiolevel.WithInterval(cfg.Level.Interval),
		audiolevel.WithGain(cfg.Level.Gain),
		audiolevel.OnLevel(a.hub.Level),
	)

	// ── 8. HTTP surface ──────────────────────────────────────────────────
	a.health = health.New(
		health.Checker{Name: "store", Check: a.store.Ping},
		health.Checker{Name: "voice", Check: a.checkVoice},
	)
	a.handler = a.routes()

	slog.Info("app initialised",
		"remote_classifier", a.classifier.Remote(),
		"speech", a.speaker != nil,
		"voice_available", providers.STT != nil,
		"reminders", a.reminders != nil,
	)
	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initStore opens PostgreSQL when a DSN is configured and otherwise falls
// back to the in-memory store, optionally seeded with demo records.
func (a *App) initStore(ctx context.Context) error {
	if a.store == nil {
		if dsn := a.cfg.Stores.PostgresDSN; dsn != "" {
			pg, err := postgres.NewStore(ctx, dsn)
			if err != nil {
				return err
			}
			a.store = pg
			slog.Info("using postgres store")
		} else {
			mem := memstore.New()
			if a.cfg.Stores.SeedDemo {
				if err := store.Seed(ctx, mem, time.Now()); err != nil {
					return fmt.Errorf("seed demo data: %w", err)
				}
				slog.Info("seeded in-memory store with demo data")
			}
			a.store = mem
			slog.Warn("using in-memory store; records are lost on restart")
		}
	}
	a.closers = append(a.closers, func() error {
		a.store.Close()
		return nil
	})
	return nil
}

// initReminders schedules reminders for existing records. A store that
// cannot be listed leaves reminders running for new records only.
func (a *App) initReminders(ctx context.Context) {
	if !a.cfg.Reminders.Enabled {
		return
	}
	a.reminders = reminder.New(a.notifier,
		reminder.WithTimers(a.sched),
		reminder.WithTaskLead(a.cfg.Reminders.TaskLead),
		reminder.WithEventLead(a.cfg.Reminders.EventLead),
	)
	if err := a.reminders.Load(ctx, a.store, a.store); err != nil {
		slog.Warn("failed to load existing reminders", "err", err)
	}
	slog.Info("reminders scheduled", "pending", a.reminders.Pending())
	a.closers = append(a.closers, func() error {
		a.reminders.Close()
		return nil
	})
}

// initSpeaker creates the speech output when a TTS provider is configured.
func (a *App) initSpeaker() {
	if a.providers.TTS == nil {
		slog.Warn("no TTS provider configured; replies will not be spoken")
		return
	}
	a.speaker = speech.New(a.providers.TTS, a.hub,
		speech.WithVoice(a.cfg.Speech.VoiceID, a.cfg.Voice.Language),
		speech.WithRate(a.cfg.Speech.Rate),
		speech.WithPitch(a.cfg.Speech.Pitch),
		speech.WithMetrics(a.metrics),
		speech.OnDone(a.speechDone),
	)
	a.closers = append(a.closers, func() error {
		a.speaker.Close()
		return nil
	})
}

// initPipeline builds the wake-word and dictation recognisers over the
// gateway's microphone fan-out, then the pipeline on top of them.
func (a *App) initPipeline() error {
	var wake, dict recognition.Capability = unavailable{"wake"}, unavailable{"dictation"}
	if a.providers.STT != nil {
		streamOpts := []recognition.StreamOption{recognition.WithNoSpeechTimeout(a.cfg.Voice.NoSpeechTimeout)}
		wake = recognition.NewStreamCapability(a.providers.STT, a.hub, streamOpts...)
		dict = recognition.NewStreamCapability(a.providers.STT, a.hub, streamOpts...)
	}

	wakeOpts := []wakeword.Option{
		wakeword.WithPhrase(a.cfg.Voice.WakePhrase),
		wakeword.WithCooldown(a.cfg.Voice.WakeCooldown),
		wakeword.WithLanguage(a.cfg.Voice.Language),
		wakeword.WithScheduler(a.sched),
		wakeword.WithMetrics(a.metrics),
	}
	if t := a.cfg.Voice.PhoneticThreshold; t > 0 {
		wakeOpts = append(wakeOpts, wakeword.WithPhonetic(t))
	}

	deps := pipeline.Deps{
		Wake:       wake,
		Dictation:  dict,
		Classifier: a.classifier,
		Executor:   a.orch,
		Notifier:   a.notifier,
	}
	if a.speaker != nil {
		deps.Speaker = a.speaker
	}

	p, err := pipeline.New(deps,
		pipeline.WithWakeOptions(wakeOpts...),
		pipeline.WithDictationOptions(
			dictation.WithLanguage(a.cfg.Voice.Language),
			dictation.WithRestartDelay(a.cfg.Voice.RestartDelay),
			dictation.WithScheduler(a.sched),
			dictation.WithMetrics(a.metrics),
		),
		pipeline.OnState(func(s pipeline.State) { a.hub.State(string(s)) }),
		pipeline.OnInterim(a.hub.Interim),
	)
	if err != nil {
		return err
	}
	a.pipeline = p
	a.closers = append(a.closers, p.Close)
	return nil
}

func (a *App) speechDone() {
	if a.pipeline != nil {
		a.pipeline.SpeechDone()
	}
}

// checkVoice fails readiness when voice is on but the wake-word recogniser
// has given up.
func (a *App) checkVoice(context.Context) error {
	if a.pipeline.Enabled() && a.pipeline.WakeStatus() == recognition.StatusErrored {
		return errors.New("wake-word recognition failed")
	}
	return nil
}

// ─── Voice control ───────────────────────────────────────────────────────────

// SetEnabled turns the voice feature on or off together with the level
// meter. It implements [gateway.Controller]. Voice always runs under the
// App's long-lived context, never under ctx, which typically belongs to a
// single device request.
func (a *App) SetEnabled(ctx context.Context, on bool) error {
	if !on {
		a.pipeline.Disable()
		a.level.Stop()
		return nil
	}
	if a.providers.STT == nil {
		return fmt.Errorf("app: enable voice: %w", recognition.ErrCapabilityUnavailable)
	}
	runCtx := a.voiceContext()
	if err := a.pipeline.Enable(runCtx); err != nil {
		return err
	}
	if err := a.level.Start(runCtx); err != nil {
		observe.Logger(ctx).Warn("level meter unavailable", "err", err)
	}
	return nil
}

// Command classifies and executes typed text without speaking. It
// implements [gateway.Controller].
func (a *App) Command(ctx context.Context, text string) (intent.Intent, string) {
	return a.pipeline.Command(ctx, text)
}

func (a *App) voiceContext() context.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.runCtx
}

// Apply hot-applies the reloadable parts of a config change. Log level is
// the caller's concern, since the App does not own the logger.
func (a *App) Apply(d config.ConfigDiff) {
	if d.WakePhraseChanged {
		a.pipeline.SetWakePhrase(d.NewWakePhrase)
		slog.Info("wake phrase updated", "phrase", d.NewWakePhrase)
	}
	if d.SpeechChanged && a.speaker != nil {
		a.speaker.SetRate(d.NewSpeech.Rate)
		a.speaker.SetPitch(d.NewSpeech.Pitch)
		slog.Info("speech settings updated", "rate", d.NewSpeech.Rate, "pitch", d.NewSpeech.Pitch)
	}
	if d.VoiceEnabledChanged {
		if err := a.SetEnabled(context.Background(), d.VoiceEnabled); err != nil {
			slog.Warn("failed to apply voice setting", "enabled", d.VoiceEnabled, "err", err)
		}
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes need a restart to take effect", "settings", d.RestartRequired)
	}
}

// Handler returns the App's HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP on cfg.Server.ListenAddr and blocks until ctx is cancelled
// or the server fails. Voice is enabled first when the config asks for it;
// failing to enable it is logged, not fatal.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("app: listen %q: %w", a.cfg.Server.ListenAddr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener. It closes ln before returning.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	a.mu.Lock()
	a.runCtx = ctx
	a.mu.Unlock()

	if a.cfg.Voice.Enabled {
		if err := a.SetEnabled(ctx, true); err != nil {
			slog.Warn("voice could not be enabled at startup", "err", err)
		}
	}

	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = srv.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = srv.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	})
	g.Go(func() error {
		<-gctx.Done()
		// Device sockets are hijacked and survive srv.Shutdown; closing the
		// hub ends them.
		_ = a.hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	slog.Info("app running", "addr", ln.Addr().String(), "voice", a.pipeline.Enabled())
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		a.pipeline.Disable()
		a.level.Stop()

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// unavailable is the recogniser used when no STT provider is configured.
type unavailable struct{ name string }

func (u unavailable) Start(context.Context, recognition.Config, recognition.Events) error {
	return fmt.Errorf("%w: no speech-to-text provider for %s", recognition.ErrCapabilityUnavailable, u.name)
}

func (unavailable) Stop() {}
