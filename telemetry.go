package observe

import (
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/sharpencrag/observe-sentry/events"
	"github.com/sharpencrag/observe-sentry/trace"
)

// Telemetry is the instrumentation state for one initialized session:
// logger, backend, configuration, and the lifecycle subscriptions the
// binder registered. It replaces the usual pile of package-level flags
// with one explicit object.
type Telemetry struct {
	log     *zap.Logger
	backend Backend
	cfg     Config
	strict  bool

	// tracer is set only when Init built the default backend; Close owns it.
	tracer *trace.Tracer

	mu   sync.Mutex
	subs []subscription
}

type subscription struct {
	status events.Status
	id     uint64
}

// Option configures Init.
type Option func(*initOptions)

type initOptions struct {
	dsn        string
	sampleRate *float64
	logger     *zap.Logger
	backend    Backend
	user       string
	strict     bool
}

// WithDSN sets the credentialed monitoring URL explicitly instead of
// resolving it from SENTRY_DSN.
func WithDSN(dsn string) Option {
	return func(o *initOptions) { o.dsn = dsn }
}

// WithSampleRate sets the fraction of reports uploaded to the backend
// explicitly instead of resolving it from SENTRY_SAMPLE_RATE.
func WithSampleRate(rate float64) Option {
	return func(o *initOptions) { o.sampleRate = &rate }
}

// WithLogger sets the logger used for lifecycle log lines and internal
// telemetry errors. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *initOptions) { o.logger = logger }
}

// WithBackend substitutes the monitoring backend. Defaults to an
// in-process trace.Tracer wrapped by NewTraceBackend.
func WithBackend(backend Backend) Option {
	return func(o *initOptions) { o.backend = backend }
}

// WithUser overrides the user recorded on new transactions.
// Defaults to the machine hostname.
func WithUser(user string) Option {
	return func(o *initOptions) { o.user = user }
}

// RaiseInternalExceptions makes errors inside telemetry's own callbacks
// propagate instead of being logged and swallowed. Intended for tests and
// debugging; production instrumentation should never crash the host.
func RaiseInternalExceptions() Option {
	return func(o *initOptions) { o.strict = true }
}

var (
	defaultMu sync.Mutex
	defaultT  *Telemetry
)

// Init sets up telemetry for the process: resolves configuration,
// constructs the backend, and binds the lifecycle instrumentation to the
// event framework.
//
// A missing DSN is always an error; configuration cannot silently proceed
// without a destination. Re-initialization and backend construction
// failures degrade to a logged warning or error and a no-op (nil, nil)
// return, unless RaiseInternalExceptions is set, in which case they
// return errors.
func Init(opts ...Option) (*Telemetry, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	var o initOptions
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	const failedInit = "telemetry could not be initialized"

	if defaultT != nil {
		if o.strict {
			return nil, Error.New("%s: already initialized", failedInit)
		}
		logger.Warn(failedInit + ": already initialized, ignoring new initialization")
		return defaultT, nil
	}

	env, err := configFromEnv()
	if err != nil {
		if o.strict {
			return nil, err
		}
		logger.Error(failedInit+": bad environment", zap.Error(err))
		return nil, nil
	}

	cfg := Config{DSN: o.dsn, SampleRate: env.SampleRate}
	if cfg.DSN == "" {
		cfg.DSN = env.DSN
	}
	if o.sampleRate != nil {
		cfg.SampleRate = *o.sampleRate
	}

	if cfg.DSN == "" {
		return nil, Error.New("%s: no DSN found", failedInit)
	}

	backend := o.backend
	var tracer *trace.Tracer
	if backend == nil {
		if cfg.SampleRate < 0 || cfg.SampleRate > 1 {
			if o.strict {
				return nil, Error.New("%s: sample rate %v outside [0, 1]", failedInit, cfg.SampleRate)
			}
			logger.Error(failedInit+": internal backend init error",
				zap.Float64("sample_rate", cfg.SampleRate))
			return nil, nil
		}
		user := o.user
		if user == "" {
			if hostname, err := os.Hostname(); err == nil {
				user = hostname
			}
		}
		tracer = trace.New()
		backend = NewTraceBackend(tracer, user, cfg.SampleRate)
	}

	t := &Telemetry{
		log:     logger,
		backend: backend,
		cfg:     cfg,
		strict:  o.strict,
		tracer:  tracer,
	}
	t.bind()

	defaultT = t
	return t, nil
}

// Default returns the telemetry initialized for this process, or nil.
func Default() *Telemetry {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultT
}

// Teardown unbinds the default telemetry and resets the process state so
// tests can initialize again. No-op when telemetry was never initialized.
func Teardown() {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultT == nil {
		return
	}
	defaultT.Close()
	defaultT = nil
}

// Close removes the lifecycle subscriptions and shuts down the backend
// tracer when this Telemetry owns one.
func (t *Telemetry) Close() {
	t.mu.Lock()
	subs := t.subs
	t.subs = nil
	t.mu.Unlock()

	for _, sub := range subs {
		events.RemoveGlobalCallback(sub.status, sub.id)
	}
	if t.tracer != nil {
		t.tracer.Close()
	}
}

// Config returns the resolved configuration.
func (t *Telemetry) Config() Config { return t.cfg }

// Backend returns the monitoring backend in use.
func (t *Telemetry) Backend() Backend { return t.backend }

// guard runs an internal telemetry function. Errors and panics inside it
// are logged and swallowed so instrumentation failures never crash the
// host application; with RaiseInternalExceptions they propagate.
// Application errors never pass through here.
func (t *Telemetry) guard(op string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			if t.strict {
				panic(r)
			}
			t.log.Error("internal telemetry function failed",
				zap.String("op", op), zap.Any("panic", r))
		}
	}()

	if err := fn(); err != nil {
		if t.strict {
			panic(Error.Wrap(err))
		}
		t.log.Error("internal telemetry function failed",
			zap.String("op", op), zap.Error(err))
	}
}
