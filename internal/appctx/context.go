// Package appctx provides application context helpers.
package appctx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/x/term"

	"github.com/recruitmate/recruitmate-cli/internal/account"
	"github.com/recruitmate/recruitmate-cli/internal/api"
	"github.com/recruitmate/recruitmate-cli/internal/auth"
	"github.com/recruitmate/recruitmate-cli/internal/config"
	"github.com/recruitmate/recruitmate-cli/internal/history"
	"github.com/recruitmate/recruitmate-cli/internal/match"
	"github.com/recruitmate/recruitmate-cli/internal/observability"
	"github.com/recruitmate/recruitmate-cli/internal/output"
	"github.com/recruitmate/recruitmate-cli/internal/ratelimit"
	"github.com/recruitmate/recruitmate-cli/internal/resilience"
)

// DebugEnv raises verbosity without flags: "1", "2", or "true" (2).
const DebugEnv = "RECRUITMATE_DEBUG"

// contextKey is a private type for context keys.
type contextKey string

const appKey contextKey = "app"

// App holds the shared application context for all commands.
type App struct {
	Config  *config.Config
	Store   *auth.Store
	Tracker *ratelimit.Tracker
	Client  *api.Client
	Account *account.Service
	Match   *match.Service
	History *history.Store
	Output  *output.Writer
	Logger  *slog.Logger

	// Observability
	Collector *observability.SessionCollector
	Hooks     *observability.CLIHooks
	Recorder  *resilience.Recorder

	// Flags holds the global flag values
	Flags GlobalFlags

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	detach func()
}

// GlobalFlags holds values for global CLI flags.
type GlobalFlags struct {
	Format   string
	JQ       string
	BaseURL  string
	Timeout  int
	CacheDir string
	Verbose  int // 0=off, 1=recovery events, 2=every request (stacks with -v -v or -vv)
	Stats    bool
}

// Overrides converts the flags into config overrides.
func (f GlobalFlags) Overrides() config.FlagOverrides {
	return config.FlagOverrides{
		BaseURL:  f.BaseURL,
		CacheDir: f.CacheDir,
		Format:   f.Format,
		Timeout:  f.Timeout,
		Verbose:  f.Verbose,
		Stats:    f.Stats,
	}
}

// Option customizes NewApp.
type Option func(*settings)

type settings struct {
	stdin          io.Reader
	stdout, stderr io.Writer
	store          *auth.Store
	transport      api.Transport
}

// WithIO replaces the standard streams.
func WithIO(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(s *settings) {
		s.stdin, s.stdout, s.stderr = stdin, stdout, stderr
	}
}

// WithStore replaces the credential store.
func WithStore(store *auth.Store) Option {
	return func(s *settings) { s.store = store }
}

// WithTransport replaces the HTTP transport of the pipeline.
func WithTransport(t api.Transport) Option {
	return func(s *settings) { s.transport = t }
}

// NewApp wires the pipeline, services, and output for one invocation.
// Close releases what NewApp attached.
func NewApp(cfg *config.Config, flags GlobalFlags, opts ...Option) (*App, error) {
	st := settings{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	for _, opt := range opts {
		opt(&st)
	}

	format, err := output.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}

	level := VerboseLevel(cfg.VerboseLevel(), os.Getenv(DebugEnv))
	logger := slog.New(slog.DiscardHandler)
	if level > 0 {
		logger = slog.New(slog.NewTextHandler(st.stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}

	store := st.store
	if store == nil {
		store = auth.NewStore(config.GlobalConfigDir(), cfg.BaseURL, auth.WithLogger(logger))
	}

	// Collector always runs to gather stats; the level controls trace output.
	collector := observability.NewSessionCollector()
	hooks := observability.NewCLIHooks(level, collector, observability.NewTraceWriterTo(st.stderr))

	tracker := ratelimit.NewTracker()
	recorder := resilience.NewRecorder(resilience.NewStore(resilience.DirIn(cfg.CacheDir)), logger)
	recorder.Restore(tracker)

	clientOpts := []api.Option{
		api.WithTimeout(cfg.Timeout()),
		api.WithBackoffBase(cfg.BackoffBase()),
		api.WithTracker(tracker),
		api.WithHooks(hooks),
		api.WithLogger(logger),
	}
	if st.transport != nil {
		clientOpts = append(clientOpts, api.WithTransport(st.transport))
	}
	client := api.NewClient(cfg.BaseURL, store, clientOpts...)

	return &App{
		Config:    cfg,
		Store:     store,
		Tracker:   tracker,
		Client:    client,
		Account:   account.NewService(client, store, logger),
		Match:     match.NewService(client, store, logger),
		History:   history.NewStore(cfg.CacheDir),
		Logger:    logger,
		Collector: collector,
		Hooks:     hooks,
		Recorder:  recorder,
		Flags:     flags,
		Stdin:     st.stdin,
		Stdout:    st.stdout,
		Stderr:    st.stderr,
		Output: output.New(output.Options{
			Format:  format,
			Writer:  st.stdout,
			Verbose: level > 0,
			JQ:      flags.JQ,
		}),
		detach: recorder.Attach(tracker),
	}, nil
}

// VerboseLevel combines the configured level with the debug variable,
// taking the higher of the two.
func VerboseLevel(configured int, debugEnv string) int {
	level := configured
	if debugEnv == "" {
		return level
	}
	if n, err := strconv.Atoi(debugEnv); err == nil {
		level = max(level, min(n, 2))
	} else if strings.EqualFold(debugEnv, "true") {
		level = 2
	}
	return level
}

// Close detaches the rate-limit recorder.
func (a *App) Close() {
	if a.detach != nil {
		a.detach()
		a.detach = nil
	}
}

// OK outputs a success response, including stats when enabled.
func (a *App) OK(data any, opts ...output.ResponseOption) error {
	if a.Config.StatsEnabled() && a.Collector != nil {
		stats := a.Collector.Summary()
		opts = append(opts, output.WithStats(stats))
	}
	return a.Output.OK(data, opts...)
}

// Err outputs an error response, printing stats to stderr when enabled.
func (a *App) Err(err error) error {
	if outputErr := a.Output.Err(err); outputErr != nil {
		return outputErr
	}
	if a.Config.StatsEnabled() && a.Collector != nil && !a.IsMachineOutput() {
		a.printStats(a.Collector.Summary())
	}
	return nil
}

// IsMachineOutput reports whether output is meant for programs.
func (a *App) IsMachineOutput() bool {
	if a.Flags.JQ != "" {
		return true
	}
	switch a.Output.Options().Format {
	case output.FormatJSON, output.FormatYAML, output.FormatQuiet:
		return true
	}
	return false
}

func (a *App) printStats(stats observability.SessionMetrics) {
	if parts := stats.FormatParts(); len(parts) > 0 {
		fmt.Fprintf(a.Stderr, "\nStats: %s\n", strings.Join(parts, " | "))
	}
}

// Notice writes an informational line to stderr unless output is for
// programs.
func (a *App) Notice(format string, args ...any) {
	if a.IsMachineOutput() {
		return
	}
	fmt.Fprintf(a.Stderr, format+"\n", args...)
}

// RateLimitBanner returns the wait message for a limit still in force,
// or "".
func (a *App) RateLimitBanner() string {
	info := a.Tracker.Current()
	if info == nil || info.Remaining > 0 {
		return ""
	}
	return ratelimit.WaitMessage(info)
}

// IsInteractive reports whether prompts can be shown: both stdin and
// stdout are terminals and output is not for programs.
func (a *App) IsInteractive() bool {
	if a.IsMachineOutput() {
		return false
	}
	return isTerminal(a.Stdin) && isTerminal(a.Stdout)
}

// IsTerminalOutput reports whether stdout is a terminal.
func (a *App) IsTerminalOutput() bool {
	return isTerminal(a.Stdout)
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(f.Fd())
}

// WithApp stores the app in the context.
func WithApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appKey, app)
}

// FromContext retrieves the app from the context.
func FromContext(ctx context.Context) *App {
	app, _ := ctx.Value(appKey).(*App)
	return app
}
