// Command convene runs the calendar negotiation agent.
//
// Usage:
//
//	convene serve --config convene.yaml
//	convene negotiate --endpoint http://peer:8080 --partner agent-beta --duration 30m
//	convene slots --from 2026-09-01T09:00:00Z --to 2026-09-01T17:00:00Z --duration 30m
//	convene events --status confirmed
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/convene-dev/convene/pkg/a2a"
	"github.com/convene-dev/convene/pkg/agent"
	"github.com/convene-dev/convene/pkg/calendar"
	"github.com/convene-dev/convene/pkg/config"
	"github.com/convene-dev/convene/pkg/llms"
	"github.com/convene-dev/convene/pkg/logger"
	"github.com/convene-dev/convene/pkg/negotiation"
	"github.com/convene-dev/convene/pkg/observability"
	"github.com/convene-dev/convene/pkg/preferences"
	"github.com/convene-dev/convene/pkg/server"
	"github.com/convene-dev/convene/pkg/store"
	"github.com/convene-dev/convene/pkg/tools"
)

type CLI struct {
	Version   VersionCmd   `cmd:"" help:"Show version information."`
	Serve     ServeCmd     `cmd:"" help:"Start the agent server."`
	Negotiate NegotiateCmd `cmd:"" help:"Negotiate a booking with a remote peer."`
	Slots     SlotsCmd     `cmd:"" help:"List available calendar slots."`
	Events    EventsCmd    `cmd:"" help:"List calendar events."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFormat string `help:"Log format (simple, verbose)." default:"simple"`
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("convene version %s\n", version)
	return nil
}

// app carries the wired components shared by the commands.
type app struct {
	cfg      *config.Config
	loader   *config.Loader
	engine   *calendar.Engine
	backing  store.Store
	prefs    func() *preferences.Preferences
	registry *tools.Registry
	provider llms.Provider
	metrics  *observability.Metrics
}

func buildApp(cli *CLI, observe bool) (*app, error) {
	loader := config.NewLoader(cli.Config, logger.Logger())
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}

	if observe {
		cfg.Observability.Enabled = true
	}
	metrics, err := observability.Init(context.Background(), cfg.Observability)
	if err != nil {
		return nil, err
	}

	var backing store.Store
	if cfg.Store.Driver == "memory" {
		backing = store.NewMemoryStore()
	} else {
		backing, err = store.Open(cfg.Store.Driver, cfg.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open event store: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Durable preferences win over the config file; the config seeds first run.
	prefs := &cfg.Preferences
	if saved, err := backing.LoadPreferences(ctx); err == nil && saved != nil {
		prefs = saved
	}

	engine := calendar.NewEngine(cfg.Agent.Name,
		calendar.WithSink(&store.EngineSink{Store: backing}),
		calendar.WithLogger(logger.Logger()))
	events, err := backing.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to restore calendar: %w", err)
	}
	engine.Restore(events)

	prefsFn := func() *preferences.Preferences { return prefs }
	registry := tools.NewRegistry()
	if err := tools.NewCalendarToolset(engine, prefsFn).RegisterAll(registry); err != nil {
		return nil, err
	}

	provider, err := llms.NewProvider(cfg.LLM)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		loader:   loader,
		engine:   engine,
		backing:  backing,
		prefs:    prefsFn,
		registry: registry,
		provider: llms.Instrument(provider, metrics),
		metrics:  metrics,
	}, nil
}

func (a *app) Close() {
	_ = a.provider.Close()
	_ = a.backing.Close()
	_ = a.loader.Close()
}

type ServeCmd struct {
	Watch   bool `help:"Watch the config file for changes."`
	Observe bool `help:"Enable Prometheus metrics."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	app, err := buildApp(cli, c.Observe)
	if err != nil {
		return err
	}
	defer app.Close()

	dispatcher := tools.NewDispatcher(app.provider, app.registry, logger.Logger())
	srv := server.New(app.cfg, dispatcher, app.registry, app.metrics, logger.Logger())

	if c.Watch && cli.Config != "" {
		if err := app.loader.Watch(func(cfg *config.Config) {
			logger.Logger().Info("configuration updated", "agent", cfg.Agent.Name)
		}); err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		logger.Logger().Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type NegotiateCmd struct {
	Endpoint string `required:"" help:"Peer agent base URL."`
	Partner  string `required:"" help:"Peer agent identifier."`
	Date     string `help:"Preferred date window (e.g. 'Thursday' or '2026-09-03')."`
	Time     string `help:"Preferred time window (e.g. '10:00-12:00')."`
	Duration string `help:"Meeting duration." default:"30m"`
	Title    string `help:"Meeting title."`
}

func (c *NegotiateCmd) Run(cli *CLI) error {
	app, err := buildApp(cli, false)
	if err != nil {
		return err
	}
	defer app.Close()

	transport := a2a.NewClient(&a2a.ClientConfig{
		DisableStreaming: app.cfg.Negotiation.DisableStreaming,
		Logger:           logger.Logger(),
		Metrics:          app.metrics,
	})
	booking := agent.New(app.provider, app.prefs, logger.Logger())

	orchCfg := negotiation.DefaultConfig()
	orchCfg.Metrics = app.metrics
	if app.cfg.Negotiation.MaxTurns > 0 {
		orchCfg.MaxTurns = app.cfg.Negotiation.MaxTurns
	}
	if app.cfg.Negotiation.OverallDeadlineSeconds > 0 {
		orchCfg.OverallDeadline = time.Duration(app.cfg.Negotiation.OverallDeadlineSeconds) * time.Second
	}
	orchestrator := negotiation.NewOrchestrator(transport, booking, orchCfg, logger.Logger())

	intent := agent.Intent{
		PartnerID:  c.Partner,
		DateWindow: c.Date,
		TimeWindow: c.Time,
		Duration:   c.Duration,
		Title:      c.Title,
	}

	result := orchestrator.Negotiate(context.Background(), c.Endpoint, intent,
		func(turn int, status negotiation.Status, message string) {
			fmt.Printf("[turn %d] %s: %s\n", turn, status, message)
		})

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	if !result.Success {
		return fmt.Errorf("negotiation failed: %s", result.Message)
	}
	return nil
}

type SlotsCmd struct {
	From     string `required:"" help:"Window start (ISO instant)."`
	To       string `required:"" help:"Window end (ISO instant)."`
	Duration string `help:"Meeting duration." default:"30m"`
}

func (c *SlotsCmd) Run(cli *CLI) error {
	app, err := buildApp(cli, false)
	if err != nil {
		return err
	}
	defer app.Close()

	from, err := tools.ParseInstant(c.From, time.UTC)
	if err != nil {
		return err
	}
	to, err := tools.ParseInstant(c.To, time.UTC)
	if err != nil {
		return err
	}

	slots, err := app.engine.AvailableSlots(from, to, c.Duration, app.prefs().BufferBetweenMeetings)
	if err != nil {
		return err
	}
	for _, slot := range slots {
		fmt.Printf("%s - %s (%dm)\n",
			slot.Start.Format(time.RFC3339), slot.End.Format(time.RFC3339), slot.DurationMinutes)
	}
	if len(slots) == 0 {
		fmt.Println("no available slots")
	}
	return nil
}

type EventsCmd struct {
	Status string `help:"Filter by status."`
}

func (c *EventsCmd) Run(cli *CLI) error {
	app, err := buildApp(cli, false)
	if err != nil {
		return err
	}
	defer app.Close()

	var events []*calendar.Event
	if c.Status != "" {
		status := calendar.Status(c.Status)
		if !status.Valid() {
			return fmt.Errorf("unknown status %q", c.Status)
		}
		events = app.engine.ByStatus(status)
	} else {
		events = app.engine.All()
	}

	for _, event := range events {
		fmt.Printf("%s  %s  %-9s  %s  %s\n",
			event.ID, event.Start.Format(time.RFC3339), event.Status, event.Duration, event.PartnerAgent)
	}
	if len(events) == 0 {
		fmt.Println("no events")
	}
	return nil
}

func main() {
	cli := &CLI{}
	kctx := kong.Parse(cli,
		kong.Name("convene"),
		kong.Description("Calendar negotiation agent."),
		kong.UsageOnError(),
	)

	logger.Init(logger.ParseLevel(cli.LogLevel), os.Stderr, cli.LogFormat)

	if err := kctx.Run(cli); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
