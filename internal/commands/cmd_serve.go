package commands

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/hay-kot/formrelay/internal/relay"
	"github.com/hay-kot/formrelay/internal/store/jsonfile"
	"github.com/hay-kot/formrelay/internal/telemetry"
	"github.com/hay-kot/formrelay/internal/web"
)

type ServeCmd struct {
	flags *Flags
}

// NewServeCmd creates a new serve command
func NewServeCmd(flags *Flags) *ServeCmd {
	return &ServeCmd{flags: flags}
}

// Register adds the serve command to the application
func (cmd *ServeCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "serve",
		Usage:     "Run the HTTP server and the datagram receiver",
		UsageText: "formrelay serve",
		Description: `Binds the HTTP and UDP sockets, then serves form submissions and appends
every received datagram to the record document until interrupted.`,
		Action: cmd.Run,
	})

	return app
}

// Run starts both loops and blocks until SIGINT/SIGTERM or an HTTP failure.
// A receiver failure is logged and leaves the HTTP server running.
func (cmd *ServeCmd) Run(ctx context.Context, c *cli.Command) error {
	cfg, err := cmd.flags.ValidConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	maxBody, err := cfg.MaxBodyBytes()
	if err != nil {
		return err
	}

	var (
		metrics     *telemetry.Metrics
		metricsPath string
	)
	if cfg.Metrics.Enabled {
		metrics = telemetry.New()
		metricsPath = cfg.Metrics.Path
	}

	store := jsonfile.New(cfg.Storage.Path).WithInPlaceWrites(cfg.Storage.InPlace)

	// Both sockets are bound before either loop starts so a busy port fails
	// the command immediately.
	conn, err := relay.Listen(cfg.DatagramAddress())
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.HTTPAddress())
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("listen http %s: %w", cfg.HTTPAddress(), err)
	}

	receiver := relay.NewReceiver(conn, store, log.With().Str("component", "receiver").Logger()).
		WithBufferSize(cfg.Datagram.BufferSize).
		WithPollInterval(cfg.Datagram.PollInterval).
		WithMetrics(metrics)

	sender := relay.NewSender(receiver.Addr().String(), log.With().Str("component", "sender").Logger()).
		WithMaxSize(cfg.Datagram.BufferSize).
		WithMetrics(metrics)

	srv := web.New(sender, web.NewAssets(cfg.Static.Dir), web.Options{
		Routes:          cfg.Static.Routes,
		NotFound:        cfg.Static.NotFound,
		MaxBody:         maxBody,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
		MetricsPath:     metricsPath,
	}, log.With().Str("component", "http").Logger(), metrics)

	log.Info().
		Str("http", ln.Addr().String()).
		Str("udp", receiver.Addr().String()).
		Str("storage", store.Path()).
		Msg("formrelay started")

	err = runLoops(ctx, func(ctx context.Context) error {
		return srv.Serve(ctx, ln)
	}, receiver.Run)
	if err != nil {
		return err
	}

	log.Info().Msg("formrelay stopped")
	return nil
}

// runLoops runs the HTTP and receiver loops until ctx is cancelled and waits
// for both. An HTTP failure stops the receiver and is returned. A receiver
// failure is logged and the HTTP loop keeps serving.
func runLoops(ctx context.Context, serveHTTP, receive func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return serveHTTP(gctx)
	})

	g.Go(func() error {
		if err := receive(gctx); err != nil {
			log.Error().Err(err).Msg("receiver stopped, submissions will no longer be stored")
		}
		return nil
	})

	return g.Wait()
}
