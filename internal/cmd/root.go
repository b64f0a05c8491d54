// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/USA-RedDragon/configulator"
	"github.com/go-co-op/gocron/v2"
	"github.com/gobts/gobts/internal/btscontext"
	"github.com/gobts/gobts/internal/config"
	"github.com/gobts/gobts/internal/gsm/gsmtap"
	"github.com/gobts/gobts/internal/gsm/l1"
	"github.com/gobts/gobts/internal/gsm/l1/scheduler"
	"github.com/gobts/gobts/internal/gsm/mapping"
	"github.com/gobts/gobts/internal/gsm/radio/fake"
	"github.com/gobts/gobts/internal/logging"
	"github.com/gobts/gobts/internal/metrics"
	"github.com/gobts/gobts/internal/pprof"
	"github.com/gobts/gobts/internal/sip/dialog"
	"github.com/gobts/gobts/internal/sip/iface"
	"github.com/gobts/gobts/internal/sip/message"
	"github.com/gobts/gobts/internal/sip/transaction"
	"github.com/spf13/cobra"
	"github.com/ztrue/shutdown"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// NewCommand builds the gobts root command.
func NewCommand(version, commit string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "gobts",
		Version: fmt.Sprintf("%s - %s", version, commit),
		Annotations: map[string]string{
			"version": version,
			"commit":  commit,
		},
		RunE:              runRoot,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}
	return cmd
}

func runRoot(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	fmt.Printf("gobts - %s (%s)\n", cmd.Annotations["version"], cmd.Annotations["commit"])

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	logger := logging.Setup(cfg.LogLevel)

	scheduler, err := setupScheduler()
	if err != nil {
		return err
	}

	cleanup, err := setupTracing(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup tracing: %w", err)
	}
	defer func() {
		if err := cleanup(ctx); err != nil {
			slog.Error("Failed to shutdown tracer", "error", err)
		}
	}()

	if err := startBackgroundServices(cfg); err != nil {
		return err
	}

	btsCtx := btscontext.New(cfg.Radio)

	tap, err := gsmtap.New(cfg.GSMTAP)
	if err != nil {
		return fmt.Errorf("failed to start gsmtap: %w", err)
	}
	_ = tap // constructed but not passed to any L1 encoder or decoder

	l1Scheduler, uplinkScheduler, err := startL1(btsCtx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to start L1 scheduler: %w", err)
	}

	sipIface, err := startSIPInterface(cfg, btsCtx, logger)
	if err != nil {
		return fmt.Errorf("failed to start SIP interface: %w", err)
	}

	if err := scheduleDialogSweep(scheduler, sipIface); err != nil {
		return err
	}

	scheduler.Start()

	if err := btsCtx.MarkStarted(); err != nil {
		return fmt.Errorf("failed to mark context started: %w", err)
	}

	sipCtx, cancelSIP := context.WithCancel(ctx)
	sipErrCh := make(chan error, 1)
	go func() { sipErrCh <- sipIface.Run(sipCtx) }()

	l1Ctx, cancelL1 := context.WithCancel(ctx)
	go runL1Clock(l1Ctx, l1Scheduler, uplinkScheduler)

	setupShutdownHandlers(scheduler, cancelSIP, cancelL1, sipErrCh, btsCtx, cleanup)

	return nil
}

// loadConfig loads the configuration from the configulator instance bound
// to cmd's context.
func loadConfig(ctx context.Context) (*config.Config, error) {
	c, err := configulator.FromContext[config.Config](ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get config from context: %w", err)
	}
	cfg, err := c.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func setupScheduler() (gocron.Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return s, nil
}

// setupTracing initializes OpenTelemetry tracing if an OTLP endpoint is
// configured, otherwise it returns a no-op cleanup.
func setupTracing(cfg *config.Config) (func(context.Context) error, error) {
	if cfg.Metrics.OTLPEndpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	return initTracer(cfg)
}

func startBackgroundServices(cfg *config.Config) error {
	if err := metrics.CreateMetricsServer(cfg); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}
	if err := pprof.CreatePProfServer(cfg); err != nil {
		return fmt.Errorf("failed to start pprof server: %w", err)
	}
	return nil
}

// startL1 builds the downlink scheduler and uplink demultiplexer for the
// configured cell's BCCH, CCCH and one SDCCH/8 subchannel, bound to an
// in-memory loopback radio standing in for the RF front end
// (internal/gsm/radio defines that boundary but ships no real transceiver
// driver; see DESIGN.md). Only subchannel 0 is provisioned here: a full
// channel plan sized from cfg.Radio's configured ARFCNs is follow-on work.
func startL1(btsCtx *btscontext.Context, cfg *config.Config, logger *slog.Logger) (*scheduler.DownlinkScheduler, *scheduler.UplinkScheduler, error) {
	radio := fake.NewLoopback()
	btsCtx.Clock = radio.Clock()

	tsc := cfg.Radio.BSIC & 0x07

	down := scheduler.NewDownlinkScheduler(btsCtx.Clock, radio, logger)

	bcchGen := l1.NewBCCHGenerator(tsc, false, defaultSystemInformation())
	down.Register(&scheduler.Channel{
		Mapping: mapping.BCCH(),
		Encoder: &l1.BCCHChannel{Gen: bcchGen},
		TN:      0,
	})

	down.Register(&scheduler.Channel{
		Mapping: mapping.CCCH(),
		Encoder: &l1.CCCHChannel{Enc: l1.NewXCCHEncoder(tsc)},
		TN:      0,
	})

	down.Register(&scheduler.Channel{
		Mapping: mapping.SDCCH8(0),
		Encoder: &l1.CCCHChannel{Enc: l1.NewXCCHEncoder(tsc)},
		TN:      1,
	})

	up := scheduler.NewUplinkScheduler(radio, logger)
	up.Register(&scheduler.UplinkChannel{
		Mapping: mapping.SDCCH8(0),
		Decoder: &l1.XCCHChannel{
			Dec: l1.NewXCCHDecoder(),
			OnFrame: func(r l1.DecodeResult) {
				if r.Good {
					logger.Debug("sdcch: decoded uplink frame", "payload_len", len(r.Frame.Payload))
				}
			},
		},
		TN: 1,
	})

	return down, up, nil
}

// defaultSystemInformation returns empty SI payloads; a real deployment
// populates these from the cell's actual neighbor/routing configuration.
func defaultSystemInformation() map[l1.SIType][23]byte {
	return map[l1.SIType][23]byte{
		l1.SI1:  {},
		l1.SI2:  {},
		l1.SI3:  {},
		l1.SI4:  {},
		l1.SI13: {},
	}
}

// runL1Clock drives the downlink scheduler's Tick once per TDMA frame
// (4.615ms) until ctx is canceled, draining whatever the loopback radio
// echoed back through the uplink demultiplexer immediately afterward.
func runL1Clock(ctx context.Context, down *scheduler.DownlinkScheduler, up *scheduler.UplinkScheduler) {
	const frameDuration = 4615 * time.Microsecond
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			down.Clock.Advance()
			down.Tick(ctx)
			up.Pump()
		}
	}
}

// startSIPInterface opens the SIP UDP socket and attaches the resulting
// interface to btsCtx so the L1/L3 boundary can deliver DialogMessages.
func startSIPInterface(cfg *config.Config, btsCtx *btscontext.Context, logger *slog.Logger) (*iface.Interface, error) {
	addr := net.JoinHostPort(cfg.SIP.LocalIP, fmt.Sprintf("%d", cfg.SIP.LocalPort))
	timers := transaction.DefaultTimers()

	onOrigin := func(msg *message.Message, from *net.UDPAddr) {
		logger.Info("sip: new session origination", "method", msg.Method, "request_uri", msg.RequestURI, "from", from)
	}

	sipIface, err := iface.New(addr, timers, onOrigin, logger)
	if err != nil {
		return nil, err
	}
	btsCtx.SetSIPInterface(sipWriterAdapter{sipIface})
	return sipIface, nil
}

// sipWriterAdapter satisfies btscontext.SIPWriter over sip/iface.Interface
// without btscontext importing the sip package tree. The L1/L3 call
// control that will own tranID->dialog resolution and drive sip/dialog
// transitions from radio-side events is not yet built; until then this
// adapter rejects writes instead of guessing a destination.
type sipWriterAdapter struct {
	ifc *iface.Interface
}

func (a sipWriterAdapter) WriteDialogMessage(tranID string, msg any) error {
	return fmt.Errorf("sipWriterAdapter: call control for transaction %q not yet wired", tranID)
}

// scheduleDialogSweep registers a periodic job that runs the dialog map's
// Sweep. Both release predicates passed to it are constant true, so every
// dialog on the dead list is freed at the next sweep without checking its
// SIP timers or any L3 transaction; live dialogs that IsStuck reports are
// logged, not terminated.
func scheduleDialogSweep(s gocron.Scheduler, sipIface *iface.Interface) error {
	const sweepInterval = 5 * time.Second
	_, err := s.NewJob(
		gocron.DurationJob(sweepInterval),
		gocron.NewTask(func() {
			freed, stuck := sipIface.Dialogs().Sweep(
				func(*dialog.Dialog) bool { return true },
				func(*dialog.Dialog) bool { return true },
			)
			if freed > 0 {
				slog.Debug("sip: swept dead dialogs", "freed", freed)
			}
			for _, d := range stuck {
				slog.Warn("sip: dialog appears stuck", "call_id", d.CallID, "state", d.CurrentState())
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule dialog sweep: %w", err)
	}
	return nil
}

func setupShutdownHandlers(scheduler gocron.Scheduler, cancelSIP, cancelL1 context.CancelFunc, sipErrCh chan error, btsCtx *btscontext.Context, cleanup func(context.Context) error) {
	stop := func(sig os.Signal) {
		slog.Error("Shutting down due to signal", "signal", sig)
		wg := new(sync.WaitGroup)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := scheduler.StopJobs(); err != nil {
				slog.Error("Failed to stop scheduler jobs", "error", err)
			}
			if err := scheduler.Shutdown(); err != nil {
				slog.Error("Failed to stop scheduler", "error", err)
			}
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			cancelL1()
			cancelSIP()
			<-sipErrCh
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			const timeout = 5 * time.Second
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			if err := cleanup(ctx); err != nil {
				slog.Error("Failed to shutdown tracer", "error", err)
			}
		}()

		const timeout = 10 * time.Second
		c := make(chan struct{})
		go func() {
			defer close(c)
			wg.Wait()
		}()
		select {
		case <-c:
			if err := btsCtx.MarkStopped(); err != nil {
				slog.Error("Failed to mark context stopped", "error", err)
			}
			slog.Info("Shutdown safely completed")
			os.Exit(0)
		case <-time.After(timeout):
			slog.Error("Shutdown timed out")
			os.Exit(1)
		}
	}
	defer stop(syscall.SIGINT)

	shutdown.AddWithParam(stop)
	shutdown.Listen(syscall.SIGINT, syscall.SIGKILL, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
}

func initTracer(cfg *config.Config) (func(context.Context) error, error) {
	exporter, err := otlptrace.New(
		context.Background(),
		otlptracegrpc.NewClient(
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithEndpoint(cfg.Metrics.OTLPEndpoint),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	resources, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", "gobts"),
			attribute.String("library.language", "go"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace resources: %w", err)
	}

	otel.SetTracerProvider(
		sdktrace.NewTracerProvider(
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(resources),
		),
	)
	return exporter.Shutdown, nil
}
