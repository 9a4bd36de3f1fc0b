package commands

import (
	"context"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nfcemu/nfcemu/internal/adaptor"
	"github.com/nfcemu/nfcemu/internal/console"
	"github.com/nfcemu/nfcemu/internal/controller"
	"github.com/nfcemu/nfcemu/internal/logger"
	"github.com/nfcemu/nfcemu/internal/mmio"
	"github.com/nfcemu/nfcemu/internal/re"
	"github.com/nfcemu/nfcemu/internal/tag"
	"github.com/nfcemu/nfcemu/internal/telemetry"
	"github.com/nfcemu/nfcemu/pkg/config"
	"github.com/nfcemu/nfcemu/pkg/metrics"
	metricsprom "github.com/nfcemu/nfcemu/pkg/metrics/prometheus"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the nfcemu controller",
	Long: `Start the nfcemu NFC controller emulator.

The controller runs in the foreground and drives its register-block
interface and operator console (stdio or a Unix socket) until interrupted.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/nfcemu/config.yaml.

Examples:
  # Start with the default config
  nfcemu start

  # Start with a custom config file
  nfcemu start --config /etc/nfcemu/config.yaml

  # Override log level via environment variable
  NFCEMU_LOGGING_LEVEL=DEBUG nfcemu start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "nfcemu",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "nfcemu",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	} else {
		logger.Info("Telemetry disabled")
	}

	var nciMetrics metrics.NCIMetrics
	var llcpMetrics metrics.LLCPMetrics
	var snepMetrics metrics.SNEPMetrics
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		nciMetrics = metrics.NewNCIMetrics()
		llcpMetrics = metrics.NewLLCPMetrics()
		snepMetrics = metrics.NewSNEPMetrics()

		addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
		if err := metricsprom.StartServer(ctx, addr, logger.Info); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
	} else {
		logger.Info("Metrics disabled")
	}

	ctrl := controller.New(controller.Callbacks{
		LogMsg: func(format string, args ...any) { logger.Info(fmt.Sprintf(format, args...)) },
		LogErr: func(format string, args ...any) { logger.Error(fmt.Sprintf(format, args...)) },
	})

	endpoints, err := buildEndpoints(cfg.Endpoints, llcpMetrics, snepMetrics)
	if err != nil {
		return fmt.Errorf("failed to build endpoints from config: %w", err)
	}
	for _, ep := range endpoints {
		ctrl.AddEndpoint(ep)
	}
	logger.Info("Endpoints registered", "count", len(endpoints))

	a := adaptor.Init(ctrl, adaptor.Callbacks{
		LogMsg:  func(format string, args ...any) { logger.Info(fmt.Sprintf(format, args...)) },
		LogErr:  func(format string, args ...any) { logger.Error(fmt.Sprintf(format, args...)) },
		Metrics: nciMetrics,
	})

	dev, closeDev, err := openRegisterDevice(cfg, a)
	if err != nil {
		return err
	}
	defer closeDev()
	ctrl.SetSendNtf(dev.StageNtfn)

	if cfg.Console.Enabled {
		if err := runConsole(ctx, cfg, ctrl, dev); err != nil {
			return err
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("nfcemu is running. Press Ctrl+C to stop.")
	<-sigCh
	signal.Stop(sigCh)
	logger.Info("Shutdown signal received, stopping")
	cancel()

	return nil
}

// buildEndpoints constructs the controller's remote-endpoint table from
// the static config, wiring each endpoint's tag (for tag-kind protocols)
// or its SNEP/LLCP metrics (for the nfc-dep peer).
func buildEndpoints(cfgEndpoints []config.EndpointConfig, llcpMetrics metrics.LLCPMetrics, snepMetrics metrics.SNEPMetrics) ([]*re.Endpoint, error) {
	endpoints := make([]*re.Endpoint, 0, len(cfgEndpoints))
	for i, ec := range cfgEndpoints {
		nfcid1, err := decodeHexField(ec.NFCID1)
		if err != nil {
			return nil, fmt.Errorf("endpoint %d: nfcid1: %w", i, err)
		}
		nfcid3, err := decodeHexField(ec.NFCID3)
		if err != nil {
			return nil, fmt.Errorf("endpoint %d: nfcid3: %w", i, err)
		}
		ndef, err := decodeHexField(ec.NDEF)
		if err != nil {
			return nil, fmt.Errorf("endpoint %d: ndef: %w", i, err)
		}

		if ec.Kind == "nfc-dep" {
			ep := re.New(re.ProtocolNFCDEP, "F-listen", nfcid1, nfcid3)
			ep.SetMetrics(llcpMetrics, snepMetrics)
			endpoints = append(endpoints, ep)
			continue
		}

		kind, err := tag.ParseKind(ec.Kind)
		if err != nil {
			return nil, fmt.Errorf("endpoint %d: %w", i, err)
		}
		t, err := tag.NewTag(kind, nfcid1)
		if err != nil {
			return nil, fmt.Errorf("endpoint %d: new tag: %w", i, err)
		}
		if len(ndef) > 0 {
			if err := t.SetNDEF(ndef); err != nil {
				return nil, fmt.Errorf("endpoint %d: preload ndef: %w", i, err)
			}
		}

		proto := tagProtocol(kind)
		ep := re.New(proto, "A-poll", nfcid1, nil)
		ep.Tag = t
		endpoints = append(endpoints, ep)
	}
	return endpoints, nil
}

func tagProtocol(kind tag.Kind) re.Protocol {
	switch kind {
	case tag.KindT1T:
		return re.ProtocolT1T
	case tag.KindT2T:
		return re.ProtocolT2T
	case tag.KindT3T:
		return re.ProtocolT3T
	default:
		return re.ProtocolISODEP
	}
}

func decodeHexField(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return hex.DecodeString(s)
}

// openRegisterDevice constructs the MMIO register device per cfg.Register,
// returning a close func that persists a snapshot if one is configured.
func openRegisterDevice(cfg *config.Config, a *adaptor.Adaptor) (*mmio.Device, func(), error) {
	logf := func(format string, args ...any) { logger.Debug(fmt.Sprintf(format, args...)) }

	var dev *mmio.Device
	var err error
	if cfg.Register.Backing == "mmap" {
		dev, err = mmio.OpenMappedDevice(cfg.Register.Path, a, logf)
		if err != nil {
			return nil, nil, fmt.Errorf("open mapped register device: %w", err)
		}
	} else {
		dev = mmio.NewMemDevice(a, logf)
	}

	if cfg.Register.SnapshotPath != "" {
		if f, err := os.Open(cfg.Register.SnapshotPath); err == nil {
			if err := dev.Load(f); err != nil {
				logger.Warn("failed to load register snapshot", "path", cfg.Register.SnapshotPath, "error", err)
			}
			_ = f.Close()
		}
	}

	closeFn := func() {
		if cfg.Register.SnapshotPath != "" {
			if f, err := os.Create(cfg.Register.SnapshotPath); err == nil {
				if err := dev.Save(f); err != nil {
					logger.Warn("failed to save register snapshot", "path", cfg.Register.SnapshotPath, "error", err)
				}
				_ = f.Close()
			}
		}
		if err := dev.Close(); err != nil {
			logger.Warn("failed to close register device", "error", err)
		}
	}

	return dev, closeFn, nil
}

// runConsole starts the operator console per cfg.Console.Listen: "stdio"
// runs one console bound to the process's own stdin/stdout, "unix:<path>"
// accepts a console connection per client on a Unix socket.
func runConsole(ctx context.Context, cfg *config.Config, ctrl *controller.Controller, dev *mmio.Device) error {
	logf := func(format string, args ...any) { logger.Info(fmt.Sprintf(format, args...)) }

	if cfg.Console.Listen == "" || cfg.Console.Listen == "stdio" {
		c := console.New(ctrl, dev, os.Stdout, logf)
		go func() {
			if err := c.Run(os.Stdin); err != nil {
				logger.Error("console exited", "error", err)
			}
		}()
		return nil
	}

	socketPath, ok := trimUnixPrefix(cfg.Console.Listen)
	if !ok {
		return fmt.Errorf("console.listen must be \"stdio\" or \"unix:<path>\", got %q", cfg.Console.Listen)
	}

	_ = os.Remove(socketPath)
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on console socket %s: %w", socketPath, err)
	}
	logger.Info("Console listening", "socket", socketPath)

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			c := console.New(ctrl, dev, conn, logf)
			go func() {
				defer func() { _ = conn.Close() }()
				if err := c.Run(conn); err != nil {
					logger.Debug("console connection closed", "error", err)
				}
			}()
		}
	}()

	return nil
}

func trimUnixPrefix(listen string) (string, bool) {
	const prefix = "unix:"
	if len(listen) <= len(prefix) || listen[:len(prefix)] != prefix {
		return "", false
	}
	return listen[len(prefix):], true
}
