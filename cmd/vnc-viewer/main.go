package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"vnc-viewer/internal/metrics"
	"vnc-viewer/pkg/config"
	"vnc-viewer/pkg/rfb"
	"vnc-viewer/pkg/vnc"
)

var (
	// Connection flags
	configFile  string
	endpoint    string
	username    string
	password    string
	shared      bool
	tlsEnabled  bool
	tlsInsecure bool

	// Behavior flags
	reconnectDelay time.Duration
	maxReconnects  int
	once           bool
	metricsAddr    string

	// Logging flags
	verbose bool
	debug   bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vnc-viewer",
	Short: "Headless VNC viewer client",
	Long: `VNC Viewer - headless RFB client

Connects to a VNC server over native TCP or WebSocket, performs the RFB
handshake (versions 3.3, 3.7, 3.8, with optional VNC password
authentication), and streams framebuffer updates into an in-memory
framebuffer. Useful for monitoring remote consoles, driving screenshot
pipelines, and testing VNC endpoints.`,
	Example: `  # Stream from a local QEMU VNC server:
  vnc-viewer --endpoint 127.0.0.1:5900

  # Password-authenticated server with TLS:
  vnc-viewer --endpoint vnc://10.0.0.5:5901 --password secret --tls

  # OpenBMC KVM console over WebSocket:
  vnc-viewer --endpoint wss://bmc.example.com/kvm/0 --username admin --password secret

  # Grab one full update and exit:
  vnc-viewer --endpoint 127.0.0.1:5900 --once`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if endpoint == "" && configFile == "" {
			return fmt.Errorf("either --endpoint or --config is required")
		}
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.RunE = runViewer
	rootCmd.Flags().StringVar(&configFile, "config", "", "Path to YAML configuration file")
	rootCmd.Flags().StringVar(&endpoint, "endpoint", "", "VNC endpoint (host:port, vnc://, ws:// or wss:// URL)")
	rootCmd.Flags().StringVar(&username, "username", "", "HTTP Basic Auth username (WebSocket endpoints)")
	rootCmd.Flags().StringVar(&password, "password", "", "VNC password (omit for no authentication)")
	rootCmd.Flags().BoolVar(&shared, "shared", true, "Request shared access (don't kick other clients)")
	rootCmd.Flags().BoolVar(&tlsEnabled, "tls", false, "Enable TLS for native VNC connections")
	rootCmd.Flags().BoolVar(&tlsInsecure, "tls-insecure", false, "Skip TLS certificate verification (only with --tls)")
	rootCmd.Flags().DurationVar(&reconnectDelay, "reconnect-delay", 3*time.Second, "Delay between reconnection attempts (0 disables)")
	rootCmd.Flags().IntVar(&maxReconnects, "max-reconnects", 0, "Maximum reconnection attempts (0 = unlimited)")
	rootCmd.Flags().BoolVar(&once, "once", false, "Exit after the first complete framebuffer update")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9091)")

	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging (info level)")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging (most detailed)")
}

func runViewer(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}
	cfg.Log.ConfigureZerolog()

	log.Info().
		Str("endpoint", cfg.Viewer.Endpoint).
		Bool("has_password", cfg.Viewer.Password != "").
		Bool("shared", cfg.Viewer.Shared).
		Msg("VNC viewer starting")

	if cfg.Metrics.Enabled {
		srv := metrics.Serve(cfg.Metrics.Addr)
		defer srv.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ep := &vnc.Endpoint{
		Endpoint: cfg.Viewer.Endpoint,
		Username: cfg.Viewer.Username,
		Password: cfg.Viewer.Password,
	}
	if cfg.Viewer.TLS.Enabled {
		ep.TLS = &vnc.TLSConfig{
			Enabled:            true,
			InsecureSkipVerify: cfg.Viewer.TLS.InsecureSkipVerify,
		}
	}

	var rectCount int
	session, err := vnc.NewSession(vnc.SessionConfig{
		Endpoint:       ep,
		Shared:         cfg.Viewer.Shared,
		ReconnectDelay: cfg.Viewer.ReconnectDelay,
		MaxReconnects:  cfg.Viewer.MaxReconnects,
		OnRectangle: func(rect rfb.Rectangle) {
			rectCount++
			log.Debug().
				Uint16("x", rect.X).
				Uint16("y", rect.Y).
				Uint16("width", rect.Width).
				Uint16("height", rect.Height).
				Msg("Rectangle decoded")
			if once {
				cancel()
			}
		},
		OnStatus: func(status vnc.Status, err error) {
			evt := log.Info()
			if err != nil {
				evt = log.Warn().Err(err)
			}
			evt.Str("status", status.String()).Msg("Connection status changed")
		},
		OnBell: func() {
			log.Info().Msg("Server bell")
		},
	})
	if err != nil {
		return err
	}

	err = session.Run(ctx)

	received, consumed, buffered := session.Stats()
	log.Info().
		Int("rectangles", rectCount).
		Uint64("bytes_received", received).
		Uint64("bytes_consumed", consumed).
		Uint64("bytes_buffered", buffered).
		Msg("VNC viewer stopped")

	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// buildConfig merges the optional config file with command line flags.
// Flags that were set explicitly win over file values.
func buildConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	if endpoint != "" {
		cfg.Viewer.Endpoint = endpoint
	}
	if username != "" {
		cfg.Viewer.Username = username
	}
	if password != "" {
		cfg.Viewer.Password = password
	}
	if rootCmd.Flags().Changed("shared") {
		cfg.Viewer.Shared = shared
	}
	if rootCmd.Flags().Changed("reconnect-delay") {
		cfg.Viewer.ReconnectDelay = reconnectDelay
	}
	if rootCmd.Flags().Changed("max-reconnects") {
		cfg.Viewer.MaxReconnects = maxReconnects
	}
	if tlsEnabled {
		cfg.Viewer.TLS.Enabled = true
		cfg.Viewer.TLS.InsecureSkipVerify = tlsInsecure
	}
	if metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = metricsAddr
	}
	if verbose && cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if debug {
		cfg.Log.Debug = true
	}

	if cfg.Viewer.Endpoint == "" {
		return nil, fmt.Errorf("no VNC endpoint configured")
	}
	return cfg, nil
}
