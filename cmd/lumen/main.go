package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cooldogedev/lumen"
	"github.com/cooldogedev/lumen/api"
	"github.com/cooldogedev/lumen/metrics"
	"github.com/cooldogedev/lumen/protocol"
	"github.com/cooldogedev/lumen/server"
	"github.com/cooldogedev/lumen/transport"
	"github.com/cooldogedev/lumen/util"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "lumen",
		Short:         "A proxy for Minecraft: Java Edition",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(runCmd(), versionsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the proxy",
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if debug {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

			opts := util.DefaultOpts()
			if configPath != "" {
				loaded, err := util.LoadOpts(configPath)
				if err != nil {
					return err
				}
				opts = loaded
			}
			return run(opts, logger)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the YAML configuration file")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")
	return cmd
}

func versionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "versions",
		Short: "Print the supported protocol versions",
		Run: func(cmd *cobra.Command, args []string) {
			for _, v := range protocol.SupportedVersions() {
				fmt.Printf("  %-20s %d\n", v.Name(), v.Protocol())
			}
		},
	}
}

func run(opts *util.Opts, logger *slog.Logger) error {
	var discovery server.Discovery = server.NewStaticDiscovery(opts.Server, opts.FallbackServer)
	if len(opts.ForcedHosts) > 0 {
		discovery = server.NewForcedHostDiscovery(opts.ForcedHosts, discovery)
	}

	t, err := transport.ByName(opts.Transport, logger)
	if err != nil {
		return err
	}

	proxy, err := lumen.NewProxy(discovery, logger, opts, t)
	if err != nil {
		return err
	}
	if err := proxy.Listen(); err != nil {
		return err
	}

	if opts.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(opts.MetricsAddr, mux); err != nil {
				logger.Error("failed to serve metrics", "err", err)
			}
		}()
	}

	if opts.APIAddr != "" {
		a := api.NewAPI(proxy.Registry(), logger, api.NewSecretBasedAuthentication(opts.Token))
		if err := a.Listen(opts.APIAddr); err != nil {
			_ = proxy.Close()
			return err
		}
		defer a.Close()

		go func() {
			for {
				if err := a.Accept(); err != nil {
					if !errors.Is(err, net.ErrClosed) {
						logger.Error("failed to accept api connection", "err", err)
					}
					return
				}
			}
		}()
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signals
		logger.Info("shutting down")
		_ = proxy.Close()
	}()

	for {
		if _, err := proxy.Accept(); err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			logger.Error("failed to accept session", "err", err)
		}
	}
}
