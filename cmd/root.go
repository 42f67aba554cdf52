package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"efd/config"
	"efd/logging"
)

var (
	v          = config.New()
	cfg        *config.Config
	configPath string
)

func execute(ctx context.Context) error {
	root := &cobra.Command{
		Use:          "efd",
		Short:        "Browse the Ethereum friend directory",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(v, configPath)
			if err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
	}

	d := config.DefaultConfig()
	flags := root.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "config file (yaml, json or toml)")
	flags.String("bridge", d.BridgeURL, "wallet bridge websocket URL, empty for read-only")
	flags.String("rpc", d.FallbackRPCURL, "read-only node used when no wallet is reachable")
	flags.String("deployments", d.Deployments, "extra contract deployments file (json or yaml)")
	flags.Duration("dial-timeout", d.DialTimeout, "timeout for connecting to the bridge or node")
	flags.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	flags.Bool("log-json", d.Log.JSON, "log as JSON instead of console text")
	flags.String("log-file", d.Log.File, "write logs to this file")

	for key, flag := range map[string]string{
		"bridge_url":       "bridge",
		"fallback_rpc_url": "rpc",
		"deployments":      "deployments",
		"dial_timeout":     "dial-timeout",
		"log.level":        "log-level",
		"log.json":         "log-json",
		"log.file":         "log-file",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return err
		}
	}

	root.AddCommand(browseCmd(), lookupCmd(), networksCmd(), serveCmd())
	return root.ExecuteContext(ctx)
}

// setupLogging points the process logger at w, or at the configured log
// file as well when one is set. The returned func closes the file.
func setupLogging(w io.Writer) (func(), error) {
	closer := func() {}
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		closer = func() { f.Close() }
		if w == nil {
			w = f
		} else {
			w = io.MultiWriter(w, f)
		}
	}
	if err := logging.Init(cfg.Log.Level, cfg.Log.JSON, w); err != nil {
		closer()
		return nil, err
	}
	return closer, nil
}
