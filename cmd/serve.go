package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"efd/logging"
)

func serveCmd() *cobra.Command {
	var socketPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a session and expose it to a frontend over IPC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			closeLog, err := setupLogging(nil)
			if err != nil {
				return err
			}
			defer closeLog()

			eng, err := newEngine(cfg)
			if err != nil {
				return err
			}
			defer eng.Close()

			listener, err := ipcListen(socketPath)
			if err != nil {
				return err
			}
			defer ipcCleanup(socketPath)

			ctrl := eng.controller()
			server := newIpcServer(ctrl, eng.registry, logging.WithComponent("ipc"))

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				err := ctrl.Run(ctx)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
			g.Go(func() error {
				return server.Serve(ctx, listener)
			})
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&socketPath, "ipc", defaultIPCPath, "unix socket or named pipe to listen on")
	return cmd
}
