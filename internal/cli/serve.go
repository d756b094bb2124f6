package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harun/toolgate/pkg/gateway"
	"github.com/spf13/cobra"
)

const (
	tickInterval    = 30 * time.Second
	shutdownTimeout = 30 * time.Second
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the registered tools over JSON-RPC",
		Long: `Start the gateway: JSON-RPC 2.0 over HTTP (POST /rpc) and WebSocket
(/ws), with /metrics and /healthz. Runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime(cmd, opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			gw := rt.cfg.Gateway
			if cmd.Flags().Changed("host") {
				gw.Host = host
			}
			if cmd.Flags().Changed("port") {
				gw.Port = port
			}

			srv, err := gateway.NewServer(gateway.Config{
				Host:           gw.Host,
				Port:           gw.Port,
				SharedSecret:   gw.SharedSecret,
				AllowedOrigins: gw.AllowedOrigins,
				TickInterval:   tickInterval,
				Tools:          rt.registry,
				Metrics:        rt.metrics,
				Logger:         rt.logger,
			})
			if err != nil {
				return fmt.Errorf("failed to create gateway: %w", err)
			}

			if err := rt.registerTools(srv.ToolHooks()); err != nil {
				return err
			}
			if rt.metrics != nil {
				rt.metrics.ToolsRegistered.Set(float64(rt.registry.Count()))
			}

			if err := srv.Start(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "toolgate gateway listening on %s\n", srv.Addr())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Stop(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides gateway.host)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides gateway.port, 0 picks a free port)")
	return cmd
}
