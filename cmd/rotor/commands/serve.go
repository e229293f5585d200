package commands

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/systmms/rotor/internal/rotation/health"
	"github.com/systmms/rotor/internal/rotation/notifications"
)

// NewServeCommand creates the serve command.
func NewServeCommand(opts *Options) *cobra.Command {
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the rotation engine",
		Long: `Start the scheduler: recover persisted schedules, arm their timers,
run the overdue and retention sweepers, and serve Prometheus metrics
until interrupted.`,
		Example: `  # Run with the default config
  rotor serve

  # Run with metrics on a specific port
  rotor serve --listen :9465`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			health.InitMetrics()
			notifications.InitMetrics()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			rt, err := buildRuntime(ctx, opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.Scheduler.Recover(ctx); err != nil {
				return err
			}
			rt.Scheduler.StartSweepers(ctx)

			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok\n"))
			})
			server := &http.Server{Addr: listenAddr, Handler: mux}
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					opts.Logger.Error("Metrics server: %v", err)
				}
			}()

			opts.Logger.Info("rotor serving (%d timer(s) armed, metrics on %s)",
				rt.Scheduler.ScheduledCount(), listenAddr)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			select {
			case sig := <-sigCh:
				opts.Logger.Info("Received %s, shutting down", sig)
			case <-ctx.Done():
			}

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			server.Shutdown(shutdownCtx)
			return nil
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", ":9465", "Metrics listen address")
	return cmd
}
