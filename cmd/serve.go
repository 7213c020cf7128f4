package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iksnae/session-vault/internal"
	"github.com/iksnae/session-vault/internal/server"
)

// shutdownTimeout bounds how long in-flight requests may take after a signal
const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Serve the session API over HTTP until interrupted. SIGINT and SIGTERM
trigger a graceful shutdown that lets in-flight requests finish.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		proc, err := newProcessor()
		if err != nil {
			return err
		}

		logger := internal.Logger()
		opts := []server.Option{
			server.WithLogger(logger),
			server.WithProcessor(proc),
			server.WithMaxContentBytes(cfg.Server.MaxContentBytes),
		}
		if rl := cfg.Server.RateLimit; rl.Enabled {
			opts = append(opts, server.WithRateLimiter(server.NewRateLimiter(server.RateLimiterConfig{
				RequestsPerSecond: rl.RequestsPerSecond,
				Burst:             rl.Burst,
				Logger:            logger,
			})))
		}
		srv := server.New(st, opts...)

		ln, err := net.Listen("tcp", cfg.Server.Addr())
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", cfg.Server.Addr(), err)
		}
		internal.PrintInfo(cmd.OutOrStdout(), fmt.Sprintf("Listening on http://%s (search: %s)", ln.Addr(), st.Capability()))

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return srv.Serve(ln)
		})
		g.Go(func() error {
			<-gctx.Done()
			logger.Info("shutting down", zap.Duration("timeout", shutdownTimeout))
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		if err := g.Wait(); err != nil {
			return err
		}
		internal.PrintSuccess(cmd.OutOrStdout(), "Server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "", "Listen host (overrides server.host)")
	serveCmd.Flags().Int("port", 0, "Listen port (overrides server.port)")
}
