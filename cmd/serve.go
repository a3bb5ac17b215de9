package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/kanban/internal/api"
	"github.com/joescharf/kanban/internal/events"
	"github.com/joescharf/kanban/internal/prefs"
	"github.com/joescharf/kanban/internal/watch"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start an HTTP server with the board, ticket, git and preferences API.

GET /api/events streams preference, workspace and sync events as
Server-Sent Events; workspace events come from a file watcher on the
tracked roots. By default it listens on port 8080. Use --port to change it.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRun(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().IntP("port", "p", 8080, "port to listen on")
	_ = viper.BindPFlag("port", serveCmd.Flags().Lookup("port"))
	rootCmd.AddCommand(serveCmd)
}

func serveRun(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, shutdownSignals()...)
	defer stop()

	s, err := getStore()
	if err != nil {
		return err
	}

	bus := events.NewBus(events.DefaultBuffer)
	deps := newSyncService(ctx, s, bus)
	defer deps.Close()

	opts := []api.Option{
		api.WithEvents(bus),
		api.WithPreferences(prefs.NewStore(viper.GetString("prefs_path"), bus)),
		api.WithLLM(newLLMClient()),
	}
	if deps.history != nil {
		opts = append(opts, api.WithHistory(deps.history))
	}
	srv := api.NewServer(s, deps.service, opts...)

	watcher := watch.New(s.Root(), s.TrackedRoots(), bus)
	go func() {
		if err := watcher.Run(ctx); err != nil {
			slog.Warn("workspace watcher stopped", "error", err)
		}
	}()

	// Requests inherit ctx so event streams end on shutdown.
	addr := fmt.Sprintf(":%d", viper.GetInt("port"))
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()
	ui.Info("Serving API for %s at http://localhost%s", s.Root(), addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	ui.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
