package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/itcctvonlinetif-sudo/BillTracker/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the reminder scheduler",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("listen", "l", "", "Listen address (default from config)")
	serveCmd.Flags().Bool("no-scheduler", false, "Serve the API without sending reminders")
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := initApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.store.Close()

	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		a.cfg.Server.Listen = listen
	}
	noScheduler, _ := cmd.Flags().GetBool("no-scheduler")

	apiServer := server.NewServer(server.Deps{
		Store:     a.store,
		Scheduler: a.scheduler,
		Channels:  a.channels,
		Alerts:    a.alerts,
		Clock:     a.clock,
		Location:  a.scheduler.Location(),
	}, a.logger)

	readTimeout, _ := time.ParseDuration(a.cfg.Server.ReadTimeout)
	if readTimeout == 0 {
		readTimeout = 30 * time.Second
	}
	writeTimeout, _ := time.ParseDuration(a.cfg.Server.WriteTimeout)
	if writeTimeout == 0 {
		writeTimeout = 30 * time.Second
	}

	srv := &http.Server{
		Addr:         a.cfg.Server.Listen,
		Handler:      apiServer.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	if !noScheduler {
		if err := a.scheduler.Start(context.Background()); err != nil {
			return err
		}
		defer a.scheduler.Stop()
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server started", "listen", a.cfg.Server.Listen)
		fmt.Fprintf(os.Stderr, "BillTracker listening on %s\n", a.cfg.Server.Listen)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-quit:
		a.logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	a.logger.Info("server stopped")
	return nil
}
