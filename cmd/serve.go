package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"triage/internal/apihandlers"
)

var (
	serveAddr string // Listen address
	servePort string // Listen port
)

// shutdownTimeout bounds in-flight requests on SIGINT/SIGTERM.
const shutdownTimeout = 30 * time.Second

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the classification HTTP API",
	Long: `Starts an HTTP server exposing message classification via a JSON API:
POST /process-customer-message, POST /api/v1/messages and the async endpoints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		cfg := appInstance.Config

		if cfg.Server.Mode != "" {
			gin.SetMode(cfg.Server.Mode)
		}
		addr := serveAddr
		if !cmd.Flags().Changed("addr") && cfg.Server.Addr != "" {
			addr = cfg.Server.Addr
		}
		port := servePort
		if !cmd.Flags().Changed("port") && cfg.Server.Port != "" {
			port = cfg.Server.Port
		}

		router := apihandlers.NewRouter(apihandlers.NewAPIHandler(appInstance))
		srv := &http.Server{
			Addr:              net.JoinHostPort(addr, port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			log.Infof("Starting triage API server on http://%s (classifier: %s)", srv.Addr, appInstance.Classifier.Name())
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("failed to run API server: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		log.Info("Shutdown signal received, draining requests...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		log.Info("API server stopped.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "localhost", "Address to listen on (e.g., '0.0.0.0' for all interfaces)")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port to listen on")
}
