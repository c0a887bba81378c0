package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"cinematch/internal/apihandlers"
	"cinematch/internal/clix"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the recommendation HTTP API",
	Long: `Starts an HTTP server exposing the catalog, recommendations, viewing
history and recorded runs under /api/v1.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		cfg := appInstance.Config

		gin.SetMode(cfg.Server.Mode)
		router := gin.New()
		router.Use(gin.Logger(), gin.Recovery())

		apiHandler, err := apihandlers.NewAPIHandler(appInstance)
		if err != nil {
			return err
		}
		apiHandler.Register(router)

		addr := clix.StringOverride(cmd.Flags(), "addr", cfg.Server.Address)
		srv := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

		errCh := make(chan error, 1)
		go func() {
			log.Infof("Starting cinematch API server on %s", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("failed to run API server: %w", err)
			}
		case <-shutdown:
			log.Infof("Shutdown signal received, stopping API server")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown API server: %w", err)
		}
		log.Infof("API server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (default server.address)")
}
