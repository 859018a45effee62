package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"testrelay-portal/controller"
	"testrelay-portal/models"
	"testrelay-portal/utils"
	"testrelay-portal/utils/logger"
	"testrelay-portal/worker"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var configDir string

var rootCmd = &cobra.Command{
	Use:   "testrelay-portal",
	Short: "Session gateway for the recruiter and candidate portals",
	Long: `testrelay-portal owns the identity session of a portal instance. It resolves
the API claims of the signed-in principal, provisions them when they are missing,
and forwards GraphQL operations with a token that carries them.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the session gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig()
		if err != nil {
			return err
		}
		return serve(cmd.Context(), config)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the gateway version",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), utils.PrintPrettyJSON(map[string]string{
			"name":    config.AppName,
			"version": config.AppVersion,
			"portal":  config.Portal,
			"env":     config.AppEnv,
		}))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "directory containing config.json (default: search . and ./configs)")
	rootCmd.AddCommand(serveCmd, versionCmd)
}

func loadConfig() (*models.Config, error) {
	if configDir != "" {
		return utils.LoadFrom(configDir)
	}
	return utils.GetConfig()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatal(err)
	}
}

func serve(ctx context.Context, config *models.Config) error {
	appLogger := logger.NewLogger(config.LogLevel, config.LogFormat)
	appLogger.Debugf("Config loaded: portal=%s store=%s graphql=%s", config.Portal, config.SelectionStore, config.GraphQLURL)

	if config.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	c, svc, err := controller.NewController(ctx, config, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize gateway: %w", err)
	}
	defer svc.Close()

	r := gin.New()
	c.RegisterRoutes(r, config.BasePath)

	if config.WorkerEnabled {
		sessionWorker, err := worker.NewService(config, svc.GetHub(), svc.GetSessionBridge(), appLogger)
		if err != nil {
			return fmt.Errorf("failed to create session worker: %w", err)
		}
		if err := sessionWorker.StartInBackground(); err != nil {
			return fmt.Errorf("failed to start session worker: %w", err)
		}
		defer func() {
			if err := sessionWorker.Stop(); err != nil {
				appLogger.Errorf("Failed to stop session worker: %v", err)
			}
		}()
	}

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", config.AppHost, config.AppPort),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLogger.Infof("%s (%s portal) listening on %s", config.AppName, config.Portal, server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	appLogger.Info("Shutting down gateway")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
