package cmd

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"cinematch/internal/app"
	"cinematch/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "cinematch",
	Short: "Movie review sentiment benchmarks and content-based recommendations",
	Long: `cinematch benchmarks text classifiers on labeled movie reviews, clusters a
movie catalog by its text and recommends similar titles.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := app.ConfigureLogging(cfg.Log.Level); err != nil {
			return err
		}

		appInstance, err := app.NewApp(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize app: %w", err)
		}
		cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		appInstance, ok := cmd.Context().Value(appKey).(*app.App)
		if !ok || appInstance == nil {
			return nil
		}
		if err := appInstance.Close(); err != nil {
			log.Warnf("WARN: %v", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ./config.yaml)")
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type contextKey string

const appKey contextKey = "app"

// GetAppFromContext returns the App built by PersistentPreRunE.
func GetAppFromContext(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application instance not found in context")
	}
	return appInstance, nil
}
