package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the stores, Redis and optional services",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to get app instance: %w", err)
		}
		ok := color.GreenString("ok")
		failed := 0
		report := func(name string, err error) {
			if err != nil {
				failed++
				fmt.Printf("%-14s %s (%v)\n", name, color.RedString("failed"), err)
				return
			}
			fmt.Printf("%-14s %s\n", name, ok)
		}

		report("sqlite", appInstance.Store.Ping(ctx))

		if appInstance.VectorIndex != nil {
			report("pgvector", appInstance.VectorIndex.Ping(ctx))
		} else {
			fmt.Printf("%-14s %s\n", "pgvector", color.YellowString("not configured"))
		}

		inspector := asynq.NewInspector(appInstance.RedisOpt())
		_, err = inspector.Queues()
		inspector.Close()
		report("redis", err)

		if fit, err := appInstance.Store.LatestFit(ctx); err != nil {
			fmt.Printf("%-14s %s\n", "catalog fit", color.YellowString("none, run 'catalog build'"))
		} else {
			fmt.Printf("%-14s %s (%s, %d dims, %s)\n", "catalog fit", ok, fit.Kind, fit.Dimension, fit.ID)
		}

		if appInstance.TMDB == nil {
			fmt.Printf("%-14s %s\n", "tmdb", color.YellowString("no api key"))
		} else {
			fmt.Printf("%-14s %s\n", "tmdb", ok)
		}

		if failed > 0 {
			return fmt.Errorf("%d checks failed", failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
