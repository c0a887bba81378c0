package cmd

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var randomCmd = &cobra.Command{
	Use:   "random",
	Short: "Pick a random catalog movie",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		e, err := appInstance.Engine(cmd.Context())
		if err != nil {
			return err
		}
		seed := uint64(time.Now().UnixNano())
		if cmd.Flags().Changed("seed") {
			seed, _ = cmd.Flags().GetUint64("seed")
		}
		m := e.Random(seed)
		fmt.Printf("%s %s (id %d)\n", color.CyanString("Surprise:"), m.Title, m.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(randomCmd)
	randomCmd.Flags().Uint64("seed", 0, "Seed for a reproducible pick")
}
