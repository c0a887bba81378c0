package cmd

import (
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"cinematch/internal/clix"
	"cinematch/internal/report"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend <id|title>",
	Short: "Recommend movies similar to one catalog movie",
	Long: `Scores every other catalog movie by cosine similarity to the given one
and prints the top N. The movie is added to the recently-viewed history.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return err
		}
		n := clix.IntOverride(cmd.Flags(), "n", appInstance.Config.Recommend.N)

		m, err := appInstance.FindMovie(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		recs, err := appInstance.Recommend(ctx, m.ID, n)
		if err != nil {
			return err
		}
		if err := appInstance.RecordView(ctx, m); err != nil {
			log.Warnf("WARN: Failed to record view of %q: %v", m.Title, err)
		}

		fmt.Printf("Because you viewed %s:\n\n", m.Title)
		report.RecommendationTable(os.Stdout, recs)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(recommendCmd)
	recommendCmd.Flags().Int("n", 0, "Number of recommendations (default recommend.n)")
}
