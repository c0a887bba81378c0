package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"cinematch/internal/models"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Push the stored catalog vectors to the pgvector index",
	Long: `Copies the vectors of the latest catalog fit from SQLite into the
PostgreSQL/pgvector index configured by database.vector.dsn. 'catalog build'
does this automatically; use index after configuring the DSN later.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return err
		}
		if appInstance.VectorIndex == nil {
			return fmt.Errorf("%w: database.vector.dsn is not set", models.ErrConfiguration)
		}
		movies, fit, err := appInstance.Store.LoadVectorizedCatalog(ctx)
		if err != nil {
			return err
		}
		if err := appInstance.VectorIndex.Upsert(ctx, fit.ID, movies); err != nil {
			return err
		}
		fmt.Printf("%s %d vectors of fit %s (%s)\n", color.GreenString("Indexed"), len(movies), fit.ID, fit.Kind)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
