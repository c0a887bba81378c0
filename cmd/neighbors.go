package cmd

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"cinematch/internal/clix"
	"cinematch/internal/report"
)

var neighborsOutput string

var neighborsCmd = &cobra.Command{
	Use:   "neighbors",
	Short: "Export the top-k neighbors of every catalog movie as NDJSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return err
		}
		k := clix.IntOverride(cmd.Flags(), "k", appInstance.Config.Recommend.NeighborsK)
		e, err := appInstance.Engine(ctx)
		if err != nil {
			return err
		}
		docs, err := e.Neighbors(ctx, k, time.Now().UTC())
		if err != nil {
			return err
		}

		w, err := createOutput(neighborsOutput)
		if err != nil {
			return err
		}
		if err := report.WriteNDJSON(w, docs); err != nil {
			w.Close()
			return err
		}
		if err := w.Close(); err != nil {
			return err
		}
		if neighborsOutput != "-" {
			fmt.Printf("Wrote neighbors of %d movies to %s\n", len(docs), neighborsOutput)
		}
		log.Debugf("Neighbor export: k=%d, movies=%d", k, len(docs))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(neighborsCmd)
	neighborsCmd.Flags().Int("k", 0, "Neighbors per movie (default recommend.neighbors_k)")
	neighborsCmd.Flags().StringVarP(&neighborsOutput, "output", "o", "-", "Output file ('-' for stdout)")
}
