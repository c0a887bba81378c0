package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"cinematch/internal/clix"
	"cinematch/internal/cluster"
	"cinematch/internal/pipeline"
	"cinematch/internal/report"
	"cinematch/internal/tasks"
)

var (
	clusterExport string
	clusterAsync  bool
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Cluster the vectorized catalog",
	Long: `Partitions the catalog built by 'catalog build' with k-means,
agglomerative or DBSCAN clustering and prints the size and sample titles
of every cluster.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return err
		}
		flags := cmd.Flags()

		cfg := appInstance.Config.ClusterConfig()
		cfg.Algorithm = clix.StringOverride(flags, "algorithm", cfg.Algorithm)
		cfg.KMeans.K = clix.IntOverride(flags, "k", cfg.KMeans.K)
		samples := clix.IntOverride(flags, "samples", appInstance.Config.Cluster.Samples)

		if _, err := appInstance.VectorizeNew(ctx); err != nil {
			return err
		}

		if clusterAsync {
			info, err := appInstance.JobClient.EnqueueCluster(ctx, tasks.ClusterPayload{Algorithm: cfg.Algorithm, K: cfg.KMeans.K})
			if err != nil {
				return err
			}
			fmt.Printf("%s cluster job %s on queue %s\n", color.GreenString("Enqueued"), info.ID, info.Queue)
			return nil
		}

		movies, _, err := appInstance.Store.LoadVectorizedCatalog(ctx)
		if err != nil {
			return err
		}
		rep, err := pipeline.ClusterCatalog(ctx, movies, cfg)
		if err != nil {
			return err
		}
		if err := appInstance.Store.RecordRun(ctx, &rep.Run); err != nil {
			log.Warnf("WARN: Failed to record run %s: %v", rep.Run.ID, err)
		} else if err := appInstance.Store.SaveClusterAssignment(ctx, rep.Run.ID, rep.Result.Assignment); err != nil {
			log.Warnf("WARN: Failed to save assignment of run %s: %v", rep.Run.ID, err)
		}

		a := rep.Result.Assignment
		fmt.Printf("Run %s: %s over %d movies, %d clusters, %d noise\n", rep.Run.ID, cfg.Algorithm, len(movies), a.Clusters, a.Noise)
		if cfg.Algorithm == cluster.AlgorithmKMeans && !rep.Result.Converged {
			fmt.Printf("%s k-means stopped after %d iterations without converging\n", color.YellowString("WARN"), rep.Result.Iterations)
		}
		fmt.Println()

		exp := rep.Experiment(movies, samples)
		report.ClusterTable(os.Stdout, exp.Clusters)

		if clusterExport != "" {
			if err := writeExperiment(clusterExport, exp); err != nil {
				return err
			}
			fmt.Printf("\nReport written to %s\n", clusterExport)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(clusterCmd)

	clusterCmd.Flags().String("algorithm", "", "kmeans, agglomerative or dbscan")
	clusterCmd.Flags().Int("k", 0, "Number of k-means clusters")
	clusterCmd.Flags().Int("samples", 0, "Sample titles shown per cluster")
	clusterCmd.Flags().StringVar(&clusterExport, "export", "", "Write the cluster report as YAML to this file ('-' for stdout)")
	clusterCmd.Flags().BoolVar(&clusterAsync, "async", false, "Enqueue the run for the background worker instead")
}
