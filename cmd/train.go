package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"cinematch/internal/clix"
	"cinematch/internal/pipeline"
	"cinematch/internal/report"
	"cinematch/internal/tasks"
)

var (
	trainExport string
	trainAsync  bool
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Benchmark the classifiers on the labeled review corpus",
	Long: `Loads the review corpus, splits it into train and test sets, fits the
configured feature extractor on the training half and reports accuracy,
precision, recall and F1 for every classifier.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return err
		}
		flags := cmd.Flags()

		opts := appInstance.SentimentOptions()
		opts.CorpusPath = clix.StringOverride(flags, "corpus", opts.CorpusPath)
		opts.Features.Strategy = clix.StringOverride(flags, "strategy", opts.Features.Strategy)
		if names := clix.ParseList(flags, "classifiers"); len(names) > 0 {
			opts.Classifiers = names
		}
		if flags.Changed("seed") {
			opts.Seed, _ = flags.GetUint64("seed")
		}
		if flags.Changed("test-ratio") {
			opts.TestRatio, _ = flags.GetFloat64("test-ratio")
		}
		if opts.CorpusPath == "" {
			return fmt.Errorf("no corpus given: set corpus.path or pass --corpus")
		}

		if trainAsync {
			seed := opts.Seed
			info, err := appInstance.JobClient.EnqueueExperiment(ctx, tasks.ExperimentPayload{
				CorpusPath:  opts.CorpusPath,
				Strategy:    opts.Features.Strategy,
				Classifiers: opts.Classifiers,
				Seed:        &seed,
			})
			if err != nil {
				return err
			}
			fmt.Printf("%s experiment job %s on queue %s\n", color.GreenString("Enqueued"), info.ID, info.Queue)
			return nil
		}

		rep, err := pipeline.RunSentiment(ctx, opts, appInstance.Embedder)
		if err != nil {
			return err
		}
		if err := appInstance.Store.RecordRun(ctx, &rep.Run); err != nil {
			log.Warnf("WARN: Failed to record run %s: %v", rep.Run.ID, err)
		}

		fmt.Printf("Run %s: %s features, %d dimensions, %d train / %d test documents\n\n",
			rep.Run.ID, rep.Run.Strategy, rep.Dimension, rep.Train, rep.Test)
		report.ClassifierTable(os.Stdout, rep.Results, func(s string) string { return color.New(color.FgGreen, color.Bold).Sprint(s) })

		if trainExport != "" {
			if err := writeExperiment(trainExport, rep.Experiment()); err != nil {
				return err
			}
			fmt.Printf("\nReport written to %s\n", trainExport)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().String("corpus", "", "Path to the labeled review corpus (csv, tsv, jsonl)")
	trainCmd.Flags().String("strategy", "", "Feature extractor: sparse, dense or remote")
	trainCmd.Flags().String("classifiers", "", "Comma separated classifier names (default: all applicable)")
	trainCmd.Flags().Uint64("seed", 0, "Random seed for the split, extractor and classifiers")
	trainCmd.Flags().Float64("test-ratio", 0, "Fraction of documents held out for testing")
	trainCmd.Flags().StringVar(&trainExport, "export", "", "Write the experiment report as YAML to this file ('-' for stdout)")
	trainCmd.Flags().BoolVar(&trainAsync, "async", false, "Enqueue the run for the background worker instead")
}
