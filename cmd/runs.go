package cmd

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"cinematch/internal/classifier"
	"cinematch/internal/clix"
	"cinematch/internal/models"
	"cinematch/internal/report"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded experiment and cluster runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return err
		}
		page, err := clix.ParsePagination(cmd.Flags())
		if err != nil {
			return err
		}
		runs, err := appInstance.Store.ListRuns(ctx, page.Limit, page.Offset)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"ID", "Kind", "Strategy", "Started", "Duration", "Best"})
		table.SetBorder(false)
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		for _, r := range runs {
			best := ""
			if full, err := appInstance.Store.GetRun(ctx, r.ID); err == nil && len(full.Results) > 0 {
				res := full.Results[classifier.Best(full.Results)]
				best = fmt.Sprintf("%s %.4f", res.Model, res.Accuracy)
			}
			table.Append([]string{
				r.ID.String(), r.Kind, r.Strategy,
				r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				r.Duration.Round(time.Millisecond).String(), best,
			})
		}
		table.Render()
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the results of one run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return err
		}
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("%w: invalid run id %q", models.ErrValidation, args[0])
		}
		run, err := appInstance.Store.GetRun(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("Run %s (%s, %s) started %s, took %s\n\n", run.ID, run.Kind, run.Strategy,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"), run.Duration)

		if run.Kind != models.RunKindCluster {
			report.ClassifierTable(os.Stdout, run.Results, nil)
			return nil
		}
		a, err := appInstance.Store.GetClusterAssignment(ctx, id)
		if err != nil {
			return err
		}
		movies, err := appInstance.AllMovies(ctx)
		if err != nil {
			return err
		}
		titles := make(map[int64]string, len(movies))
		for _, m := range movies {
			titles[m.ID] = m.Title
		}
		report.ClusterTable(os.Stdout, report.SummarizeClusters(*a, titles, appInstance.Config.Cluster.Samples))
		return nil
	},
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List background jobs and their status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return err
		}
		page, err := clix.ParsePagination(cmd.Flags())
		if err != nil {
			return err
		}
		jobs, err := appInstance.Store.ListJobs(ctx, page.Limit, page.Offset)
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			fmt.Println("No jobs recorded.")
			return nil
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"#", "Job ID", "Type", "Queue", "Status", "Updated"})
		table.SetBorder(false)
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		for _, j := range jobs {
			table.Append([]string{
				strconv.FormatInt(j.ID, 10), j.JobID.String(), j.TaskType, j.Queue,
				statusColor(j.Status), j.UpdatedAt.Local().Format("2006-01-02 15:04:05"),
			})
		}
		table.Render()
		return nil
	},
}

func init() {
	clix.AddPaginationFlags(runsCmd.Flags(), 20)
	clix.AddPaginationFlags(jobsCmd.Flags(), 20)
	runsCmd.AddCommand(runsShowCmd, jobsCmd)
	rootCmd.AddCommand(runsCmd)
}
