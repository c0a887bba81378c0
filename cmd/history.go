package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently viewed movies",
	Long:  `Lists the movies most recently passed to 'recommend', newest first.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		views := appInstance.History.Items()
		if len(views) == 0 {
			fmt.Println("No viewing history found.")
			return nil
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"#", "Movie ID", "Title", "Viewed At"})
		table.SetBorder(false)
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		for i, v := range views {
			table.Append([]string{
				strconv.Itoa(i + 1),
				strconv.FormatInt(v.MovieID, 10),
				v.Title,
				v.ViewedAt.Local().Format("2006-01-02 15:04:05"),
			})
		}
		table.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
}
