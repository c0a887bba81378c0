package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"cinematch/internal/app"
	"cinematch/internal/models"
)

var detailsCmd = &cobra.Command{
	Use:   "details <id|title>",
	Short: "Look up a catalog movie on TMDB",
	Long: `Fetches rating, runtime, cast, genres, budget and the poster and trailer
links of a catalog movie from The Movie Database. Needs TMDB_API_KEY.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return err
		}
		if err := requireTMDB(appInstance); err != nil {
			return err
		}
		m, err := appInstance.FindMovie(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		d, err := appInstance.TMDB.Details(ctx, m.IMDBID)
		if err != nil {
			return err
		}
		trailer, err := appInstance.TMDB.TrailerURL(ctx, m.IMDBID)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			return err
		}

		bold := color.New(color.Bold).SprintFunc()
		fmt.Printf("%s", bold(d.Title))
		if d.Tagline != "" {
			fmt.Printf(" - %s", d.Tagline)
		}
		fmt.Print("\n\n")

		table := tablewriter.NewWriter(os.Stdout)
		table.SetBorder(false)
		table.SetColumnSeparator("")
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		table.SetAutoWrapText(false)
		rows := [][]string{
			{"Rating", fmt.Sprintf("%.1f (%d votes)", d.Rating, d.Votes)},
			{"Released", d.ReleaseDate},
			{"Runtime", strconv.Itoa(d.Runtime) + " min"},
			{"Genres", strings.Join(d.Genres, ", ")},
			{"Cast", strings.Join(d.Cast, ", ")},
			{"Languages", strings.Join(d.SpokenLanguages, ", ")},
			{"Budget", money(d.Budget)},
			{"Revenue", money(d.Revenue)},
			{"Poster", d.PosterURL},
			{"Trailer", trailer},
		}
		for _, r := range rows {
			if r[1] != "" {
				table.Append(r)
			}
		}
		table.Render()
		if d.Overview != "" {
			fmt.Printf("\n%s\n", d.Overview)
		}
		return nil
	},
}

var trendingCmd = &cobra.Command{
	Use:   "trending",
	Short: "Show this week's trending movies on TMDB",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		if err := requireTMDB(appInstance); err != nil {
			return err
		}
		n, _ := cmd.Flags().GetInt("n")
		top, err := appInstance.TMDB.Trending(cmd.Context(), n)
		if err != nil {
			return err
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"#", "Title", "Rating", "Poster"})
		table.SetBorder(false)
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		for i, t := range top {
			table.Append([]string{strconv.Itoa(i + 1), t.Title, fmt.Sprintf("%.1f", t.Rating), t.PosterURL})
		}
		table.Render()
		return nil
	},
}

func requireTMDB(a *app.App) error {
	if a.TMDB == nil {
		return fmt.Errorf("%w: TMDB is not configured, set TMDB_API_KEY", models.ErrConfiguration)
	}
	return nil
}

// money renders whole dollars with thousands separators; 0 means unknown.
func money(v int64) string {
	if v <= 0 {
		return ""
	}
	s := strconv.FormatInt(v, 10)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return "$" + b.String()
}

func init() {
	rootCmd.AddCommand(detailsCmd, trendingCmd)
	trendingCmd.Flags().Int("n", 5, "Number of trending movies")
}
