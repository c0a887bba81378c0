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

	"cinematch/internal/clix"
	"cinematch/internal/corpus"
	"cinematch/internal/store"
	"cinematch/internal/textnorm"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the movie catalog",
}

var catalogImportCmd = &cobra.Command{
	Use:   "import [file.csv]",
	Short: "Import movies from a CSV file",
	Long: `Reads a catalog CSV (imdb_id, original_title, director, genres, body by
default; see catalog.columns) and upserts every row. Rows are matched by
IMDb id, or by title when the id is empty. Once the catalog has been built,
new and changed movies are vectorized with the existing fit.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return err
		}
		path := appInstance.Config.Catalog.Path
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			return fmt.Errorf("no catalog file given: set catalog.path or pass a file")
		}

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open catalog: %w", err)
		}
		defer f.Close()
		movies, err := corpus.LoadCatalog(f, appInstance.Config.CatalogColumns())
		if err != nil {
			return err
		}
		n, err := appInstance.Store.UpsertMovies(ctx, movies)
		if err != nil {
			return err
		}
		fmt.Printf("%s %d movies from %s\n", color.GreenString("Imported"), n, path)

		added, err := appInstance.VectorizeNew(ctx)
		switch {
		case errors.Is(err, store.ErrNoFit):
			fmt.Println("Run 'cinematch catalog build' to vectorize them.")
		case err != nil:
			return err
		case added > 0:
			fmt.Printf("%s %d new or changed movies with the existing fit\n", color.GreenString("Vectorized"), added)
		}
		return nil
	},
}

var catalogBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Fit the feature extractor on the catalog and store every vector",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		build, err := appInstance.BuildCatalog(cmd.Context())
		if err != nil {
			return err
		}
		ext := build.Extractor
		fmt.Printf("%s %d movies with %s (fit %s, %d dimensions)\n",
			color.GreenString("Vectorized"), len(build.Movies), ext.Name(), ext.FitID(), ext.Dimension())
		if appInstance.VectorIndex != nil {
			fmt.Println("Vectors pushed to the pgvector index.")
		}
		return nil
	},
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog movies",
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
		movies, err := appInstance.Store.ListMovies(ctx, page.Limit, page.Offset)
		if err != nil {
			return err
		}
		if len(movies) == 0 {
			fmt.Println("No movies found.")
			return nil
		}
		total, err := appInstance.Store.CountMovies(ctx)
		if err != nil {
			return err
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"ID", "IMDb", "Title", "Director", "Genres"})
		table.SetBorder(false)
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		for _, m := range movies {
			table.Append([]string{strconv.FormatInt(m.ID, 10), m.IMDBID, m.Title, m.Director, m.Genres})
		}
		table.Render()
		fmt.Printf("Displayed %d of %d movies.\n", len(movies), total)
		return nil
	},
}

var catalogShowCmd = &cobra.Command{
	Use:   "show <id|title>",
	Short: "Show one catalog movie",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return err
		}
		m, err := appInstance.FindMovie(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		seg, err := textnorm.NewSegmenter()
		if err != nil {
			return err
		}

		bold := color.New(color.Bold).SprintFunc()
		fmt.Printf("%s %s\n", bold("Title:"), m.Title)
		fmt.Printf("%s %d\n", bold("ID:"), m.ID)
		if m.IMDBID != "" {
			fmt.Printf("%s %s\n", bold("IMDb:"), m.IMDBID)
		}
		if m.Director != "" {
			fmt.Printf("%s %s\n", bold("Director:"), m.Director)
		}
		if m.Genres != "" {
			fmt.Printf("%s %s\n", bold("Genres:"), strings.ReplaceAll(m.Genres, ",", ", "))
		}
		if lead := seg.Lead(textnorm.StripHTML(m.Body), 3); lead != "" {
			fmt.Printf("%s %s\n", bold("Synopsis:"), lead)
		}
		return nil
	},
}

func init() {
	clix.AddPaginationFlags(catalogListCmd.Flags(), 20)

	catalogCmd.AddCommand(catalogImportCmd, catalogBuildCmd, catalogListCmd, catalogShowCmd)
	rootCmd.AddCommand(catalogCmd)
}
