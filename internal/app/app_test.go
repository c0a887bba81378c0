package app

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinematch/internal/config"
	"cinematch/internal/models"
	"cinematch/internal/store"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.Database.Primary.DSN = ":memory:"
	cfg.TMDB.APIKey = ""

	a, err := NewApp(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func seed(t *testing.T, a *App) []models.Movie {
	t.Helper()
	movies := []models.Movie{
		{IMDBID: "tt1", Title: "Space One", Body: "astronaut rocket orbit galaxy"},
		{IMDBID: "tt2", Title: "Space Two", Body: "rocket galaxy astronaut launch"},
		{IMDBID: "tt3", Title: "Kitchen One", Body: "chef recipe kitchen dinner"},
		{IMDBID: "tt4", Title: "Kitchen Two", Body: "dinner chef kitchen dessert"},
	}
	_, err := a.Store.UpsertMovies(context.Background(), movies)
	require.NoError(t, err)
	return movies
}

func TestNewAppOptionalServices(t *testing.T) {
	a := newTestApp(t)
	assert.Nil(t, a.VectorIndex)
	assert.Nil(t, a.Embedder)
	assert.Nil(t, a.TMDB)
	assert.NotNil(t, a.JobClient)
}

func TestEngineRequiresBuild(t *testing.T) {
	a := newTestApp(t)
	seed(t, a)
	_, err := a.Engine(context.Background())
	assert.ErrorIs(t, err, store.ErrNoFit)
}

func TestBuildCatalogAndRecommend(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t)
	movies := seed(t, a)

	build, err := a.BuildCatalog(ctx)
	require.NoError(t, err)
	assert.Len(t, build.Movies, 4)

	recs, err := a.Recommend(ctx, movies[0].ID, 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Space Two", recs[0].Title)

	e, err := a.Engine(ctx)
	require.NoError(t, err)
	assert.Equal(t, build.Extractor.FitID(), e.FitID())
}

func TestMoviesImportedAfterBuildUseSavedFit(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t)
	seed(t, a)
	build, err := a.BuildCatalog(ctx)
	require.NoError(t, err)

	late := []models.Movie{{IMDBID: "tt5", Title: "Space Three", Body: "astronaut galaxy orbit mission"}}
	_, err = a.Store.UpsertMovies(ctx, late)
	require.NoError(t, err)
	a.ResetEngine()

	recs, err := a.Recommend(ctx, late[0].ID, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Contains(t, []string{"Space One", "Space Two"}, recs[0].Title)

	e, err := a.Engine(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, e.Len())
	assert.Equal(t, build.Extractor.FitID(), e.FitID(), "late movies must not trigger a refit")

	n, err := a.VectorizeNew(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestVectorizeNewWithoutBuild(t *testing.T) {
	a := newTestApp(t)
	seed(t, a)
	_, err := a.VectorizeNew(context.Background())
	assert.ErrorIs(t, err, store.ErrNoFit)
}

func TestRecordViewSkipsRepeats(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t)
	movies := seed(t, a)

	require.NoError(t, a.RecordView(ctx, movies[0]))
	require.NoError(t, a.RecordView(ctx, movies[0]))
	require.NoError(t, a.RecordView(ctx, movies[1]))

	views, err := a.Store.RecentViews(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, views, 2)
	items := a.History.Items()
	require.Len(t, items, 2)
	assert.Equal(t, movies[1].ID, items[0].MovieID)
}

func TestConfigureLogging(t *testing.T) {
	assert.NoError(t, ConfigureLogging("debug"))
	assert.ErrorIs(t, ConfigureLogging("loud"), models.ErrConfiguration)
}

func TestFindMovie(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t)
	movies := seed(t, a)

	m, err := a.FindMovie(ctx, "kitchen two")
	require.NoError(t, err)
	assert.Equal(t, movies[3].ID, m.ID)

	m, err = a.FindMovie(ctx, strconv.FormatInt(movies[1].ID, 10))
	require.NoError(t, err)
	assert.Equal(t, "Space Two", m.Title)

	_, err = a.FindMovie(ctx, "Nope")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
