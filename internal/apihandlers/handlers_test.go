package apihandlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinematch/internal/app"
	"cinematch/internal/config"
	"cinematch/internal/models"
)

func setupRouter(t *testing.T, build bool) (*gin.Engine, *app.App, []models.Movie) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.Database.Primary.DSN = ":memory:"
	cfg.TMDB.APIKey = ""
	a, err := app.NewApp(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	movies := []models.Movie{
		{IMDBID: "tt1", Title: "Space One", Body: "Astronauts ride a rocket. They reach orbit. The galaxy waits."},
		{IMDBID: "tt2", Title: "Space Two", Body: "A rocket launch. Astronauts cross the galaxy."},
		{IMDBID: "tt3", Title: "Kitchen One", Body: "A chef cooks dinner from a recipe in the kitchen."},
	}
	_, err = a.Store.UpsertMovies(context.Background(), movies)
	require.NoError(t, err)
	if build {
		_, err = a.BuildCatalog(context.Background())
		require.NoError(t, err)
	}

	h, err := NewAPIHandler(a)
	require.NoError(t, err)
	r := gin.New()
	h.Register(r)
	return r, a, movies
}

func get(t *testing.T, r http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return w, body
}

func TestHealth(t *testing.T) {
	r, _, _ := setupRouter(t, false)
	w, body := get(t, r, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestListAndGetMovies(t *testing.T) {
	r, _, movies := setupRouter(t, false)

	w, body := get(t, r, "/api/v1/movies?limit=2")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), body["total"])
	assert.Len(t, body["data"], 2)

	w, body = get(t, r, "/api/v1/movies/"+itoa(movies[0].ID))
	require.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, "Space One", data["title"])
	assert.Equal(t, "Astronauts ride a rocket. They reach orbit.", data["synopsis"])

	w, body = get(t, r, "/api/v1/movies/999")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", body["code"])

	w, _ = get(t, r, "/api/v1/movies/abc")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = get(t, r, "/api/v1/movies?limit=many")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecommendationsRecordHistory(t *testing.T) {
	r, a, movies := setupRouter(t, true)

	w, body := get(t, r, "/api/v1/movies/"+itoa(movies[0].ID)+"/recommendations?n=1")
	require.Equal(t, http.StatusOK, w.Code, body)
	recs := body["data"].([]any)
	require.Len(t, recs, 1)
	assert.Equal(t, "Space Two", recs[0].(map[string]any)["title"])

	w, body = get(t, r, "/api/v1/recommend?title=space%20two&n=5")
	require.Equal(t, http.StatusOK, w.Code, body)
	assert.Len(t, body["data"], 2)

	w, body = get(t, r, "/api/v1/history")
	require.Equal(t, http.StatusOK, w.Code)
	hist := body["data"].([]any)
	require.Len(t, hist, 2)
	assert.Equal(t, "Space Two", hist[0].(map[string]any)["title"])
	assert.Len(t, a.History.Items(), 2)

	w, _ = get(t, r, "/api/v1/recommend?title=Nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = get(t, r, "/api/v1/movies/"+itoa(movies[0].ID)+"/recommendations?n=0")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecommendWithoutBuild(t *testing.T) {
	r, _, _ := setupRouter(t, false)
	w, _ := get(t, r, "/api/v1/random")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRandomIsSeeded(t *testing.T) {
	r, _, _ := setupRouter(t, true)
	_, first := get(t, r, "/api/v1/random?seed=9")
	_, second := get(t, r, "/api/v1/random?seed=9")
	assert.Equal(t, first["data"], second["data"])
}

func TestRuns(t *testing.T) {
	r, a, _ := setupRouter(t, false)
	run := &models.ExperimentRun{Kind: models.RunKindSentiment, Strategy: "sparse",
		Results: []models.ClassifierResult{{Model: "logistic", Accuracy: 0.75}}}
	require.NoError(t, a.Store.RecordRun(context.Background(), run))

	w, body := get(t, r, "/api/v1/runs")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["data"], 1)

	w, body = get(t, r, "/api/v1/runs/"+run.ID.String())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sparse", body["data"].(map[string]any)["strategy"])

	w, _ = get(t, r, "/api/v1/runs/not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func itoa(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
