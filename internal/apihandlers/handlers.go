package apihandlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"cinematch/internal/app"
	"cinematch/internal/models"
	"cinematch/internal/textnorm"
)

const synopsisSentences = 2

type APIHandler struct {
	App       *app.App
	segmenter *textnorm.Segmenter
}

func NewAPIHandler(a *app.App) (*APIHandler, error) {
	seg, err := textnorm.NewSegmenter()
	if err != nil {
		return nil, err
	}
	return &APIHandler{App: a, segmenter: seg}, nil
}

// Register mounts every route on r.
func (h *APIHandler) Register(r gin.IRouter) {
	r.GET("/health", h.Health)

	v1 := r.Group("/api/v1")
	{
		movies := v1.Group("/movies")
		{
			movies.GET("", h.ListMovies)
			movies.GET("/:id", h.GetMovie)
			movies.GET("/:id/recommendations", h.MovieRecommendations)
		}
		v1.GET("/recommend", h.RecommendByTitle)
		v1.GET("/random", h.Random)
		v1.GET("/history", h.History)
		v1.GET("/runs", h.ListRuns)
		v1.GET("/runs/:id", h.GetRun)
	}
}

func (h *APIHandler) Health(c *gin.Context) {
	if err := h.App.Store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", models.ErrValidation, key, raw)
	}
	return v, nil
}

func pagination(c *gin.Context) (limit, offset int, err error) {
	if limit, err = queryInt(c, "limit", 50); err != nil {
		return 0, 0, err
	}
	if offset, err = queryInt(c, "offset", 0); err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

func movieID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid movie id %q", models.ErrValidation, c.Param("id"))
	}
	return id, nil
}

func (h *APIHandler) ListMovies(c *gin.Context) {
	limit, offset, err := pagination(c)
	if err != nil {
		Fail(c, err)
		return
	}
	ctx := c.Request.Context()
	movies, err := h.App.Store.ListMovies(ctx, limit, offset)
	if err != nil {
		Fail(c, err)
		return
	}
	total, err := h.App.Store.CountMovies(ctx)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": movies, "total": total, "limit": limit, "offset": offset})
}

type movieDetail struct {
	models.Movie
	Synopsis  string `json:"synopsis,omitempty"`
	PosterURL string `json:"poster_url,omitempty"`
}

func (h *APIHandler) GetMovie(c *gin.Context) {
	id, err := movieID(c)
	if err != nil {
		Fail(c, err)
		return
	}
	ctx := c.Request.Context()
	m, err := h.App.Store.GetMovie(ctx, id)
	if err != nil {
		Fail(c, err)
		return
	}
	resp := movieDetail{Movie: *m, Synopsis: h.segmenter.Lead(textnorm.StripHTML(m.Body), synopsisSentences)}
	if h.App.TMDB != nil && m.IMDBID != "" {
		poster, err := h.App.TMDB.PosterURL(ctx, m.IMDBID)
		if err != nil {
			log.Debugf("No poster for %s: %v", m.IMDBID, err)
		}
		resp.PosterURL = poster
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (h *APIHandler) MovieRecommendations(c *gin.Context) {
	id, err := movieID(c)
	if err != nil {
		Fail(c, err)
		return
	}
	m, err := h.App.Store.GetMovie(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	h.recommend(c, *m)
}

func (h *APIHandler) RecommendByTitle(c *gin.Context) {
	title := c.Query("title")
	if title == "" {
		BadRequest(c, "title query parameter is required")
		return
	}
	e, err := h.App.Engine(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	m, err := e.Lookup(title)
	if err != nil {
		Fail(c, err)
		return
	}
	h.recommend(c, m)
}

// recommend records the view of m and answers with its nearest movies.
func (h *APIHandler) recommend(c *gin.Context, m models.Movie) {
	n, err := queryInt(c, "n", h.App.Config.Recommend.N)
	if err != nil {
		Fail(c, err)
		return
	}
	ctx := c.Request.Context()
	recs, err := h.App.Recommend(ctx, m.ID, n)
	if err != nil {
		Fail(c, err)
		return
	}
	if err := h.App.RecordView(ctx, m); err != nil {
		log.Warnf("WARN: Failed to record view of movie %d: %v", m.ID, err)
	}
	c.JSON(http.StatusOK, gin.H{"movie": m, "data": recs})
}

func (h *APIHandler) Random(c *gin.Context) {
	seed := uint64(time.Now().UnixNano())
	if raw := c.Query("seed"); raw != "" {
		s, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			BadRequest(c, fmt.Sprintf("seed must be an unsigned integer, got %q", raw))
			return
		}
		seed = s
	}
	e, err := h.App.Engine(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": e.Random(seed)})
}

func (h *APIHandler) History(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.App.History.Items()})
}

func (h *APIHandler) ListRuns(c *gin.Context) {
	limit, offset, err := pagination(c)
	if err != nil {
		Fail(c, err)
		return
	}
	runs, err := h.App.Store.ListRuns(c.Request.Context(), limit, offset)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": runs})
}

func (h *APIHandler) GetRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		BadRequest(c, fmt.Sprintf("invalid run id %q", c.Param("id")))
		return
	}
	ctx := c.Request.Context()
	run, err := h.App.Store.GetRun(ctx, id)
	if err != nil {
		Fail(c, err)
		return
	}
	resp := gin.H{"data": run}
	if run.Kind == models.RunKindCluster {
		if a, err := h.App.Store.GetClusterAssignment(ctx, id); err == nil {
			resp["assignment"] = a
		}
	}
	c.JSON(http.StatusOK, resp)
}
