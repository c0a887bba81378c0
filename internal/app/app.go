// Package app wires configuration, stores and services into one App shared
// by the CLI commands, the HTTP API and the worker.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"cinematch/internal/config"
	"cinematch/internal/features"
	"cinematch/internal/models"
	"cinematch/internal/pipeline"
	"cinematch/internal/recommend"
	"cinematch/internal/store"
	"cinematch/internal/store/primary"
	"cinematch/internal/store/vector"
	"cinematch/internal/tmdb"
	"cinematch/internal/worker"
)

const catalogPage = 500

type App struct {
	Config *config.Config

	Store store.PrimaryStore
	// VectorIndex is nil unless database.vector.dsn is set.
	VectorIndex store.VectorIndex
	JobClient   store.JobClient
	// Embedder is nil unless features.strategy is remote.
	Embedder features.Embedder
	// TMDB is nil without an api key.
	TMDB    *tmdb.Client
	History *recommend.History

	mu     sync.Mutex
	engine *recommend.Engine
}

// ConfigureLogging applies log.level to the global logrus logger.
func ConfigureLogging(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("%w: log.level: %v", models.ErrConfiguration, err)
	}
	log.SetLevel(lvl)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stderr)
	return nil
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, History: recommend.NewHistory(cfg.Recommend.HistorySize)}

	if err := a.initPrimaryStore(ctx); err != nil {
		return nil, err
	}
	if err := a.initVectorIndex(ctx); err != nil {
		a.cleanupPartialInit()
		return nil, err
	}
	if err := a.initEmbedder(ctx); err != nil {
		a.cleanupPartialInit()
		return nil, err
	}
	if err := a.initJobClient(); err != nil {
		a.cleanupPartialInit()
		return nil, err
	}
	a.initTMDB()
	a.loadHistory(ctx)

	log.Debugf("Application initialization complete")
	return a, nil
}

func (a *App) initPrimaryStore(ctx context.Context) error {
	ps, err := primary.NewPrimaryStore(ctx, a.Config.Database.Primary.DSN)
	if err != nil {
		return fmt.Errorf("init primary store: %w", err)
	}
	a.Store = ps
	return nil
}

func (a *App) initVectorIndex(ctx context.Context) error {
	dsn := a.Config.Database.Vector.DSN
	if dsn == "" {
		log.Debugf("No vector store DSN configured, similarity queries use the in-memory scan")
		return nil
	}
	vs, err := vector.NewStore(ctx, dsn)
	if err != nil {
		return fmt.Errorf("init vector store: %w", err)
	}
	a.VectorIndex = vs
	return nil
}

func (a *App) initEmbedder(ctx context.Context) error {
	f := a.Config.Features
	if f.Strategy != features.StrategyRemote {
		return nil
	}
	switch f.Remote.Provider {
	case features.ProviderOpenAI:
		e, err := features.NewOpenAIEmbedder(f.Remote.OpenaiApiKey, f.Remote.Model)
		if err != nil {
			return err
		}
		a.Embedder = e
	case features.ProviderGemini:
		e, err := features.NewGeminiEmbedder(ctx, f.Remote.GeminiApiKey, f.Remote.Model)
		if err != nil {
			return err
		}
		a.Embedder = e
	default:
		return fmt.Errorf("%w: unknown embedding provider %q", models.ErrConfiguration, f.Remote.Provider)
	}
	return nil
}

func (a *App) initJobClient() error {
	jc, err := store.NewAsynqJobClient(a.RedisOpt(), a.Store)
	if err != nil {
		return fmt.Errorf("init job client: %w", err)
	}
	a.JobClient = jc
	return nil
}

func (a *App) initTMDB() {
	t := a.Config.TMDB
	c, err := tmdb.New(tmdb.Config{
		APIKey:            t.APIKey,
		BaseURL:           t.BaseURL,
		ImageBaseURL:      t.ImageBaseURL,
		Timeout:           t.Timeout,
		RequestsPerSecond: t.RequestsPerSecond,
		MaxRetries:        t.MaxRetries,
	})
	if err != nil {
		log.Debugf("TMDB lookups disabled: %v", err)
		return
	}
	a.TMDB = c
}

func (a *App) loadHistory(ctx context.Context) {
	views, err := a.Store.RecentViews(ctx, a.History.Capacity())
	if err != nil {
		log.Warnf("WARN: Failed to load view history: %v", err)
		return
	}
	// RecentViews is newest first; Load wants oldest first.
	oldest := make([]models.ViewEvent, len(views))
	for i, v := range views {
		oldest[len(views)-1-i] = v
	}
	a.History.Load(oldest)
}

func (a *App) RedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     a.Config.Redis.Address,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	}
}

// SentimentOptions builds the benchmark options from configuration.
func (a *App) SentimentOptions() pipeline.SentimentOptions {
	c := a.Config
	return pipeline.SentimentOptions{
		CorpusPath:  c.Corpus.Path,
		Load:        c.LoadOptions(),
		TestRatio:   c.Corpus.TestRatio,
		Seed:        c.Seed,
		Normalize:   c.Normalize,
		Features:    c.FeatureConfig(),
		Classifiers: c.Classifiers.Names,
		Classifier:  c.ClassifierConfig(),
		Parallel:    c.Classifiers.Parallel,
	}
}

func (a *App) CatalogOptions() pipeline.CatalogOptions {
	return pipeline.CatalogOptions{
		Seed:      a.Config.Seed,
		Normalize: a.Config.Normalize,
		Features:  a.Config.FeatureConfig(),
	}
}

func (a *App) WorkerDeps() worker.Deps {
	return worker.Deps{
		Runs:      a.Store,
		Jobs:      a.Store,
		Catalog:   a.Store,
		Embedder:  a.Embedder,
		Sentiment: a.SentimentOptions(),
		Cluster:   a.Config.ClusterConfig(),
	}
}

// AllMovies pages through the whole catalog in ID order.
func (a *App) AllMovies(ctx context.Context) ([]models.Movie, error) {
	var out []models.Movie
	for offset := 0; ; offset += catalogPage {
		page, err := a.Store.ListMovies(ctx, catalogPage, offset)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < catalogPage {
			return out, nil
		}
	}
}

// BuildCatalog vectorizes every stored movie with a fresh fit, persists the
// fit and, when configured, pushes the vectors to the pgvector index.
func (a *App) BuildCatalog(ctx context.Context) (*pipeline.CatalogBuild, error) {
	movies, err := a.AllMovies(ctx)
	if err != nil {
		return nil, err
	}
	build, err := pipeline.BuildCatalog(ctx, movies, a.CatalogOptions(), a.Embedder)
	if err != nil {
		return nil, err
	}
	fit := &models.ExtractorFit{
		ID:        build.Extractor.FitID(),
		Kind:      build.Extractor.Name(),
		Dimension: build.Extractor.Dimension(),
		Snapshot:  build.Snapshot,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.Store.SaveFit(ctx, fit, build.Movies); err != nil {
		return nil, err
	}
	if a.VectorIndex != nil {
		if err := a.VectorIndex.Upsert(ctx, fit.ID, build.Movies); err != nil {
			log.Warnf("WARN: Failed to update vector index: %v", err)
		}
	}
	a.ResetEngine()
	return build, nil
}

// VectorizeNew transforms the movies imported or edited since the latest
// build with that build's fit, so they join the catalog without a refit.
// It returns how many movies were vectorized.
func (a *App) VectorizeNew(ctx context.Context) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n, err := a.vectorizeNew(ctx)
	if n > 0 {
		a.engine = nil
	}
	return n, err
}

// vectorizeNew expects a.mu to be held.
func (a *App) vectorizeNew(ctx context.Context) (int, error) {
	fit, err := a.Store.LatestFit(ctx)
	if err != nil {
		return 0, err
	}
	pending, err := a.Store.UnvectorizedMovies(ctx, fit.ID)
	if err != nil || len(pending) == 0 {
		return 0, err
	}
	vectorized, err := pipeline.ApplyFit(ctx, pending, fit.Snapshot, a.Config.Normalize, a.Embedder)
	if err != nil {
		return 0, err
	}
	if err := a.Store.AddVectors(ctx, fit.ID, vectorized); err != nil {
		return 0, err
	}
	if a.VectorIndex != nil {
		movies, _, err := a.Store.LoadVectorizedCatalog(ctx)
		if err == nil {
			err = a.VectorIndex.Upsert(ctx, fit.ID, movies)
		}
		if err != nil {
			log.Warnf("WARN: Failed to update vector index: %v", err)
		}
	}
	return len(vectorized), nil
}

// Engine returns the recommendation engine over the latest fit, loading it
// on first use. Movies added since the build are vectorized first.
func (a *App) Engine(ctx context.Context) (*recommend.Engine, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.engine != nil {
		return a.engine, nil
	}
	if n, err := a.vectorizeNew(ctx); err != nil && !errors.Is(err, store.ErrNoFit) {
		log.Warnf("WARN: Failed to vectorize new movies: %v", err)
	} else if n > 0 {
		log.Infof("Vectorized %d movies added since the last build", n)
	}
	movies, fit, err := a.Store.LoadVectorizedCatalog(ctx)
	if err != nil {
		return nil, err
	}
	e, err := recommend.NewEngine(movies)
	if err != nil {
		return nil, err
	}
	log.Debugf("Loaded %d vectorized movies from fit %s (%s, dim %d)", e.Len(), fit.ID, fit.Kind, fit.Dimension)
	a.engine = e
	return e, nil
}

func (a *App) ResetEngine() {
	a.mu.Lock()
	a.engine = nil
	a.mu.Unlock()
}

// Recommend answers a similarity query for movieID, preferring the pgvector
// index when one is configured and falling back to the in-memory scan.
func (a *App) Recommend(ctx context.Context, movieID int64, n int) ([]models.Recommendation, error) {
	e, err := a.Engine(ctx)
	if err != nil {
		return nil, err
	}
	if a.VectorIndex != nil {
		recs, err := a.VectorIndex.Similar(ctx, e.FitID(), movieID, n)
		if err == nil {
			return recs, nil
		}
		log.Warnf("WARN: Vector index query failed, using in-memory scan: %v", err)
	}
	return e.ForID(movieID, n)
}

// FindMovie resolves ref as a numeric ID, then as a title (exact first,
// then case-insensitive).
func (a *App) FindMovie(ctx context.Context, ref string) (models.Movie, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		m, err := a.Store.GetMovie(ctx, id)
		if err != nil {
			return models.Movie{}, err
		}
		return *m, nil
	}
	movies, err := a.AllMovies(ctx)
	if err != nil {
		return models.Movie{}, err
	}
	for _, m := range movies {
		if m.Title == ref {
			return m, nil
		}
	}
	want := strings.TrimSpace(ref)
	for _, m := range movies {
		if strings.EqualFold(m.Title, want) {
			return m, nil
		}
	}
	return models.Movie{}, fmt.Errorf("movie %q: %w", ref, models.ErrNotFound)
}

// RecordView adds m to the recently-viewed list and persists the view.
// Consecutive repeats are not stored.
func (a *App) RecordView(ctx context.Context, m models.Movie) error {
	ev := models.ViewEvent{MovieID: m.ID, Title: m.Title, ViewedAt: time.Now().UTC()}
	if !a.History.Add(ev) {
		return nil
	}
	return a.Store.RecordView(ctx, &ev)
}

func (a *App) Close() error {
	var errs []string
	if a.JobClient != nil {
		if err := a.JobClient.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if c, ok := a.Embedder.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if a.VectorIndex != nil {
		if err := a.VectorIndex.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close app: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (a *App) cleanupPartialInit() {
	if err := a.Close(); err != nil {
		log.Warnf("WARN: cleanup after failed init: %v", err)
	}
}
