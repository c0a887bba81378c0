package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"cinematch/internal/classifier"
	"cinematch/internal/cluster"
	"cinematch/internal/corpus"
	"cinematch/internal/features"
	"cinematch/internal/textnorm"
)

const EnvPrefix = "CINEMATCH"

type Config struct {
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`

	// Seed feeds every seeded step: split, extractor, classifiers, k-means.
	Seed uint64 `mapstructure:"seed"`

	Corpus struct {
		Path       string  `mapstructure:"path"`
		Format     string  `mapstructure:"format"`
		TextField  string  `mapstructure:"text_field"`
		LabelField string  `mapstructure:"label_field"`
		Limit      int     `mapstructure:"limit"`
		TestRatio  float64 `mapstructure:"test_ratio"`
	} `mapstructure:"corpus"`

	Normalize textnorm.Options `mapstructure:"normalize"`

	Features struct {
		Strategy       string  `mapstructure:"strategy"`
		VocabularySize int     `mapstructure:"vocabulary_size"`
		MinDF          int     `mapstructure:"min_df"`
		MaxDF          float64 `mapstructure:"max_df"`
		SublinearTF    bool    `mapstructure:"sublinear_tf"`
		Norm           string  `mapstructure:"norm"`

		Dense struct {
			Dimension int    `mapstructure:"dimension"`
			TablePath string `mapstructure:"table_path"`
			Window    int    `mapstructure:"window"`
			NonZero   int    `mapstructure:"non_zero"`
			MinCount  int    `mapstructure:"min_count"`
		} `mapstructure:"dense"`

		Remote struct {
			Provider     string        `mapstructure:"provider"`
			Model        string        `mapstructure:"model"`
			Dimension    int           `mapstructure:"dimension"`
			BatchSize    int           `mapstructure:"batch_size"`
			MaxRetries   int           `mapstructure:"max_retries"`
			Backoff      time.Duration `mapstructure:"backoff"`
			OpenaiApiKey string        `mapstructure:"openai_api_key"`
			GeminiApiKey string        `mapstructure:"gemini_api_key"`
		} `mapstructure:"remote"`
	} `mapstructure:"features"`

	Classifiers struct {
		Names        []string `mapstructure:"names"`
		Parallel     bool     `mapstructure:"parallel"`
		Epochs       int      `mapstructure:"epochs"`
		LearningRate float64  `mapstructure:"learning_rate"`
		BatchSize    int      `mapstructure:"batch_size"`
		L2           float64  `mapstructure:"l2"`
		Trees        int      `mapstructure:"trees"`
		MaxDepth     int      `mapstructure:"max_depth"`
		MinLeaf      int      `mapstructure:"min_leaf"`
		MaxFeatures  int      `mapstructure:"max_features"`
		Alpha        float64  `mapstructure:"alpha"`
	} `mapstructure:"classifiers"`

	Cluster struct {
		Algorithm         string  `mapstructure:"algorithm"`
		K                 int     `mapstructure:"k"`
		MaxIterations     int     `mapstructure:"max_iterations"`
		Linkage           string  `mapstructure:"linkage"`
		Metric            string  `mapstructure:"metric"`
		TargetClusters    int     `mapstructure:"target_clusters"`
		DistanceThreshold float64 `mapstructure:"distance_threshold"`
		Epsilon           float64 `mapstructure:"epsilon"`
		MinPoints         int     `mapstructure:"min_points"`
		Samples           int     `mapstructure:"samples"`
	} `mapstructure:"cluster"`

	Recommend struct {
		N           int `mapstructure:"n"`
		HistorySize int `mapstructure:"history_size"`
		NeighborsK  int `mapstructure:"neighbors_k"`
	} `mapstructure:"recommend"`

	Catalog struct {
		Path    string `mapstructure:"path"`
		Columns struct {
			IMDBID   string `mapstructure:"imdb_id"`
			Title    string `mapstructure:"title"`
			Director string `mapstructure:"director"`
			Genres   string `mapstructure:"genres"`
			Body     string `mapstructure:"body"`
		} `mapstructure:"columns"`
	} `mapstructure:"catalog"`

	Database struct {
		Primary struct {
			DSN string `mapstructure:"dsn"`
		} `mapstructure:"primary"`
		// Vector is optional; an empty DSN disables the pgvector index.
		Vector struct {
			DSN string `mapstructure:"dsn"`
		} `mapstructure:"vector"`
	} `mapstructure:"database"`

	Redis struct {
		Address  string `mapstructure:"address"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Worker struct {
		Concurrency int            `mapstructure:"concurrency"`
		Queues      map[string]int `mapstructure:"queues"`
	} `mapstructure:"worker"`

	Server struct {
		Address string `mapstructure:"address"`
		Mode    string `mapstructure:"mode"`
	} `mapstructure:"server"`

	TMDB struct {
		APIKey            string        `mapstructure:"api_key"`
		BaseURL           string        `mapstructure:"base_url"`
		ImageBaseURL      string        `mapstructure:"image_base_url"`
		Timeout           time.Duration `mapstructure:"timeout"`
		RequestsPerSecond float64       `mapstructure:"requests_per_second"`
		MaxRetries        int           `mapstructure:"max_retries"`
	} `mapstructure:"tmdb"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("seed", 42)

	v.SetDefault("corpus.text_field", "text")
	v.SetDefault("corpus.label_field", "label")
	v.SetDefault("corpus.test_ratio", 0.2)

	d := textnorm.DefaultOptions()
	v.SetDefault("normalize.lowercase", d.Lowercase)
	v.SetDefault("normalize.strip_html", d.StripHTML)
	v.SetDefault("normalize.strip_punctuation", d.StripPunctuation)
	v.SetDefault("normalize.remove_stop_words", d.RemoveStopWords)
	v.SetDefault("normalize.min_token_length", d.MinTokenLength)

	v.SetDefault("features.strategy", features.StrategySparse)
	v.SetDefault("features.vocabulary_size", 5000)
	v.SetDefault("features.min_df", 1)
	v.SetDefault("features.max_df", 1.0)
	v.SetDefault("features.norm", features.NormL2)
	v.SetDefault("features.dense.dimension", 100)
	v.SetDefault("features.dense.window", 2)
	v.SetDefault("features.dense.non_zero", 8)
	v.SetDefault("features.dense.min_count", 1)
	v.SetDefault("features.remote.provider", features.ProviderOpenAI)
	v.SetDefault("features.remote.dimension", 1536)
	v.SetDefault("features.remote.batch_size", 64)
	v.SetDefault("features.remote.max_retries", 3)
	v.SetDefault("features.remote.backoff", "500ms")

	v.SetDefault("classifiers.epochs", 20)
	v.SetDefault("classifiers.learning_rate", 0.1)
	v.SetDefault("classifiers.batch_size", 32)
	v.SetDefault("classifiers.trees", 50)
	v.SetDefault("classifiers.max_depth", 12)
	v.SetDefault("classifiers.min_leaf", 1)
	v.SetDefault("classifiers.alpha", 1.0)

	v.SetDefault("cluster.algorithm", cluster.AlgorithmKMeans)
	v.SetDefault("cluster.k", 8)
	v.SetDefault("cluster.max_iterations", 100)
	v.SetDefault("cluster.linkage", cluster.LinkageAverage)
	v.SetDefault("cluster.target_clusters", 8)
	v.SetDefault("cluster.epsilon", 0.5)
	v.SetDefault("cluster.min_points", 3)
	v.SetDefault("cluster.samples", 3)

	v.SetDefault("recommend.n", 5)
	v.SetDefault("recommend.history_size", 5)
	v.SetDefault("recommend.neighbors_k", 10)

	cols := corpus.DefaultCatalogColumns()
	v.SetDefault("catalog.columns.imdb_id", cols.IMDBID)
	v.SetDefault("catalog.columns.title", cols.Title)
	v.SetDefault("catalog.columns.director", cols.Director)
	v.SetDefault("catalog.columns.genres", cols.Genres)
	v.SetDefault("catalog.columns.body", cols.Body)

	v.SetDefault("database.primary.dsn", "cinematch.db")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("worker.concurrency", 2)
	v.SetDefault("worker.queues", map[string]int{"experiments": 1})
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.mode", "release")

	// Keys without a meaningful default are still registered so that
	// AutomaticEnv can populate them on Unmarshal.
	for _, key := range []string{
		"corpus.path", "corpus.format", "catalog.path",
		"features.dense.table_path", "features.remote.model",
		"cluster.metric", "database.vector.dsn", "redis.password",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("corpus.limit", 0)
	v.SetDefault("redis.db", 0)
	v.SetDefault("features.sublinear_tf", false)
	v.SetDefault("classifiers.parallel", false)
	v.SetDefault("classifiers.l2", 0.0)
	v.SetDefault("classifiers.max_features", 0)
	v.SetDefault("cluster.distance_threshold", 0.0)

	v.SetDefault("tmdb.base_url", "https://api.themoviedb.org/3")
	v.SetDefault("tmdb.image_base_url", "https://image.tmdb.org/t/p/w500")
	v.SetDefault("tmdb.timeout", "20s")
	v.SetDefault("tmdb.requests_per_second", 4.0)
	v.SetDefault("tmdb.max_retries", 3)
}

// LoadConfig reads config.yaml from the working directory, or the file at
// path when it is non-empty. A missing default file is not an error; env
// variables (CINEMATCH_FEATURES_STRATEGY and so on) and defaults fill in.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Provider keys are usually exported under their conventional names.
	_ = v.BindEnv("features.remote.openai_api_key", EnvPrefix+"_FEATURES_REMOTE_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("features.remote.gemini_api_key", EnvPrefix+"_FEATURES_REMOTE_GEMINI_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("tmdb.api_key", EnvPrefix+"_TMDB_API_KEY", "TMDB_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// FeatureConfig builds the extractor configuration.
func (c *Config) FeatureConfig() features.Config {
	f := c.Features
	return features.Config{
		Strategy: f.Strategy,
		Seed:     c.Seed,
		TFIDF: features.TFIDFConfig{
			VocabularySize: f.VocabularySize,
			MinDF:          f.MinDF,
			MaxDF:          f.MaxDF,
			SublinearTF:    f.SublinearTF,
			Norm:           f.Norm,
		},
		Dense: features.DenseConfig{
			Dimension: f.Dense.Dimension,
			TablePath: f.Dense.TablePath,
			Window:    f.Dense.Window,
			NonZero:   f.Dense.NonZero,
			MinCount:  f.Dense.MinCount,
		},
		Remote: features.RemoteConfig{
			Provider:   f.Remote.Provider,
			Model:      f.Remote.Model,
			Dimension:  f.Remote.Dimension,
			BatchSize:  f.Remote.BatchSize,
			MaxRetries: f.Remote.MaxRetries,
			Backoff:    f.Remote.Backoff,
		},
	}
}

func (c *Config) ClassifierConfig() classifier.Config {
	k := c.Classifiers
	return classifier.Config{
		Seed:         c.Seed,
		Epochs:       k.Epochs,
		LearningRate: k.LearningRate,
		BatchSize:    k.BatchSize,
		L2:           k.L2,
		Trees:        k.Trees,
		MaxDepth:     k.MaxDepth,
		MinLeaf:      k.MinLeaf,
		MaxFeatures:  k.MaxFeatures,
		Alpha:        k.Alpha,
	}
}

func (c *Config) ClusterConfig() cluster.Config {
	k := c.Cluster
	return cluster.Config{
		Algorithm: k.Algorithm,
		KMeans:    cluster.KMeansConfig{K: k.K, MaxIterations: k.MaxIterations, Seed: c.Seed},
		Agglomerative: cluster.AgglomerativeConfig{
			Linkage:           k.Linkage,
			Metric:            k.Metric,
			TargetClusters:    k.TargetClusters,
			DistanceThreshold: k.DistanceThreshold,
		},
		DBSCAN: cluster.DBSCANConfig{Epsilon: k.Epsilon, MinPoints: k.MinPoints, Metric: k.Metric},
	}
}

func (c *Config) LoadOptions() corpus.LoadOptions {
	return corpus.LoadOptions{
		Format:     c.Corpus.Format,
		TextField:  c.Corpus.TextField,
		LabelField: c.Corpus.LabelField,
		Limit:      c.Corpus.Limit,
	}
}

func (c *Config) CatalogColumns() corpus.CatalogColumns {
	cols := c.Catalog.Columns
	return corpus.CatalogColumns{
		IMDBID:   cols.IMDBID,
		Title:    cols.Title,
		Director: cols.Director,
		Genres:   cols.Genres,
		Body:     cols.Body,
	}
}
