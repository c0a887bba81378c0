package config

import (
	"fmt"
	"slices"

	log "github.com/sirupsen/logrus"

	"cinematch/internal/classifier"
	"cinematch/internal/cluster"
	"cinematch/internal/features"
	"cinematch/internal/models"
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{models.ErrConfiguration}, args...)...)
}

// Validate rejects out-of-range values. It does not check that optional
// services (Redis, Postgres, TMDB) are reachable; commands needing them do.
func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level %q", c.Log.Level)
	}

	if c.Corpus.TestRatio <= 0 || c.Corpus.TestRatio >= 1 {
		return invalid("corpus.test_ratio must be in (0,1), got %v", c.Corpus.TestRatio)
	}
	if c.Corpus.Limit < 0 {
		return invalid("corpus.limit must be >= 0")
	}
	if c.Normalize.MinTokenLength < 0 {
		return invalid("normalize.min_token_length must be >= 0")
	}

	f := c.Features
	switch f.Strategy {
	case features.StrategySparse, "tfidf":
		if f.VocabularySize < 0 {
			return invalid("features.vocabulary_size must be >= 0")
		}
		if f.MaxDF <= 0 || f.MaxDF > 1 {
			return invalid("features.max_df must be in (0,1]")
		}
	case features.StrategyDense:
		if f.Dense.Dimension <= 0 {
			return invalid("features.dense.dimension must be positive")
		}
	case features.StrategyRemote:
		if f.Remote.Dimension <= 0 {
			return invalid("features.remote.dimension must be positive")
		}
		switch f.Remote.Provider {
		case features.ProviderOpenAI:
			if f.Remote.OpenaiApiKey == "" {
				return invalid("features.remote.openai_api_key (or OPENAI_API_KEY) is required for the openai provider")
			}
		case features.ProviderGemini:
			if f.Remote.GeminiApiKey == "" {
				return invalid("features.remote.gemini_api_key (or GEMINI_API_KEY) is required for the gemini provider")
			}
		default:
			return invalid("unknown features.remote.provider %q", f.Remote.Provider)
		}
	default:
		return invalid("unknown features.strategy %q (want sparse, dense or remote)", f.Strategy)
	}

	for _, name := range c.Classifiers.Names {
		if !slices.Contains(classifier.Names(), name) {
			return invalid("unknown classifier %q", name)
		}
	}
	if c.Classifiers.Epochs < 0 || c.Classifiers.Trees < 0 || c.Classifiers.MaxDepth < 0 {
		return invalid("classifier epochs, trees and max_depth must be >= 0")
	}

	k := c.Cluster
	switch k.Algorithm {
	case cluster.AlgorithmKMeans:
		if k.K <= 0 {
			return invalid("cluster.k must be positive")
		}
	case cluster.AlgorithmAgglomerative:
		switch k.Linkage {
		case "", cluster.LinkageAverage, cluster.LinkageComplete, cluster.LinkageSingle:
		default:
			return invalid("unknown cluster.linkage %q", k.Linkage)
		}
		if k.TargetClusters <= 0 && k.DistanceThreshold <= 0 {
			return invalid("agglomerative clustering needs cluster.target_clusters or cluster.distance_threshold")
		}
	case cluster.AlgorithmDBSCAN:
		if k.Epsilon <= 0 || k.MinPoints <= 0 {
			return invalid("cluster.epsilon and cluster.min_points must be positive")
		}
	default:
		return invalid("unknown cluster.algorithm %q", k.Algorithm)
	}

	if c.Recommend.N <= 0 {
		return invalid("recommend.n must be positive")
	}
	if c.Recommend.HistorySize <= 0 {
		return invalid("recommend.history_size must be positive")
	}
	if c.Recommend.NeighborsK <= 0 {
		return invalid("recommend.neighbors_k must be positive")
	}

	if c.Database.Primary.DSN == "" {
		return invalid("database.primary.dsn is required")
	}

	if c.Worker.Concurrency <= 0 {
		return invalid("worker.concurrency must be a positive integer")
	}
	if len(c.Worker.Queues) == 0 {
		return invalid("worker.queues must define at least one queue")
	}
	for name, priority := range c.Worker.Queues {
		if name == "" {
			return invalid("worker.queues contains an empty queue name")
		}
		if priority <= 0 {
			return invalid("worker.queues priority for queue '%s' must be positive", name)
		}
	}

	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return invalid("server.mode must be debug, release or test, got '%s'", c.Server.Mode)
	}

	if c.TMDB.Timeout <= 0 {
		return invalid("tmdb.timeout must be positive")
	}
	if c.TMDB.RequestsPerSecond <= 0 {
		return invalid("tmdb.requests_per_second must be positive")
	}
	return nil
}
