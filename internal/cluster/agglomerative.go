package cluster

import (
	"context"
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"

	"cinematch/internal/models"
	"cinematch/internal/similarity"
)

const (
	LinkageAverage  = "average"
	LinkageComplete = "complete"
	LinkageSingle   = "single"
)

type AgglomerativeConfig struct {
	Linkage string `json:"linkage" yaml:"linkage"`
	Metric  string `json:"metric" yaml:"metric"`
	// TargetClusters stops merging once this many clusters remain.
	TargetClusters int `json:"target_clusters" yaml:"target_clusters"`
	// DistanceThreshold stops merging when the closest pair is farther apart.
	DistanceThreshold float64 `json:"distance_threshold" yaml:"distance_threshold"`
}

// Merge is one dendrogram step: cluster B was folded into cluster A (both
// named by their lowest item index).
type Merge struct {
	A        int     `json:"a" yaml:"a"`
	B        int     `json:"b" yaml:"b"`
	Distance float64 `json:"distance" yaml:"distance"`
	Size     int     `json:"size" yaml:"size"`
}

type AgglomerativeResult struct {
	Labels []int
	Merges []Merge
}

// Agglomerate performs bottom-up clustering with Lance-Williams distance
// updates. Ties go to the lowest (i, j) pair, so the partition is fully
// determined by the inputs.
func Agglomerate(ctx context.Context, points [][]float64, cfg AgglomerativeConfig) (*AgglomerativeResult, error) {
	n := len(points)
	if n == 0 {
		return nil, fmt.Errorf("%w: nothing to cluster", models.ErrEmptyInput)
	}
	if cfg.TargetClusters <= 0 && cfg.DistanceThreshold <= 0 {
		return nil, fmt.Errorf("%w: agglomerative needs target_clusters or distance_threshold", models.ErrConfiguration)
	}
	if cfg.TargetClusters > n {
		return nil, fmt.Errorf("%w: target_clusters=%d exceeds %d items", models.ErrConfiguration, cfg.TargetClusters, n)
	}
	if cfg.Linkage == "" {
		cfg.Linkage = LinkageAverage
	}
	update, err := lanceWilliams(cfg.Linkage)
	if err != nil {
		return nil, err
	}
	metric, err := similarity.ParseMetric(cfg.Metric)
	if err != nil {
		return nil, err
	}

	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d, err := metric(points[i], points[j])
			if err != nil {
				return nil, err
			}
			dist[i][j], dist[j][i] = d, d
		}
	}

	active := make([]bool, n)
	size := make([]int, n)
	owner := make([]int, n) // item -> cluster representative
	for i := range active {
		active[i], size[i], owner[i] = true, 1, i
	}

	res := &AgglomerativeResult{}
	remaining := n
	for remaining > 1 {
		if cfg.TargetClusters > 0 && remaining <= cfg.TargetClusters {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bi, bj, best := -1, -1, math.Inf(1)
		for i := 0; i < n; i++ {
			if !active[i] {
				continue
			}
			for j := i + 1; j < n; j++ {
				if active[j] && dist[i][j] < best {
					bi, bj, best = i, j, dist[i][j]
				}
			}
		}
		if cfg.DistanceThreshold > 0 && best > cfg.DistanceThreshold {
			break
		}

		for k := 0; k < n; k++ {
			if !active[k] || k == bi || k == bj {
				continue
			}
			d := update(dist[bi][k], dist[bj][k], size[bi], size[bj])
			dist[bi][k], dist[k][bi] = d, d
		}
		active[bj] = false
		size[bi] += size[bj]
		for item, o := range owner {
			if o == bj {
				owner[item] = bi
			}
		}
		remaining--
		res.Merges = append(res.Merges, Merge{A: bi, B: bj, Distance: best, Size: size[bi]})
	}

	res.Labels = renumber(owner)
	log.Debugf("agglomerative (%s): %d merges, %d clusters", cfg.Linkage, len(res.Merges), remaining)
	return res, nil
}

// lanceWilliams returns d(i∪j, k) from d(i,k), d(j,k) and the cluster sizes.
func lanceWilliams(linkage string) (func(dik, djk float64, ni, nj int) float64, error) {
	switch linkage {
	case LinkageAverage:
		return func(dik, djk float64, ni, nj int) float64 {
			return (float64(ni)*dik + float64(nj)*djk) / float64(ni+nj)
		}, nil
	case LinkageComplete:
		return func(dik, djk float64, _, _ int) float64 { return math.Max(dik, djk) }, nil
	case LinkageSingle:
		return func(dik, djk float64, _, _ int) float64 { return math.Min(dik, djk) }, nil
	default:
		return nil, fmt.Errorf("%w: unknown linkage %q", models.ErrConfiguration, linkage)
	}
}
