// Package cluster partitions catalog vectors with k-means, agglomerative
// clustering or DBSCAN. Every algorithm is deterministic for fixed inputs
// and (where randomness is used) a fixed seed.
package cluster

import (
	"context"
	"fmt"

	"cinematch/internal/models"
)

const (
	AlgorithmKMeans        = "kmeans"
	AlgorithmAgglomerative = "agglomerative"
	AlgorithmDBSCAN        = "dbscan"
)

// Point is one item to cluster.
type Point struct {
	ID     int64
	Values []float64
}

type Config struct {
	Algorithm     string              `json:"algorithm" yaml:"algorithm"`
	KMeans        KMeansConfig        `json:"kmeans" yaml:"kmeans"`
	Agglomerative AgglomerativeConfig `json:"agglomerative" yaml:"agglomerative"`
	DBSCAN        DBSCANConfig        `json:"dbscan" yaml:"dbscan"`
}

// Result is the outcome of one Run. Only the fields of the selected
// algorithm are populated.
type Result struct {
	Assignment models.ClusterAssignment
	// k-means
	Centroids  [][]float64
	Iterations int
	Converged  bool
	// agglomerative
	Merges []Merge
	// dbscan
	Kinds []PointKind
}

// Run clusters points with the configured algorithm.
func Run(ctx context.Context, cfg Config, points []Point) (*Result, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: nothing to cluster", models.ErrEmptyInput)
	}
	values := make([][]float64, len(points))
	for i, p := range points {
		if len(p.Values) != len(points[0].Values) {
			return nil, fmt.Errorf("%w: point %d has %d dimensions, want %d", models.ErrDimensionMismatch, p.ID, len(p.Values), len(points[0].Values))
		}
		values[i] = p.Values
	}

	res := &Result{}
	var labels []int
	switch cfg.Algorithm {
	case AlgorithmKMeans:
		km, err := KMeans(ctx, values, cfg.KMeans)
		if err != nil {
			return nil, err
		}
		labels, res.Centroids, res.Iterations, res.Converged = km.Labels, km.Centroids, km.Iterations, km.Converged
	case AlgorithmAgglomerative:
		ag, err := Agglomerate(ctx, values, cfg.Agglomerative)
		if err != nil {
			return nil, err
		}
		labels, res.Merges = ag.Labels, ag.Merges
	case AlgorithmDBSCAN:
		db, err := DBSCAN(ctx, values, cfg.DBSCAN)
		if err != nil {
			return nil, err
		}
		labels, res.Kinds = db.Labels, db.Kinds
	default:
		return nil, fmt.Errorf("%w: unknown cluster algorithm %q", models.ErrConfiguration, cfg.Algorithm)
	}

	res.Assignment = assignment(cfg.Algorithm, points, labels)
	return res, nil
}

func assignment(algorithm string, points []Point, labels []int) models.ClusterAssignment {
	a := models.ClusterAssignment{
		Algorithm: algorithm,
		Order:     make([]int64, len(points)),
		Labels:    make(map[int64]int, len(points)),
	}
	distinct := map[int]bool{}
	for i, p := range points {
		a.Order[i] = p.ID
		a.Labels[p.ID] = labels[i]
		if labels[i] == models.NoiseLabel {
			a.Noise++
			continue
		}
		distinct[labels[i]] = true
	}
	a.Clusters = len(distinct)
	return a
}

// renumber relabels clusters 0..k-1 in order of first appearance, leaving
// NoiseLabel untouched.
func renumber(labels []int) []int {
	next := 0
	seen := map[int]int{}
	out := make([]int, len(labels))
	for i, l := range labels {
		if l == models.NoiseLabel {
			out[i] = l
			continue
		}
		id, ok := seen[l]
		if !ok {
			id = next
			seen[l] = id
			next++
		}
		out[i] = id
	}
	return out
}
