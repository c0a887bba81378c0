package cluster

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	log "github.com/sirupsen/logrus"

	"cinematch/internal/models"
	"cinematch/internal/similarity"
)

type KMeansConfig struct {
	K             int    `json:"k" yaml:"k"`
	MaxIterations int    `json:"max_iterations" yaml:"max_iterations"`
	Seed          uint64 `json:"seed" yaml:"seed"`
}

type KMeansResult struct {
	Labels     []int
	Centroids  [][]float64
	Iterations int
	Converged  bool
	// Inertia is the sum of squared distances to the assigned centroid.
	Inertia float64
}

// KMeans runs Lloyd's algorithm from a k-means++ initialization.
func KMeans(ctx context.Context, points [][]float64, cfg KMeansConfig) (*KMeansResult, error) {
	n := len(points)
	if n == 0 {
		return nil, fmt.Errorf("%w: nothing to cluster", models.ErrEmptyInput)
	}
	if cfg.K <= 0 || cfg.K > n {
		return nil, fmt.Errorf("%w: k=%d must be in [1, %d]", models.ErrConfiguration, cfg.K, n)
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 100
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, 0x6b6d65616e73))

	centroids := seedPlusPlus(points, cfg.K, rng)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}

	res := &KMeansResult{}
	for iter := 1; iter <= cfg.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		changed := 0
		for i, p := range points {
			c := nearest(p, centroids)
			if c != labels[i] {
				labels[i] = c
				changed++
			}
		}
		res.Iterations = iter
		if changed == 0 {
			res.Converged = true
			break
		}
		centroids = recompute(points, labels, cfg.K)
		log.Debugf("kmeans: iteration %d, %d reassigned", iter, changed)
	}

	for i, p := range points {
		res.Inertia += similarity.SquaredEuclidean(p, centroids[labels[i]])
	}
	res.Labels, res.Centroids = labels, centroids
	return res, nil
}

// seedPlusPlus picks the first centroid uniformly, then each next one with
// probability proportional to its squared distance from the chosen set.
func seedPlusPlus(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(points)
	chosen := []int{rng.IntN(n)}
	dist := make([]float64, n)
	for i, p := range points {
		dist[i] = similarity.SquaredEuclidean(p, points[chosen[0]])
	}
	for len(chosen) < k {
		var total float64
		for _, d := range dist {
			total += d
		}
		next := -1
		if total > 0 {
			r := rng.Float64() * total
			for i, d := range dist {
				r -= d
				if r < 0 && d > 0 {
					next = i
					break
				}
			}
		}
		if next < 0 {
			// Every remaining point coincides with a centroid; take the
			// first unchosen index.
			next = firstUnchosen(n, chosen)
		}
		chosen = append(chosen, next)
		for i, p := range points {
			dist[i] = math.Min(dist[i], similarity.SquaredEuclidean(p, points[next]))
		}
	}

	out := make([][]float64, k)
	for c, idx := range chosen {
		out[c] = append([]float64(nil), points[idx]...)
	}
	return out
}

func firstUnchosen(n int, chosen []int) int {
	used := make(map[int]bool, len(chosen))
	for _, c := range chosen {
		used[c] = true
	}
	for i := 0; i < n; i++ {
		if !used[i] {
			return i
		}
	}
	return 0
}

// nearest returns the closest centroid; the lowest index wins ties.
func nearest(p []float64, centroids [][]float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, ctr := range centroids {
		if d := similarity.SquaredEuclidean(p, ctr); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// recompute sets each centroid to its members' mean. A cluster left empty is
// re-seeded with the point farthest from its own centroid, and the donor's
// mean is updated without that point.
func recompute(points [][]float64, labels []int, k int) [][]float64 {
	dim := len(points[0])
	sums := make([][]float64, k)
	counts := make([]int, k)
	for c := range sums {
		sums[c] = make([]float64, dim)
	}
	for i, p := range points {
		c := labels[i]
		counts[c]++
		for j, v := range p {
			sums[c][j] += v
		}
	}
	for c := range sums {
		if counts[c] == 0 {
			continue
		}
		for j := range sums[c] {
			sums[c][j] /= float64(counts[c])
		}
	}
	for c := range sums {
		if counts[c] > 0 {
			continue
		}
		far, farDist := -1, -1.0
		for i, p := range points {
			if counts[labels[i]] <= 1 {
				continue
			}
			if d := similarity.SquaredEuclidean(p, sums[labels[i]]); d > farDist {
				far, farDist = i, d
			}
		}
		if far < 0 {
			continue
		}
		donor := labels[far]
		counts[donor]--
		for j := range sums[donor] {
			sums[donor][j] += (sums[donor][j] - points[far][j]) / float64(counts[donor])
		}
		counts[c] = 1
		labels[far] = c
		sums[c] = append([]float64(nil), points[far]...)
	}
	return sums
}
