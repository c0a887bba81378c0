package cluster

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinematch/internal/models"
)

// blobs returns three tight, well separated 2-D groups of size per.
func blobs(per int, seed uint64) [][]float64 {
	rng := rand.New(rand.NewPCG(seed, 1))
	centers := [][]float64{{0, 0}, {10, 10}, {-10, 10}}
	var out [][]float64
	for _, c := range centers {
		for i := 0; i < per; i++ {
			out = append(out, []float64{c[0] + rng.NormFloat64()*0.1, c[1] + rng.NormFloat64()*0.1})
		}
	}
	return out
}

func toPoints(values [][]float64) []Point {
	pts := make([]Point, len(values))
	for i, v := range values {
		pts[i] = Point{ID: int64(100 + i), Values: v}
	}
	return pts
}

func TestKMeansSeededReproducible(t *testing.T) {
	ctx := context.Background()
	data := blobs(10, 3)
	cfg := KMeansConfig{K: 3, Seed: 42}

	a, err := KMeans(ctx, data, cfg)
	require.NoError(t, err)
	b, err := KMeans(ctx, data, cfg)
	require.NoError(t, err)
	assert.Equal(t, a.Labels, b.Labels)
	assert.Equal(t, a.Centroids, b.Centroids)
	assert.True(t, a.Converged)

	// Each blob lands in its own cluster.
	for g := 0; g < 3; g++ {
		for i := 1; i < 10; i++ {
			assert.Equal(t, a.Labels[g*10], a.Labels[g*10+i])
		}
	}
	assert.NotEqual(t, a.Labels[0], a.Labels[10])
	assert.NotEqual(t, a.Labels[10], a.Labels[20])
	assert.NotEqual(t, a.Labels[0], a.Labels[20])
}

func TestKMeansDuplicatePoints(t *testing.T) {
	data := [][]float64{{1, 1}, {1, 1}, {1, 1}, {5, 5}}
	res, err := KMeans(context.Background(), data, KMeansConfig{K: 3, Seed: 1})
	require.NoError(t, err)
	assert.Len(t, res.Centroids, 3)
	assert.Len(t, res.Labels, 4)
}

func TestRecomputeReseedsEmptyCluster(t *testing.T) {
	points := [][]float64{{0}, {1}, {10}}
	labels := []int{0, 0, 0}

	centroids := recompute(points, labels, 2)
	assert.Equal(t, []int{0, 0, 1}, labels)
	assert.InDelta(t, 0.5, centroids[0][0], 1e-12, "donor mean must drop the moved point")
	assert.Equal(t, []float64{10}, centroids[1])

	fresh := recompute(points, labels, 2)
	assert.InDelta(t, fresh[0][0], centroids[0][0], 1e-12)
}

func TestKMeansValidation(t *testing.T) {
	ctx := context.Background()
	data := blobs(2, 1)
	_, err := KMeans(ctx, data, KMeansConfig{K: 0})
	assert.ErrorIs(t, err, models.ErrConfiguration)
	_, err = KMeans(ctx, data, KMeansConfig{K: len(data) + 1})
	assert.ErrorIs(t, err, models.ErrConfiguration)
	_, err = KMeans(ctx, nil, KMeansConfig{K: 1})
	assert.ErrorIs(t, err, models.ErrEmptyInput)
}

func TestAgglomerativeDeterministicPartition(t *testing.T) {
	ctx := context.Background()
	data := blobs(6, 5)

	for _, linkage := range []string{LinkageAverage, LinkageComplete, LinkageSingle} {
		t.Run(linkage, func(t *testing.T) {
			cfg := AgglomerativeConfig{Linkage: linkage, TargetClusters: 3}
			a, err := Agglomerate(ctx, data, cfg)
			require.NoError(t, err)
			b, err := Agglomerate(ctx, data, cfg)
			require.NoError(t, err)
			assert.Equal(t, a.Labels, b.Labels)
			assert.Equal(t, a.Merges, b.Merges)

			require.Len(t, a.Labels, len(data))
			assert.Len(t, a.Merges, len(data)-3)
			assert.Equal(t, []int{0, 1, 2}, distinctLabels(a.Labels))
			for g := 0; g < 3; g++ {
				for i := 0; i < 6; i++ {
					assert.Equal(t, g, a.Labels[g*6+i])
				}
			}
		})
	}
}

func distinctLabels(labels []int) []int {
	seen := map[int]bool{}
	var out []int
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}

func TestAgglomerativeThreshold(t *testing.T) {
	data := [][]float64{{0}, {1}, {10}, {11}, {30}}
	res, err := Agglomerate(context.Background(), data, AgglomerativeConfig{DistanceThreshold: 2})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 1, 1, 2}, res.Labels)
	require.Len(t, res.Merges, 2)
	assert.Equal(t, Merge{A: 0, B: 1, Distance: 1, Size: 2}, res.Merges[0])
}

func TestAgglomerativeTieBreaksOnLowestPair(t *testing.T) {
	// (0,1) and (1,2) are both at distance 1: the lower pair merges first.
	data := [][]float64{{0}, {1}, {2}}
	res, err := Agglomerate(context.Background(), data, AgglomerativeConfig{TargetClusters: 2, Linkage: LinkageSingle})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Merges[0].A)
	assert.Equal(t, 1, res.Merges[0].B)
	assert.Equal(t, []int{0, 0, 1}, res.Labels)
}

func TestAgglomerativeValidation(t *testing.T) {
	ctx := context.Background()
	data := [][]float64{{0}, {1}}
	_, err := Agglomerate(ctx, data, AgglomerativeConfig{})
	assert.ErrorIs(t, err, models.ErrConfiguration)
	_, err = Agglomerate(ctx, data, AgglomerativeConfig{TargetClusters: 1, Linkage: "ward"})
	assert.ErrorIs(t, err, models.ErrConfiguration)
	_, err = Agglomerate(ctx, data, AgglomerativeConfig{TargetClusters: 3})
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestDBSCANDenseClusterAndOutliers(t *testing.T) {
	var data [][]float64
	for i := 0; i < 10; i++ {
		data = append(data, []float64{1 + float64(i)*0.01, 1 - float64(i)*0.01})
	}
	data = append(data, []float64{50, 50}, []float64{-40, 20}, []float64{30, -70})

	res, err := DBSCAN(context.Background(), data, DBSCANConfig{Epsilon: 0.5, MinPoints: 3})
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		assert.Equal(t, 0, res.Labels[i])
		assert.Equal(t, KindCore, res.Kinds[i])
	}
	for i := 10; i < 13; i++ {
		assert.Equal(t, models.NoiseLabel, res.Labels[i])
		assert.Equal(t, KindNoise, res.Kinds[i])
	}
}

func TestDBSCANBorderPoints(t *testing.T) {
	// 0,1,2 are core (each reaches the other two plus itself); 3 reaches only
	// 2 and itself, so it is a border point of the same cluster.
	data := [][]float64{{0}, {0.1}, {0.2}, {0.6}}
	res, err := DBSCAN(context.Background(), data, DBSCANConfig{Epsilon: 0.45, MinPoints: 3})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 0, 0}, res.Labels)
	assert.Equal(t, KindBorder, res.Kinds[3])
	assert.Equal(t, "border", res.Kinds[3].String())
}

func TestDBSCANValidation(t *testing.T) {
	ctx := context.Background()
	data := [][]float64{{0}}
	_, err := DBSCAN(ctx, data, DBSCANConfig{Epsilon: 0, MinPoints: 1})
	assert.ErrorIs(t, err, models.ErrConfiguration)
	_, err = DBSCAN(ctx, data, DBSCANConfig{Epsilon: 1, MinPoints: 0})
	assert.ErrorIs(t, err, models.ErrConfiguration)
	_, err = DBSCAN(ctx, nil, DBSCANConfig{Epsilon: 1, MinPoints: 1})
	assert.ErrorIs(t, err, models.ErrEmptyInput)
}

func TestRun(t *testing.T) {
	pts := toPoints(blobs(4, 9))
	res, err := Run(context.Background(), Config{Algorithm: AlgorithmKMeans, KMeans: KMeansConfig{K: 3, Seed: 1}}, pts)
	require.NoError(t, err)
	a := res.Assignment
	assert.Equal(t, AlgorithmKMeans, a.Algorithm)
	assert.Equal(t, 3, a.Clusters)
	assert.Zero(t, a.Noise)
	assert.Len(t, a.Labels, 12)
	assert.Equal(t, int64(100), a.Order[0])
	assert.Len(t, a.Members(a.Labels[100]), 4)

	pts = append(pts, Point{ID: 999, Values: []float64{500, 500}})
	res, err = Run(context.Background(), Config{Algorithm: AlgorithmDBSCAN, DBSCAN: DBSCANConfig{Epsilon: 1, MinPoints: 2}}, pts)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Assignment.Noise)
	assert.Equal(t, models.NoiseLabel, res.Assignment.Labels[999])

	_, err = Run(context.Background(), Config{Algorithm: "spectral"}, pts)
	assert.ErrorIs(t, err, models.ErrConfiguration)
	_, err = Run(context.Background(), Config{Algorithm: AlgorithmKMeans}, []Point{{ID: 1, Values: []float64{1}}, {ID: 2, Values: []float64{1, 2}}})
	assert.ErrorIs(t, err, models.ErrDimensionMismatch)
}
