package cluster

import (
	"context"
	"fmt"

	"cinematch/internal/models"
	"cinematch/internal/similarity"
)

type PointKind int

const (
	KindNoise PointKind = iota
	KindBorder
	KindCore
)

func (k PointKind) String() string {
	switch k {
	case KindCore:
		return "core"
	case KindBorder:
		return "border"
	default:
		return "noise"
	}
}

type DBSCANConfig struct {
	Epsilon   float64 `json:"epsilon" yaml:"epsilon"`
	MinPoints int     `json:"min_points" yaml:"min_points"`
	Metric    string  `json:"metric" yaml:"metric"`
}

type DBSCANResult struct {
	Labels []int
	Kinds  []PointKind
}

// DBSCAN labels density-connected core points and their border points;
// everything else gets models.NoiseLabel. A neighborhood includes the point
// itself.
func DBSCAN(ctx context.Context, points [][]float64, cfg DBSCANConfig) (*DBSCANResult, error) {
	n := len(points)
	if n == 0 {
		return nil, fmt.Errorf("%w: nothing to cluster", models.ErrEmptyInput)
	}
	if cfg.Epsilon <= 0 {
		return nil, fmt.Errorf("%w: epsilon must be positive", models.ErrConfiguration)
	}
	if cfg.MinPoints <= 0 {
		return nil, fmt.Errorf("%w: min_points must be positive", models.ErrConfiguration)
	}
	metric, err := similarity.ParseMetric(cfg.Metric)
	if err != nil {
		return nil, err
	}

	neighbors := make([][]int, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for j := 0; j < n; j++ {
			d, err := metric(points[i], points[j])
			if err != nil {
				return nil, err
			}
			if d <= cfg.Epsilon {
				neighbors[i] = append(neighbors[i], j)
			}
		}
	}

	res := &DBSCANResult{Labels: make([]int, n), Kinds: make([]PointKind, n)}
	for i := range res.Labels {
		res.Labels[i] = models.NoiseLabel
		if len(neighbors[i]) >= cfg.MinPoints {
			res.Kinds[i] = KindCore
		}
	}

	cluster := 0
	for i := 0; i < n; i++ {
		if res.Kinds[i] != KindCore || res.Labels[i] != models.NoiseLabel {
			continue
		}
		res.Labels[i] = cluster
		queue := []int{i}
		for len(queue) > 0 {
			p := queue[0]
			queue = queue[1:]
			for _, q := range neighbors[p] {
				if res.Labels[q] != models.NoiseLabel {
					continue
				}
				res.Labels[q] = cluster
				if res.Kinds[q] == KindCore {
					queue = append(queue, q)
				} else {
					res.Kinds[q] = KindBorder
				}
			}
		}
		cluster++
	}
	return res, nil
}
