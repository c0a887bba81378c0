// Package report renders experiment results for people (tables) and for
// other tools (YAML, NDJSON).
package report

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"cinematch/internal/models"
)

// Highlighter decorates the best row of a table; nil leaves it plain.
type Highlighter func(string) string

// ClassifierTable writes the accuracy comparison. The best model (highest
// accuracy, earliest on ties) is passed through highlight.
func ClassifierTable(w io.Writer, results []models.ClassifierResult, highlight Highlighter) {
	best := -1
	for i, r := range results {
		if best < 0 || r.Accuracy > results[best].Accuracy {
			best = i
		}
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Model", "Accuracy", "Precision", "Recall", "F1", "Train Time"})
	table.SetBorder(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for i, r := range results {
		name := r.Model
		if i == best && highlight != nil {
			name = highlight(name)
		}
		table.Append([]string{
			name,
			formatScore(r.Accuracy),
			formatScore(r.Confusion.Precision()),
			formatScore(r.Confusion.Recall()),
			formatScore(r.Confusion.F1()),
			r.TrainDuration.Round(time.Millisecond).String(),
		})
	}
	table.Render()
}

// ClusterSummary is one row of the cluster table.
type ClusterSummary struct {
	Label   int      `json:"label" yaml:"label"`
	Size    int      `json:"size" yaml:"size"`
	Samples []string `json:"samples" yaml:"samples"`
}

// SummarizeClusters groups titles by label. Clusters come in label order
// with noise last; each keeps up to samples titles in assignment order.
func SummarizeClusters(a models.ClusterAssignment, titles map[int64]string, samples int) []ClusterSummary {
	byLabel := map[int]*ClusterSummary{}
	var labels []int
	for _, id := range a.Order {
		l := a.Labels[id]
		s, ok := byLabel[l]
		if !ok {
			s = &ClusterSummary{Label: l}
			byLabel[l] = s
			labels = append(labels, l)
		}
		s.Size++
		if len(s.Samples) < samples {
			s.Samples = append(s.Samples, titles[id])
		}
	}
	sort.Slice(labels, func(i, j int) bool {
		li, lj := labels[i], labels[j]
		if (li == models.NoiseLabel) != (lj == models.NoiseLabel) {
			return lj == models.NoiseLabel
		}
		return li < lj
	})
	out := make([]ClusterSummary, len(labels))
	for i, l := range labels {
		out[i] = *byLabel[l]
	}
	return out
}

func ClusterTable(w io.Writer, summaries []ClusterSummary) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Cluster", "Size", "Sample Titles"})
	table.SetBorder(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	for _, s := range summaries {
		label := strconv.Itoa(s.Label)
		if s.Label == models.NoiseLabel {
			label = "noise"
		}
		table.Append([]string{label, strconv.Itoa(s.Size), strings.Join(s.Samples, "; ")})
	}
	table.Render()
}

func RecommendationTable(w io.Writer, recs []models.Recommendation) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "ID", "IMDb", "Title", "Score"})
	table.SetBorder(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for i, r := range recs {
		table.Append([]string{strconv.Itoa(i + 1), strconv.FormatInt(r.MovieID, 10), r.IMDBID, r.Title, formatScore(r.Score)})
	}
	table.Render()
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// Experiment is the exported YAML document for one run.
type Experiment struct {
	RunID     uuid.UUID        `yaml:"run_id"`
	Kind      string           `yaml:"kind"`
	Strategy  string           `yaml:"strategy"`
	StartedAt time.Time        `yaml:"started_at"`
	Duration  string           `yaml:"duration"`
	Corpus    CorpusStats      `yaml:"corpus,omitempty"`
	Config    any              `yaml:"config"`
	Results   []ResultRow      `yaml:"results,omitempty"`
	Clusters  []ClusterSummary `yaml:"clusters,omitempty"`
}

type CorpusStats struct {
	Train     int `yaml:"train"`
	Test      int `yaml:"test"`
	Dimension int `yaml:"dimension"`
}

type ResultRow struct {
	Model     string                 `yaml:"model"`
	Accuracy  float64                `yaml:"accuracy"`
	Precision float64                `yaml:"precision"`
	Recall    float64                `yaml:"recall"`
	F1        float64                `yaml:"f1"`
	Confusion models.ConfusionMatrix `yaml:"confusion"`
	TrainTime string                 `yaml:"train_time"`
}

// Rows flattens classifier results for export.
func Rows(results []models.ClassifierResult) []ResultRow {
	out := make([]ResultRow, len(results))
	for i, r := range results {
		out[i] = ResultRow{
			Model:     r.Model,
			Accuracy:  r.Accuracy,
			Precision: r.Confusion.Precision(),
			Recall:    r.Confusion.Recall(),
			F1:        r.Confusion.F1(),
			Confusion: r.Confusion,
			TrainTime: r.TrainDuration.String(),
		}
	}
	return out
}

func WriteYAML(w io.Writer, exp Experiment) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(exp); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return enc.Close()
}

// WriteNDJSON writes one neighbor document per line.
func WriteNDJSON(w io.Writer, docs []models.SimilarityDoc) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for _, d := range docs {
		if err := enc.Encode(d); err != nil {
			return fmt.Errorf("encode neighbors of %d: %w", d.MovieID, err)
		}
	}
	return bw.Flush()
}

// ReadNDJSON is the inverse of WriteNDJSON.
func ReadNDJSON(r io.Reader) ([]models.SimilarityDoc, error) {
	dec := json.NewDecoder(r)
	var out []models.SimilarityDoc
	for {
		var d models.SimilarityDoc
		if err := dec.Decode(&d); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, fmt.Errorf("decode neighbors line %d: %w", len(out)+1, err)
		}
		out = append(out, d)
	}
}
