package features

import (
	"bufio"
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"sort"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"cinematch/internal/models"
)

const denseName = "dense"

const (
	SourceGloVe          = "glove"
	SourceRandomIndexing = "random-indexing"
)

type DenseConfig struct {
	Dimension int `json:"dimension" yaml:"dimension"`
	// TablePath points at a GloVe-format text table. When empty the table is
	// learned from the training corpus by random indexing.
	TablePath string `json:"table_path,omitempty" yaml:"table_path,omitempty"`
	Window    int    `json:"window" yaml:"window"`
	NonZero   int    `json:"non_zero" yaml:"non_zero"`
	MinCount  int    `json:"min_count" yaml:"min_count"`
}

// Dense maps tokens to embedding rows and averages them per document.
type Dense struct {
	cfg    DenseConfig
	seed   uint64
	fitID  uuid.UUID
	source string
	words  map[string]int
	table  [][]float64
}

func NewDense(cfg DenseConfig, seed uint64) (*Dense, error) {
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("%w: dense dimension must be positive", models.ErrConfiguration)
	}
	if cfg.Window <= 0 {
		cfg.Window = 2
	}
	if cfg.NonZero <= 0 {
		cfg.NonZero = 8
	}
	if cfg.NonZero > cfg.Dimension {
		cfg.NonZero = cfg.Dimension
	}
	if cfg.MinCount <= 0 {
		cfg.MinCount = 1
	}
	return &Dense{cfg: cfg, seed: seed}, nil
}

func (d *Dense) Name() string        { return denseName }
func (d *Dense) Dimension() int      { return d.cfg.Dimension }
func (d *Dense) FitID() uuid.UUID    { return d.fitID }
func (d *Dense) Source() string      { return d.source }
func (d *Dense) VocabularySize() int { return len(d.table) }

func (d *Dense) Fit(ctx context.Context, inputs []Input) error {
	if err := requireUnfitted(denseName, d.fitID); err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("%w: dense fit needs at least one document", models.ErrEmptyInput)
	}

	counts := map[string]int{}
	for _, in := range inputs {
		for _, tok := range in.Tokens {
			counts[tok]++
		}
	}

	var err error
	if d.cfg.TablePath != "" {
		err = d.fitPretrained(counts)
	} else {
		err = d.fitRandomIndexing(ctx, inputs, counts)
	}
	if err != nil {
		return err
	}
	d.fitID = uuid.New()
	log.Infof("Dense extractor fitted (%s): %d words, dimension %d", d.source, len(d.table), d.cfg.Dimension)
	return nil
}

// fitPretrained keeps only the table rows for words seen in training.
func (d *Dense) fitPretrained(counts map[string]int) error {
	f, err := os.Open(d.cfg.TablePath)
	if err != nil {
		return fmt.Errorf("open embedding table: %w", err)
	}
	defer f.Close()

	rows, err := LoadGloVe(f, d.cfg.Dimension, func(w string) bool { return counts[w] >= d.cfg.MinCount })
	if err != nil {
		return err
	}
	d.setTable(rows)
	d.source = SourceGloVe
	return nil
}

func (d *Dense) fitRandomIndexing(ctx context.Context, inputs []Input, counts map[string]int) error {
	rows := map[string][]float64{}
	for w, c := range counts {
		if c >= d.cfg.MinCount {
			rows[w] = make([]float64, d.cfg.Dimension)
		}
	}
	if len(rows) == 0 {
		return fmt.Errorf("%w: no tokens reach min_count=%d", models.ErrEmptyInput, d.cfg.MinCount)
	}

	index := map[string][]indexEntry{}
	indexOf := func(w string) []indexEntry {
		e, ok := index[w]
		if !ok {
			e = d.indexVector(w)
			index[w] = e
		}
		return e
	}

	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i, w := range in.Tokens {
			row, ok := rows[w]
			if !ok {
				continue
			}
			lo, hi := max(0, i-d.cfg.Window), min(len(in.Tokens)-1, i+d.cfg.Window)
			for j := lo; j <= hi; j++ {
				if j == i {
					continue
				}
				for _, e := range indexOf(in.Tokens[j]) {
					row[e.pos] += e.sign
				}
			}
		}
	}

	for w, row := range rows {
		if isZero(row) {
			// No context (e.g. a single-token document): fall back to the
			// word's own index vector.
			for _, e := range indexOf(w) {
				row[e.pos] = e.sign
			}
		}
		normalize(row)
	}
	d.setTable(rows)
	d.source = SourceRandomIndexing
	return nil
}

type indexEntry struct {
	pos  int
	sign float64
}

// indexVector derives a sparse ternary vector from the seed and the word
// alone, so a word's index never depends on corpus order.
func (d *Dense) indexVector(word string) []indexEntry {
	h := fnv.New64a()
	_, _ = h.Write([]byte(word))
	rng := rand.New(rand.NewPCG(d.seed, h.Sum64()))

	perm := rng.Perm(d.cfg.Dimension)[:d.cfg.NonZero]
	out := make([]indexEntry, len(perm))
	for i, p := range perm {
		sign := 1.0
		if rng.IntN(2) == 0 {
			sign = -1
		}
		out[i] = indexEntry{pos: p, sign: sign}
	}
	return out
}

func (d *Dense) setTable(rows map[string][]float64) {
	words := make([]string, 0, len(rows))
	for w := range rows {
		words = append(words, w)
	}
	sort.Strings(words)
	d.words = make(map[string]int, len(words))
	d.table = make([][]float64, len(words))
	for i, w := range words {
		d.words[w] = i
		d.table[i] = rows[w]
	}
}

func (d *Dense) Transform(ctx context.Context, inputs []Input) ([]models.FeatureVector, error) {
	if err := requireFitted(denseName, d.fitID); err != nil {
		return nil, err
	}
	out := make([]models.FeatureVector, len(inputs))
	for i, in := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = models.FeatureVector{Values: d.average(in.Tokens), FitID: d.fitID}
	}
	return out, nil
}

// average returns the zero vector when no token is in the table.
func (d *Dense) average(tokens []string) []float64 {
	values := make([]float64, d.cfg.Dimension)
	n := 0
	for _, tok := range tokens {
		row, ok := d.words[tok]
		if !ok {
			continue
		}
		for k, v := range d.table[row] {
			values[k] += v
		}
		n++
	}
	if n > 0 {
		for k := range values {
			values[k] /= float64(n)
		}
	}
	return values
}

// Word returns the embedding row for w.
func (d *Dense) Word(w string) ([]float64, bool) {
	row, ok := d.words[w]
	if !ok {
		return nil, false
	}
	return append([]float64(nil), d.table[row]...), true
}

/*
LoadGloVe reads a whitespace separated "word v1 v2 ..." table.

Every row must have the same length, and that length must equal dim when dim
is positive; otherwise ErrDimensionMismatch. keep filters which words are
retained (nil keeps all).
*/
func LoadGloVe(r io.Reader, dim int, keep func(string) bool) (map[string][]float64, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	rows := map[string][]float64{}
	width := dim
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 2 {
			return nil, fmt.Errorf("%w: embedding table line %d has no values", models.ErrValidation, line)
		}
		n := len(fields) - 1
		if width <= 0 {
			width = n
		}
		if n != width {
			return nil, fmt.Errorf("%w: embedding table line %d has %d values, want %d", models.ErrDimensionMismatch, line, n, width)
		}
		word := fields[0]
		if keep != nil && !keep(word) {
			continue
		}
		vec := make([]float64, n)
		for i, f := range fields[1:] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: embedding table line %d: %v", models.ErrValidation, line, err)
			}
			vec[i] = v
		}
		rows[word] = vec
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read embedding table: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: embedding table has no usable rows", models.ErrEmptyInput)
	}
	return rows, nil
}

type denseState struct {
	Config DenseConfig `json:"config"`
	Seed   uint64      `json:"seed"`
	Source string      `json:"source"`
	Words  []string    `json:"words"`
	Table  [][]float64 `json:"table"`
}

func (d *Dense) Snapshot() ([]byte, error) {
	words := make([]string, len(d.table))
	for w, i := range d.words {
		words[i] = w
	}
	return encodeSnapshot(denseName, d.fitID, denseState{
		Config: d.cfg, Seed: d.seed, Source: d.source, Words: words, Table: d.table,
	})
}

func restoreDense(fitID uuid.UUID, raw json.RawMessage) (*Dense, error) {
	var st denseState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode dense state: %w", err)
	}
	if len(st.Words) != len(st.Table) {
		return nil, fmt.Errorf("%w: dense snapshot has %d words and %d rows", models.ErrDimensionMismatch, len(st.Words), len(st.Table))
	}
	d, err := NewDense(st.Config, st.Seed)
	if err != nil {
		return nil, err
	}
	rows := make(map[string][]float64, len(st.Words))
	for i, w := range st.Words {
		if len(st.Table[i]) != d.cfg.Dimension {
			return nil, fmt.Errorf("%w: dense snapshot row %q has %d values, want %d", models.ErrDimensionMismatch, w, len(st.Table[i]), d.cfg.Dimension)
		}
		rows[w] = st.Table[i]
	}
	d.setTable(rows)
	d.source, d.fitID = st.Source, fitID
	return d, nil
}

func isZero(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

func normalize(v []float64) {
	var sumSq float64
	for _, x := range v {
		sumSq += x * x
	}
	if sumSq == 0 {
		return
	}
	n := math.Sqrt(sumSq)
	for i := range v {
		v[i] /= n
	}
}
