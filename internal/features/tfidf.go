package features

import (
	"context"
	"fmt"
	"math"
	"sort"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"cinematch/internal/models"
)

const tfidfName = "tfidf"

const (
	NormL2   = "l2"
	NormNone = "none"
)

type TFIDFConfig struct {
	// VocabularySize keeps the top terms by document frequency; 0 keeps all.
	VocabularySize int `json:"vocabulary_size" yaml:"vocabulary_size"`
	// MinDF drops terms seen in fewer documents.
	MinDF int `json:"min_df" yaml:"min_df"`
	// MaxDF drops terms seen in more than this fraction of documents.
	MaxDF       float64 `json:"max_df" yaml:"max_df"`
	SublinearTF bool    `json:"sublinear_tf" yaml:"sublinear_tf"`
	Norm        string  `json:"norm" yaml:"norm"`
}

func (c TFIDFConfig) validate() error {
	if c.VocabularySize < 0 {
		return fmt.Errorf("%w: vocabulary_size must be >= 0", models.ErrConfiguration)
	}
	if c.MinDF < 0 {
		return fmt.Errorf("%w: min_df must be >= 0", models.ErrConfiguration)
	}
	if c.MaxDF < 0 || c.MaxDF > 1 {
		return fmt.Errorf("%w: max_df must be in (0,1]", models.ErrConfiguration)
	}
	switch c.Norm {
	case "", NormL2, NormNone:
	default:
		return fmt.Errorf("%w: unknown norm %q", models.ErrConfiguration, c.Norm)
	}
	return nil
}

// TFIDF is the sparse weighted term-frequency extractor. Vectors are dense
// slices with one column per vocabulary term.
type TFIDF struct {
	cfg   TFIDFConfig
	fitID uuid.UUID
	vocab []string
	index map[string]int
	idf   []float64
	docs  int
}

func NewTFIDF(cfg TFIDFConfig) (*TFIDF, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.MaxDF == 0 {
		cfg.MaxDF = 1
	}
	if cfg.MinDF == 0 {
		cfg.MinDF = 1
	}
	if cfg.Norm == "" {
		cfg.Norm = NormL2
	}
	return &TFIDF{cfg: cfg}, nil
}

func (t *TFIDF) Name() string         { return tfidfName }
func (t *TFIDF) Dimension() int       { return len(t.vocab) }
func (t *TFIDF) FitID() uuid.UUID     { return t.fitID }
func (t *TFIDF) Vocabulary() []string { return append([]string(nil), t.vocab...) }

type termStat struct {
	term  string
	df    int
	total int
}

func (t *TFIDF) Fit(ctx context.Context, inputs []Input) error {
	if err := requireUnfitted(tfidfName, t.fitID); err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("%w: tfidf fit needs at least one document", models.ErrEmptyInput)
	}

	stats := map[string]*termStat{}
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return err
		}
		seen := map[string]bool{}
		for _, tok := range in.Tokens {
			st, ok := stats[tok]
			if !ok {
				st = &termStat{term: tok}
				stats[tok] = st
			}
			st.total++
			if !seen[tok] {
				seen[tok] = true
				st.df++
			}
		}
	}

	n := len(inputs)
	kept := make([]termStat, 0, len(stats))
	for _, st := range stats {
		if st.df < t.cfg.MinDF {
			continue
		}
		if float64(st.df)/float64(n) > t.cfg.MaxDF {
			continue
		}
		kept = append(kept, *st)
	}
	if len(kept) == 0 {
		return fmt.Errorf("%w: no terms survive min_df=%d max_df=%.2f", models.ErrEmptyInput, t.cfg.MinDF, t.cfg.MaxDF)
	}

	sort.Slice(kept, func(i, j int) bool {
		if kept[i].df != kept[j].df {
			return kept[i].df > kept[j].df
		}
		if kept[i].total != kept[j].total {
			return kept[i].total > kept[j].total
		}
		return kept[i].term < kept[j].term
	})
	if t.cfg.VocabularySize > 0 && len(kept) > t.cfg.VocabularySize {
		kept = kept[:t.cfg.VocabularySize]
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].term < kept[j].term })

	t.vocab = make([]string, len(kept))
	t.idf = make([]float64, len(kept))
	for i, st := range kept {
		t.vocab[i] = st.term
		t.idf[i] = math.Log(float64(1+n)/float64(1+st.df)) + 1
	}
	t.docs = n
	t.buildIndex()
	t.fitID = uuid.New()

	log.Infof("TF-IDF fitted on %d documents: %d terms (of %d seen)", n, len(t.vocab), len(stats))
	return nil
}

func (t *TFIDF) buildIndex() {
	t.index = make(map[string]int, len(t.vocab))
	for i, term := range t.vocab {
		t.index[term] = i
	}
}

func (t *TFIDF) Transform(ctx context.Context, inputs []Input) ([]models.FeatureVector, error) {
	if err := requireFitted(tfidfName, t.fitID); err != nil {
		return nil, err
	}
	out := make([]models.FeatureVector, len(inputs))
	for i, in := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = models.FeatureVector{Values: t.vector(in.Tokens), FitID: t.fitID}
	}
	return out, nil
}

func (t *TFIDF) vector(tokens []string) []float64 {
	values := make([]float64, len(t.vocab))
	for _, tok := range tokens {
		if col, ok := t.index[tok]; ok {
			values[col]++
		}
	}
	var sumSq float64
	for col, tf := range values {
		if tf == 0 {
			continue
		}
		if t.cfg.SublinearTF {
			tf = 1 + math.Log(tf)
		}
		w := tf * t.idf[col]
		values[col] = w
		sumSq += w * w
	}
	if t.cfg.Norm == NormL2 && sumSq > 0 {
		norm := math.Sqrt(sumSq)
		for col := range values {
			values[col] /= norm
		}
	}
	return values
}

type tfidfState struct {
	Config TFIDFConfig `json:"config"`
	Vocab  []string    `json:"vocabulary"`
	IDF    []float64   `json:"idf"`
	Docs   int         `json:"documents"`
}

func (t *TFIDF) Snapshot() ([]byte, error) {
	return encodeSnapshot(tfidfName, t.fitID, tfidfState{Config: t.cfg, Vocab: t.vocab, IDF: t.idf, Docs: t.docs})
}

func restoreTFIDF(fitID uuid.UUID, raw json.RawMessage) (*TFIDF, error) {
	var st tfidfState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode tfidf state: %w", err)
	}
	if len(st.Vocab) != len(st.IDF) {
		return nil, fmt.Errorf("%w: tfidf snapshot has %d terms and %d idf weights", models.ErrDimensionMismatch, len(st.Vocab), len(st.IDF))
	}
	t, err := NewTFIDF(st.Config)
	if err != nil {
		return nil, err
	}
	t.vocab, t.idf, t.docs, t.fitID = st.Vocab, st.IDF, st.Docs, fitID
	t.buildIndex()
	return t, nil
}
