// Package features turns normalized documents into fixed-length vectors.
//
// An Extractor is fitted once on a training corpus and then applied, never
// refitted, to every later input. Every vector it produces carries the fit's
// ID so vectors from different fits cannot be compared by accident.
package features

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"cinematch/internal/models"
)

const (
	StrategySparse = "sparse"
	StrategyDense  = "dense"
	StrategyRemote = "remote"
)

// Input is one document as seen by an extractor. Token-based extractors read
// Tokens; remote embedders read Text.
type Input struct {
	Text   string
	Tokens []string
}

type Extractor interface {
	Name() string
	Fit(ctx context.Context, inputs []Input) error
	Transform(ctx context.Context, inputs []Input) ([]models.FeatureVector, error)
	Dimension() int
	FitID() uuid.UUID
	Snapshot() ([]byte, error)
}

// Config selects and parameterizes one extractor strategy.
type Config struct {
	Strategy string       `json:"strategy" yaml:"strategy"`
	TFIDF    TFIDFConfig  `json:"tfidf" yaml:"tfidf"`
	Dense    DenseConfig  `json:"dense" yaml:"dense"`
	Remote   RemoteConfig `json:"remote" yaml:"remote"`
	Seed     uint64       `json:"seed" yaml:"seed"`
}

// New builds an unfitted extractor. embedder is only consulted for the
// remote strategy and may be nil otherwise.
func New(cfg Config, embedder Embedder) (Extractor, error) {
	switch cfg.Strategy {
	case StrategySparse, "tfidf":
		return NewTFIDF(cfg.TFIDF)
	case StrategyDense:
		return NewDense(cfg.Dense, cfg.Seed)
	case StrategyRemote:
		return NewRemote(cfg.Remote, embedder)
	default:
		return nil, fmt.Errorf("%w: unknown extractor strategy %q", models.ErrConfiguration, cfg.Strategy)
	}
}

// Validate reports whether v was produced by e's current fit.
func Validate(e Extractor, v models.FeatureVector) error {
	if e.FitID() == uuid.Nil {
		return fmt.Errorf("%w: extractor %s is not fitted", models.ErrConfiguration, e.Name())
	}
	if v.FitID != e.FitID() {
		return fmt.Errorf("%w: vector from fit %s, extractor fit is %s", models.ErrDimensionMismatch, v.FitID, e.FitID())
	}
	if len(v.Values) != e.Dimension() {
		return fmt.Errorf("%w: vector has %d dimensions, extractor has %d", models.ErrDimensionMismatch, len(v.Values), e.Dimension())
	}
	return nil
}

type snapshotEnvelope struct {
	Kind  string          `json:"kind"`
	FitID uuid.UUID       `json:"fit_id"`
	State json.RawMessage `json:"state"`
}

func encodeSnapshot(kind string, fitID uuid.UUID, state any) ([]byte, error) {
	if fitID == uuid.Nil {
		return nil, fmt.Errorf("%w: cannot snapshot unfitted %s extractor", models.ErrConfiguration, kind)
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode %s state: %w", kind, err)
	}
	return json.Marshal(snapshotEnvelope{Kind: kind, FitID: fitID, State: raw})
}

// SnapshotKind returns the extractor name recorded in a snapshot.
func SnapshotKind(data []byte) (string, error) {
	var env snapshotEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", fmt.Errorf("decode snapshot: %w", err)
	}
	return env.Kind, nil
}

// Restore rebuilds a fitted extractor from Snapshot output. The restored
// extractor keeps the original FitID.
func Restore(data []byte, embedder Embedder) (Extractor, error) {
	var env snapshotEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if env.FitID == uuid.Nil {
		return nil, fmt.Errorf("%w: snapshot has no fit id", models.ErrConfiguration)
	}
	switch env.Kind {
	case tfidfName:
		return restoreTFIDF(env.FitID, env.State)
	case denseName:
		return restoreDense(env.FitID, env.State)
	case remoteName:
		return restoreRemote(env.FitID, env.State, embedder)
	default:
		return nil, fmt.Errorf("%w: unknown snapshot kind %q", models.ErrConfiguration, env.Kind)
	}
}

// requireUnfitted enforces a single Fit per extractor; a restored extractor
// counts as fitted.
func requireUnfitted(name string, fitID uuid.UUID) error {
	if fitID != uuid.Nil {
		return fmt.Errorf("%w: %s extractor already fitted as %s", models.ErrConfiguration, name, fitID)
	}
	return nil
}

func requireFitted(name string, fitID uuid.UUID) error {
	if fitID == uuid.Nil {
		return fmt.Errorf("%w: %s extractor applied before fit", models.ErrConfiguration, name)
	}
	return nil
}
