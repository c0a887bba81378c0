package features

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"cinematch/internal/models"
)

const remoteName = "remote"

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type RemoteConfig struct {
	Provider   string        `json:"provider" yaml:"provider"`
	Model      string        `json:"model" yaml:"model"`
	Dimension  int           `json:"dimension" yaml:"dimension"`
	BatchSize  int           `json:"batch_size" yaml:"batch_size"`
	MaxRetries int           `json:"max_retries" yaml:"max_retries"`
	Backoff    time.Duration `json:"backoff" yaml:"backoff"`
}

// Embedder is a remote text embedding provider.
type Embedder interface {
	Name() string
	ModelName() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Remote embeds document text through an Embedder. Fitting only pins the
// provider, model and dimension; the provider's model is the "fit".
type Remote struct {
	cfg      RemoteConfig
	embedder Embedder
	fitID    uuid.UUID
}

func NewRemote(cfg RemoteConfig, embedder Embedder) (*Remote, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: remote extractor needs an embedding provider", models.ErrConfiguration)
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("%w: remote dimension must be positive", models.ErrConfiguration)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	if cfg.Provider == "" {
		cfg.Provider = embedder.Name()
	}
	if cfg.Model == "" {
		cfg.Model = embedder.ModelName()
	}
	return &Remote{cfg: cfg, embedder: embedder}, nil
}

func (r *Remote) Name() string     { return remoteName }
func (r *Remote) Dimension() int   { return r.cfg.Dimension }
func (r *Remote) FitID() uuid.UUID { return r.fitID }

func (r *Remote) Fit(ctx context.Context, inputs []Input) error {
	if err := requireUnfitted(remoteName, r.fitID); err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("%w: remote fit needs at least one document", models.ErrEmptyInput)
	}
	// Embed the first document so a wrong dimension fails at fit time.
	first, err := r.embedBatch(ctx, []string{inputs[0].Text})
	if err != nil {
		return err
	}
	if len(first) != 1 {
		return fmt.Errorf("%s returned %d embeddings for 1 text", r.cfg.Provider, len(first))
	}
	r.fitID = uuid.New()
	log.Infof("Remote extractor fitted: %s/%s dimension %d", r.cfg.Provider, r.cfg.Model, r.cfg.Dimension)
	return nil
}

func (r *Remote) Transform(ctx context.Context, inputs []Input) ([]models.FeatureVector, error) {
	if err := requireFitted(remoteName, r.fitID); err != nil {
		return nil, err
	}
	out := make([]models.FeatureVector, 0, len(inputs))
	for start := 0; start < len(inputs); start += r.cfg.BatchSize {
		end := min(start+r.cfg.BatchSize, len(inputs))
		texts := make([]string, 0, end-start)
		for _, in := range inputs[start:end] {
			texts = append(texts, in.Text)
		}
		vecs, err := r.embedBatch(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(texts) {
			return nil, fmt.Errorf("%s returned %d embeddings for %d texts", r.cfg.Provider, len(vecs), len(texts))
		}
		for _, v := range vecs {
			values := make([]float64, len(v))
			for k, x := range v {
				values[k] = float64(x)
			}
			out = append(out, models.FeatureVector{Values: values, FitID: r.fitID})
		}
		log.Debugf("Embedded %d/%d documents via %s", end, len(inputs), r.cfg.Provider)
	}
	return out, nil
}

// embedBatch calls the provider with exponential backoff and checks every
// returned vector against the configured dimension.
func (r *Remote) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	delay := r.cfg.Backoff
	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			log.Warnf("WARN: %s embedding attempt %d failed: %v; retrying in %s", r.cfg.Provider, attempt, lastErr, delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
		vecs, err := r.embedder.Embed(ctx, texts)
		if err == nil {
			for i, v := range vecs {
				if len(v) != r.cfg.Dimension {
					return nil, fmt.Errorf("%w: %s returned %d values for text %d, want %d", models.ErrDimensionMismatch, r.cfg.Provider, len(v), i, r.cfg.Dimension)
				}
			}
			return vecs, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%s embedding failed after %d attempts: %w", r.cfg.Provider, r.cfg.MaxRetries+1, lastErr)
}

type remoteState struct {
	Config RemoteConfig `json:"config"`
}

func (r *Remote) Snapshot() ([]byte, error) {
	return encodeSnapshot(remoteName, r.fitID, remoteState{Config: r.cfg})
}

func restoreRemote(fitID uuid.UUID, raw json.RawMessage, embedder Embedder) (*Remote, error) {
	var st remoteState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode remote state: %w", err)
	}
	r, err := NewRemote(st.Config, embedder)
	if err != nil {
		return nil, err
	}
	if embedder.Name() != st.Config.Provider || embedder.ModelName() != st.Config.Model {
		return nil, fmt.Errorf("%w: snapshot was fitted with %s/%s, provider is %s/%s",
			models.ErrConfiguration, st.Config.Provider, st.Config.Model, embedder.Name(), embedder.ModelName())
	}
	r.fitID = fitID
	return r, nil
}

// openAIClient is the subset of *openai.Client used here.
type openAIClient interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// OpenAIEmbedder embeds text with the OpenAI embeddings endpoint.
type OpenAIEmbedder struct {
	client openAIClient
	model  openai.EmbeddingModel
}

func NewOpenAIEmbedder(apiKey, model string) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key not provided (OPENAI_API_KEY)", models.ErrConfiguration)
	}
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	log.Infof("OpenAI embedder initialized with model %s", model)
	return &OpenAIEmbedder{client: openai.NewClient(apiKey), model: openai.EmbeddingModel(model)}, nil
}

func (p *OpenAIEmbedder) Name() string      { return ProviderOpenAI }
func (p *OpenAIEmbedder) ModelName() string { return string(p.model) }

func (p *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{Input: texts, Model: p.model})
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error generating embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("OpenAI API returned %d embeddings, expected %d", len(resp.Data), len(texts))
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("OpenAI API returned embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// geminiModel is the subset of *genai.EmbeddingModel used here.
type geminiModel interface {
	EmbedContent(ctx context.Context, parts ...genai.Part) (*genai.EmbedContentResponse, error)
}

// GeminiEmbedder embeds text one document at a time with a Gemini
// embedding model.
type GeminiEmbedder struct {
	client *genai.Client
	model  geminiModel
	name   string
}

func NewGeminiEmbedder(ctx context.Context, apiKey, model string) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: Gemini API key not provided (GEMINI_API_KEY)", models.ErrConfiguration)
	}
	if model == "" {
		model = "models/text-embedding-004"
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	log.Infof("Gemini embedder initialized with model %s", model)
	return &GeminiEmbedder{client: client, model: client.EmbeddingModel(model), name: model}, nil
}

func (p *GeminiEmbedder) Name() string      { return ProviderGemini }
func (p *GeminiEmbedder) ModelName() string { return p.name }

func (p *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		res, err := p.model.EmbedContent(ctx, genai.Text(text))
		if err != nil {
			return nil, fmt.Errorf("Gemini API error generating embedding for text at index %d: %w", i, err)
		}
		if res == nil || res.Embedding == nil || len(res.Embedding.Values) == 0 {
			return nil, fmt.Errorf("Gemini API returned no embedding data for text at index %d", i)
		}
		out[i] = res.Embedding.Values
	}
	return out, nil
}

func (p *GeminiEmbedder) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}
