package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/knowledgebench/bench/pkg/fn"
	"github.com/knowledgebench/bench/pkg/resilience"
)

// Client implements Encoder against an OpenAI-compatible /v1/embeddings
// endpoint (vLLM, TEI, and similar servers).
type Client struct {
	baseURL     string
	model       string
	dimension   int
	batchSize   int
	concurrency int
	http        *http.Client
	breaker     *resilience.Breaker
	limiter     *resilience.Limiter
}

// ClientOpts configures a Client. Zero values fall back to the package
// defaults.
type ClientOpts struct {
	BaseURL     string
	Model       string
	Dimension   int
	BatchSize   int
	Concurrency int
	Timeout     time.Duration
	// RateLimit caps embedding requests per second.
	RateLimit float64
}

// NewClient creates an embedding client for the given endpoint.
func NewClient(opts ClientOpts) *Client {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Dimension <= 0 {
		opts.Dimension = DefaultDimension
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = DefaultRateLimit
	}
	return &Client{
		baseURL:     opts.BaseURL,
		model:       opts.Model,
		dimension:   opts.Dimension,
		batchSize:   opts.BatchSize,
		concurrency: opts.Concurrency,
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
		limiter: resilience.NewLimiter(resilience.LimiterOpts{Rate: opts.RateLimit, Burst: 2 * opts.Concurrency}),
	}
}

// Model returns the model identifier the client encodes with.
func (c *Client) Model() string { return c.model }

// Dimension returns the configured vector dimensionality.
func (c *Client) Dimension() int { return c.dimension }

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Encode embeds document-side texts. Inputs are prefixed, batched, and the
// returned vectors are unit-normalized, one per input, in order.
func (c *Client) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	prefixed := fn.Map(texts, func(t string) string { return PassagePrefix + t })

	batches := fn.Chunk(prefixed, c.batchSize)
	results := fn.ParMapResult(batches, c.concurrency, func(batch []string) fn.Result[[][]float32] {
		return fn.FromPair(c.encodeBatch(ctx, batch))
	})
	collected, err := fn.Collect(results).Unwrap()
	if err != nil {
		return nil, err
	}

	out := make([][]float32, 0, len(prefixed))
	for _, vecs := range collected {
		out = append(out, vecs...)
	}
	return out, nil
}

// EncodeQuery embeds a single query-side text.
func (c *Client) EncodeQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.encodeBatch(ctx, []string{QueryPrefix + text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (c *Client) encodeBatch(ctx context.Context, inputs []string) ([][]float32, error) {
	var vecs [][]float32
	err := c.limiter.Do(ctx, func(ctx context.Context) error {
		return c.breaker.Call(ctx, func(ctx context.Context) error {
			var err error
			vecs, err = c.post(ctx, inputs)
			return err
		})
	})
	return vecs, err
}

func (c *Client) post(ctx context.Context, inputs []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: c.model, Input: inputs})
	if err != nil {
		return nil, fmt.Errorf("embed: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embed: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed: status %d", resp.StatusCode)
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("embed: decode response: %w", err)
	}
	if len(result.Data) != len(inputs) {
		return nil, fmt.Errorf("embed: got %d vectors for %d inputs", len(result.Data), len(inputs))
	}

	vecs := make([][]float32, len(inputs))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			return nil, fmt.Errorf("embed: vector index %d out of range", d.Index)
		}
		if len(d.Embedding) != c.dimension {
			return nil, fmt.Errorf("embed: vector dimension %d, want %d", len(d.Embedding), c.dimension)
		}
		vecs[d.Index] = Normalize(d.Embedding)
	}
	return vecs, nil
}
