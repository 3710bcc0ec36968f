package embed

import (
	"context"
	"sync"
)

// Provider hands out a lazily constructed Encoder. Construction runs at most
// once; every caller after the first observes the same encoder or the same
// construction error.
type Provider struct {
	build func() (Encoder, error)

	once sync.Once
	enc  Encoder
	err  error
}

// NewProvider wraps an encoder constructor.
func NewProvider(build func() (Encoder, error)) *Provider {
	return &Provider{build: build}
}

// Get returns the shared encoder, constructing it on first call.
func (p *Provider) Get() (Encoder, error) {
	p.once.Do(func() {
		p.enc, p.err = p.build()
	})
	return p.enc, p.err
}

// Encode implements Encoder by delegating to the shared instance.
func (p *Provider) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	enc, err := p.Get()
	if err != nil {
		return nil, err
	}
	return enc.Encode(ctx, texts)
}

// EncodeQuery implements Encoder by delegating to the shared instance.
func (p *Provider) EncodeQuery(ctx context.Context, text string) ([]float32, error) {
	enc, err := p.Get()
	if err != nil {
		return nil, err
	}
	return enc.EncodeQuery(ctx, text)
}

// Model returns the shared encoder's model, or "" if construction failed.
func (p *Provider) Model() string {
	enc, err := p.Get()
	if err != nil {
		return ""
	}
	return enc.Model()
}

// Dimension returns the shared encoder's dimensionality, or 0 if
// construction failed.
func (p *Provider) Dimension() int {
	enc, err := p.Get()
	if err != nil {
		return 0
	}
	return enc.Dimension()
}
