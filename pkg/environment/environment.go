// Package environment abstracts environment variable resolution so model
// providers and the sandbox never read the process environment directly.
// Tests inject a MapProvider; production chains the process environment.
package environment

import (
	"context"
	"os"
)

// Provider resolves named environment values.
type Provider interface {
	// Get retrieves a value by name.
	// Returns (value, true) if the name is set, ("", false) otherwise.
	Get(ctx context.Context, name string) (string, bool)
}

// OSProvider resolves values from the process environment.
type OSProvider struct{}

// NewOSProvider creates a Provider backed by os.LookupEnv.
func NewOSProvider() *OSProvider {
	return &OSProvider{}
}

func (p *OSProvider) Get(_ context.Context, name string) (string, bool) {
	return os.LookupEnv(name)
}

// Chain tries each provider in order and returns the first hit.
type Chain struct {
	providers []Provider
}

// NewChain creates a Provider that consults the given providers in order.
func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: providers}
}

func (c *Chain) Get(ctx context.Context, name string) (string, bool) {
	for _, p := range c.providers {
		if val, found := p.Get(ctx, name); found {
			return val, true
		}
	}
	return "", false
}
