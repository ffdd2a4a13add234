package sink

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

var ErrUnknownScheme = errors.New("no sink provider for scheme")

// Registry dispatches references to the Provider registered for their
// scheme. New objects are always allocated by the default provider, so
// switching the default never strands existing uploads.
type Registry struct {
	mu            sync.RWMutex
	providers     map[string]Provider
	defaultScheme string
}

func NewRegistry(defaultProvider Provider, others ...Provider) *Registry {
	r := &Registry{
		providers:     make(map[string]Provider),
		defaultScheme: defaultProvider.Scheme(),
	}

	r.Register(defaultProvider)
	for _, p := range others {
		r.Register(p)
	}

	return r
}

func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Scheme()] = p
}

func (r *Registry) Default() Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[r.defaultScheme]
}

func (r *Registry) Resolve(ref string) (Provider, error) {
	scheme, _, err := ParseRef(ref)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[scheme]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownScheme, "'%s'", scheme)
	}

	return p, nil
}

func (r *Registry) Allocate(ctx context.Context, uploadID, filename string) (string, error) {
	return r.Default().Allocate(ctx, uploadID, filename)
}

func (r *Registry) Size(ctx context.Context, ref string) (int64, error) {
	p, err := r.Resolve(ref)
	if err != nil {
		return 0, err
	}

	return p.Size(ctx, ref)
}

func (r *Registry) Append(ctx context.Context, ref string, data []byte) error {
	p, err := r.Resolve(ref)
	if err != nil {
		return err
	}

	return p.Append(ctx, ref, data)
}

func (r *Registry) Delete(ctx context.Context, ref string) error {
	p, err := r.Resolve(ref)
	if err != nil {
		return err
	}

	return p.Delete(ctx, ref)
}
