package metadata

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"golang.org/x/sync/semaphore"
)

// ResolverOptions tune lookup discipline. Zero values for Timeout and
// Concurrency fall back to defaults; MaxRetries of zero means a single
// attempt per provider call.
type ResolverOptions struct {
	Enabled     bool
	Timeout     time.Duration
	MaxRetries  uint64
	Concurrency int64
}

const (
	defaultProviderTimeout     = 10 * time.Second
	defaultProviderConcurrency = 2
)

// Resolver queries providers in order and fuses their results. The first
// provider to supply a field wins; later providers only fill what is still
// empty. Lookups are capped per provider, time out per call, and retry only
// on transient upstream failures. A resolver with lookups disabled returns
// nil from every call.
type Resolver struct {
	providers []Provider
	sems      map[string]*semaphore.Weighted
	opts      ResolverOptions
}

func NewResolver(opts ResolverOptions, providers ...Provider) *Resolver {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultProviderTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultProviderConcurrency
	}

	sems := make(map[string]*semaphore.Weighted, len(providers))
	for _, p := range providers {
		sems[p.Name()] = semaphore.NewWeighted(opts.Concurrency)
	}

	return &Resolver{providers: providers, sems: sems, opts: opts}
}

// Enabled reports whether external lookups run at all.
func (r *Resolver) Enabled() bool {
	return r.opts.Enabled
}

// ResolveByISBN asks every provider for the identifier and fuses the results.
// Returns nil when lookups are disabled or nothing was found.
func (r *Resolver) ResolveByISBN(ctx context.Context, isbn string) *BookMetadata {
	if !r.opts.Enabled || isbn == "" {
		return nil
	}

	var fused *BookMetadata
	for _, p := range r.providers {
		result := r.lookup(ctx, p.Name(), func(callCtx context.Context) (*BookMetadata, error) {
			return p.LookupByISBN(callCtx, isbn)
		})
		fused = fuse(fused, result)
	}

	if fused.IsEmpty() {
		return nil
	}
	return fused
}

// ResolveByTitle searches every provider by title and optional author, takes
// each provider's best match, and fuses them.
func (r *Resolver) ResolveByTitle(ctx context.Context, title, author string) *BookMetadata {
	if !r.opts.Enabled || title == "" {
		return nil
	}

	var fused *BookMetadata
	for _, p := range r.providers {
		result := r.lookup(ctx, p.Name(), func(callCtx context.Context) (*BookMetadata, error) {
			matches, err := p.LookupByTitle(callCtx, title, author)
			if err != nil {
				return nil, err
			}
			for _, m := range matches {
				if !m.IsEmpty() {
					return m, nil
				}
			}
			return nil, nil
		})
		fused = fuse(fused, result)
	}

	if fused.IsEmpty() {
		return nil
	}
	return fused
}

// lookup runs one provider call under the provider's concurrency cap with a
// per-attempt timeout. Transient upstream failures retry with exponential
// backoff; anything else fails the call immediately. Failures degrade to a
// nil result so the scan pipeline never sees provider faults.
func (r *Resolver) lookup(ctx context.Context, name string, fn func(context.Context) (*BookMetadata, error)) *BookMetadata {
	log := logger.FromContext(ctx)

	sem := r.sems[name]
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil
	}
	defer sem.Release(1)

	var result *BookMetadata
	op := func() error {
		callCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()

		md, err := fn(callCtx)
		if err == nil {
			result = md
			return nil
		}
		if errors.Is(err, ErrUpstreamUnavailable) {
			return err
		}
		return backoff.Permanent(err)
	}

	if err := backoff.Retry(op, r.newBackOff(ctx)); err != nil {
		log.Warn("metadata lookup failed", logger.Data{"provider": name, "err": err.Error()})
		return nil
	}

	return result
}

// newBackOff builds the retry policy for one provider call.
// backoff.WithMaxRetries treats a zero budget as unlimited, so zero
// short-circuits to a single attempt instead.
func (r *Resolver) newBackOff(ctx context.Context) backoff.BackOff {
	if r.opts.MaxRetries == 0 {
		return &backoff.StopBackOff{}
	}

	eb := backoff.NewExponentialBackOff()
	eb.MaxElapsedTime = 0 // the attempt budget is the only limit
	return backoff.WithContext(backoff.WithMaxRetries(eb, r.opts.MaxRetries), ctx)
}

func fuse(base, add *BookMetadata) *BookMetadata {
	if add.IsEmpty() {
		return base
	}
	if base == nil {
		return add
	}
	base.fillFrom(add)
	return base
}
