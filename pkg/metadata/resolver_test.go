package metadata

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name    string
	byISBN  func(ctx context.Context, isbn string) (*BookMetadata, error)
	byTitle func(ctx context.Context, title, author string) ([]*BookMetadata, error)
}

func (s *stubProvider) Name() string {
	return s.name
}

func (s *stubProvider) LookupByISBN(ctx context.Context, isbn string) (*BookMetadata, error) {
	if s.byISBN == nil {
		return nil, nil
	}
	return s.byISBN(ctx, isbn)
}

func (s *stubProvider) LookupByTitle(ctx context.Context, title, author string) ([]*BookMetadata, error) {
	if s.byTitle == nil {
		return nil, nil
	}
	return s.byTitle(ctx, title, author)
}

func TestResolverDisabled(t *testing.T) {
	var calls atomic.Int32
	provider := &stubProvider{
		name: "stub",
		byISBN: func(_ context.Context, _ string) (*BookMetadata, error) {
			calls.Add(1)
			return &BookMetadata{Title: "Dune"}, nil
		},
	}

	resolver := NewResolver(ResolverOptions{Enabled: false}, provider)
	assert.False(t, resolver.Enabled())
	assert.Nil(t, resolver.ResolveByISBN(context.Background(), "9780441172719"))
	assert.Nil(t, resolver.ResolveByTitle(context.Background(), "Dune", ""))
	assert.Equal(t, int32(0), calls.Load())
}

func TestResolverEmptyQuery(t *testing.T) {
	resolver := NewResolver(ResolverOptions{Enabled: true}, &stubProvider{name: "stub"})
	assert.Nil(t, resolver.ResolveByISBN(context.Background(), ""))
	assert.Nil(t, resolver.ResolveByTitle(context.Background(), "", "anyone"))
}

func TestResolverPrimaryWins(t *testing.T) {
	primary := &stubProvider{
		name: "primary",
		byISBN: func(_ context.Context, _ string) (*BookMetadata, error) {
			return &BookMetadata{Title: "Dune", Publisher: "Chilton Books"}, nil
		},
	}
	fallback := &stubProvider{
		name: "fallback",
		byISBN: func(_ context.Context, _ string) (*BookMetadata, error) {
			return &BookMetadata{Title: "Dune (Reissue)", PageCount: 412, Language: "en"}, nil
		},
	}

	resolver := NewResolver(ResolverOptions{Enabled: true}, primary, fallback)
	md := resolver.ResolveByISBN(context.Background(), "9780441172719")
	require.NotNil(t, md)
	assert.Equal(t, "Dune", md.Title)
	assert.Equal(t, "Chilton Books", md.Publisher)
	assert.Equal(t, 412, md.PageCount)
	assert.Equal(t, "en", md.Language)
}

func TestResolverProviderFaultDegradesToFallback(t *testing.T) {
	primary := &stubProvider{
		name: "primary",
		byISBN: func(_ context.Context, _ string) (*BookMetadata, error) {
			return nil, errors.New("boom")
		},
	}
	fallback := &stubProvider{
		name: "fallback",
		byISBN: func(_ context.Context, _ string) (*BookMetadata, error) {
			return &BookMetadata{Title: "Hyperion"}, nil
		},
	}

	resolver := NewResolver(ResolverOptions{Enabled: true}, primary, fallback)
	md := resolver.ResolveByISBN(context.Background(), "9780553283686")
	require.NotNil(t, md)
	assert.Equal(t, "Hyperion", md.Title)
}

func TestResolverNoResults(t *testing.T) {
	resolver := NewResolver(ResolverOptions{Enabled: true}, &stubProvider{name: "stub"})
	assert.Nil(t, resolver.ResolveByISBN(context.Background(), "9780441172719"))
}

func TestResolverRetriesTransientFailures(t *testing.T) {
	var attempts atomic.Int32
	provider := &stubProvider{
		name: "flaky",
		byISBN: func(_ context.Context, _ string) (*BookMetadata, error) {
			if attempts.Add(1) == 1 {
				return nil, errors.Wrap(ErrUpstreamUnavailable, "HTTP 503")
			}
			return &BookMetadata{Title: "Dune"}, nil
		},
	}

	resolver := NewResolver(ResolverOptions{Enabled: true, MaxRetries: 2}, provider)
	md := resolver.ResolveByISBN(context.Background(), "9780441172719")
	require.NotNil(t, md)
	assert.Equal(t, "Dune", md.Title)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestResolverZeroRetryBudgetMeansSingleAttempt(t *testing.T) {
	var attempts atomic.Int32
	provider := &stubProvider{
		name: "down",
		byISBN: func(_ context.Context, _ string) (*BookMetadata, error) {
			attempts.Add(1)
			return nil, errors.Wrap(ErrUpstreamUnavailable, "HTTP 503")
		},
	}

	resolver := NewResolver(ResolverOptions{Enabled: true}, provider)
	assert.Nil(t, resolver.ResolveByISBN(context.Background(), "9780441172719"))
	assert.Equal(t, int32(1), attempts.Load())
}

func TestResolverRetryBudgetBoundsPersistentFailures(t *testing.T) {
	var attempts atomic.Int32
	provider := &stubProvider{
		name: "down",
		byISBN: func(_ context.Context, _ string) (*BookMetadata, error) {
			attempts.Add(1)
			return nil, errors.Wrap(ErrUpstreamUnavailable, "HTTP 503")
		},
	}

	resolver := NewResolver(ResolverOptions{Enabled: true, MaxRetries: 2}, provider)
	assert.Nil(t, resolver.ResolveByISBN(context.Background(), "9780441172719"))
	assert.Equal(t, int32(3), attempts.Load())
}

func TestResolverDoesNotRetryPermanentFailures(t *testing.T) {
	var attempts atomic.Int32
	provider := &stubProvider{
		name: "broken",
		byISBN: func(_ context.Context, _ string) (*BookMetadata, error) {
			attempts.Add(1)
			return nil, errors.New("malformed response")
		},
	}

	resolver := NewResolver(ResolverOptions{Enabled: true, MaxRetries: 3}, provider)
	assert.Nil(t, resolver.ResolveByISBN(context.Background(), "9780441172719"))
	assert.Equal(t, int32(1), attempts.Load())
}

func TestResolverByTitlePicksFirstUsableMatch(t *testing.T) {
	provider := &stubProvider{
		name: "stub",
		byTitle: func(_ context.Context, title, author string) ([]*BookMetadata, error) {
			assert.Equal(t, "Hyperion", title)
			assert.Equal(t, "Dan Simmons", author)
			return []*BookMetadata{
				{},
				{Title: "Hyperion", Publisher: "Doubleday"},
				{Title: "Hyperion Omnibus"},
			}, nil
		},
	}

	resolver := NewResolver(ResolverOptions{Enabled: true}, provider)
	md := resolver.ResolveByTitle(context.Background(), "Hyperion", "Dan Simmons")
	require.NotNil(t, md)
	assert.Equal(t, "Hyperion", md.Title)
	assert.Equal(t, "Doubleday", md.Publisher)
}

func TestResolverCapsConcurrentCalls(t *testing.T) {
	var inFlight, peak atomic.Int32
	provider := &stubProvider{
		name: "slow",
		byISBN: func(_ context.Context, _ string) (*BookMetadata, error) {
			current := inFlight.Add(1)
			defer inFlight.Add(-1)

			for {
				observed := peak.Load()
				if current <= observed || peak.CompareAndSwap(observed, current) {
					break
				}
			}

			time.Sleep(10 * time.Millisecond)
			return &BookMetadata{Title: "x"}, nil
		},
	}

	resolver := NewResolver(ResolverOptions{Enabled: true, Concurrency: 1}, provider)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resolver.ResolveByISBN(context.Background(), "9780441172719")
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), peak.Load())
}

func TestResolverCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := &stubProvider{
		name: "stub",
		byISBN: func(_ context.Context, _ string) (*BookMetadata, error) {
			return &BookMetadata{Title: "Dune"}, nil
		},
	}

	resolver := NewResolver(ResolverOptions{Enabled: true}, provider)
	assert.Nil(t, resolver.ResolveByISBN(ctx, "9780441172719"))
}
