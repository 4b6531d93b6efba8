package rbac

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	mu    sync.Mutex
	sets  map[int64]PermissionSet
	err   error
	calls int64

	entered chan struct{}
	release chan struct{}
}

func (r *stubResolver) UserPermissions(ctx context.Context, userID int64) (PermissionSet, error) {
	atomic.AddInt64(&r.calls, 1)
	if r.entered != nil {
		r.entered <- struct{}{}
		<-r.release
	}
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.sets[userID]
	if !ok {
		return NewPermissionSet(), nil
	}
	return set, nil
}

func (r *stubResolver) callCount() int64 {
	return atomic.LoadInt64(&r.calls)
}

func TestCheckerResolveCachesResult(t *testing.T) {
	resolver := &stubResolver{sets: map[int64]PermissionSet{
		7: NewPermissionSet(Permission{Module: "orders", Action: "read"}),
	}}
	checker := NewChecker(resolver, NewCache(time.Minute))

	for i := 0; i < 3; i++ {
		set, err := checker.Resolve(context.Background(), 7)
		require.NoError(t, err)
		assert.True(t, set.Has("orders:read"))
	}
	assert.Equal(t, int64(1), resolver.callCount())
}

func TestCheckerResolveUnknownUserYieldsEmptySet(t *testing.T) {
	resolver := &stubResolver{sets: map[int64]PermissionSet{}}
	checker := NewChecker(resolver, NewCache(time.Minute))

	set, err := checker.Resolve(context.Background(), 404)
	require.NoError(t, err)
	assert.Empty(t, set)

	decision, err := checker.Authorize(context.Background(), 404, "orders", "read", AnyResource())
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonDenied, decision.Reason)
}

func TestCheckerAuthorizeGranted(t *testing.T) {
	resolver := &stubResolver{sets: map[int64]PermissionSet{
		7: NewPermissionSet(Permission{Module: "orders", Action: "update"}),
	}}
	checker := NewChecker(resolver, NewCache(time.Minute))

	decision, err := checker.Authorize(context.Background(), 7, "orders", "update", ExactResource("status"))
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, ReasonGranted, decision.Reason)

	// Repeated identical checks are stable and served from cache.
	again, err := checker.Authorize(context.Background(), 7, "orders", "update", ExactResource("status"))
	require.NoError(t, err)
	assert.Equal(t, decision, again)
	assert.Equal(t, int64(1), resolver.callCount())
}

func TestCheckerAuthorizeFailsClosedOnResolverError(t *testing.T) {
	resolver := &stubResolver{err: errors.New("connection refused")}
	checker := NewChecker(resolver, NewCache(time.Minute))

	decision, err := checker.Authorize(context.Background(), 7, "orders", "read", AnyResource())
	require.Error(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonError, decision.Reason)
}

func TestCheckerResolverErrorIsNotCached(t *testing.T) {
	resolver := &stubResolver{err: errors.New("connection refused")}
	cache := NewCache(time.Minute)
	checker := NewChecker(resolver, cache)

	_, err := checker.Resolve(context.Background(), 7)
	require.Error(t, err)
	assert.Equal(t, 0, cache.Len())

	resolver.err = nil
	resolver.mu.Lock()
	resolver.sets = map[int64]PermissionSet{7: NewPermissionSet(Permission{Module: "orders", Action: "read"})}
	resolver.mu.Unlock()

	set, err := checker.Resolve(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, set.Has("orders:read"))
}

func TestCheckerReResolvesAfterInvalidation(t *testing.T) {
	resolver := &stubResolver{sets: map[int64]PermissionSet{
		7: NewPermissionSet(Permission{Module: "orders", Action: "read"}),
	}}
	cache := NewCache(time.Minute)
	checker := NewChecker(resolver, cache)

	decision, err := checker.Authorize(context.Background(), 7, "orders", "read", AnyResource())
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	// Simulate a revocation followed by explicit invalidation.
	resolver.mu.Lock()
	resolver.sets[7] = NewPermissionSet()
	resolver.mu.Unlock()
	cache.Invalidate(7)

	decision, err = checker.Authorize(context.Background(), 7, "orders", "read", AnyResource())
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, int64(2), resolver.callCount())
}

func TestCheckerCollapsesConcurrentMisses(t *testing.T) {
	resolver := &stubResolver{
		sets: map[int64]PermissionSet{
			7: NewPermissionSet(Permission{Module: "orders", Action: "read"}),
		},
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	checker := NewChecker(resolver, NewCache(time.Minute))

	var wg sync.WaitGroup
	results := make([]PermissionSet, 5)
	errs := make([]error, 5)

	// First caller enters the resolver and blocks.
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = checker.Resolve(context.Background(), 7)
	}()
	<-resolver.entered

	// Remaining callers join the in-flight resolution.
	for i := 1; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = checker.Resolve(context.Background(), 7)
		}(i)
	}
	close(resolver.release)
	wg.Wait()

	for i := 0; i < 5; i++ {
		require.NoError(t, errs[i])
		assert.True(t, results[i].Has("orders:read"))
	}
	assert.Equal(t, int64(1), resolver.callCount())
}
