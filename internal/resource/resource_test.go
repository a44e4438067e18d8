package resource

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeStore backs Query/Save with an in-memory slice so tests can observe
// ordering between persist and re-read.
type fakeStore struct {
	mu   sync.Mutex
	data []string

	queryErr error
	saveErr  error
}

func (s *fakeStore) query(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	out := make([]string, len(s.data))
	copy(out, s.data)
	return out, nil
}

func (s *fakeStore) save(_ context.Context, data []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.data = data
	return nil
}

func sliceOpts(store *fakeStore, fetch func(ctx context.Context) ([]string, error)) Options[[]string] {
	return Options[[]string]{
		Query:   store.query,
		Fetch:   fetch,
		Save:    store.save,
		IsEmpty: func(local []string) bool { return len(local) == 0 },
	}
}

func collect(t *testing.T, ch <-chan Result[[]string]) []Result[[]string] {
	t.Helper()
	var out []Result[[]string]
	for r := range ch {
		out = append(out, r)
	}
	return out
}

func TestRunEmitsLoadingThenSuccess(t *testing.T) {
	store := &fakeStore{}
	opts := sliceOpts(store, func(context.Context) ([]string, error) {
		return []string{"ring", "necklace"}, nil
	})

	got := collect(t, Run(context.Background(), opts))

	if len(got) != 2 {
		t.Fatalf("expected 2 emissions, got %d", len(got))
	}
	if got[0].Status != StatusLoading {
		t.Fatalf("first emission: got %v, want loading", got[0].Status)
	}
	if got[1].Status != StatusSuccess || got[1].Stale {
		t.Fatalf("terminal emission: %+v", got[1])
	}
	if len(got[1].Data) != 2 {
		t.Fatalf("expected refreshed data, got %v", got[1].Data)
	}
}

func TestGetFreshCacheSkipsFetch(t *testing.T) {
	store := &fakeStore{data: []string{"cached"}}
	fetches := 0
	opts := sliceOpts(store, func(context.Context) ([]string, error) {
		fetches++
		return nil, errors.New("should not be called")
	})
	opts.ShouldFetch = func(local []string) bool { return len(local) == 0 }

	res := Get(context.Background(), opts)

	if res.Status != StatusSuccess || res.Fetched {
		t.Fatalf("unexpected result: %+v", res)
	}
	if fetches != 0 {
		t.Fatalf("fetch called %d times, want 0", fetches)
	}
	if res.Outcome() != "fresh" {
		t.Fatalf("outcome: got %q, want fresh", res.Outcome())
	}
}

func TestGetFetchFailureFallsBackToCache(t *testing.T) {
	store := &fakeStore{data: []string{"cached"}}
	opts := sliceOpts(store, func(context.Context) ([]string, error) {
		return nil, errors.New("network down")
	})

	res := Get(context.Background(), opts)

	if res.Status != StatusSuccess {
		t.Fatalf("non-empty cache must yield success, got %+v", res)
	}
	if !res.Stale || res.Err == nil {
		t.Fatalf("fallback must be tagged stale with the cause attached: %+v", res)
	}
	if res.Data[0] != "cached" {
		t.Fatalf("expected cached data, got %v", res.Data)
	}
	if res.Outcome() != "fallback" {
		t.Fatalf("outcome: got %q, want fallback", res.Outcome())
	}
}

func TestGetFetchFailureEmptyCacheIsError(t *testing.T) {
	store := &fakeStore{}
	cause := errors.New("network down")
	opts := sliceOpts(store, func(context.Context) ([]string, error) {
		return nil, cause
	})

	res := Get(context.Background(), opts)

	if res.Status != StatusError {
		t.Fatalf("empty cache must never fabricate success: %+v", res)
	}
	if !errors.Is(res.Err, cause) {
		t.Fatalf("expected original cause, got %v", res.Err)
	}
}

func TestGetPersistsBeforeReRead(t *testing.T) {
	store := &fakeStore{data: []string{"old"}}
	opts := sliceOpts(store, func(context.Context) ([]string, error) {
		return []string{"new"}, nil
	})

	res := Get(context.Background(), opts)

	if res.Status != StatusSuccess {
		t.Fatalf("unexpected result: %+v", res)
	}
	// The emitted value must be the re-read of what Save persisted, not the
	// stale pre-fetch snapshot.
	if len(res.Data) != 1 || res.Data[0] != "new" {
		t.Fatalf("re-read did not reflect persisted data: %v", res.Data)
	}
}

func TestGetSaveFailureFallsBack(t *testing.T) {
	store := &fakeStore{data: []string{"cached"}, saveErr: errors.New("disk full")}
	opts := sliceOpts(store, func(context.Context) ([]string, error) {
		return []string{"new"}, nil
	})

	res := Get(context.Background(), opts)

	if res.Status != StatusSuccess || !res.Stale {
		t.Fatalf("save failure should fall back to cache: %+v", res)
	}
	if res.Data[0] != "cached" {
		t.Fatalf("expected cached data, got %v", res.Data)
	}
}

func TestGetQueryErrorSurfaces(t *testing.T) {
	store := &fakeStore{queryErr: errors.New("db closed")}
	opts := sliceOpts(store, func(context.Context) ([]string, error) {
		return []string{"x"}, nil
	})

	res := Get(context.Background(), opts)
	if res.Status != StatusError {
		t.Fatalf("query error must surface: %+v", res)
	}
}

func TestGetNilIsEmptyDisablesFallback(t *testing.T) {
	store := &fakeStore{data: []string{"cached"}}
	opts := sliceOpts(store, func(context.Context) ([]string, error) {
		return nil, errors.New("boom")
	})
	opts.IsEmpty = nil

	res := Get(context.Background(), opts)
	if res.Status != StatusError {
		t.Fatalf("without IsEmpty no fallback may happen: %+v", res)
	}
}

func TestRunCancelledContextStopsEmission(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := &fakeStore{}
	started := make(chan struct{})
	opts := sliceOpts(store, func(ctx context.Context) ([]string, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	ch := Run(ctx, opts)
	if r := <-ch; r.Status != StatusLoading {
		t.Fatalf("expected loading first, got %+v", r)
	}
	<-started
	cancel()

	// Channel must close without further blocking.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel did not close after cancellation")
		}
	}
}

func TestWatchForwardsChangeStream(t *testing.T) {
	store := &fakeStore{data: []string{"cached"}}
	opts := sliceOpts(store, func(context.Context) ([]string, error) {
		return []string{"synced"}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan []string, 1)
	ch := Watch(ctx, opts, func(context.Context) (<-chan []string, error) {
		return changes, nil
	})

	if r := <-ch; r.Status != StatusLoading {
		t.Fatalf("expected loading, got %+v", r)
	}
	if r := <-ch; r.Status != StatusSuccess || r.Data[0] != "synced" {
		t.Fatalf("expected synced success, got %+v", r)
	}

	changes <- []string{"updated"}
	if r := <-ch; r.Status != StatusSuccess || r.Data[0] != "updated" {
		t.Fatalf("expected forwarded change, got %+v", r)
	}
}

func TestGroupCollapsesConcurrentLoads(t *testing.T) {
	store := &fakeStore{}
	var fetches atomic.Int32
	release := make(chan struct{})
	opts := sliceOpts(store, func(context.Context) ([]string, error) {
		fetches.Add(1)
		<-release
		return []string{"shared"}, nil
	})

	var group Group[[]string]
	const callers = 8
	results := make(chan Result[[]string], callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- group.Get(context.Background(), "products:rings", opts)
		}()
	}

	// Give the goroutines a moment to pile onto the same key.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(results)

	if n := fetches.Load(); n != 1 {
		t.Fatalf("fetch ran %d times for one key, want 1", n)
	}
	for r := range results {
		if r.Status != StatusSuccess || r.Data[0] != "shared" {
			t.Fatalf("caller got unexpected result: %+v", r)
		}
	}
}

func TestGroupCancelledInitiatorDoesNotFailWaiters(t *testing.T) {
	store := &fakeStore{}
	release := make(chan struct{})
	opts := sliceOpts(store, func(ctx context.Context) ([]string, error) {
		select {
		case <-release:
			return []string{"late"}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	var group Group[[]string]
	ctx, cancel := context.WithCancel(context.Background())

	first := make(chan Result[[]string], 1)
	go func() { first <- group.Get(ctx, "k", opts) }()
	time.Sleep(50 * time.Millisecond)

	second := make(chan Result[[]string], 1)
	go func() { second <- group.Get(context.Background(), "k", opts) }()
	time.Sleep(50 * time.Millisecond)

	cancel()
	if r := <-first; r.Status != StatusError || !errors.Is(r.Err, context.Canceled) {
		t.Fatalf("cancelled caller should get its own context error, got %+v", r)
	}

	close(release)
	if r := <-second; r.Status != StatusSuccess || r.Data[0] != "late" {
		t.Fatalf("waiter must survive the initiator's cancellation, got %+v", r)
	}
}

func TestGroupIndependentKeys(t *testing.T) {
	store := &fakeStore{}
	var fetches atomic.Int32
	opts := sliceOpts(store, func(context.Context) ([]string, error) {
		fetches.Add(1)
		return []string{"ok"}, nil
	})

	var group Group[[]string]
	group.Get(context.Background(), "k1", opts)
	group.Get(context.Background(), "k2", opts)

	if n := fetches.Load(); n != 2 {
		t.Fatalf("distinct keys must not share executions: %d fetches", n)
	}
}
