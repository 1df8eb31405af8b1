package resource

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synapse-dev/synapse/pkg/synapse"
)

func awaitSettle(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("fetch did not settle in time")
	}
}

func TestResourceLifecycle(t *testing.T) {
	release := make(chan struct{})
	r := New(func() (string, error) {
		<-release
		return "data", nil
	})

	// Immediately after creation: loading, no error, zero data
	require.True(t, r.PeekLoading())
	require.NoError(t, r.PeekErr())
	require.Equal(t, "", r.PeekData())

	close(release)
	require.Eventually(t, func() bool { return !r.PeekLoading() },
		2*time.Second, time.Millisecond)

	assert.Equal(t, "data", r.PeekData())
	assert.NoError(t, r.PeekErr())
}

func TestResourceRefetchRunsFetcherExactlyOnce(t *testing.T) {
	var calls atomic.Int32
	r := New(func() (int, error) {
		return int(calls.Add(1)), nil
	})

	require.Eventually(t, func() bool { return !r.PeekLoading() },
		2*time.Second, time.Millisecond)
	require.EqualValues(t, 1, calls.Load())

	done := r.Refetch()

	// Refetch flips loading back on synchronously
	assert.True(t, r.PeekLoading())

	awaitSettle(t, done)
	assert.EqualValues(t, 2, calls.Load())
	assert.Equal(t, 2, r.PeekData())
	assert.False(t, r.PeekLoading())
}

func TestResourceError(t *testing.T) {
	boom := errors.New("backend down")
	fail := atomic.Bool{}
	fail.Store(true)

	var gotErr error
	var mu sync.Mutex

	r := New(func() (int, error) {
		if fail.Load() {
			return 0, boom
		}
		return 7, nil
	}, OnError[int](func(err error) {
		mu.Lock()
		gotErr = err
		mu.Unlock()
	}))

	require.Eventually(t, func() bool { return !r.PeekLoading() },
		2*time.Second, time.Millisecond)

	assert.ErrorIs(t, r.PeekErr(), boom)
	assert.Equal(t, 0, r.PeekData())
	mu.Lock()
	assert.ErrorIs(t, gotErr, boom)
	mu.Unlock()

	// A successful refetch clears the error
	fail.Store(false)
	awaitSettle(t, r.Refetch())

	assert.NoError(t, r.PeekErr())
	assert.Equal(t, 7, r.PeekData())
}

func TestResourceFetcherPanicBecomesError(t *testing.T) {
	r := New(func() (int, error) {
		panic("fetcher exploded")
	})
	require.Eventually(t, func() bool { return !r.PeekLoading() },
		2*time.Second, time.Millisecond)
	require.Error(t, r.PeekErr())
	assert.Equal(t, "fetcher exploded", r.PeekErr().Error())

	cause := errors.New("typed failure")
	r2 := New(func() (int, error) {
		panic(cause)
	})
	require.Eventually(t, func() bool { return !r2.PeekLoading() },
		2*time.Second, time.Millisecond)
	assert.ErrorIs(t, r2.PeekErr(), cause)
}

func TestResourceStaleCompletionDropped(t *testing.T) {
	entered := make(chan struct{}, 2)
	gate := make(chan struct{})
	var n atomic.Int32

	r := New(func() (int, error) {
		id := n.Add(1)
		entered <- struct{}{}
		if id == 1 {
			<-gate
			return 100, nil
		}
		return 200, nil
	})

	// First fetch is in flight and blocked
	<-entered

	done2 := r.Refetch()
	<-entered
	awaitSettle(t, done2)
	require.Equal(t, 200, r.PeekData())
	require.False(t, r.PeekLoading())

	// Let the superseded first fetch finish: its result must be discarded
	close(gate)
	assert.Never(t, func() bool { return r.PeekData() == 100 },
		200*time.Millisecond, 10*time.Millisecond)
	assert.Equal(t, 200, r.PeekData())
}

func TestResourceWithInitial(t *testing.T) {
	release := make(chan struct{})
	r := New(func() ([]string, error) {
		<-release
		return []string{"fresh"}, nil
	}, WithInitial([]string{"cached"}))

	assert.Equal(t, []string{"cached"}, r.PeekData())
	assert.True(t, r.PeekLoading())

	close(release)
	require.Eventually(t, func() bool { return !r.PeekLoading() },
		2*time.Second, time.Millisecond)
	assert.Equal(t, []string{"fresh"}, r.PeekData())
}

func TestResourceStaleTime(t *testing.T) {
	var calls atomic.Int32
	r := New(func() (int, error) {
		return int(calls.Add(1)), nil
	}, WithStaleTime[int](time.Hour))

	require.Eventually(t, func() bool { return !r.PeekLoading() },
		2*time.Second, time.Millisecond)
	require.EqualValues(t, 1, calls.Load())

	// Within the stale window Fetch short-circuits
	awaitSettle(t, r.Fetch())
	assert.EqualValues(t, 1, calls.Load())

	// Refetch always bypasses the window
	awaitSettle(t, r.Refetch())
	assert.EqualValues(t, 2, calls.Load())

	// Invalidate expires the window for the next Fetch
	r.Invalidate()
	awaitSettle(t, r.Fetch())
	assert.EqualValues(t, 3, calls.Load())
}

func TestResourceOnSuccess(t *testing.T) {
	var mu sync.Mutex
	var got []int

	r := New(func() (int, error) {
		return 42, nil
	}, OnSuccess(func(v int) {
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
	}))

	require.Eventually(t, func() bool { return !r.PeekLoading() },
		2*time.Second, time.Millisecond)

	mu.Lock()
	assert.Equal(t, []int{42}, got)
	mu.Unlock()
}

func TestResourceMutate(t *testing.T) {
	r := New(func() ([]int, error) {
		return []int{1, 2}, nil
	})
	require.Eventually(t, func() bool { return !r.PeekLoading() },
		2*time.Second, time.Millisecond)

	r.Mutate(func(xs []int) []int {
		return append(xs, 3)
	})

	assert.Equal(t, []int{1, 2, 3}, r.PeekData())
	assert.False(t, r.PeekLoading())
	assert.NoError(t, r.PeekErr())
}

func TestResourceDataOr(t *testing.T) {
	release := make(chan struct{})
	r := New(func() (string, error) {
		<-release
		return "loaded", nil
	})

	assert.Equal(t, "fallback", r.DataOr("fallback"))

	close(release)
	require.Eventually(t, func() bool { return !r.PeekLoading() },
		2*time.Second, time.Millisecond)
	assert.Equal(t, "loaded", r.DataOr("fallback"))
}

func TestResourceNewWithKey(t *testing.T) {
	userID := synapse.NewSignal(1)
	var mu sync.Mutex
	var fetched []int

	r := NewWithKey(userID.Get, func(id int) (string, error) {
		mu.Lock()
		fetched = append(fetched, id)
		mu.Unlock()
		return "user-" + string(rune('0'+id)), nil
	})
	defer r.Close()

	require.Eventually(t, func() bool { return !r.PeekLoading() },
		2*time.Second, time.Millisecond)
	assert.Equal(t, "user-1", r.PeekData())

	// Changing the key triggers a refetch with the new key
	userID.Set(2)
	require.Eventually(t, func() bool { return r.PeekData() == "user-2" },
		2*time.Second, time.Millisecond)

	mu.Lock()
	assert.Equal(t, []int{1, 2}, fetched)
	mu.Unlock()

	// After Close the key no longer drives fetches
	r.Close()
	userID.Set(3)
	assert.Never(t, func() bool { return r.PeekData() == "user-3" },
		200*time.Millisecond, 10*time.Millisecond)
}

func TestResourceObservedByEffect(t *testing.T) {
	release := make(chan struct{})
	r := New(func() (string, error) {
		<-release
		return "ready", nil
	})

	var mu sync.Mutex
	var states []string

	e := synapse.CreateEffect(func() synapse.Cleanup {
		var state string
		if r.Loading() {
			state = "loading"
		} else if err := r.Err(); err != nil {
			state = "error"
		} else {
			state = "done:" + r.Data()
		}
		mu.Lock()
		states = append(states, state)
		mu.Unlock()
		return nil
	})
	defer e.Dispose()

	close(release)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) >= 2 && states[len(states)-1] == "done:ready"
	}, 2*time.Second, time.Millisecond)

	mu.Lock()
	assert.Equal(t, "loading", states[0])
	mu.Unlock()
}
