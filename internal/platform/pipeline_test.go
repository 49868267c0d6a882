package platform

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/truematch/internal/metrics"
	"github.com/felixgeelhaar/truematch/internal/tokenstore"
)

func get(path string) Request {
	return Request{Method: http.MethodGet, Path: path}
}

func collectEvents(p *Pipeline) func() []Event {
	var mu sync.Mutex
	var events []Event
	p.OnInvalidated(func(ev Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})
	return func() []Event {
		mu.Lock()
		defer mu.Unlock()
		return append([]Event(nil), events...)
	}
}

func TestPipeline_AttachesCurrentToken(t *testing.T) {
	f := newFakeAPI(t)
	f.accept("t1")
	f.accept("t2")
	store := tokenstore.NewMemoryStoreWith("t1")
	p, _ := f.pipeline(t, store)

	resp, err := p.Do(context.Background(), get("/data"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	store.Save("t2")
	_, err = p.Do(context.Background(), get("/data"))
	require.NoError(t, err)

	assert.Equal(t, []string{"Bearer t1", "Bearer t2"}, f.headers())
}

func TestPipeline_SendsUnauthenticatedWithoutToken(t *testing.T) {
	f := newFakeAPI(t)
	f.refreshOK.Store(false)
	p, _ := f.pipeline(t, tokenstore.NewMemoryStore())

	_, err := p.Do(context.Background(), get("/data"))
	require.Error(t, err)

	assert.Equal(t, "", f.headers()[0])
}

func TestPipeline_PassesThroughNon401(t *testing.T) {
	f := newFakeAPI(t)
	store := tokenstore.NewMemoryStoreWith("t1")
	p, _ := f.pipeline(t, store)

	resp, err := p.Do(context.Background(), get("/boom"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, string(resp.Body), "database down")
	assert.Zero(t, f.refreshCalls.Load())
	assert.Empty(t, store.Writes())
}

func TestPipeline_RefreshesAndResendsOnce(t *testing.T) {
	f := newFakeAPI(t)
	store := tokenstore.NewMemoryStoreWith("expired")
	p, jar := f.pipeline(t, store)
	f.withRefreshCookie(t, jar)
	events := collectEvents(p)

	resp, err := p.Do(context.Background(), get("/data"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, int32(1), f.refreshCalls.Load())
	assert.Equal(t, int32(2), f.dataCalls.Load())
	assert.Equal(t, []string{"Bearer expired", "Bearer minted-1"}, f.headers())

	tok, ok := store.Peek()
	assert.True(t, ok)
	assert.Equal(t, "minted-1", tok)
	assert.Equal(t, []tokenstore.Op{{Kind: tokenstore.OpSave, Token: "minted-1"}}, store.Writes())
	assert.Empty(t, events())

	ids := f.ids("/data")
	require.Len(t, ids, 2)
	assert.NotEmpty(t, ids[0])
	assert.Equal(t, ids[0], ids[1], "resend keeps the request id")
}

func TestPipeline_SecondRejectionIsTerminal(t *testing.T) {
	f := newFakeAPI(t)
	store := tokenstore.NewMemoryStoreWith("t1")
	p, jar := f.pipeline(t, store)
	f.withRefreshCookie(t, jar)
	events := collectEvents(p)

	_, err := p.Do(context.Background(), get("/locked"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

	assert.Equal(t, int32(2), f.lockedCalls.Load(), "no third call")
	assert.Equal(t, int32(1), f.refreshCalls.Load())

	_, ok := store.Peek()
	assert.False(t, ok)
	require.Len(t, events(), 1)
	assert.Equal(t, ReasonRetryRejected, events()[0].Reason)
}

func TestPipeline_RefreshFailureClearsAndSignals(t *testing.T) {
	f := newFakeAPI(t)
	store := tokenstore.NewMemoryStoreWith("expired")
	p, _ := f.pipeline(t, store) // no refresh cookie
	events := collectEvents(p)

	_, err := p.Do(context.Background(), get("/data"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRefreshFailed)
	assert.NotErrorIs(t, err, ErrUnauthorized)

	assert.Equal(t, int32(1), f.dataCalls.Load(), "no resend after failed refresh")
	assert.Equal(t, []tokenstore.Op{{Kind: tokenstore.OpClear}}, store.Writes())
	require.Len(t, events(), 1)
	assert.Equal(t, ReasonRefreshFailed, events()[0].Reason)
}

func TestPipeline_ExchangeRejectionHasNoSideEffects(t *testing.T) {
	f := newFakeAPI(t)
	store := tokenstore.NewMemoryStoreWith("t1")
	p, jar := f.pipeline(t, store)
	f.withRefreshCookie(t, jar)
	events := collectEvents(p)

	_, err := p.Do(context.Background(), Request{
		Method:   http.MethodPost,
		Path:     LoginPath,
		Body:     LoginRequest{Email: "a@b.c", Password: "wrong"},
		Exchange: true,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)

	assert.Zero(t, f.refreshCalls.Load())
	assert.Empty(t, store.Writes())
	assert.Empty(t, events())
}

func TestPipeline_TransportErrorIsNotRetried(t *testing.T) {
	f := newFakeAPI(t)
	store := tokenstore.NewMemoryStoreWith("t1")
	p, _ := f.pipeline(t, store)
	f.srv.Close()

	_, err := p.Do(context.Background(), get("/data"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Empty(t, store.Writes())
}

func TestPipeline_CancelledContext(t *testing.T) {
	f := newFakeAPI(t)
	f.accept("t1")
	p, _ := f.pipeline(t, tokenstore.NewMemoryStoreWith("t1"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Do(ctx, get("/data"))
	assert.ErrorIs(t, err, context.Canceled)
}

func waitStarted(t *testing.T, started <-chan struct{}, n int) {
	t.Helper()
	for range n {
		select {
		case <-started:
		case <-time.After(5 * time.Second):
			t.Fatal("refresh never reached the server")
		}
	}
}

// cancelDuringRefresh runs two requests with an expired token while the
// refresh endpoint is held. The first caller is cancelled mid-refresh, then
// the refresh is released for the second.
func cancelDuringRefresh(t *testing.T, mode RefreshMode, held int) (f *fakeAPI, store *tokenstore.MemoryStore, events []Event, cancelledErr, otherErr error) {
	t.Helper()

	f = newFakeAPI(t)
	b := newBarrier(2)
	f.onReject(b.wait)
	started, release := f.holdRefresh()
	t.Cleanup(release)

	store = tokenstore.NewMemoryStoreWith("expired")
	p, jar := f.pipeline(t, store, WithRefreshMode(mode))
	f.withRefreshCookie(t, jar)
	collected := collectEvents(p)

	cancelCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	otherCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()

	cancelledDone := make(chan error, 1)
	otherDone := make(chan error, 1)
	go func() {
		_, err := p.Do(cancelCtx, get("/data"))
		cancelledDone <- err
	}()
	go func() {
		_, err := p.Do(otherCtx, get("/data"))
		otherDone <- err
	}()

	waitStarted(t, started, held)
	cancel()
	cancelledErr = <-cancelledDone

	release()
	otherErr = <-otherDone
	return f, store, collected(), cancelledErr, otherErr
}

func TestPipeline_CancelledWaiter_Coalesced(t *testing.T) {
	f, store, events, cancelledErr, otherErr := cancelDuringRefresh(t, RefreshCoalesce, 1)

	assert.ErrorIs(t, cancelledErr, context.Canceled)
	require.NoError(t, otherErr, "the shared refresh outlives the caller that started it")
	assert.Equal(t, int32(1), f.refreshCalls.Load())
	assert.Equal(t, []tokenstore.Op{{Kind: tokenstore.OpSave, Token: "minted-1"}}, store.Writes())
	assert.Empty(t, events)
}

func TestPipeline_CancelledRefresh_PerRequest(t *testing.T) {
	f, store, events, cancelledErr, otherErr := cancelDuringRefresh(t, RefreshPerRequest, 2)

	assert.ErrorIs(t, cancelledErr, context.Canceled)
	require.NoError(t, otherErr)
	assert.Equal(t, int32(2), f.refreshCalls.Load())
	assert.Equal(t, []tokenstore.Op{{Kind: tokenstore.OpSave, Token: "minted-1"}}, store.Writes(),
		"the cancelled refresh neither saves nor clears")
	assert.Empty(t, events)
}

func TestPipeline_RefreshDirect(t *testing.T) {
	f := newFakeAPI(t)
	store := tokenstore.NewMemoryStore()
	p, jar := f.pipeline(t, store)

	_, err := p.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrRefreshFailed)

	f.withRefreshCookie(t, jar)
	tok, err := p.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "minted-1", tok)

	got, ok := store.Peek()
	assert.True(t, ok)
	assert.Equal(t, tok, got)
}

func TestPipeline_RecordsMetrics(t *testing.T) {
	f := newFakeAPI(t)
	m := metrics.NewMetrics(prometheus.NewRegistry())
	store := tokenstore.NewMemoryStoreWith("expired")
	p, jar := f.pipeline(t, store, WithMetrics(m))
	f.withRefreshCookie(t, jar)

	_, err := p.Do(context.Background(), get("/data"))
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RetryDecisions.WithLabelValues("retry_once")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RetryDecisions.WithLabelValues("pass_through")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Refreshes.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("GET", "/data", "401", "0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("GET", "/data", "200", "1")))
}

// concurrentExpiry fires two requests that both carry an expired token and
// are both rejected before either refreshes.
func concurrentExpiry(t *testing.T, mode RefreshMode) (*fakeAPI, *tokenstore.MemoryStore) {
	t.Helper()

	f := newFakeAPI(t)
	b := newBarrier(2)
	f.onReject(b.wait)

	store := tokenstore.NewMemoryStoreWith("expired")
	p, jar := f.pipeline(t, store, WithRefreshMode(mode))
	f.withRefreshCookie(t, jar)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = p.Do(ctx, get("/data"))
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	return f, store
}

func TestPipeline_ConcurrentExpiry_PerRequest(t *testing.T) {
	f, store := concurrentExpiry(t, RefreshPerRequest)

	assert.Equal(t, int32(2), f.refreshCalls.Load())

	saves := 0
	for _, op := range store.Writes() {
		if op.Kind == tokenstore.OpSave {
			saves++
		}
	}
	assert.Equal(t, 2, saves, "each refresh writes its own token")
}

func TestPipeline_ConcurrentExpiry_Coalesced(t *testing.T) {
	f, store := concurrentExpiry(t, RefreshCoalesce)

	assert.Equal(t, int32(1), f.refreshCalls.Load())
	assert.Equal(t, []tokenstore.Op{{Kind: tokenstore.OpSave, Token: "minted-1"}}, store.Writes())
	assert.Equal(t, int32(4), f.dataCalls.Load())
}

