package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/reflex-console/internal/pipeline"
)

const stateBody = `{
  "run_id": "r1", "directive": "d",
  "baseline": {"status": "pending"},
  "stages": {
    "intent": {"status": "failed", "error": "timeout"},
    "decomposition": {"status": "pending"}, "claims": {"status": "pending"},
    "critique": {"status": "pending"}, "revision": {"status": "pending"},
    "evaluation": {"status": "pending"}
  }
}`

type recorder struct {
	mu   sync.Mutex
	errs []*TransportError
}

func (r *recorder) notify(err *TransportError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs)
}

func TestCreateRunPostsDirective(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/runs", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "req-1", r.Header.Get(RequestIDHeader))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "map the energy transition", body["directive"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"run_id": "a1b2c3d4", "status": "created"}`)
	}))
	defer ts.Close()

	c := New(ts.URL, WithRequestIDs(func() string { return "req-1" }))
	runID, err := c.CreateRun(context.Background(), "map the energy transition")
	require.NoError(t, err)
	assert.Equal(t, "a1b2c3d4", runID)
}

func TestFetchStateRequestsProvenance(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/runs/r1/state", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("include_provenance"))
		_, _ = io.WriteString(w, stateBody)
	}))
	defer ts.Close()

	snap, err := New(ts.URL).FetchState(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", snap.RunID)
	assert.Equal(t, pipeline.StatusFailed, snap.Result(pipeline.Intent).Status)
	assert.Equal(t, "timeout", snap.Result(pipeline.Intent).Error)
}

func TestFetchStateRejectsMalformedState(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"run_id": "r1", "baseline": {"status": "pending"}, "stages": {}}`)
	}))
	defer ts.Close()

	rec := &recorder{}
	_, err := New(ts.URL, WithNotifier(rec.notify)).FetchState(context.Background(), "r1")
	require.Error(t, err)

	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	var schemaErr *pipeline.SchemaError
	assert.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, 1, rec.count())
}

func TestFetchStateSharesInflightRequest(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		_, _ = io.WriteString(w, stateBody)
	}))
	defer ts.Close()

	c := New(ts.URL)
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.FetchState(context.Background(), "r1")
			assert.NoError(t, err)
		}()
	}
	require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), hits.Load())
}

func TestErrorStatusUsesDetail(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"detail": "Cannot run claims. Check upstream dependencies."}`)
	}))
	defer ts.Close()

	rec := &recorder{}
	err := New(ts.URL, WithNotifier(rec.notify)).TriggerStage(context.Background(), "r1", pipeline.Claims)
	require.Error(t, err)

	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, http.StatusBadRequest, terr.StatusCode)
	assert.Equal(t, "Cannot run claims. Check upstream dependencies.", terr.Message)
	assert.False(t, terr.Temporary())
	assert.Equal(t, 1, rec.count())
}

func TestErrorStatusFallsBackToStatusText(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "<html>bad gateway</html>")
	}))
	defer ts.Close()

	err := New(ts.URL).TriggerBaseline(context.Background(), "r1")
	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "Bad Gateway", terr.Message)
	assert.True(t, terr.Temporary())
}

func TestNetworkFailureIsTransportError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := ts.URL
	ts.Close()

	rec := &recorder{}
	_, err := New(base, WithNotifier(rec.notify)).FetchState(context.Background(), "r1")
	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Zero(t, terr.StatusCode)
	assert.NotNil(t, terr.Unwrap())
	assert.Equal(t, 1, rec.count())
}

func TestTimeoutBoundsRequestsOnPrivateHTTPClient(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	defaultTimeout := http.DefaultClient.Timeout
	c := New(ts.URL, WithTimeout(50*time.Millisecond))
	assert.NotSame(t, http.DefaultClient, c.http)
	assert.Equal(t, 50*time.Millisecond, c.http.Timeout)
	assert.Equal(t, defaultTimeout, http.DefaultClient.Timeout)

	start := time.Now()
	err := c.TriggerBaseline(context.Background(), "r1")
	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.True(t, terr.Temporary())
	assert.Less(t, time.Since(start), 5*time.Second)

	assert.Zero(t, New(ts.URL).http.Timeout)
}

func TestTriggerRoutesBaselineAndStages(t *testing.T) {
	var paths []string
	var mu sync.Mutex
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		_, _ = io.WriteString(w, `{"status": "completed"}`)
	}))
	defer ts.Close()

	c := New(ts.URL)
	require.NoError(t, c.Trigger(context.Background(), "r1", pipeline.Baseline))
	require.NoError(t, c.Trigger(context.Background(), "r1", pipeline.Critique))
	assert.Equal(t, []string{"/runs/r1/baseline", "/runs/r1/reflex/critique"}, paths)
}

func TestTriggerStageRejectsBaselineKey(t *testing.T) {
	rec := &recorder{}
	err := New("http://127.0.0.1:1", WithNotifier(rec.notify)).TriggerStage(context.Background(), "r1", pipeline.Baseline)
	require.Error(t, err)
	assert.Equal(t, 1, rec.count())
}

func TestUpdateStageSendsData(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/runs/r1/reflex/claims", r.URL.Path)
		var body struct {
			Data map[string]any `json:"data"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "edited", body.Data["note"])
		_, _ = io.WriteString(w, `{"status": "updated", "cleared_downstream": true}`)
	}))
	defer ts.Close()

	c := New(ts.URL)
	require.NoError(t, c.UpdateStage(context.Background(), "r1", pipeline.Claims, json.RawMessage(`{"note": "edited"}`)))
	assert.Error(t, c.UpdateStage(context.Background(), "r1", pipeline.Claims, json.RawMessage(`{broken`)))
}
