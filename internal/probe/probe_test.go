package probe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPProber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		switch r.URL.Path {
		case "/ok":
			w.WriteHeader(http.StatusOK)
		case "/created":
			w.WriteHeader(http.StatusCreated)
		case "/slow":
			time.Sleep(200 * time.Millisecond)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	p := NewHTTPProber(50 * time.Millisecond)
	ctx := context.Background()

	status, err := p.Probe(ctx, srv.URL+"/ok")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)

	status, err = p.Probe(ctx, srv.URL+"/missing")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, status)

	_, err = p.Probe(ctx, srv.URL+"/slow")
	assert.Error(t, err, "probe must honor its timeout")

	_, err = p.Probe(ctx, "://not a url")
	assert.Error(t, err)
}

func TestResult_Alive(t *testing.T) {
	assert.True(t, Result{Status: 200}.Alive())
	assert.False(t, Result{Status: 201}.Alive())
	assert.False(t, Result{Status: 301}.Alive())
	assert.False(t, Result{Status: 200, Err: errors.New("x")}.Alive())
}

// mapProber answers from a fixed table and tracks concurrency.
type mapProber struct {
	status   map[string]int
	inFlight atomic.Int32
	peak     atomic.Int32
	mu       sync.Mutex
}

func (m *mapProber) Probe(ctx context.Context, url string) (int, error) {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		p := m.peak.Load()
		if n <= p || m.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)

	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.status[url]
	if !ok {
		return 0, errors.New("connection refused")
	}
	return s, nil
}

func TestCheckAll_PreservesOrder(t *testing.T) {
	urls := []string{"u0", "u1", "u2", "u3", "u4", "u5", "u6", "u7"}
	p := &mapProber{status: map[string]int{"u0": 200, "u2": 500, "u3": 200, "u5": 200, "u6": 404}}

	results := CheckAll(context.Background(), p, urls, 3)
	require.Len(t, results, len(urls))

	var alive []string
	for i, r := range results {
		assert.Equal(t, urls[i], r.URL)
		if r.Alive() {
			alive = append(alive, r.URL)
		}
	}
	assert.Equal(t, []string{"u0", "u3", "u5"}, alive)
	assert.LessOrEqual(t, p.peak.Load(), int32(3))
}

func TestCheckAll_Empty(t *testing.T) {
	assert.Empty(t, CheckAll(context.Background(), &mapProber{}, nil, 4))
}

func TestCheckAll_ZeroConcurrencyRunsSerially(t *testing.T) {
	p := &mapProber{status: map[string]int{"a": 200, "b": 200}}
	results := CheckAll(context.Background(), p, []string{"a", "b"}, 0)
	assert.Len(t, results, 2)
	assert.Equal(t, int32(1), p.peak.Load())
}
