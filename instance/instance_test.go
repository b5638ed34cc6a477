package instance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hatcher/sessionhub/session"
	"github.com/hatcher/sessionhub/wire"
)

// listHost serves GET /session from a queue of canned lists, repeating the
// last one once the queue drains.
func listHost(t *testing.T, lists ...[]wire.SessionInfo) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/session" {
			http.NotFound(w, r)
			return
		}
		mu.Lock()
		resp := lists[0]
		if len(lists) > 1 {
			lists = lists[1:]
		}
		mu.Unlock()
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLoadSessionsServesCacheAfterTwoEmptyFetches(t *testing.T) {
	t.Parallel()

	live := []wire.SessionInfo{{ID: "s1", Title: "refactor storage"}, {ID: "s2"}}
	srv := listHost(t, live, nil, nil)

	in := New(Options{
		BaseURL:    srv.URL,
		WorkingDir: "/home/alex/proj",
		CacheDir:   t.TempDir(),
	})
	defer in.Shutdown()
	ctx := context.Background()

	got, err := in.LoadSessions(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// a single empty fetch is trusted, no fallback yet
	got, err = in.LoadSessions(ctx)
	require.NoError(t, err)
	require.Empty(t, got)

	// the second consecutive empty fetch falls back to the disk cache
	got, err = in.LoadSessions(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "s1", got[0].ID)
	require.Equal(t, "refactor storage", got[0].Title)
}

func TestLoadSessionsWithoutCacheDirStaysEmpty(t *testing.T) {
	t.Parallel()

	srv := listHost(t, []wire.SessionInfo{{ID: "s1"}}, nil, nil)
	in := New(Options{BaseURL: srv.URL, WorkingDir: "/w"})
	defer in.Shutdown()
	ctx := context.Background()

	_, err := in.LoadSessions(ctx)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		got, err := in.LoadSessions(ctx)
		require.NoError(t, err)
		require.Empty(t, got)
	}
}

func TestCompactSessionMarksCompacting(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/session/s1/summarize" {
			calls.Add(1)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	in := New(Options{BaseURL: srv.URL})
	defer in.Shutdown()
	in.Sessions.Upsert(session.Session{ID: "s1"})

	require.NoError(t, in.CompactSession(context.Background(), "s1"))
	sess, _ := in.Sessions.Get("s1")
	require.Equal(t, session.StatusCompacting, sess.Status)
	require.Equal(t, int32(1), calls.Load())
}

func TestCompactSessionFailureRevertsToIdle(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	in := New(Options{BaseURL: srv.URL})
	defer in.Shutdown()
	in.Sessions.Upsert(session.Session{ID: "s1"})

	require.Error(t, in.CompactSession(context.Background(), "s1"))
	sess, _ := in.Sessions.Get("s1")
	require.Equal(t, session.StatusIdle, sess.Status)
}
