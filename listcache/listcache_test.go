package listcache

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hatcher/sessionhub/wire"
)

func TestStoreAndGet(t *testing.T) {
	t.Parallel()

	c := New(t.TempDir())
	sessions := []wire.SessionInfo{
		{ID: "s1", Title: "refactor storage"},
		{ID: "s2", Title: "fix flaky test", ParentID: "s1"},
	}
	require.NoError(t, c.Store("/home/alex/proj", sessions))

	got, tag, err := c.Get("/home/alex/proj")
	require.NoError(t, err)
	require.Equal(t, sessions, got)
	require.NotEmpty(t, tag)
}

func TestGetMissing(t *testing.T) {
	t.Parallel()

	c := New(t.TempDir())
	_, _, err := c.Get("/nowhere")
	require.Error(t, err)
}

func TestExpiredEntryRejected(t *testing.T) {
	t.Parallel()

	c := New(t.TempDir())
	require.NoError(t, c.Store("/home/alex/proj", []wire.SessionInfo{{ID: "s1"}}))

	c.now = func() time.Time { return time.Now().Add(DefaultTTL + time.Minute) }
	_, _, err := c.Get("/home/alex/proj")
	require.ErrorContains(t, err, "expired")
}

func TestWorkingDirsIsolated(t *testing.T) {
	t.Parallel()

	c := New(t.TempDir())
	require.NoError(t, c.Store("/a", []wire.SessionInfo{{ID: "sa"}}))
	require.NoError(t, c.Store("/b", []wire.SessionInfo{{ID: "sb"}}))

	got, _, err := c.Get("/a")
	require.NoError(t, err)
	require.Equal(t, "sa", got[0].ID)

	got, _, err = c.Get("/b")
	require.NoError(t, err)
	require.Equal(t, "sb", got[0].ID)
}

func TestUnchangedListSkipsRewrite(t *testing.T) {
	t.Parallel()

	c := New(t.TempDir())
	sessions := []wire.SessionInfo{{ID: "s1"}}
	require.NoError(t, c.Store("/p", sessions))
	before, err := os.ReadFile(c.file("/p"))
	require.NoError(t, err)

	require.NoError(t, c.Store("/p", sessions))
	after, err := os.ReadFile(c.file("/p"))
	require.NoError(t, err)
	require.Equal(t, before, after)

	// once the entry goes stale the same content is written anew so the
	// save time recovers
	c.now = func() time.Time { return time.Now().Add(DefaultTTL + time.Minute) }
	require.NoError(t, c.Store("/p", sessions))
	after, err = os.ReadFile(c.file("/p"))
	require.NoError(t, err)
	require.NotEqual(t, before, after)
}

func TestTamperedEntryRejected(t *testing.T) {
	t.Parallel()

	c := New(t.TempDir())
	require.NoError(t, c.Store("/p", []wire.SessionInfo{{ID: "s1"}}))
	data, err := os.ReadFile(c.file("/p"))
	require.NoError(t, err)
	tampered := bytes.Replace(data, []byte(`"id":"s1"`), []byte(`"id":"s2"`), 1)
	require.NoError(t, os.WriteFile(c.file("/p"), tampered, 0o644))

	_, _, err = c.Get("/p")
	require.ErrorContains(t, err, "corrupt")
}

func TestTagChangesWithContent(t *testing.T) {
	t.Parallel()

	c := New(t.TempDir())
	require.NoError(t, c.Store("/p", []wire.SessionInfo{{ID: "s1"}}))
	_, tag1, err := c.Get("/p")
	require.NoError(t, err)

	require.NoError(t, c.Store("/p", []wire.SessionInfo{{ID: "s1"}, {ID: "s2"}}))
	_, tag2, err := c.Get("/p")
	require.NoError(t, err)
	require.NotEqual(t, tag1, tag2)
}
