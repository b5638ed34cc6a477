package panecache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrimQueuesOldestForEviction(t *testing.T) {
	t.Parallel()

	c := NewController(2, nil)
	c.SetActive("s1", "")
	c.SetActive("s2", "")
	c.SetActive("s3", "")

	require.Equal(t, []string{"s3", "s2"}, c.Cached())
	require.Equal(t, []string{"s1"}, c.Pending())
}

func TestReconcileEvicts(t *testing.T) {
	t.Parallel()

	var evicted []string
	c := NewController(2, func(id string) { evicted = append(evicted, id) })

	c.SetActive("s1", "")
	c.SetActive("s2", "")
	c.SetActive("s3", "")
	c.Reconcile()

	require.Equal(t, []string{"s1"}, evicted)
	require.Empty(t, c.Pending())
}

func TestRetouchBeforeReconcileCancelsEviction(t *testing.T) {
	t.Parallel()

	var evicted []string
	c := NewController(2, func(id string) { evicted = append(evicted, id) })

	c.SetActive("s1", "")
	c.SetActive("s2", "")
	c.SetActive("s3", "") // s1 now pending

	// s1 becomes active again before the sweep runs: it must survive
	c.SetActive("s1", "")
	c.Reconcile()

	require.NotContains(t, evicted, "s1")
	require.Contains(t, c.Cached(), "s1")
	// s2 became the least recent and was swept instead
	require.Equal(t, []string{"s2"}, evicted)
	require.Empty(t, c.Pending())
}

func TestParentPinnedGetsExtraSlot(t *testing.T) {
	t.Parallel()

	var evicted []string
	c := NewController(2, func(id string) { evicted = append(evicted, id) })

	c.SetActive("root", "")
	c.SetActive("other", "")
	c.SetActive("child", "root")

	// with the parent pinned, three panes stay cached
	require.Equal(t, []string{"child", "root", "other"}, c.Cached())
	require.Empty(t, c.Pending())
	c.Reconcile()
	require.Empty(t, evicted)
}

func TestDropRemovesWithoutEviction(t *testing.T) {
	t.Parallel()

	var evicted []string
	c := NewController(2, func(id string) { evicted = append(evicted, id) })

	c.SetActive("s1", "")
	c.SetActive("s2", "")
	c.SetActive("s3", "")

	c.Drop("s1")
	c.Drop("s2")
	c.Reconcile()

	require.Empty(t, evicted)
	require.Equal(t, []string{"s3"}, c.Cached())
}

func TestTouchMovesToFront(t *testing.T) {
	t.Parallel()

	c := NewController(3, nil)
	c.Touch("a")
	c.Touch("b")
	c.Touch("c")
	c.Touch("a")

	require.Equal(t, []string{"a", "c", "b"}, c.Cached())
}
