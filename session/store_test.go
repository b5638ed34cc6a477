package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUpsertMerge(t *testing.T) {
	t.Parallel()

	s := NewStore(nil)
	s.Upsert(Session{
		ID:        "s1",
		Title:     "first",
		CreatedAt: 1000,
		UpdatedAt: 1000,
		Revert:    &Revert{MessageID: "m1"},
	})

	// partial update: empty fields keep existing values, missing update
	// time is stamped, the revert pointer survives
	got := s.Upsert(Session{ID: "s1", Title: "renamed"})
	require.Equal(t, "renamed", got.Title)
	require.Equal(t, int64(1000), got.CreatedAt)
	require.Greater(t, got.UpdatedAt, int64(1000))
	require.NotNil(t, got.Revert)
	require.Equal(t, "m1", got.Revert.MessageID)

	// a new revert pointer replaces the old one
	got = s.Upsert(Session{ID: "s1", Revert: &Revert{MessageID: "m9"}})
	require.Equal(t, "m9", got.Revert.MessageID)
}

func TestUpsertReparentsSubAgent(t *testing.T) {
	t.Parallel()

	s := NewStore(nil)
	s.Upsert(Session{ID: "root", Title: "my project"})
	s.SetActiveParent("root")

	got := s.Upsert(Session{ID: "sub", Title: "Task: explore the codebase"})
	require.Equal(t, "root", got.ParentID)

	// ordinary titles are left unparented
	got = s.Upsert(Session{ID: "other", Title: "fix the login page"})
	require.Empty(t, got.ParentID)

	// explicit parent linkage always wins over the heuristic
	got = s.Upsert(Session{ID: "sub2", ParentID: "other", Title: "Task: run tests"})
	require.Equal(t, "other", got.ParentID)
}

func TestUpsertRejectsSelfParent(t *testing.T) {
	t.Parallel()

	s := NewStore(nil)
	got := s.Upsert(Session{ID: "s1", ParentID: "s1", Title: "loop"})
	require.Empty(t, got.ParentID)
}

func TestClassifierPluggable(t *testing.T) {
	t.Parallel()

	s := NewStore(func(sess Session) bool { return sess.Agent == "explorer" })
	s.Upsert(Session{ID: "root"})
	s.SetActiveParent("root")

	got := s.Upsert(Session{ID: "a", Agent: "explorer"})
	require.Equal(t, "root", got.ParentID)
	got = s.Upsert(Session{ID: "b", Title: "Task: would match the default"})
	require.Empty(t, got.ParentID)
}

func TestDeleteAndList(t *testing.T) {
	t.Parallel()

	s := NewStore(nil)
	s.Upsert(Session{ID: "s1", Title: "one"})
	s.Upsert(Session{ID: "s2", Title: "two"})
	s.MarkUnread("s1")

	s.Delete("s1")
	_, ok := s.Get("s1")
	require.False(t, ok)
	require.False(t, s.HasUnread("s1"))

	list := s.List()
	require.Len(t, list, 1)
	require.Equal(t, "s2", list[0].ID)
}

func TestStatusAndFlags(t *testing.T) {
	t.Parallel()

	s := NewStore(nil)
	s.Upsert(Session{ID: "s1"})

	got, _ := s.Get("s1")
	require.Equal(t, StatusIdle, got.Status)

	s.SetStatus("s1", StatusWorking)
	got, _ = s.Get("s1")
	require.Equal(t, StatusWorking, got.Status)

	s.SetStatus("missing", StatusWorking) // no-op

	s.MarkUnread("s1")
	require.True(t, s.HasUnread("s1"))
	s.ClearUnread("s1")
	require.False(t, s.HasUnread("s1"))

	require.False(t, s.IsArchivable("s1"))
	s.MarkArchivable("s1")
	require.True(t, s.IsArchivable("s1"))
}

func TestDefaultClassifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		title string
		want  bool
	}{
		{"Task: search for usages", true},
		{"task: lowercase too", true},
		{"Subagent run 3", true},
		{"Generate a title", true},
		{"New Agent Session", true},
		{"fix the parser", false},
		{"", false},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, DefaultClassifier(Session{Title: tt.title}), "title %q", tt.title)
	}
}
