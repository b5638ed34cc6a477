package message

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUpsertKeepsArrivalOrder(t *testing.T) {
	t.Parallel()

	s := NewStore()
	// created timestamps deliberately out of order: display order is
	// arrival order, never timestamp order
	s.Upsert(Message{ID: "m1", SessionID: "s1", Role: User, CreatedAt: 300})
	s.Upsert(Message{ID: "m2", SessionID: "s1", Role: Assistant, CreatedAt: 100})
	s.Upsert(Message{ID: "m3", SessionID: "s1", Role: User, CreatedAt: 200})

	require.Equal(t, []string{"m1", "m2", "m3"}, s.SessionMessageIDs("s1"))

	// replacing an existing message must not duplicate it in the order
	s.Upsert(Message{ID: "m2", SessionID: "s1", Role: Assistant, Status: Complete})
	require.Equal(t, []string{"m1", "m2", "m3"}, s.SessionMessageIDs("s1"))
}

func TestApplyPartUpdateUnknownMessage(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ok := s.ApplyPartUpdate(Part{ID: "p1", MessageID: "missing", SessionID: "s1", Type: TextPart, Text: "x"})
	require.False(t, ok)
	require.Empty(t, s.Parts("missing"))
	require.Zero(t, s.Version())
}

func TestPartOrderAndReplacement(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.Upsert(Message{ID: "m1", SessionID: "s1", Role: Assistant, Status: Streaming})

	require.True(t, s.ApplyPartUpdate(Part{ID: "p1", MessageID: "m1", SessionID: "s1", Type: TextPart, Text: "Hello"}))
	require.True(t, s.ApplyPartUpdate(Part{ID: "p2", MessageID: "m1", SessionID: "s1", Type: ToolPart, Tool: "view"}))
	require.True(t, s.ApplyPartUpdate(Part{ID: "p1", MessageID: "m1", SessionID: "s1", Type: TextPart, Text: "Hello world"}))

	parts := s.Parts("m1")
	require.Len(t, parts, 2)
	require.Equal(t, "Hello world", parts[0].Text)
	require.Equal(t, ToolPart, parts[1].Type)
	require.Equal(t, "Hello world", s.TextContent("m1"))
}

func TestReplaceIDPreservesParts(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.Upsert(Message{ID: "local", SessionID: "s1", Role: User, Status: Sending})
	for i := range 3 {
		s.ApplyPartUpdate(Part{
			ID:        fmt.Sprintf("p%d", i),
			MessageID: "local",
			SessionID: "s1",
			Type:      TextPart,
			Text:      fmt.Sprintf("chunk %d", i),
		})
	}

	require.True(t, s.ReplaceID("local", "server"))

	_, ok := s.Get("local")
	require.False(t, ok)
	require.Empty(t, s.Parts("local"))

	msg, ok := s.Get("server")
	require.True(t, ok)
	require.Equal(t, "server", msg.ID)

	parts := s.Parts("server")
	require.Len(t, parts, 3)
	for _, p := range parts {
		require.Equal(t, "server", p.MessageID)
	}
	require.Equal(t, []string{"server"}, s.SessionMessageIDs("s1"))
}

func TestFindPendingPicksLast(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.Upsert(Message{ID: "m1", SessionID: "s1", Role: User, Status: Sending})
	s.Upsert(Message{ID: "m2", SessionID: "s1", Role: User, Status: Complete})
	s.Upsert(Message{ID: "m3", SessionID: "s1", Role: User, Status: Sending})

	pending, ok := s.FindPending("s1", User)
	require.True(t, ok)
	require.Equal(t, "m3", pending.ID)

	_, ok = s.FindPending("s1", Assistant)
	require.False(t, ok)
	_, ok = s.FindPending("other", User)
	require.False(t, ok)
}

func TestClearSession(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.Upsert(Message{ID: "m1", SessionID: "s1", Role: User})
	s.ApplyPartUpdate(Part{ID: "p1", MessageID: "m1", SessionID: "s1", Type: TextPart, Text: "hi"})
	s.Upsert(Message{ID: "m2", SessionID: "s2", Role: User})

	s.ClearSession("s1")

	_, ok := s.Get("m1")
	require.False(t, ok)
	require.Empty(t, s.SessionMessageIDs("s1"))

	// other sessions untouched
	_, ok = s.Get("m2")
	require.True(t, ok)
	require.Equal(t, []string{"m2"}, s.SessionMessageIDs("s2"))
}

func TestRemoveMessageAndPart(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.Upsert(Message{ID: "m1", SessionID: "s1", Role: Assistant})
	s.ApplyPartUpdate(Part{ID: "p1", MessageID: "m1", SessionID: "s1", Type: TextPart, Text: "a"})
	s.ApplyPartUpdate(Part{ID: "p2", MessageID: "m1", SessionID: "s1", Type: TextPart, Text: "b"})

	s.RemovePart("m1", "p1")
	parts := s.Parts("m1")
	require.Len(t, parts, 1)
	require.Equal(t, "p2", parts[0].ID)

	s.Remove("m1")
	_, ok := s.Get("m1")
	require.False(t, ok)
	require.Empty(t, s.SessionMessageIDs("s1"))
}

func TestVersionBumpsOnMutation(t *testing.T) {
	t.Parallel()

	s := NewStore()
	require.Zero(t, s.Version())

	s.Upsert(Message{ID: "m1", SessionID: "s1", Role: User})
	v1 := s.Version()
	require.Positive(t, v1)

	s.ApplyPartUpdate(Part{ID: "p1", MessageID: "m1", SessionID: "s1", Type: TextPart, Text: "x"})
	require.Greater(t, s.Version(), v1)

	// reads do not bump
	v2 := s.Version()
	s.Get("m1")
	s.Parts("m1")
	require.Equal(t, v2, s.Version())
}
