package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoomIDIsOrderIndependent(t *testing.T) {
	assert.Equal(t, RoomID("alice", "bob"), RoomID("bob", "alice"))
	assert.Equal(t, "alice_bob", RoomID("bob", "alice"))
	assert.Equal(t, []string{"alice", "bob"}, Participants("bob", "alice"))
}

func TestSplitRoomID(t *testing.T) {
	a, b, ok := SplitRoomID("alice_bob")
	assert.True(t, ok)
	assert.Equal(t, "alice", a)
	assert.Equal(t, "bob", b)

	for _, bad := range []string{"", "alice", "alice_", "_bob", "a_b_c"} {
		_, _, ok := SplitRoomID(bad)
		assert.False(t, ok, bad)
	}
}

func TestCounterpart(t *testing.T) {
	r := ChatRoom{ID: "alice_bob", Participants: []string{"alice", "bob"}}
	assert.Equal(t, "bob", r.Counterpart("alice"))
	assert.Equal(t, "alice", r.Counterpart("bob"))
	assert.Equal(t, "", r.Counterpart("carol"))
}
