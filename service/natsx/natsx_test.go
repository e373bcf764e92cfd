package natsx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithMsgIDDoesNotMutateInput(t *testing.T) {
	in := map[string]string{"key": "k1"}
	out := withMsgID(in, "m-1")

	assert.Equal(t, "m-1", out[MsgIDHeader])
	assert.Equal(t, "k1", out["key"])
	assert.NotContains(t, in, MsgIDHeader)
}

func TestWithMsgIDGenerates(t *testing.T) {
	a := withMsgID(nil, "")
	b := withMsgID(nil, "")
	assert.NotEmpty(t, a[MsgIDHeader])
	assert.NotEqual(t, a[MsgIDHeader], b[MsgIDHeader])
}

func TestNewMsgCopiesHeaders(t *testing.T) {
	m := newMsg("im.friend.events", []byte("{}"), map[string]string{"key": "k1"})
	assert.Equal(t, "im.friend.events", m.Subject)
	assert.Equal(t, "k1", m.Header.Get("key"))
}

func TestRegisterRouteRejectsEmpty(t *testing.T) {
	c := &NatsxClient{routes: map[string]NatsxRoute{}}
	assert.Error(t, c.RegisterRoute(NatsxRoute{Biz: "friend"}))
	assert.NoError(t, c.RegisterRoute(NatsxRoute{Biz: "friend", Subject: "im.friend.events"}))
	r, ok := c.route("friend")
	assert.True(t, ok)
	assert.Equal(t, Core, r.Mode)
}
