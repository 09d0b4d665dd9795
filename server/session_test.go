package main

import (
	"testing"

	"github.com/golang/mock/gomock"

	"github.com/chatter/relay/server/store"
	"github.com/chatter/relay/server/store/mock_store"
	"github.com/chatter/relay/server/store/types"
)

func makeBareSession() *Session {
	return &Session{
		sid:  "test-sid",
		send: make(chan interface{}, 16),
		stop: make(chan interface{}, 1),
		subs: make(map[string]*Subscription),
	}
}

func recvCtrl(t *testing.T, s *Session) *MsgServerCtrl {
	t.Helper()
	msg := recvFromSession(t, s)
	if msg.Ctrl == nil {
		t.Fatalf("expected a ctrl message, got %s", msg.describe())
	}
	return msg.Ctrl
}

func TestDispatchRequiresHelloFirst(t *testing.T) {
	s := makeBareSession()

	s.dispatch(&ClientComMessage{Sub: &MsgClientSub{Id: "1", Channel: "space:7"}})
	if ctrl := recvCtrl(t, s); ctrl.Code != 409 {
		t.Errorf("sub before hi: expected 409, got %d", ctrl.Code)
	}

	s.dispatch(&ClientComMessage{Login: &MsgClientLogin{Id: "2", Token: "tok"}})
	if ctrl := recvCtrl(t, s); ctrl.Code != 409 {
		t.Errorf("login before hi: expected 409, got %d", ctrl.Code)
	}
}

func TestDispatchRequiresLogin(t *testing.T) {
	s := makeBareSession()

	s.dispatch(&ClientComMessage{Hi: &MsgClientHi{Id: "1", Version: "1.0", UserAgent: "test/1"}})
	ctrl := recvCtrl(t, s)
	if ctrl.Code != 200 {
		t.Fatalf("hi: expected 200, got %d", ctrl.Code)
	}
	params, ok := ctrl.Params.(map[string]interface{})
	if !ok {
		t.Fatalf("hi: expected params map, got %T", ctrl.Params)
	}
	if params["ver"] != currentVersion {
		t.Errorf("hi: expected ver %q in params, got %v", currentVersion, params["ver"])
	}

	s.dispatch(&ClientComMessage{Sub: &MsgClientSub{Id: "2", Channel: "space:7"}})
	if ctrl := recvCtrl(t, s); ctrl.Code != 401 {
		t.Errorf("sub before login: expected 401, got %d", ctrl.Code)
	}
}

func TestDispatchRejectsUnknownAndMalformed(t *testing.T) {
	s := makeBareSession()

	s.dispatch(&ClientComMessage{})
	if ctrl := recvCtrl(t, s); ctrl.Code != 400 {
		t.Errorf("empty message: expected 400, got %d", ctrl.Code)
	}

	s.dispatchRaw([]byte("this is not json"))
	if ctrl := recvCtrl(t, s); ctrl.Code != 400 {
		t.Errorf("broken json: expected 400, got %d", ctrl.Code)
	}

	s.dispatch(&ClientComMessage{Hi: &MsgClientHi{Id: "1"}})
	if ctrl := recvCtrl(t, s); ctrl.Code != 400 {
		t.Errorf("hi without version: expected 400, got %d", ctrl.Code)
	}
}

func TestSessionLogin(t *testing.T) {
	ctrl := gomock.NewController(t)
	mu := mock_store.NewMockUsersPersistenceInterface(ctrl)
	oldUsers := store.Users
	store.Users = mu
	defer func() {
		store.Users = oldUsers
		ctrl.Finish()
	}()

	mu.EXPECT().AuthenticateToken("good-token").Return(
		&types.User{ID: 5, Name: "ann", Role: "member"}, nil)
	mu.EXPECT().AuthenticateToken("bad-token").Return(nil, nil)

	s := makeBareSession()
	s.ver = currentVersion

	s.dispatch(&ClientComMessage{Login: &MsgClientLogin{Id: "1", Token: "good-token"}})
	reply := recvCtrl(t, s)
	if reply.Code != 200 {
		t.Fatalf("login: expected 200, got %d", reply.Code)
	}
	if s.uid != types.Uid(5) || s.userName != "ann" || s.isAdmin {
		t.Errorf("login did not set identity: uid=%v name=%q admin=%v", s.uid, s.userName, s.isAdmin)
	}

	s.dispatch(&ClientComMessage{Login: &MsgClientLogin{Id: "2", Token: "bad-token"}})
	if reply := recvCtrl(t, s); reply.Code != 401 {
		t.Errorf("bad token: expected 401, got %d", reply.Code)
	}
}

func TestSessionSubscribeInvalidChannel(t *testing.T) {
	s := makeBareSession()
	s.ver = currentVersion
	s.uid = types.Uid(5)
	s.userName = "ann"

	for _, channel := range []string{"", "chatroom", "space:", "space:zero", "space:-1"} {
		s.dispatch(&ClientComMessage{Sub: &MsgClientSub{Id: "1", Channel: channel}})
		reply := recvCtrl(t, s)
		if reply.Code != 400 || reply.Text != denyInvalidChannel {
			t.Errorf("sub %q: expected 400 %s, got %d %s", channel, denyInvalidChannel, reply.Code, reply.Text)
		}
	}
}

func TestSessionSubscribeAuthorization(t *testing.T) {
	ctrl := gomock.NewController(t)
	mm := mock_store.NewMockMembersPersistenceInterface(ctrl)
	oldMembers := store.Members
	store.Members = mm
	defer func() {
		store.Members = oldMembers
		ctrl.Finish()
	}()

	h := newHub()
	globals.hub = h
	defer func() { globals.hub = nil }()

	mm.EXPECT().IsMember(types.Uid(5), uint64(7)).Return(false, nil)
	mm.EXPECT().IsMember(types.Uid(5), uint64(8)).Return(true, nil)

	s := makeBareSession()
	s.ver = currentVersion
	s.uid = types.Uid(5)
	s.userName = "ann"

	// Not a member: denied before the hub ever sees the request.
	s.dispatch(&ClientComMessage{Sub: &MsgClientSub{Id: "1", Channel: "space:7"}})
	reply := recvCtrl(t, s)
	if reply.Code != 403 || reply.Text != denyUnauthorized {
		t.Errorf("expected 403 %s, got %d %s", denyUnauthorized, reply.Code, reply.Text)
	}

	// A member: subscribed through the hub.
	s.dispatch(&ClientComMessage{Sub: &MsgClientSub{Id: "2", Channel: "space:8"}})
	if reply := recvCtrl(t, s); reply.Code != 200 {
		t.Errorf("expected 200, got %d %s", reply.Code, reply.Text)
	}
	if s.getSub("space:8") == nil {
		t.Error("subscription not recorded")
	}

	// Re-subscribing to the same channel is a cheap reconfirmation, the
	// oracle is not asked again.
	s.dispatch(&ClientComMessage{Sub: &MsgClientSub{Id: "3", Channel: "space:8"}})
	if reply := recvCtrl(t, s); reply.Code != 200 {
		t.Errorf("resubscribe: expected 200, got %d", reply.Code)
	}

	shutdownTestHub(t, h)
}

func TestSessionLeaveWithoutSubscription(t *testing.T) {
	s := makeBareSession()
	s.ver = currentVersion
	s.uid = types.Uid(5)

	s.dispatch(&ClientComMessage{Leave: &MsgClientLeave{Id: "1", Channel: "space:7"}})
	if reply := recvCtrl(t, s); reply.Code != 409 {
		t.Errorf("leave without sub: expected 409, got %d", reply.Code)
	}
}
