package main

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/go-cmp/cmp"

	"github.com/chatter/relay/server/store"
	"github.com/chatter/relay/server/store/mock_store"
	"github.com/chatter/relay/server/store/types"
)

func TestFanoutNotifiesAllMembersExceptSender(t *testing.T) {
	ctrl := gomock.NewController(t)
	mm := mock_store.NewMockMembersPersistenceInterface(ctrl)
	mn := mock_store.NewMockNotificationsPersistenceInterface(ctrl)
	oldMembers, oldNotifications := store.Members, store.Notifications
	store.Members, store.Notifications = mm, mn
	defer func() {
		store.Members, store.Notifications = oldMembers, oldNotifications
		ctrl.Finish()
	}()

	h := &Hub{route: make(chan *ServerComMessage, 16)}
	globals.hub = h
	defer func() { globals.hub = nil }()

	mm.EXPECT().SpaceMembers(uint64(7)).Return([]types.User{
		{ID: 1, Name: "ann", Role: "member"},
		{ID: 2, Name: "bob", Role: "member"},
		{ID: 3, Name: "carol", Role: "admin"},
	}, nil)
	mm.EXPECT().SpaceGet(uint64(7)).Return(&types.Space{ID: 7, Name: "Math 101"}, nil)

	var saved []*types.Notification
	mn.EXPECT().Save(gomock.Any()).DoAndReturn(func(n *types.Notification) (string, error) {
		saved = append(saved, n)
		return "nid" + n.UserID.String(), nil
	}).Times(2)

	f := newFanout(1)
	defer f.stop()

	payload, _ := json.Marshal(&MessageSentPayload{
		MessageId:  42,
		SpaceId:    7,
		SenderId:   1,
		SenderName: "ann",
		Content:    "who is coming to the study group tonight?",
	})
	f.messageSent(7, &MsgServerData{
		Channel:   "space:7",
		What:      evtMessageSent,
		SeqId:     5,
		Timestamp: types.TimeNow(),
		Payload:   payload,
	})

	routed := map[string]*ServerComMessage{}
	deadline := time.After(time.Second)
	for len(routed) < 2 {
		select {
		case msg := <-h.route:
			routed[msg.Data.Channel] = msg
		case <-deadline:
			t.Fatalf("expected 2 routed notifications, got %d", len(routed))
		}
	}

	for _, channel := range []string{"user:2", "user:3"} {
		msg := routed[channel]
		if msg == nil {
			t.Fatalf("no notification published to %s", channel)
		}
		if msg.Data.What != evtNotificationCreated {
			t.Errorf("%s: expected %s, got %s", channel, evtNotificationCreated, msg.Data.What)
		}
		var np NotificationPayload
		if err := json.Unmarshal(msg.Data.Payload, &np); err != nil {
			t.Fatalf("%s: bad payload: %v", channel, err)
		}
		want := NotificationPayload{
			NotificationId: "nid" + strings.TrimPrefix(channel, "user:"),
			MessageId:      42,
			SpaceId:        7,
			SenderId:       1,
			SenderName:     "ann",
			Content:        "who is coming to the study group tonight?",
			Message:        "ann sent a new message in Math 101",
		}
		if diff := cmp.Diff(want, np); diff != "" {
			t.Errorf("%s: notification payload mismatch (-want +got):\n%s", channel, diff)
		}
	}

	if len(saved) != 2 {
		t.Fatalf("expected 2 persisted notifications, got %d", len(saved))
	}
	for _, n := range saved {
		if n.UserID == 1 {
			t.Error("sender received their own notification")
		}
		if n.SpaceID != 7 || n.MessageID != 42 {
			t.Errorf("wrong notification row %+v", n)
		}
	}
}

func TestFanoutOneFailureDoesNotStarveOthers(t *testing.T) {
	ctrl := gomock.NewController(t)
	mm := mock_store.NewMockMembersPersistenceInterface(ctrl)
	mn := mock_store.NewMockNotificationsPersistenceInterface(ctrl)
	oldMembers, oldNotifications := store.Members, store.Notifications
	store.Members, store.Notifications = mm, mn
	defer func() {
		store.Members, store.Notifications = oldMembers, oldNotifications
		ctrl.Finish()
	}()

	h := &Hub{route: make(chan *ServerComMessage, 16)}
	globals.hub = h
	defer func() { globals.hub = nil }()

	mm.EXPECT().SpaceMembers(uint64(7)).Return([]types.User{
		{ID: 1, Name: "ann"},
		{ID: 2, Name: "bob"},
		{ID: 3, Name: "carol"},
	}, nil)
	mm.EXPECT().SpaceGet(uint64(7)).Return(&types.Space{ID: 7, Name: "Math 101"}, nil)

	mn.EXPECT().Save(gomock.Any()).DoAndReturn(func(n *types.Notification) (string, error) {
		if n.UserID == 2 {
			return "", errTestSaveFailed
		}
		return "nid", nil
	}).Times(2)

	f := newFanout(1)
	defer f.stop()

	payload, _ := json.Marshal(&MessageSentPayload{MessageId: 42, SpaceId: 7, SenderId: 1, SenderName: "ann", Content: "hi"})
	f.messageSent(7, &MsgServerData{Channel: "space:7", What: evtMessageSent, Payload: payload})

	// Only the delivery to user 3 survives.
	select {
	case msg := <-h.route:
		if msg.Data.Channel != "user:3" {
			t.Errorf("expected delivery to user:3, got %s", msg.Data.Channel)
		}
	case <-time.After(time.Second):
		t.Fatal("no notification routed")
	}
	select {
	case msg := <-h.route:
		t.Fatalf("unexpected extra delivery to %s", msg.Data.Channel)
	case <-time.After(50 * time.Millisecond):
	}
}

var errTestSaveFailed = errTest("save failed")

type errTest string

func (e errTest) Error() string { return string(e) }

func TestPreviewText(t *testing.T) {
	long := strings.Repeat("milestone ", 10) // 100 chars
	tests := []struct {
		content  string
		filePath string
		want     string
	}{
		{"hello", "", "hello"},
		{"", "uploads/report.pdf", "New file message"},
		{"", "", ""},
		{"look at this", "uploads/report.pdf", "look at this"},
		{long, "", long[:50]},
	}
	for _, tc := range tests {
		if got := previewText(tc.content, tc.filePath); got != tc.want {
			t.Errorf("previewText(%.20q, %q) = %q, want %q", tc.content, tc.filePath, got, tc.want)
		}
	}
}

func TestPreviewTextCountsGraphemes(t *testing.T) {
	// 60 two-rune flag emoji, each one a single user-perceived character.
	flag := "\U0001F1FA\U0001F1E6"
	content := strings.Repeat(flag, 60)

	got := previewText(content, "")
	want := strings.Repeat(flag, 50)
	if got != want {
		t.Errorf("multibyte preview truncated mid-grapheme: %q", got)
	}
}
