package main

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/chatter/relay/server/store/types"
)

func typingMsg(channel string, userID uint64, typing bool) *ServerComMessage {
	payload, _ := json.Marshal(&TypingPayload{
		UserId:   userID,
		UserName: "ann",
		SpaceId:  7,
		Typing:   typing,
	})
	return &ServerComMessage{
		Data: &MsgServerData{
			Channel:   channel,
			What:      evtUserTyping,
			Timestamp: types.TimeNow(),
			Payload:   payload,
		},
	}
}

func collectRoutedTyping(t *testing.T, h *Hub, want int, timeout time.Duration) []*ServerComMessage {
	var got []*ServerComMessage
	deadline := time.After(timeout)
	for len(got) < want {
		select {
		case msg := <-h.route:
			got = append(got, msg)
		case <-deadline:
			t.Fatalf("expected %d routed messages, got %d", want, len(got))
		}
	}
	return got
}

func TestPresenceLateExpiryAfterRefresh(t *testing.T) {
	h := &Hub{route: make(chan *ServerComMessage, 16)}
	globals.hub = h
	defer func() { globals.hub = nil }()

	p := newPresenceTracker(time.Minute)
	if !p.signal(typingMsg("presence:7", 1, true), 7) {
		t.Fatal("valid typing signal rejected")
	}
	// The Idle -> Typing broadcast.
	collectRoutedTyping(t, h, 1, time.Second)

	// Refresh, then deliver an expiry late, as if the TTL timer had fired
	// and been parked on the tracker lock while the refresh went through.
	p.signal(typingMsg("presence:7", 1, true), 7)
	p.expire(presenceKey{channel: "presence:7", userID: 1})

	if n := p.typingCount("presence:7"); n != 1 {
		t.Errorf("late expiry dropped a refreshed entry, typing count %d", n)
	}
	select {
	case msg := <-h.route:
		t.Errorf("late expiry published a spurious event: %s", msg.describe())
	case <-time.After(20 * time.Millisecond):
	}

	p.channelGone("presence:7")
}

func TestPresenceDeduplicatesTyping(t *testing.T) {
	h := &Hub{route: make(chan *ServerComMessage, 16)}
	globals.hub = h
	defer func() { globals.hub = nil }()

	p := newPresenceTracker(time.Minute)

	// First typing=true starts the entry and is forwarded.
	if !p.signal(typingMsg("presence:7", 1, true), 7) {
		t.Fatal("valid typing signal rejected")
	}
	// Repeats only refresh the TTL.
	p.signal(typingMsg("presence:7", 1, true), 7)
	p.signal(typingMsg("presence:7", 1, true), 7)
	// Explicit stop is forwarded.
	p.signal(typingMsg("presence:7", 1, false), 7)
	// Stop with no active entry is swallowed.
	p.signal(typingMsg("presence:7", 1, false), 7)

	got := collectRoutedTyping(t, h, 2, time.Second)
	select {
	case msg := <-h.route:
		t.Fatalf("unexpected extra routed message %s", msg.describe())
	default:
	}

	var first, second TypingPayload
	json.Unmarshal(got[0].Data.Payload, &first)
	json.Unmarshal(got[1].Data.Payload, &second)
	if !first.Typing || second.Typing {
		t.Errorf("expected typing=true then typing=false, got %v, %v", first.Typing, second.Typing)
	}

	if n := p.typingCount("presence:7"); n != 0 {
		t.Errorf("expected 0 tracked entries, got %d", n)
	}
}

func TestPresenceExpiryPublishesStop(t *testing.T) {
	h := &Hub{route: make(chan *ServerComMessage, 16)}
	globals.hub = h
	defer func() { globals.hub = nil }()

	p := newPresenceTracker(20 * time.Millisecond)

	p.signal(typingMsg("presence:7", 1, true), 7)

	got := collectRoutedTyping(t, h, 2, time.Second)

	var expired TypingPayload
	json.Unmarshal(got[1].Data.Payload, &expired)
	if expired.Typing {
		t.Error("expected a synthetic typing=false after TTL expiry")
	}
	if expired.UserId != 1 || expired.SpaceId != 7 {
		t.Errorf("synthetic stop carries wrong identity: %+v", expired)
	}

	if n := p.typingCount("presence:7"); n != 0 {
		t.Errorf("expected 0 tracked entries after expiry, got %d", n)
	}
}

func TestPresenceRefreshDelaysExpiry(t *testing.T) {
	h := &Hub{route: make(chan *ServerComMessage, 16)}
	globals.hub = h
	defer func() { globals.hub = nil }()

	p := newPresenceTracker(60 * time.Millisecond)

	p.signal(typingMsg("presence:7", 1, true), 7)
	// Keep refreshing past the original TTL.
	for i := 0; i < 4; i++ {
		time.Sleep(30 * time.Millisecond)
		p.signal(typingMsg("presence:7", 1, true), 7)
	}

	if n := p.typingCount("presence:7"); n != 1 {
		t.Fatalf("entry expired despite refreshes, count = %d", n)
	}

	got := collectRoutedTyping(t, h, 2, time.Second)
	var expired TypingPayload
	json.Unmarshal(got[1].Data.Payload, &expired)
	if expired.Typing {
		t.Error("expected typing=false once refreshes stopped")
	}
}

func TestPresenceRejectsMalformedPayload(t *testing.T) {
	p := newPresenceTracker(time.Minute)

	msg := &ServerComMessage{Data: &MsgServerData{
		Channel: "presence:7",
		What:    evtUserTyping,
		Payload: []byte(`{"user_id":"not a number"}`),
	}}
	if p.signal(msg, 7) {
		t.Error("malformed payload accepted")
	}

	msg.Data.Payload = []byte(`{"typing":true}`)
	if p.signal(msg, 7) {
		t.Error("payload without user_id accepted")
	}
}

func TestPresenceChannelGone(t *testing.T) {
	h := &Hub{route: make(chan *ServerComMessage, 16)}
	globals.hub = h
	defer func() { globals.hub = nil }()

	p := newPresenceTracker(time.Minute)

	p.signal(typingMsg("presence:7", 1, true), 7)
	p.signal(typingMsg("presence:7", 2, true), 7)
	p.signal(typingMsg("presence:8", 3, true), 8)

	p.channelGone("presence:7")

	if n := p.typingCount("presence:7"); n != 0 {
		t.Errorf("presence:7 still has %d entries", n)
	}
	if n := p.typingCount("presence:8"); n != 1 {
		t.Errorf("presence:8 expected 1 entry, got %d", n)
	}
}
