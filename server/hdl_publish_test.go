package main

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func postPublish(body, apikey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "http://localhost/v0/publish", strings.NewReader(body))
	if apikey != "" {
		req.Header.Set("X-Relay-APIKey", apikey)
	}
	w := httptest.NewRecorder()
	servePublish(w, req)
	return w
}

func TestServePublish(t *testing.T) {
	salt := []byte("0123456789abcdef0123456789abcdef")
	oldSalt := globals.apiKeySalt
	globals.apiKeySalt = salt
	defer func() { globals.apiKeySalt = oldSalt }()
	rootKey := mintTestKey(salt, 1)

	h := &Hub{route: make(chan *ServerComMessage, 16)}
	globals.hub = h
	defer func() { globals.hub = nil }()

	body := `{"channel":"space:7","what":"MessageSent","skip_sid":"abc",` +
		`"payload":{"message_id":42,"space_id":7,"sender_id":1,"sender_name":"ann","content":"hi"}}`
	if w := postPublish(body, rootKey); w.Code != 202 {
		t.Fatalf("publish: expected 202, got %d: %s", w.Code, w.Body.String())
	}

	select {
	case msg := <-h.route:
		if msg.Data.Channel != "space:7" || msg.Data.What != evtMessageSent {
			t.Errorf("wrong event routed: %s", msg.describe())
		}
		if msg.skipSid != "abc" {
			t.Errorf("skip_sid lost: %q", msg.skipSid)
		}
	case <-time.After(time.Second):
		t.Fatal("event was not routed")
	}
}

func TestServePublishRejections(t *testing.T) {
	salt := []byte("0123456789abcdef0123456789abcdef")
	oldSalt := globals.apiKeySalt
	globals.apiKeySalt = salt
	defer func() { globals.apiKeySalt = oldSalt }()
	rootKey := mintTestKey(salt, 1)
	ordinaryKey := mintTestKey(salt, 0)

	h := &Hub{route: make(chan *ServerComMessage, 16)}
	globals.hub = h
	defer func() { globals.hub = nil }()

	// No key and a non-root key are both rejected.
	if w := postPublish(`{}`, ""); w.Code != 401 {
		t.Errorf("no key: expected 401, got %d", w.Code)
	}
	if w := postPublish(`{}`, ordinaryKey); w.Code != 401 {
		t.Errorf("ordinary key: expected 401, got %d", w.Code)
	}

	// GET is not allowed.
	req := httptest.NewRequest("GET", "http://localhost/v0/publish", nil)
	req.Header.Set("X-Relay-APIKey", rootKey)
	w := httptest.NewRecorder()
	servePublish(w, req)
	if w.Code != 405 {
		t.Errorf("GET: expected 405, got %d", w.Code)
	}

	cases := []struct {
		body string
		code int
	}{
		{`not json`, 400},
		{`{"channel":"space:7","what":"SomethingElse","payload":{}}`, 400},
		{`{"channel":"lobby","what":"MessageSent","payload":{}}`, 400},
		{`{"channel":"space:0","what":"MessageSent","payload":{}}`, 400},
	}
	for _, tc := range cases {
		if w := postPublish(tc.body, rootKey); w.Code != tc.code {
			t.Errorf("body %.40q: expected %d, got %d", tc.body, tc.code, w.Code)
		}
	}

	select {
	case msg := <-h.route:
		t.Fatalf("rejected request was routed: %s", msg.describe())
	default:
	}
}

func TestServePublishTypingGoesThroughTracker(t *testing.T) {
	salt := []byte("0123456789abcdef0123456789abcdef")
	oldSalt := globals.apiKeySalt
	globals.apiKeySalt = salt
	defer func() { globals.apiKeySalt = oldSalt }()
	rootKey := mintTestKey(salt, 1)

	h := &Hub{route: make(chan *ServerComMessage, 16)}
	globals.hub = h
	globals.presence = newPresenceTracker(time.Minute)
	defer func() {
		globals.hub = nil
		globals.presence = nil
	}()

	body := `{"channel":"presence:7","what":"UserTyping",` +
		`"payload":{"user_id":5,"user_name":"ann","space_id":7,"typing":true}}`
	if w := postPublish(body, rootKey); w.Code != 202 {
		t.Fatalf("typing publish: expected 202, got %d: %s", w.Code, w.Body.String())
	}
	if n := globals.presence.typingCount("presence:7"); n != 1 {
		t.Errorf("tracker did not record the typist, count = %d", n)
	}

	// Duplicate signal refreshes silently: still one routed message.
	if w := postPublish(body, rootKey); w.Code != 202 {
		t.Fatalf("repeat typing publish: expected 202, got %d", w.Code)
	}
	if got := len(h.route); got != 1 {
		t.Errorf("expected 1 routed typing event, got %d", got)
	}

	// A broken typing payload is rejected synchronously.
	bad := `{"channel":"presence:7","what":"UserTyping","payload":{"typing":true}}`
	if w := postPublish(bad, rootKey); w.Code != 400 {
		t.Errorf("bad typing payload: expected 400, got %d", w.Code)
	}
}

func TestServeMembership(t *testing.T) {
	salt := []byte("0123456789abcdef0123456789abcdef")
	oldSalt := globals.apiKeySalt
	globals.apiKeySalt = salt
	defer func() { globals.apiKeySalt = oldSalt }()
	rootKey := mintTestKey(salt, 1)

	h := &Hub{membership: make(chan *membershipChange, 16)}
	globals.hub = h
	defer func() { globals.hub = nil }()

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "http://localhost/v0/membership", strings.NewReader(body))
		req.Header.Set("X-Relay-APIKey", rootKey)
		w := httptest.NewRecorder()
		serveMembership(w, req)
		return w
	}

	if w := post(`{"space_id":7,"user_id":5,"removed":true}`); w.Code != 202 {
		t.Fatalf("membership: expected 202, got %d: %s", w.Code, w.Body.String())
	}
	select {
	case mc := <-h.membership:
		if mc.spaceID != 7 || uint64(mc.userID) != 5 || !mc.removed {
			t.Errorf("wrong membership change %+v", mc)
		}
	case <-time.After(time.Second):
		t.Fatal("membership change not forwarded")
	}

	if w := post(`{"space_id":0,"user_id":5}`); w.Code != 400 {
		t.Errorf("zero space_id: expected 400, got %d", w.Code)
	}
	if w := post(`{"space_id":7,"user_id":0}`); w.Code != 400 {
		t.Errorf("zero user_id: expected 400, got %d", w.Code)
	}
}
