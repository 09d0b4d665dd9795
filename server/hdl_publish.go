package main

/******************************************************************************
 *
 *  Description :
 *
 *    Internal HTTP API for the CRUD backend. The backend publishes a
 *    domain event here immediately after a state-changing write commits;
 *    it also signals membership changes so cached grants can be revoked.
 *    Both endpoints require a root API key.
 *
 *****************************************************************************/

import (
	"encoding/json"
	"net/http"

	"github.com/chatter/relay/server/logs"
	"github.com/chatter/relay/server/store/types"
)

// publishReq is the body of POST /v0/publish.
type publishReq struct {
	// Target channel name, i.e. "space:7".
	Channel string `json:"channel"`
	// Event type tag, one of the closed set.
	What string `json:"what"`
	// Denormalized event payload, passed through to subscribers.
	Payload json.RawMessage `json:"payload"`
	// Optional session ID of the event's originator. Delivery to that
	// session is suppressed (the "toOthers" contract).
	SkipSid string `json:"skip_sid,omitempty"`
}

// membershipReq is the body of POST /v0/membership.
type membershipReq struct {
	SpaceId uint64 `json:"space_id"`
	UserId  uint64 `json:"user_id"`
	// True when the user left or was removed from the space.
	Removed bool `json:"removed"`
}

type apiError struct {
	Code int    `json:"code"`
	Text string `json:"text"`
}

func writeAPIError(wrt http.ResponseWriter, code int, text string) {
	wrt.WriteHeader(code)
	json.NewEncoder(wrt).Encode(&apiError{Code: code, Text: text})
}

// checkAPIRequest validates method, content type and the root API key
// shared with the CRUD backend.
func checkAPIRequest(wrt http.ResponseWriter, req *http.Request) bool {
	if req.Method != http.MethodPost {
		writeAPIError(wrt, http.StatusMethodNotAllowed, "POST required")
		return false
	}

	isValid, isRoot := checkAPIKey(getAPIKey(req))
	if !isValid || !isRoot {
		writeAPIError(wrt, http.StatusUnauthorized, "valid root API key required")
		logs.Err.Println("api: missing or non-root API key", req.RemoteAddr)
		return false
	}
	return true
}

// servePublish handles POST /v0/publish. Publishing is fire-and-forget:
// malformed input is rejected synchronously, delivery failures are not
// reported back to the publisher.
func servePublish(wrt http.ResponseWriter, req *http.Request) {
	wrt.Header().Set("Content-Type", "application/json; charset=utf-8")
	if !checkAPIRequest(wrt, req) {
		return
	}

	var pub publishReq
	if err := json.NewDecoder(req.Body).Decode(&pub); err != nil {
		writeAPIError(wrt, http.StatusBadRequest, "malformed request body")
		return
	}

	if !validEventType(pub.What) {
		writeAPIError(wrt, http.StatusBadRequest, "unknown event type "+pub.What)
		return
	}

	kind, scope := parseChannelName(pub.Channel)
	if kind == kindUnknown {
		writeAPIError(wrt, http.StatusBadRequest, denyInvalidChannel)
		return
	}

	msg := &ServerComMessage{
		Data: &MsgServerData{
			Channel:   pub.Channel,
			What:      pub.What,
			Timestamp: types.TimeNow(),
			Payload:   pub.Payload,
		},
		skipSid: pub.SkipSid,
	}

	if pub.What == evtUserTyping && kind == kindPresence {
		// Typing signals go through the presence tracker which owns the
		// TTL state machine and decides what actually gets broadcast.
		if !globals.presence.signal(msg, scope) {
			writeAPIError(wrt, http.StatusBadRequest, "malformed typing payload")
			return
		}
	} else {
		globals.hub.publish(msg)
	}

	wrt.WriteHeader(http.StatusAccepted)
	json.NewEncoder(wrt).Encode(&apiError{Code: http.StatusAccepted, Text: "accepted"})
}

// serveMembership handles POST /v0/membership: the CRUD backend reports a
// membership change so the hub can invalidate cached grants.
func serveMembership(wrt http.ResponseWriter, req *http.Request) {
	wrt.Header().Set("Content-Type", "application/json; charset=utf-8")
	if !checkAPIRequest(wrt, req) {
		return
	}

	var mc membershipReq
	if err := json.NewDecoder(req.Body).Decode(&mc); err != nil {
		writeAPIError(wrt, http.StatusBadRequest, "malformed request body")
		return
	}
	if mc.SpaceId == 0 || mc.UserId == 0 {
		writeAPIError(wrt, http.StatusBadRequest, "space_id and user_id required")
		return
	}

	globals.hub.membership <- &membershipChange{
		spaceID: mc.SpaceId,
		userID:  types.Uid(mc.UserId),
		removed: mc.Removed,
	}

	wrt.WriteHeader(http.StatusAccepted)
	json.NewEncoder(wrt).Encode(&apiError{Code: http.StatusAccepted, Text: "accepted"})
}
