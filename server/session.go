package main

/******************************************************************************
 *
 *  Description :
 *
 *    Handling of client sessions. A session is a single live websocket
 *    connection; a user may have multiple sessions. Each session owns its
 *    set of channel subscriptions.
 *
 *****************************************************************************/

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chatter/relay/server/logs"
	"github.com/chatter/relay/server/store"
	"github.com/chatter/relay/server/store/types"
)

// Wire protocol version expected in {hi}.
const currentVersion = "1.0"

// Session represents a single websocket connection.
type Session struct {
	// Websocket connection.
	ws *websocket.Conn

	// IP address of the client.
	remoteAddr string

	// User agent, a string provided by the client in the {hi} packet.
	userAgent string

	// Protocol version of the client, empty until {hi} is processed.
	ver string

	// ID of the authenticated user, or 0.
	uid types.Uid
	// Display name of the authenticated user.
	userName string
	// Admin accounts pass every space membership check.
	isAdmin bool

	// Time when the session received any packet from the client.
	lastAction time.Time

	// Outbound messages, buffered. Content is either *ServerComMessage or
	// a pre-serialized []byte.
	send chan interface{}

	// Channel for shutting down the session, buffer 1. Content is in the
	// same format as for 'send'.
	stop chan interface{}

	// Detach the session from a named channel, buffered.
	detach chan string

	// Map of channel subscriptions, indexed by channel name.
	// Don't access directly. Use getters/setters.
	subs map[string]*Subscription
	// Mutex for subs access: both channel goroutines and the session's
	// own goroutines access subs concurrently.
	subsLock sync.RWMutex

	// Session ID.
	sid string
}

// Subscription is a mapper of a session to a channel.
type Subscription struct {
	// Channel to send events to, copy of Channel.broadcast.
	broadcast chan<- *ServerComMessage

	// Session sends a signal here when it unsubscribes, copy of
	// Channel.unreg.
	done chan<- *sessionLeave
}

func (s *Session) addSub(channel string, sub *Subscription) {
	s.subsLock.Lock()
	defer s.subsLock.Unlock()

	s.subs[channel] = sub
}

func (s *Session) getSub(channel string) *Subscription {
	s.subsLock.RLock()
	defer s.subsLock.RUnlock()

	return s.subs[channel]
}

func (s *Session) delSub(channel string) {
	s.subsLock.Lock()
	defer s.subsLock.Unlock()

	delete(s.subs, channel)
}

func (s *Session) countSub() int {
	s.subsLock.RLock()
	defer s.subsLock.RUnlock()

	return len(s.subs)
}

// unsubAll signals all subscribed channels that the session is gone. The
// channels remove the session from their subscriber sets; in-flight events
// already queued to the session are discarded with it.
func (s *Session) unsubAll() {
	s.subsLock.RLock()
	defer s.subsLock.RUnlock()

	for _, sub := range s.subs {
		// sub.done is the same as channel.unreg.
		sub.done <- &sessionLeave{sess: s}
	}
}

// queueOut attempts to send a ServerComMessage to the session; if the send
// buffer is full, timeout is 50 usec.
func (s *Session) queueOut(msg *ServerComMessage) bool {
	if s == nil {
		return true
	}

	select {
	case s.send <- msg:
	case <-time.After(time.Microsecond * 50):
		logs.Warn.Println("s.queueOut: timeout", s.sid)
		return false
	}
	return true
}

// stopSession makes the write loop terminate the session. The optional
// parting message is delivered best-effort.
func (s *Session) stopSession(data interface{}) {
	select {
	case s.stop <- data:
	default:
	}
}

func (s *Session) cleanUp() {
	globals.sessionStore.Delete(s)
	s.unsubAll()
	statsInc("LiveSessions", -1)
}

// serialize converts a ServerComMessage to the JSON the client consumes.
func (s *Session) serialize(msg *ServerComMessage) []byte {
	out, _ := json.Marshal(msg)
	return out
}

// dispatchRaw converts the received raw bytes to a ClientComMessage and
// dispatches it.
func (s *Session) dispatchRaw(raw []byte) {
	var msg ClientComMessage

	toLog := raw
	truncated := ""
	if len(raw) > 512 {
		toLog = raw[:512]
		truncated = "<...>"
	}
	logs.Info.Printf("in: '%s%s' sid='%s' uid='%s'", toLog, truncated, s.sid, s.uid.String())

	if err := json.Unmarshal(raw, &msg); err != nil {
		logs.Warn.Println("s.dispatch", err, s.sid)
		s.queueOut(ErrMalformed("", "", types.TimeNow()))
		return
	}

	s.dispatch(&msg)
}

func (s *Session) dispatch(msg *ClientComMessage) {
	s.lastAction = types.TimeNow()
	msg.timestamp = s.lastAction

	// Requests past the handshake require {hi} first.
	checkVers := func(handler func(*ClientComMessage)) func(*ClientComMessage) {
		return func(m *ClientComMessage) {
			if s.ver == "" {
				s.queueOut(ErrCommandOutOfSequence(m.id, m.channel, m.timestamp))
				return
			}
			handler(m)
		}
	}

	// Requests on channels require a logged-in user.
	checkUser := func(handler func(*ClientComMessage)) func(*ClientComMessage) {
		return func(m *ClientComMessage) {
			if s.uid.IsZero() {
				s.queueOut(ErrAuthRequired(m.id, m.channel, m.timestamp))
				return
			}
			handler(m)
		}
	}

	var handler func(*ClientComMessage)

	switch {
	case msg.Hi != nil:
		handler = s.hello
		msg.id = msg.Hi.Id

	case msg.Login != nil:
		handler = checkVers(s.login)
		msg.id = msg.Login.Id

	case msg.Sub != nil:
		handler = checkVers(checkUser(s.subscribe))
		msg.id = msg.Sub.Id
		msg.channel = msg.Sub.Channel

	case msg.Leave != nil:
		handler = checkVers(checkUser(s.leave))
		msg.id = msg.Leave.Id
		msg.channel = msg.Leave.Channel

	default:
		// Unknown message.
		s.queueOut(ErrMalformed("", "", msg.timestamp))
		logs.Warn.Println("s.dispatch: unknown message", s.sid)
		return
	}

	handler(msg)
}

// hello processes the {hi} handshake.
func (s *Session) hello(msg *ClientComMessage) {
	if msg.Hi.Version == "" {
		s.queueOut(ErrMalformed(msg.id, "", msg.timestamp))
		return
	}
	s.ver = msg.Hi.Version
	s.userAgent = msg.Hi.UserAgent

	s.queueOut(&ServerComMessage{Ctrl: &MsgServerCtrl{
		Id:        msg.id,
		Code:      200,
		Text:      "ok",
		Params:    map[string]interface{}{"ver": currentVersion, "build": buildstamp},
		Timestamp: msg.timestamp}})
}

// login authenticates the session with a bearer token issued by the
// campus backend.
func (s *Session) login(msg *ClientComMessage) {
	if msg.Login.Token == "" {
		s.queueOut(ErrMalformed(msg.id, "", msg.timestamp))
		return
	}

	user, err := store.Users.AuthenticateToken(msg.Login.Token)
	if err != nil {
		logs.Err.Println("s.login: token check failed", err, s.sid)
		s.queueOut(ErrServiceUnavailable(msg.id, "", msg.timestamp))
		return
	}
	if user == nil {
		s.queueOut(ErrAuthFailed(msg.id, "", msg.timestamp))
		return
	}

	if !s.uid.IsZero() && s.uid != user.ID {
		// Re-login as someone else: all grants were issued to the old
		// identity, drop them.
		s.unsubAll()
	}

	s.uid = user.ID
	s.userName = user.Name
	s.isAdmin = user.IsAdmin()

	s.queueOut(&ServerComMessage{Ctrl: &MsgServerCtrl{
		Id:        msg.id,
		Code:      200,
		Text:      "authenticated",
		Params:    map[string]interface{}{"user_id": uint64(user.ID), "user_name": user.Name},
		Timestamp: msg.timestamp}})
}

// subscribe handles a {sub} request: parse the channel name, authorize
// against the membership oracle, then ask the hub to attach the session.
// The oracle call runs on the session's own goroutine so it never blocks
// a channel's subscriber set.
func (s *Session) subscribe(msg *ClientComMessage) {
	kind, scope := parseChannelName(msg.channel)
	if kind == kindUnknown {
		s.queueOut(ErrInvalidChannel(msg.id, msg.channel, msg.timestamp))
		statsInc("SubscribeDeniedTotal", 1)
		return
	}

	if s.getSub(msg.channel) != nil {
		// Already subscribed; reconfirm. The grant stays as issued.
		s.queueOut(NoErr(msg.id, msg.channel, msg.timestamp))
		return
	}

	user := &types.User{ID: s.uid, Name: s.userName}
	if s.isAdmin {
		user.Role = "admin"
	}
	grant, err := authorizeChannel(user, kind, scope)
	if err != nil {
		// Oracle unreachable: fail closed, the client may retry.
		logs.Err.Println("s.subscribe: oracle unavailable", err, s.sid)
		s.queueOut(ErrOracleUnavailable(msg.id, msg.channel, msg.timestamp))
		statsInc("SubscribeDeniedTotal", 1)
		return
	}
	if !grant.Ok {
		if grant.Reason == denyInvalidChannel {
			s.queueOut(ErrInvalidChannel(msg.id, msg.channel, msg.timestamp))
		} else {
			s.queueOut(ErrNotAuthorized(msg.id, msg.channel, msg.timestamp))
		}
		statsInc("SubscribeDeniedTotal", 1)
		return
	}

	globals.hub.join <- &sessionJoin{
		pkt:   msg,
		sess:  s,
		kind:  kind,
		scope: scope,
		grant: grant,
	}
	// The channel confirms the subscription with a {ctrl}.
}

// leave handles a {leave} request: detach from a channel.
func (s *Session) leave(msg *ClientComMessage) {
	sub := s.getSub(msg.channel)
	if sub == nil {
		s.queueOut(ErrAttachFirst(msg.id, msg.channel, msg.timestamp))
		return
	}

	sub.done <- &sessionLeave{pkt: msg, sess: s}
}
