package main

/******************************************************************************
 *
 *  Description :
 *
 *    Management of live sessions.
 *
 *****************************************************************************/

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chatter/relay/server/logs"
	"github.com/chatter/relay/server/store"
)

// SessionStore holds live sessions, indexed by session ID.
type SessionStore struct {
	lock sync.Mutex

	sessCache map[string]*Session
}

// NewSession creates a new session and saves it to the session store.
func (ss *SessionStore) NewSession(conn *websocket.Conn, sid string) (*Session, int) {
	var s Session

	s.sid = sid
	if s.sid == "" {
		s.sid = store.GetUidString()
	}
	s.ws = conn
	s.subs = make(map[string]*Subscription)
	s.send = make(chan interface{}, globals.sendQueueLimit)
	s.stop = make(chan interface{}, 1)
	s.detach = make(chan string, 64)
	s.lastAction = time.Now()

	ss.lock.Lock()
	ss.sessCache[s.sid] = &s
	count := len(ss.sessCache)
	ss.lock.Unlock()

	statsInc("LiveSessions", 1)
	statsInc("TotalSessions", 1)

	return &s, count
}

// Get fetches a session from the store by session ID.
func (ss *SessionStore) Get(sid string) *Session {
	ss.lock.Lock()
	defer ss.lock.Unlock()

	return ss.sessCache[sid]
}

// Delete removes a session from the store.
func (ss *SessionStore) Delete(s *Session) int {
	ss.lock.Lock()
	defer ss.lock.Unlock()

	delete(ss.sessCache, s.sid)
	return len(ss.sessCache)
}

// Count returns the number of live sessions.
func (ss *SessionStore) Count() int {
	ss.lock.Lock()
	defer ss.lock.Unlock()

	return len(ss.sessCache)
}

// Shutdown terminates all sessions. No need to clean up the store itself.
func (ss *SessionStore) Shutdown() {
	ss.lock.Lock()
	defer ss.lock.Unlock()

	shutdown := NoErrShutdown(time.Now().UTC().Round(time.Millisecond))
	for _, s := range ss.sessCache {
		s.stopSession(s.serialize(shutdown))
	}

	logs.Info.Printf("SessionStore shut down, sessions terminated: %d", len(ss.sessCache))
}

// NewSessionStore initializes a session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessCache: make(map[string]*Session),
	}
}
