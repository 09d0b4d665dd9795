package main

/******************************************************************************
 *
 *  Description :
 *
 *    Tracker of transient typing state. State machine per (channel, user):
 *    Idle -> Typing on a typing=true signal, Typing -> Idle on an explicit
 *    typing=false or on TTL expiry with no refresh. Expiry publishes a
 *    synthetic UserTyping(false) on the presence channel.
 *
 *****************************************************************************/

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/chatter/relay/server/logs"
	"github.com/chatter/relay/server/store/types"
)

// Default TTL of a typing entry. Matches the client-side resend interval:
// the client re-sends typing=true no more often than every 2 seconds, so
// an entry older than that means the user stopped.
const defaultTypingTTL = 2000 * time.Millisecond

// presenceEntry is the Typing state of one (channel, user) pair.
type presenceEntry struct {
	userID   uint64
	userName string
	spaceID  uint64
	// Expiry deadline; a refreshed typing=true signal moves it forward.
	// Checked again when the timer fires: the timer may have fired and
	// gone to sleep on the mutex just before a refresh reset it.
	deadline time.Time
	timer    *time.Timer
}

// PresenceTracker derives typing state from published presence events.
type PresenceTracker struct {
	mu sync.Mutex
	// Typing entries keyed by channel name + user ID.
	entries map[presenceKey]*presenceEntry

	ttl time.Duration
}

type presenceKey struct {
	channel string
	userID  uint64
}

func newPresenceTracker(ttl time.Duration) *PresenceTracker {
	if ttl <= 0 {
		ttl = defaultTypingTTL
	}
	return &PresenceTracker{
		entries: make(map[presenceKey]*presenceEntry),
		ttl:     ttl,
	}
}

// signal processes an inbound UserTyping publish. Returns false if the
// payload cannot be parsed. Repeated typing=true signals for the same
// (channel, user) refresh the TTL without re-publishing; state
// transitions are forwarded to the hub for broadcast.
func (p *PresenceTracker) signal(msg *ServerComMessage, spaceID uint64) bool {
	var payload TypingPayload
	if err := json.Unmarshal(msg.Data.Payload, &payload); err != nil || payload.UserId == 0 {
		return false
	}

	key := presenceKey{channel: msg.Data.Channel, userID: payload.UserId}

	p.mu.Lock()
	entry, exists := p.entries[key]

	if payload.Typing {
		if exists {
			// Still typing: refresh the TTL, suppress the duplicate.
			entry.deadline = time.Now().Add(p.ttl)
			entry.timer.Reset(p.ttl)
			p.mu.Unlock()
			return true
		}
		// Idle -> Typing.
		p.entries[key] = &presenceEntry{
			userID:   payload.UserId,
			userName: payload.UserName,
			spaceID:  spaceID,
			deadline: time.Now().Add(p.ttl),
			timer:    time.AfterFunc(p.ttl, func() { p.expire(key) }),
		}
		statsInc("TypingEntries", 1)
		p.mu.Unlock()

		globals.hub.publish(msg)
		return true
	}

	// Explicit typing=false.
	if !exists {
		// Already idle (expired or never seen): no transition, nothing
		// to broadcast.
		p.mu.Unlock()
		return true
	}
	entry.timer.Stop()
	delete(p.entries, key)
	statsInc("TypingEntries", -1)
	p.mu.Unlock()

	globals.hub.publish(msg)
	return true
}

// expire fires when a typing entry saw no refresh within the TTL:
// broadcast a synthetic typing=false.
func (p *PresenceTracker) expire(key presenceKey) {
	p.mu.Lock()
	entry, exists := p.entries[key]
	if !exists {
		p.mu.Unlock()
		return
	}
	if remaining := time.Until(entry.deadline); remaining > 0 {
		// A refresh moved the deadline while this firing was waiting on
		// the lock. The user is still typing: re-arm and keep the entry.
		entry.timer.Reset(remaining)
		p.mu.Unlock()
		return
	}
	delete(p.entries, key)
	statsInc("TypingEntries", -1)
	p.mu.Unlock()

	payload, err := json.Marshal(&TypingPayload{
		UserId:   entry.userID,
		UserName: entry.userName,
		SpaceId:  entry.spaceID,
		Typing:   false,
	})
	if err != nil {
		logs.Err.Println("presence: failed to marshal expiry payload", err)
		return
	}

	globals.hub.publish(&ServerComMessage{
		Data: &MsgServerData{
			Channel:   key.channel,
			What:      evtUserTyping,
			Timestamp: types.TimeNow(),
			Payload:   payload,
		},
	})
}

// channelGone clears all typing entries of a reaped presence channel.
func (p *PresenceTracker) channelGone(channel string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for key, entry := range p.entries {
		if key.channel == channel {
			entry.timer.Stop()
			delete(p.entries, key)
			statsInc("TypingEntries", -1)
		}
	}
}

// typingCount returns the number of users currently typing on the channel.
func (p *PresenceTracker) typingCount(channel string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	count := 0
	for key := range p.entries {
		if key.channel == channel {
			count++
		}
	}
	return count
}
