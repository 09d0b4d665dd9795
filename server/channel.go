package main

/******************************************************************************
 *
 *  Description :
 *
 *    A channel is a named broadcast topic: it owns the set of subscribed
 *    sessions and fans published events out to them. One goroutine per
 *    live channel; created lazily on first subscribe, reaped after the
 *    last subscriber leaves.
 *
 *****************************************************************************/

import (
	"time"

	"github.com/chatter/relay/server/logs"
	"github.com/chatter/relay/server/store/types"
)

// Kill a channel with no subscribers after this period of inactivity.
const idleChannelTimeout = time.Second * 15

// Channel is a broadcast unit of the event bus.
type Channel struct {
	// Channel name, i.e. "space:7".
	name string
	// Kind parsed from the name.
	kind channelKind
	// Numeric scope from the name: space ID or user ID.
	scopeID uint64

	// Sessions attached to this channel.
	sessions map[*Session]perSessionData

	// Inbound {data} events to broadcast to subscribers. Buffered = 256.
	broadcast chan *ServerComMessage
	// Subscribe requests from sessions, pre-authorized. Buffered = 32.
	reg chan *channelJoin
	// Unsubscribe requests from sessions. Buffered = 32.
	unreg chan *sessionLeave
	// Requests to revoke grants of a user whose membership changed. Buffered = 8.
	evict chan types.Uid
	// Request to terminate the channel. Buffered = 1.
	exit chan *channelShutdown
}

// perSessionData is the channel's cache of subscriber data: the grant and
// the identity it was issued to.
type perSessionData struct {
	uid      types.Uid
	userName string
	grant    Grant
}

// channelJoin is a request to attach a pre-authorized session.
type channelJoin struct {
	pkt   *ClientComMessage
	sess  *Session
	grant Grant
}

// sessionLeave is a session detaching from the channel. pkt is nil when
// the session is disconnecting rather than explicitly unsubscribing.
type sessionLeave struct {
	pkt  *ClientComMessage
	sess *Session
}

// channelShutdown is a request to stop the channel goroutine.
type channelShutdown struct {
	// Channel to report back completion. Could be nil.
	done chan<- bool
}

func (ch *Channel) run(hub *Hub) {
	// Kills the channel after a period with no subscribers.
	killTimer := time.NewTimer(time.Hour)
	killTimer.Stop()

	for {
		select {
		case join := <-ch.reg:
			killTimer.Stop()
			ch.addSession(join)

		case leave := <-ch.unreg:
			if ch.remSession(leave.sess) {
				leave.sess.delSub(ch.name)
			}
			if leave.pkt != nil {
				leave.sess.queueOut(NoErr(leave.pkt.id, ch.name, leave.pkt.timestamp))
			}
			if len(ch.sessions) == 0 {
				killTimer.Reset(idleChannelTimeout)
			}

		case msg := <-ch.broadcast:
			for sess := range ch.sessions {
				if msg.skipSid != "" && sess.sid == msg.skipSid {
					continue
				}
				if !sess.queueOut(msg) {
					// The session's outbound queue is full. Disconnect the
					// slow consumer, the rest of the subscribers continue.
					logs.Warn.Println("ch[" + ch.name + "] slow session dropped " + sess.sid)
					sess.stopSession(nil)
				}
			}

		case uid := <-ch.evict:
			// Membership changed: revoke this user's grants and detach
			// their sessions. Re-subscribing runs a fresh authorization.
			for sess, pssd := range ch.sessions {
				if pssd.uid != uid {
					continue
				}
				delete(ch.sessions, sess)
				sess.delSub(ch.name)
				sess.queueOut(ErrMembershipChanged(ch.name, types.TimeNow()))
			}
			if len(ch.sessions) == 0 {
				killTimer.Reset(idleChannelTimeout)
			}

		case <-killTimer.C:
			// Ask the hub to unregister the channel. The hub responds by
			// closing it down through ch.exit.
			hub.unreg <- &channelUnreg{name: ch.name, ch: ch}

		case sd := <-ch.exit:
			// Drain the queues: anything still pending gets a retryable
			// error or is dropped.
			ch.drain()
			if ch.kind == kindPresence {
				globals.presence.channelGone(ch.name)
			}
			if sd.done != nil {
				sd.done <- true
			}
			statsInc("LiveChannels", -1)
			return
		}
	}
}

// addSession attaches a pre-authorized session to the channel and confirms
// the subscription. The grant was issued before the join request was
// queued, so the subscriber receives events only after this single
// grant/deny reply.
func (ch *Channel) addSession(join *channelJoin) {
	sess := join.sess
	ch.sessions[sess] = perSessionData{
		uid:      sess.uid,
		userName: sess.userName,
		grant:    join.grant,
	}
	sess.addSub(ch.name, &Subscription{
		broadcast: ch.broadcast,
		done:      ch.unreg,
	})

	params := map[string]interface{}{"channel": ch.name}
	sess.queueOut(&ServerComMessage{Ctrl: &MsgServerCtrl{
		Id:        join.pkt.id,
		Channel:   ch.name,
		Code:      200,
		Text:      "subscribed",
		Params:    params,
		Timestamp: join.pkt.timestamp}})
}

// remSession removes the session from the subscriber set. Returns true if
// the session was actually subscribed.
func (ch *Channel) remSession(sess *Session) bool {
	if _, ok := ch.sessions[sess]; !ok {
		return false
	}
	delete(ch.sessions, sess)
	return true
}

// drain empties the channel's inbound queues after it has been removed
// from the hub registry. Queued joins raced with the garbage collection;
// they are told to retry and will land on a fresh channel instance.
func (ch *Channel) drain() {
	for {
		select {
		case join := <-ch.reg:
			join.sess.queueOut(ErrServiceUnavailable(join.pkt.id, ch.name, join.pkt.timestamp))
		case leave := <-ch.unreg:
			leave.sess.delSub(ch.name)
		case <-ch.broadcast:
			statsInc("DroppedEventsTotal", 1)
		case <-ch.evict:
		default:
			return
		}
	}
}
