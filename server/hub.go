package main

/******************************************************************************
 *
 *  Description :
 *
 *    The hub is the event bus core: it owns the registry of live channels,
 *    routes published events to them, assigns per-channel sequence
 *    numbers, and manages channel lifecycle (lazy creation, garbage
 *    collection of empty channels).
 *
 *****************************************************************************/

import (
	"strconv"
	"sync"

	"github.com/chatter/relay/server/logs"
	"github.com/chatter/relay/server/store/types"
)

// sessionJoin is a request to the hub to attach a pre-authorized session
// to a channel, creating the channel if it's not live yet.
type sessionJoin struct {
	pkt   *ClientComMessage
	sess  *Session
	kind  channelKind
	scope uint64
	grant Grant
}

// channelUnreg is a request to remove an idle channel from the registry.
type channelUnreg struct {
	name string
	ch   *Channel
}

// membershipChange is a signal from the CRUD layer that space membership
// was modified. On removal the user's cached grants for the space's
// channels are invalidated.
type membershipChange struct {
	spaceID uint64
	userID  types.Uid
	removed bool
}

// Hub is the core structure which holds channels.
type Hub struct {
	// Channels indexed by name.
	channels *sync.Map

	// Inbound events to route to channels, buffered at 4096.
	route chan *ServerComMessage

	// Subscribe a session to a channel, possibly creating the channel. Buffered at 256.
	join chan *sessionJoin

	// Remove an idle channel from the registry. Buffered at 256.
	unreg chan *channelUnreg

	// Membership change notifications from the external store. Buffered at 64.
	membership chan *membershipChange

	// Request to shutdown, unbuffered.
	shutdown chan chan<- bool

	// Per-channel sequence counters. Owned by the run goroutine: counters
	// survive channel garbage collection so a sequence number is never
	// reused for a channel name within the process lifetime.
	seqs map[string]int64
}

func (h *Hub) channelGet(name string) *Channel {
	if ch, ok := h.channels.Load(name); ok {
		return ch.(*Channel)
	}
	return nil
}

func (h *Hub) channelPut(name string, ch *Channel) {
	h.channels.Store(name, ch)
}

func (h *Hub) channelDel(name string) {
	h.channels.Delete(name)
}

func newHub() *Hub {
	h := &Hub{
		channels:   &sync.Map{},
		route:      make(chan *ServerComMessage, 4096),
		join:       make(chan *sessionJoin, 256),
		unreg:      make(chan *channelUnreg, 256),
		membership: make(chan *membershipChange, 64),
		shutdown:   make(chan chan<- bool),
		seqs:       make(map[string]int64),
	}

	go h.run()

	return h
}

// publish enqueues an event for routing. Fire-and-forget: the caller gets
// no confirmation of delivery. Returns false if the routing queue is full.
func (h *Hub) publish(msg *ServerComMessage) bool {
	select {
	case h.route <- msg:
		return true
	default:
		logs.Err.Println("hub: routing queue full, event dropped", msg.describe())
		statsInc("DroppedEventsTotal", 1)
		return false
	}
}

func (h *Hub) run() {
	for {
		select {
		case join := <-h.join:
			// Attach a session to a channel. Authorization already
			// happened on the session's goroutine; here the channel is
			// created if it is not live yet.
			ch := h.channelGet(join.pkt.channel)
			if ch == nil {
				ch = &Channel{
					name:      join.pkt.channel,
					kind:      join.kind,
					scopeID:   join.scope,
					sessions:  make(map[*Session]perSessionData),
					broadcast: make(chan *ServerComMessage, 256),
					reg:       make(chan *channelJoin, 32),
					unreg:     make(chan *sessionLeave, 32),
					evict:     make(chan types.Uid, 8),
					exit:      make(chan *channelShutdown, 1),
				}
				h.channelPut(ch.name, ch)
				statsInc("LiveChannels", 1)
				statsInc("TotalChannels", 1)
				go ch.run(h)
			}
			select {
			case ch.reg <- &channelJoin{pkt: join.pkt, sess: join.sess, grant: join.grant}:
			default:
				join.sess.queueOut(ErrServiceUnavailable(join.pkt.id, join.pkt.channel, join.pkt.timestamp))
				logs.Err.Println("hub: channel's reg queue full", ch.name, join.sess.sid)
			}

		case msg := <-h.route:
			// An event published by the CRUD layer (or the presence
			// tracker / notification fan-out). Assign the sequence number
			// and forward to the channel. No subscribers - no channel -
			// the event is dropped: no buffering, no replay.
			ch := h.channelGet(msg.Data.Channel)
			if ch == nil {
				statsInc("DroppedEventsTotal", 1)
			} else {
				seq := h.seqs[ch.name] + 1
				h.seqs[ch.name] = seq
				msg.Data.SeqId = seq
				if msg.Data.Timestamp.IsZero() {
					msg.Data.Timestamp = types.TimeNow()
				}
				select {
				case ch.broadcast <- msg:
					statsInc("PublishedEventsTotal", 1)
				default:
					logs.Err.Println("hub: channel's broadcast queue full", ch.name)
					statsInc("DroppedEventsTotal", 1)
				}
			}

			// A message posted to a space triggers the notification
			// fan-out regardless of whether anyone is subscribed to the
			// space channel itself.
			if msg.Data.What == evtMessageSent {
				if kind, scope := parseChannelName(msg.Data.Channel); kind == kindSpace {
					globals.fanout.messageSent(scope, msg.Data)
				}
			}

		case mc := <-h.membership:
			if !mc.removed {
				// Joining a space grants nothing retroactively; the user
				// subscribes and gets authorized the normal way.
				break
			}
			for _, name := range spaceChannelNames(mc.spaceID) {
				if ch := h.channelGet(name); ch != nil {
					select {
					case ch.evict <- mc.userID:
					default:
						logs.Warn.Println("hub: evict queue full", name)
					}
				}
			}

		case unreg := <-h.unreg:
			// Reap an idle channel. Guard against the name having been
			// re-bound to a newer instance.
			if live := h.channelGet(unreg.name); live == unreg.ch {
				h.channelDel(unreg.name)
			}
			unreg.ch.exit <- &channelShutdown{}

		case hubdone := <-h.shutdown:
			channelsdone := make(chan bool)
			count := 0
			h.channels.Range(func(_, ch interface{}) bool {
				ch.(*Channel).exit <- &channelShutdown{done: channelsdone}
				count++
				return true
			})

			for i := 0; i < count; i++ {
				<-channelsdone
			}

			logs.Info.Printf("hub shutdown completed with %d channels", count)

			hubdone <- true
			return
		}
	}
}

// spaceChannelNames lists the channels scoped to a space: the group chat
// channel and its typing-presence twin.
func spaceChannelNames(spaceID uint64) []string {
	id := strconv.FormatUint(spaceID, 10)
	return []string{"space:" + id, "presence:" + id}
}
