package main

/******************************************************************************
 *
 *  Description :
 *
 *    Notification fan-out. Every MessageSent event published to a space
 *    channel produces a persisted notification plus a NotificationCreated
 *    event on the personal channel of each space member other than the
 *    sender. Fan-out runs on a worker pool off the hub's routing loop.
 *
 *****************************************************************************/

import (
	"encoding/json"

	"github.com/rivo/uniseg"

	"github.com/chatter/relay/server/concurrency"
	"github.com/chatter/relay/server/logs"
	"github.com/chatter/relay/server/store"
	"github.com/chatter/relay/server/store/types"
)

// Notification previews are truncated to this many user-perceived
// characters, not bytes.
const previewGraphemeLimit = 50

const defaultFanoutWorkers = 8

// Fanout distributes per-member notifications for space messages.
type Fanout struct {
	pool *concurrency.GoRoutinePool
}

func newFanout(numWorkers int) *Fanout {
	if numWorkers <= 0 {
		numWorkers = defaultFanoutWorkers
	}
	return &Fanout{pool: concurrency.NewGoRoutinePool(numWorkers)}
}

func (f *Fanout) stop() {
	f.pool.Stop()
}

// messageSent schedules notification fan-out for a message published to a
// space channel. The event data is fully owned by the task: the hub does
// not wait for completion.
func (f *Fanout) messageSent(spaceID uint64, data *MsgServerData) {
	f.pool.Schedule(func() {
		var payload MessageSentPayload
		if err := json.Unmarshal(data.Payload, &payload); err != nil {
			logs.Warn.Println("fanout: invalid MessageSent payload on", data.Channel, err)
			return
		}

		members, err := store.Members.SpaceMembers(spaceID)
		if err != nil {
			logs.Err.Println("fanout: failed to load members of space", spaceID, err)
			return
		}

		space, err := store.Members.SpaceGet(spaceID)
		if err != nil {
			logs.Err.Println("fanout: failed to load space", spaceID, err)
			return
		}
		spaceName := ""
		if space != nil {
			spaceName = space.Name
		}

		preview := previewText(payload.Content, payload.FilePath)
		message := payload.SenderName + " sent a new message in " + spaceName

		for i := range members {
			uid := members[i].ID
			if uint64(uid) == payload.SenderId {
				continue
			}
			if err := f.notifyOne(uid, spaceID, &payload, preview, message); err != nil {
				// One failed recipient must not starve the rest.
				logs.Err.Println("fanout: notification for user", uid, "failed:", err)
				continue
			}
			statsInc("NotificationsFannedOutTotal", 1)
		}
	})
}

// notifyOne persists the notification and publishes NotificationCreated to
// the recipient's personal channel.
func (f *Fanout) notifyOne(uid types.Uid, spaceID uint64, payload *MessageSentPayload,
	preview, message string) error {

	notif := &types.Notification{
		UserID:     uid,
		MessageID:  payload.MessageId,
		SpaceID:    spaceID,
		SenderID:   types.Uid(payload.SenderId),
		SenderName: payload.SenderName,
		Content:    preview,
		Message:    message,
		FilePath:   payload.FilePath,
		FileType:   payload.FileType,
	}
	id, err := store.Notifications.Save(notif)
	if err != nil {
		return err
	}

	out, err := json.Marshal(&NotificationPayload{
		NotificationId: id,
		MessageId:      payload.MessageId,
		SpaceId:        spaceID,
		SenderId:       payload.SenderId,
		SenderName:     payload.SenderName,
		Content:        preview,
		Message:        message,
		FilePath:       payload.FilePath,
		FileType:       payload.FileType,
		CreatedAt:      notif.CreatedAt,
	})
	if err != nil {
		return err
	}

	globals.hub.publish(&ServerComMessage{
		Data: &MsgServerData{
			Channel:   "user:" + uid.String(),
			What:      evtNotificationCreated,
			Timestamp: types.TimeNow(),
			Payload:   out,
		},
	})
	return nil
}

// previewText shortens message content for notification display. File
// messages without text get a fixed placeholder. Truncation counts
// grapheme clusters so multi-byte text is not cut mid-character.
func previewText(content, filePath string) string {
	if content == "" {
		if filePath != "" {
			return "New file message"
		}
		return ""
	}

	if uniseg.GraphemeClusterCount(content) <= previewGraphemeLimit {
		return content
	}

	gr := uniseg.NewGraphemes(content)
	end := 0
	for i := 0; i < previewGraphemeLimit && gr.Next(); i++ {
		_, end = gr.Positions()
	}
	return content[:end]
}
