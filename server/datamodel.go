package main

/******************************************************************************
 *
 *  Description :
 *
 *    Wire protocol structures
 *
 *****************************************************************************/

import (
	"encoding/json"
	"strconv"
	"time"
)

// Event types the relay is willing to broadcast. The set is closed: the
// publish endpoint rejects anything else.
const (
	evtMessageSent         = "MessageSent"
	evtMessageDeleted      = "MessageDeleted"
	evtUserTyping          = "UserTyping"
	evtNotificationCreated = "NotificationCreated"
)

func validEventType(what string) bool {
	switch what {
	case evtMessageSent, evtMessageDeleted, evtUserTyping, evtNotificationCreated:
		return true
	}
	return false
}

// Client to Server (C2S) messages.

// MsgClientHi is a handshake {hi} message.
type MsgClientHi struct {
	// Message Id
	Id string `json:"id,omitempty"`
	// User agent
	UserAgent string `json:"ua,omitempty"`
	// Protocol version, i.e. "1.0"
	Version string `json:"ver,omitempty"`
}

// MsgClientLogin is a login {login} message carrying a bearer token issued
// by the campus backend.
type MsgClientLogin struct {
	Id    string `json:"id,omitempty"`
	Token string `json:"token"`
}

// MsgClientSub is a subscription request {sub} to a channel.
type MsgClientSub struct {
	Id      string `json:"id,omitempty"`
	Channel string `json:"channel"`
}

// MsgClientLeave is a request to unsubscribe {leave} from a channel.
type MsgClientLeave struct {
	Id      string `json:"id,omitempty"`
	Channel string `json:"channel"`
}

// ClientComMessage is a wrapper for client messages.
type ClientComMessage struct {
	Hi    *MsgClientHi    `json:"hi,omitempty"`
	Login *MsgClientLogin `json:"login,omitempty"`
	Sub   *MsgClientSub   `json:"sub,omitempty"`
	Leave *MsgClientLeave `json:"leave,omitempty"`

	// Unroutable fields, set by the dispatcher.

	// Message ID denormalized from the embedded message.
	id string
	// Channel name denormalized from the embedded message.
	channel string
	// Timestamp when the message was received.
	timestamp time.Time
}

// Server to Client (S2C) messages.

// MsgServerCtrl is a server control message {ctrl}.
type MsgServerCtrl struct {
	Id      string      `json:"id,omitempty"`
	Channel string      `json:"channel,omitempty"`
	Params  interface{} `json:"params,omitempty"`

	Code      int       `json:"code"`
	Text      string    `json:"text,omitempty"`
	Timestamp time.Time `json:"ts"`
}

func (src *MsgServerCtrl) describe() string {
	return src.Channel + " id=" + src.Id + " code=" + strconv.Itoa(src.Code) + " txt=" + src.Text
}

// MsgServerData is the event envelope {data} delivered to subscribers:
// channel, event type, per-channel sequence number, timestamp and the
// denormalized payload the UI consumes.
type MsgServerData struct {
	Channel   string          `json:"channel"`
	What      string          `json:"what"`
	SeqId     int64           `json:"seq"`
	Timestamp time.Time       `json:"ts"`
	Payload   json.RawMessage `json:"payload"`
}

func (src *MsgServerData) describe() string {
	return src.Channel + " what=" + src.What + " seq=" + strconv.FormatInt(src.SeqId, 10)
}

// ServerComMessage is a wrapper for server-side messages.
type ServerComMessage struct {
	Ctrl *MsgServerCtrl `json:"ctrl,omitempty"`
	Data *MsgServerData `json:"data,omitempty"`

	// Unroutable fields.

	// ID of the session to skip when sending to channel subscribers.
	// This is the "toOthers" contract: typing events are not echoed back
	// to the session which produced them.
	skipSid string
}

func (msg *ServerComMessage) describe() string {
	switch {
	case msg.Ctrl != nil:
		return "ctrl:{" + msg.Ctrl.describe() + "}"
	case msg.Data != nil:
		return "data:{" + msg.Data.describe() + "}"
	}
	return "empty"
}

// TypingPayload is the payload of a UserTyping event.
type TypingPayload struct {
	UserId   uint64 `json:"user_id"`
	UserName string `json:"user_name"`
	SpaceId  uint64 `json:"space_id"`
	Typing   bool   `json:"typing"`
}

// MessageSentPayload is the subset of a MessageSent payload the
// notification fan-out needs. The rest is passed through opaque.
type MessageSentPayload struct {
	MessageId  uint64 `json:"message_id"`
	SpaceId    uint64 `json:"space_id"`
	SenderId   uint64 `json:"sender_id"`
	SenderName string `json:"sender_name"`
	Content    string `json:"content"`
	FilePath   string `json:"file_path,omitempty"`
	FileType   string `json:"file_type,omitempty"`
}

// NotificationPayload is the payload of a NotificationCreated event,
// mirroring what the campus backend stores in the notification row.
type NotificationPayload struct {
	NotificationId string      `json:"notification_id"`
	MessageId      uint64      `json:"message_id"`
	SpaceId        uint64      `json:"space_id"`
	SenderId       uint64      `json:"sender_id"`
	SenderName     string      `json:"sender_name"`
	Content        string      `json:"content"`
	Message        string      `json:"message"`
	FilePath       string      `json:"file_path,omitempty"`
	FileType       string      `json:"file_type,omitempty"`
	ReadAt         interface{} `json:"read_at"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Generators of server-side error and control messages.

// NoErr indicates successful completion (200).
func NoErr(id, channel string, ts time.Time) *ServerComMessage {
	return &ServerComMessage{Ctrl: &MsgServerCtrl{
		Id:        id,
		Code:      200,
		Text:      "ok",
		Channel:   channel,
		Timestamp: ts}}
}

// ErrMalformed request malformed (400).
func ErrMalformed(id, channel string, ts time.Time) *ServerComMessage {
	return &ServerComMessage{Ctrl: &MsgServerCtrl{
		Id:        id,
		Code:      400,
		Text:      "malformed",
		Channel:   channel,
		Timestamp: ts}}
}

// ErrInvalidChannel channel name does not match any known pattern (400).
func ErrInvalidChannel(id, channel string, ts time.Time) *ServerComMessage {
	return &ServerComMessage{Ctrl: &MsgServerCtrl{
		Id:        id,
		Code:      400,
		Text:      "INVALID_CHANNEL",
		Channel:   channel,
		Timestamp: ts}}
}

// ErrAuthRequired authentication required before the request can be
// processed (401).
func ErrAuthRequired(id, channel string, ts time.Time) *ServerComMessage {
	return &ServerComMessage{Ctrl: &MsgServerCtrl{
		Id:        id,
		Code:      401,
		Text:      "authentication required",
		Channel:   channel,
		Timestamp: ts}}
}

// ErrAuthFailed authentication failed: unknown or expired token (401).
func ErrAuthFailed(id, channel string, ts time.Time) *ServerComMessage {
	return &ServerComMessage{Ctrl: &MsgServerCtrl{
		Id:        id,
		Code:      401,
		Text:      "authentication failed",
		Channel:   channel,
		Timestamp: ts}}
}

// ErrAPIKeyRequired the request is missing a valid API key (403).
func ErrAPIKeyRequired(ts time.Time) *ServerComMessage {
	return &ServerComMessage{Ctrl: &MsgServerCtrl{
		Code:      403,
		Text:      "valid API key required",
		Timestamp: ts}}
}

// ErrNotAuthorized subscription denied: membership check failed (403).
func ErrNotAuthorized(id, channel string, ts time.Time) *ServerComMessage {
	return &ServerComMessage{Ctrl: &MsgServerCtrl{
		Id:        id,
		Code:      403,
		Text:      "UNAUTHORIZED",
		Channel:   channel,
		Timestamp: ts}}
}

// ErrMembershipChanged the subscription was revoked because the user left
// or was removed from the space (403). The client may re-subscribe, which
// forces a fresh authorization.
func ErrMembershipChanged(channel string, ts time.Time) *ServerComMessage {
	return &ServerComMessage{Ctrl: &MsgServerCtrl{
		Code:      403,
		Text:      "membership changed",
		Channel:   channel,
		Timestamp: ts}}
}

// ErrAttachFirst request to apply an operation to a channel the session is
// not subscribed to (409).
func ErrAttachFirst(id, channel string, ts time.Time) *ServerComMessage {
	return &ServerComMessage{Ctrl: &MsgServerCtrl{
		Id:        id,
		Code:      409,
		Text:      "not subscribed",
		Channel:   channel,
		Timestamp: ts}}
}

// ErrCommandOutOfSequence a message received out of order, i.e. a {sub}
// before a {hi} (409).
func ErrCommandOutOfSequence(id, channel string, ts time.Time) *ServerComMessage {
	return &ServerComMessage{Ctrl: &MsgServerCtrl{
		Id:        id,
		Code:      409,
		Text:      "command out of sequence",
		Channel:   channel,
		Timestamp: ts}}
}

// ErrOracleUnavailable the membership check failed because the external
// store did not respond; fail closed, the client may retry (503).
func ErrOracleUnavailable(id, channel string, ts time.Time) *ServerComMessage {
	return &ServerComMessage{Ctrl: &MsgServerCtrl{
		Id:        id,
		Code:      503,
		Text:      "membership service unavailable, try later",
		Channel:   channel,
		Timestamp: ts}}
}

// ErrServiceUnavailable the request cannot be processed at this time (503).
func ErrServiceUnavailable(id, channel string, ts time.Time) *ServerComMessage {
	return &ServerComMessage{Ctrl: &MsgServerCtrl{
		Id:        id,
		Code:      503,
		Text:      "service unavailable",
		Channel:   channel,
		Timestamp: ts}}
}

// NoErrShutdown the server is shutting down (503).
func NoErrShutdown(ts time.Time) *ServerComMessage {
	return &ServerComMessage{Ctrl: &MsgServerCtrl{
		Code:      503,
		Text:      "server shutdown",
		Timestamp: ts}}
}
