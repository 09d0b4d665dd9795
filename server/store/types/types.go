// Package types defines identifiers and data records shared between the
// relay server and its storage adapters.
package types

import (
	"strconv"
	"time"
)

// Uid is a database-assigned unique ID of a user.
type Uid uint64

// ZeroUid is a constant representing no user.
const ZeroUid Uid = 0

// IsZero checks if Uid is uninitialized.
func (uid Uid) IsZero() bool {
	return uid == ZeroUid
}

// String returns the decimal representation of the Uid, matching the
// numeric IDs the campus backend uses on the wire.
func (uid Uid) String() string {
	return strconv.FormatUint(uint64(uid), 10)
}

// ParseUid converts a decimal string to a Uid. Returns ZeroUid on error.
func ParseUid(s string) Uid {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return ZeroUid
	}
	return Uid(id)
}

// User is a user record as loaded from storage.
type User struct {
	ID    Uid
	Name  string
	Email string
	// Account role, either "admin" or "member".
	Role string
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == "admin"
}

// Space is a chat space (topic "room" scoped by faculty/department/level).
type Space struct {
	ID   uint64
	Name string
}

// Notification is a persistent per-user notification created by the
// message fan-out.
type Notification struct {
	// Random-looking unique ID assigned by the relay.
	ID string
	// Recipient of the notification.
	UserID Uid
	// ID of the message which triggered the notification.
	MessageID uint64
	SpaceID   uint64
	SenderID  Uid
	// Denormalized for the client: sender display name and preview text.
	SenderName string
	Content    string
	// Human-readable summary line.
	Message   string
	FilePath  string
	FileType  string
	CreatedAt time.Time
}

// TimeNow returns current wall time in UTC rounded to milliseconds.
func TimeNow() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
