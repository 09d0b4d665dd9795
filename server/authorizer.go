package main

/******************************************************************************
 *
 *  Description :
 *
 *    Channel name parsing and per-subscription authorization against the
 *    membership oracle.
 *
 *****************************************************************************/

import (
	"strconv"
	"strings"

	"github.com/chatter/relay/server/store"
	"github.com/chatter/relay/server/store/types"
)

// Channel kinds. The channel name encodes the kind and the scope:
// "space:<spaceId>" for group chat, "user:<userId>" for the private
// per-user notification channel, "presence:<spaceId>" for typing state.
type channelKind int

const (
	kindUnknown channelKind = iota
	kindSpace
	kindUser
	kindPresence
)

// Denial reasons surfaced to the client in {ctrl} text.
const (
	denyInvalidChannel = "INVALID_CHANNEL"
	denyUnauthorized   = "UNAUTHORIZED"
)

// parseChannelName splits a channel name into kind and numeric scope ID.
// Returns kindUnknown for anything that does not match the three patterns.
func parseChannelName(name string) (channelKind, uint64) {
	prefix, idstr, found := strings.Cut(name, ":")
	if !found || idstr == "" {
		return kindUnknown, 0
	}

	id, err := strconv.ParseUint(idstr, 10, 64)
	if err != nil || id == 0 {
		return kindUnknown, 0
	}

	switch prefix {
	case "space":
		return kindSpace, id
	case "user":
		return kindUser, id
	case "presence":
		return kindPresence, id
	}
	return kindUnknown, 0
}

// Grant is the authorization decision for a (session, channel) pair. It is
// cached in the session's subscription for the lifetime of the
// subscription and re-evaluated on every new {sub}.
type Grant struct {
	// Authorized to read the channel.
	Ok bool
	// Denial reason, one of the deny* constants. Empty when Ok.
	Reason string
}

// authorizeChannel decides whether the authenticated user may read the
// named channel. A non-nil error means the oracle was unreachable; the
// caller must treat it as a denial (fail closed) and surface a retryable
// error.
//
// Rules:
//   - space:<id>, presence:<id>: member of space <id>; admins always pass.
//   - user:<id>: private, self only.
//   - anything else: invalid channel.
func authorizeChannel(user *types.User, kind channelKind, id uint64) (Grant, error) {
	switch kind {
	case kindSpace, kindPresence:
		if user.IsAdmin() {
			return Grant{Ok: true}, nil
		}
		ok, err := store.Members.IsMember(user.ID, id)
		if err != nil {
			return Grant{Reason: denyUnauthorized}, err
		}
		if !ok {
			return Grant{Reason: denyUnauthorized}, nil
		}
		return Grant{Ok: true}, nil

	case kindUser:
		if types.Uid(id) != user.ID {
			return Grant{Reason: denyUnauthorized}, nil
		}
		return Grant{Ok: true}, nil
	}

	return Grant{Reason: denyInvalidChannel}, nil
}
