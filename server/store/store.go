/******************************************************************************
 *
 *  Description :
 *    Access to the external relational store: membership oracle, token
 *    authentication and notification persistence. The relay does not own
 *    this data, it only queries it through a narrow adapter interface.
 *
 *****************************************************************************/
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"

	"github.com/chatter/relay/server/store/types"
)

// Adapter is the interface implemented by database adapters.
type Adapter interface {
	// Open and configure the adapter.
	Open(config json.RawMessage) error
	// Close the adapter.
	Close() error
	// IsOpen checks if the adapter is ready for use.
	IsOpen() bool
	// GetName returns the name of the adapter.
	GetName() string
	// Stats returns the DB connection stats object.
	Stats() interface{}

	// UserGet loads a user record by ID.
	UserGet(user types.Uid) (*types.User, error)
	// UserGetByToken resolves a hashed bearer token to a user record.
	UserGetByToken(tokenHash string) (*types.User, error)

	// SpaceGet loads a space record by ID.
	SpaceGet(space uint64) (*types.Space, error)
	// IsMember checks if the user belongs to the space.
	IsMember(user types.Uid, space uint64) (bool, error)
	// SpaceMembers returns all members of the space.
	SpaceMembers(space uint64) ([]types.User, error)

	// NotificationSave persists a notification record.
	NotificationSave(n *types.Notification) error
}

var adp Adapter

var availableAdapters = make(map[string]Adapter)

var uGen types.UidGenerator

type configType struct {
	// Name of the adapter to use.
	UseAdapter string `json:"use_adapter"`
	// 16-byte key for XTEA. Used to initialize types.UidGenerator.
	UidKey []byte `json:"uid_key"`
	// Configurations of individual adapters.
	Adapters map[string]json.RawMessage `json:"adapters"`
}

// RegisterAdapter makes an adapter available by the provided name.
// Called from the adapter's init().
func RegisterAdapter(a Adapter) {
	if a == nil {
		panic("store: register adapter is nil")
	}

	name := a.GetName()
	if _, dup := availableAdapters[name]; dup {
		panic("store: adapter '" + name + "' is already registered")
	}
	availableAdapters[name] = a
}

// Open initializes the persistence system. Adapter name and configuration
// are loaded from the config string.
//
//	workerId - unique ID of this relay instance, used for ID generation.
//	jsonconf - configuration string.
func Open(workerId int, jsonconf json.RawMessage) error {
	var config configType
	if err := json.Unmarshal(jsonconf, &config); err != nil {
		return errors.New("store: failed to parse config: " + err.Error())
	}

	if len(config.UseAdapter) > 0 {
		ad, ok := availableAdapters[config.UseAdapter]
		if !ok {
			return errors.New("store: " + config.UseAdapter + " adapter is not available in this binary")
		}
		adp = ad
	} else if len(availableAdapters) == 1 {
		for _, v := range availableAdapters {
			adp = v
		}
	} else {
		return errors.New("store: db adapter is not specified")
	}

	if adp.IsOpen() {
		return errors.New("store: connection is already opened")
	}

	if workerId < 0 || workerId > 1023 {
		return errors.New("store: invalid worker ID")
	}
	if err := uGen.Init(uint(workerId), config.UidKey); err != nil {
		return errors.New("store: failed to init snowflake: " + err.Error())
	}

	var adapterConfig json.RawMessage
	if config.Adapters != nil {
		adapterConfig = config.Adapters[adp.GetName()]
	}

	return adp.Open(adapterConfig)
}

// Close terminates the connection to the persistent storage.
func Close() error {
	if adp == nil || !adp.IsOpen() {
		return nil
	}
	return adp.Close()
}

// GetAdapterName returns the name of the active adapter.
func GetAdapterName() string {
	if adp == nil {
		return ""
	}
	return adp.GetName()
}

// DbStats returns a callback returning db connection stats object.
func DbStats() func() interface{} {
	if adp == nil || !adp.IsOpen() {
		return nil
	}
	return func() interface{} {
		return adp.Stats()
	}
}

// GetUidString generates a unique ID as a string.
func GetUidString() string {
	return uGen.GetStr()
}

// UsersPersistenceInterface is an interface for user-related storage calls.
type UsersPersistenceInterface interface {
	Get(user types.Uid) (*types.User, error)
	AuthenticateToken(token string) (*types.User, error)
}

// Users exposes user management to the rest of the relay.
var Users UsersPersistenceInterface = usersMapper{}

type usersMapper struct{}

// Get loads a user record by ID.
func (usersMapper) Get(user types.Uid) (*types.User, error) {
	return adp.UserGet(user)
}

// AuthenticateToken resolves a bearer token issued by the campus backend to
// a user record. Tokens are stored hashed, SHA-256 hex.
func (usersMapper) AuthenticateToken(token string) (*types.User, error) {
	hash := sha256.Sum256([]byte(token))
	return adp.UserGetByToken(hex.EncodeToString(hash[:]))
}

// MembersPersistenceInterface is an interface for membership oracle calls.
type MembersPersistenceInterface interface {
	SpaceGet(space uint64) (*types.Space, error)
	IsMember(user types.Uid, space uint64) (bool, error)
	SpaceMembers(space uint64) ([]types.User, error)
}

// Members is the membership oracle: the authorizer and the notification
// fan-out query it, never write through it.
var Members MembersPersistenceInterface = membersMapper{}

type membersMapper struct{}

func (membersMapper) SpaceGet(space uint64) (*types.Space, error) {
	return adp.SpaceGet(space)
}

func (membersMapper) IsMember(user types.Uid, space uint64) (bool, error) {
	return adp.IsMember(user, space)
}

func (membersMapper) SpaceMembers(space uint64) ([]types.User, error) {
	return adp.SpaceMembers(space)
}

// NotificationsPersistenceInterface is an interface for notification storage.
type NotificationsPersistenceInterface interface {
	Save(n *types.Notification) (string, error)
}

// Notifications exposes notification persistence to the fan-out.
var Notifications NotificationsPersistenceInterface = notificationsMapper{}

type notificationsMapper struct{}

// Save assigns the notification a unique ID and a creation timestamp, then
// persists it. Returns the assigned ID.
func (notificationsMapper) Save(n *types.Notification) (string, error) {
	n.ID = GetUidString()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = types.TimeNow()
	}
	if err := adp.NotificationSave(n); err != nil {
		return "", err
	}
	return n.ID, nil
}
