// Package mysql is a database adapter for the campus backend's MySQL schema.
// The relay only reads membership and identity data and appends
// notification rows; everything else belongs to the CRUD application.
package mysql

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	ms "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/chatter/relay/server/store"
	t "github.com/chatter/relay/server/store/types"
)

// adapter holds MySQL connection data.
type adapter struct {
	db     *sqlx.DB
	dsn    string
	dbName string
}

const (
	adapterName = "mysql"

	defaultDSN      = "root@tcp(localhost:3306)/chatter?parseTime=true"
	defaultDatabase = "chatter"
)

type configType struct {
	// DB connection settings: "user:password@tcp(host:port)/db".
	DSN    string `json:"dsn,omitempty"`
	DBName string `json:"database,omitempty"`

	// Connection pool settings.
	MaxOpenConns    int `json:"max_open_conns,omitempty"`
	MaxIdleConns    int `json:"max_idle_conns,omitempty"`
	ConnMaxLifetime int `json:"conn_max_lifetime,omitempty"`
}

// Open initializes the database connection.
func (a *adapter) Open(jsonconfig json.RawMessage) error {
	if a.db != nil {
		return errors.New("mysql adapter is already connected")
	}

	var err error
	var config configType

	if len(jsonconfig) > 0 {
		if err = json.Unmarshal(jsonconfig, &config); err != nil {
			return errors.New("mysql adapter failed to parse config: " + err.Error())
		}
	}

	a.dsn = config.DSN
	if a.dsn == "" {
		a.dsn = defaultDSN
	}
	a.dbName = config.DBName
	if a.dbName == "" {
		a.dbName = defaultDatabase
	}

	// Make sure the DSN requests time.Time values for DATETIME columns.
	if cfg, err := ms.ParseDSN(a.dsn); err != nil {
		return errors.New("mysql adapter failed to parse DSN: " + err.Error())
	} else if !cfg.ParseTime {
		cfg.ParseTime = true
		a.dsn = cfg.FormatDSN()
	}

	// This just initializes the driver but does not open the network connection.
	a.db, err = sqlx.Open("mysql", a.dsn)
	if err != nil {
		return err
	}

	// Actually opening the network connection.
	err = a.db.Ping()
	if err == nil {
		if config.MaxOpenConns > 0 {
			a.db.SetMaxOpenConns(config.MaxOpenConns)
		}
		if config.MaxIdleConns > 0 {
			a.db.SetMaxIdleConns(config.MaxIdleConns)
		}
		if config.ConnMaxLifetime > 0 {
			a.db.SetConnMaxLifetime(time.Duration(config.ConnMaxLifetime) * time.Second)
		}
	}
	return err
}

// Close closes the underlying database connection.
func (a *adapter) Close() error {
	var err error
	if a.db != nil {
		err = a.db.Close()
		a.db = nil
	}
	return err
}

// IsOpen returns true if the adapter is ready for use.
func (a *adapter) IsOpen() bool {
	return a.db != nil
}

// GetName returns the adapter name.
func (a *adapter) GetName() string {
	return adapterName
}

// Stats returns the sql driver connection pool stats.
func (a *adapter) Stats() interface{} {
	if a.db == nil {
		return nil
	}
	return a.db.Stats()
}

// UserGet loads a user record by ID.
func (a *adapter) UserGet(user t.Uid) (*t.User, error) {
	var row struct {
		ID    uint64 `db:"id"`
		Name  string `db:"name"`
		Email string `db:"email"`
		Role  string `db:"role"`
	}
	err := a.db.Get(&row, "SELECT id,name,email,role FROM users WHERE id=?", uint64(user))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t.User{ID: t.Uid(row.ID), Name: row.Name, Email: row.Email, Role: row.Role}, nil
}

// UserGetByToken resolves a hashed personal access token to a user record.
func (a *adapter) UserGetByToken(tokenHash string) (*t.User, error) {
	var row struct {
		ID    uint64 `db:"id"`
		Name  string `db:"name"`
		Email string `db:"email"`
		Role  string `db:"role"`
	}
	err := a.db.Get(&row,
		"SELECT u.id,u.name,u.email,u.role FROM users AS u "+
			"JOIN personal_access_tokens AS pat ON pat.tokenable_id=u.id "+
			"WHERE pat.token=? AND (pat.expires_at IS NULL OR pat.expires_at>?)",
		tokenHash, t.TimeNow())
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t.User{ID: t.Uid(row.ID), Name: row.Name, Email: row.Email, Role: row.Role}, nil
}

// SpaceGet loads a space record by ID.
func (a *adapter) SpaceGet(space uint64) (*t.Space, error) {
	var row struct {
		ID   uint64 `db:"id"`
		Name string `db:"name"`
	}
	err := a.db.Get(&row, "SELECT id,name FROM spaces WHERE id=?", space)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t.Space{ID: row.ID, Name: row.Name}, nil
}

// IsMember checks if the user belongs to the space.
func (a *adapter) IsMember(user t.Uid, space uint64) (bool, error) {
	var count int
	err := a.db.Get(&count,
		"SELECT COUNT(*) FROM space_user WHERE space_id=? AND user_id=?",
		space, uint64(user))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// SpaceMembers returns all members of the space.
func (a *adapter) SpaceMembers(space uint64) ([]t.User, error) {
	rows, err := a.db.Queryx(
		"SELECT u.id,u.name,u.email,u.role FROM users AS u "+
			"JOIN space_user AS su ON su.user_id=u.id WHERE su.space_id=?",
		space)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []t.User
	for rows.Next() {
		var row struct {
			ID    uint64 `db:"id"`
			Name  string `db:"name"`
			Email string `db:"email"`
			Role  string `db:"role"`
		}
		if err = rows.StructScan(&row); err != nil {
			return nil, err
		}
		members = append(members,
			t.User{ID: t.Uid(row.ID), Name: row.Name, Email: row.Email, Role: row.Role})
	}
	return members, rows.Err()
}

// NotificationSave appends a notification row. The denormalized details go
// into the JSON `data` column, same shape the Laravel app writes.
func (a *adapter) NotificationSave(n *t.Notification) error {
	data, err := json.Marshal(map[string]interface{}{
		"notification_id": n.ID,
		"message_id":      n.MessageID,
		"space_id":        n.SpaceID,
		"sender_id":       uint64(n.SenderID),
		"sender_name":     n.SenderName,
		"content":         n.Content,
		"message":         n.Message,
		"file_path":       n.FilePath,
		"file_type":       n.FileType,
	})
	if err != nil {
		return err
	}

	_, err = a.db.Exec(
		"INSERT INTO notifications(user_id,type,data,created_at,updated_at) VALUES(?,?,?,?,?)",
		uint64(n.UserID), "message", string(data), n.CreatedAt, n.CreatedAt)
	if err != nil && isDupe(err) {
		return errors.New("notification already exists")
	}
	return err
}

func isDupe(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Error 1062")
}

func init() {
	store.RegisterAdapter(&adapter{})
}
