package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the account model for the admin application. PasswordHash is
// never serialized outward.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`

	ID           uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name         string     `bun:"name,notnull" json:"name,omitempty"`
	Email        string     `bun:"email,notnull,unique" json:"email,omitempty"`
	Phone        string     `bun:"phone_number" json:"phone_number,omitempty"`
	PasswordHash string     `bun:"password_hash,notnull" json:"-"`
	Archived     bool       `bun:"archived,notnull,default:false" json:"archived"`
	CreatedAt    *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt    *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`

	// LastSession is a read-model field populated on demand by
	// LoadUserWithSession, never by a query hook.
	LastSession *Session `bun:"-" json:"last_session,omitempty"`
}

// IsLoggedIn reports whether the user holds at least one live session.
// Meaningful only after LoadUserWithSession populated LastSession.
func (u *User) IsLoggedIn() bool {
	return u.LastSession != nil && u.LastSession.ExpiresAt.After(time.Now())
}

// Session binds an opaque bearer token to a user, a fingerprint
// snapshot, and an expiry. The token column holds the literal
// credential; validity is decided solely by looking it up here.
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:ses"`

	ID     uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Token  string    `bun:"token_hash,notnull,unique" json:"-"`
	UserID uuid.UUID `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	User   *User     `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`

	IP             string `bun:"ip" json:"ip,omitempty"`
	UserAgent      string `bun:"user_agent" json:"user_agent,omitempty"`
	OS             string `bun:"os" json:"os,omitempty"`
	DeviceModel    string `bun:"device_model" json:"device_model,omitempty"`
	DeviceVendor   string `bun:"device_vendor" json:"device_vendor,omitempty"`
	BrowserName    string `bun:"browser_name" json:"browser_name,omitempty"`
	BrowserVersion string `bun:"browser_version" json:"browser_version,omitempty"`

	LastActivity time.Time  `bun:"last_activity,notnull" json:"last_activity,omitempty"`
	ExpiresAt    time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	CreatedAt    *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt    *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Expired reports whether the session is semantically invalid even if
// the row still exists.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// SetFingerprint copies a fingerprint snapshot onto the session row.
func (s *Session) SetFingerprint(fp Fingerprint) *Session {
	s.IP = fp.IP
	s.UserAgent = fp.UserAgent
	s.OS = fp.OS
	s.DeviceModel = fp.Device.Model
	s.DeviceVendor = fp.Device.Vendor
	s.BrowserName = fp.Browser.Name
	s.BrowserVersion = fp.Browser.Version
	return s
}

// GetFingerprint rebuilds the stored fingerprint snapshot.
func (s *Session) GetFingerprint() Fingerprint {
	fp := Fingerprint{
		IP:        s.IP,
		UserAgent: s.UserAgent,
		OS:        s.OS,
	}
	fp.Device.Model = s.DeviceModel
	fp.Device.Vendor = s.DeviceVendor
	fp.Browser.Name = s.BrowserName
	fp.Browser.Version = s.BrowserVersion
	return fp
}
