package relay

import "github.com/fleetbeam/fleetbeam/internal/storage/db"

// Role is the kind of a realtime session. It is fixed at registration; a
// viewer is never promoted to a driver on the same connection.
type Role uint8

const (
	// RoleViewer is an unauthenticated session that only receives broadcasts.
	RoleViewer Role = iota
	// RoleDriver is a session authenticated via an access token resolving to
	// a known user; only drivers may originate location updates.
	RoleDriver
)

// String returns the role label used in logs and metrics.
func (r Role) String() string {
	if r == RoleDriver {
		return "driver"
	}
	return "viewer"
}

// Identity is the public profile of an authenticated driver, in the same JSON
// shape as the HTTP user resource.
type Identity struct {
	ID              uint64  `json:"id"`
	Username        string  `json:"username"`
	CarNumber       *string `json:"car_number"`
	PasswordChanged bool    `json:"is_password_changed"`
	Admin           bool    `json:"is_admin"`
}

// IdentityOf builds the public profile for a stored user.
func IdentityOf(user db.User) Identity {
	ident := Identity{
		ID:              user.ID,
		Username:        user.Name,
		PasswordChanged: user.PasswordChanged,
		Admin:           user.Admin,
	}
	if user.CarNumber.Valid {
		ident.CarNumber = &user.CarNumber.String
	}
	return ident
}

// Sender delivers an encoded frame to one connection. Send reports false when
// the frame was dropped (closed connection or full buffer); a broadcast never
// blocks on a slow receiver.
type Sender interface {
	Send(msg []byte) bool
}

// Session is the server-side state for one open realtime connection.
type Session struct {
	// ID is the connection identifier assigned by the transport; unique per
	// live connection and never reused.
	ID string
	// Role is fixed for the session's lifetime.
	Role Role
	// Driver holds the authenticated identity; the zero value for viewers.
	Driver Identity

	sender Sender
}
