package core

import "time"

// EventType names a lifecycle notification
type EventType string

const (
	EventAuthenticated    EventType = "authenticated"
	EventLogout           EventType = "logout"
	EventError            EventType = "error"
	EventStateChanged     EventType = "state:changed"
	EventWalletConnecting EventType = "wallet:connecting"
	EventWalletConnected  EventType = "wallet:connected"
	EventQRGenerated      EventType = "qr:generated"
	EventQRScanned        EventType = "qr:scanned"
	EventQRExpired        EventType = "qr:expired"
	EventTokenRefreshed   EventType = "token:refreshed"
)

// Event is a lifecycle notification emitted by the engine
type Event struct {
	Type    EventType
	At      time.Time
	User    *User  // authenticated
	Err     error  // error
	State   State  // state:changed
	Address string // wallet:connected
	Wallet  string // wallet:connecting, wallet:connected
	Data    any    // Event specific payload
}
