package core

// State is a phase of the authentication state machine
type State int

const (
	StateIdle State = iota
	StateDetecting
	StateReady
	StateAutoConnecting
	StateConnecting
	StateSigning
	StateVerifying
	StateAuthenticated
	StateError
)

var stateNames = [...]string{
	StateIdle:           "idle",
	StateDetecting:      "detecting",
	StateReady:          "ready",
	StateAutoConnecting: "autoConnecting",
	StateConnecting:     "connecting",
	StateSigning:        "signing",
	StateVerifying:      "verifying",
	StateAuthenticated:  "authenticated",
	StateError:          "error",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// InFlight reports whether a login attempt is between connect and verify
func (s State) InFlight() bool {
	return s == StateConnecting || s == StateSigning || s == StateVerifying
}

// MarshalText renders the state by name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StorageKind selects a session store backing
type StorageKind string

const (
	StorageLocal   StorageKind = "localStorage"   // Durable, survives restarts
	StorageSession StorageKind = "sessionStorage" // Volatile, lives as long as the process
	StorageCookie  StorageKind = "cookie"
	StorageMemory  StorageKind = "memory"
	StorageRedis   StorageKind = "redis"
)
