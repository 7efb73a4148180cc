package identity

import (
	"errors"
	"time"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrExists             = errors.New("phone already registered")
	ErrWeakPIN            = errors.New("PIN must be 4 to 8 digits")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDeviceRequired     = errors.New("device binding required")
	ErrDeviceMismatch     = errors.New("device mismatch")
)

// User represents a registered saver.
type User struct {
	ID        string
	Phone     string
	Tier      string
	PINHash   []byte
	DeviceID  string
	CreatedAt time.Time
}

// Credentials request structure.
type Credentials struct {
	Phone    string
	PIN      string
	DeviceID string
}
