package otp

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound         = errors.New("no verification code issued for this phone")
	ErrExpired          = errors.New("verification code expired")
	ErrAttemptsExceeded = errors.New("too many verification attempts")
	ErrInvalidCode      = errors.New("invalid verification code")
	ErrConflict         = errors.New("concurrent update of verification record")
	ErrTimeout          = errors.New("verification store timed out")
)

// CodeLength is the number of digits in an issued code.
const CodeLength = 6

// Record is the single verification state kept per phone number. CodeHash is
// valid until ExpiresAt. StaleHash is a cheaper hash of the same code that moves
// to Superseded, newest first, once a later issue replaces it.
type Record struct {
	Phone      string      `json:"phone"`
	CodeHash   []byte      `json:"code_hash"`
	StaleHash  []byte      `json:"stale_hash"`
	IssuedAt   time.Time   `json:"issued_at"`
	ExpiresAt  time.Time   `json:"expires_at"`
	Attempts   int         `json:"attempts"`
	Superseded []StaleCode `json:"superseded,omitempty"`
}

// StaleCode is a replaced code, recognised until its expiry plus the retention window.
type StaleCode struct {
	Hash      []byte    `json:"hash"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Op selects what a Store does with the outcome of an UpdateFunc.
type Op int

const (
	// Keep leaves the stored record untouched.
	Keep Op = iota
	// Put stores Change.Record.
	Put
	// Delete removes the record.
	Delete
)

// Change is the write an UpdateFunc asks the store to commit.
type Change struct {
	Op     Op
	Record Record
}

// UpdateFunc computes the next state from the current record, nil when none exists.
// The returned error is handed back to the Update caller after the change is committed.
type UpdateFunc func(current *Record) (Change, error)

// Store persists verification records. Update must run fn and commit its change
// atomically with respect to other updates of the same phone.
type Store interface {
	Update(ctx context.Context, phone string, fn UpdateFunc) error
}
