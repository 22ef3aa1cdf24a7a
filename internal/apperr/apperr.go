// Package apperr defines the error taxonomy surfaced by the API: every
// rejection carries a stable machine-readable code and an HTTP status.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Stable reason codes returned in error bodies.
const (
	CodePasswordRequired = "PASSWORD_REQUIRED"
	CodePasswordTooShort = "PASSWORD_TOO_SHORT"
	CodeInvalidCapacity  = "INVALID_CAPACITY"
	CodeMessageTooLong   = "MESSAGE_TOO_LONG"
	CodeNotFound         = "NOT_FOUND"
	CodeInvalidPassword  = "INVALID_PASSWORD"
	CodeInvalidToken     = "INVALID_TOKEN"
	CodeRoomArchived     = "ROOM_ARCHIVED"
	CodeRoomFull         = "ROOM_FULL"
	CodeStorage          = "STORAGE_ERROR"
	CodeIntegrity        = "INTEGRITY_ERROR"
)

// Kind classifies an error for propagation policy decisions.
type Kind int

const (
	KindValidation Kind = iota
	KindAuth
	KindNotFound
	KindConflict
	KindStorage
	KindIntegrity
)

// Error is a categorized application error.
type Error struct {
	Kind   Kind
	Code   string
	Status int
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.cause)
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.cause }

// Validation rejects malformed input before any side effect.
func Validation(code string) *Error {
	return &Error{Kind: KindValidation, Code: code, Status: http.StatusBadRequest}
}

// InvalidPassword rejects a failed password verification.
func InvalidPassword() *Error {
	return &Error{Kind: KindAuth, Code: CodeInvalidPassword, Status: http.StatusUnauthorized}
}

// InvalidToken rejects a missing, expired or forged session token.
func InvalidToken(cause error) *Error {
	return &Error{Kind: KindAuth, Code: CodeInvalidToken, Status: http.StatusForbidden, cause: cause}
}

// NotFound rejects an unknown room id or magic token.
func NotFound() *Error {
	return &Error{Kind: KindNotFound, Code: CodeNotFound, Status: http.StatusNotFound}
}

// RoomArchived rejects any operation against a permanently archived room.
func RoomArchived() *Error {
	return &Error{Kind: KindConflict, Code: CodeRoomArchived, Status: http.StatusGone}
}

// RoomFull rejects a join against a room already at capacity.
func RoomFull() *Error {
	return &Error{Kind: KindConflict, Code: CodeRoomFull, Status: http.StatusTooManyRequests}
}

// Storage wraps a backend failure on the live request path.
func Storage(cause error) *Error {
	return &Error{Kind: KindStorage, Code: CodeStorage, Status: http.StatusInternalServerError, cause: cause}
}

// Integrity wraps an authentication-tag mismatch during decryption. It is
// never silently converted into plaintext.
func Integrity(cause error) *Error {
	return &Error{Kind: KindIntegrity, Code: CodeIntegrity, Status: http.StatusInternalServerError, cause: cause}
}

// From extracts the *Error from err, or wraps err as a storage error so the
// caller always has a code and status to surface.
func From(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Storage(err)
}

// IsCode reports whether err carries the given reason code.
func IsCode(err error, code string) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Code == code
}
