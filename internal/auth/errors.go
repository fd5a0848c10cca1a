package auth

import "errors"

var (
	ErrInvalidInput   = errors.New("auth: invalid input")
	ErrNotFound       = errors.New("auth: not found")
	ErrConflict       = errors.New("auth: resource conflict")
	ErrUnauthorized   = errors.New("auth: unauthorized")
	ErrMalformedToken = errors.New("auth: malformed token")
	ErrExpiredToken   = errors.New("auth: token expired")
	ErrRevokedToken   = errors.New("auth: token revoked")
	ErrIPNotAllowed   = errors.New("auth: ip address not allowed")

	// ErrUnavailable indicates a backing store could not be reached. Callers
	// must treat it as a denial, never as "no markers found".
	ErrUnavailable = errors.New("auth: backing store unavailable")
)
