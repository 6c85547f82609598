package sentinel

import "errors"

// Store-level facts. Stores return these (optionally wrapped) and services
// translate them into domain error codes:
//   - ErrNotFound: no row/entry for the key
//   - ErrAlreadyUsed: a create-once key already exists (profile, issuer registration)
//   - ErrInvalidState: a guarded transition found the entity in the wrong state
//   - ErrUnavailable: backing service is unreachable
//   - ErrExpired: a time-bound value (login challenge) has lapsed
var (
	ErrNotFound     = errors.New("not found")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
	ErrExpired      = errors.New("expired")
)
