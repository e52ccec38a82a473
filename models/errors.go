package models

import "errors"

var (
	ErrUnauthorized        = errors.New("no spotify access, login first to generate a token")
	ErrAuthRefreshFailed   = errors.New("spotify token refresh rejected, re-authorization required")
	ErrUpstreamUnavailable = errors.New("spotify is unreachable")
	ErrConflict            = errors.New("polling state conflict")
	ErrNoNewTracks         = errors.New("no new tracks listened recently")
	ErrNotFound            = errors.New("record not found")
	ErrMalformedResponse   = errors.New("malformed spotify response")

	ErrInvalidRequest    = errors.New("invalid request")
	ErrStateMismatch     = errors.New("state mismatch")
	ErrInvalidAction     = errors.New("invalid action (only 'signup' and 'login' are allowed)")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotExists     = errors.New("user not exists")
)
