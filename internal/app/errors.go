package app

import "errors"

var (
	// ErrRoomNotFound indicates a referenced room does not exist or is inactive.
	ErrRoomNotFound = errors.New("room not found")
	// ErrUserNotFound indicates a referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")
)
