package errors

import "errors"

var (
	ErrUserNotFound = errors.New("user not found")

	ErrEmailTaken = errors.New("email already registered")

	ErrInvalidCredentials = errors.New("invalid email or password")

	ErrInvalidToken = errors.New("invalid or expired token")
)
