package auth

import "errors"

var (
	ErrCredentialsRequired = errors.New("Username or email and password are required")
	ErrInvalidCredentials  = errors.New("No active account found with the given credentials")
	ErrInvalidToken        = errors.New("Given token not valid for any token type")
)
