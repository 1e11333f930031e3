package auth

import "github.com/pkg/errors"

var (
	ErrInvalidRole     = errors.New("auth: invalid role")
	ErrInvalidToken    = errors.New("auth: invalid token")
	ErrMissingSecret   = errors.New("auth: token secret is not configured")
	ErrUnauthenticated = errors.New("auth: unauthenticated")
)
