package port

import "errors"

// Sentinel errors used across ports.
var (
	ErrEmbedding         = errors.New("embedding provider failed")
	ErrSynthesis         = errors.New("answer synthesis failed")
	ErrIndexInconsistent = errors.New("index inconsistent with chunk set")
	ErrUserNotFound      = errors.New("user not found")
	ErrBadCredentials    = errors.New("invalid username or password")
	ErrUserExists        = errors.New("username or email already taken")
	ErrStoryNotFound     = errors.New("story not found")
	ErrTokenExpired      = errors.New("token expired")
	ErrTokenInvalid      = errors.New("token invalid")
)
