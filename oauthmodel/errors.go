package oauthmodel

import "errors"

var (
	ErrInvalidCodeChallengeMethod = errors.New("invalid code challenge method")
	ErrInvalidResponseType        = errors.New("unsupported response type")
	ErrMissingState               = errors.New("missing state parameter")
)
