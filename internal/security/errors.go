package security

import "github.com/loft-algerie/messaging/pkg/errs"

var (
	ErrMissingToken   = errs.New(errs.ErrUnauthorized, "missing access token")
	ErrInvalidToken   = errs.New(errs.ErrUnauthorized, "invalid access token")
	ErrTokenExpired   = errs.New(errs.ErrUnauthorized, "access token expired")
	ErrInvalidSubject = errs.New(errs.ErrUnauthorized, "invalid token subject")
	ErrUpstream       = errs.New(errs.ErrUpstream, "auth backend unavailable")
)
