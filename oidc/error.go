package oidc

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidParameter          = errors.New("invalid parameter")
	ErrNilParameter              = errors.New("nil parameter")
	ErrInvalidCACert             = errors.New("invalid CA certificate")
	ErrIdGeneratorFailed         = errors.New("id generation failed")
	ErrMissingIdToken            = errors.New("id_token is missing")
	ErrMissingAuthorizationCode  = errors.New("authorization code is missing")
	ErrIdTokenVerificationFailed = errors.New("id_token verification failed")
	ErrInvalidAudience           = errors.New("invalid audience")
	ErrInvalidNonce              = errors.New("invalid nonce")
	ErrNotFound                  = errors.New("not found")
)

// ApiError represents an error response from the authorization server (a
// non-2xx status from the token or userinfo endpoints), or a success response
// whose body is missing required fields.
type ApiError struct {
	// Status is the upstream HTTP status code.
	Status int

	// Body is the raw upstream response body.
	Body string

	msg string
}

// Error implements the error interface.
func (e *ApiError) Error() string {
	switch {
	case e.msg != "" && e.Status != 0:
		return fmt.Sprintf("%s: status %d: %s", e.msg, e.Status, e.Body)
	case e.msg != "":
		return e.msg
	default:
		return fmt.Sprintf("status %d: %s", e.Status, e.Body)
	}
}

// CoreError represents a precondition violation by the caller, like renewing
// tokens before a successful exchange has populated the session.
type CoreError struct {
	msg string
}

// Error implements the error interface.
func (e *CoreError) Error() string {
	return e.msg
}

// TokenValidationError represents an id_token that failed verification:
// an invalid signature, issuer, audience, algorithm or nonce.
type TokenValidationError struct {
	msg string
	err error
}

// Error implements the error interface.
func (e *TokenValidationError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s", e.msg, e.err.Error())
	}
	return e.msg
}

// Unwrap returns the underlying verification error.
func (e *TokenValidationError) Unwrap() error {
	return e.err
}
