package oidc

import "context"

// CodeSource supplies the authorization code for an Exchange.  Transport
// specific implementations live outside the core client; see the callback
// package for one that reads an inbound http request's parameters.
type CodeSource interface {
	// AuthorizationCode returns the authorization code, or an empty string
	// when no code is available.  An empty code is not an error: Exchange
	// treats it as "nothing to do".
	AuthorizationCode(ctx context.Context) (string, error)
}

// StaticCodeSource is a CodeSource for a code that's already in hand.
type StaticCodeSource struct {
	Code string
}

// AuthorizationCode implements CodeSource.AuthorizationCode
func (s *StaticCodeSource) AuthorizationCode(ctx context.Context) (string, error) {
	return s.Code, nil
}
