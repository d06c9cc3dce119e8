package oidc

import (
	"time"
)

const expirySkew = 10 * time.Second

// Session is the result of a successful token exchange or renewal.  It is an
// immutable record: operations that change the authenticated state produce a
// new Session rather than mutating an existing one.
type Session struct {
	accessToken  AccessToken
	idToken      IdToken
	refreshToken RefreshToken
	expiry       time.Time
	claims       map[string]interface{}
}

// NewSession composes a session from its parts.  It's intended for
// SessionStorage implementations that rehydrate a session from an external
// store; sessions produced by the flow itself come from Client.Exchange and
// Client.RenewTokens.
func NewSession(accessToken AccessToken, idToken IdToken, refreshToken RefreshToken, expiry time.Time, claims map[string]interface{}) *Session {
	s := &Session{
		accessToken:  accessToken,
		idToken:      idToken,
		refreshToken: refreshToken,
		expiry:       expiry,
	}
	if claims != nil {
		s.claims = make(map[string]interface{}, len(claims))
		for k, v := range claims {
			s.claims[k] = v
		}
	}
	return s
}

// AccessToken returns the session's access_token, which may be empty if the
// provider didn't return one.
func (s *Session) AccessToken() AccessToken {
	if s == nil {
		return ""
	}
	return s.accessToken
}

// IdToken returns the session's raw id_token, which may be empty if the
// provider didn't return one.
func (s *Session) IdToken() IdToken {
	if s == nil {
		return ""
	}
	return s.idToken
}

// RefreshToken returns the session's refresh_token, which may be empty if the
// provider didn't return one.
func (s *Session) RefreshToken() RefreshToken {
	if s == nil {
		return ""
	}
	return s.refreshToken
}

// Claims returns a copy of the session's identity claims.  The claims were
// sourced from exactly one of: the verified id_token or the provider's
// userinfo endpoint.
func (s *Session) Claims() map[string]interface{} {
	if s == nil || s.claims == nil {
		return nil
	}
	cp := make(map[string]interface{}, len(s.claims))
	for k, v := range s.claims {
		cp[k] = v
	}
	return cp
}

// Expiry returns the access token's expiration, which is zero when the
// provider didn't report one.
func (s *Session) Expiry() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.expiry
}

// Expired reports whether the session's access token is expired, within a
// small skew.  A session without a reported expiry never expires.
func (s *Session) Expired() bool {
	if s == nil {
		return true
	}
	if s.expiry.IsZero() {
		return false
	}
	return s.expiry.Round(0).Before(time.Now().Add(expirySkew))
}

// Valid reports whether the session has an unexpired access token.
func (s *Session) Valid() bool {
	if s == nil {
		return false
	}
	if s.accessToken == "" {
		return false
	}
	return !s.Expired()
}

// redactAccessToken returns a copy of the session without its access token.
// It's used when writing to a SessionStorage configured not to persist access
// tokens across calls.
func (s *Session) redactAccessToken() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.accessToken = ""
	cp.claims = s.Claims()
	return &cp
}
