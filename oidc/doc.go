// Package oidc provides the client side of the OIDC authorization code flow
// against a single provider: exchanging an authorization code for a set of
// tokens, verifying and decoding id_tokens, resolving identity claims from
// either a verified id_token or the provider's userinfo endpoint, and renewing
// tokens with a refresh token.
//
// A Client holds one logical session at a time.  Exchange and RenewTokens
// replace the current Session wholesale on success and leave it untouched on
// any error, so callers never observe a half-updated session.
package oidc
