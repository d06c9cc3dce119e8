// authkit provides client-side support for the OIDC authorization code flow:
// exchanging an authorization code for verified tokens, renewing tokens with a
// refresh token, and resolving identity claims from either a verified id_token
// or the provider's userinfo endpoint.
//
// See README.md
package authkit
