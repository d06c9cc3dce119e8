// Package callback provides callbacks (in the form of http.HandlerFunc) for
// the redirect leg of the OIDC authorization code flow, along with a
// CodeSource that reads the authorization code from an inbound http request.
package callback
