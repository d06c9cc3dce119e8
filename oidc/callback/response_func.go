package callback

import (
	"net/http"

	"github.com/authkit-go/authkit/oidc"
)

// SuccessResponseFunc is used by callbacks to create an http response when
// the callback is successful.
//
// The state parameter contains the state that was returned as part of a
// successful oidc authentication response.  The oidc.Session is the result of
// a successful token exchange with the provider.  The function should use the
// http.ResponseWriter to send back whatever content (headers, html, JSON,
// etc) it wishes to the client that originated the oidc flow.
type SuccessResponseFunc func(state string, s *oidc.Session, w http.ResponseWriter, req *http.Request)

// ErrorResponseFunc is used by callbacks to create an http response when the
// callback fails.
//
// The function receives the state returned as part of the oidc authentication
// response.  It also gets parameters for the oidc authentication error
// response and/or the callback error raised while processing the request.
// The function should use the http.ResponseWriter to send back whatever
// content it wishes to the client that originated the oidc flow.
type ErrorResponseFunc func(state string, respErr *AuthenErrorResponse, e error, w http.ResponseWriter, req *http.Request)

// AuthenErrorResponse represents Oauth2 error responses.  See:
// https://openid.net/specs/openid-connect-core-1_0.html#AuthError
type AuthenErrorResponse struct {
	Error       string
	Description string
	Uri         string
}
