package callback

import (
	"context"
	"net/http"

	"github.com/authkit-go/authkit/oidc"
)

// AuthCode creates an oidc authorization code callback handler which
// exchanges the code carried by the provider's redirect for a session.
//
// The SuccessResponseFunc is used to create a response when the callback is
// successful.  The ErrorResponseFunc is used to create a response when the
// callback fails, including when the provider redirected back with an error
// response instead of a code.
func AuthCode(ctx context.Context, c *oidc.Client, sFn SuccessResponseFunc, eFn ErrorResponseFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		reqState := req.FormValue("state")

		if err := req.FormValue("error"); err != "" {
			// get parameters from either the body or query parameters.
			// FormValue prioritizes body values, if found
			reqError := &AuthenErrorResponse{
				Error:       err,
				Description: req.FormValue("error_description"),
				Uri:         req.FormValue("error_uri"),
			}
			eFn(reqState, reqError, nil, w, req)
			return
		}

		session, err := c.Exchange(ctx, &RequestCodeSource{Request: req})
		if err != nil {
			eFn(reqState, nil, err, w, req)
			return
		}
		if session == nil {
			// the provider redirected back without a code and without an
			// error response
			eFn(reqState, nil, oidc.ErrMissingAuthorizationCode, w, req)
			return
		}
		sFn(reqState, session, w, req)
	}
}
