package callback

import (
	"context"
	"fmt"
	"net/http"

	"github.com/authkit-go/authkit/oidc"
)

// RequestCodeSource is an oidc.CodeSource that reads the authorization code
// from an inbound request's "code" parameter (body or query).
type RequestCodeSource struct {
	Request *http.Request
}

// ensure that RequestCodeSource implements the oidc.CodeSource interface
var _ oidc.CodeSource = (*RequestCodeSource)(nil)

// AuthorizationCode returns the request's "code" parameter, which may be
// empty when the provider redirected back without one.
func (r *RequestCodeSource) AuthorizationCode(ctx context.Context) (string, error) {
	const op = "RequestCodeSource.AuthorizationCode"
	if r.Request == nil {
		return "", fmt.Errorf("%s: request is nil: %w", op, oidc.ErrNilParameter)
	}
	// get the parameter from either the body or query parameters.
	// FormValue prioritizes body values, if found.
	return r.Request.FormValue("code"), nil
}
