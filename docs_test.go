package authkit_test

import (
	"context"
	"fmt"
	"net/http"

	"github.com/authkit-go/authkit/oidc"
	"github.com/authkit-go/authkit/oidc/callback"
)

func Example_oidc() {
	ctx := context.Background()

	// Create a new Config
	pc, err := oidc.NewConfig(
		"http://your-issuer.com/",
		"your_client_id",
		"your_client_secret",
		[]oidc.Alg{oidc.RS256},
		"http://your_redirect_url/callback",
	)
	if err != nil {
		// handle error
	}

	// Create a client
	c, err := oidc.NewClient(pc)
	if err != nil {
		// handle error
	}
	defer c.Done()

	// Create state and nonce values that will uniquely identify the user's
	// authentication attempt throughout the flow.
	state, err := oidc.NewId(oidc.WithPrefix("st"))
	if err != nil {
		// handle error
	}
	nonce, err := oidc.NewId(oidc.WithPrefix("n"))
	if err != nil {
		// handle error
	}

	// Create an auth URL
	authURL, err := c.AuthURL(ctx, state, oidc.WithNonce(nonce))
	if err != nil {
		// handle error
	}
	fmt.Println("open url to kick-off authentication: ", authURL)

	// Create a http.Handler for OIDC authentication response redirects.  The
	// callback reads the authorization code from the inbound request and
	// exchanges it for a verified Session.
	callbackHandler := callback.AuthCode(ctx, c,
		func(state string, s *oidc.Session, w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusOK)
			// the user claims were sourced from the verified id_token or the
			// provider's userinfo endpoint
			fmt.Fprintln(w, "authenticated:", s.Claims()["sub"])
		},
		func(state string, r *callback.AuthenErrorResponse, e error, w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		},
	)
	http.Handle("/callback", callbackHandler)

	// When the session's access token expires, renew it with the session's
	// refresh token.
	if c.Session().Expired() && c.RefreshToken() != "" {
		if _, err := c.RenewTokens(ctx); err != nil {
			// handle error
		}
	}
}
