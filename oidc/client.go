package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/oauth2"

	"github.com/authkit-go/authkit/oidc/internal/strutils"
)

// Client provides integration with a provider using the typical 3-legged OIDC
// authorization code flow.  It holds a single logical session: a successful
// Exchange populates it and a successful RenewTokens replaces it.  Failed
// operations never mutate the session.
type Client struct {
	config   *Config
	provider *oidc.Provider
	client   *http.Client
	logger   hclog.Logger
	storage  SessionStorage

	mu      sync.Mutex
	session *Session

	// backgroundCtx is the context used by the client for background
	// activities like refreshing the provider's JWKs key set.
	backgroundCtx context.Context

	// backgroundCtxCancel is used to cancel any background activities running
	// in spawned go routines.
	backgroundCtxCancel context.CancelFunc
}

// NewClient creates and initializes a Client for the OIDC authorization code
// flow.  Initializing the client includes making an http request to the
// provider's issuer for discovery.
// Supported options: WithLogger, WithSessionStorage
//
// See Client.Done() which must be called to release client resources.
func NewClient(c *Config, opt ...Option) (*Client, error) {
	const op = "oidc.NewClient"
	if c == nil {
		return nil, fmt.Errorf("%s: client config is nil: %w", op, ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: client config is invalid: %w", op, err)
	}
	opts := getClientOpts(opt...)

	ctx, cancel := context.WithCancel(context.Background())
	// initializing the Client with its background ctx/cancel allows us to use
	// client.Done() to release any resources when returning errors from this
	// function.
	client := &Client{
		config:              c,
		logger:              opts.withLogger,
		storage:             opts.withSessionStorage,
		backgroundCtx:       ctx,
		backgroundCtxCancel: cancel,
	}
	if client.logger == nil {
		client.logger = hclog.NewNullLogger()
	}

	hc, err := c.HttpClient()
	if err != nil {
		client.Done() // release the backgroundCtxCancel resources
		return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
	}
	client.client = hc

	provider, err := oidc.NewProvider(HttpClientContext(client.backgroundCtx, hc), c.Issuer) // makes http req to issuer for discovery
	if err != nil {
		client.Done() // release the backgroundCtxCancel resources
		return nil, fmt.Errorf("%s: unable to create provider: %w", op, err)
	}
	client.provider = provider

	if client.storage != nil {
		s, err := client.storage.Load(ctx)
		switch {
		case err == nil:
			client.session = s
		case errors.Is(err, ErrNotFound):
			// nothing stored yet
		default:
			client.Done()
			return nil, fmt.Errorf("%s: unable to load stored session: %w", op, err)
		}
	}

	return client, nil
}

// Done with the client's background resources and must be called for every
// Client created
func (c *Client) Done() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.backgroundCtxCancel != nil {
		c.backgroundCtxCancel()
		c.backgroundCtxCancel = nil
	}
}

// AuthURL will generate a URL the caller can use to kick off an OIDC
// authorization code flow with the provider.  The "openid" scope is always
// requested, and the configured audience (if any) is passed along as the
// audience parameter.
// Supported options: WithNonce
//
// See NewId() to create state and nonce values that will uniquely identify
// the user's authentication attempt throughout the flow.
func (c *Client) AuthURL(ctx context.Context, state string, opt ...Option) (string, error) {
	const op = "Client.AuthURL"
	if state == "" {
		return "", fmt.Errorf("%s: state is empty: %w", op, ErrInvalidParameter)
	}
	opts := getFlowOpts(opt...)
	if opts.withNonce == state {
		return "", fmt.Errorf("%s: state and nonce cannot be equal: %w", op, ErrInvalidParameter)
	}

	// Configure an OpenID Connect aware OAuth2 client
	oauth2Config := oauth2.Config{
		ClientID:     c.config.ClientId,
		ClientSecret: string(c.config.ClientSecret),
		RedirectURL:  c.config.RedirectUrl,
		Endpoint:     c.provider.Endpoint(),
		Scopes:       c.requestScopes(),
	}
	var authCodeOpts []oauth2.AuthCodeOption
	if opts.withNonce != "" {
		authCodeOpts = append(authCodeOpts, oidc.Nonce(opts.withNonce))
	}
	if len(c.config.Audiences) > 0 {
		authCodeOpts = append(authCodeOpts, oauth2.SetAuthURLParam("audience", c.config.Audiences[0]))
	}
	return oauth2Config.AuthCodeURL(state, authCodeOpts...), nil
}

// Exchange converts an authorization code into a verified Session.  The code
// is supplied by the CodeSource; when no code is available the exchange is a
// no-op which returns (nil, nil) without any network calls.
//
// On success the token endpoint's response may include any subset of an
// access_token, id_token and refresh_token.  An id_token, when present, is
// always verified before its claims are trusted.  Identity claims come from
// exactly one source: the verified id_token when the config's SkipUserInfo is
// set (and "openid" is among the requested scopes), otherwise the userinfo
// endpoint when an access token was returned, falling back to the id_token
// when no access token was returned at all.
//
// The current session is only replaced after every network call has
// succeeded; on any error the prior session is left untouched.
// Supported options: WithNonce
func (c *Client) Exchange(ctx context.Context, src CodeSource, opt ...Option) (*Session, error) {
	const op = "Client.Exchange"
	if src == nil {
		return nil, fmt.Errorf("%s: code source is nil: %w", op, ErrNilParameter)
	}
	code, err := src.AuthorizationCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to read authorization code: %w", op, err)
	}
	if code == "" {
		// nothing to do, which isn't an error
		c.logger.Debug("no authorization code available, skipping exchange")
		return nil, nil
	}

	c.logger.Debug("exchanging authorization code")
	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {c.config.RedirectUrl},
	}
	tr, err := c.tokenRequest(ctx, form)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to exchange auth code with provider: %w", op, err)
	}

	if tr.IdToken != "" {
		if err := c.VerifyIdToken(ctx, IdToken(tr.IdToken), opt...); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	var claims map[string]interface{}
	switch {
	case tr.IdToken != "" && c.config.SkipUserInfo && strutils.StrListContains(c.requestScopes(), "openid"):
		if err := IdToken(tr.IdToken).Claims(&claims); err != nil {
			return nil, fmt.Errorf("%s: unable to decode id_token claims: %w", op, err)
		}
	case tr.AccessToken != "":
		if err := c.UserInfo(ctx, AccessToken(tr.AccessToken), &claims); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	case tr.IdToken != "":
		// no access token was returned, so the verified id_token is the only
		// identity source available
		if err := IdToken(tr.IdToken).Claims(&claims); err != nil {
			return nil, fmt.Errorf("%s: unable to decode id_token claims: %w", op, err)
		}
	}

	s := &Session{
		accessToken:  AccessToken(tr.AccessToken),
		idToken:      IdToken(tr.IdToken),
		refreshToken: RefreshToken(tr.RefreshToken),
		expiry:       tr.expiry(),
		claims:       claims,
	}
	c.setSession(ctx, s)
	return s, nil
}

// RenewTokens uses the current session's refresh token to obtain a new access
// token and id_token from the provider.  It requires a session with an access
// token (a prior successful Exchange) and a refresh token.
//
// The refresh response must contain both a new access_token and a new
// id_token; the refresh token itself is carried forward unchanged since the
// provider may omit rotating it.  On any error the prior session is left
// untouched.
func (c *Client) RenewTokens(ctx context.Context) (*Session, error) {
	const op = "Client.RenewTokens"
	current := c.Session()
	if current.AccessToken() == "" {
		return nil, fmt.Errorf("%s: %w", op, &CoreError{msg: "no valid access token"})
	}
	if current.RefreshToken() == "" {
		return nil, fmt.Errorf("%s: %w", op, &CoreError{msg: "no refresh token available"})
	}

	c.logger.Debug("renewing tokens")
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {string(current.RefreshToken())},
	}
	tr, err := c.tokenRequest(ctx, form)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to renew tokens with provider: %w", op, err)
	}
	if tr.AccessToken == "" || tr.IdToken == "" {
		return nil, fmt.Errorf("%s: %w", op, &ApiError{Status: tr.status, Body: tr.body, msg: "token did not refresh correctly"})
	}
	if err := c.VerifyIdToken(ctx, IdToken(tr.IdToken)); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var claims map[string]interface{}
	if err := IdToken(tr.IdToken).Claims(&claims); err != nil {
		return nil, fmt.Errorf("%s: unable to decode id_token claims: %w", op, err)
	}

	s := &Session{
		accessToken:  AccessToken(tr.AccessToken),
		idToken:      IdToken(tr.IdToken),
		refreshToken: current.RefreshToken(),
		expiry:       tr.expiry(),
		claims:       claims,
	}
	c.setSession(ctx, s)
	return s, nil
}

// VerifyIdToken will verify the inbound IdToken.  It verifies it's been
// signed by the provider, and performs any additional checks depending on the
// client's config (audiences, supported algorithms, etc).  When WithNonce is
// given, the id_token's nonce claim must match it.
// Supported options: WithNonce
//
// See: https://openid.net/specs/openid-connect-core-1_0.html#IDTokenValidation
func (c *Client) VerifyIdToken(ctx context.Context, t IdToken, opt ...Option) error {
	const op = "Client.VerifyIdToken"
	if t == "" {
		return fmt.Errorf("%s: id_token is empty: %w", op, ErrMissingIdToken)
	}
	opts := getFlowOpts(opt...)

	algs := make([]string, 0, len(c.config.SupportedSigningAlgs))
	for _, a := range c.config.SupportedSigningAlgs {
		algs = append(algs, string(a))
	}
	oidcConfig := &oidc.Config{
		SupportedSigningAlgs: algs,
		ClientID:             c.config.ClientId,
	}
	if len(c.config.Audiences) > 0 {
		// the aud claim is checked against the configured audiences below
		oidcConfig.ClientID = ""
		oidcConfig.SkipClientIDCheck = true
	}
	verifier := c.provider.Verifier(oidcConfig)

	oidcIdToken, err := verifier.Verify(ctx, string(t))
	if err != nil {
		return fmt.Errorf("%s: %w", op, &TokenValidationError{
			msg: "invalid id_token",
			err: fmt.Errorf("%w: %v", ErrIdTokenVerificationFailed, err),
		})
	}

	if opts.withNonce != "" && oidcIdToken.Nonce != opts.withNonce {
		return fmt.Errorf("%s: %w", op, &TokenValidationError{msg: "invalid id_token nonce", err: ErrInvalidNonce})
	}

	if len(c.config.Audiences) > 0 {
		found := false
		for _, v := range c.config.Audiences {
			if strutils.StrListContains(oidcIdToken.Audience, v) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%s: %w", op, &TokenValidationError{msg: "invalid id_token audiences", err: ErrInvalidAudience})
		}
	}
	return nil
}

// UserInfo gets the identity claims from the provider's userinfo endpoint
// using the accessToken as the bearer credential.  The endpoint is resolved
// from the provider's discovery document.
func (c *Client) UserInfo(ctx context.Context, accessToken AccessToken, claims interface{}) error {
	const op = "Client.UserInfo"
	if accessToken == "" {
		return fmt.Errorf("%s: access token is empty: %w", op, ErrInvalidParameter)
	}
	if claims == nil {
		return fmt.Errorf("%s: claims interface is nil: %w", op, ErrNilParameter)
	}
	var doc struct {
		UserInfoEndpoint string `json:"userinfo_endpoint"`
	}
	if err := c.provider.Claims(&doc); err != nil {
		return fmt.Errorf("%s: unable to read provider discovery claims: %w", op, err)
	}
	if doc.UserInfoEndpoint == "" {
		return fmt.Errorf("%s: provider does not advertise a userinfo endpoint: %w", op, ErrNotFound)
	}

	c.logger.Debug("requesting userinfo claims")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, doc.UserInfoEndpoint, nil)
	if err != nil {
		return fmt.Errorf("%s: unable to create userinfo request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+string(accessToken))
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: userinfo request failed: %w", op, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: unable to read userinfo response: %w", op, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%s: %w", op, &ApiError{Status: resp.StatusCode, Body: string(body), msg: "userinfo request failed"})
	}
	if err := json.Unmarshal(body, claims); err != nil {
		return fmt.Errorf("%s: unable to unmarshal userinfo claims: %w", op, err)
	}
	return nil
}

// Session returns the current session.  It's nil until a successful Exchange
// (or a session was loaded from storage).
func (c *Client) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// User returns a copy of the current session's identity claims, or nil when
// no session is established.
func (c *Client) User() map[string]interface{} {
	return c.Session().Claims()
}

// IdToken returns the current session's id_token, or empty when no session is
// established.
func (c *Client) IdToken() IdToken {
	return c.Session().IdToken()
}

// AccessToken returns the current session's access_token, or empty when no
// session is established.
func (c *Client) AccessToken() AccessToken {
	return c.Session().AccessToken()
}

// RefreshToken returns the current session's refresh_token, or empty when no
// session is established.
func (c *Client) RefreshToken() RefreshToken {
	return c.Session().RefreshToken()
}

// Logout clears the current session, and the stored one when a SessionStorage
// is configured.
func (c *Client) Logout(ctx context.Context) error {
	const op = "Client.Logout"
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	if c.storage != nil {
		if err := c.storage.Clear(ctx); err != nil {
			return fmt.Errorf("%s: unable to clear stored session: %w", op, err)
		}
	}
	return nil
}

// requestScopes returns the configured scopes with the required "openid"
// scope ensured and duplicates removed.
func (c *Client) requestScopes() []string {
	scopes := append([]string{oidc.ScopeOpenID}, c.config.Scopes...)
	return strutils.RemoveDuplicatesStable(scopes, false)
}

// setSession replaces the current session and, when a SessionStorage is
// configured, persists it.  Storage failures are logged rather than unwinding
// an otherwise successful operation.
func (c *Client) setSession(ctx context.Context, s *Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
	if c.storage == nil {
		return
	}
	stored := s
	if !c.config.PersistAccessToken {
		stored = s.redactAccessToken()
	}
	if err := c.storage.Save(ctx, stored); err != nil {
		c.logger.Warn("unable to persist session", "error", err)
	}
}

// tokenResponse is the token endpoint's JSON response body.  Any of the token
// fields may be absent.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	IdToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`

	status int
	body   string
}

func (t *tokenResponse) expiry() time.Time {
	if t.ExpiresIn <= 0 {
		return time.Time{}
	}
	return time.Now().Add(time.Duration(t.ExpiresIn) * time.Second)
}

// tokenRequest POSTs the form to the provider's token endpoint with the
// client's credentials and parses the JSON response.  A non-2xx status is
// returned as an *ApiError carrying the upstream status and body.
func (c *Client) tokenRequest(ctx context.Context, form url.Values) (*tokenResponse, error) {
	const op = "Client.tokenRequest"
	form.Set("client_id", c.config.ClientId)
	form.Set("client_secret", string(c.config.ClientSecret))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.provider.Endpoint().TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create token request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: token endpoint request failed: %w", op, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to read token endpoint response: %w", op, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &ApiError{Status: resp.StatusCode, Body: string(body), msg: "token endpoint returned an error"}
	}

	tr := tokenResponse{
		status: resp.StatusCode,
		body:   string(body),
	}
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, &ApiError{Status: resp.StatusCode, Body: string(body), msg: "malformed token endpoint response"}
	}
	return &tr, nil
}

// clientOptions is the set of available options for NewClient
type clientOptions struct {
	withLogger         hclog.Logger
	withSessionStorage SessionStorage
}

// clientDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func clientDefaults() clientOptions {
	return clientOptions{}
}

// getClientOpts gets the defaults and applies the opt overrides passed in.
func getClientOpts(opt ...Option) clientOptions {
	opts := clientDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithLogger provides an optional hclog.Logger for the client.  Raw tokens
// are never logged; the token types redact themselves.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok {
			o.withLogger = l
		}
	}
}

// WithSessionStorage provides an optional SessionStorage the client loads its
// session from at construction and persists it to after successful exchanges
// and renewals.
func WithSessionStorage(s SessionStorage) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok {
			o.withSessionStorage = s
		}
	}
}

// flowOptions is the set of available options shared by AuthURL, Exchange and
// VerifyIdToken
type flowOptions struct {
	withNonce string
}

// flowDefaults is a handy way to get the defaults at runtime and during unit
// tests.
func flowDefaults() flowOptions {
	return flowOptions{}
}

// getFlowOpts gets the defaults and applies the opt overrides passed in.
func getFlowOpts(opt ...Option) flowOptions {
	opts := flowDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithNonce provides an optional nonce: AuthURL sends it to the provider, and
// Exchange/VerifyIdToken require the id_token's nonce claim to match it.
func WithNonce(nonce string) Option {
	return func(o interface{}) {
		if o, ok := o.(*flowOptions); ok {
			o.withNonce = nonce
		}
	}
}
