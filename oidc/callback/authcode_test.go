package callback

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authkit-go/authkit/oidc"
)

func testNewClient(t *testing.T, tp *oidc.TestProvider) *oidc.Client {
	t.Helper()
	require := require.New(t)
	tp.SetClientCreds("test-client-id", "test-client-secret")
	cfg, err := oidc.NewConfig(
		tp.Addr(),
		"test-client-id",
		"test-client-secret",
		[]oidc.Alg{oidc.ES256},
		"https://example.com/callback",
		oidc.WithProviderCA(tp.CACert()),
	)
	require.NoError(err)
	c, err := oidc.NewClient(cfg)
	require.NoError(err)
	t.Cleanup(c.Done)
	return c
}

// testResponses collects what the response funcs were called with, so tests
// can assert on the callback's routing decisions.
type testResponses struct {
	successState string
	session      *oidc.Session
	errorState   string
	respErr      *AuthenErrorResponse
	err          error
}

func (r *testResponses) success() SuccessResponseFunc {
	return func(state string, s *oidc.Session, w http.ResponseWriter, req *http.Request) {
		r.successState = state
		r.session = s
		w.WriteHeader(http.StatusOK)
	}
}

func (r *testResponses) failure() ErrorResponseFunc {
	return func(state string, respErr *AuthenErrorResponse, e error, w http.ResponseWriter, req *http.Request) {
		r.errorState = state
		r.respErr = respErr
		r.err = e
		w.WriteHeader(http.StatusUnauthorized)
	}
}

func TestAuthCode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("successful-exchange", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := oidc.StartTestProvider(t)
		tp.SetExpectedAuthCode("valid-code")
		tp.SetReplyAccessToken("1.2.3")
		c := testNewClient(t, tp)

		responses := &testResponses{}
		handler := AuthCode(ctx, c, responses.success(), responses.failure())

		req := httptest.NewRequest(http.MethodGet, "/callback?state=st_123&code=valid-code", nil)
		w := httptest.NewRecorder()
		handler(w, req)

		require.NoError(responses.err)
		require.NotNil(responses.session)
		assert.Equal("st_123", responses.successState)
		assert.Equal(oidc.AccessToken("1.2.3"), responses.session.AccessToken())
		assert.Equal(http.StatusOK, w.Code)
	})
	t.Run("provider-error-response", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := oidc.StartTestProvider(t)
		c := testNewClient(t, tp)

		responses := &testResponses{}
		handler := AuthCode(ctx, c, responses.success(), responses.failure())

		req := httptest.NewRequest(http.MethodGet,
			"/callback?state=st_123&error=access_denied&error_description=user+denied+consent", nil)
		w := httptest.NewRecorder()
		handler(w, req)

		require.NotNil(responses.respErr)
		assert.Equal("st_123", responses.errorState)
		assert.Equal("access_denied", responses.respErr.Error)
		assert.Equal("user denied consent", responses.respErr.Description)
		assert.NoError(responses.err)
		assert.Nil(responses.session)
	})
	t.Run("missing-code", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := oidc.StartTestProvider(t)
		c := testNewClient(t, tp)

		responses := &testResponses{}
		handler := AuthCode(ctx, c, responses.success(), responses.failure())

		req := httptest.NewRequest(http.MethodGet, "/callback?state=st_123", nil)
		w := httptest.NewRecorder()
		handler(w, req)

		require.Error(responses.err)
		assert.Truef(errors.Is(responses.err, oidc.ErrMissingAuthorizationCode),
			"wanted \"%s\" but got \"%s\"", oidc.ErrMissingAuthorizationCode, responses.err)
		assert.Nil(responses.respErr)
	})
	t.Run("failed-exchange", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := oidc.StartTestProvider(t)
		tp.SetExpectedAuthCode("valid-code")
		c := testNewClient(t, tp)

		responses := &testResponses{}
		handler := AuthCode(ctx, c, responses.success(), responses.failure())

		req := httptest.NewRequest(http.MethodGet, "/callback?state=st_123&code=unexpected-code", nil)
		w := httptest.NewRecorder()
		handler(w, req)

		require.Error(responses.err)
		var apiErr *oidc.ApiError
		assert.Truef(errors.As(responses.err, &apiErr), "wanted an *oidc.ApiError but got \"%s\"", responses.err)
		assert.Nil(responses.session)
	})
}

func TestRequestCodeSource(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("query-code", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		req := httptest.NewRequest(http.MethodGet, "/callback?code=abc123", nil)
		src := &RequestCodeSource{Request: req}
		code, err := src.AuthorizationCode(ctx)
		require.NoError(err)
		assert.Equal("abc123", code)
	})
	t.Run("no-code", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		req := httptest.NewRequest(http.MethodGet, "/callback", nil)
		src := &RequestCodeSource{Request: req}
		code, err := src.AuthorizationCode(ctx)
		require.NoError(err)
		assert.Empty(code)
	})
	t.Run("nil-request", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		src := &RequestCodeSource{}
		_, err := src.AuthorizationCode(ctx)
		require.Error(err)
		assert.Truef(errors.Is(err, oidc.ErrNilParameter), "wanted \"%s\" but got \"%s\"", oidc.ErrNilParameter, err)
	})
}
