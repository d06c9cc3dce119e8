package oidc

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApiError_Error(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  *ApiError
		want string
	}{
		{
			name: "msg-with-status",
			err:  &ApiError{Status: 401, Body: `{"error":"invalid_grant"}`, msg: "token endpoint returned an error"},
			want: `token endpoint returned an error: status 401: {"error":"invalid_grant"}`,
		},
		{
			name: "msg-only",
			err:  &ApiError{msg: "token did not refresh correctly"},
			want: "token did not refresh correctly",
		},
		{
			name: "status-only",
			err:  &ApiError{Status: 500, Body: "boom"},
			want: "status 500: boom",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			assert.Equal(tt.want, tt.err.Error())
		})
	}
}

func TestCoreError_Error(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	err := &CoreError{msg: "no valid access token"}
	assert.Equal("no valid access token", err.Error())
}

func TestTokenValidationError(t *testing.T) {
	t.Parallel()
	t.Run("unwraps", func(t *testing.T) {
		assert := assert.New(t)
		err := fmt.Errorf("Client.VerifyIdToken: %w", &TokenValidationError{
			msg: "invalid id_token nonce",
			err: ErrInvalidNonce,
		})
		assert.Truef(errors.Is(err, ErrInvalidNonce), "wanted \"%s\" but got \"%s\"", ErrInvalidNonce, err)
		var validationErr *TokenValidationError
		assert.Truef(errors.As(err, &validationErr), "wanted a *TokenValidationError but got \"%s\"", err)
		assert.Equal("invalid id_token nonce: invalid nonce", validationErr.Error())
	})
	t.Run("no-underlying-error", func(t *testing.T) {
		assert := assert.New(t)
		err := &TokenValidationError{msg: "invalid id_token"}
		assert.Equal("invalid id_token", err.Error())
		assert.Nil(errors.Unwrap(err))
	})
}
