package oidc

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartTestProvider(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	tp := StartTestProvider(t)
	require.NotEmpty(tp.Addr())
	require.NotEmpty(tp.CACert())

	client, err := (&Config{ProviderCA: tp.CACert()}).HttpClient()
	require.NoError(err)

	resp, err := client.Get(tp.Addr() + "/.well-known/openid-configuration")
	require.NoError(err)
	defer resp.Body.Close()
	require.Equal(http.StatusOK, resp.StatusCode)

	var doc struct {
		Issuer           string `json:"issuer"`
		TokenEndpoint    string `json:"token_endpoint"`
		JWKSURI          string `json:"jwks_uri"`
		UserinfoEndpoint string `json:"userinfo_endpoint"`
	}
	require.NoError(json.NewDecoder(resp.Body).Decode(&doc))
	assert.Equal(tp.Addr(), doc.Issuer)
	assert.Equal(tp.Addr()+"/token", doc.TokenEndpoint)
	assert.Equal(tp.Addr()+"/certs", doc.JWKSURI)
	assert.Equal(tp.Addr()+"/userinfo", doc.UserinfoEndpoint)
	assert.Equal(1, tp.RequestCount("/.well-known/openid-configuration"))
}

func TestTestProvider_userinfo(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	tp := StartTestProvider(t)
	client, err := (&Config{ProviderCA: tp.CACert()}).HttpClient()
	require.NoError(err)

	// missing bearer credential
	resp, err := client.Get(tp.Addr() + "/userinfo")
	require.NoError(err)
	resp.Body.Close()
	assert.Equal(http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, tp.Addr()+"/userinfo", nil)
	require.NoError(err)
	req.Header.Set("Authorization", "Bearer opaque-token")
	resp, err = client.Do(req)
	require.NoError(err)
	defer resp.Body.Close()
	require.Equal(http.StatusOK, resp.StatusCode)

	var claims map[string]interface{}
	require.NoError(json.NewDecoder(resp.Body).Decode(&claims))
	assert.Equal("alice@example.com", claims["sub"])
}
