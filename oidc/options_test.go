package oidc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyOpts(t *testing.T) {
	t.Parallel()

	// test application of an option to an option's struct it applies to
	t.Run("applies", func(t *testing.T) {
		assert := assert.New(t)
		opts := getConfigOpts(WithScopes([]string{"email"}))
		assert.Equal([]string{"email"}, opts.withScopes)
	})
	// test ignoring an option from a different option's struct
	t.Run("ignores-unrelated", func(t *testing.T) {
		assert := assert.New(t)
		opts := getConfigOpts(WithNonce("n_123"))
		assert.Equal(configDefaults(), opts)
	})
	t.Run("defaults", func(t *testing.T) {
		assert := assert.New(t)
		assert.Equal(configOptions{withPersistAccessToken: true}, configDefaults())
		assert.Equal(clientOptions{}, clientDefaults())
		assert.Equal(flowOptions{}, flowDefaults())
		assert.Equal(idOptions{}, idDefaults())
	})
}
