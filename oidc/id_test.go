package oidc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewId(t *testing.T) {
	t.Parallel()
	t.Run("no-prefix", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		id, err := NewId()
		require.NoError(err)
		assert.NotEmpty(id)
	})
	t.Run("with-prefix", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		id, err := NewId(WithPrefix("n"))
		require.NoError(err)
		assert.Truef(strings.HasPrefix(id, "n_"), "wanted \"n_\" prefix but got %s", id)
	})
	t.Run("unique", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		first, err := NewId()
		require.NoError(err)
		second, err := NewId()
		require.NoError(err)
		assert.NotEqual(first, second)
	})
}
