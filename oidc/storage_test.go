package oidc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("load-empty", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		m := &MemoryStorage{}
		_, err := m.Load(ctx)
		require.Error(err)
		assert.Truef(errors.Is(err, ErrNotFound), "wanted \"%s\" but got \"%s\"", ErrNotFound, err)
	})
	t.Run("save-and-load", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		m := &MemoryStorage{}
		s := NewSession("access", "id", "refresh", time.Now().Add(time.Hour), nil)
		require.NoError(m.Save(ctx, s))
		got, err := m.Load(ctx)
		require.NoError(err)
		assert.Equal(s, got)
	})
	t.Run("save-replaces", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		m := &MemoryStorage{}
		require.NoError(m.Save(ctx, NewSession("first", "", "", time.Time{}, nil)))
		require.NoError(m.Save(ctx, NewSession("second", "", "", time.Time{}, nil)))
		got, err := m.Load(ctx)
		require.NoError(err)
		assert.Equal(AccessToken("second"), got.AccessToken())
	})
	t.Run("clear", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		m := &MemoryStorage{}
		require.NoError(m.Save(ctx, NewSession("access", "", "", time.Time{}, nil)))
		require.NoError(m.Clear(ctx))
		_, err := m.Load(ctx)
		require.Error(err)
		assert.Truef(errors.Is(err, ErrNotFound), "wanted \"%s\" but got \"%s\"", ErrNotFound, err)
	})
}
