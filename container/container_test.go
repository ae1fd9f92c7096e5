package container

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quercus/errors"
)

func TestContainer(t *testing.T) {
	t.Run("singleton factory runs once", func(t *testing.T) {
		c := NewDIContainer()
		calls := 0
		require.NoError(t, c.Register("loader", func() (interface{}, error) {
			calls++
			return &calls, nil
		}, Singleton))

		assert.Equal(t, 0, calls, "singletons are built lazily")
		first := c.MustResolve("loader")
		second := c.MustResolve("loader")
		assert.Same(t, first, second)
		assert.Equal(t, 1, calls)
	})

	t.Run("transient factory runs every time", func(t *testing.T) {
		c := NewDIContainer()
		n := 0
		require.NoError(t, c.Register("counter", func() (interface{}, error) {
			n++
			return n, nil
		}, Transient))
		c.MustResolve("counter")
		assert.Equal(t, 2, c.MustResolve("counter"))
	})

	t.Run("duplicate and missing names", func(t *testing.T) {
		c := NewDIContainer()
		require.NoError(t, c.RegisterInstance("logger", "x"))
		err := c.RegisterInstance("logger", "y")
		assert.True(t, errors.HasCode(err, "DEPENDENCY_ALREADY_REGISTERED"))

		_, err = c.Resolve("runtime")
		assert.True(t, errors.HasCode(err, "DEPENDENCY_NOT_REGISTERED"))
		assert.Equal(t, []string{"logger"}, c.ListDependencies())
	})

	t.Run("factory errors are wrapped", func(t *testing.T) {
		c := NewDIContainer()
		require.NoError(t, c.Register("broken", func() (interface{}, error) {
			return nil, fmt.Errorf("no include path")
		}, Singleton))
		_, err := c.Resolve("broken")
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, "INSTANCE_CREATION_FAILED"))
		assert.Contains(t, err.Error(), "no include path")
	})

	t.Run("circular resolution is detected", func(t *testing.T) {
		c := NewDIContainer()
		require.NoError(t, c.Register("a", func() (interface{}, error) {
			return c.Resolve("a")
		}, Transient))
		_, err := c.Resolve("a")
		assert.Error(t, err)
	})

	t.Run("typed resolution", func(t *testing.T) {
		c := NewDIContainer()
		require.NoError(t, c.RegisterInstance("name", "quercus"))
		s, err := ResolveAs[string](c, "name")
		require.NoError(t, err)
		assert.Equal(t, "quercus", s)

		_, err = ResolveAs[int](c, "name")
		assert.True(t, errors.HasCode(err, "INVALID_DEPENDENCY_TYPE"))
	})
}
