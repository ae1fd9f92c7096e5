package factory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quercus/errors"
)

func writeScript(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hosts.lua")
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	return path
}

func TestProviderRegistry_Register(t *testing.T) {
	r := NewProviderRegistry()
	require.NoError(t, r.RegisterFactory(NewCoreProviderFactory()))
	require.NoError(t, r.RegisterFactory(NewLuaProviderFactory("")))

	err := r.RegisterFactory(NewCoreProviderFactory())
	assert.True(t, errors.HasCode(err, "FACTORY_ALREADY_REGISTERED"))
	assert.True(t, errors.HasCode(r.RegisterFactory(nil), "NIL_FACTORY"))
	assert.Equal(t, []string{"core", "lua"}, r.ListFactories())

	_, err = r.CreateProvider("python")
	assert.True(t, errors.HasCode(err, "FACTORY_NOT_REGISTERED"))
}

func TestDefaultProviderRegistry_BuildRuntime(t *testing.T) {
	script := writeScript(t, "function triple(x) return x * 3 end")

	rt, err := DefaultProviderRegistry(script).BuildRuntime()
	require.NoError(t, err)
	defer rt.Close()

	assert.NotEmpty(t, rt.Host("strlen"))
	assert.NotEmpty(t, rt.Host("triple"))
	assert.Len(t, rt.Providers(), 2)
}

func TestBuildRuntime_SharedNameBecomesOverload(t *testing.T) {
	script := writeScript(t, "function strlen(s) return 0 end")

	rt, err := DefaultProviderRegistry(script).BuildRuntime()
	require.NoError(t, err)
	defer rt.Close()

	providers := map[string]bool{}
	for _, fn := range rt.Host("strlen") {
		providers[fn.Provider] = true
	}
	assert.Equal(t, map[string]bool{"core": true, "lua": true}, providers)
}

func TestLuaProviderFactory_ValidateEnvironment(t *testing.T) {
	assert.NoError(t, NewLuaProviderFactory("lua").ValidateEnvironment())

	missing := NewLuaProviderFactory("lua", filepath.Join(t.TempDir(), "missing.lua"))
	assert.True(t, errors.HasCode(missing.ValidateEnvironment(), "LUA_SCRIPT_MISSING"))

	dir := NewLuaProviderFactory("lua", t.TempDir())
	assert.Error(t, dir.ValidateEnvironment())

	failures := DefaultProviderRegistry(filepath.Join(t.TempDir(), "missing.lua")).ValidateAllEnvironments()
	assert.Contains(t, failures, "lua")
	assert.NotContains(t, failures, "core")
}
