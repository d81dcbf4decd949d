package browser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.True(t, opts.Headless, "headless by default")
	assert.Equal(t, 30*time.Second, opts.Timeout)
	assert.Equal(t, 1366, opts.ViewportWidth)
	assert.Equal(t, 900, opts.ViewportHeight)
	assert.Equal(t, "en-US", opts.Locale)
}

func TestLaunchOptionsProxy(t *testing.T) {
	opts := DefaultOptions()
	opts.ProxyServer = "http://proxy.local:8000"
	opts.ProxyUsername = "user"
	opts.ProxyPassword = "pass"

	launch := NewPlaywrightEngine(opts).launchOptions(true)

	require.NotNil(t, launch.Proxy)
	assert.Equal(t, "http://proxy.local:8000", launch.Proxy.Server)
	require.NotNil(t, launch.Proxy.Username)
	assert.Equal(t, "user", *launch.Proxy.Username)
	assert.Equal(t, "pass", *launch.Proxy.Password)
	assert.Contains(t, launch.Args, "--disable-blink-features=AutomationControlled")
	assert.Contains(t, launch.Args, "--window-size=1366,900")
}

func TestLaunchOptionsWithoutProxy(t *testing.T) {
	launch := NewPlaywrightEngine(nil).launchOptions(false)
	assert.Nil(t, launch.Proxy)
	require.NotNil(t, launch.Headless)
	assert.False(t, *launch.Headless)
}

func TestContextOptionsStorageState(t *testing.T) {
	engine := NewPlaywrightEngine(DefaultOptions())

	state := []byte(`{"cookies":[{"name":"sid","value":"abc","domain":".tcgplayer.com","path":"/"}],"origins":[]}`)
	opts, err := engine.contextOptions(state)
	require.NoError(t, err)
	require.NotNil(t, opts.StorageState)
	require.Len(t, opts.StorageState.Cookies, 1)
	assert.Equal(t, "sid", opts.StorageState.Cookies[0].Name)
	assert.Equal(t, "en-US,en;q=0.9", opts.ExtraHttpHeaders["Accept-Language"])

	_, err = engine.contextOptions([]byte("not json"))
	assert.Error(t, err)

	opts, err = engine.contextOptions(nil)
	require.NoError(t, err)
	assert.Nil(t, opts.StorageState)
}
