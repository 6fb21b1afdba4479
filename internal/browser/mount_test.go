package browser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmount_DetachesDefaultContainer(t *testing.T) {
	env := newTestEnv(t)
	mount, err := env.Inject("<p>bye</p>", InjectOptions{})
	require.NoError(t, err)
	container := mount.Container()

	require.NoError(t, mount.Unmount())

	assert.False(t, container.IsAttached())
	assert.Empty(t, mustInnerHTML(t, container))
	assert.False(t, env.Registry().Contains(mount))
	assert.True(t, mount.Unmounted())
}

func TestUnmount_ClearsButKeepsCallerProvidedContainer(t *testing.T) {
	env := newTestEnv(t)
	wrapper := env.Document().CreateContainer(env.Document().Body())
	container := env.Document().CreateContainer(wrapper)

	mount, err := env.Inject("<p>content</p>", InjectOptions{Container: container})
	require.NoError(t, err)
	require.NoError(t, mount.Unmount())

	// Not parented directly under the default body, so it stays attached.
	assert.True(t, container.IsAttached())
	assert.Empty(t, mustInnerHTML(t, container))
	assert.False(t, env.Registry().Contains(mount))
}

func TestUnmount_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	mount, err := env.Inject("<p>x</p>", InjectOptions{})
	require.NoError(t, err)

	require.NoError(t, mount.Unmount())
	require.NoError(t, mount.Unmount())
	assert.Equal(t, 0, env.Registry().Len())
}

func TestCleanup_TearsDownAllMounts(t *testing.T) {
	env := newTestEnv(t)

	first, err := env.Inject("<p>one</p>", InjectOptions{})
	require.NoError(t, err)
	second, err := env.Inject("<p>two</p>", InjectOptions{})
	require.NoError(t, err)

	// Both simultaneously attached and queryable before cleanup.
	assert.True(t, first.Container().IsAttached())
	assert.True(t, second.Container().IsAttached())
	assert.Equal(t, 2, env.Registry().Len())

	require.NoError(t, env.Cleanup())

	assert.False(t, first.Container().IsAttached())
	assert.False(t, second.Container().IsAttached())
	assert.Empty(t, mustInnerHTML(t, first.Container()))
	assert.Empty(t, mustInnerHTML(t, second.Container()))
	assert.Equal(t, 0, env.Registry().Len())
}

func TestCleanup_IdempotentAndNoDoubleFree(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.Cleanup(), "empty registry is a no-op")

	mount, err := env.Inject("<p>x</p>", InjectOptions{})
	require.NoError(t, err)
	require.NoError(t, mount.Unmount())

	// An unmounted container does not reappear in cleanup traversals.
	require.NoError(t, env.Cleanup())
	require.NoError(t, env.Cleanup())
	assert.Equal(t, 0, env.Registry().Len())
}

func TestDebug_TruncatesToConfiguredLength(t *testing.T) {
	env := newTestEnv(t)
	mount, err := env.Inject("<p>"+strings.Repeat("x", 20000)+"</p>", InjectOptions{})
	require.NoError(t, err)

	var sb strings.Builder
	out := mount.DebugTo(&sb)
	assert.LessOrEqual(t, len(out), env.Settings().DebugMaxLength+len("..."))
	assert.True(t, strings.HasSuffix(out, "..."))
	assert.Equal(t, out+"\n", sb.String())
}

func TestDebug_ExplicitScope(t *testing.T) {
	env := newTestEnv(t)
	mount, err := env.Inject(`<span id="inner">only this</span><span>not this</span>`, InjectOptions{})
	require.NoError(t, err)

	inner := env.Document().GetElementByID("inner")
	require.NotNil(t, inner)

	var sb strings.Builder
	out := mount.DebugTo(&sb, inner)
	assert.Contains(t, out, "only this")
	assert.NotContains(t, out, "not this")
}
