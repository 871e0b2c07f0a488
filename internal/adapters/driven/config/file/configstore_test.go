package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*ConfigStore, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	return store, dir
}

func TestNewConfigStore_Success(t *testing.T) {
	store, dir := newTestStore(t)
	assert.Equal(t, filepath.Join(dir, "config.toml"), store.Path())
	assert.Empty(t, store.Keys())
}

func TestNewConfigStore_NestedDirectory(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "a", "b")
	store, err := NewConfigStore(nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(nested, "config.toml"), store.Path())

	info, err := os.Stat(nested)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
}

func TestNewConfigStore_MkdirAllError(t *testing.T) {
	store, err := NewConfigStore("/dev/null/cannot/create")
	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestNewConfigStore_CorruptedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("not toml {{[["), 0600))

	store, err := NewConfigStore(dir)
	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Set("storage.backend", "sqlite"))
	require.NoError(t, store.Set("storage.lock_timeout_ms", 250))
	require.NoError(t, store.Set("scheduler.enabled", true))

	assert.Equal(t, "sqlite", store.GetString("storage.backend"))
	assert.Equal(t, 250, store.GetInt("storage.lock_timeout_ms"))
	assert.True(t, store.GetBool("scheduler.enabled"))

	// Wrong type or missing key yields the zero value.
	assert.Empty(t, store.GetString("storage.lock_timeout_ms"))
	assert.Zero(t, store.GetInt("storage.backend"))
	assert.False(t, store.GetBool("storage.backend"))
	assert.Empty(t, store.GetString("missing"))

	val, ok := store.Get("missing")
	assert.False(t, ok)
	assert.Nil(t, val)
}

func TestConfigStore_PersistsAsTables(t *testing.T) {
	store, dir := newTestStore(t)
	require.NoError(t, store.Set("storage.backend", "sqlite"))
	require.NoError(t, store.Set("storage.user", "LOCAL"))
	require.NoError(t, store.Set("scheduler.interval", "30s"))

	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "[storage]")
	assert.Contains(t, string(raw), "[scheduler]")

	reloaded, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", reloaded.GetString("storage.backend"))
	assert.Equal(t, "LOCAL", reloaded.GetString("storage.user"))
	assert.Equal(t, "30s", reloaded.GetString("scheduler.interval"))
	assert.Equal(t, []string{"scheduler.interval", "storage.backend", "storage.user"}, reloaded.Keys())
}

func TestConfigStore_ScalarPrefixStaysFlat(t *testing.T) {
	store, dir := newTestStore(t)
	require.NoError(t, store.Set("storage", "legacy"))
	require.NoError(t, store.Set("storage.backend", "memory"))

	reloaded, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, "legacy", reloaded.GetString("storage"))
	assert.Equal(t, "memory", reloaded.GetString("storage.backend"))
}

func TestConfigStore_Unset(t *testing.T) {
	store, dir := newTestStore(t)
	require.NoError(t, store.Set("scheduler.development", true))
	require.NoError(t, store.Unset("scheduler.development"))
	require.NoError(t, store.Unset("never.set"))

	reloaded, err := NewConfigStore(dir)
	require.NoError(t, err)
	_, ok := reloaded.Get("scheduler.development")
	assert.False(t, ok)
}

func TestConfigStore_EmptyKey(t *testing.T) {
	store, _ := newTestStore(t)
	assert.Error(t, store.Set("", "x"))
}

func TestConfigStore_FilePermissions(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Set("storage.backend", "memory"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestConfigStore_EmptyAndCommentOnlyFiles(t *testing.T) {
	for _, content := range []string{"", "# nothing here\n\n"} {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0600))

		store, err := NewConfigStore(dir)
		require.NoError(t, err)
		assert.Empty(t, store.Keys())
	}
}

func TestConfigStore_WriteErrorKeepsPreviousValue(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Set("storage.backend", "memory"))

	// Replace the file with a directory so writes fail.
	require.NoError(t, os.Remove(store.Path()))
	require.NoError(t, os.Mkdir(store.Path(), 0700))

	assert.Error(t, store.Set("storage.backend", "sqlite"))
	assert.Equal(t, "memory", store.GetString("storage.backend"))

	assert.Error(t, store.Set("storage.user", "bob"))
	_, ok := store.Get("storage.user")
	assert.False(t, ok)

	assert.Error(t, store.Unset("storage.backend"))
	assert.Equal(t, "memory", store.GetString("storage.backend"))
}

func TestConfigStore_UnmarshallableValue(t *testing.T) {
	store, _ := newTestStore(t)
	assert.Error(t, store.Set("channel", make(chan int)))
	_, ok := store.Get("channel")
	assert.False(t, ok)
}

func TestConfigStore_LoadPicksUpExternalEdits(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Set("storage.backend", "memory"))

	edited := []byte("[storage]\nbackend = \"sqlite\"\nlock_timeout_ms = 900\n")
	require.NoError(t, os.WriteFile(store.Path(), edited, 0600))
	require.NoError(t, store.Load())

	assert.Equal(t, "sqlite", store.GetString("storage.backend"))
	assert.Equal(t, 900, store.GetInt("storage.lock_timeout_ms"))
}

func TestConfigStore_LoadInvalidTOML(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte("invalid ][}{"), 0600))
	assert.Error(t, store.Load())
}

func TestConfigStore_Concurrency(t *testing.T) {
	store, _ := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := "worker.key" + string(rune('0'+id))
			_ = store.Set(key, id)
			_ = store.GetInt(key)
			_ = store.Keys()
		}(i)
	}
	wg.Wait()
	assert.Len(t, store.Keys(), 10)
}
