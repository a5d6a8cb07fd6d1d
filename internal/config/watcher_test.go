package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canonmorph/canonmorph/internal/observability"
)

// validConfigYAML is a minimal valid configuration for testing
const validConfigYAML = `
server:
  host: 127.0.0.1
  port: 8080
storage:
  backend: memory
catalog:
  backend: memory
`

// invalidConfigYAML fails validation for testing error handling
const invalidConfigYAML = `
server:
  host: ""
  port: -1
storage:
  backend: cassandra
`

func TestNewWatcher(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	err := os.WriteFile(configPath, []byte(validConfigYAML), 0644)
	require.NoError(t, err)

	callback := func(cfg *ServiceConfig) {}

	watcher, err := NewWatcher(configPath, callback)
	require.NoError(t, err)
	require.NotNil(t, watcher)

	assert.Equal(t, configPath, watcher.path)
	assert.NotNil(t, watcher.callback)
	assert.Equal(t, 100*time.Millisecond, watcher.debounceDelay)
}

func TestNewWatcher_WithOptions(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	err := os.WriteFile(configPath, []byte(validConfigYAML), 0644)
	require.NoError(t, err)

	callback := func(cfg *ServiceConfig) {}
	logger := observability.NopLogger()
	errorCallback := func(err error) {}

	watcher, err := NewWatcher(configPath, callback,
		WithDebounceDelay(200*time.Millisecond),
		WithLogger(logger),
		WithErrorCallback(errorCallback),
	)
	require.NoError(t, err)
	require.NotNil(t, watcher)

	assert.Equal(t, 200*time.Millisecond, watcher.debounceDelay)
	assert.Equal(t, logger, watcher.logger)
	assert.NotNil(t, watcher.errorCallback)
}

func TestWatcher_Start(t *testing.T) {
	// Not parallel due to file system operations

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	err := os.WriteFile(configPath, []byte(validConfigYAML), 0644)
	require.NoError(t, err)

	callback := func(cfg *ServiceConfig) {}

	watcher, err := NewWatcher(configPath, callback)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = watcher.Start(ctx)
	require.NoError(t, err)

	// Verify initial config was loaded
	cfg := watcher.GetLastConfig()
	require.NotNil(t, cfg)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)

	err = watcher.Stop()
	require.NoError(t, err)
}

func TestWatcher_Start_AlreadyRunning(t *testing.T) {
	// Not parallel due to file system operations

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	err := os.WriteFile(configPath, []byte(validConfigYAML), 0644)
	require.NoError(t, err)

	callback := func(cfg *ServiceConfig) {}

	watcher, err := NewWatcher(configPath, callback)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = watcher.Start(ctx)
	require.NoError(t, err)

	// Start again should return nil (already running)
	err = watcher.Start(ctx)
	assert.NoError(t, err)

	err = watcher.Stop()
	require.NoError(t, err)
}

func TestWatcher_Start_InvalidConfig(t *testing.T) {
	// Not parallel due to file system operations

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	err := os.WriteFile(configPath, []byte(invalidConfigYAML), 0644)
	require.NoError(t, err)

	callback := func(cfg *ServiceConfig) {}

	watcher, err := NewWatcher(configPath, callback)
	require.NoError(t, err)

	ctx := context.Background()
	err = watcher.Start(ctx)
	assert.Error(t, err)
}

func TestWatcher_Start_FileNotFound(t *testing.T) {
	// Not parallel due to file system operations

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nonexistent.yaml")

	callback := func(cfg *ServiceConfig) {}

	watcher, err := NewWatcher(configPath, callback)
	require.NoError(t, err)

	ctx := context.Background()
	err = watcher.Start(ctx)
	assert.Error(t, err)
}

func TestWatcher_Stop_NotRunning(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	err := os.WriteFile(configPath, []byte(validConfigYAML), 0644)
	require.NoError(t, err)

	callback := func(cfg *ServiceConfig) {}

	watcher, err := NewWatcher(configPath, callback)
	require.NoError(t, err)

	// Stop without starting should return nil
	err = watcher.Stop()
	assert.NoError(t, err)
}

func TestWatcher_GetLastConfig(t *testing.T) {
	// Not parallel due to file system operations

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	err := os.WriteFile(configPath, []byte(validConfigYAML), 0644)
	require.NoError(t, err)

	callback := func(cfg *ServiceConfig) {}

	watcher, err := NewWatcher(configPath, callback)
	require.NoError(t, err)

	// Before start, should return nil
	cfg := watcher.GetLastConfig()
	assert.Nil(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = watcher.Start(ctx)
	require.NoError(t, err)

	cfg = watcher.GetLastConfig()
	require.NotNil(t, cfg)
	assert.Equal(t, 8080, cfg.Server.Port)

	err = watcher.Stop()
	require.NoError(t, err)
}

func TestWatcher_FileChange(t *testing.T) {
	// Not parallel due to file system operations and timing

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	err := os.WriteFile(configPath, []byte(validConfigYAML), 0644)
	require.NoError(t, err)

	var mu sync.Mutex
	var receivedConfig *ServiceConfig
	callbackCalled := make(chan struct{}, 1)

	callback := func(cfg *ServiceConfig) {
		mu.Lock()
		receivedConfig = cfg
		mu.Unlock()
		select {
		case callbackCalled <- struct{}{}:
		default:
		}
	}

	watcher, err := NewWatcher(configPath, callback,
		WithDebounceDelay(50*time.Millisecond),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = watcher.Start(ctx)
	require.NoError(t, err)

	updatedConfig := `
server:
  host: 127.0.0.1
  port: 9090
storage:
  backend: memory
catalog:
  backend: memory
`
	// Wait a bit before modifying to ensure watcher is ready
	time.Sleep(100 * time.Millisecond)

	err = os.WriteFile(configPath, []byte(updatedConfig), 0644)
	require.NoError(t, err)

	// Wait for callback to be called
	select {
	case <-callbackCalled:
		mu.Lock()
		require.NotNil(t, receivedConfig)
		assert.Equal(t, 9090, receivedConfig.Server.Port)
		mu.Unlock()
	case <-time.After(2 * time.Second):
		t.Fatal("callback was not called after file change")
	}

	err = watcher.Stop()
	require.NoError(t, err)
}

func TestWatcher_FileChange_InvalidConfig(t *testing.T) {
	// Not parallel due to file system operations and timing

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	err := os.WriteFile(configPath, []byte(validConfigYAML), 0644)
	require.NoError(t, err)

	var errorReceived atomic.Bool
	errorCallback := func(err error) {
		errorReceived.Store(true)
	}

	callback := func(cfg *ServiceConfig) {}

	watcher, err := NewWatcher(configPath, callback,
		WithDebounceDelay(50*time.Millisecond),
		WithErrorCallback(errorCallback),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = watcher.Start(ctx)
	require.NoError(t, err)

	// Wait a bit before modifying
	time.Sleep(100 * time.Millisecond)

	err = os.WriteFile(configPath, []byte(invalidConfigYAML), 0644)
	require.NoError(t, err)

	// Wait for error callback
	time.Sleep(500 * time.Millisecond)

	assert.True(t, errorReceived.Load(), "error callback should have been called")

	err = watcher.Stop()
	require.NoError(t, err)
}

func TestWatcher_ContextCancellation(t *testing.T) {
	// Not parallel due to file system operations

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	err := os.WriteFile(configPath, []byte(validConfigYAML), 0644)
	require.NoError(t, err)

	callback := func(cfg *ServiceConfig) {}

	watcher, err := NewWatcher(configPath, callback)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	err = watcher.Start(ctx)
	require.NoError(t, err)

	cancel()

	// Give some time for the watcher to stop
	time.Sleep(100 * time.Millisecond)

	err = watcher.Stop()
	assert.NoError(t, err)
}

func TestWatcher_ForceReload(t *testing.T) {
	// Not parallel due to file system operations

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	err := os.WriteFile(configPath, []byte(validConfigYAML), 0644)
	require.NoError(t, err)

	var callbackCount atomic.Int32
	callback := func(cfg *ServiceConfig) {
		callbackCount.Add(1)
	}

	watcher, err := NewWatcher(configPath, callback)
	require.NoError(t, err)

	// ForceReload without starting
	err = watcher.ForceReload()
	require.NoError(t, err)

	assert.Equal(t, int32(1), callbackCount.Load())

	cfg := watcher.GetLastConfig()
	require.NotNil(t, cfg)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
}

func TestWatcher_ForceReload_InvalidConfig(t *testing.T) {
	// Not parallel due to file system operations

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	err := os.WriteFile(configPath, []byte(invalidConfigYAML), 0644)
	require.NoError(t, err)

	callback := func(cfg *ServiceConfig) {}

	watcher, err := NewWatcher(configPath, callback)
	require.NoError(t, err)

	err = watcher.ForceReload()
	assert.Error(t, err)
	assert.Nil(t, watcher.GetLastConfig())
}
