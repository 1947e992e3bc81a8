package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sabouaram/httpengine/config"
)

func TestDefaultValidates(t *testing.T) {
	require.Nil(t, config.Default().Validate())
}

func TestValidateRejectsZeroWorkers(t *testing.T) {
	cfg := config.Default()
	cfg.ReactorWorkers = 0
	err := cfg.Validate()
	require.NotNil(t, err)
}

func TestValidateRejectsOutOfRangePort(t *testing.T) {
	cfg := config.Default()
	cfg.Port = 70000
	err := cfg.Validate()
	require.NotNil(t, err)
}

func TestLoadAppliesDefaultsWithNoFile(t *testing.T) {
	cfg, err := config.Load("")
	require.Nil(t, err)
	require.Equal(t, config.Default(), cfg)
}

func TestLoadReadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: 0.0.0.0\nport: 8080\nmax_latency_millis: 2500\n"), 0o600))

	cfg, err := config.Load(path)
	require.Nil(t, err)
	require.Equal(t, "0.0.0.0", cfg.Listen)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, int64(2500), cfg.MaxLatencyMillis)
	require.Equal(t, config.Default().ReactorWorkers, cfg.ReactorWorkers)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NotNil(t, err)
}

type recordingLatencySetter struct {
	last chan int64
}

func (r *recordingLatencySetter) SetMaxLatencyMillis(maxLatencyMillis int64) {
	r.last <- maxLatencyMillis
}

func TestWatchPushesLatencyUpdatesOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_latency_millis: 1000\n"), 0o600))

	target := &recordingLatencySetter{last: make(chan int64, 4)}
	stop, err := config.Watch(path, target, nil)
	require.Nil(t, err)
	defer stop()

	require.NoError(t, os.WriteFile(path, []byte("max_latency_millis: 9000\n"), 0o600))

	select {
	case v := <-target.last:
		require.Equal(t, int64(9000), v)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for latency update")
	}
}
