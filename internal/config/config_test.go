package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.Equal(t, 500*time.Millisecond, cfg.RemoteReadTimeout)
}

func TestValidateRejectsBadFields(t *testing.T) {
	base := Default()

	cfg := *base
	cfg.NumServers = 0
	require.Error(t, cfg.Validate())

	cfg = *base
	cfg.NumEngines = -1
	require.Error(t, cfg.Validate())

	cfg = *base
	cfg.Associativity = 1
	require.Error(t, cfg.Validate())

	cfg = *base
	cfg.MainHeaderRatio = 0
	require.Error(t, cfg.Validate())

	cfg = *base
	cfg.MainHeaderRatio = 101
	require.Error(t, cfg.Validate())

	cfg = *base
	cfg.KVStoreSize = 0
	require.Error(t, cfg.Validate())
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load("/nonexistent/path/gstore.json")
	require.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gstore.json")
	body := `{"num_servers": 4, "dynamic_gstore": true, "versatile": true, "remote_read_timeout": "2s"}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 4, cfg.NumServers)
	require.True(t, cfg.DynamicGstore)
	require.True(t, cfg.Versatile)
	require.Equal(t, 2*time.Second, cfg.RemoteReadTimeout)
	// Fields absent from the file keep their defaults.
	require.Equal(t, 8, cfg.Associativity)
}

func TestRemoteReadTimeoutAcceptsBareSeconds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gstore.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"remote_read_timeout": 3}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 3*time.Second, cfg.RemoteReadTimeout)
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.NumServers = 3
	cfg.RemoteReadTimeout = 750 * time.Millisecond

	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	var got Config
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, cfg.NumServers, got.NumServers)
	require.Equal(t, cfg.RemoteReadTimeout, got.RemoteReadTimeout)
}
