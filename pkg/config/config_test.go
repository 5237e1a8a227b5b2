package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "lz4", config.Compression)
	assert.False(t, config.Relative)
	assert.False(t, config.Verify)
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "127.0.0.1", config.Server.Bind)
	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, "console", config.Logging.Format)
	assert.Nil(t, config.Mapping)
}

func TestLoadConfig(t *testing.T) {
	t.Run("load existing config", func(t *testing.T) {
		tmpDir, err := os.MkdirTemp("", "bagvrs_config_test")
		require.NoError(t, err)
		defer os.RemoveAll(tmpDir)

		configPath := filepath.Join(tmpDir, "config.yaml")
		expectedConfig := &Config{
			Compression: "zstd",
			Relative:    true,
			Verify:      true,
			CatalogDir:  "/var/lib/bagvrs",
			Server: Server{
				Port: 9000,
				Bind: "0.0.0.0",
			},
			Logging: Logging{
				Level:  "debug",
				Format: "json",
			},
			Mapping: RGBDMapping(),
		}

		err = SaveConfig(expectedConfig, configPath)
		require.NoError(t, err)

		loadedConfig, err := LoadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, expectedConfig, loadedConfig)
	})

	t.Run("missing fields keep defaults", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "partial.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("compression: snappy\n"), 0644))

		loadedConfig, err := LoadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, "snappy", loadedConfig.Compression)
		assert.Equal(t, 8080, loadedConfig.Server.Port)
		assert.Equal(t, "info", loadedConfig.Logging.Level)
	})

	t.Run("load non-existent config", func(t *testing.T) {
		_, err := LoadConfig("/non/existent/config.yaml")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "config file does not exist")
	})

	t.Run("load invalid yaml", func(t *testing.T) {
		tmpDir, err := os.MkdirTemp("", "bagvrs_config_test")
		require.NoError(t, err)
		defer os.RemoveAll(tmpDir)

		configPath := filepath.Join(tmpDir, "invalid.yaml")
		err = os.WriteFile(configPath, []byte("invalid: yaml: content: ["), 0644)
		require.NoError(t, err)

		_, err = LoadConfig(configPath)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config file")
	})

	t.Run("invalid mapping", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "mapping.yaml")
		content := "mapping:\n  name: broken\n  streams:\n    - topic: /a\n      stream_id: 0\n      kind: color\n      label: A\n"
		require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

		_, err := LoadConfig(configPath)
		assert.ErrorIs(t, err, ErrInvalidMapping)
	})
}

func TestSaveConfig(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "bagvrs_config_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	configPath := filepath.Join(tmpDir, "config.yaml")
	config := DefaultConfig()

	err = SaveConfig(config, configPath)
	require.NoError(t, err)

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loadedConfig, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, config, loadedConfig)
}

func TestBootstrapConfig(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("defaults", func(t *testing.T) {
		configPath := filepath.Join(tmpDir, "plain", "config.yaml")
		config, err := BootstrapConfig(configPath, false)
		require.NoError(t, err)

		assert.Nil(t, config.Mapping)
		assert.True(t, ConfigExists(configPath))

		loadedConfig, err := LoadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, config, loadedConfig)
	})

	t.Run("with imu mapping", func(t *testing.T) {
		configPath := filepath.Join(tmpDir, "imu", "config.yaml")
		config, err := BootstrapConfig(configPath, true)
		require.NoError(t, err)
		require.NotNil(t, config.Mapping)
		assert.Len(t, config.Mapping.Streams, 11)

		loadedConfig, err := LoadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, config.Mapping, loadedConfig.Mapping)
	})
}

func TestGetDefaultConfigPath(t *testing.T) {
	path := GetDefaultConfigPath()
	assert.NotEmpty(t, path)
	assert.Contains(t, path, "bagvrs")
}

func TestConfigExists(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "bagvrs_config_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	existingPath := filepath.Join(tmpDir, "exists.yaml")
	nonExistentPath := filepath.Join(tmpDir, "does-not-exist.yaml")

	err = os.WriteFile(existingPath, []byte("test"), 0644)
	require.NoError(t, err)

	assert.True(t, ConfigExists(existingPath))
	assert.False(t, ConfigExists(nonExistentPath))
}

func TestConfigYAMLKeys(t *testing.T) {
	config := DefaultConfig()
	config.MetricsFile = "/tmp/bagvrs.prom"

	data, err := yaml.Marshal(config)
	require.NoError(t, err)

	out := string(data)
	assert.Contains(t, out, "compression: lz4\n")
	assert.Contains(t, out, "metrics_file: /tmp/bagvrs.prom\n")
	assert.Contains(t, out, "bind: 127.0.0.1\n")
	assert.NotContains(t, out, "catalog_dir")
	assert.NotContains(t, out, "api_key")
	assert.NotContains(t, out, "mapping:")
}

func TestSaveConfigErrorHandling(t *testing.T) {
	config := DefaultConfig()

	// A regular file where the directory should be.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	err := SaveConfig(config, filepath.Join(blocker, "config.yaml"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create config directory")
}
