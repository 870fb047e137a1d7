package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Load_NoFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func Test_Load_YAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("serial_port: /dev/ttyUSB0\n"), 0o644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", cfg.SerialPort)
	assert.Equal(t, "tcp://0.0.0.0:502", cfg.ModbusListenAddr)
}

func Test_Load_FlagsOverrideYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("serial_port: /dev/ttyUSB0\n"), 0o644))

	cfg, err := Load(path, []string{"-serial-port", "/dev/ttyUSB5"})
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB5", cfg.SerialPort)
}

func Test_Load_MissingFilePathIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func Test_Default_HasOneSecondPersistencePollAndStandardModbusPort(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 1*time.Second, cfg.PersistencePollEvery)
	assert.Equal(t, "tcp://0.0.0.0:502", cfg.ModbusListenAddr)
}
