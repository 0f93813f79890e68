package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupDefaults(t *testing.T) {
	cfg := &Config{
		Servers:    []string{"alpha", "beta"},
		Users:      map[string]string{"alpha": "deploy"},
		SSHOptions: map[string]string{"alpha": "-p 2222"},
	}

	assert.Equal(t, "deploy", cfg.UserFor("alpha"))
	assert.Equal(t, "-p 2222", cfg.OptionsFor("alpha"))
	// Missing entries resolve to empty strings.
	assert.Equal(t, "", cfg.UserFor("beta"))
	assert.Equal(t, "", cfg.OptionsFor("beta"))
	assert.Equal(t, "", cfg.UserFor("unknown"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"minimal valid", Config{Servers: []string{"alpha"}}, false},
		{"no servers", Config{}, true},
		{"blank server", Config{Servers: []string{""}}, true},
		{"negative workers", Config{Servers: []string{"a"}, MaxWorkers: -1}, true},
		{"bad timeout", Config{Servers: []string{"a"}, TaskTimeout: "soon"}, true},
		{"valid timeout", Config{Servers: []string{"a"}, TaskTimeout: "30s"}, false},
		{"kafka missing topic", Config{Servers: []string{"a"},
			Kafka: &KafkaConfig{Brokers: []string{"localhost:9092"}}}, true},
		{"kafka valid", Config{Servers: []string{"a"},
			Kafka: &KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "results"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTimeout(t *testing.T) {
	cfg := &Config{TaskTimeout: "45s"}
	d, err := cfg.Timeout()
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, d)

	cfg.TaskTimeout = ""
	d, err = cfg.Timeout()
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), d)
}

func TestWriteDefaultThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleetrun", FileName)
	require.NoError(t, WriteDefault(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"localhost"}, cfg.Servers)
	assert.Equal(t, 0, cfg.MaxWorkers)
}

func TestDiscoverPrefersCwd(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })

	_, err = Discover()
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("servers: [a]\n"), 0o600))
	found, err := Discover()
	require.NoError(t, err)
	assert.Equal(t, FileName, found)
}

func TestOpenSelectsStore(t *testing.T) {
	store, err := Open("fleetrun.yaml")
	require.NoError(t, err)
	assert.NotNil(t, store)
}
