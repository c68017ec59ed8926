package internal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("LOCAL_USER_ID", "me")
	t.Setenv("AUTH_TOKEN", "secret")
	t.Setenv("API_URL", "https://chat.example.com/api")
	t.Setenv("REALTIME_URL", "wss://chat.example.com/ws")
	t.Setenv("BADGER_FILEPATH", t.TempDir())
}

func TestLoadConfig_Defaults(t *testing.T) {
	req := require.New(t)
	setRequired(t)

	config, err := LoadConfig()

	req.NoError(err)
	req.Equal("me", config.LocalUserID)
	req.Equal(1024, config.BufferSize)
	req.Equal(2*time.Second, config.SinkTimeout)
	req.Equal(500*time.Millisecond, config.AckInterval)
	req.Equal("INFO", config.LogLevel)
}

func TestLoadConfig_Overrides(t *testing.T) {
	req := require.New(t)
	setRequired(t)
	t.Setenv("SINK_TIMEOUT", "250ms")
	t.Setenv("LOG_LEVEL", "DEBUG")

	config, err := LoadConfig()

	req.NoError(err)
	req.Equal(250*time.Millisecond, config.SinkTimeout)
	req.Equal("DEBUG", config.LogLevel)
}

func TestLoadConfig_Missing_Required(t *testing.T) {
	req := require.New(t)
	setRequired(t)
	t.Setenv("LOCAL_USER_ID", "")

	_, err := LoadConfig()

	req.Error(err)
}

func TestLoadConfig_Invalid_Values(t *testing.T) {
	req := require.New(t)
	setRequired(t)
	t.Setenv("API_URL", "not a url")
	t.Setenv("LOG_LEVEL", "LOUD")

	_, err := LoadConfig()

	req.ErrorContains(err, "invalid config")
}
