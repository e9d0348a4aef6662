package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axiompay/internal/config"
)

func TestSetup(t *testing.T) {
	dir := t.TempDir()
	cfg := config.LogConfig{
		Level:     "info",
		File:      filepath.Join(dir, "axiompay.log"),
		AuditFile: filepath.Join(dir, "audit.log"),
	}
	saved := log.Logger
	t.Cleanup(func() { log.Logger = saved })

	var console bytes.Buffer
	l, err := Setup(cfg, &console)
	require.NoError(t, err)

	log.Debug().Msg("hidden")
	log.Info().Str("kind", "pub2priv").Msg("transfer confirmed")
	l.Audit("trapdoor_generated").Int("bits", 2048).Send()
	require.NoError(t, l.Close())

	assert.Contains(t, console.String(), "transfer confirmed")
	assert.NotContains(t, console.String(), "hidden")

	raw, err := os.ReadFile(cfg.File)
	require.NoError(t, err)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(raw))), &entry))
	assert.Equal(t, "pub2priv", entry["kind"])
	assert.Equal(t, "info", entry["level"])

	audit, err := os.ReadFile(cfg.AuditFile)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(audit), &entry))
	assert.Equal(t, "trapdoor_generated", entry["event"])
	assert.Equal(t, float64(2048), entry["bits"])
}

func TestSetupWithoutFiles(t *testing.T) {
	saved := log.Logger
	t.Cleanup(func() { log.Logger = saved })

	var console bytes.Buffer
	l, err := Setup(config.LogConfig{Level: "warn"}, &console)
	require.NoError(t, err)
	assert.Equal(t, zerolog.WarnLevel, log.Logger.GetLevel())
	l.Audit("ignored").Send()
	assert.NoError(t, l.Close())
}

func TestSetupRejectsLevel(t *testing.T) {
	_, err := Setup(config.LogConfig{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)
}
