package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jrhodes/barrierscreen/internal/config"
)

func TestApplyOverridesLeavesUnsetFieldsAlone(t *testing.T) {
	cfg := config.Default()
	applyOverrides(&cfg, "", 0, false, "", false)

	assert.Equal(t, config.Default().Server, cfg.Server)
	assert.Equal(t, config.Default().Port, cfg.Port)
}

func TestApplyOverridesAppliesSetFields(t *testing.T) {
	cfg := config.Default()
	applyOverrides(&cfg, "office-desktop", 24900, true, "debug", false)

	assert.Equal(t, "office-desktop", cfg.Server)
	assert.Equal(t, 24900, cfg.Port)
	assert.True(t, cfg.TLS)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestApplyOverridesDryRunForcesPTYBackend(t *testing.T) {
	cfg := config.Default()
	cfg.MouseBackend = "uinput"
	cfg.KeyboardBackend = "uinput"

	applyOverrides(&cfg, "", 0, false, "", true)

	assert.Equal(t, "pty", cfg.MouseBackend)
	assert.Equal(t, "pty", cfg.KeyboardBackend)
}
