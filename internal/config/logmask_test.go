// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"postgres://rcs:secret@db:5432/rcs", "postgres://***@db:5432/rcs"},
		{"wss://ims.example.net/ws", "wss://ims.example.net/ws"},
		{"sip:alice@ims.example.net", "sip:alice@ims.example.net"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MaskURL(tt.in), tt.in)
	}
}

func TestMaskSecretsHidesSensitiveFields(t *testing.T) {
	cfg := Defaults()
	cfg.Store.DSN = "postgres://rcs:secret@db/rcs"
	cfg.Capability.Redis.Password = "hunter2"

	masked := MaskSecrets(cfg).(map[string]any)
	storeSection := masked["Store"].(map[string]any)
	assert.Equal(t, "***", storeSection["DSN"])

	redis := masked["Capability"].(map[string]any)["Redis"].(map[string]any)
	assert.Equal(t, "***", redis["Password"])
	assert.Equal(t, "sqlite", storeSection["Backend"])
}
