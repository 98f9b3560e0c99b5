// internal/config/normalize.go
package config

import (
	"fmt"
	"strings"
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}
	t := &cfg.Terminal

	// ------------------------------------------------------------
	// TERMINAL STATUS BLOCK
	// ------------------------------------------------------------

	// Default device name follows the terminal id.
	if t.Status.DeviceName == "" {
		t.Status.DeviceName = strings.ToUpper(t.ID)
	}

	// ASCII already validated; truncate to max 16 characters.
	if len(t.Status.DeviceName) > 16 {
		t.Status.DeviceName = t.Status.DeviceName[:16]
	}

	// ------------------------------------------------------------
	// EVENTS
	// ------------------------------------------------------------

	if strings.Contains(t.Events.MQTT.Topic, "%s") {
		t.Events.MQTT.Topic = fmt.Sprintf(t.Events.MQTT.Topic, t.ID)
	}

	t.Log.Level = strings.ToLower(strings.TrimSpace(t.Log.Level))
}
