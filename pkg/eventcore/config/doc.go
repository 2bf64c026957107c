/*
Package config provides type-safe configuration extraction from map[string]any
and the typed Settings of an event system.

# Overview

Config wraps a map[string]any and provides typed accessor methods that handle
missing keys and type mismatches gracefully by returning default values.
Keys may be dotted paths into nested maps:

	cfg, err := config.FromFile("eventcore.yaml")
	workers := cfg.Int("async.workers", 8)
	format := cfg.String("log.format", "text")

# File Loading

FromFile picks the decoder by extension: .yaml/.yml (gopkg.in/yaml.v3),
.json (encoding/json) and .toml (github.com/pelletier/go-toml/v2).
Each decoder produces different numeric types; the accessors normalise
int, int64 and integral float64 values.

# Settings

SettingsFrom maps a Config onto Settings, filling every missing key from
Defaults, and validates the result:

	settings, err := config.LoadSettings(path)
	sys := eventcore.NewSystem(eventcore.WithSettings(settings))

# Thread Safety

Config is safe for concurrent read access. The underlying map is not
modified after creation.
*/
package config
