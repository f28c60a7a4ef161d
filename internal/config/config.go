// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads gitsnap settings from GITSNAP_* environment
// variables. Command-line flags override them.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Prefix is the environment variable prefix.
const Prefix = "GITSNAP"

// Config holds the settings shared by all gitsnap commands. Nested
// fields are read from GITSNAP_<GROUP>_<NAME>, such as GITSNAP_LOG_LEVEL.
type Config struct {
	Repo     string `envconfig:"REPO" default:"."`
	Rev      string `envconfig:"REV" default:"HEAD"`
	HTTPAddr string `envconfig:"HTTP" default:"localhost:8080"`
	Log      LogConfig
	Mount    MountConfig
	Export   ExportConfig
}

// LogConfig selects the logger, from GITSNAP_LOG_*.
type LogConfig struct {
	Level       string `envconfig:"LEVEL" default:"info"`
	Development bool   `envconfig:"DEV" default:"false"`
}

// MountConfig holds the mount command settings, from GITSNAP_MOUNT_*.
type MountConfig struct {
	AllowOther bool `envconfig:"ALLOW_OTHER" default:"false"`
}

// ExportConfig holds the export command defaults, from GITSNAP_EXPORT_*.
type ExportConfig struct {
	Parallel int    `envconfig:"PARALLEL" default:"8"`
	Pattern  string `envconfig:"PATTERN" default:"*"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("loading %s_* configuration: %w", Prefix, err)
	}
	if cfg.Export.Parallel < 1 {
		return nil, fmt.Errorf("%s_EXPORT_PARALLEL = %d, want at least 1", Prefix, cfg.Export.Parallel)
	}
	return &cfg, nil
}
