// Package config loads the world server's operator-facing
// configuration: a YAML file for defaults, overridden by CLI flags,
// overridden in turn by environment variables, matching the precedence
// the serve CLI documents.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// World holds everything the serve subcommand needs to start the three
// listeners and connect to storage.
type World struct {
	AuthAddr           string `yaml:"auth_addr"`
	RealmAddr          string `yaml:"realm_addr"`
	WorldAddr          string `yaml:"world_addr"`
	PublicWorldAddress string `yaml:"public_world_address"`
	RealmID            int    `yaml:"realm_id"`
	RealmName          string `yaml:"realm_name"`
	DataDir            string `yaml:"data_dir"`
	DBURL              string `yaml:"db_url"`
	PoolSize           int    `yaml:"pool_size"`
	SecretKeyBase      string `yaml:"secret_key_base"`
}

// Default returns the built-in defaults, used when no YAML file is
// present and no flag/env override applies.
func Default() World {
	return World{
		AuthAddr:  ":6600",
		RealmAddr: ":23115",
		WorldAddr: ":24000",
		RealmID:   1,
		RealmName: "Development",
		DataDir:   "./data",
		PoolSize:  4,
	}
}

// Load reads path as YAML over the defaults; a missing file is not an
// error. Environment variables are then applied on top. The caller
// applies CLI flags after Load, since flag parsing owns argv, and skips
// any flag whose environment variable is set, so env still wins.
func Load(path string) (World, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv overrides cfg fields from the documented environment
// variables, each taking precedence over the YAML file.
func applyEnv(cfg *World) {
	if v := os.Getenv("SECRET_KEY_BASE"); v != "" {
		cfg.SecretKeyBase = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DBURL = v
	}
	if v := os.Getenv("WORLD_PUBLIC_ADDRESS"); v != "" {
		cfg.PublicWorldAddress = v
	}
	if v := os.Getenv("REALM_ID"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RealmID = n
		}
	}
	if v := os.Getenv("REALM_NAME"); v != "" {
		cfg.RealmName = v
	}
	if v := os.Getenv("POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PoolSize = n
		}
	}
}

// Validate checks the minimal set of fields serve cannot start without.
// Returns a non-nil error describing the first problem found.
func (w World) Validate() error {
	if w.DBURL == "" {
		return fmt.Errorf("config: db_url (or DATABASE_URL) is required")
	}
	if w.SecretKeyBase == "" {
		return fmt.Errorf("config: secret_key_base (or SECRET_KEY_BASE) is required")
	}
	return nil
}
