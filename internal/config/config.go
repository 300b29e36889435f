// Package config holds REC's tunable timing constants, loaded from a YAML
// file so operators can adjust recovery behavior without a rebuild.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Tunables controls timing behavior across the session runtime. spec.md §9
// Open Question (a) calls these out explicitly as implementation-defined;
// REC exposes them here rather than hardcoding them.
type Tunables struct {
	// DefaultCommandTimeout is used when a session action omits timeout
	// or supplies one <= 0.
	DefaultCommandTimeout time.Duration `yaml:"default_command_timeout"`

	// RecoveryGrace is how long Session.run waits after the first SIGINT
	// for the shell to re-emit PS1_UNIQUE.
	RecoveryGrace time.Duration `yaml:"recovery_grace"`

	// RecoveryGrace2 is the wait after the second SIGINT.
	RecoveryGrace2 time.Duration `yaml:"recovery_grace_2"`

	// ResyncDeadline bounds the final attempt to resync on PS1_UNIQUE
	// after raw ^C + newline are written directly.
	ResyncDeadline time.Duration `yaml:"resync_deadline"`

	// OpenTimeout bounds how long Session.open waits for the first
	// prompt after spawning the shell.
	OpenTimeout time.Duration `yaml:"open_timeout"`

	// PTYRows / PTYCols size the pseudo-terminal window.
	PTYRows uint16 `yaml:"pty_rows"`
	PTYCols uint16 `yaml:"pty_cols"`

	// ShutdownDeadline bounds supervisor.Run's shutdown: the
	// Registry.CloseAll call and the HTTP server's Shutdown each get up
	// to this long.
	ShutdownDeadline time.Duration `yaml:"shutdown_deadline"`
}

// Default returns the baked-in tunables used when no config file is given
// or the file is missing.
func Default() Tunables {
	return Tunables{
		DefaultCommandTimeout: 30 * time.Second,
		RecoveryGrace:         1 * time.Second,
		RecoveryGrace2:        1 * time.Second,
		ResyncDeadline:        3 * time.Second,
		OpenTimeout:           10 * time.Second,
		PTYRows:               40,
		PTYCols:               200,
		ShutdownDeadline:      5 * time.Second,
	}
}

const header = `# REC tunables configuration.
# Durations use Go's time.ParseDuration syntax ("500ms", "2s", "1m").
# Changes apply to sessions created after a restart.

`

// Load reads tunables from path, falling back to Default() for any field
// left unset. A missing file is not an error; Load returns the defaults.
func Load(path string) (Tunables, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Tunables{}, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Tunables{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path with an explanatory header, the same pattern
// anvillm's sandbox.Save uses for its own config file.
func Save(path string, cfg Tunables) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, append([]byte(header), data...), 0644)
}
