package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/kelvinlab/fleetsup/internal/channel"
	"github.com/kelvinlab/fleetsup/internal/supervisor"
)

// Manifest is the fleet-wide TOML document loaded by LoadManifest: a set
// of per-process entries plus defaults applied to any entry that leaves
// the corresponding field unset.
type Manifest struct {
	Defaults Defaults       `toml:"defaults"`
	Process  []ProcessEntry `toml:"process"`
}

// Defaults carries supervisor-wide settings applied to every
// ProcessEntry that does not override them.
type Defaults struct {
	AutoRestart         bool          `toml:"auto_restart"`
	MaxRestartAttempts  int           `toml:"max_restart_attempts"`
	RestartDelay        time.Duration `toml:"restart_delay"`
	HeartbeatEnabled    bool          `toml:"heartbeat_enabled"`
	HeartbeatInterval   time.Duration `toml:"heartbeat_interval"`
	HeartbeatTimeout    time.Duration `toml:"heartbeat_timeout"`
	FileIPCPollInterval time.Duration `toml:"file_ipc_poll_interval"`
	LogDir              string        `toml:"log_dir"`
}

// ProcessEntry is one [[process]] table. Zero-valued fields fall back to
// Manifest.Defaults; AutoRestart is a pointer so "explicitly false"
// (keep disabled) is distinguishable from "unset" (take the default).
type ProcessEntry struct {
	Name           string            `toml:"name"`
	Kind           string            `toml:"kind"`
	ExecutablePath string            `toml:"executable_path"`
	Args           []string          `toml:"args"`
	Env            map[string]string `toml:"env"`
	Transports     []string          `toml:"transports"`
	DependsOn      []string          `toml:"depends_on"`
	Group          string            `toml:"group"`

	AutoRestart        *bool          `toml:"auto_restart"`
	MaxRestartAttempts *int           `toml:"max_restart_attempts"`
	RestartDelay       *time.Duration `toml:"restart_delay"`

	HeartbeatEnabled  *bool          `toml:"heartbeat_enabled"`
	HeartbeatInterval *time.Duration `toml:"heartbeat_interval"`
	HeartbeatTimeout  *time.Duration `toml:"heartbeat_timeout"`

	LogDir       string         `toml:"log_dir"`
	ReadyTimeout *time.Duration `toml:"ready_timeout"`

	FileIPCBase         string         `toml:"file_ipc_base"`
	FileIPCPollInterval *time.Duration `toml:"file_ipc_poll_interval"`
}

// DefaultManifest returns the zero-process manifest with the defaults
// LoadManifest applies when neither the [defaults] table nor a
// [[process]] table sets a field.
func DefaultManifest() Manifest {
	return Manifest{
		Defaults: Defaults{
			MaxRestartAttempts:  3,
			RestartDelay:        2 * time.Second,
			HeartbeatTimeout:    10 * time.Second,
			FileIPCPollInterval: 250 * time.Millisecond,
		},
	}
}

// LoadManifest reads path and returns one supervisor.ProcessConfig per
// [[process]] table, with Manifest.Defaults filled in wherever an
// entry leaves a field unset.
func LoadManifest(path string) ([]supervisor.ProcessConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: manifest load failed (%s): %w", path, err)
	}

	m := DefaultManifest()
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("config: manifest parse failed (%s): %w", path, err)
	}

	out := make([]supervisor.ProcessConfig, 0, len(m.Process))
	for i, entry := range m.Process {
		cfg, err := entry.resolve(m.Defaults)
		if err != nil {
			return nil, fmt.Errorf("config: process[%d] invalid: %w", i, err)
		}
		out = append(out, cfg)
	}
	return out, nil
}

func (p ProcessEntry) resolve(d Defaults) (supervisor.ProcessConfig, error) {
	if p.Name == "" {
		return supervisor.ProcessConfig{}, fmt.Errorf("name is required")
	}
	if p.ExecutablePath == "" {
		return supervisor.ProcessConfig{}, fmt.Errorf("%s: executable_path is required", p.Name)
	}

	transports := make([]channel.Kind, 0, len(p.Transports))
	for _, t := range p.Transports {
		switch t {
		case string(channel.KindFileIPC), string(channel.KindStdio):
			transports = append(transports, channel.Kind(t))
		default:
			return supervisor.ProcessConfig{}, fmt.Errorf("%s: unsupported transport %q", p.Name, t)
		}
	}

	cfg := supervisor.ProcessConfig{
		Name:                p.Name,
		Kind:                p.Kind,
		ExecutablePath:      p.ExecutablePath,
		Args:                p.Args,
		Env:                 p.Env,
		Transports:          transports,
		DependsOn:           p.DependsOn,
		Group:               p.Group,
		LogDir:              firstNonEmpty(p.LogDir, d.LogDir),
		FileIPCBase:         p.FileIPCBase,
		AutoRestart:         boolOr(p.AutoRestart, d.AutoRestart),
		MaxRestartAttempts:  intOr(p.MaxRestartAttempts, d.MaxRestartAttempts),
		RestartDelay:        durationOr(p.RestartDelay, d.RestartDelay),
		HeartbeatEnabled:    boolOr(p.HeartbeatEnabled, d.HeartbeatEnabled),
		HeartbeatInterval:   durationOr(p.HeartbeatInterval, d.HeartbeatInterval),
		HeartbeatTimeout:    durationOr(p.HeartbeatTimeout, d.HeartbeatTimeout),
		FileIPCPollInterval: durationOr(p.FileIPCPollInterval, d.FileIPCPollInterval),
		ReadyTimeout:        durationOrZero(p.ReadyTimeout),
	}
	return cfg, nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func durationOr(v *time.Duration, def time.Duration) time.Duration {
	if v == nil {
		return def
	}
	return *v
}

func durationOrZero(v *time.Duration) time.Duration {
	if v == nil {
		return 0
	}
	return *v
}
