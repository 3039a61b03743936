package config

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kelvinlab/fleetsup/internal/channel"
	"github.com/kelvinlab/fleetsup/internal/platform"
	"github.com/kelvinlab/fleetsup/internal/supervisor"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fleet.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func TestLoadManifestAppliesDefaultsToUnsetFields(t *testing.T) {
	path := writeManifest(t, `
[defaults]
auto_restart = true
max_restart_attempts = 5
restart_delay = "3s"

[[process]]
name = "a"
executable_path = "/bin/a"
transports = ["stdio"]
`)
	got, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 process, got %d", len(got))
	}
	p := got[0]
	if p.Name != "a" || p.ExecutablePath != "/bin/a" {
		t.Fatalf("unexpected process: %+v", p)
	}
	if !p.AutoRestart || p.MaxRestartAttempts != 5 || p.RestartDelay != 3*time.Second {
		t.Fatalf("expected defaults applied, got %+v", p)
	}
	if len(p.Transports) != 1 || p.Transports[0] != channel.KindStdio {
		t.Fatalf("unexpected transports: %+v", p.Transports)
	}
}

func TestLoadManifestPerProcessOverrideWinsOverDefault(t *testing.T) {
	path := writeManifest(t, `
[defaults]
auto_restart = true
max_restart_attempts = 5

[[process]]
name = "a"
executable_path = "/bin/a"
auto_restart = false
max_restart_attempts = 1
`)
	got, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	if got[0].AutoRestart {
		t.Fatalf("expected explicit auto_restart=false to win over default")
	}
	if got[0].MaxRestartAttempts != 1 {
		t.Fatalf("expected explicit max_restart_attempts to win, got %d", got[0].MaxRestartAttempts)
	}
}

func TestLoadManifestMissingExecutablePathFails(t *testing.T) {
	path := writeManifest(t, `
[[process]]
name = "a"
`)
	if _, err := LoadManifest(path); err == nil {
		t.Fatalf("expected error for missing executable_path")
	}
}

func TestLoadManifestUnsupportedTransportFails(t *testing.T) {
	path := writeManifest(t, `
[[process]]
name = "a"
executable_path = "/bin/a"
transports = ["carrier_pigeon"]
`)
	if _, err := LoadManifest(path); err == nil {
		t.Fatalf("expected error for unsupported transport")
	}
}

func TestLoadManifestDependsOnCarriesThroughToSupervisor(t *testing.T) {
	path := writeManifest(t, `
[[process]]
name = "a"
executable_path = "/bin/a"

[[process]]
name = "b"
executable_path = "/bin/b"
depends_on = ["a"]
`)
	procs, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}

	s := supervisor.New(platform.New(), zerolog.New(io.Discard))
	for _, p := range procs {
		if err := s.RegisterProcess(p); err != nil {
			t.Fatalf("register %s: %v", p.Name, err)
		}
	}
	if _, err := s.GetProcessState("b"); err != nil {
		t.Fatalf("expected b registered: %v", err)
	}
}
