package config

import (
	"fmt"
	"os"
)

// WriteTemplate writes a starter fleet manifest to path. It refuses to
// clobber an existing file unless overwrite is set.
func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config: manifest already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(manifestTemplate), 0o600)
}

const manifestTemplate = `[defaults]
auto_restart = true
max_restart_attempts = 3
restart_delay = "2s"
heartbeat_timeout = "10s"
file_ipc_poll_interval = "250ms"

[[process]]
name = "worker-a"
executable_path = "/usr/local/bin/fleetworker"
args = ["-name", "worker-a"]
transports = ["stdio"]

[[process]]
name = "worker-b"
executable_path = "/usr/local/bin/fleetworker"
args = ["-name", "worker-b"]
transports = ["file_ipc"]
file_ipc_base = "/var/run/fleetsup/worker-b.json"
depends_on = ["worker-a"]
`
