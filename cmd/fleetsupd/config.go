package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// daemonConfig is fleetsupd's own entry-point config, distinct from the
// fleet manifest it supervises: where to find the manifest, and the
// optional introspection HTTP surface's listen address and CORS origins.
type daemonConfig struct {
	ManifestPath    string
	AdminListenAddr string
	CorsOrigins     []string
}

func defaultDaemonConfig() daemonConfig {
	return daemonConfig{
		ManifestPath:    "fleet.toml",
		AdminListenAddr: "",
		CorsOrigins:     []string{"http://localhost:3000"},
	}
}

type fileDaemonConfig struct {
	ManifestPath    string   `toml:"manifest_path"`
	AdminListenAddr string   `toml:"admin_listen_addr"`
	CorsOrigins     []string `toml:"cors_origins"`
}

// loadDaemonConfig overlays path's defined keys onto defaultDaemonConfig,
// following the teacher's cmd/ghostctl/config.go meta.IsDefined pattern:
// a key absent from the file keeps its default, a key present (even if
// set to the zero value) overrides it. The one exception is
// manifest_path: a blank value keeps the default path.
func loadDaemonConfig(path string) (daemonConfig, error) {
	cfg := defaultDaemonConfig()

	var raw fileDaemonConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return daemonConfig{}, fmt.Errorf("load fleetsupd config: %w", err)
	}

	if meta.IsDefined("manifest_path") {
		if p := strings.TrimSpace(raw.ManifestPath); p != "" {
			cfg.ManifestPath = p
		}
	}
	if meta.IsDefined("admin_listen_addr") {
		cfg.AdminListenAddr = strings.TrimSpace(raw.AdminListenAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = raw.CorsOrigins
	}

	return cfg, nil
}
