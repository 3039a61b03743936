// fleetsupd is the supervisor daemon: it loads a fleet manifest, starts
// every registered process, and blocks until a shutdown signal (or an
// embedder) stops it.
package main

import (
	"flag"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/kelvinlab/fleetsup/internal/config"
	"github.com/kelvinlab/fleetsup/internal/introspect"
	"github.com/kelvinlab/fleetsup/internal/logging"
	"github.com/kelvinlab/fleetsup/internal/platform"
	"github.com/kelvinlab/fleetsup/internal/supervisor"
)

// sup is the single package-level supervisor instance for this process,
// mirroring the teacher's single-slot entry-point ownership pattern
// (cmd/client-tm's package-level client, ghostctl's svc local only
// because ghostctl has no separate admin surface to wire against it).
var sup *supervisor.Supervisor

func main() {
	logging.ConfigureRuntime()

	configPath := flag.String("config", "fleetsupd.toml", "path to fleetsupd's own config file")
	flag.Parse()

	daemonCfg, err := loadDaemonConfig(*configPath)
	if err != nil {
		log.Warn().Err(err).Msg("fleetsupd: no daemon config found, using defaults")
		daemonCfg = defaultDaemonConfig()
	}

	processes, err := config.LoadManifest(daemonCfg.ManifestPath)
	if err != nil {
		log.Error().Err(err).Msg("fleetsupd: failed to load fleet manifest")
		os.Exit(1)
	}

	sup = supervisor.New(platform.New(), log.Logger)
	introspect.Observe(sup)

	for _, cfg := range processes {
		if err := sup.RegisterProcess(cfg); err != nil {
			log.Error().Err(err).Str("process", cfg.Name).Msg("fleetsupd: failed to register process")
			os.Exit(1)
		}
	}

	if daemonCfg.AdminListenAddr != "" {
		srv := introspect.NewServer(sup, log.Logger, daemonCfg.CorsOrigins)
		go func() {
			if err := srv.Run(daemonCfg.AdminListenAddr); err != nil {
				log.Error().Err(err).Msg("fleetsupd: admin server stopped")
			}
		}()
	}

	if err := sup.Run(); err != nil {
		log.Error().Err(err).Msg("fleetsupd: run failed")
		os.Exit(1)
	}
	sup = nil
}
