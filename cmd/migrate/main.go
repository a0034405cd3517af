// Package main applies or rolls back the embedded schema for the configured
// storage driver.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/golang-migrate/migrate/v4"

	"github.com/cory-johannsen/vowmud/internal/config"
	"github.com/cory-johannsen/vowmud/internal/storage/migrations"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	action := flag.String("direction", "up", "one of: up, down, version, force")
	steps := flag.Int("steps", 0, "number of steps for up/down (0 = all)")
	forceVersion := flag.Int("version", -1, "schema version recorded by -direction force")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	m, err := migrations.New(cfg.Storage.Driver, migrations.URL(cfg))
	if err != nil {
		log.Fatalf("creating migrator: %v", err)
	}
	defer m.Close()

	err = run(m, *action, *steps, *forceVersion)
	noChange := errors.Is(err, migrate.ErrNoChange)
	if err != nil && !noChange {
		log.Fatalf("%s %s: %v", cfg.Storage.Driver, *action, err)
	}

	version, dirty, verr := m.Version()
	switch {
	case errors.Is(verr, migrate.ErrNilVersion):
		fmt.Fprintf(os.Stdout, "%s: no schema applied [%s]\n", cfg.Storage.Driver, time.Since(start))
	case verr != nil:
		log.Fatalf("reading schema version: %v", verr)
	case noChange:
		fmt.Fprintf(os.Stdout, "%s: no changes (version=%d dirty=%v) [%s]\n", cfg.Storage.Driver, version, dirty, time.Since(start))
	default:
		fmt.Fprintf(os.Stdout, "%s: %s done (version=%d dirty=%v) [%s]\n", cfg.Storage.Driver, *action, version, dirty, time.Since(start))
	}
}

func run(m *migrate.Migrate, action string, steps, forceVersion int) error {
	switch action {
	case "up":
		if steps > 0 {
			return m.Steps(steps)
		}
		return m.Up()
	case "down":
		if steps > 0 {
			return m.Steps(-steps)
		}
		return m.Down()
	case "version":
		return nil
	case "force":
		if forceVersion < 0 {
			return errors.New("-version is required with -direction force")
		}
		return m.Force(forceVersion)
	default:
		return fmt.Errorf("invalid direction %q", action)
	}
}
