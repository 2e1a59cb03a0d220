package main

import (
	"database/sql"
	"flag"
	"fmt"
	"io/fs"
	"os"

	"github.com/firesafe/ledger/internal/infrastructure/config"
	"github.com/firesafe/ledger/internal/infrastructure/logger"
	"github.com/firesafe/ledger/internal/infrastructure/migration"
	"github.com/firesafe/ledger/migrations"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func main() {
	var (
		direction string
		steps     int
		path      string
		force     int
		create    string
		list      bool
		logLevel  string
	)
	flag.StringVar(&direction, "direction", "up", "Migration direction: up or down")
	flag.IntVar(&steps, "steps", 0, "Number of migrations to apply (0 = all)")
	flag.StringVar(&path, "path", "", "Migrations directory (default: migrations embedded in the binary)")
	flag.IntVar(&force, "force", -1, "Force the schema version and clear the dirty flag")
	flag.StringVar(&create, "create", "", "Create a new empty migration pair with this name in -path")
	flag.BoolVar(&list, "list", false, "List available migrations")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	log, err := logger.New(&logger.Config{Level: logLevel, Format: "console", Output: "stdout"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if create != "" {
		dir := path
		if dir == "" {
			dir = "migrations"
		}
		mf, err := migration.CreateMigration(dir, create, flag.Arg(0))
		if err != nil {
			log.Fatal("Failed to create migration", zap.Error(err))
		}
		log.Info("Migration created",
			zap.String("version", mf.Version),
			zap.String("up_file", mf.UpPath),
			zap.String("down_file", mf.DownPath),
		)
		return
	}

	if list {
		var src fs.FS = migrations.FS
		if path != "" {
			src = os.DirFS(path)
		}
		found, err := migration.ListMigrations(src)
		if err != nil {
			log.Fatal("Failed to list migrations", zap.Error(err))
		}
		for _, m := range found {
			fmt.Printf("  %06d_%s (down: %t)\n", m.Version, m.Name, m.HasDown)
		}
		return
	}

	dir, err := migration.ParseDirection(direction)
	if err != nil {
		log.Fatal("Invalid direction", zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping database", zap.Error(err))
	}

	m, err := migration.New(db, path, log)
	if err != nil {
		log.Fatal("Failed to create migrator", zap.Error(err))
	}
	defer m.Close()

	if force >= 0 {
		if err := m.Force(force); err != nil {
			log.Fatal("Force version failed", zap.Error(err))
		}
		return
	}

	log.Info("Migration started",
		zap.String("direction", string(dir)),
		zap.Int("steps", steps),
		zap.String("path", path),
	)
	if err := m.Run(dir, steps); err != nil {
		log.Fatal("Migration failed", zap.Error(err))
	}

	version, dirty, err := m.Version()
	if err != nil {
		log.Fatal("Failed to get version", zap.Error(err))
	}
	log.Info("Schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
}
