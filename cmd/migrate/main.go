package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"ms-venues/internal/config"
	"ms-venues/internal/database"
	"ms-venues/internal/database/migrations"
	"ms-venues/internal/logger"
)

const usage = `Usage: migrate [flags] <up|down|to VERSION|version>

  up          apply all pending migrations (schema only unless -seed)
  down        roll back every migration
  to VERSION  migrate up or down to VERSION
  version     print the applied version
`

func main() {
	dir := flag.String("dir", "", "migrations directory (default MIGRATIONS_DIR or ./migrations)")
	seed := flag.Bool("seed", false, "also apply the sample-data migrations on up")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg := config.Load()
	if *dir != "" {
		cfg.Migrations.Dir = *dir
	}

	logger, err := logger.New(logger.Options{MinLevel: logger.ParseLevel(cfg.Log.Level)})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Close()

	bunDB, err := database.Connect(context.Background(), cfg.Database, logger)
	if err != nil {
		logger.Fatal("DATABASE", err.Error())
	}

	runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{
		MigrationsDir: cfg.Migrations.Dir,
		SeedData:      *seed || cfg.Migrations.SeedData,
	}, logger)
	defer func() {
		if err := runner.Close(); err != nil {
			logger.Warn("MIGRATION", err.Error())
		}
	}()

	if err := run(runner, flag.Args()); err != nil {
		logger.Error("MIGRATION", err.Error())
		runner.Close()
		os.Exit(1)
	}
}

func run(runner *migrations.Runner, args []string) error {
	switch args[0] {
	case "up":
		return runner.RunMigrations()
	case "down":
		if err := runner.MigrateDown(); err != nil {
			return err
		}
		fmt.Println("Migrations rolled back successfully")
		return nil
	case "to":
		if len(args) != 2 {
			return fmt.Errorf("to needs a version")
		}
		version, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		return runner.MigrateTo(uint(version))
	case "version":
		version, dirty, err := runner.Version()
		if err != nil {
			return err
		}
		fmt.Printf("version %d (dirty: %t)\n", version, dirty)
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}
