// Command migrate applies the embedded goose migrations.
//
//	migrate up | up-to <version> | down | version | pending
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.uber.org/zap"

	"github.com/emergent-company/modelforge/internal/config"
	"github.com/emergent-company/modelforge/internal/migrate"
	"github.com/emergent-company/modelforge/pkg/logger"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	if len(args) == 0 {
		return fmt.Errorf("usage: migrate up | up-to <version> | down | version | pending")
	}

	cfg, err := config.NewConfig(logger.Discard())
	if err != nil {
		return err
	}

	log, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN())))
	defer sqldb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	m := migrate.NewMigrator(sqldb, log)
	switch args[0] {
	case "up":
		return m.Up(ctx)
	case "up-to":
		if len(args) < 2 {
			return fmt.Errorf("up-to requires a version")
		}
		version, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		return m.UpTo(ctx, version)
	case "down":
		return m.Down(ctx)
	case "version":
		v, err := m.Version(ctx)
		if err != nil {
			return err
		}
		fmt.Println(v)
		return nil
	case "pending":
		pending, err := m.Pending(ctx)
		if err != nil {
			return err
		}
		for _, v := range pending {
			fmt.Println(v)
		}
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}
