package main

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/urfave/cli/v2"

	"github.com/mtlprog/vaultfee/internal/config"
	"github.com/mtlprog/vaultfee/internal/database"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func main() {
	_ = godotenv.Load()
	setupLogger(false)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newApp().RunContext(ctx, os.Args)
	stop()
	if err != nil {
		slog.Error("vaultfee failed", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "vaultfee",
		Usage: "depositor profit and performance fee analysis for tokenized yield vaults",
		Commands: []*cli.Command{
			analyzeCommand(),
			{
				Name:   "chains",
				Usage:  "list supported chains and their RPC endpoints",
				Action: runChains,
			},
			{
				Name:   "migrate",
				Usage:  "apply database migrations for the price sample store",
				Action: runMigrate,
			},
		},
	}
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	})))
}

func runChains(c *cli.Context) error {
	reg, err := config.LoadChains()
	if err != nil {
		return err
	}

	cfg := config.Load()
	for _, ch := range reg.All() {
		fmt.Fprintf(c.App.Writer, "%-6d %-10s env=%s\n", ch.ID, ch.Name, ch.RPCEnv)
		for _, url := range ch.RPCCandidates(cfg.RPCURL) {
			fmt.Fprintf(c.App.Writer, "       %s\n", url)
		}
	}
	return nil
}

func runMigrate(c *cli.Context) error {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	pool, err := database.Connect(c.Context, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	return migrate(c.Context, pool)
}

func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("creating migrations sub-fs: %w", err)
	}
	return database.RunMigrations(ctx, pool, sub)
}
