package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"

	"github.com/mtlprog/vaultfee/internal/analysis"
	"github.com/mtlprog/vaultfee/internal/chain"
	"github.com/mtlprog/vaultfee/internal/config"
	"github.com/mtlprog/vaultfee/internal/database"
	"github.com/mtlprog/vaultfee/internal/domain"
	"github.com/mtlprog/vaultfee/internal/eventstore"
	"github.com/mtlprog/vaultfee/internal/export"
	"github.com/mtlprog/vaultfee/internal/metrics"
	"github.com/mtlprog/vaultfee/internal/price"
	"github.com/mtlprog/vaultfee/internal/report"
)

const (
	formatText = "text"
	formatJSON = "json"
)

func analyzeCommand() *cli.Command {
	cfg := config.Load()
	return &cli.Command{
		Name:      "analyze",
		Usage:     "compute profit and fees for a depositor",
		ArgsUsage: "<depositor address>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "vault", Aliases: []string{"v"}, Value: cfg.DefaultVaultAddress, Usage: "vault address"},
			&cli.Uint64Flag{Name: "chain", Aliases: []string{"c"}, Value: cfg.DefaultChainID, Usage: "chain id"},
			&cli.BoolFlag{Name: "stable-fees", Usage: "verify the performance fee stayed constant over the depositor's history"},
			&cli.StringFlag{Name: "format", Value: formatText, Usage: "output format: text or json"},
			&cli.StringFlag{Name: "xlsx", Usage: "also export the timeline to this .xlsx file"},
			&cli.BoolFlag{Name: "sheets", Usage: "also export the timeline to the configured Google Sheet"},
			&cli.BoolFlag{Name: "debug", Usage: "enable debug logging"},
		},
		Action: runAnalyze,
	}
}

func runAnalyze(c *cli.Context) error {
	if c.Bool("debug") {
		setupLogger(true)
	}
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one depositor address, got %d arguments", c.NArg())
	}

	format := c.String("format")
	if format != formatText && format != formatJSON {
		return fmt.Errorf("unsupported format %q", format)
	}

	account, err := domain.ParseAddress(c.Args().First())
	if err != nil {
		return fmt.Errorf("depositor: %w", err)
	}
	vault, err := domain.ParseAddress(c.String("vault"))
	if err != nil {
		return fmt.Errorf("vault: %w", err)
	}

	cfg := config.Load()
	reg, err := config.LoadChains()
	if err != nil {
		return err
	}
	ch, err := reg.Get(c.Uint64("chain"))
	if err != nil {
		return err
	}

	ctx := c.Context
	m := metrics.New()
	start := time.Now()
	defer func() {
		m.SetRunDuration(time.Since(start))
		if cfg.MetricsTextfile == "" {
			return
		}
		if err := m.WriteTextfile(cfg.MetricsTextfile); err != nil {
			slog.Warn("could not write metrics textfile", "path", cfg.MetricsTextfile, "error", err)
		}
	}()

	client, err := chain.SelectEndpoint(ctx, ch.RPCCandidates(cfg.RPCURL), chain.ClientOptions{
		Timeout:    cfg.RPCTimeout,
		MaxRetries: cfg.RPCRetryMax,
		BaseDelay:  cfg.RPCRetryBaseDelay,
		Metrics:    m,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", ch.Name, err)
	}
	slog.Info("using rpc endpoint", "chain", ch.Name, "url", client.URL())

	pool, err := connectIfNeeded(ctx, cfg)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}

	var events analysis.EventSource
	switch cfg.EventStore {
	case config.EventStorePostgres:
		events = eventstore.NewPgStore(pool)
	default:
		events = eventstore.NewGraphQLStore(cfg.EnvioGraphQLURL, cfg.EnvioPassword, cfg.RPCTimeout)
	}

	reader := chain.NewVaultReader(client, vault)

	var samples price.SampleStore
	if cfg.PPSStoreEnabled {
		samples = price.NewPgSampleStore(pool, ch.ID, vault)
	}
	cache := price.NewCache(reader, samples, m)

	svc := analysis.NewService(events, reader, cache, analysis.Options{
		ChainName:           ch.Name,
		PrefetchConcurrency: cfg.PriceFetchConcurrency,
		Metrics:             m,
	})

	rep, err := svc.Analyze(ctx, analysis.Request{
		Account:            account,
		Vault:              vault,
		ChainID:            ch.ID,
		VerifyFeeStability: c.Bool("stable-fees"),
	})
	if err != nil {
		return err
	}

	if format == formatJSON {
		err = report.WriteJSON(c.App.Writer, rep)
	} else {
		err = report.WriteText(c.App.Writer, rep)
	}
	if err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	return exportReport(ctx, c, cfg, rep)
}

// connectIfNeeded opens the database when the event store or the price
// sample store needs it, applying pending migrations.
func connectIfNeeded(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	if cfg.EventStore != config.EventStorePostgres && !cfg.PPSStoreEnabled {
		return nil, nil
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required for the postgres event store or price sample store")
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.PPSStoreEnabled {
		if err := migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return pool, nil
}

func exportReport(ctx context.Context, c *cli.Context, cfg config.Config, rep domain.Report) error {
	if path := c.String("xlsx"); path != "" {
		if err := export.NewService(export.NewXLSXWriter(path)).Export(ctx, rep); err != nil {
			return fmt.Errorf("exporting xlsx: %w", err)
		}
		slog.Info("exported workbook", "path", path)
	}

	if c.Bool("sheets") {
		if cfg.GoogleCredentialsJSON == "" || cfg.SheetsSpreadsheetID == "" {
			return errors.New("GOOGLE_CREDENTIALS_JSON and SHEETS_SPREADSHEET_ID are required for --sheets")
		}
		w, err := export.NewSheetsWriter(ctx, cfg.SheetsSpreadsheetID, cfg.GoogleCredentialsJSON)
		if err != nil {
			return err
		}
		if err := export.NewService(w).Export(ctx, rep); err != nil {
			return fmt.Errorf("exporting to google sheets: %w", err)
		}
		slog.Info("exported to google sheets", "spreadsheet", cfg.SheetsSpreadsheetID)
	}
	return nil
}
