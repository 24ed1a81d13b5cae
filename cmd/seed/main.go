package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/andresuchdata/stockzero/backend-go/internal/config"
	"github.com/andresuchdata/stockzero/backend-go/internal/repository/postgres"
	"github.com/andresuchdata/stockzero/backend-go/pkg/logger"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

type dbKey struct{}

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "db-url",
		Usage:    "Database connection string",
		Required: true,
		EnvVars:  []string{"DATABASE_URL"},
	}
}

func initDB(c *cli.Context) error {
	db, err := sqlx.Open("pgx", c.String("db-url"))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	ctx, cancel := context.WithTimeout(c.Context, 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	c.Context = context.WithValue(c.Context, dbKey{}, postgres.Wrap(db))
	return nil
}

func closeDB(c *cli.Context) error {
	if db, ok := c.Context.Value(dbKey{}).(*postgres.DB); ok && db != nil {
		return db.Close()
	}
	return nil
}

func dbFrom(c *cli.Context) *postgres.DB {
	return c.Context.Value(dbKey{}).(*postgres.DB)
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		logger.Log.Debug().Err(err).Msg("no .env file loaded")
	}
	cfg := config.Load()
	logger.Configure(cfg.Server.LogLevel, cfg.Server.LogJSON)

	app := &cli.App{
		Name:  "seed",
		Usage: "Load sales, receipt and stock files and run the reorder pipeline",
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Apply database migrations",
				Flags:  []cli.Flag{newDBURLFlag()},
				Before: initDB,
				After:  closeDB,
				Action: func(c *cli.Context) error {
					return dbFrom(c).Migrate(c.Context)
				},
			},
			{
				Name:  "import",
				Usage: "Import one CSV or XLSX file",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.StringFlag{
						Name:     "file",
						Usage:    "Path of the file to import",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "kind",
						Usage: "sales, receipts or stock; inferred from the path when empty",
					},
				},
				Before: initDB,
				After:  closeDB,
				Action: runImport,
			},
			{
				Name:  "pipeline",
				Usage: "Import every file of a source and run the reorder analysis",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.StringFlag{
						Name:  "source",
						Usage: "local, s3 or drive",
						Value: "local",
					},
					&cli.StringFlag{
						Name:    "dir",
						Usage:   "Directory scanned by the local source",
						EnvVars: []string{"PIPELINE_INBOX_DIR"},
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "Pipeline name used for run tracking",
						Value: "seed",
					},
					&cli.BoolFlag{
						Name:  "retry",
						Usage: "Retry failed files of earlier runs instead of starting a new one",
					},
					&cli.BoolFlag{
						Name:  "skip-analysis",
						Usage: "Only import files",
					},
					&cli.StringSliceFlag{
						Name:  "format",
						Usage: "Report formats written to the output directory (csv, xlsx)",
						Value: cli.NewStringSlice("csv"),
					},
				},
				Before: initDB,
				After:  closeDB,
				Action: func(c *cli.Context) error {
					return runPipeline(c, cfg)
				},
			},
			{
				Name:  "runs",
				Usage: "List recent pipeline runs",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.StringFlag{Name: "name", Usage: "Only runs of this pipeline"},
					&cli.IntFlag{Name: "limit", Value: 20},
				},
				Before: initDB,
				After:  closeDB,
				Action: listRuns,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg(strings.Join(os.Args[1:], " "))
	}
}
