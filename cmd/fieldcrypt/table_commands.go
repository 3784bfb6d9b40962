package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"

	"github.com/ai8future/fieldcrypt"
	"github.com/ai8future/fieldcrypt/cmd/fieldcrypt/commands"
	"github.com/ai8future/fieldcrypt/metrics"
	"github.com/ai8future/fieldcrypt/store/sqlstore"
)

func tableFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "table",
			Required: true,
			Usage:    "Table name",
		},
		&cli.StringSliceFlag{
			Name:  "encrypted",
			Usage: "Encrypted-only field as name:type (repeatable)",
		},
		&cli.StringSliceFlag{
			Name:  "dual",
			Usage: "Searchable field as name:type[:normalizer] (repeatable)",
		},
		&cli.StringSliceFlag{
			Name:  "unique",
			Usage: "Dual field whose digest must be unique (repeatable)",
		},
		&cli.StringFlag{
			Name:  "metrics-textfile",
			Usage: "Write Prometheus metrics to this file when done",
		},
	}
}

// tableAction opens the configured database and hands the table's codecs to run.
func tableAction(
	run func(context.Context, *runtime, *sqlstore.Store, []fieldcrypt.Codec) error,
) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		rt, err := load()
		if err != nil {
			return err
		}
		defer rt.close()

		codecs, err := commands.BuildCodecs(rt.keys, commands.FieldFlags{
			Encrypted: cmd.StringSlice("encrypted"),
			Dual:      cmd.StringSlice("dual"),
			Unique:    cmd.StringSlice("unique"),
		})
		if err != nil {
			return err
		}

		reg := prometheus.NewRegistry()
		m := metrics.New(rt.cfg.MetricsNamespace, reg)
		for i, c := range codecs {
			codecs[i] = m.Instrument(c)
		}

		db, err := sqlstore.Open(ctx, rt.cfg.DBDriver, rt.cfg.DBConnectionString, sqlstore.WithLogger(rt.logger))
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		if err := run(ctx, rt, db, codecs); err != nil {
			return err
		}

		if path := cmd.String("metrics-textfile"); path != "" {
			if err := prometheus.WriteToTextfile(path, reg); err != nil {
				return fmt.Errorf("failed to write metrics: %w", err)
			}
		}
		return nil
	}
}

func getTableCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "create-table",
			Usage: "Create a table with encrypted and searchable columns",
			Flags: tableFlags(),
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return tableAction(func(ctx context.Context, rt *runtime, db *sqlstore.Store, codecs []fieldcrypt.Codec) error {
					return commands.RunCreateTable(ctx, db, rt.logger, commands.DefaultIO(), cmd.String("table"), codecs)
				})(ctx, cmd)
			},
		},
		{
			Name:  "rotate-table",
			Usage: "Re-encrypt every row of a table under the primary key",
			Flags: tableFlags(),
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return tableAction(func(ctx context.Context, rt *runtime, db *sqlstore.Store, codecs []fieldcrypt.Codec) error {
					return commands.RunRotateTable(ctx, db, rt.logger, commands.DefaultIO(), cmd.String("table"), codecs)
				})(ctx, cmd)
			},
		},
	}
}
