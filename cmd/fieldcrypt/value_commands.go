package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/ai8future/fieldcrypt/cmd/fieldcrypt/commands"
)

func typeFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "type",
		Aliases: []string{"T"},
		Value:   "text",
		Usage:   "Value type (text, char, email, integer, date, datetime, bytes)",
	}
}

func valueFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "value",
		Aliases:  []string{"v"},
		Required: true,
		Usage:    "Plain value (use - to read it from stdin)",
	}
}

func getValueCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "encrypt",
			Usage: "Encrypt a value",
			Flags: []cli.Flag{typeFlag(), valueFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				rt, err := load()
				if err != nil {
					return err
				}
				defer rt.close()

				return commands.RunEncrypt(rt.keys, commands.DefaultIO(), cmd.String("type"), cmd.String("value"))
			},
		},
		{
			Name:  "decrypt",
			Usage: "Decrypt a token",
			Flags: []cli.Flag{typeFlag(), tokenFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				rt, err := load()
				if err != nil {
					return err
				}
				defer rt.close()

				return commands.RunDecrypt(rt.keys, commands.DefaultIO(), cmd.String("type"), cmd.String("token"))
			},
		},
		{
			Name:  "digest",
			Usage: "Compute the lookup digest of a value",
			Flags: []cli.Flag{
				typeFlag(),
				valueFlag(),
				&cli.StringFlag{
					Name:    "normalizer",
					Aliases: []string{"n"},
					Usage:   "Normalizer applied before digesting (none, trim, lower, email, phone)",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				rt, err := load()
				if err != nil {
					return err
				}
				defer rt.close()

				return commands.RunDigest(
					rt.keys,
					commands.DefaultIO(),
					cmd.String("type"),
					cmd.String("normalizer"),
					cmd.String("value"),
				)
			},
		},
	}
}
