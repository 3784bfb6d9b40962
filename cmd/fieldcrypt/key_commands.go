package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/ai8future/fieldcrypt/cmd/fieldcrypt/commands"
)

func tokenFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "token",
		Aliases:  []string{"t"},
		Required: true,
		Usage:    "Encrypted token (use - to read it from stdin)",
	}
}

func getKeyCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "generate-key",
			Usage: "Generate a new random 32-byte key",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunGenerateKey(commands.DefaultIO())
			},
		},
		{
			Name:  "rotate",
			Usage: "Re-encrypt a token under the primary key",
			Flags: []cli.Flag{tokenFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				rt, err := load()
				if err != nil {
					return err
				}
				defer rt.close()

				return commands.RunRotate(rt.keys, commands.DefaultIO(), cmd.String("token"))
			},
		},
		{
			Name:  "needs-rotation",
			Usage: "Report which key a token was encrypted with",
			Flags: []cli.Flag{tokenFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				rt, err := load()
				if err != nil {
					return err
				}
				defer rt.close()

				return commands.RunNeedsRotation(rt.keys, commands.DefaultIO(), cmd.String("token"))
			},
		},
	}
}
