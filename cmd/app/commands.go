package main

import (
	"context"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/allisson/zeroalloc/cmd/app/commands"
)

func getCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "audit",
			Usage: "Run a stress workload through the allocator chain and verify every free was zeroed",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "raw",
					Value: false,
					Usage: "Bypass the zero-on-free layer (the audit is expected to fail)",
				},
				&cli.IntFlag{
					Name:    "workers",
					Aliases: []string{"w"},
					Usage:   "Concurrent workers (default from STRESS_WORKERS)",
				},
				&cli.IntFlag{
					Name:    "iterations",
					Aliases: []string{"n"},
					Usage:   "Cycles per worker (default from STRESS_ITERATIONS)",
				},
				&cli.StringFlag{
					Name:    "format",
					Aliases: []string{"f"},
					Value:   commands.FormatText,
					Usage:   "Output format: 'text' or 'json'",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunAuditCommand(ctx, commands.AuditOptions{
					Raw:        cmd.Bool("raw"),
					Workers:    int(cmd.Int("workers")),
					Iterations: int(cmd.Int("iterations")),
					Format:     cmd.String("format"),
				}, os.Stdout)
			},
		},
		{
			Name:  "serve",
			Usage: "Start the metrics server and run audit rounds until interrupted",
			Flags: []cli.Flag{
				&cli.DurationFlag{
					Name:    "interval",
					Aliases: []string{"i"},
					Value:   10 * time.Second,
					Usage:   "Delay between stress rounds",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunServe(ctx, version, cmd.Duration("interval"))
			},
		},
	}
}
