package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"BlogDigest/internal/app"
	"BlogDigest/internal/config"
	"BlogDigest/internal/domain"
	"BlogDigest/internal/logging"
)

func main() {
	if err := rootApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootApp() *cli.App {
	return &cli.App{
		Name:  "blogdigest",
		Usage: "Collect engineering blog posts and email a daily digest",
		Description: `Discovers RSS/Atom feeds for the configured blogs, selects the posts
		published since the last run, summarizes them and emails the digest.

		One invocation is one run; schedule it with cron or a CronJob.
		Settings come from a YAML file (--config or BLOGDIGEST_CONFIG), .env and
		environment variables such as SENDGRID_API_KEY and FROM_EMAIL.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the YAML configuration",
				EnvVars: []string{"BLOGDIGEST_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			runCmd(),
			resolveCmd(),
		},
	}
}

func runCmd() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run the digest pipeline once",
		Flags: []cli.Flag{
			&cli.TimestampFlag{
				Name:   "since",
				Usage:  "novelty window start (RFC3339), overrides window.mode",
				Layout: time.RFC3339,
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "render and persist the digest without sending email",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			logger := logging.New(cfg.Logging.Level)

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(ctx, cfg, logger)
			if err != nil {
				logger.Error("cannot start", "error", err)
				return cli.Exit(err.Error(), 1)
			}
			defer application.Close()

			report, err := application.Run(ctx, app.RunOptions{
				Since:  c.Timestamp("since"),
				DryRun: c.Bool("dry-run"),
			})
			if err != nil {
				logger.Error("run aborted", "error", err)
				return cli.Exit(err.Error(), 1)
			}

			fmt.Printf("run %s: %s (%s)\n", report.RunID, report.Outcome, report.Reason)
			if !report.Outcome.Succeeded() {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

func resolveCmd() *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Print the candidate feeds discovered for a blog URL",
		ArgsUsage: "<url>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("resolve expects exactly one URL", 2)
			}

			url := c.Args().First()

			// Discovery needs neither sources nor credentials.
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				cfg = config.Defaults()
			}
			logger := logging.New(cfg.Logging.Level)

			ctx, cancel := context.WithTimeout(c.Context, 2*time.Minute)
			defer cancel()

			candidates := app.NewResolver(cfg, nil, logger).Resolve(ctx, domain.Source{Name: url, URL: url})
			if len(candidates) == 0 {
				return cli.Exit("no feed found", 1)
			}
			for _, cand := range candidates {
				fmt.Printf("%3d  %-10s  %s\n", cand.Confidence, cand.Strategy, cand.URL)
			}
			return nil
		},
	}
}
