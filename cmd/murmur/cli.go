package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/murmur/internal/classify"
	"github.com/hpungsan/murmur/internal/config"
	"github.com/hpungsan/murmur/internal/errors"
	"github.com/hpungsan/murmur/internal/inbox"
	"github.com/hpungsan/murmur/internal/journal"
	"github.com/hpungsan/murmur/internal/logger"
	"github.com/hpungsan/murmur/internal/pipeline"
	"github.com/hpungsan/murmur/internal/transcribe"
	"github.com/hpungsan/murmur/internal/watch"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(cfg *config.Config, log *logger.Logger) *cli.App {
	app := &cli.App{
		Name:    "murmur",
		Usage:   "Voice-memo capture journal",
		Version: Version,
		Commands: []*cli.Command{
			processCmd(cfg, log),
			inboxCmd(cfg),
			clearCmd(cfg),
			watchCmd(cfg, log),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// newPipeline wires the pipeline over the configured collaborators.
func newPipeline(cfg *config.Config, log *logger.Logger) *pipeline.Pipeline {
	return pipeline.New(
		cfg,
		journal.New(cfg.JournalPath),
		transcribe.NewInvoker(cfg, log.WithComponent("transcribe")),
		classify.New(cfg, log.WithComponent("classify")),
		log.WithComponent("pipeline"),
	)
}

// processCmd creates the process command.
func processCmd(cfg *config.Config, log *logger.Logger) *cli.Command {
	return &cli.Command{
		Name:  "process",
		Usage: "Run the capture pipeline once over all new intake artifacts",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "results", Usage: "Include per-artifact results in output"},
		},
		Action: func(c *cli.Context) error {
			report, err := newPipeline(cfg, log).Run(c.Context)
			if err != nil {
				return outputError(err)
			}
			if !c.Bool("results") {
				report.Results = nil
			}
			return outputJSON(report)
		},
	}
}

// inboxCmd creates the inbox command.
func inboxCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "inbox",
		Usage: "List pending captures grouped by type",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "all", Aliases: []string{"a"}, Usage: "Include processed and archived entries"},
			&cli.BoolFlag{Name: "json", Usage: "Emit raw entries as stored"},
			&cli.IntFlag{Name: "preview", Aliases: []string{"p"}, Value: inbox.DefaultPreviewChars, Usage: "Transcript preview length"},
		},
		Action: func(c *cli.Context) error {
			j := journal.New(cfg.JournalPath)

			if c.Bool("json") {
				entries, err := inbox.Raw(j, c.Bool("all"))
				if err != nil {
					return outputError(err)
				}
				return outputJSON(entries)
			}

			output, err := inbox.List(j, inbox.ListInput{
				All:          c.Bool("all"),
				PreviewChars: c.Int("preview"),
			})
			if err != nil {
				return outputError(err)
			}
			printInbox(output)
			return nil
		},
	}
}

// printInbox renders the grouped listing for humans.
func printInbox(out *inbox.ListOutput) {
	if out.Total == 0 {
		fmt.Println("Inbox empty.")
		return
	}
	fmt.Printf("%d pending capture(s)\n", out.Total)
	for _, g := range out.Groups {
		fmt.Printf("\n%s (%d)\n", g.Type, len(g.Items))
		for _, item := range g.Items {
			fmt.Printf("  %s  [%s/%s]  %s\n", item.ID, item.Topic, item.Urgency, item.Preview)
		}
	}
}

// clearCmd creates the clear command.
func clearCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "clear",
		Usage:     "Mark captures as processed (never deletes entries)",
		ArgsUsage: "[id]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "all", Usage: "Mark every entry processed"},
			&cli.BoolFlag{Name: "new", Usage: "Mark every new entry processed"},
		},
		Action: func(c *cli.Context) error {
			input := inbox.ClearInput{
				All: c.Bool("all"),
				New: c.Bool("new"),
			}
			if c.NArg() > 0 {
				input.ID = c.Args().First()
			}

			output, err := inbox.Clear(journal.New(cfg.JournalPath), input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// watchCmd creates the watch command.
func watchCmd(cfg *config.Config, log *logger.Logger) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Watch the intake directory and process artifacts as they arrive",
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			p := newPipeline(cfg, log)
			wlog := log.WithComponent("watch")
			run := func(ctx context.Context) {
				if _, err := p.Run(ctx); err != nil {
					wlog.WithField("error", err.Error()).Error("capture run failed")
				}
			}

			w := watch.New(cfg.IntakeDir, cfg.WatchDebounce(), run, wlog)
			if err := w.Run(ctx); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if mErr, ok := err.(*errors.MurmurError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", mErr.Code, mErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
