package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v3"

	"davsync/internal/dav"
	"davsync/internal/engine"
	"davsync/internal/shared"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// cliSink prints engine progress and log lines to the terminal.
type cliSink struct {
	runner *Runner
}

func (s cliSink) Progress(u engine.ProgressUpdate) {
	switch u.Phase {
	case engine.PhaseConnect:
		s.runner.writePlain("%s\n", u.Message)
	case engine.PhaseDone:
	default:
		if u.Total > 0 {
			s.runner.writePlain("  [%3d%%] %s\n", u.Percent, u.Message)
		} else {
			s.runner.writePlain("  %s\n", u.Message)
		}
	}
}

func (s cliSink) Log(level, message string) {
	switch level {
	case engine.LogError:
		s.runner.writePlain("%s %s\n", errorStyle.Render("✗"), message)
	case engine.LogWarning:
		s.runner.writePlain("%s %s\n", warnStyle.Render("!"), message)
	default:
		s.runner.writePlain("%s\n", message)
	}
}

// Run performs a one-shot migration between the two endpoints named in the
// config file, without touching the database.
func (r *Runner) Run(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd.String("config"))

	if config.Source.URL == "" || config.Destination.URL == "" {
		return fmt.Errorf("%w: source and destination endpoints must be configured", shared.ErrMissingConfig)
	}

	cfg := engine.Config{
		Source:           endpointClient(config.Source),
		Destination:      endpointClient(config.Destination),
		MigrateCalendars: config.Sync.MigrateCalendars,
		MigrateContacts:  config.Sync.MigrateContacts,
		CreateMissing:    config.Sync.CreateCollections && !cmd.Bool("no-create"),
		SkipDummyEvents:  config.Sync.SkipDummyEvents || cmd.Bool("skip-dummy"),
		DryRun:           cmd.Bool("dry-run"),
		CalendarsOnly:    cmd.Bool("calendars-only"),
		ContactsOnly:     cmd.Bool("contacts-only"),
		UploadRate:       config.Sync.UploadRate,
	}

	eng, err := engine.New(cfg, r.logger)
	if err != nil {
		return err
	}

	r.writePlain("%s\n\n", headerStyle.Render("Starting synchronization"))

	stats, err := eng.Run(ctx, engine.NewControl(), cliSink{runner: r})
	if stats != nil {
		r.printSummary(stats, cfg.DryRun)
	}
	return err
}

func (r *Runner) printSummary(stats *engine.Stats, dryRun bool) {
	title := "Synchronization Complete"
	if dryRun {
		title = "Dry Run Complete (no changes were made)"
	}
	if stats.Partial {
		title = warnStyle.Render("Synchronization Interrupted")
	} else {
		title = successStyle.Render(title)
	}

	r.writePlain("\n%s\n", headerStyle.Render("═══════════════════════════════════════"))
	r.writePlain("%s\n", title)
	r.writePlain("%s\n", headerStyle.Render("═══════════════════════════════════════"))
	r.writePlain("Calendars:     %d migrated, %d failed\n", stats.Events.CollectionsMigrated, stats.Events.CollectionsFailed)
	r.writePlain("Events:        %d migrated, %d skipped, %d failed\n", stats.Events.ItemsMigrated, stats.Events.ItemsSkipped, stats.Events.ItemsFailed)
	r.writePlain("Address books: %d migrated, %d failed\n", stats.Contacts.CollectionsMigrated, stats.Contacts.CollectionsFailed)
	r.writePlain("Contacts:      %d migrated, %d skipped, %d failed\n", stats.Contacts.ItemsMigrated, stats.Contacts.ItemsSkipped, stats.Contacts.ItemsFailed)

	if len(stats.Calendars) > 0 {
		r.writePlain("\nCalendars:\n")
		for _, d := range stats.Calendars {
			r.writePlain("  - %s (%d events, %d skipped)\n", d.Name, d.ItemCount, d.SkippedCount)
		}
	}
	if len(stats.AddressBooks) > 0 {
		r.writePlain("\nAddress books:\n")
		for _, d := range stats.AddressBooks {
			r.writePlain("  - %s (%d contacts)\n", d.Name, d.ItemCount)
		}
	}
}

// endpointClient builds an endpoint adapter from a config block.
func endpointClient(e shared.EndpointConfig) dav.Client {
	return dav.NewClient(dav.ClientConfig{
		URL:           e.URL,
		Username:      e.Username,
		Password:      e.Password,
		PrincipalPath: e.PrincipalPath,
		ServerType:    e.ServerType,
		VerifySSL:     e.VerifySSL,
	})
}

func runCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run a one-shot migration between the configured endpoints",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Enumerate and report without writing to the destination",
			},
			&cli.BoolFlag{
				Name:  "skip-dummy",
				Usage: "Skip placeholder events whose summary is 'dummy'",
			},
			&cli.BoolFlag{
				Name:  "calendars-only",
				Usage: "Migrate calendars only",
			},
			&cli.BoolFlag{
				Name:  "contacts-only",
				Usage: "Migrate contacts only",
			},
			&cli.BoolFlag{
				Name:  "no-create",
				Usage: "Do not create missing destination collections",
			},
		},
		Action: r.Run,
	}
}
