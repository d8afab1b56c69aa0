package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"davsync/internal/repositories"
	"davsync/internal/shared"
)

// JobsList prints all jobs, optionally filtered by status.
func (r *Runner) JobsList(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd.String("config"))

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	jobs, err := repositories.NewJobRepository(db).List(map[string]any{
		"status": cmd.String("status"),
	})
	if err != nil {
		return err
	}

	out := make([]map[string]any, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.ToMap())
	}
	return r.writeJSON(out, cmd.Bool("pretty"))
}

// JobsShow prints one job with its statistics.
func (r *Runner) JobsShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("%w: job id", shared.ErrMissingArgument)
	}

	config := r.loadConfig(cmd.String("config"))

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	job, err := repositories.NewJobRepository(db).Get(id)
	if err != nil {
		return err
	}
	return r.writeJSON(job.ToMap(), cmd.Bool("pretty"))
}

// JobsLogs prints the log lines recorded for one job.
func (r *Runner) JobsLogs(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("%w: job id", shared.ErrMissingArgument)
	}

	config := r.loadConfig(cmd.String("config"))

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repositories.NewJobRepository(db)
	if _, err := repo.Get(id); err != nil {
		return err
	}

	entries, err := repo.Logs(id, cmd.Int("limit"))
	if err != nil {
		return err
	}

	for _, e := range entries {
		r.writePlain("%s [%s] %s\n", e.Timestamp().Format("2006-01-02 15:04:05"), e.Level(), e.Message())
	}
	return nil
}

func jobsCommand(r *Runner) *cli.Command {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
	prettyFlag := &cli.BoolFlag{
		Name:  "pretty",
		Usage: "Pretty-print JSON output",
		Value: true,
	}

	return &cli.Command{
		Name:  "jobs",
		Usage: "Inspect persisted synchronization jobs",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List jobs",
				Flags: []cli.Flag{
					configFlag,
					prettyFlag,
					&cli.StringFlag{
						Name:  "status",
						Usage: "Filter by status (pending, queued, running, paused, completed, failed)",
					},
				},
				Action: r.JobsList,
			},
			{
				Name:   "show",
				Usage:  "Show one job with its statistics",
				Flags:  []cli.Flag{configFlag, prettyFlag},
				Action: r.JobsShow,
			},
			{
				Name:  "logs",
				Usage: "Print the log lines recorded for a job",
				Flags: []cli.Flag{
					configFlag,
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of lines (0 for all)",
					},
				},
				Action: r.JobsLogs,
			},
		},
	}
}
