package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"davsync/internal/repositories"
	"davsync/internal/server"
	"davsync/internal/shared"
	"davsync/internal/worker"
)

// Serve starts the administrative REST API and the job worker.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd.String("config"))

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	serverRepo := repositories.NewServerRepository(db)
	accountRepo := repositories.NewAccountRepository(db)
	jobRepo := repositories.NewJobRepository(db)
	dialer := repositories.NewClientDialer(db)

	w := worker.NewWorker(jobRepo, dialer, r.logger, config.Sync.UploadRate)

	router := server.NewBasicRouter()
	router.Use(server.Logging(r.logger))
	router.Handler(server.NewServersHandler(serverRepo))
	router.Handler(server.NewAccountsHandler(accountRepo, serverRepo))
	router.Handler(server.NewJobsHandler(jobRepo, accountRepo, w))
	router.Handler(server.NewWorkerHandler(w))
	router.Handle("GET /api/health", http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		fmt.Fprint(rw, `{"status":"ok"}`)
	}))

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	srv := &http.Server{Addr: addr, Handler: router}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w.Start(runCtx)
	defer w.Stop()

	errCh := make(chan error, 1)
	go func() {
		r.logger.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-runCtx.Done():
		r.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	return nil
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the administrative REST API and job worker",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.Serve,
	}
}
