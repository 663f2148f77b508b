package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/amaumene/plexschedule/internal/api"
	"github.com/amaumene/plexschedule/internal/models"
	"github.com/amaumene/plexschedule/internal/scheduler"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	run := newRunCommand()

	cmd := &cobra.Command{
		Use:   "plexschedule",
		Short: "Mark Plex items unwatched on a recurring schedule",
		Long: `plexschedule keeps a list of scheduled actions that mark movies and
episodes unwatched in a Plex library, so they resurface in On Deck.

Annual actions re-surface a movie every N years. Series actions walk a
show one episode at a time, waiting until the previous episode has been
watched.

Without a subcommand, plexschedule performs a single run.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:         run.RunE,
	}
	cmd.Flags().AddFlagSet(run.Flags())

	cmd.AddCommand(run)
	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newSeedCommand())
	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newAddCommand())

	return cmd
}

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute every due action once",
		RunE: func(cmd *cobra.Command, args []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			date, _ := cmd.Flags().GetString("date")

			today, err := parseDate(date)
			if err != nil {
				return err
			}

			a, err := newApp(dryRun)
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.seeder().SeedExamples(today); err != nil {
				return err
			}

			runner, err := a.runner()
			if err != nil {
				return err
			}

			summary, err := runner.Run(cmd.Context(), today)
			fmt.Fprintf(cmd.OutOrStdout(), "Attempted %d, acted on %d\n", summary.Attempted, summary.Acted)
			return err
		},
	}

	cmd.Flags().Bool("dry-run", false, "Log instead of marking items unwatched")
	cmd.Flags().String("date", "", "Run as if today were this date (YYYY-MM-DD)")

	return cmd
}

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run on a cron schedule and serve the status API",
		RunE: func(cmd *cobra.Command, args []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			a, err := newApp(dryRun)
			if err != nil {
				return err
			}
			defer a.Close()

			a.logger.Info("Starting plexschedule")

			if _, err := a.seeder().SeedExamples(models.Date(nowFunc())); err != nil {
				return err
			}

			runner, err := a.runner()
			if err != nil {
				return err
			}

			sched := scheduler.NewScheduler(runner, a.cfg.RunSchedule, a.logger)
			if err := sched.Start(); err != nil {
				return fmt.Errorf("failed to start scheduler: %w", err)
			}
			defer sched.Stop()

			server := api.NewServer(a.cfg, a.db, runner, a.metrics, a.logger)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			serverErrChan := make(chan error, 1)
			go func() {
				if err := server.Start(ctx); err != nil {
					serverErrChan <- err
				}
			}()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			a.logger.Info("plexschedule is running")

			select {
			case err := <-serverErrChan:
				return fmt.Errorf("server error: %w", err)
			case sig := <-sigChan:
				a.logger.WithField("signal", sig).Info("Received shutdown signal")
				cancel()
				if err := server.Shutdown(context.Background()); err != nil {
					a.logger.WithError(err).Error("Error during server shutdown")
				}
			}

			a.logger.Info("plexschedule stopped")
			return nil
		},
	}

	cmd.Flags().Bool("dry-run", false, "Log instead of marking items unwatched")

	return cmd
}

func newSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the example actions in an empty database",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.seeder().SeedExamples(models.Date(nowFunc()))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %d example actions\n", n)
			return nil
		},
	}
}

func newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scheduled actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")

			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.Close()

			var actions []*models.Action
			if all {
				actions, err = a.db.GetAllActions()
			} else {
				actions, err = a.db.GetPendingActions()
			}
			if err != nil {
				return fmt.Errorf("failed to list actions: %w", err)
			}

			if len(actions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No actions scheduled.")
				return nil
			}

			printActions(cmd, actions)
			return nil
		},
	}

	cmd.Flags().Bool("all", false, "Include completed actions")

	return cmd
}

func printActions(cmd *cobra.Command, actions []*models.Action) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tNAME\tSECTION\tDUE\tRECURRENCE\tSTATUS")

	for _, a := range actions {
		recurrence := fmt.Sprintf("every %d year(s)", a.EveryXYears)
		if a.Kind == models.KindSeriesDaily {
			recurrence = fmt.Sprintf("episode %d, every %d day(s)", a.EpisodeIndex, a.EveryXDays)
		}

		status := "pending"
		if a.Completed {
			status = "completed"
		}

		section := a.Section
		if section == "" {
			section = "-"
		}

		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			a.ID, a.Kind, a.Name, section, a.DueDate.Format("2006-01-02"), recurrence, status)
	}

	w.Flush()
}
