package main

import (
	"fmt"

	"github.com/amaumene/plexschedule/internal/models"
	"github.com/spf13/cobra"
)

func newAddCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Schedule a new action",
	}

	cmd.PersistentFlags().String("section", "", "Library section to search (defaults per kind, \"*\" searches everything)")
	cmd.PersistentFlags().String("due", "", "First due date (YYYY-MM-DD, default today)")
	cmd.PersistentFlags().Int("probability", models.DefaultProbability, "Percent chance of marking unwatched when due")

	cmd.AddCommand(newAddAnnualCommand())
	cmd.AddCommand(newAddSeriesCommand())

	return cmd
}

func newAddAnnualCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "annual <title>",
		Short: "Mark a movie unwatched every few years",
		Long: `Mark a movie unwatched every few years.

Examples:
  # Every year in time for the 4th of July
  plexschedule add annual "Independence Day" --due 2024-06-30

  # Every other year, searching the whole library
  plexschedule add annual "V for Vendetta" --due 2024-11-01 --every 2 --section "*"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			years, _ := cmd.Flags().GetInt("every")
			return addAction(cmd, &models.Action{
				Kind:        models.KindAnnual,
				Name:        args[0],
				EveryXYears: years,
			})
		},
	}

	cmd.Flags().Int("every", models.DefaultEveryXYears, "Years between occurrences")

	return cmd
}

func newAddSeriesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "series <show>",
		Short: "Mark a show's episodes unwatched one at a time",
		Long: `Mark a show's episodes unwatched one at a time.

Each episode becomes due a fixed number of days after the previous one,
and is only marked once the previous episode has been watched.

Examples:
  # One episode a week starting today
  plexschedule add series "Plebs"

  # Every three days starting from the fifth episode
  plexschedule add series "Plebs" --every-days 3 --episode 4`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			days, _ := cmd.Flags().GetInt("every-days")
			episode, _ := cmd.Flags().GetInt("episode")
			return addAction(cmd, &models.Action{
				Kind:         models.KindSeriesDaily,
				Name:         args[0],
				EveryXDays:   days,
				EpisodeIndex: episode,
			})
		},
	}

	cmd.Flags().Int("every-days", models.DefaultEveryXDays, "Days between episodes")
	cmd.Flags().Int("episode", 0, "Zero-based index of the first episode in air order")

	return cmd
}

func addAction(cmd *cobra.Command, action *models.Action) error {
	due, _ := cmd.Flags().GetString("due")
	section, _ := cmd.Flags().GetString("section")
	probability, _ := cmd.Flags().GetInt("probability")

	dueDate, err := parseDate(due)
	if err != nil {
		return err
	}
	action.DueDate = dueDate
	action.Probability = probability

	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	switch {
	case section == "*":
		action.Section = ""
	case section != "":
		action.Section = section
	case action.Kind == models.KindAnnual:
		action.Section = a.cfg.DefaultMovieSection
	default:
		action.Section = a.cfg.DefaultShowSection
	}

	if err := a.seeder().Add(action); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Scheduled action %d: %s\n", action.ID, action)
	return nil
}
