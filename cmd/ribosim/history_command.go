package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"ribosim/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		limit   int
		jsonOut bool
	)

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent lab sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(ctx, func(store *history.Store) error {
				sessions, err := store.Recent(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, sessions)
				}
				if len(sessions) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No sessions recorded yet")
					return nil
				}
				rows := make([][]string, 0, len(sessions))
				for _, s := range sessions {
					outcome := s.LastOutcome
					if outcome == "" {
						outcome = "-"
					}
					rows = append(rows, []string{
						shortID(s.ID),
						s.Protein,
						s.Phase,
						strconv.Itoa(s.Attempts),
						outcome,
						s.StartedAt.Local().Format("2006-01-02 15:04"),
						s.Duration().Round(time.Second).String(),
						yesNo(s.Completed()),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable("",
					[]string{"Session", "Protein", "Phase", "Attempts", "Last Outcome", "Started", "Duration", "Done"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignRight, alignLeft}))
				return nil
			})
		},
	}
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of sessions to show")
	historyCmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON")

	historyCmd.AddCommand(newHistoryShowCommand(ctx))
	historyCmd.AddCommand(newHistoryPruneCommand(ctx))
	return historyCmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show the journal of one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(ctx, func(store *history.Store) error {
				id, err := resolveSessionID(cmd, store, args[0])
				if err != nil {
					return err
				}
				events, err := store.Events(cmd.Context(), id)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, events)
				}
				rows := make([][]string, 0, len(events))
				for _, ev := range events {
					what := fmt.Sprintf("%s -> %s", ev.PhaseFrom, ev.PhaseTo)
					if ev.Kind != history.EventPhase {
						what = ev.Outcome
					}
					rows = append(rows, []string{
						ev.CreatedAt.Local().Format("15:04:05.000"),
						string(ev.Kind),
						what,
						ev.Detail,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable("Session "+id,
					[]string{"Time", "Kind", "Change", "Detail"}, rows, nil))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON")
	return cmd
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete sessions older than a number of days",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				return errors.New("--older-than must be positive")
			}
			return withHistory(ctx, func(store *history.Store) error {
				removed, err := store.Prune(cmd.Context(), time.Now().AddDate(0, 0, -days))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d session(s)\n", removed)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "older-than", 90, "Age in days")
	return cmd
}

func withHistory(ctx *commandContext, fn func(*history.Store) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if !cfg.History.Enabled {
		return errors.New("session history is disabled (history.enabled = false)")
	}
	store, err := history.Open(cfg)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()
	return fn(store)
}

// resolveSessionID accepts a full id or the short prefix shown in tables.
func resolveSessionID(cmd *cobra.Command, store *history.Store, arg string) (string, error) {
	sessions, err := store.Recent(cmd.Context(), 500)
	if err != nil {
		return "", err
	}
	var match string
	for _, s := range sessions {
		if s.ID == arg {
			return s.ID, nil
		}
		if len(arg) >= 4 && len(s.ID) >= len(arg) && s.ID[:len(arg)] == arg {
			if match != "" {
				return "", fmt.Errorf("session prefix %q is ambiguous", arg)
			}
			match = s.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("session %q not found", arg)
	}
	return match, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
