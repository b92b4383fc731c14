package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/guidance/internal/cli"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and maintain sessions in the configured store",
	Long: `Operates on the store selected by the configuration. With the default
in-memory store there is nothing to see across processes; point store.driver at
redis or file to manage the sessions of running servers.`,
}

var sessionsListCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List live session IDs",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := stackFor(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		ids, err := st.Engine.List(cmd.Context())
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print a session snapshot as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := stackFor(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		snap, err := st.Engine.Inspect(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	},
}

var sessionsSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Evict sessions idle for longer than --max-idle",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := stackFor(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		maxIdle, _ := cmd.Flags().GetDuration("max-idle")
		if !cmd.Flags().Changed("max-idle") {
			maxIdle = st.Config.Session.IdleTimeout
		}
		evicted, err := st.Engine.Sweep(cmd.Context(), maxIdle)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "evicted %d session(s)\n", len(evicted))
		for _, id := range evicted {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

var sessionsArchiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "List archived session records",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := stackFor(cmd)
		if err != nil {
			return err
		}
		defer st.Close()
		if st.Archive == nil {
			return fmt.Errorf("no archive configured (set archive.driver to sqlite)")
		}

		limit, _ := cmd.Flags().GetInt("limit")
		records, err := st.Archive.List(cmd.Context(), limit)
		if err != nil {
			return err
		}
		for _, r := range records {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\tescalated=%t\n",
				r.ID, r.Variant, r.State, r.ArchivedAt.Format(time.RFC3339), r.Escalated)
		}
		return nil
	},
}

func stackFor(cmd *cobra.Command) (*cli.Stack, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return cli.NewStack(cfg, logger)
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsSweepCmd, sessionsArchiveCmd)

	sessionsSweepCmd.Flags().Duration("max-idle", 30*time.Minute, "Evict sessions idle for longer than this (default: session.idle_timeout)")
	sessionsArchiveCmd.Flags().Int("limit", 20, "Maximum number of records to list (0 for all)")
}
