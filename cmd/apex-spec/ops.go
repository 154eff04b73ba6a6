package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/HendryAvila/apex-spec/internal/catalog"
	"github.com/HendryAvila/apex-spec/internal/journal"
	apexserver "github.com/HendryAvila/apex-spec/internal/server"
	"github.com/spf13/cobra"
)

func newStateCmd(opts *rootOptions) *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Print the project state document",
		Long: `Print .spec_system/state.json for a project, exactly as stored.

Examples:
  apex-spec state
  apex-spec state --project /work/app`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(opts)
			if err != nil {
				return err
			}
			deps, cleanup := apexserver.NewDeps(cfg, logger)
			defer cleanup()

			out, err := deps.Service.GetState(cmd.Context(), project)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "project directory (defaults to the configured project)")
	return cmd
}

func newCommandsCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "commands",
		Short: "List the workflow commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(opts)
			if err != nil {
				return err
			}
			deps, cleanup := apexserver.NewDeps(cfg, logger)
			defer cleanup()

			c, err := deps.Service.ListCommands(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), c)
			}
			return writeCommandTable(cmd.OutOrStdout(), c)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output results as JSON")
	return cmd
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var (
		project string
		limit   int
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent workflow operations",
		Long: `Show recent operations recorded in the journal, newest first.

Examples:
  apex-spec history
  apex-spec history --project '*' --limit 50`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(opts)
			if err != nil {
				return err
			}
			deps, cleanup := apexserver.NewDeps(cfg, logger)
			defer cleanup()

			entries, err := deps.Service.History(cmd.Context(), project, limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), entries)
			}
			return writeHistoryTable(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "project directory, or '*' for all projects")
	cmd.Flags().IntVar(&limit, "limit", journal.DefaultLimit, "Maximum number of entries to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output results as JSON")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeCommandTable(w io.Writer, c *catalog.Catalog) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDESCRIPTION")
	for _, cmd := range c.Commands {
		fmt.Fprintf(tw, "%s\t%s\n", cmd.Name, cmd.Description)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d command(s)\n", c.Count)
	return err
}

func writeHistoryTable(w io.Writer, entries []journal.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No operations recorded.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tTOOL\tOUTCOME\tDURATION\tPROJECT")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%dms\t%s\n", e.CreatedAt, e.Tool, e.Outcome, e.DurationMS, e.ProjectDir)
	}
	return tw.Flush()
}
