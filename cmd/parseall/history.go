package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thywilljoshua/doc-parser/internal/history"
)

func historyCmd(o *options) *cobra.Command {
	var (
		limit int
		runID string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs, or the documents of one run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.settings(cmd)
			if err != nil {
				return err
			}
			if cfg.HistoryDB == "" {
				return errors.New("no history database configured (use --history or PARSE_HISTORY_DB)")
			}
			store, err := history.Open(cfg.HistoryDB)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if runID != "" {
				rows, err := store.Documents(cmd.Context(), runID)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, renderRows(rows))
				return nil
			}
			runs, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, renderRuns(runs))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs to list")
	cmd.Flags().StringVar(&runID, "run", "", "show the documents of this run")
	return cmd
}
