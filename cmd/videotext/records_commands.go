package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"videotext/internal/records"
	"videotext/internal/textutil"
)

func newRecordsCommand(ctx *commandContext) *cobra.Command {
	recordsCmd := &cobra.Command{
		Use:   "records",
		Short: "Inspect and import records",
	}
	recordsCmd.AddCommand(newRecordsImportCommand(ctx))
	recordsCmd.AddCommand(newRecordsListCommand(ctx))
	recordsCmd.AddCommand(newRecordsStatsCommand(ctx))
	return recordsCmd
}

func newRecordsImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.json|->",
		Short: "Import records from a JSON array",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader
			if args[0] == "-" {
				in = cmd.InOrStdin()
			} else {
				file, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open import file: %w", err)
				}
				defer file.Close()
				in = file
			}

			entries, err := records.DecodeImport(in)
			if err != nil {
				return err
			}
			store, err := ctx.openStore()
			if err != nil {
				return fmt.Errorf("open records: %w", err)
			}
			defer store.Close()

			report, err := store.Import(cmd.Context(), entries)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Imported %d records (%d new, %d updated, %d rejected)\n",
				report.Created+report.Updated, report.Created, report.Updated, len(report.Invalid))
			if len(report.Invalid) > 0 {
				rows := make([][]string, 0, len(report.Invalid))
				for _, issue := range report.Invalid {
					rows = append(rows, []string{strconv.Itoa(issue.Index), issue.AwemeID, issue.Reason})
				}
				fmt.Fprintln(out, renderTable([]string{"#", "Aweme ID", "Reason"}, rows, []columnAlignment{alignRight}))
			}
			return nil
		},
	}
}

func newRecordsListCommand(ctx *commandContext) *cobra.Command {
	var (
		pendingOnly bool
		limit       int
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored records",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return fmt.Errorf("open records: %w", err)
			}
			defer store.Close()

			list, err := store.List(cmd.Context(), records.ListOptions{PendingOnly: pendingOnly, Limit: limit})
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, list)
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No records")
				return nil
			}
			rows := make([][]string, 0, len(list))
			for _, rec := range list {
				rows = append(rows, []string{
					rec.RecordID,
					rec.AwemeID,
					textutil.Preview(rec.Nickname, 16),
					formatDuration(rec.Duration),
					textutil.Preview(strings.ReplaceAll(rec.Text, "\n", " "), 40),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Record", "Aweme ID", "Author", "Duration", "Text"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&pendingOnly, "pending", false, "Only records that still need text")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of records")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print records as JSON")
	return cmd
}

func newRecordsStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the record table",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return fmt.Errorf("open records: %w", err)
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			rows := [][]string{
				{"Total", strconv.Itoa(stats.Total)},
				{"Pending", strconv.Itoa(stats.Pending)},
				{"With text", strconv.Itoa(stats.WithText)},
				{"Missing aweme id", strconv.Itoa(stats.MissingID)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Records", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
			fmt.Fprintf(cmd.OutOrStdout(), "Database: %s\n", store.Path())
			return nil
		},
	}
}

func formatDuration(seconds *float64) string {
	if seconds == nil {
		return "-"
	}
	total := int(*seconds + 0.5)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
