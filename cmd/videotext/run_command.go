package main

import (
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"videotext/internal/batch"
	"videotext/internal/pipeline"
	"videotext/internal/textutil"
)

type runItemJSON struct {
	ID            string `json:"id"`
	RecordID      string `json:"record_id"`
	State         string `json:"state"`
	Skipped       bool   `json:"skipped,omitempty"`
	Chars         int    `json:"chars"`
	Error         string `json:"error,omitempty"`
	ASRPollRounds int    `json:"asr_poll_rounds"`
	LLMPollRounds int    `json:"llm_poll_rounds"`
}

type runJSON struct {
	RunID     string        `json:"run_id"`
	Selected  int           `json:"selected"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	WriteMode string        `json:"write_mode"`
	Balance   *float64      `json:"points_balance,omitempty"`
	Items     []runItemJSON `json:"items"`
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		limit   int
		asJSON  bool
		quiet   bool
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process pending records once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireCredentials(); err != nil {
				return err
			}
			logger, err := ctx.logger(cmd)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			store, err := ctx.openStore()
			if err != nil {
				return fmt.Errorf("open records: %w", err)
			}
			defer store.Close()

			job, err := batch.NewJob(cfg, store, batch.NewRemoteClient(cfg), nil, logger)
			if err != nil {
				return err
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			opts := batch.RunOptions{Limit: limit}
			var printer *progressPrinter
			if !quiet && !asJSON {
				printer = newProgressPrinter(cmd.ErrOrStderr())
				opts.Progress = printer.Report
			}
			report, err := job.Run(signalCtx, uuid.NewString(), opts)
			if printer != nil {
				printer.Finish()
			}
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, runReportJSON(report))
			}
			renderRunReport(cmd, report, verbose)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Process at most this many records")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Hide progress output")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "List every item, not only failures")
	return cmd
}

func runReportJSON(report batch.Report) runJSON {
	out := runJSON{
		RunID:     report.RunID,
		Selected:  report.Selected,
		Succeeded: report.Result.SuccessCount,
		Failed:    report.Result.FailCount,
		WriteMode: string(report.Result.Write.Mode),
		Balance:   report.Result.Balance,
		Items:     make([]runItemJSON, 0, len(report.Result.Items)),
	}
	for _, item := range report.Result.Items {
		out.Items = append(out.Items, runItemJSON{
			ID:            item.ID,
			RecordID:      item.RecordID,
			State:         string(item.State),
			Skipped:       item.Skipped,
			Chars:         len([]rune(textutil.NormalizeText(item.FinalText()))),
			Error:         item.ErrorMessage(),
			ASRPollRounds: item.ASRPollRounds,
			LLMPollRounds: item.LLMPollRounds,
		})
	}
	return out
}

func renderRunReport(cmd *cobra.Command, report batch.Report, verbose bool) {
	out := cmd.OutOrStdout()
	if report.Selected == 0 {
		fmt.Fprintln(out, "No pending records")
		return
	}

	var rows [][]string
	for _, item := range report.Result.Items {
		note := itemNote(item)
		if !verbose && note == "" {
			continue
		}
		rows = append(rows, []string{
			item.ID,
			string(item.State),
			strconv.Itoa(len([]rune(item.FinalText()))),
			textutil.Preview(note, 60),
		})
	}
	if len(rows) > 0 {
		fmt.Fprintln(out, renderTable([]string{"Item", "State", "Chars", "Note"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}))
	}

	fmt.Fprintf(out, "Processed %d records: %d saved, %d failed (write mode: %s)\n",
		report.Selected, report.Result.SuccessCount, report.Result.FailCount, report.Result.Write.Mode)
	if report.Result.Balance != nil {
		fmt.Fprintf(out, "Points balance: %.2f\n", *report.Result.Balance)
	}
}

func itemNote(item *pipeline.Item) string {
	switch {
	case item.RawOnly():
		return "raw text saved; " + item.ErrorMessage()
	case item.Failed():
		return item.ErrorMessage()
	case item.Skipped:
		return "skipped: " + item.SkipReason
	case item.FinalText() == "":
		return "no text returned"
	default:
		return ""
	}
}
