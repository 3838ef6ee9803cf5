package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"videotext/internal/pipeline"
)

var stageLabels = map[string]string{
	pipeline.StageASRSubmit: "Submitting transcription",
	pipeline.StageASRPoll:   "Waiting for transcripts",
	pipeline.StageLLMSubmit: "Submitting normalization",
	pipeline.StageLLMPoll:   "Waiting for normalized text",
	pipeline.StageReconcile: "Saving text",
}

// progressPrinter renders pipeline progress. On a terminal it redraws one
// line per stage; otherwise it prints a line when each stage completes.
type progressPrinter struct {
	w         io.Writer
	tty       bool
	lastStage string
	open      bool
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w, tty: isTerminal(w)}
}

func (p *progressPrinter) Report(pr pipeline.Progress) {
	label := stageLabels[pr.Stage]
	if label == "" {
		label = pr.Stage
	}
	line := fmt.Sprintf("%s: %d/%d", label, pr.Done, pr.Total)
	if pr.Round > 0 {
		line += fmt.Sprintf(" (round %d)", pr.Round)
	}

	if !p.tty {
		if pr.Done == pr.Total {
			fmt.Fprintln(p.w, line)
		}
		return
	}
	if p.open && pr.Stage != p.lastStage {
		fmt.Fprintln(p.w)
	}
	fmt.Fprintf(p.w, "\r\x1b[2K%s", line)
	p.lastStage = pr.Stage
	p.open = true
}

func (p *progressPrinter) Finish() {
	if p.tty && p.open {
		fmt.Fprintln(p.w)
	}
	p.open = false
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
