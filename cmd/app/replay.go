package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/saltymaverick/Chloe-alpha-sub002/internal/di"
	internalrepo "github.com/saltymaverick/Chloe-alpha-sub002/internal/repository"
	"github.com/saltymaverick/Chloe-alpha-sub002/internal/usecase"
	applogger "github.com/saltymaverick/Chloe-alpha-sub002/pkg/logger"
)

var (
	replayInput  string
	replayOutput string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a JSONL tick file with paper fills and write decisions as JSONL",
	Example: `  chloe replay --input ticks.jsonl --output decisions.jsonl
  cat ticks.jsonl | chloe replay`,
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVarP(&replayInput, "input", "i", "-", "tick file, - for stdin")
	replayCmd.Flags().StringVarP(&replayOutput, "output", "o", "-", "decision file, - for stdout")
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// keep stdout clean for decisions
	cfg.Log.Output = "stderr"
	l, err := di.ProvideLogger(cfg)
	if err != nil {
		return err
	}

	var in io.Reader = os.Stdin
	if replayInput != "-" {
		f, err := os.Open(replayInput)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		in = f
	}
	var out io.Writer = os.Stdout
	if replayOutput != "-" {
		f, err := os.Create(replayOutput)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	ledger := internalrepo.NewMemoryLedger()
	proc := usecase.NewTickProcessor(di.ProvidePipeline(cfg), cfg.Pipeline, cfg.History.Lookback, ledger,
		internalrepo.NewLogPublisher(applogger.Nop()),
		usecase.WithRiskGate(di.ProvideRiskGate(cfg)),
		usecase.WithLogger(l),
	)
	rp := usecase.NewReplayer(proc, ledger, cfg.Replay.ScratchBand, l)

	stats, err := rp.Run(cmd.Context(), in, out)
	if err != nil {
		return err
	}
	summary, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	l.Info("replay finished", applogger.String("stats", string(summary)))
	return nil
}
