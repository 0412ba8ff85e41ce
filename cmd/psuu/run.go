package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rororowyourboat/psuu/cmd/psuu/internal/loadexperiment"
	"github.com/rororowyourboat/psuu/internal/controller"
	"github.com/rororowyourboat/psuu/internal/progress"
)

func newRunCmd() *cobra.Command {
	var configPath string
	var saveBaseOverride string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an experiment to completion, printing step events as they are recorded",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExperiment(configPath, saveBaseOverride, false)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to the experiment YAML file")
	cmd.Flags().StringVar(&saveBaseOverride, "save-base", "", "override the experiment file's run.saveBasePath")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func newBestCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "best",
		Short: "Run an experiment and print only the final best parameters/KPIs as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExperiment(configPath, "", true)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to the experiment YAML file")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func runExperiment(configPath, saveBaseOverride string, bestOnly bool) error {
	log := newLogger()

	ef, err := loadexperiment.LoadFile(configPath)
	if err != nil {
		return err
	}

	space, err := ef.BuildSpace()
	if err != nil {
		return fmt.Errorf("psuu: %w", err)
	}
	agg, err := ef.BuildAggregator()
	if err != nil {
		return fmt.Errorf("psuu: %w", err)
	}
	_, maximize, ok := agg.Objective()
	if !ok {
		return fmt.Errorf("psuu: experiment file has no objective set")
	}
	opt, err := ef.BuildOptimizer(space, maximize)
	if err != nil {
		return fmt.Errorf("psuu: %w", err)
	}
	dispatcher, err := ef.BuildDispatcher(space)
	if err != nil {
		return fmt.Errorf("psuu: %w", err)
	}

	c, err := controller.New(controller.Config{
		Space:      space,
		Aggregator: agg,
		Optimizer:  opt,
		Dispatcher: dispatcher,
		Logger:     log,
	})
	if err != nil {
		return fmt.Errorf("psuu: %w", err)
	}

	runCfg := ef.BuildRunConfig()
	if saveBaseOverride != "" {
		runCfg.SaveBasePath = saveBaseOverride
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if !bestOnly {
		go printSteps(c.Progress(), log)
	}

	final, err := c.Run(ctx, runCfg)
	if err != nil {
		return fmt.Errorf("psuu: %w", err)
	}

	if bestOnly {
		out := map[string]any{
			"bestParameters": final.BestParameters,
			"bestKpis":       final.BestKPIs,
			"bestObjective":  final.BestObjective,
			"hasBest":        final.HasBest,
			"iterations":     final.Iterations,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	log.Info().
		Int("iterations", final.Iterations).
		Bool("has_best", final.HasBest).
		Msg("run complete")
	return nil
}

// printSteps drains the Progress Stream and echoes step events through the
// process logger until the stream is closed by a terminal event.
func printSteps(stream *progress.Stream, log zerolog.Logger) {
	for ev := range stream.Events() {
		switch ev.Type {
		case progress.EventStep:
			log.Info().
				Int("step", ev.Step).
				Float64("objective", ev.ObjectiveValue).
				Str("status", ev.Status).
				Int64("elapsed_ms", ev.ElapsedMs).
				Msg("iteration recorded")
		case progress.EventComplete:
			log.Info().
				Int("iterations", ev.Iterations).
				Bool("cancelled", ev.Cancelled).
				Msg("experiment complete")
		case progress.EventError:
			log.Error().Str("message", ev.Message).Msg("experiment error")
		}
	}
}
