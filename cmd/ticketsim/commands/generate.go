package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"ticketsim/internal/config"
	"ticketsim/internal/output"
	"ticketsim/internal/reference"
	"ticketsim/internal/simulation"
)

var (
	configPath    string
	referencePath string
	outDir        string
	seed          int64
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run one simulation and write its datasets",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runGenerate(ctx, cmd)
	},
}

func init() {
	generateCmd.Flags().StringVarP(&configPath, "config", "c", "", "simulation config YAML (default $TICKETSIM_CONFIG)")
	generateCmd.Flags().StringVarP(&referencePath, "reference", "r", "", "reference bundle YAML (default $TICKETSIM_REFERENCE)")
	generateCmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (default $OUTPUT_FOLDER)")
	generateCmd.Flags().Int64Var(&seed, "seed", 0, "random seed, overrides the config file")
}

func runGenerate(ctx context.Context, cmd *cobra.Command) error {
	if configPath == "" {
		configPath = appCfg.SimulationFile
		if _, err := os.Stat(configPath); err != nil {
			log.Warn().Str("path", configPath).Msg("No simulation config found, using defaults")
			configPath = ""
		}
	}
	if referencePath == "" {
		referencePath = appCfg.ReferenceFile
	}
	if outDir == "" {
		outDir = appCfg.OutputDir
	}

	cfg, err := config.LoadSimulation(configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = &seed
	}

	opts := simulation.Options{Config: cfg, Logger: log.Logger}

	opts.Bundle, err = reference.LoadBundle(referencePath)
	if err != nil && !errors.Is(err, reference.ErrMissing) {
		return err
	}
	if cfg.CountriesFile != "" {
		if opts.Countries, err = reference.LoadCountries(cfg.CountriesFile); err != nil {
			return err
		}
	}
	if cfg.BadIPsFile != "" {
		if opts.BadIPs, err = reference.LoadBadIPs(cfg.BadIPsFile); err != nil {
			return err
		}
	}
	if opts.Special, err = reference.LoadSpecialSteps(cfg.SpecialStepsFile); err != nil {
		return err
	}

	res, err := simulation.Run(ctx, opts)
	if err != nil {
		if errors.Is(err, simulation.ErrCancelled) {
			log.Warn().Err(err).Msg("Run cancelled, nothing written")
		}
		return err
	}

	if !appCfg.WriteMetrics {
		res.Metrics = nil
	}
	if err := output.WriteAll(ctx, outDir, res, nil); err != nil {
		return fmt.Errorf("failed to write artifacts: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d train, %d test tickets written to %s\n",
		res.RunID, len(res.Train), len(res.Test), outDir)
	return nil
}
