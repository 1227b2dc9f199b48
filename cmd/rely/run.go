package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	cephtools "github.com/ceph/ceph-tools"
	"github.com/ceph/ceph-tools/internal/config"
	"github.com/ceph/ceph-tools/internal/must"
	"github.com/ceph/ceph-tools/internal/report"
	"github.com/ceph/ceph-tools/internal/suite"
)

var (
	flagVerbosity string
	flagOutput    string
)

var runCmd = &cobra.Command{
	Use:       "run [disk|raid|rados|site|multi]",
	Short:     "Compute one model, or the default comparison when none is named",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: suite.Names,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		var models []cephtools.Model
		if len(args) == 0 {
			models, err = suite.Default(cfg)
		} else {
			models, err = suite.One(cfg, args[0])
		}
		if err != nil {
			return err
		}

		switch flagOutput {
		case "json":
			evaluations, err := cephtools.Evaluate(cmd.Context(), models, float64(cfg.Period))
			if err != nil {
				return err
			}
			must.PrintJSON(cmd.OutOrStdout(), report.NewRows(evaluations))
			return nil
		case "table":
			return report.Run(cmd.Context(), cmd.OutOrStdout(), models, report.Options{
				Period:    float64(cfg.Period),
				Verbosity: cfg.Verbosity,
			})
		}

		return fmt.Errorf("unknown output %q, expected table or json", flagOutput)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective parameters as yaml",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		encoder := yaml.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent(2)
		if err := encoder.Encode(cfg); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		return encoder.Close()
	},
}

func init() {
	runCmd.Flags().StringVar(&flagVerbosity, "verbosity", "", "all, parameters, headings or \"data only\"")
	runCmd.Flags().StringVarP(&flagOutput, "output", "o", "table", "output format (table, json)")
}

// loadConfig reads --config over the defaults, then applies the flags.
func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if flagConfig != "" {
		loaded, err := config.Load(flagConfig)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	if flagPeriod != "" {
		period, err := config.ParseHours(flagPeriod)
		if err != nil {
			return config.Config{}, fmt.Errorf("invalid --period: %w", err)
		}
		cfg.Period = period
	}
	if flagVerbosity != "" {
		cfg.Verbosity = flagVerbosity
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
