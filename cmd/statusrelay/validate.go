package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bissquit/statusrelay/internal/config"
	"github.com/bissquit/statusrelay/internal/seed"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long: `Load the configuration file and environment exactly as serve would and
report every invalid value. Nothing is started.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Work with seed data files",
}

var seedValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a seed data file",
	Long: `Parse and validate a seed data file. Without an argument the built-in
demo data is checked.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSeedValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(seedCmd)
	seedCmd.AddCommand(seedValidateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file")
}

func runValidate(cmd *cobra.Command, _ []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(out, "Config is valid!")
	_, _ = fmt.Fprintf(out, "  Listen:    %s:%s\n", cfg.Server.Host, cfg.Server.Port)
	_, _ = fmt.Fprintf(out, "  Storage:   %s\n", cfg.Storage.Driver)
	_, _ = fmt.Fprintf(out, "  Websocket: %s\n", cfg.Realtime.Path)
	return nil
}

func runSeedValidate(cmd *cobra.Command, args []string) error {
	var (
		f   *seed.File
		err error
	)
	if len(args) == 1 {
		f, err = seed.Load(args[0])
	} else {
		f, err = seed.Default()
	}
	if err != nil {
		return fmt.Errorf("invalid seed data: %w", err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Seed data is valid: %d services, %d incidents\n",
		len(f.Services), len(f.Incidents))
	return nil
}
