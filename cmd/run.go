// File: cmd/run.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/config"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/observability"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/oracle"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/persona"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/sim/orchestrator"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Runs one simulation from a persona file and a scenario file",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind override flags to their Viper keys so command-line values
			// take precedence over config file and environment.
			if err := viper.BindPFlag("simulation.max_agent_cycles", cmd.Flags().Lookup("max-cycles")); err != nil {
				return err
			}
			if err := viper.BindPFlag("simulation.simulation_duration", cmd.Flags().Lookup("duration")); err != nil {
				return err
			}
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Use the context passed from Execute (signal-aware).
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg := appCfg
			if err := viper.Unmarshal(cfg); err != nil {
				return fmt.Errorf("failed to re-unmarshal config with flag overrides: %w", err)
			}
			if viper.GetBool("offline") {
				cfg.Oracle.Provider = config.ProviderScripted
			}

			personaPath := viper.GetString("personas")
			scenarioPath := viper.GetString("scenario")
			outputPath := viper.GetString("output")

			personas, err := persona.LoadPersonas(personaPath)
			if err != nil {
				return fmt.Errorf("loading personas: %w", err)
			}
			scenario, err := persona.LoadScenario(scenarioPath)
			if err != nil {
				return fmt.Errorf("loading scenario: %w", err)
			}

			client, err := oracle.NewClient(ctx, cfg.Oracle, logger)
			if err != nil {
				return fmt.Errorf("initializing oracle: %w", err)
			}

			logger.Info("Starting simulation",
				zap.String("scenario", scenario.Title),
				zap.Int("personas", len(personas)),
				zap.String("oracle_provider", string(cfg.Oracle.Provider)),
			)

			manager := orchestrator.NewSimulationManager(cfg.Simulation, client, scenario, logger)
			if err := manager.CreateAgents(personas); err != nil {
				return fmt.Errorf("creating agents: %w", err)
			}

			result := manager.Run(ctx)
			if errors.Is(ctx.Err(), context.Canceled) {
				logger.Warn("Simulation aborted by user signal")
			}

			if outputPath != "" {
				if err := writeReport(result, outputPath); err != nil {
					return fmt.Errorf("writing report: %w", err)
				}
				logger.Info("Report written", zap.String("path", outputPath))
			}

			if !result.Success {
				return fmt.Errorf("simulation failed (%s): %s", result.ErrorCode, result.Error)
			}

			fmt.Printf("\nSimulation complete (%s). Cycles: %d, interactions: %d, behaviors: %d, diversity: %.3f\n",
				result.TerminationCause, result.Metrics.TotalCycles, result.Metrics.TotalInteractions,
				result.Metrics.BehaviorsDetected, result.Metrics.BehavioralDiversity)
			return nil
		},
	}

	runCmd.Flags().StringP("personas", "p", "personas.json", "Path to the persona definition file.")
	runCmd.Flags().StringP("scenario", "s", "scenario.json", "Path to the scenario descriptor file.")
	runCmd.Flags().StringP("output", "o", "", "Output file path for the JSON result report. If unset, no report is written.")
	runCmd.Flags().Int("max-cycles", 0, "Maximum total agent cycles. (Overrides config/env)")
	runCmd.Flags().Duration("duration", 0, "Maximum wall-clock duration. (Overrides config/env)")
	runCmd.Flags().Bool("offline", false, "Use the deterministic scripted oracle instead of a remote one.")

	return runCmd
}

// writeReport marshals the result and writes it atomically enough for a CLI:
// full file replace, 0644.
func writeReport(result orchestrator.Result, path string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
