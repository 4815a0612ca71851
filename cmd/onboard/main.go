package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"ai-receptionist/user-portal/user-portal-backend/internal/config"
)

var (
	// Global flags
	verbose    bool
	configPath string
	token      string
	timeout    time.Duration

	// Logger
	logger *zap.Logger

	// Loaded in PersistentPreRunE
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Drive the receptionist onboarding wizard from the command line",
	Long: `onboard runs the four-step onboarding wizard against a running portal API.

Step payloads are read from YAML files. The wizard resumes from whatever the
backend already holds, validates each step before advancing, saves every step
on the way and can submit the onboarding for approval.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if token == "" {
			token = cfg.Onboarding.APIToken
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json", "Path to the JSON config file")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "Bearer token (or set ONBOARDING_API_TOKEN env)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Operation timeout")

	// Run flags
	runCmd.Flags().StringVar(&businessFile, "business", "", "YAML file with the business information (step 1)")
	runCmd.Flags().StringVar(&goalsFile, "goals", "", "YAML file with the assistant goals (step 2)")
	runCmd.Flags().StringVar(&interactionFile, "interaction", "", "YAML file with the assistant behaviour (step 3)")
	runCmd.Flags().BoolVar(&complete, "complete", false, "Submit the onboarding for approval after step 4")

	// Token flags
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "Tenant user id (required)")
	tokenCmd.Flags().StringVar(&tokenRole, "role", "user", "Role claim (user or admin)")
	tokenCmd.MarkFlagRequired("user")

	// Add commands to root
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
