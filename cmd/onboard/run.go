package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"ai-receptionist/user-portal/user-portal-backend/internal/onboarding"
	"ai-receptionist/user-portal/user-portal-backend/internal/wizard"
)

var (
	businessFile    string
	goalsFile       string
	interactionFile string
	complete        bool
)

// runCmd walks the wizard from step 1 to the review step
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fill in and save the onboarding steps",
	Long: `Load the given step payloads on top of any saved onboarding, advance
through every step (saving each one) and stop on the review step, or submit
with --complete.`,
	Example: `  onboard run --business business.yaml --goals goals.yaml --interaction interaction.yaml
  onboard run --interaction interaction.yaml --complete`,
	Args: cobra.NoArgs,
	RunE: runWizard,
}

// statusCmd reports where the wizard would resume
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show saved onboarding progress",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func newController() *wizard.Controller {
	gateway := wizard.NewHTTPGateway(cfg.Onboarding.APIBaseURL, token, cfg.Onboarding.RequestTimeout)
	ctrl := wizard.NewController(gateway, logger, wizard.Options{
		Debounce:         cfg.Onboarding.Debounce,
		TargetSectionTTL: cfg.Onboarding.TargetSectionTTL,
		SaveTimeout:      cfg.Onboarding.RequestTimeout,
	})
	ctrl.RegisterSteps()
	return ctrl
}

func destinations() wizard.Destinations {
	return wizard.Destinations{
		MainApp:         cfg.Onboarding.MainAppURL,
		PendingApproval: cfg.Onboarding.PendingApprovalURL,
	}
}

func runWizard(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	out := cmd.OutOrStdout()

	ctrl := newController()
	defer ctrl.Close()

	entry, err := ctrl.Start(ctx)
	if err != nil {
		return err
	}
	if entry.Redirect != wizard.RedirectNone {
		fmt.Fprintf(out, "Onboarding already completed; continue at %s\n", destinations().URL(entry.Redirect))
		return nil
	}
	if entry.Resumed {
		fmt.Fprintf(out, "Resuming saved onboarding at step %d\n", entry.Step)
	}

	if err := applyPayloads(ctrl); err != nil {
		return err
	}

	// Walk from the first step so edits to earlier steps are saved too.
	ctrl.JumpTo(onboarding.StepBusiness)
	for step := onboarding.StepBusiness; step < onboarding.StepReview; step++ {
		if !ctrl.Advance() {
			return fmt.Errorf("step %d is incomplete: %s", step, ctrl.BlockingReason())
		}
		// Scripted runs keep saves in order so the backend status advances step by step.
		ctrl.Wait()
		logger.Debug("Advanced", zap.Int("step", step))
	}

	if !complete {
		printProgress(out, ctrl.Progress())
		fmt.Fprintln(out, "All steps saved. Re-run with --complete to submit for approval.")
		return nil
	}

	redirect, err := ctrl.Complete(ctx)
	if err != nil {
		fmt.Fprintln(out, ctrl.Snapshot().LastError)
		return err
	}
	fmt.Fprintf(out, "Onboarding submitted; continue at %s\n", destinations().URL(redirect))
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	out := cmd.OutOrStdout()

	ctrl := newController()
	defer ctrl.Close()

	entry, err := ctrl.Start(ctx)
	if err != nil {
		return err
	}
	if entry.Redirect != wizard.RedirectNone {
		fmt.Fprintf(out, "Onboarding completed (%s): %s\n", entry.Redirect, destinations().URL(entry.Redirect))
		return nil
	}
	if entry.Status == "" {
		fmt.Fprintln(out, "No saved onboarding")
	} else {
		fmt.Fprintf(out, "Saved status: %s\n", entry.Status)
	}
	printProgress(out, ctrl.Progress())
	if reason := ctrl.BlockingReason(); reason != "" {
		fmt.Fprintf(out, "Next requirement: %s\n", reason)
	}
	return nil
}

func applyPayloads(ctrl *wizard.Controller) error {
	if businessFile != "" {
		info, err := loadYAML[onboarding.BusinessInformation](businessFile)
		if err != nil {
			return err
		}
		ctrl.UpdateBusiness(func(b *onboarding.BusinessInformation) { *b = info })
	}
	if goalsFile != "" {
		goals, err := loadYAML[onboarding.AssistantGoals](goalsFile)
		if err != nil {
			return err
		}
		ctrl.UpdateGoals(func(g *onboarding.AssistantGoals) { *g = goals })
	}
	if interactionFile != "" {
		info, err := loadYAML[onboarding.AssistantInformation](interactionFile)
		if err != nil {
			return err
		}
		ctrl.UpdateInteraction(func(i *onboarding.AssistantInformation) { *i = info })
	}
	return nil
}

// loadYAML decodes a step payload, rejecting unknown keys.
func loadYAML[T any](path string) (T, error) {
	var out T
	f, err := os.Open(path)
	if err != nil {
		return out, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&out); err != nil && !errors.Is(err, io.EOF) {
		return out, fmt.Errorf("parse %s: %w", path, err)
	}
	return out, nil
}

func printProgress(out io.Writer, p wizard.Progress) {
	fmt.Fprintf(out, "Progress: %.0f%% (step %d of %d)\n", p.PercentComplete, p.CurrentStep, p.TotalSteps)
	for _, s := range p.Steps {
		mark := " "
		switch {
		case s.Completed:
			mark = "x"
		case s.Current:
			mark = ">"
		}
		fmt.Fprintf(out, "  [%s] %d. %s\n", mark, s.Number, s.Name)
	}
}
