package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stagehand-io/stagehand/internal/engine"
	"github.com/stagehand-io/stagehand/internal/eval"
)

var planProperties map[string]string

var planCmd = &cobra.Command{
	Use:   "plan [path]",
	Short: "Resolve and print the staged deployment plan",
	Long: `Resolves the configuration into dependency-ordered stages and prints
them without provisioning anything.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringToStringVarP(&planProperties, "prop", "D", nil, "Set external properties (format: key=value)")
}

func runPlan(cmd *cobra.Command, args []string) error {
	dir, entryPoint, err := resolveEntryPoint(args)
	if err != nil {
		return err
	}

	evaluator := eval.NewEvaluator(dir)
	cfg, err := evaluator.LoadConfig(cmd.Context(), entryPoint, planProperties)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	plan, err := engine.Resolve(cfg.Resources)
	if err != nil {
		return fmt.Errorf("failed to resolve plan: %w", err)
	}

	fmt.Printf("Plan %s: %d resources in %d stages\n\n", plan.ID, plan.Size(), len(plan.Stages))
	for i, stage := range plan.Stages {
		fmt.Printf("Stage %d:\n", i+1)
		for _, desc := range stage {
			fmt.Printf("  %s (%s)", desc.ID, desc.Kind)
			if len(desc.DependsOn) > 0 {
				fmt.Printf("  depends on %v", desc.DependsOn)
			}
			fmt.Println()
		}
	}
	return nil
}
