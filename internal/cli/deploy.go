package cli

import (
	"context"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/spf13/cobra"

	"github.com/stagehand-io/stagehand/internal/engine"
	"github.com/stagehand-io/stagehand/internal/eval"
	"github.com/stagehand-io/stagehand/internal/ir"
	"github.com/stagehand-io/stagehand/internal/manifest"
	"github.com/stagehand-io/stagehand/internal/provider"
	"github.com/stagehand-io/stagehand/internal/secrets"
	"github.com/stagehand-io/stagehand/internal/verify"
)

var (
	deployPolicy       string
	deploySkipStages   []int
	deployManifestPath string
	deploySecretStore  string
	deployRegion       string
	deployProperties   map[string]string
	deployNoVerify     bool
	deployTimeout      time.Duration
	deployProviders    []string
)

var deployCmd = &cobra.Command{
	Use:   "deploy [path]",
	Short: "Provision a deployment plan",
	Long: `Resolves the configuration into stages, provisions every stage,
verifies endpoint health, and writes the deployment manifest.

Re-running a deploy is safe: resources that already exist are verified,
not recreated.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDeploy,
}

func init() {
	deployCmd.Flags().StringVar(&deployPolicy, "policy", "", "Failure policy (failfast, besteffort); overrides the config")
	deployCmd.Flags().IntSliceVar(&deploySkipStages, "skip-stage", nil, "Stage numbers to skip (1-based, repeatable)")
	deployCmd.Flags().StringVarP(&deployManifestPath, "manifest", "o", "stagehand.manifest.json", "Manifest output path")
	deployCmd.Flags().StringVar(&deploySecretStore, "secret-store", "memory", "Secret store backend (memory, aws)")
	deployCmd.Flags().StringVar(&deployRegion, "region", "", "Region for the aws secret store")
	deployCmd.Flags().StringToStringVarP(&deployProperties, "prop", "D", nil, "Set external properties (format: key=value)")
	deployCmd.Flags().BoolVar(&deployNoVerify, "no-verify", false, "Skip health verification")
	deployCmd.Flags().DurationVar(&deployTimeout, "timeout", 0, "Overall deployment timeout (0 means none)")
	deployCmd.Flags().StringSliceVar(&deployProviders, "provider", nil, "Additional providers to load (aws, docker, static)")
}

func runDeploy(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if deployTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deployTimeout)
		defer cancel()
	}

	dir, entryPoint, err := resolveEntryPoint(args)
	if err != nil {
		return err
	}

	evaluator := eval.NewEvaluator(dir)
	cfg, err := evaluator.LoadConfig(ctx, entryPoint, deployProperties)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	sec, err := newPropagator(cmd, cfg.Project)
	if err != nil {
		return err
	}

	registry := provider.NewRegistry()
	if err := loadRequiredProviders(registry, cfg, sec); err != nil {
		return err
	}
	for _, name := range deployProviders {
		if err := registry.LoadProvider(name, sec); err != nil {
			return err
		}
	}

	plan, err := engine.Resolve(cfg.Resources)
	if err != nil {
		return fmt.Errorf("failed to resolve plan: %w", err)
	}
	fmt.Printf("Plan %s: %d resources in %d stages\n", plan.ID, plan.Size(), len(plan.Stages))

	policySpec := deployPolicy
	if policySpec == "" {
		policySpec = cfg.Policy
	}
	policy, err := engine.ParsePolicy(policySpec)
	if err != nil {
		return err
	}

	runner := engine.NewRunner(registry)
	runner.Policy = policy
	runner.SkipStages = deploySkipStages
	runner.Callback = renderRunEvent

	handles, runErr := runner.Run(ctx, plan)

	var health []*ir.HealthRecord
	if !deployNoVerify {
		health = verify.New().Verify(ctx, handles, probesByID(cfg))
	}

	m := manifest.Emit(plan, handles, health, sec)
	if err := (&manifest.Writer{Path: deployManifestPath}).Write(m); err != nil {
		return err
	}
	fmt.Printf("Manifest written to %s\n", deployManifestPath)

	renderSummary(handles, health)

	if runErr != nil {
		return fmt.Errorf("deploy finished with failures: %w", runErr)
	}
	return nil
}

// newPropagator builds the secret propagator over the selected backend.
func newPropagator(cmd *cobra.Command, project string) (*secrets.Propagator, error) {
	switch deploySecretStore {
	case "memory":
		return secrets.NewPropagator(secrets.NewMemoryStore()), nil
	case "aws":
		opts := []func(*awsconfig.LoadOptions) error{}
		if deployRegion != "" {
			opts = append(opts, awsconfig.WithRegion(deployRegion))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(cmd.Context(), opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load SDK config for secret store: %w", err)
		}
		client := secretsmanager.NewFromConfig(awsCfg)
		return secrets.NewPropagator(secrets.NewSecretsManagerStore(client, project+"/")), nil
	}
	return nil, fmt.Errorf("unknown secret store: %s", deploySecretStore)
}
