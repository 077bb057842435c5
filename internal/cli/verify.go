package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stagehand-io/stagehand/internal/eval"
	"github.com/stagehand-io/stagehand/internal/ir"
	"github.com/stagehand-io/stagehand/internal/verify"
)

var (
	verifyManifestPath string
	verifyProperties   map[string]string
)

var verifyCmd = &cobra.Command{
	Use:   "verify [path]",
	Short: "Re-probe the health of a deployed plan",
	Long: `Reads a previously written manifest and probes every live resource
again, using the probes declared in the configuration. Platform state is
never touched.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVarP(&verifyManifestPath, "manifest", "m", "stagehand.manifest.json", "Manifest to verify")
	verifyCmd.Flags().StringToStringVarP(&verifyProperties, "prop", "D", nil, "Set external properties (format: key=value)")
}

func runVerify(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(verifyManifestPath)
	if err != nil {
		return fmt.Errorf("failed to read manifest %s: %w", verifyManifestPath, err)
	}
	var m ir.DeploymentManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("failed to parse manifest %s: %w", verifyManifestPath, err)
	}

	dir, entryPoint, err := resolveEntryPoint(args)
	if err != nil {
		return err
	}
	cfg, err := eval.NewEvaluator(dir).LoadConfig(cmd.Context(), entryPoint, verifyProperties)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	health := verify.New().Verify(cmd.Context(), m.Resources, probesByID(cfg))

	unhealthy := 0
	for _, rec := range health {
		fmt.Printf("%s: %s (attempts: %d)\n", rec.ResourceID, rec.State, rec.Attempts)
		if isFailureState(rec.State) {
			unhealthy++
		}
	}
	if unhealthy > 0 {
		return fmt.Errorf("%d resource(s) are not healthy", unhealthy)
	}
	return nil
}

// isFailureState reports whether a health state fails the verify command.
// Unknown means no probe was declared, which is not a failure.
func isFailureState(s ir.HealthState) bool {
	return s == ir.HealthDegraded || s == ir.HealthUnreachable
}
