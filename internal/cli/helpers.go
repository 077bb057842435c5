package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/stagehand-io/stagehand/internal/ir"
	"github.com/stagehand-io/stagehand/internal/provider"
	"github.com/stagehand-io/stagehand/internal/secrets"
)

// resolveEntryPoint turns the optional positional argument into a project
// directory plus Pkl entry point. No argument means main.pkl in the
// working directory.
func resolveEntryPoint(args []string) (dir, entryPoint string, err error) {
	dir, err = os.Getwd()
	if err != nil {
		return "", "", fmt.Errorf("failed to get working directory: %w", err)
	}
	entryPoint = "main.pkl"

	if len(args) > 0 {
		absPath, err := filepath.Abs(args[0])
		if err != nil {
			return "", "", fmt.Errorf("failed to resolve path %s: %w", args[0], err)
		}
		info, err := os.Stat(absPath)
		if err != nil {
			return "", "", fmt.Errorf("failed to stat path %s: %w", args[0], err)
		}
		if info.IsDir() {
			dir = absPath
		} else {
			dir = filepath.Dir(absPath)
			entryPoint = filepath.Base(absPath)
		}
	}
	return dir, entryPoint, nil
}

// loadRequiredProviders registers a provider for every kind prefix the
// config references, so a config never has to name its providers twice.
func loadRequiredProviders(registry *provider.Registry, cfg *ir.Config, sec *secrets.Propagator) error {
	seen := make(map[string]bool)
	for _, desc := range cfg.Resources {
		name := desc.Kind
		if i := strings.Index(name, "."); i > 0 {
			name = name[:i]
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		if err := registry.LoadProvider(name, sec); err != nil {
			return fmt.Errorf("config references kind %q: %w", desc.Kind, err)
		}
	}
	return nil
}

// probesByID indexes descriptor probes for the verifier.
func probesByID(cfg *ir.Config) map[string]*ir.Probe {
	probes := make(map[string]*ir.Probe)
	for _, desc := range cfg.Resources {
		if desc.Probe != nil {
			probes[desc.ID] = desc.Probe
		}
	}
	return probes
}
