package ir

// ResourceDescriptor declares a single provisionable unit. Descriptors are
// built from configuration at run start and never mutated afterwards.
type ResourceDescriptor struct {
	ID             string         `pkl:"id"`
	Kind           string         `pkl:"kind"` // e.g., "aws.network", "docker.container"
	Name           string         `pkl:"name"`
	Region         string         `pkl:"region"`
	DependsOn      []string       `pkl:"dependsOn"`
	Config         map[string]any `pkl:"config"`
	IdempotencyKey string         `pkl:"idempotencyKey"`
	Probe          *Probe         `pkl:"probe"`
}

// Key returns the identifier used to detect pre-existing physical resources.
// Defaults to the declared name when no explicit key is set.
func (d *ResourceDescriptor) Key() string {
	if d.IdempotencyKey != "" {
		return d.IdempotencyKey
	}
	return d.Name
}

// Probe declares an optional HTTP health check for a resource. URL wins when
// set; otherwise the probe target is the provisioned endpoint plus Path.
// Interval and Timeout are duration strings ("5s"); zero values fall back to
// the verifier defaults.
type Probe struct {
	URL         string `pkl:"url"`
	Path        string `pkl:"path"`
	Interval    string `pkl:"interval"`
	Timeout     string `pkl:"timeout"`
	MaxAttempts int    `pkl:"maxAttempts"`
}

// Config helpers used by provisioners to read desired properties. Pkl number
// literals surface as int, float64 or int64 depending on the evaluator, so
// the accessors normalize.

func (d *ResourceDescriptor) ConfigString(key string) string {
	if v, ok := d.Config[key].(string); ok {
		return v
	}
	return ""
}

func (d *ResourceDescriptor) ConfigInt(key string, def int) int {
	switch v := d.Config[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

func (d *ResourceDescriptor) ConfigBool(key string) bool {
	v, _ := d.Config[key].(bool)
	return v
}

func (d *ResourceDescriptor) ConfigStringSlice(key string) []string {
	raw, ok := d.Config[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (d *ResourceDescriptor) ConfigStringMap(key string) map[string]string {
	raw, ok := d.Config[key].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
