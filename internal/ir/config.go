package ir

// Config is the top-level deployment configuration.
type Config struct {
	Project   string                `pkl:"project"`
	Policy    string                `pkl:"policy"` // "failfast" | "besteffort"
	Resources []*ResourceDescriptor `pkl:"resources"`
}
