package ir

// Stage is a set of resources whose dependencies are all satisfied by
// earlier stages; the unit of intra-run parallelism.
type Stage []*ResourceDescriptor

// DeploymentPlan is an ordered sequence of stages built once per run by the
// resolver. Immutable after construction.
type DeploymentPlan struct {
	ID     string
	Stages []Stage
}

// Size returns the total number of resources in the plan.
func (p *DeploymentPlan) Size() int {
	n := 0
	for _, s := range p.Stages {
		n += len(s)
	}
	return n
}

// Descriptors returns all descriptors in stage order.
func (p *DeploymentPlan) Descriptors() []*ResourceDescriptor {
	out := make([]*ResourceDescriptor, 0, p.Size())
	for _, s := range p.Stages {
		out = append(out, s...)
	}
	return out
}

// StageOf returns the 1-based stage number holding the given resource id,
// or 0 if the plan does not contain it.
func (p *DeploymentPlan) StageOf(id string) int {
	for i, s := range p.Stages {
		for _, d := range s {
			if d.ID == id {
				return i + 1
			}
		}
	}
	return 0
}
