package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagehand-io/stagehand/internal/ir"
)

func desc(id string, deps ...string) *ir.ResourceDescriptor {
	return &ir.ResourceDescriptor{ID: id, Kind: "static", Name: id, DependsOn: deps}
}

func stageIDs(stage ir.Stage) []string {
	ids := make([]string, 0, len(stage))
	for _, d := range stage {
		ids = append(ids, d.ID)
	}
	return ids
}

func TestResolve_NoDependencies(t *testing.T) {
	plan, err := Resolve([]*ir.ResourceDescriptor{desc("a"), desc("b"), desc("c")})
	require.NoError(t, err)

	require.Len(t, plan.Stages, 1)
	assert.Equal(t, []string{"a", "b", "c"}, stageIDs(plan.Stages[0]))
	assert.NotEmpty(t, plan.ID)
}

func TestResolve_StagesFollowDependencyDepth(t *testing.T) {
	plan, err := Resolve([]*ir.ResourceDescriptor{
		desc("compute", "dataStore"),
		desc("dataStore", "network", "secretStore"),
		desc("network"),
		desc("secretStore"),
	})
	require.NoError(t, err)

	require.Len(t, plan.Stages, 3)
	assert.Equal(t, []string{"network", "secretStore"}, stageIDs(plan.Stages[0]))
	assert.Equal(t, []string{"dataStore"}, stageIDs(plan.Stages[1]))
	assert.Equal(t, []string{"compute"}, stageIDs(plan.Stages[2]))
}

func TestResolve_Deterministic(t *testing.T) {
	descriptors := []*ir.ResourceDescriptor{
		desc("z"), desc("m"), desc("a"),
		desc("mid", "z", "m", "a"),
	}

	first, err := Resolve(descriptors)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Resolve(descriptors)
		require.NoError(t, err)
		require.Len(t, again.Stages, len(first.Stages))
		for s := range first.Stages {
			assert.Equal(t, stageIDs(first.Stages[s]), stageIDs(again.Stages[s]))
		}
	}
}

func TestResolve_CycleReturnsParticipants(t *testing.T) {
	_, err := Resolve([]*ir.ResourceDescriptor{
		desc("a", "c"),
		desc("b", "a"),
		desc("c", "b"),
		desc("standalone"),
	})
	require.Error(t, err)

	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, []string{"a", "b", "c"}, cycleErr.Participants)
}

func TestResolve_CycleProducesNoPartialPlan(t *testing.T) {
	plan, err := Resolve([]*ir.ResourceDescriptor{
		desc("a", "b"),
		desc("b", "a"),
	})
	require.Error(t, err)
	assert.Nil(t, plan)
}

func TestResolve_SelfDependencyIsACycle(t *testing.T) {
	_, err := Resolve([]*ir.ResourceDescriptor{desc("a", "a")})

	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, []string{"a"}, cycleErr.Participants)
}

func TestResolve_DanglingDependency(t *testing.T) {
	_, err := Resolve([]*ir.ResourceDescriptor{desc("a", "missing")})
	require.Error(t, err)

	var danglingErr *DanglingDependencyError
	require.ErrorAs(t, err, &danglingErr)
	assert.Equal(t, "a", danglingErr.ID)
	assert.Equal(t, "missing", danglingErr.Missing)
}

func TestResolve_DuplicateID(t *testing.T) {
	_, err := Resolve([]*ir.ResourceDescriptor{desc("a"), desc("a")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestResolve_DuplicateEdgesCountOnce(t *testing.T) {
	plan, err := Resolve([]*ir.ResourceDescriptor{
		desc("base"),
		desc("top", "base", "base"),
	})
	require.NoError(t, err)

	require.Len(t, plan.Stages, 2)
	assert.Equal(t, []string{"top"}, stageIDs(plan.Stages[1]))
}

func TestResolve_EmptyInput(t *testing.T) {
	plan, err := Resolve(nil)
	require.NoError(t, err)
	assert.Empty(t, plan.Stages)
	assert.Zero(t, plan.Size())
}
