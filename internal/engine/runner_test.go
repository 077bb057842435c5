package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagehand-io/stagehand/internal/ir"
	"github.com/stagehand-io/stagehand/internal/provider"
	"github.com/stagehand-io/stagehand/providers/static"
)

func staticDesc(id string, config map[string]any, deps ...string) *ir.ResourceDescriptor {
	return &ir.ResourceDescriptor{ID: id, Kind: "static", Name: id, Config: config, DependsOn: deps}
}

func newStaticRunner(t *testing.T) (*Runner, *static.Provider) {
	t.Helper()
	st := static.New()
	registry := provider.NewRegistry()
	registry.Register(st)
	return NewRunner(registry), st
}

func handlesByID(handles []*ir.ResourceHandle) map[string]*ir.ResourceHandle {
	m := make(map[string]*ir.ResourceHandle, len(handles))
	for _, h := range handles {
		m[h.DescriptorID] = h
	}
	return m
}

func TestRunner_AllSucceed(t *testing.T) {
	runner, _ := newStaticRunner(t)
	plan, err := Resolve([]*ir.ResourceDescriptor{
		staticDesc("network", nil),
		staticDesc("dataStore", nil, "network"),
	})
	require.NoError(t, err)

	handles, err := runner.Run(context.Background(), plan)
	require.NoError(t, err)
	require.Len(t, handles, 2)

	byID := handlesByID(handles)
	assert.Equal(t, ir.StatusCreated, byID["network"].Status)
	assert.Equal(t, ir.StatusCreated, byID["dataStore"].Status)
}

func TestRunner_HandlesInPlanOrder(t *testing.T) {
	runner, _ := newStaticRunner(t)
	plan, err := Resolve([]*ir.ResourceDescriptor{
		staticDesc("b", nil),
		staticDesc("a", nil),
		staticDesc("c", nil, "a", "b"),
	})
	require.NoError(t, err)

	handles, err := runner.Run(context.Background(), plan)
	require.NoError(t, err)

	ids := make([]string, 0, len(handles))
	for _, h := range handles {
		ids = append(ids, h.DescriptorID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestRunner_FailFastSkipsLaterStages(t *testing.T) {
	runner, st := newStaticRunner(t)
	plan, err := Resolve([]*ir.ResourceDescriptor{
		staticDesc("network", nil),
		staticDesc("dataStore", map[string]any{"fail": true}, "network"),
		staticDesc("compute", nil, "dataStore"),
		staticDesc("unrelated", nil, "network"),
	})
	require.NoError(t, err)

	runner.Policy = FailFast
	handles, err := runner.Run(context.Background(), plan)
	require.Error(t, err)

	byID := handlesByID(handles)
	assert.Equal(t, ir.StatusCreated, byID["network"].Status)
	assert.Equal(t, ir.StatusFailed, byID["dataStore"].Status)
	assert.Equal(t, ir.StatusSkipped, byID["compute"].Status)
	// Provisioners in stages after the failing one must never run.
	assert.Zero(t, st.Invocations("compute"))
	// Resources in the same stage as the failure still complete.
	assert.Equal(t, ir.StatusCreated, byID["unrelated"].Status)
}

func TestRunner_BestEffortSkipsOnlyDependents(t *testing.T) {
	runner, st := newStaticRunner(t)
	plan, err := Resolve([]*ir.ResourceDescriptor{
		staticDesc("network", map[string]any{"fail": true}),
		staticDesc("cache", nil),
		staticDesc("dataStore", nil, "network"),
		staticDesc("compute", nil, "dataStore"),
		staticDesc("worker", nil, "cache"),
	})
	require.NoError(t, err)

	runner.Policy = BestEffort
	handles, err := runner.Run(context.Background(), plan)
	require.Error(t, err)

	byID := handlesByID(handles)
	assert.Equal(t, ir.StatusFailed, byID["network"].Status)
	assert.Equal(t, ir.StatusCreated, byID["cache"].Status)
	// The skip propagates transitively through the dependency chain.
	assert.Equal(t, ir.StatusSkipped, byID["dataStore"].Status)
	assert.Equal(t, ir.StatusSkipped, byID["compute"].Status)
	assert.Zero(t, st.Invocations("dataStore"))
	assert.Zero(t, st.Invocations("compute"))
	// The unaffected branch still provisions.
	assert.Equal(t, ir.StatusCreated, byID["worker"].Status)
}

func TestRunner_RerunIsIdempotent(t *testing.T) {
	runner, _ := newStaticRunner(t)
	plan, err := Resolve([]*ir.ResourceDescriptor{
		staticDesc("network", nil),
		staticDesc("dataStore", nil, "network"),
	})
	require.NoError(t, err)

	first, err := runner.Run(context.Background(), plan)
	require.NoError(t, err)
	second, err := runner.Run(context.Background(), plan)
	require.NoError(t, err)

	for _, h := range first {
		assert.Equal(t, ir.StatusCreated, h.Status)
	}
	firstByID := handlesByID(first)
	for _, h := range second {
		assert.Equal(t, ir.StatusAlreadyExists, h.Status)
		assert.Equal(t, firstByID[h.DescriptorID].ResourceID, h.ResourceID)
	}
}

func TestRunner_RetriesTransientFailure(t *testing.T) {
	runner, st := newStaticRunner(t)
	plan, err := Resolve([]*ir.ResourceDescriptor{
		staticDesc("flaky", map[string]any{"failTimes": 2}),
	})
	require.NoError(t, err)

	handles, err := runner.Run(context.Background(), plan)
	require.NoError(t, err)

	assert.Equal(t, ir.StatusCreated, handles[0].Status)
	assert.Equal(t, 3, st.Invocations("flaky"))
}

func TestRunner_SkipStageMarksDependentsSkipped(t *testing.T) {
	runner, st := newStaticRunner(t)
	plan, err := Resolve([]*ir.ResourceDescriptor{
		staticDesc("network", nil),
		staticDesc("dataStore", nil, "network"),
		staticDesc("compute", nil, "dataStore"),
	})
	require.NoError(t, err)

	runner.SkipStages = []int{2}
	handles, err := runner.Run(context.Background(), plan)
	require.NoError(t, err)

	byID := handlesByID(handles)
	assert.Equal(t, ir.StatusCreated, byID["network"].Status)
	assert.Equal(t, ir.StatusSkipped, byID["dataStore"].Status)
	assert.Equal(t, ir.StatusSkipped, byID["compute"].Status)
	assert.Zero(t, st.Invocations("dataStore"))
	assert.Zero(t, st.Invocations("compute"))
}

func TestRunner_CancelledContext(t *testing.T) {
	runner, st := newStaticRunner(t)
	plan, err := Resolve([]*ir.ResourceDescriptor{staticDesc("a", nil)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	handles, err := runner.Run(ctx, plan)
	require.Error(t, err)
	assert.Equal(t, ir.StatusSkipped, handles[0].Status)
	assert.Zero(t, st.Invocations("a"))
}

func TestRunner_UnknownKindFailsResource(t *testing.T) {
	runner, _ := newStaticRunner(t)
	plan, err := Resolve([]*ir.ResourceDescriptor{
		{ID: "mystery", Kind: "nosuch.kind", Name: "mystery"},
	})
	require.NoError(t, err)

	handles, err := runner.Run(context.Background(), plan)
	require.Error(t, err)
	assert.Equal(t, ir.StatusFailed, handles[0].Status)
	assert.Contains(t, handles[0].Error, "no provisioner")
}

func TestRunner_EmitsEventsPerResource(t *testing.T) {
	runner, _ := newStaticRunner(t)
	plan, err := Resolve([]*ir.ResourceDescriptor{
		staticDesc("a", nil),
		staticDesc("b", nil, "a"),
	})
	require.NoError(t, err)

	var events []RunEvent
	runner.Callback = func(ev RunEvent) { events = append(events, ev) }

	_, err = runner.Run(context.Background(), plan)
	require.NoError(t, err)

	statuses := make(map[string][]string)
	for _, ev := range events {
		statuses[ev.ResourceID] = append(statuses[ev.ResourceID], ev.Status)
	}
	assert.Equal(t, []string{"started", "completed"}, statuses["a"])
	assert.Equal(t, []string{"started", "completed"}, statuses["b"])
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("besteffort")
	require.NoError(t, err)
	assert.Equal(t, BestEffort, p)

	p, err = ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, FailFast, p)

	_, err = ParsePolicy("yolo")
	assert.Error(t, err)
}
