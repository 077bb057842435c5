package verify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagehand-io/stagehand/internal/ir"
)

func fastVerifier() *Verifier {
	return &Verifier{Interval: time.Millisecond, MaxAttempts: 3}
}

func liveHandle(id, endpoint string) *ir.ResourceHandle {
	return &ir.ResourceHandle{DescriptorID: id, Status: ir.StatusCreated, Endpoint: endpoint}
}

func probeAll(ids ...string) map[string]*ir.Probe {
	probes := make(map[string]*ir.Probe, len(ids))
	for _, id := range ids {
		probes[id] = &ir.Probe{}
	}
	return probes
}

func TestVerify_HealthyOn2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	records := fastVerifier().Verify(context.Background(),
		[]*ir.ResourceHandle{liveHandle("frontend", srv.URL)}, probeAll("frontend"))

	require.Len(t, records, 1)
	assert.Equal(t, ir.HealthHealthy, records[0].State)
	assert.Equal(t, 1, records[0].Attempts)
	assert.False(t, records[0].LastCheckedAt.IsZero())
}

func TestVerify_HealthyStopsProbing(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	fastVerifier().Verify(context.Background(),
		[]*ir.ResourceHandle{liveHandle("frontend", srv.URL)}, probeAll("frontend"))

	assert.Equal(t, int32(1), hits.Load())
}

func TestVerify_DegradedOnPersistentNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	records := fastVerifier().Verify(context.Background(),
		[]*ir.ResourceHandle{liveHandle("gateway", srv.URL)}, probeAll("gateway"))

	require.Len(t, records, 1)
	assert.Equal(t, ir.HealthDegraded, records[0].State)
	assert.Equal(t, 3, records[0].Attempts)
}

func TestVerify_UnreachableWhenConnectionRefused(t *testing.T) {
	// A server that is already closed guarantees connection errors.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	records := fastVerifier().Verify(context.Background(),
		[]*ir.ResourceHandle{liveHandle("compute", url)}, probeAll("compute"))

	require.Len(t, records, 1)
	assert.Equal(t, ir.HealthUnreachable, records[0].State)
	assert.Equal(t, 3, records[0].Attempts)
}

func TestVerify_RecoversWithinAttempts(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	records := fastVerifier().Verify(context.Background(),
		[]*ir.ResourceHandle{liveHandle("frontend", srv.URL)}, probeAll("frontend"))

	require.Len(t, records, 1)
	assert.Equal(t, ir.HealthHealthy, records[0].State)
	assert.Equal(t, 3, records[0].Attempts)
}

func TestVerify_ProbePathAppendedToEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	probes := map[string]*ir.Probe{
		"frontend": {Path: "/healthz"},
	}
	records := fastVerifier().Verify(context.Background(),
		[]*ir.ResourceHandle{liveHandle("frontend", srv.URL)}, probes)

	require.Len(t, records, 1)
	assert.Equal(t, ir.HealthHealthy, records[0].State)
}

func TestVerify_ExplicitProbeURLWins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	probes := map[string]*ir.Probe{
		"gateway": {URL: srv.URL, MaxAttempts: 1},
	}
	records := fastVerifier().Verify(context.Background(),
		[]*ir.ResourceHandle{liveHandle("gateway", "http://unreachable.invalid")}, probes)

	require.Len(t, records, 1)
	assert.Equal(t, ir.HealthHealthy, records[0].State)
}

func TestVerify_NoProbeStaysUnknown(t *testing.T) {
	records := fastVerifier().Verify(context.Background(),
		[]*ir.ResourceHandle{liveHandle("network", "http://127.0.0.1:1")}, nil)

	require.Len(t, records, 1)
	assert.Equal(t, ir.HealthUnknown, records[0].State)
	assert.Zero(t, records[0].Attempts)
}

func TestVerify_ProbeWithoutTargetIsUnknown(t *testing.T) {
	records := fastVerifier().Verify(context.Background(),
		[]*ir.ResourceHandle{liveHandle("network", "")}, probeAll("network"))

	require.Len(t, records, 1)
	assert.Equal(t, ir.HealthUnknown, records[0].State)
}

func TestVerify_DeadHandlesGetNoRecord(t *testing.T) {
	handles := []*ir.ResourceHandle{
		{DescriptorID: "failed", Status: ir.StatusFailed},
		{DescriptorID: "skipped", Status: ir.StatusSkipped},
	}
	records := fastVerifier().Verify(context.Background(), handles, nil)
	assert.Empty(t, records)
}

func TestVerify_RecordsSortedByResourceID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	handles := []*ir.ResourceHandle{
		liveHandle("zeta", srv.URL),
		liveHandle("alpha", srv.URL),
		liveHandle("mid", srv.URL),
	}
	records := fastVerifier().Verify(context.Background(), handles, probeAll("zeta", "alpha", "mid"))

	require.Len(t, records, 3)
	assert.Equal(t, "alpha", records[0].ResourceID)
	assert.Equal(t, "mid", records[1].ResourceID)
	assert.Equal(t, "zeta", records[2].ResourceID)
}
