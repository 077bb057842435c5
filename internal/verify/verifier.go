// Package verify probes deployed resources over HTTP and classifies their
// health. Verification runs after provisioning completes and never mutates
// platform state.
package verify

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stagehand-io/stagehand/internal/ir"
	"github.com/stagehand-io/stagehand/internal/logging"
)

const (
	defaultInterval    = 2 * time.Second
	defaultTimeout     = 5 * time.Second
	defaultMaxAttempts = 5
)

// Verifier probes resource endpoints. The zero value is usable; Client,
// Interval and MaxAttempts override the probe defaults for every resource.
type Verifier struct {
	Client      *http.Client
	Interval    time.Duration
	MaxAttempts int
}

func New() *Verifier {
	return &Verifier{}
}

// Verify probes every live handle that declared a probe and returns one
// health record per live resource, sorted by resource id. Resources that
// never provisioned get no record; resources without a probe stay Unknown.
// A 2xx response is Healthy and terminal. On attempt exhaustion the state
// is Degraded when the endpoint answered with a non-2xx status,
// Unreachable when it never answered at all.
func (v *Verifier) Verify(ctx context.Context, handles []*ir.ResourceHandle, probes map[string]*ir.Probe) []*ir.HealthRecord {
	records := make([]*ir.HealthRecord, 0, len(handles))

	g, ctx := errgroup.WithContext(ctx)
	results := make(chan *ir.HealthRecord, len(handles))

	for _, h := range handles {
		h := h
		if !h.Live() {
			continue
		}
		probe := probes[h.DescriptorID]
		url := probeURL(h, probe)
		if probe == nil || url == "" {
			results <- &ir.HealthRecord{
				ResourceID: h.DescriptorID,
				State:      ir.HealthUnknown,
			}
			continue
		}
		g.Go(func() error {
			results <- v.probeOne(ctx, h.DescriptorID, url, probe)
			return nil
		})
	}

	_ = g.Wait()
	close(results)

	for rec := range results {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ResourceID < records[j].ResourceID })
	return records
}

func (v *Verifier) probeOne(ctx context.Context, id, url string, probe *ir.Probe) *ir.HealthRecord {
	interval := v.Interval
	timeout := defaultTimeout
	maxAttempts := v.MaxAttempts
	if interval == 0 {
		interval = defaultInterval
	}
	if maxAttempts == 0 {
		maxAttempts = defaultMaxAttempts
	}
	if probe != nil {
		if d, err := time.ParseDuration(probe.Interval); err == nil && d > 0 {
			interval = d
		}
		if d, err := time.ParseDuration(probe.Timeout); err == nil && d > 0 {
			timeout = d
		}
		if probe.MaxAttempts > 0 {
			maxAttempts = probe.MaxAttempts
		}
	}

	client := v.Client
	if client == nil {
		client = &http.Client{}
	}

	rec := &ir.HealthRecord{
		ResourceID: id,
		State:      ir.HealthUnreachable,
	}

	// answered tracks whether the endpoint ever produced an HTTP response,
	// which separates Degraded from Unreachable on exhaustion.
	answered := false

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		rec.Attempts = attempt
		rec.LastCheckedAt = time.Now().UTC()

		status, err := v.check(ctx, client, url, timeout)
		if err == nil && status >= 200 && status < 300 {
			rec.State = ir.HealthHealthy
			return rec
		}
		if err == nil {
			answered = true
			logging.Debug("probe attempt unhealthy", "resource", id, "status", status, "attempt", attempt)
		} else {
			logging.Debug("probe attempt failed", "resource", id, "error", err, "attempt", attempt)
		}

		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				rec.LastCheckedAt = time.Now().UTC()
				if answered {
					rec.State = ir.HealthDegraded
				}
				return rec
			case <-time.After(interval):
			}
		}
	}

	if answered {
		rec.State = ir.HealthDegraded
	}
	return rec
}

func (v *Verifier) check(ctx context.Context, client *http.Client, url string, timeout time.Duration) (int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build probe request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

// probeURL picks the probe target: an explicit probe URL wins, otherwise
// the handle endpoint plus the probe path.
func probeURL(h *ir.ResourceHandle, probe *ir.Probe) string {
	if probe != nil && probe.URL != "" {
		return probe.URL
	}
	if h.Endpoint == "" {
		return ""
	}
	if probe != nil && probe.Path != "" {
		return h.Endpoint + probe.Path
	}
	return h.Endpoint
}
