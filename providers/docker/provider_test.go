package docker

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Containers with no edge between them share a stage and provision
// concurrently, so client init must be safe under parallel calls.
func TestEnsureClient_Concurrent(t *testing.T) {
	p := New()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = p.ensureClient()
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.NotNil(t, p.client)
}
