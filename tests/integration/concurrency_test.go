package integration

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConcurrentWebhooks fires many callbacks for the same payment_id at once.
// The record must converge to a single consistent row with confirmed=1, and
// the audit trail must hold exactly one entry per delivery.
func TestConcurrentWebhooks(t *testing.T) {
	app := newTestApp(t)

	app.provider.setResponse("pay-race-1", map[string]any{
		"state":     "confirmed",
		"confirmed": 1,
		"payment":   "0.00042",
	})

	concurrency := 50
	endpoint := app.server.URL + "/api/forumpay/callback?token=" + testCallbackToken
	form := callbackForm("pay-race-1").Encode()

	var wg sync.WaitGroup
	var successCount atomic.Int64

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			resp, err := http.Post(endpoint, "application/x-www-form-urlencoded", strings.NewReader(form))
			if err != nil {
				return
			}
			defer resp.Body.Close()
			_, _ = io.ReadAll(resp.Body)

			if resp.StatusCode == http.StatusOK {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(concurrency), successCount.Load(), "all deliveries should be accepted")

	// One row, not fifty; confirmed set exactly once and never lowered.
	rec, err := app.payments.Get(context.Background(), "pay-race-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 1, rec.Confirmed)

	records, err := app.payments.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	events, err := app.events.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, events, concurrency, "exactly one audit entry per delivery")
}

// TestConcurrentSweepAndWebhook overlaps sweep cycles with live callbacks and
// manual rechecks for the same payments. Neither path may observe or produce a
// torn record.
func TestConcurrentSweepAndWebhook(t *testing.T) {
	app := newTestApp(t)

	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("pay-mix-%d", i)
		seedPayment(t, app, id, "BTC", "addr-"+id)
		app.provider.setResponse(id, map[string]any{
			"state":     "confirmed",
			"confirmed": 1,
		})
	}

	var wg sync.WaitGroup

	// Sweep cycles racing the request paths.
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stats, err := app.reconcile.SweepOnce(context.Background())
			if err != nil {
				return
			}
			assert.Zero(t, stats.Failed, "sweep must not fail records under concurrency")
		}()
	}

	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("pay-mix-%d", i)

		wg.Add(2)
		go func() {
			defer wg.Done()
			endpoint := app.server.URL + "/api/forumpay/callback?token=" + testCallbackToken
			resp, err := http.Post(endpoint, "application/x-www-form-urlencoded", strings.NewReader(callbackForm(id).Encode()))
			if err != nil {
				return
			}
			defer resp.Body.Close()
			_, _ = io.ReadAll(resp.Body)
		}()
		go func() {
			defer wg.Done()
			resp, err := http.Post(app.server.URL+"/payments/"+id+"/recheck", "application/json", nil)
			if err != nil {
				return
			}
			defer resp.Body.Close()
			_, _ = io.ReadAll(resp.Body)
		}()
	}
	wg.Wait()

	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("pay-mix-%d", i)
		rec, err := app.payments.Get(context.Background(), id)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, 1, rec.Confirmed, "payment %s should be confirmed", id)
		assert.Equal(t, "BTC", rec.Currency, "identity fields must survive concurrent merges")
	}
}
