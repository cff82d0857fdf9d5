package integration

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-status-relay/config"
	httpHandler "payment-status-relay/internal/adapter/http/handler"
	redisStorage "payment-status-relay/internal/adapter/storage/redis"
	"payment-status-relay/internal/core/domain"
	"payment-status-relay/internal/core/ports"
	"payment-status-relay/internal/service"
)

const (
	testCallbackToken = "integration-callback-secret"
	testAdminUser     = "admin"
	testAdminPass     = "admin-secret"
)

// testApp wires the real router, services and Redis stores over in-memory
// repositories and a programmable provider. Only PostgreSQL is faked.
type testApp struct {
	server    *httptest.Server
	payments  *inMemoryPaymentRepo
	events    *inMemoryWebhookEventRepo
	provider  *fakeProvider
	reconcile ports.ReconciliationService
	redis     *miniredis.Miniredis
}

type okChecker struct{ name string }

func (c okChecker) Ping(_ context.Context) error { return nil }
func (c okChecker) Name() string                 { return c.name }

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	mr := miniredis.RunT(t)
	redisClient := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	payments := newInMemoryPaymentRepo()
	events := newInMemoryWebhookEventRepo()
	provider := newFakeProvider()

	log := zerolog.Nop()
	// Zero sweep min-age so freshly seeded pending records are immediately
	// eligible when a test drives SweepOnce by hand.
	reconcileSvc := service.NewReconcileService(
		payments, events, provider,
		testCallbackToken, 0, 25, log,
	)
	reportingSvc := service.NewReportingService(payments, events)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		ReconcileSvc:   reconcileSvc,
		ReportingSvc:   reportingSvc,
		RateLimitStore: redisStorage.NewRateLimitStore(redisClient),
		HealthCheckers: []ports.HealthChecker{okChecker{"postgresql"}, okChecker{"redis"}},
		Admin:          config.AdminConfig{User: testAdminUser, Password: testAdminPass},
		Logger:         log,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testApp{
		server:    server,
		payments:  payments,
		events:    events,
		provider:  provider,
		reconcile: reconcileSvc,
		redis:     mr,
	}
}

// postCallback sends a form-encoded provider callback.
func (app *testApp) postCallback(t *testing.T, token string, form url.Values) *http.Response {
	t.Helper()

	endpoint := app.server.URL + "/api/forumpay/callback"
	if token != "" {
		endpoint += "?token=" + url.QueryEscape(token)
	}
	resp, err := http.Post(endpoint, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	return resp
}

func (app *testApp) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(app.server.URL + path)
	require.NoError(t, err)
	return resp
}

func (app *testApp) getAdmin(t *testing.T, path, user, pass string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, app.server.URL+path, nil)
	require.NoError(t, err)
	if user != "" {
		req.SetBasicAuth(user, pass)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func callbackForm(paymentID string) url.Values {
	return url.Values{
		"payment_id": {paymentID},
		"currency":   {"BTC"},
		"address":    {"bc1qexampleaddress"},
	}
}

func TestIntegration_HealthCheck(t *testing.T) {
	app := newTestApp(t)

	resp := app.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeJSON(t, resp)
	assert.Equal(t, "healthy", body["status"])
}

func TestIntegration_WebhookReconciliation(t *testing.T) {
	app := newTestApp(t)

	app.provider.setResponse("pay-itg-1", map[string]any{
		"status":         "Confirmed",
		"state":          "confirmed",
		"confirmed":      true,
		"payment":        "0.00042",
		"invoice_amount": "10.00",
	})

	resp := app.postCallback(t, testCallbackToken, callbackForm("pay-itg-1"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeJSON(t, resp)
	assert.Equal(t, true, body["ok"])

	// The stored record reflects the provider check, not the webhook body.
	require.Equal(t, 1, app.provider.callCount())
	rec, err := app.payments.Get(context.Background(), "pay-itg-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 1, rec.Confirmed)
	require.NotNil(t, rec.State)
	assert.Equal(t, "confirmed", *rec.State)
	require.NotNil(t, rec.CryptoAmount)
	assert.Equal(t, "0.00042", *rec.CryptoAmount)

	// Readable through the POS endpoint.
	getResp := app.get(t, "/payments/pay-itg-1")
	require.Equal(t, http.StatusOK, getResp.StatusCode)
	payment := decodeJSON(t, getResp)["data"].(map[string]any)
	assert.Equal(t, "pay-itg-1", payment["payment_id"])
	assert.Equal(t, float64(1), payment["confirmed"])

	// Exactly one audit entry, marked updated.
	auditResp := app.getAdmin(t, "/admin/webhook-events", testAdminUser, testAdminPass)
	require.Equal(t, http.StatusOK, auditResp.StatusCode)
	eventsList := decodeJSON(t, auditResp)["data"].([]any)
	require.Len(t, eventsList, 1)
	event := eventsList[0].(map[string]any)
	assert.Equal(t, "updated", event["status"])
	assert.Equal(t, "pay-itg-1", event["payment_id"])
}

func TestIntegration_WebhookInvalidToken(t *testing.T) {
	app := newTestApp(t)

	resp := app.postCallback(t, "wrong-token", callbackForm("pay-itg-2"))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	body := decodeJSON(t, resp)
	assert.Equal(t, "WH_001", body["code"])

	// No provider call, but the attempt is audited.
	assert.Equal(t, 0, app.provider.callCount())
	events, err := app.events.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.WebhookEventInvalidToken, events[0].Status)
}

func TestIntegration_WebhookMissingFields(t *testing.T) {
	app := newTestApp(t)

	resp := app.postCallback(t, testCallbackToken, url.Values{"payment_id": {"pay-itg-3"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeJSON(t, resp)
	assert.Equal(t, "WH_002", body["code"])
	assert.Contains(t, body["detail"], "currency")
	assert.Contains(t, body["detail"], "address")

	events, err := app.events.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.WebhookEventBadRequest, events[0].Status)
}

func TestIntegration_WebhookCreatesUnknownPayment(t *testing.T) {
	app := newTestApp(t)

	// Provider still reports pending; the callback must leave a correlation
	// row behind even though no POS creation preceded it.
	app.provider.setResponse("pay-itg-4", map[string]any{"state": "pending"})

	resp := app.postCallback(t, testCallbackToken, callbackForm("pay-itg-4"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	rec, err := app.payments.Get(context.Background(), "pay-itg-4")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "BTC", rec.Currency)
	assert.Equal(t, "bc1qexampleaddress", rec.Address)
	assert.Equal(t, 0, rec.Confirmed)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestIntegration_ConfirmedNeverRegresses(t *testing.T) {
	app := newTestApp(t)

	app.provider.setResponse("pay-itg-5", map[string]any{
		"state":     "confirmed",
		"confirmed": 1,
	})
	resp := app.postCallback(t, testCallbackToken, callbackForm("pay-itg-5"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// A later stale check reporting confirmed=0 must not lower the flag.
	app.provider.setResponse("pay-itg-5", map[string]any{
		"state":     "pending",
		"confirmed": 0,
	})
	resp = app.postCallback(t, testCallbackToken, callbackForm("pay-itg-5"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	rec, err := app.payments.Get(context.Background(), "pay-itg-5")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 1, rec.Confirmed, "confirmed flag must be monotonic")
}

func TestIntegration_CreatedAtFirstWriteWins(t *testing.T) {
	app := newTestApp(t)

	seedPayment(t, app, "pay-itg-12", "BTC", "addr-12")
	first, err := app.payments.Get(context.Background(), "pay-itg-12")
	require.NoError(t, err)
	require.NotNil(t, first)
	require.False(t, first.CreatedAt.IsZero())

	// A later upsert carrying its own creation timestamp must not move it.
	err = app.payments.UpsertOnCreate(context.Background(), &domain.PaymentRecord{
		PaymentID: "pay-itg-12",
		Currency:  "BTC",
		Address:   "addr-12",
		CreatedAt: first.CreatedAt.Add(48 * time.Hour),
	})
	require.NoError(t, err)

	second, err := app.payments.Get(context.Background(), "pay-itg-12")
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, first.CreatedAt, second.CreatedAt, "created_at is set once and never moves")
}

func TestIntegration_RepeatedWebhookIsIdempotent(t *testing.T) {
	app := newTestApp(t)

	app.provider.setResponse("pay-itg-13", map[string]any{
		"state":     "confirmed",
		"confirmed": 1,
		"payment":   "0.00042",
	})

	resp := app.postCallback(t, testCallbackToken, callbackForm("pay-itg-13"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	first, err := app.payments.Get(context.Background(), "pay-itg-13")
	require.NoError(t, err)
	require.NotNil(t, first)

	// Same delivery again: everything but updated_at must compare equal.
	resp = app.postCallback(t, testCallbackToken, callbackForm("pay-itg-13"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	second, err := app.payments.Get(context.Background(), "pay-itg-13")
	require.NoError(t, err)
	require.NotNil(t, second)

	first.UpdatedAt = nil
	second.UpdatedAt = nil
	assert.Equal(t, first, second, "re-applying the same update must change nothing")
}

func TestIntegration_PartialProviderResponseKeepsKnownFields(t *testing.T) {
	app := newTestApp(t)

	app.provider.setResponse("pay-itg-14", map[string]any{
		"state":   "pending",
		"payment": "0.00042",
	})
	resp := app.postCallback(t, testCallbackToken, callbackForm("pay-itg-14"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// The next check omits the amount; the stored value must survive.
	app.provider.setResponse("pay-itg-14", map[string]any{"state": "confirmed", "confirmed": 1})
	resp = app.postCallback(t, testCallbackToken, callbackForm("pay-itg-14"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	rec, err := app.payments.Get(context.Background(), "pay-itg-14")
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.NotNil(t, rec.CryptoAmount)
	assert.Equal(t, "0.00042", *rec.CryptoAmount, "absent fields coalesce, never clobber")
	require.NotNil(t, rec.State)
	assert.Equal(t, "confirmed", *rec.State)
}

func TestIntegration_WebhookProviderFailure(t *testing.T) {
	app := newTestApp(t)

	app.provider.setError("pay-itg-6", fmt.Errorf("dial tcp: connection refused"))

	resp := app.postCallback(t, testCallbackToken, callbackForm("pay-itg-6"))
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	body := decodeJSON(t, resp)
	assert.Equal(t, "PRV_001", body["code"])

	events, err := app.events.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.WebhookEventError, events[0].Status)
}

func TestIntegration_ManualRecheck(t *testing.T) {
	app := newTestApp(t)

	seedPayment(t, app, "pay-itg-7", "ETH", "0xdeadbeef")
	app.provider.setResponse("pay-itg-7", map[string]any{
		"state":     "confirmed",
		"confirmed": true,
		"payment":   "0.125",
	})

	resp, err := http.Post(app.server.URL+"/payments/pay-itg-7/recheck", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeJSON(t, resp)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "confirmed", body["state"])
	assert.Equal(t, float64(1), body["confirmed"])
	assert.Equal(t, "0.125", body["crypto_amount"])

	// The recheck queried the provider with the stored currency and address.
	require.Equal(t, 1, app.provider.callCount())
	assert.Equal(t, "ETH", app.provider.calls[0].Currency)
	assert.Equal(t, "0xdeadbeef", app.provider.calls[0].Address)
}

func TestIntegration_RecheckUnknownPayment(t *testing.T) {
	app := newTestApp(t)

	resp, err := http.Post(app.server.URL+"/payments/nope/recheck", "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	body := decodeJSON(t, resp)
	assert.Equal(t, "PAY_001", body["code"])
}

func TestIntegration_ListPayments(t *testing.T) {
	app := newTestApp(t)

	seedPayment(t, app, "pay-itg-8", "BTC", "addr-8")
	seedPayment(t, app, "pay-itg-9", "LTC", "addr-9")

	resp := app.get(t, "/payments?limit=10")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := decodeJSON(t, resp)["data"].([]any)
	assert.Len(t, data, 2)

	resp = app.get(t, "/payments?limit=abc")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeJSON(t, resp)
	assert.Equal(t, "PAY_002", body["code"])
}

func TestIntegration_CSVExport(t *testing.T) {
	app := newTestApp(t)

	seedPayment(t, app, "pay-itg-10", "BTC", "addr-10")

	resp := app.get(t, "/reports/payments.csv")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/csv")
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "payments.csv")

	rows, err := csv.NewReader(resp.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2, "header plus one record")
	assert.Equal(t, "payment_id", rows[0][0])
	assert.Equal(t, "pay-itg-10", rows[1][0])
}

func TestIntegration_AdminAuthRequired(t *testing.T) {
	app := newTestApp(t)

	resp := app.getAdmin(t, "/admin/webhook-events", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = app.getAdmin(t, "/admin/webhook-events", testAdminUser, "wrong")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = app.getAdmin(t, "/admin/webhook-events", testAdminUser, testAdminPass)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestIntegration_RecheckRateLimit(t *testing.T) {
	app := newTestApp(t)

	seedPayment(t, app, "pay-itg-11", "BTC", "addr-11")
	app.provider.setResponse("pay-itg-11", map[string]any{"state": "pending"})

	// The recheck group allows 60 per minute per client IP.
	var last *http.Response
	for i := 0; i < 61; i++ {
		resp, err := http.Post(app.server.URL+"/payments/pay-itg-11/recheck", "application/json", nil)
		require.NoError(t, err)
		if last != nil {
			last.Body.Close()
		}
		last = resp
	}
	assert.Equal(t, http.StatusTooManyRequests, last.StatusCode)
	assert.NotEmpty(t, last.Header.Get("Retry-After"))
	body, _ := io.ReadAll(last.Body)
	last.Body.Close()
	assert.Contains(t, string(body), "RATE_001")
}

// seedPayment installs a pending record directly in the store, simulating a
// payment the POS already knows about.
func seedPayment(t *testing.T, app *testApp, paymentID, currency, address string) {
	t.Helper()
	err := app.payments.UpsertOnCreate(context.Background(), &domain.PaymentRecord{
		PaymentID:       paymentID,
		OrderID:         "ORDER-" + paymentID,
		InvoiceAmount:   "10.00",
		InvoiceCurrency: "EUR",
		Currency:        currency,
		Address:         address,
	})
	require.NoError(t, err)
}
