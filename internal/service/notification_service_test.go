package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"vendor-payout-ledger/internal/core/domain"
	"vendor-payout-ledger/pkg/metrics"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockHTTPClient implements HTTPClient for testing.
type mockHTTPClient struct {
	doFunc func(req *http.Request) (*http.Response, error)
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return m.doFunc(req)
}

func testEvent() domain.PayoutEvent {
	return domain.PayoutEvent{
		VendorID:   uuid.New(),
		PayoutID:   uuid.New(),
		EventType:  domain.EventPayoutApproved,
		Payload:    map[string]any{"status": "approved", "final_amount": "487.50"},
		OccurredAt: time.Now().UTC(),
	}
}

func TestWebhookNotifier_SignsDelivery(t *testing.T) {
	secret := "whsec-test"
	received := make(chan *http.Request, 1)
	bodies := make(chan []byte, 1)

	client := &mockHTTPClient{doFunc: func(req *http.Request) (*http.Response, error) {
		body, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		bodies <- body
		received <- req
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(nil))}, nil
	}}

	n := NewWebhookNotifier("https://vendor.example.com/hooks", secret, client, nil, newTestLogger())
	event := testEvent()
	n.Dispatch(context.Background(), event)

	var req *http.Request
	var body []byte
	select {
	case req = <-received:
		body = <-bodies
	case <-time.After(2 * time.Second):
		t.Fatal("webhook was not delivered")
	}
	require.NoError(t, n.Shutdown(context.Background()))

	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.Equal(t, string(domain.EventPayoutApproved), req.Header.Get(HeaderWebhookEvent))

	var payload WebhookPayload
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, event.PayoutID, payload.PayoutID)
	assert.Equal(t, event.VendorID, payload.VendorID)
	assert.Equal(t, payload.EventID, req.Header.Get(HeaderWebhookID))

	ts, err := strconv.ParseInt(req.Header.Get(HeaderWebhookTimestamp), 10, 64)
	require.NoError(t, err)
	signer := NewHMACSignatureService()
	canonical := signer.BuildCanonicalString(ts, payload.EventID, string(body))
	assert.True(t, signer.Verify(secret, canonical, req.Header.Get(HeaderWebhookSignature)))
	assert.False(t, signer.Verify("wrong-secret", canonical, req.Header.Get(HeaderWebhookSignature)))
}

func TestWebhookNotifier_RetriesUntilDelivered(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewLedgerMetrics(reg)

	var calls atomic.Int32
	done := make(chan struct{})
	client := &mockHTTPClient{doFunc: func(req *http.Request) (*http.Response, error) {
		switch calls.Add(1) {
		case 1:
			return nil, errors.New("connection reset")
		case 2:
			return &http.Response{StatusCode: http.StatusInternalServerError, Body: io.NopCloser(bytes.NewReader(nil))}, nil
		default:
			close(done)
			return &http.Response{StatusCode: http.StatusAccepted, Body: io.NopCloser(bytes.NewReader(nil))}, nil
		}
	}}

	n := NewWebhookNotifier("https://vendor.example.com/hooks", "secret", client, m, newTestLogger())
	n.retryIntervals = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}
	n.Dispatch(context.Background(), testEvent())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("webhook was not retried")
	}
	require.NoError(t, n.Shutdown(context.Background()))

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 1.0, notificationCount(t, reg, "delivered"))
}

func TestWebhookNotifier_GivesUpAfterRetries(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewLedgerMetrics(reg)

	var calls atomic.Int32
	client := &mockHTTPClient{doFunc: func(req *http.Request) (*http.Response, error) {
		calls.Add(1)
		return &http.Response{StatusCode: http.StatusBadGateway, Body: io.NopCloser(bytes.NewReader(nil))}, nil
	}}

	n := NewWebhookNotifier("https://vendor.example.com/hooks", "secret", client, m, newTestLogger())
	n.retryIntervals = []time.Duration{time.Millisecond, time.Millisecond}
	n.Dispatch(context.Background(), testEvent())

	n.wg.Wait()
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 1.0, notificationCount(t, reg, "failed"))
}

func TestWebhookNotifier_ShutdownAbandonsPendingRetries(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewLedgerMetrics(reg)

	attempted := make(chan struct{}, 1)
	client := &mockHTTPClient{doFunc: func(req *http.Request) (*http.Response, error) {
		attempted <- struct{}{}
		return &http.Response{StatusCode: http.StatusServiceUnavailable, Body: io.NopCloser(bytes.NewReader(nil))}, nil
	}}

	n := NewWebhookNotifier("https://vendor.example.com/hooks", "secret", client, m, newTestLogger())
	n.retryIntervals = []time.Duration{time.Hour}
	n.Dispatch(context.Background(), testEvent())

	select {
	case <-attempted:
	case <-time.After(2 * time.Second):
		t.Fatal("first attempt not made")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, n.Shutdown(ctx))
	assert.Equal(t, 1.0, notificationCount(t, reg, "abandoned"))
}

func TestWebhookNotifier_DispatchAfterShutdownIsDropped(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewLedgerMetrics(reg)

	var calls atomic.Int32
	client := &mockHTTPClient{doFunc: func(req *http.Request) (*http.Response, error) {
		calls.Add(1)
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(nil))}, nil
	}}

	n := NewWebhookNotifier("https://vendor.example.com/hooks", "secret", client, m, newTestLogger())
	require.NoError(t, n.Shutdown(context.Background()))

	n.Dispatch(context.Background(), testEvent())
	n.wg.Wait()

	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, 1.0, notificationCount(t, reg, "abandoned"))
}

func TestWebhookNotifier_ConcurrentDispatchDuringShutdown(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewLedgerMetrics(reg)

	var afterShutdown atomic.Bool
	var late atomic.Int32
	client := &mockHTTPClient{doFunc: func(req *http.Request) (*http.Response, error) {
		if afterShutdown.Load() {
			late.Add(1)
		}
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(nil))}, nil
	}}

	n := NewWebhookNotifier("https://vendor.example.com/hooks", "secret", client, m, newTestLogger())
	n.retryIntervals = nil

	const dispatchers = 20
	start := make(chan struct{})
	done := make(chan struct{}, dispatchers)
	for i := 0; i < dispatchers; i++ {
		go func() {
			<-start
			n.Dispatch(context.Background(), testEvent())
			done <- struct{}{}
		}()
	}
	close(start)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, n.Shutdown(ctx))
	afterShutdown.Store(true)

	for i := 0; i < dispatchers; i++ {
		<-done
	}
	n.wg.Wait()
	assert.Equal(t, int32(0), late.Load())

	delivered := notificationCount(t, reg, "delivered")
	abandoned := notificationCount(t, reg, "abandoned")
	failed := notificationCount(t, reg, "failed")
	assert.Equal(t, float64(dispatchers), delivered+abandoned+failed)
}

func TestLogNotifier_Dispatch(t *testing.T) {
	var buf bytes.Buffer
	reg := prometheus.NewRegistry()
	n := NewLogNotifier(metrics.NewLedgerMetrics(reg), zerolog.New(&buf))

	event := testEvent()
	n.Dispatch(context.Background(), event)

	assert.Contains(t, buf.String(), "PAYOUT_APPROVED")
	assert.Contains(t, buf.String(), event.PayoutID.String())
	assert.Equal(t, 1.0, notificationCount(t, reg, "logged"))
}

// notificationCount reads payout_notifications_total for result.
func notificationCount(t *testing.T, reg *prometheus.Registry, result string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != "payout_notifications_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, l := range metric.GetLabel() {
				if l.GetName() == "result" && l.GetValue() == result {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
