package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"vendor-payout-ledger/internal/core/domain"
	"vendor-payout-ledger/internal/core/ports"
	"vendor-payout-ledger/pkg/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// webhookRetryIntervals is the wait before each redelivery attempt.
var webhookRetryIntervals = []time.Duration{
	15 * time.Second,
	60 * time.Second,
	2 * time.Minute,
	5 * time.Minute,
	10 * time.Minute,
}

// Webhook headers. The signature covers "TIMESTAMP|EVENT_ID|BODY".
const (
	HeaderWebhookEvent     = "X-Webhook-Event"
	HeaderWebhookID        = "X-Webhook-Id"
	HeaderWebhookTimestamp = "X-Webhook-Timestamp"
	HeaderWebhookSignature = "X-Webhook-Signature"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebhookPayload is the JSON body posted to the notification endpoint.
type WebhookPayload struct {
	EventID    string           `json:"event_id"`
	EventType  domain.EventType `json:"event_type"`
	VendorID   uuid.UUID        `json:"vendor_id"`
	PayoutID   uuid.UUID        `json:"payout_id"`
	Data       map[string]any   `json:"data"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// WebhookNotifier delivers payout events to a single HTTP endpoint with
// HMAC-signed bodies, retrying in the background.
type WebhookNotifier struct {
	url            string
	secret         string
	signer         *HMACSignatureService
	httpClient     HTTPClient
	retryIntervals []time.Duration
	metrics        *metrics.LedgerMetrics
	log            zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// mu orders wg.Add in Dispatch against wg.Wait in Shutdown.
	mu     sync.Mutex
	closed bool
}

// NewWebhookNotifier creates a webhook dispatcher for url.
func NewWebhookNotifier(url, secret string, httpClient HTTPClient, m *metrics.LedgerMetrics, log zerolog.Logger) *WebhookNotifier {
	ctx, cancel := context.WithCancel(context.Background())
	return &WebhookNotifier{
		url:            url,
		secret:         secret,
		signer:         NewHMACSignatureService(),
		httpClient:     httpClient,
		retryIntervals: webhookRetryIntervals,
		metrics:        m,
		log:            log,
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Dispatch queues the event for asynchronous delivery and returns immediately.
func (n *WebhookNotifier) Dispatch(_ context.Context, event domain.PayoutEvent) {
	payload := WebhookPayload{
		EventID:    uuid.NewString(),
		EventType:  event.EventType,
		VendorID:   event.VendorID,
		PayoutID:   event.PayoutID,
		Data:       event.Payload,
		OccurredAt: event.OccurredAt,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		n.log.Error().Err(err).Str("payout_id", event.PayoutID.String()).Msg("webhook: failed to marshal payload")
		n.metrics.IncNotification("failed")
		return
	}

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		n.log.Warn().Str("payout_id", event.PayoutID.String()).
			Str("event_type", string(event.EventType)).
			Msg("webhook: dispatch after shutdown, event dropped")
		n.metrics.IncNotification("abandoned")
		return
	}
	n.wg.Add(1)
	n.mu.Unlock()
	go func() {
		defer n.wg.Done()
		n.deliverWithRetries(payload, body)
	}()
}

// Shutdown stops pending retries and waits for in-flight deliveries or ctx.
func (n *WebhookNotifier) Shutdown(ctx context.Context) error {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
	n.cancel()
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *WebhookNotifier) deliverWithRetries(payload WebhookPayload, body []byte) {
	logger := n.log.With().
		Str("event_id", payload.EventID).
		Str("event_type", string(payload.EventType)).
		Str("payout_id", payload.PayoutID.String()).
		Logger()

	for attempt := 0; attempt <= len(n.retryIntervals); attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(n.retryIntervals[attempt-1]):
			case <-n.ctx.Done():
				logger.Warn().Int("attempt", attempt+1).Msg("webhook: delivery abandoned on shutdown")
				n.metrics.IncNotification("abandoned")
				return
			}
		}

		status, err := n.deliver(payload, body)
		if err != nil {
			logger.Warn().Err(err).Int("attempt", attempt+1).Msg("webhook: delivery failed")
			continue
		}
		if status >= 200 && status < 300 {
			logger.Info().Int("attempt", attempt+1).Int("status", status).Msg("webhook: delivered successfully")
			n.metrics.IncNotification("delivered")
			return
		}
		logger.Warn().Int("attempt", attempt+1).Int("status", status).Msg("webhook: non-2xx response, retrying")
	}

	logger.Error().Msg("webhook: all retry attempts exhausted")
	n.metrics.IncNotification("failed")
}

func (n *WebhookNotifier) deliver(payload WebhookPayload, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(n.ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	ts := time.Now().Unix()
	canonical := n.signer.BuildCanonicalString(ts, payload.EventID, string(body))

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderWebhookEvent, string(payload.EventType))
	req.Header.Set(HeaderWebhookID, payload.EventID)
	req.Header.Set(HeaderWebhookTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(HeaderWebhookSignature, n.signer.Sign(n.secret, canonical))

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	if resp.Body != nil {
		resp.Body.Close()
	}
	return resp.StatusCode, nil
}

// LogNotifier records payout events in the service log. It is used when no
// webhook endpoint is configured.
type LogNotifier struct {
	metrics *metrics.LedgerMetrics
	log     zerolog.Logger
}

// NewLogNotifier creates a log-only dispatcher.
func NewLogNotifier(m *metrics.LedgerMetrics, log zerolog.Logger) *LogNotifier {
	return &LogNotifier{metrics: m, log: log}
}

func (n *LogNotifier) Dispatch(_ context.Context, event domain.PayoutEvent) {
	n.log.Info().
		Str("event_type", string(event.EventType)).
		Str("vendor_id", event.VendorID.String()).
		Str("payout_id", event.PayoutID.String()).
		Interface("payload", event.Payload).
		Msg("payout event")
	n.metrics.IncNotification("logged")
}

var (
	_ ports.NotificationDispatcher = (*WebhookNotifier)(nil)
	_ ports.NotificationDispatcher = (*LogNotifier)(nil)
)
