package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"caseflow/internal/db/repositories"
	"caseflow/internal/logging"
)

// SettingNotificationsEnabled toggles webhook dispatch per tenant.
const SettingNotificationsEnabled = "notifications_enabled"

// WebhookService delivers case events to tenant-registered webhook endpoints.
// Delivery is best-effort and happens after the originating transaction has
// committed; every attempt leaves a delivery log row.
type WebhookService struct {
	repos      *repositories.Repositories
	httpClient *http.Client
}

// CaseEventPayload is the JSON body posted to webhook endpoints.
type CaseEventPayload struct {
	Event       string    `json:"event"`
	Timestamp   time.Time `json:"timestamp"`
	CaseID      int64     `json:"case_id"`
	StepID      int64     `json:"step_id,omitempty"`
	StepKey     string    `json:"step_key,omitempty"`
	Status      string    `json:"status,omitempty"`
	ActorUserID int64     `json:"actor_user_id,omitempty"`
}

func NewWebhookService(repos *repositories.Repositories) *WebhookService {
	return &WebhookService{
		repos: repos,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NotifyCaseEvent fans the event out to every enabled webhook of the tenant
// that subscribes to the event type.
func (w *WebhookService) NotifyCaseEvent(ctx context.Context, tenantID int64, eventType string, payload *CaseEventPayload) error {
	enabled, err := w.repos.Settings.Get(ctx, tenantID, SettingNotificationsEnabled, "true")
	if err != nil {
		return err
	}
	if enabled != "true" {
		logging.Debug("Notifications disabled for tenant %d, skipping %s", tenantID, eventType)
		return nil
	}

	webhooks, err := w.repos.Webhooks.ListEnabledByTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	if len(webhooks) == 0 {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	var lastErr error
	for _, hook := range webhooks {
		if !webhookHandlesEvent(hook.Events, eventType) {
			continue
		}
		if err := w.deliver(ctx, hook.ID, hook.URL, hook.Secret, eventType, body, hook.TimeoutSeconds, hook.RetryAttempts); err != nil {
			logging.Error("Webhook %q delivery failed: %v", hook.Name, err)
			lastErr = err
		}
	}
	return lastErr
}

func (w *WebhookService) deliver(ctx context.Context, webhookID int64, url, secret, eventType string, body []byte, timeoutSeconds, retryAttempts int) error {
	deliveryID := uuid.New().String()
	if err := w.repos.WebhookDeliveries.Insert(ctx, deliveryID, webhookID, eventType, string(body)); err != nil {
		return err
	}

	if retryAttempts < 1 {
		retryAttempts = 1
	}
	timeout := time.Duration(timeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var lastErr error
	var lastStatus int
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		status, err := w.post(ctx, url, secret, eventType, deliveryID, body, timeout)
		lastStatus = status
		if err == nil && status >= 200 && status < 300 {
			return w.repos.WebhookDeliveries.MarkResult(ctx, deliveryID, true, status, "", attempt)
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("endpoint returned HTTP %d", status)
		}
		if attempt < retryAttempts {
			time.Sleep(time.Duration(attempt) * time.Second)
		}
	}

	if markErr := w.repos.WebhookDeliveries.MarkResult(ctx, deliveryID, false, lastStatus, lastErr.Error(), retryAttempts); markErr != nil {
		logging.Error("Failed to record webhook delivery result: %v", markErr)
	}
	return lastErr
}

func (w *WebhookService) post(ctx context.Context, url, secret, eventType, deliveryID string, body []byte, timeout time.Duration) (int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Caseflow-Event", eventType)
	req.Header.Set("X-Caseflow-Delivery", deliveryID)
	if secret != "" {
		req.Header.Set("X-Caseflow-Signature", signPayload(secret, body))
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	return resp.StatusCode, nil
}

// webhookHandlesEvent checks the webhook's subscribed events (a JSON array,
// with "*" as a wildcard) against the event type.
func webhookHandlesEvent(events, eventType string) bool {
	if events == "" {
		return false
	}

	var subscribed []string
	if err := json.Unmarshal([]byte(events), &subscribed); err != nil {
		// Legacy single-event value stored as a bare string.
		return events == eventType
	}
	for _, e := range subscribed {
		if e == "*" || e == eventType {
			return true
		}
	}
	return false
}

func signPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
