package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/JoeShih716/go-wallet-ledger/internal/app/core/usecase"
)

const webhookTimeout = 5 * time.Second

// WebhookSink 把稽核事件 POST 到外部接收端
type WebhookSink struct {
	url    string
	client *http.Client
}

// NewWebhookSink 建立 webhook sink
func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		url: url,
		// 固定 timeout，不讓慢的接收端拖住我們
		client: &http.Client{Timeout: webhookTimeout},
	}
}

// Notify implements usecase.AuditSink.
func (s *WebhookSink) Notify(event usecase.AuditEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "WalletLedger-Audit/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("audit receiver returned status %d", resp.StatusCode)
}

var _ usecase.AuditSink = (*WebhookSink)(nil)
