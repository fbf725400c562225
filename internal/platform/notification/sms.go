package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPSMSSender posts messages to an SMS gateway that authenticates with
// api_key/secret_key headers and answers {"code":"000"} on success.
type HTTPSMSSender struct {
	URL       string
	APIKey    string
	SecretKey string
	Sender    string
	Client    *http.Client
}

func NewHTTPSMSSender(url, apiKey, secretKey, sender string) *HTTPSMSSender {
	return &HTTPSMSSender{
		URL:       url,
		APIKey:    apiKey,
		SecretKey: secretKey,
		Sender:    sender,
		Client:    &http.Client{Timeout: 10 * time.Second},
	}
}

type smsResponse struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

func (s *HTTPSMSSender) SendSMS(ctx context.Context, to, body string) error {
	payload, err := json.Marshal(map[string]string{
		"sender":  s.Sender,
		"phone":   to,
		"message": body,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api_key", s.APIKey)
	req.Header.Set("secret_key", s.SecretKey)

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("sms gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway failed with status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var out smsResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("decode sms gateway response: %w", err)
	}
	if out.Code != "000" {
		return fmt.Errorf("sms gateway error: %s", out.Detail)
	}
	return nil
}
